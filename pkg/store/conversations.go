package store

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/samsmithyeah/flock-sub002/pkg/logger"
	"github.com/samsmithyeah/flock-sub002/pkg/models"
	"github.com/samsmithyeah/flock-sub002/pkg/store/keys"
)

// GetConversation returns the conversation meta document.
func GetConversation(convID string) (*models.Conversation, error) {
	k, err := keys.GenConversationMetaKey(convID)
	if err != nil {
		return nil, err
	}
	raw, err := GetKey(k)
	if err != nil {
		return nil, err
	}
	var c models.Conversation
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return nil, fmt.Errorf("corrupt conversation meta for %s: %w", convID, err)
	}
	return &c, nil
}

// SaveConversation persists the meta document and refreshes the
// rel:u:* membership index for every participant.
func SaveConversation(c *models.Conversation) error {
	if c == nil || c.ID == "" {
		return fmt.Errorf("conversation id required")
	}
	k, err := keys.GenConversationMetaKey(c.ID)
	if err != nil {
		return err
	}
	b, err := json.Marshal(c)
	if err != nil {
		return err
	}
	if err := SaveKey(k, b); err != nil {
		return err
	}
	for _, uid := range c.Participants {
		rk, err := keys.GenUserInConversationKey(uid, c.ID)
		if err != nil {
			logger.Warn("rel_key_skipped", "conversation", c.ID, "user", uid, "error", err)
			continue
		}
		if err := SaveKey(rk, []byte("1")); err != nil {
			return err
		}
	}
	return nil
}

// EnsureConversation returns the existing conversation or creates it
// with the given participants. Create runs under the conversation lock
// so concurrent first-message senders agree on one meta document.
func EnsureConversation(convID, kind string, participants []string) (*models.Conversation, error) {
	if c, err := GetConversation(convID); err == nil {
		return c, nil
	} else if !IsNotFound(err) {
		return nil, err
	}
	mu := convLocks.Get(convID)
	mu.Lock()
	defer mu.Unlock()
	// re-check under the lock
	if c, err := GetConversation(convID); err == nil {
		return c, nil
	} else if !IsNotFound(err) {
		return nil, err
	}
	sorted := append([]string(nil), participants...)
	sort.Strings(sorted)
	now := time.Now().UnixNano()
	c := &models.Conversation{
		ID:           convID,
		Kind:         kind,
		Participants: sorted,
		CreatedTS:    now,
		UpdatedTS:    now,
	}
	if err := SaveConversation(c); err != nil {
		return nil, err
	}
	logger.Info("conversation_created", "conversation", convID, "kind", kind, "participants", len(sorted))
	return c, nil
}

// RequireParticipant loads the conversation and verifies membership.
// Returns ErrNotParticipant when the user is not in it.
func RequireParticipant(convID, userID string) (*models.Conversation, error) {
	c, err := GetConversation(convID)
	if err != nil {
		return nil, err
	}
	if !c.HasParticipant(userID) {
		logger.Warn("participant_check_failed", "conversation", convID, "user", userID)
		return nil, ErrNotParticipant
	}
	return c, nil
}

// ListUserConversations returns the user's conversations ordered by
// UpdatedTS descending, resolved through the rel:u:* index.
func ListUserConversations(userID string) ([]*models.Conversation, error) {
	if err := keys.ValidateUserID(userID); err != nil {
		return nil, err
	}
	prefix := fmt.Sprintf("rel:u:%s:c:", userID)
	relKeys, err := ListKeys(prefix)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Conversation, 0, len(relKeys))
	for _, rk := range relKeys {
		_, convID, err := keys.ParseUserInConversationKey(rk)
		if err != nil {
			logger.Warn("rel_key_unparseable", "key", rk, "error", err)
			continue
		}
		c, err := GetConversation(convID)
		if err != nil {
			if IsNotFound(err) {
				continue
			}
			return nil, err
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedTS > out[j].UpdatedTS })
	return out, nil
}

// touchConversation bumps UpdatedTS and LastSeq after a committed
// message. Caller holds the conversation lock.
func touchConversation(c *models.Conversation, ts int64, seq uint64) error {
	c.UpdatedTS = ts
	if seq > c.LastSeq {
		c.LastSeq = seq
	}
	return SaveConversation(c)
}
