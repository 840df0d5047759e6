package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/samsmithyeah/flock-sub002/pkg/logger"
	"github.com/samsmithyeah/flock-sub002/pkg/models"
	"github.com/samsmithyeah/flock-sub002/pkg/store/feed"
	"github.com/samsmithyeah/flock-sub002/pkg/store/keys"
)

// SetTyping upserts the caller's typing document for convID and
// publishes it on the typing topic. The document is created on first
// write; indicators are advisory so membership is checked but a missing
// conversation is an error.
func SetTyping(convID, userID string, typing bool) error {
	if _, err := RequireParticipant(convID, userID); err != nil {
		return err
	}
	k, err := keys.GenTypingKey(convID, userID)
	if err != nil {
		return err
	}
	st := models.TypingState{
		Conversation: convID,
		User:         userID,
		Typing:       typing,
		UpdatedTS:    time.Now().UnixNano(),
	}
	b, err := json.Marshal(st)
	if err != nil {
		return err
	}
	if err := SaveKey(k, b); err != nil {
		return err
	}
	logger.Debug("typing_set", "conversation", convID, "user", userID, "typing", typing)
	publish(feed.Event{
		Conversation: convID,
		Topic:        feed.TopicTyping,
		Kind:         feed.KindModified,
		Key:          k,
		Payload:      b,
		TS:           st.UpdatedTS,
	})
	return nil
}

// GetTyping returns one user's typing document.
func GetTyping(convID, userID string) (*models.TypingState, error) {
	k, err := keys.GenTypingKey(convID, userID)
	if err != nil {
		return nil, err
	}
	raw, err := GetKey(k)
	if err != nil {
		return nil, err
	}
	var st models.TypingState
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return nil, fmt.Errorf("corrupt typing state: %w", err)
	}
	return &st, nil
}

// ListTyping returns all typing documents for convID.
func ListTyping(convID string) ([]models.TypingState, error) {
	prefix, err := keys.GenTypingPrefix(convID)
	if err != nil {
		return nil, err
	}
	ks, err := ListKeys(prefix)
	if err != nil {
		return nil, err
	}
	out := make([]models.TypingState, 0, len(ks))
	for _, tk := range ks {
		raw, err := GetKey(tk)
		if err != nil {
			if IsNotFound(err) {
				continue
			}
			return nil, err
		}
		var st models.TypingState
		if err := json.Unmarshal([]byte(raw), &st); err != nil {
			logger.Warn("typing_doc_unparseable", "key", tk, "error", err)
			continue
		}
		out = append(out, st)
	}
	return out, nil
}

// StaleTyping lists typing documents whose UpdatedTS is older than
// cutoff and still claim typing=true.
func StaleTyping(cutoff time.Time) ([]models.TypingState, error) {
	ks, err := ListKeys("c:")
	if err != nil {
		return nil, err
	}
	var stale []models.TypingState
	for _, k := range ks {
		parts, err := keys.ParseTypingKey(k)
		if err != nil {
			continue
		}
		st, err := GetTyping(parts.ConvID, parts.UserID)
		if err != nil {
			continue
		}
		if !st.Typing || st.UpdatedTS >= cutoff.UnixNano() {
			continue
		}
		stale = append(stale, *st)
	}
	return stale, nil
}

// ClearStaleTyping resets stale typing indicators and returns the
// number cleared. Run by the sweeper so crashed clients do not leave
// indicators stuck.
func ClearStaleTyping(cutoff time.Time) (int, error) {
	stale, err := StaleTyping(cutoff)
	if err != nil {
		return 0, err
	}
	cleared := 0
	for _, st := range stale {
		if err := SetTyping(st.Conversation, st.User, false); err != nil {
			logger.Warn("stale_typing_clear_failed", "conversation", st.Conversation, "user", st.User, "error", err)
			continue
		}
		cleared++
	}
	return cleared, nil
}

// SetRead records the caller's read watermark for convID.
func SetRead(convID, userID string, lastReadTS int64) error {
	if _, err := RequireParticipant(convID, userID); err != nil {
		return err
	}
	k, err := keys.GenReadKey(convID, userID)
	if err != nil {
		return err
	}
	rs := models.ReadState{Conversation: convID, User: userID, LastReadTS: lastReadTS}
	b, err := json.Marshal(rs)
	if err != nil {
		return err
	}
	return SaveKey(k, b)
}

// GetRead returns the user's read watermark, zero-valued when never set.
func GetRead(convID, userID string) (*models.ReadState, error) {
	k, err := keys.GenReadKey(convID, userID)
	if err != nil {
		return nil, err
	}
	raw, err := GetKey(k)
	if err != nil {
		if IsNotFound(err) {
			return &models.ReadState{Conversation: convID, User: userID}, nil
		}
		return nil, err
	}
	var rs models.ReadState
	if err := json.Unmarshal([]byte(raw), &rs); err != nil {
		return nil, fmt.Errorf("corrupt read state: %w", err)
	}
	return &rs, nil
}

// UnreadCount counts messages newer than the user's read watermark,
// excluding the user's own.
func UnreadCount(convID, userID string) (int, error) {
	rs, err := GetRead(convID, userID)
	if err != nil {
		return 0, err
	}
	prefix, err := keys.GenMessagePrefix(convID)
	if err != nil {
		return 0, err
	}
	ks, err := ListKeys(prefix)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, mk := range ks {
		parts, err := keys.ParseMessageKey(mk)
		if err != nil {
			continue
		}
		if parts.TS <= rs.LastReadTS {
			continue
		}
		raw, err := GetKey(mk)
		if err != nil {
			continue
		}
		var m models.Message
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			continue
		}
		if m.Sender != userID {
			n++
		}
	}
	return n, nil
}
