package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/pebble"

	"github.com/samsmithyeah/flock-sub002/pkg/logger"
	"github.com/samsmithyeah/flock-sub002/pkg/models"
	"github.com/samsmithyeah/flock-sub002/pkg/store/feed"
	"github.com/samsmithyeah/flock-sub002/pkg/store/keys"
	"github.com/samsmithyeah/flock-sub002/pkg/store/pagination"
	"github.com/samsmithyeah/flock-sub002/pkg/utils"
)

// MessagePage is one page of a backwards scan through a conversation.
// Messages are newest-first (scan order); callers that render
// chronologically reverse before prepending.
type MessagePage struct {
	Messages   []models.Message
	HasMore    bool
	NextCursor string
}

// AppendMessage commits a message to conversation convID. The server
// assigns ID (when empty), TS and Seq under the conversation lock, so
// the storage key order is the authoritative order even when two
// senders race. The caller must already be a participant.
func AppendMessage(convID string, msg *models.Message) (*models.Message, error) {
	if msg == nil || !msg.HasContent() {
		return nil, fmt.Errorf("message has no content")
	}
	if err := keys.ValidateUserID(msg.Sender); err != nil {
		return nil, fmt.Errorf("invalid sender: %w", err)
	}
	c, err := GetConversation(convID)
	if err != nil {
		return nil, err
	}
	if !c.HasParticipant(msg.Sender) {
		return nil, ErrNotParticipant
	}

	mu := convLocks.Get(convID)
	mu.Lock()
	defer mu.Unlock()

	// re-read meta under the lock; LastSeq may have advanced
	c, err = GetConversation(convID)
	if err != nil {
		return nil, err
	}
	msg.Conversation = convID
	msg.TS = time.Now().UnixNano()
	msg.Seq = c.LastSeq + 1
	if msg.ID == "" {
		msg.ID = utils.GenMessageID()
	}

	k, err := keys.GenMessageKey(convID, msg.TS, msg.Seq)
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	if err := SaveKey(k, b); err != nil {
		return nil, err
	}
	idx, err := keys.GenMessageIDKey(convID, msg.ID)
	if err != nil {
		return nil, err
	}
	if err := SaveKey(idx, []byte(k)); err != nil {
		return nil, err
	}
	if err := touchConversation(c, msg.TS, msg.Seq); err != nil {
		return nil, err
	}

	messagesAppended.Inc()
	logger.Info("message_appended", "conversation", convID, "message", msg.ID, "seq", msg.Seq)
	publish(feed.Event{
		Conversation: convID,
		Topic:        feed.TopicMessages,
		Kind:         feed.KindInserted,
		Key:          k,
		Payload:      b,
		TS:           msg.TS,
	})
	return msg, nil
}

// resolveMessageKey maps a message id to its storage key via the mid index.
func resolveMessageKey(convID, msgID string) (string, error) {
	idx, err := keys.GenMessageIDKey(convID, msgID)
	if err != nil {
		return "", err
	}
	k, err := GetKey(idx)
	if err != nil {
		return "", err
	}
	return k, nil
}

// GetMessage returns one message by id.
func GetMessage(convID, msgID string) (*models.Message, error) {
	k, err := resolveMessageKey(convID, msgID)
	if err != nil {
		return nil, err
	}
	raw, err := GetKey(k)
	if err != nil {
		return nil, err
	}
	var m models.Message
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, fmt.Errorf("corrupt message %s: %w", msgID, err)
	}
	return &m, nil
}

// UpdateMessage performs a read-modify-write of one message under the
// conversation lock. fn mutates the message in place; the storage key
// is unchanged (TS/Seq are immutable). The committed document is
// published on topic with kind modified.
func UpdateMessage(convID, msgID string, topic feed.Topic, fn func(*models.Message) error) (*models.Message, error) {
	mu := convLocks.Get(convID)
	mu.Lock()
	defer mu.Unlock()

	k, err := resolveMessageKey(convID, msgID)
	if err != nil {
		return nil, err
	}
	raw, err := GetKey(k)
	if err != nil {
		return nil, err
	}
	var m models.Message
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, fmt.Errorf("corrupt message %s: %w", msgID, err)
	}
	if err := fn(&m); err != nil {
		return nil, err
	}
	b, err := json.Marshal(&m)
	if err != nil {
		return nil, err
	}
	if err := SaveKey(k, b); err != nil {
		return nil, err
	}
	publish(feed.Event{
		Conversation: convID,
		Topic:        topic,
		Kind:         feed.KindModified,
		Key:          k,
		Payload:      b,
		TS:           time.Now().UnixNano(),
	})
	return &m, nil
}

// ListMessagesBefore scans backwards (newest first) through convID's
// messages, starting strictly before the cursor position, or from the
// end when cursor is empty. It reads limit+1 entries to decide HasMore
// without a second scan.
func ListMessagesBefore(convID, cursor string, limit int) (*MessagePage, error) {
	if db == nil {
		return nil, fmt.Errorf("pebble not opened; call store.Open first")
	}
	if limit <= 0 {
		limit = pagination.MessagePageSize
	}
	prefix, err := keys.GenMessagePrefix(convID)
	if err != nil {
		return nil, err
	}
	upper := []byte(prefix + "\xff")
	if cursor != "" {
		payload, err := pagination.DecodeCursor(cursor)
		if err != nil {
			return nil, fmt.Errorf("invalid cursor: %w", err)
		}
		if payload.LastMessageKey == "" || !strings.HasPrefix(payload.LastMessageKey, prefix) {
			return nil, fmt.Errorf("cursor does not match conversation")
		}
		// SeekLT(upper) positions strictly before the cursor key
		upper = []byte(payload.LastMessageKey)
	}

	iter, err := db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(prefix),
		UpperBound: upper,
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	page := &MessagePage{}
	var lastKey string
	for ok := iter.Last(); ok && len(page.Messages) < limit; ok = iter.Prev() {
		if !bytes.HasPrefix(iter.Key(), []byte(prefix)) {
			break
		}
		var m models.Message
		if err := json.Unmarshal(iter.Value(), &m); err != nil {
			logger.Warn("message_unparseable", "key", string(iter.Key()), "error", err)
			continue
		}
		lastKey = string(append([]byte(nil), iter.Key()...))
		page.Messages = append(page.Messages, m)
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	// probe one more entry for HasMore
	if lastKey != "" && iter.SeekLT([]byte(lastKey)) && bytes.HasPrefix(iter.Key(), []byte(prefix)) {
		page.HasMore = true
		page.NextCursor = pagination.EncodeCursor(pagination.CursorPayload{LastMessageKey: lastKey})
	}
	return page, nil
}

// CountMessages returns the number of stored messages in convID.
func CountMessages(convID string) (int, error) {
	prefix, err := keys.GenMessagePrefix(convID)
	if err != nil {
		return 0, err
	}
	ks, err := ListKeys(prefix)
	if err != nil {
		return 0, err
	}
	return len(ks), nil
}
