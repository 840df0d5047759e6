package session

import (
	"encoding/json"
	"errors"

	"github.com/google/uuid"

	"github.com/samsmithyeah/flock-sub002/pkg/logger"
	"github.com/samsmithyeah/flock-sub002/pkg/models"
	"github.com/samsmithyeah/flock-sub002/pkg/store"
	"github.com/samsmithyeah/flock-sub002/pkg/store/feed"
)

// attachment is one live change-feed binding for a conversation. Its
// id fences stale deliveries: events pumped after a replacement or
// detach carry the old id and are discarded.
type attachment struct {
	id       string
	messages *feed.Subscription
	votes    *feed.Subscription
	typing   *feed.Subscription
	done     chan struct{}
}

func (a *attachment) cancel() {
	a.messages.Cancel()
	a.votes.Cancel()
	a.typing.Cancel()
	<-a.done
}

// attachLocked replaces any prior attachment for convID with a fresh
// one. Caller holds s.mu.
func (s *Session) attachLocked(convID string, cs *convState) {
	if cs.attach != nil {
		old := cs.attach
		cs.attach = nil
		// release s.mu for the drain; the pump goroutine takes it
		s.mu.Unlock()
		old.cancel()
		s.mu.Lock()
	}
	a := &attachment{
		id: uuid.NewString(),
		// the votes topic is separate so a vote change never replays
		// the whole message list
		messages: s.feed.Subscribe(convID, feed.TopicMessages),
		votes:    s.feed.Subscribe(convID, feed.TopicVotes),
		typing:   s.feed.Subscribe(convID, feed.TopicTyping),
		done:     make(chan struct{}),
	}
	cs.attach = a
	go s.pump(convID, a)
	logger.Debug("listener_attached", "user", s.User, "conversation", convID, "attachment", a.id)
}

// pump forwards feed events into the session until every subscription
// closes.
func (s *Session) pump(convID string, a *attachment) {
	defer close(a.done)
	msgs, votes, typ := a.messages.C(), a.votes.C(), a.typing.C()
	for msgs != nil || votes != nil || typ != nil {
		select {
		case ev, ok := <-msgs:
			if !ok {
				msgs = nil
				continue
			}
			s.onFeedEvent(convID, a.id, ev)
		case ev, ok := <-votes:
			if !ok {
				votes = nil
				continue
			}
			s.onFeedEvent(convID, a.id, ev)
		case ev, ok := <-typ:
			if !ok {
				typ = nil
				continue
			}
			s.onFeedEvent(convID, a.id, ev)
		}
	}
}

// onFeedEvent applies one delta. Permission-denied is terminal and
// silent; other errors are logged and the attachment stays live.
func (s *Session) onFeedEvent(convID, attachID string, ev feed.Event) {
	s.mu.Lock()
	cs, ok := s.convs[convID]
	if !ok || cs.attach == nil || cs.attach.id != attachID {
		s.mu.Unlock()
		logger.Debug("stale_event_discarded", "user", s.User, "conversation", convID, "attachment", attachID)
		return
	}
	err := s.applyLocked(cs, ev)
	s.mu.Unlock()

	if err == nil {
		return
	}
	if errors.Is(err, store.ErrNotParticipant) {
		// detach from a separate goroutine: CloseConversation waits for
		// this pump to drain
		go s.CloseConversation(convID)
		logger.Debug("listener_detached_permission", "user", s.User, "conversation", convID)
		return
	}
	logger.Warn("feed_event_apply_failed", "user", s.User, "conversation", convID, "error", err)
}

func (s *Session) applyLocked(cs *convState, ev feed.Event) error {
	switch ev.Topic {
	case feed.TopicMessages:
		var m models.Message
		if err := json.Unmarshal(ev.Payload, &m); err != nil {
			return err
		}
		switch ev.Kind {
		case feed.KindInserted:
			cs.overlay.reconcile(m.CorrelationID)
			insertConfirmed(&cs.confirmed, m)
		case feed.KindModified:
			replaceConfirmed(cs.confirmed, m)
		case feed.KindRemoved:
			removeConfirmed(&cs.confirmed, m.ID)
		}
	case feed.TopicVotes:
		var m models.Message
		if err := json.Unmarshal(ev.Payload, &m); err != nil {
			return err
		}
		// narrow update: only the one message is touched
		replaceConfirmed(cs.confirmed, m)
	case feed.TopicTyping:
		var st models.TypingState
		if err := json.Unmarshal(ev.Payload, &st); err != nil {
			return err
		}
		if st.User == s.User {
			return nil
		}
		if st.Typing {
			cs.typingBy[st.User] = true
		} else {
			delete(cs.typingBy, st.User)
		}
	}
	return nil
}
