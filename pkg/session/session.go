// Package session is the per-user sync runtime: it owns the attached
// conversation listeners, the pagination cursors, the optimistic send
// overlay, the typing debouncers and the shared profile cache, and it
// exposes the merged conversation views the API serves. All session
// state is serialized behind one mutex per session; store and queue
// I/O happens outside the lock.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/samsmithyeah/flock-sub002/pkg/logger"
	"github.com/samsmithyeah/flock-sub002/pkg/models"
	"github.com/samsmithyeah/flock-sub002/pkg/outbox"
	"github.com/samsmithyeah/flock-sub002/pkg/store"
	"github.com/samsmithyeah/flock-sub002/pkg/store/feed"
	"github.com/samsmithyeah/flock-sub002/pkg/utils"
)

// Backend is the slice of the document store the session runtime
// consumes. The production implementation is StoreBackend; tests
// substitute fakes.
type Backend interface {
	EnsureConversation(convID, kind string, participants []string) (*models.Conversation, error)
	RequireParticipant(convID, userID string) (*models.Conversation, error)
	ListUserConversations(userID string) ([]*models.Conversation, error)
	ListMessagesBefore(convID, cursor string, limit int) (*store.MessagePage, error)
	CastVote(convID, userID, msgID string, option int) (*models.Message, error)
	SetTyping(convID, userID string, typing bool) error
	SetRead(convID, userID string, lastReadTS int64) error
	UnreadCount(convID, userID string) (int, error)
	GetProfiles(ids []string) (map[string]*models.Profile, error)
}

// Sender admits optimistic sends. *outbox.Queue satisfies it.
type Sender interface {
	Enqueue(convID string, msg *models.Message, done outbox.DoneFunc) error
}

// Feed hands out change subscriptions. *feed.Hub satisfies it.
type Feed interface {
	Subscribe(convID string, topics ...feed.Topic) *feed.Subscription
}

// ErrValidation rejects bad input before any store call.
var ErrValidation = errors.New("validation failed")

// Notice is a toast-style event surfaced to the user for failed
// user-initiated actions. Background sync never produces one.
type Notice struct {
	Event        string `json:"event"`
	Conversation string `json:"conversation,omitempty"`
	Correlation  string `json:"correlation,omitempty"`
	Detail       string `json:"detail,omitempty"`
}

// MessageView is one entry of a merged conversation view.
type MessageView struct {
	models.Message
	Pending bool `json:"pending,omitempty"`
	Failed  bool `json:"failed,omitempty"`
}

// convState is everything the session holds for one attached
// conversation. Guarded by the session mutex.
type convState struct {
	attach    *attachment
	pager     *pager
	overlay   *overlay
	typing    *debouncer
	confirmed []models.Message // chronological
	typingBy  map[string]bool  // other users currently typing
}

// Session is one user's sync runtime.
type Session struct {
	User string

	mu     sync.Mutex
	convs  map[string]*convState
	closed bool

	backend  Backend
	sender   Sender
	feed     Feed
	profiles *profileFetcher
	cfg      Config

	notices   chan Notice
	noticesMu sync.Mutex
}

func newSession(user string, backend Backend, sender Sender, fd Feed, profiles *profileFetcher, cfg Config) *Session {
	return &Session{
		User:     user,
		convs:    make(map[string]*convState),
		backend:  backend,
		sender:   sender,
		feed:     fd,
		profiles: profiles,
		cfg:      cfg,
		notices:  make(chan Notice, 32),
	}
}

// Notices is the session's toast stream. Dropped when full; notices
// are advisory.
func (s *Session) Notices() <-chan Notice { return s.notices }

func (s *Session) notify(n Notice) {
	select {
	case s.notices <- n:
	default:
		logger.Debug("notice_dropped", "user", s.User, "event", n.Event)
	}
}

// OpenConversation resolves (and on first use creates) the
// conversation and attaches the session to its change feed. The caller
// must be a participant of the resolved conversation, whether it
// already existed or is created by this call. Reopening an already-open
// conversation replaces the prior attachment.
func (s *Session) OpenConversation(convID, kind string, participants []string) (*models.Conversation, error) {
	c, err := s.backend.RequireParticipant(convID, s.User)
	if store.IsNotFound(err) {
		// creating: refuse before the store call so a creator who
		// excludes themselves leaves no document behind
		if !containsUser(participants, s.User) {
			logger.Warn("open_rejected_not_participant", "user", s.User, "conversation", convID)
			return nil, store.ErrNotParticipant
		}
		c, err = s.backend.EnsureConversation(convID, kind, participants)
	}
	if err != nil {
		return nil, err
	}
	// a concurrent creator may have won the Ensure race with a
	// different participant set
	if !c.HasParticipant(s.User) {
		logger.Warn("open_rejected_not_participant", "user", s.User, "conversation", convID)
		return nil, store.ErrNotParticipant
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("session closed")
	}
	cs, ok := s.convs[convID]
	if !ok {
		cs = &convState{
			pager:    newPager(s.cfg.PageSize),
			overlay:  newOverlay(),
			typingBy: make(map[string]bool),
		}
		cs.typing = newDebouncer(s.cfg.TypingIdle, func(typing bool) {
			if err := s.backend.SetTyping(convID, s.User, typing); err != nil {
				logger.Warn("typing_write_failed", "conversation", convID, "user", s.User, "error", err)
			}
		})
		s.convs[convID] = cs
	}
	s.attachLocked(convID, cs)

	// seed the view with the newest page
	if len(cs.confirmed) == 0 && !cs.pager.loading {
		s.mu.Unlock()
		s.LoadEarlier(convID)
		s.mu.Lock()
	}
	return c, nil
}

// CloseConversation detaches the listener and drops the per-
// conversation state. Pending overlay entries are dropped with it; the
// store already has (or will reject) the queued sends.
func (s *Session) CloseConversation(convID string) {
	s.mu.Lock()
	cs, ok := s.convs[convID]
	if ok {
		delete(s.convs, convID)
	}
	s.mu.Unlock()
	if !ok {
		return
	}
	if cs.attach != nil {
		cs.attach.cancel()
	}
	cs.typing.stop()
	logger.Debug("conversation_closed", "user", s.User, "conversation", convID)
}

// Close detaches everything and ends the session.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	convs := s.convs
	s.convs = map[string]*convState{}
	s.mu.Unlock()
	for _, cs := range convs {
		if cs.attach != nil {
			cs.attach.cancel()
		}
		cs.typing.stop()
	}
}

// Messages returns the merged view for convID: confirmed messages with
// pending overlay entries interleaved chronologically.
func (s *Session) Messages(convID string) []MessageView {
	s.mu.Lock()
	defer s.mu.Unlock()
	cs, ok := s.convs[convID]
	if !ok {
		return nil
	}
	return cs.overlay.merge(cs.confirmed)
}

// HasMore reports whether older history remains for convID.
func (s *Session) HasMore(convID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	cs, ok := s.convs[convID]
	if !ok {
		return false
	}
	return cs.pager.hasMore
}

// TypingUsers returns the other participants currently typing.
func (s *Session) TypingUsers(convID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	cs, ok := s.convs[convID]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(cs.typingBy))
	for uid, typing := range cs.typingBy {
		if typing {
			out = append(out, uid)
		}
	}
	return out
}

// Send validates and admits an optimistic send. The returned view is
// the pending entry (correlation id assigned when the client sent
// none); confirmation or failure arrives through the overlay.
func (s *Session) Send(convID string, msg models.Message) (*MessageView, error) {
	if !msg.HasContent() {
		return nil, fmt.Errorf("%w: message has no content", ErrValidation)
	}
	if msg.Poll != nil {
		if err := msg.Poll.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
	}
	msg.Sender = s.User
	msg.Conversation = convID
	if msg.CorrelationID == "" {
		msg.CorrelationID = uuid.NewString()
	}
	if msg.ID == "" {
		msg.ID = utils.GenMessageID()
	}
	msg.TS = time.Now().UnixNano()

	s.mu.Lock()
	cs, ok := s.convs[convID]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("conversation %s not open", convID)
	}
	view := cs.overlay.addPending(msg)
	s.mu.Unlock()
	cs.typing.onSend()

	cid := msg.CorrelationID
	err := s.sender.Enqueue(convID, &msg, func(committed *models.Message, err error) {
		if err != nil {
			s.failSend(convID, cid, err)
			return
		}
		s.confirmSend(convID, committed)
	})
	if err != nil {
		s.failSend(convID, cid, err)
		return nil, err
	}
	logger.Debug("send_enqueued", "user", s.User, "conversation", convID, "correlation", cid)
	return &view, nil
}

func (s *Session) failSend(convID, correlationID string, cause error) {
	s.mu.Lock()
	if cs, ok := s.convs[convID]; ok {
		cs.overlay.markFailed(correlationID)
	}
	s.mu.Unlock()
	logger.Warn("send_failed", "user", s.User, "conversation", convID, "correlation", correlationID, "error", cause)
	s.notify(Notice{Event: "send_failed", Conversation: convID, Correlation: correlationID, Detail: cause.Error()})
}

// confirmSend reconciles directly off the Done callback; the feed
// insert for the same correlation id is then a no-op.
func (s *Session) confirmSend(convID string, committed *models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cs, ok := s.convs[convID]
	if !ok {
		return
	}
	cs.overlay.reconcile(committed.CorrelationID)
	insertConfirmed(&cs.confirmed, *committed)
}

// Vote applies one poll vote. Validation is local; the store holds the
// transactional read-modify-write.
func (s *Session) Vote(convID, msgID string, option int) error {
	if option < 0 {
		return fmt.Errorf("%w: negative option index", ErrValidation)
	}
	updated, err := s.backend.CastVote(convID, s.User, msgID, option)
	if err != nil {
		if !errors.Is(err, store.ErrNotParticipant) {
			s.notify(Notice{Event: "vote_failed", Conversation: convID, Detail: err.Error()})
		}
		return err
	}
	s.mu.Lock()
	if cs, ok := s.convs[convID]; ok {
		replaceConfirmed(cs.confirmed, *updated)
	}
	s.mu.Unlock()
	return nil
}

// MarkRead advances the caller's read watermark to now.
func (s *Session) MarkRead(convID string) error {
	return s.backend.SetRead(convID, s.User, time.Now().UnixNano())
}

// OnTextChanged feeds the typing debouncer for convID.
func (s *Session) OnTextChanged(convID, text string) {
	s.mu.Lock()
	cs, ok := s.convs[convID]
	s.mu.Unlock()
	if !ok {
		return
	}
	cs.typing.onTextChanged(text)
}

// FetchProfiles resolves a set of user ids through the shared cache.
func (s *Session) FetchProfiles(ids []string) ([]*models.Profile, error) {
	return s.profiles.FetchBatch(ids)
}

// insertConfirmed places m into the chronological slice, ignoring
// duplicates by id.
func insertConfirmed(list *[]models.Message, m models.Message) {
	for i := range *list {
		if (*list)[i].ID == m.ID {
			(*list)[i] = m
			return
		}
	}
	l := *list
	i := len(l)
	for i > 0 && after(l[i-1], m) {
		i--
	}
	l = append(l, models.Message{})
	copy(l[i+1:], l[i:])
	l[i] = m
	*list = l
}

func replaceConfirmed(list []models.Message, m models.Message) {
	for i := range list {
		if list[i].ID == m.ID {
			list[i] = m
			return
		}
	}
}

func removeConfirmed(list *[]models.Message, id string) {
	l := *list
	for i := range l {
		if l[i].ID == id {
			*list = append(l[:i], l[i+1:]...)
			return
		}
	}
}

func containsUser(ids []string, uid string) bool {
	for _, id := range ids {
		if id == uid {
			return true
		}
	}
	return false
}

// after reports whether a orders after b (ts then seq).
func after(a, b models.Message) bool {
	if a.TS != b.TS {
		return a.TS > b.TS
	}
	return a.Seq > b.Seq
}
