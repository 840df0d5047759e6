package session

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/samsmithyeah/flock-sub002/pkg/cache"
	"github.com/samsmithyeah/flock-sub002/pkg/logger"
	"github.com/samsmithyeah/flock-sub002/pkg/models"
	"github.com/samsmithyeah/flock-sub002/pkg/store"
)

var activeSessions = prometheus.NewGauge(prometheus.GaugeOpts{
	Name: "flock_sessions_active",
	Help: "Open user sessions.",
})

func init() {
	prometheus.MustRegister(activeSessions)
}

// Config holds the session runtime knobs.
type Config struct {
	PageSize          int
	ProfileBatchLimit int
	TypingIdle        time.Duration
	CacheTTL          time.Duration
}

// Manager owns every live session plus the shared profile cache. It is
// constructed once at app start and passed by reference; nothing here
// is a package-level singleton.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session

	backend  Backend
	sender   Sender
	feed     Feed
	cache    *cache.Cache
	profiles *profileFetcher
	cfg      Config
}

// NewManager wires the runtime. backend/sender/feed are the production
// store, outbox queue and feed hub; tests pass fakes.
func NewManager(backend Backend, sender Sender, fd Feed, cfg Config) *Manager {
	c := cache.New(cfg.CacheTTL)
	return &Manager{
		sessions: make(map[string]*Session),
		backend:  backend,
		sender:   sender,
		feed:     fd,
		cache:    c,
		profiles: newProfileFetcher(backend.GetProfiles, c, cfg.ProfileBatchLimit),
		cfg:      cfg,
	}
}

// Cache exposes the shared TTL cache (the sweeper compacts it).
func (m *Manager) Cache() *cache.Cache { return m.cache }

// Open returns the user's session, creating it on first use.
func (m *Manager) Open(userID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[userID]; ok {
		return s
	}
	s := newSession(userID, m.backend, m.sender, m.feed, m.profiles, m.cfg)
	m.sessions[userID] = s
	activeSessions.Inc()
	logger.Info("session_opened", "user", userID)
	return s
}

// Get returns the user's session or nil.
func (m *Manager) Get(userID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[userID]
}

// Close ends one user's session.
func (m *Manager) Close(userID string) {
	m.mu.Lock()
	s, ok := m.sessions[userID]
	if ok {
		delete(m.sessions, userID)
	}
	m.mu.Unlock()
	if ok {
		s.Close()
		activeSessions.Dec()
		logger.Info("session_closed", "user", userID)
	}
}

// CloseAll ends every session; called on shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	all := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()
	for _, s := range all {
		s.Close()
		activeSessions.Dec()
	}
}

// Count reports live sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Conversations lists the user's conversations newest-first with
// unread counts, resuming after afterConvID when set. limit <= 0 means
// no cap. A cursor pointing at a conversation that has since reordered
// or vanished restarts from the top; the listing is a moving window,
// not a snapshot. Unread counts are computed for the served page only.
func (m *Manager) Conversations(userID, afterConvID string, limit int) ([]ConversationView, bool, error) {
	convs, err := m.backend.ListUserConversations(userID)
	if err != nil {
		return nil, false, err
	}
	if afterConvID != "" {
		for i, c := range convs {
			if c.ID == afterConvID {
				convs = convs[i+1:]
				break
			}
		}
	}
	hasMore := false
	if limit > 0 && len(convs) > limit {
		convs = convs[:limit]
		hasMore = true
	}
	out := make([]ConversationView, 0, len(convs))
	for _, c := range convs {
		unread, err := m.backend.UnreadCount(c.ID, userID)
		if err != nil {
			logger.Warn("unread_count_failed", "conversation", c.ID, "user", userID, "error", err)
			unread = 0
		}
		out = append(out, ConversationView{Conversation: *c, Unread: unread})
	}
	return out, hasMore, nil
}

// ConversationView is one directory listing entry.
type ConversationView struct {
	models.Conversation
	Unread int `json:"unread"`
}

// StoreBackend adapts the store package to the Backend interface.
type StoreBackend struct{}

func (StoreBackend) EnsureConversation(convID, kind string, participants []string) (*models.Conversation, error) {
	return store.EnsureConversation(convID, kind, participants)
}
func (StoreBackend) RequireParticipant(convID, userID string) (*models.Conversation, error) {
	return store.RequireParticipant(convID, userID)
}
func (StoreBackend) ListUserConversations(userID string) ([]*models.Conversation, error) {
	return store.ListUserConversations(userID)
}
func (StoreBackend) ListMessagesBefore(convID, cursor string, limit int) (*store.MessagePage, error) {
	return store.ListMessagesBefore(convID, cursor, limit)
}
func (StoreBackend) CastVote(convID, userID, msgID string, option int) (*models.Message, error) {
	return store.CastVote(convID, userID, msgID, option)
}
func (StoreBackend) SetTyping(convID, userID string, typing bool) error {
	return store.SetTyping(convID, userID, typing)
}
func (StoreBackend) SetRead(convID, userID string, lastReadTS int64) error {
	return store.SetRead(convID, userID, lastReadTS)
}
func (StoreBackend) UnreadCount(convID, userID string) (int, error) {
	return store.UnreadCount(convID, userID)
}
func (StoreBackend) GetProfiles(ids []string) (map[string]*models.Profile, error) {
	return store.GetProfiles(ids)
}
