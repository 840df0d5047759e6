// Package feed is the in-process change feed: every committed store
// mutation is published as an Event and fanned out to per-conversation
// subscriptions. Publishers never block; a subscriber that cannot keep
// up has events dropped and the drop logged, mirroring how a remote
// change stream would resume from its own snapshot.
package feed

import (
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/samsmithyeah/flock-sub002/pkg/logger"
)

// Topic narrows a subscription to one class of change.
type Topic string

const (
	TopicMessages Topic = "messages"
	// TopicVotes carries poll-vote mutations only, so message-list
	// consumers never re-process whole messages for a vote change.
	TopicVotes  Topic = "votes"
	TopicTyping Topic = "typing"
)

// Kind classifies a change.
type Kind string

const (
	KindInserted Kind = "inserted"
	KindModified Kind = "modified"
	KindRemoved  Kind = "removed"
)

// Event is one committed change.
type Event struct {
	Conversation string          `json:"conversation"`
	Topic        Topic           `json:"topic"`
	Kind         Kind            `json:"kind"`
	Key          string          `json:"key,omitempty"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	TS           int64           `json:"ts"`
}

var (
	feedEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "flock_feed_events_total",
		Help: "Change feed events published, by topic.",
	}, []string{"topic"})
	feedDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "flock_feed_dropped_total",
		Help: "Change feed events dropped on slow subscribers.",
	})
)

func init() {
	prometheus.MustRegister(feedEvents)
	prometheus.MustRegister(feedDropped)
}

// Subscription is one attached consumer. Events arrive on C in the
// order they were published for the subscription's conversation.
type Subscription struct {
	ID           string
	Conversation string
	topics       map[Topic]struct{}
	ch           chan Event
	hub          *Hub
	cancelOnce   sync.Once
	dropped      atomic.Uint64 // Publish runs under RLock, so writes race without it
}

// C returns the event channel. It is closed by Cancel.
func (s *Subscription) C() <-chan Event { return s.ch }

// Cancel detaches the subscription and closes its channel. Events
// already buffered remain readable until drained.
func (s *Subscription) Cancel() {
	s.cancelOnce.Do(func() {
		s.hub.remove(s)
		close(s.ch)
	})
}

func (s *Subscription) wants(t Topic) bool {
	_, ok := s.topics[t]
	return ok
}

// Hub owns all subscriptions. It is constructed at app start and passed
// by reference to whatever attaches listeners; there is no package-level
// default instance.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string][]*Subscription // conversation id -> subs
	buffer int
	closed bool
}

// NewHub creates a hub whose subscriptions buffer up to buffer events.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 64
	}
	return &Hub{subs: make(map[string][]*Subscription), buffer: buffer}
}

// Subscribe attaches a consumer to one conversation for the given
// topics (all topics when none are named).
func (h *Hub) Subscribe(convID string, topics ...Topic) *Subscription {
	ts := make(map[Topic]struct{}, len(topics))
	for _, t := range topics {
		ts[t] = struct{}{}
	}
	if len(ts) == 0 {
		ts[TopicMessages] = struct{}{}
		ts[TopicVotes] = struct{}{}
		ts[TopicTyping] = struct{}{}
	}
	s := &Subscription{
		ID:           uuid.NewString(),
		Conversation: convID,
		topics:       ts,
		ch:           make(chan Event, h.buffer),
		hub:          h,
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		// hub already shut down; hand back a canceled subscription
		close(s.ch)
		return s
	}
	h.subs[convID] = append(h.subs[convID], s)
	return s
}

// Publish fans ev out to every matching subscription. Slow consumers
// are skipped, not waited on. The read lock is held through the
// non-blocking sends so Cancel cannot close a channel mid-delivery.
func (h *Hub) Publish(ev Event) {
	feedEvents.WithLabelValues(string(ev.Topic)).Inc()
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, s := range h.subs[ev.Conversation] {
		if !s.wants(ev.Topic) {
			continue
		}
		select {
		case s.ch <- ev:
		default:
			feedDropped.Inc()
			logger.Warn("feed_subscriber_dropped_event",
				"conversation", ev.Conversation, "topic", string(ev.Topic), "sub", s.ID, "dropped", s.dropped.Add(1))
		}
	}
}

// SubscriberCount reports live subscriptions for a conversation.
func (h *Hub) SubscriberCount(convID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[convID])
}

// Close cancels every subscription. Publish after Close is a no-op
// delivery-wise.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	all := make([]*Subscription, 0)
	for _, list := range h.subs {
		all = append(all, list...)
	}
	h.subs = make(map[string][]*Subscription)
	h.mu.Unlock()
	for _, s := range all {
		s.cancelOnce.Do(func() { close(s.ch) })
	}
}

func (h *Hub) remove(s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	list := h.subs[s.Conversation]
	for i, cur := range list {
		if cur == s {
			h.subs[s.Conversation] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(h.subs[s.Conversation]) == 0 {
		delete(h.subs, s.Conversation)
	}
}
