package feed

import (
	"sync"
	"testing"
	"time"
)

func publishN(h *Hub, conv string, topic Topic, n int) {
	for i := 0; i < n; i++ {
		h.Publish(Event{Conversation: conv, Topic: topic, Kind: KindInserted, TS: int64(i)})
	}
}

func TestHubFanOut(t *testing.T) {
	h := NewHub(8)
	a := h.Subscribe("conv")
	b := h.Subscribe("conv")
	other := h.Subscribe("elsewhere")
	defer a.Cancel()
	defer b.Cancel()
	defer other.Cancel()

	publishN(h, "conv", TopicMessages, 3)

	for _, s := range []*Subscription{a, b} {
		for i := 0; i < 3; i++ {
			select {
			case ev := <-s.C():
				if ev.Conversation != "conv" || ev.TS != int64(i) {
					t.Fatalf("unexpected event %+v", ev)
				}
			case <-time.After(time.Second):
				t.Fatal("event not delivered")
			}
		}
	}
	select {
	case ev := <-other.C():
		t.Fatalf("event leaked across conversations: %+v", ev)
	default:
	}
}

func TestHubTopicFilter(t *testing.T) {
	h := NewHub(8)
	votesOnly := h.Subscribe("conv", TopicVotes)
	defer votesOnly.Cancel()

	h.Publish(Event{Conversation: "conv", Topic: TopicMessages, TS: 1})
	h.Publish(Event{Conversation: "conv", Topic: TopicVotes, TS: 2})

	select {
	case ev := <-votesOnly.C():
		if ev.Topic != TopicVotes {
			t.Fatalf("filter passed %s", ev.Topic)
		}
	case <-time.After(time.Second):
		t.Fatal("vote event not delivered")
	}
	select {
	case ev := <-votesOnly.C():
		t.Fatalf("unexpected second event %+v", ev)
	default:
	}
}

func TestHubSlowSubscriberDrops(t *testing.T) {
	h := NewHub(2)
	s := h.Subscribe("conv")
	defer s.Cancel()

	// publisher must never block, even with the buffer full
	done := make(chan struct{})
	go func() {
		publishN(h, "conv", TopicMessages, 10)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}

	// only the buffered prefix survives
	n := 0
	for {
		select {
		case <-s.C():
			n++
			continue
		default:
		}
		break
	}
	if n != 2 {
		t.Fatalf("expected 2 buffered events, got %d", n)
	}
}

func TestDropCountSurvivesConcurrentPublish(t *testing.T) {
	h := NewHub(1)
	s := h.Subscribe("conv")
	defer s.Cancel()

	// fill the buffer so every concurrent publish below is a drop
	h.Publish(Event{Conversation: "conv", Topic: TopicMessages, Kind: KindInserted})

	const publishers, each = 8, 50
	var wg sync.WaitGroup
	wg.Add(publishers)
	for i := 0; i < publishers; i++ {
		go func() {
			defer wg.Done()
			publishN(h, "conv", TopicMessages, each)
		}()
	}
	wg.Wait()

	if got := s.dropped.Load(); got != publishers*each {
		t.Fatalf("expected %d drops, got %d", publishers*each, got)
	}
}

func TestSubscriptionCancel(t *testing.T) {
	h := NewHub(4)
	s := h.Subscribe("conv")
	if got := h.SubscriberCount("conv"); got != 1 {
		t.Fatalf("expected 1 subscriber, got %d", got)
	}
	s.Cancel()
	s.Cancel() // idempotent
	if got := h.SubscriberCount("conv"); got != 0 {
		t.Fatalf("expected 0 subscribers, got %d", got)
	}
	if _, open := <-s.C(); open {
		t.Fatal("channel should be closed after cancel")
	}
}

func TestHubClose(t *testing.T) {
	h := NewHub(4)
	s := h.Subscribe("conv")
	h.Close()
	if _, open := <-s.C(); open {
		t.Fatal("close must cancel live subscriptions")
	}
	// subscribing after close hands back a canceled subscription
	late := h.Subscribe("conv")
	if _, open := <-late.C(); open {
		t.Fatal("post-close subscription must be canceled")
	}
	// publish after close must not panic
	h.Publish(Event{Conversation: "conv", Topic: TopicMessages})
}
