package locks

import (
	"sync"
)

// Map hands out one mutex per conversation id. Append and vote paths
// take the conversation's lock so timestamp/sequence assignment and
// poll read-modify-write cycles are serialized per conversation.
type Map struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewMap() *Map {
	return &Map{locks: make(map[string]*sync.Mutex)}
}

// Get returns the mutex for the given conversation (creates if needed).
func (m *Map) Get(convID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.locks[convID]; ok {
		return l
	}
	l := &sync.Mutex{}
	m.locks[convID] = l
	return l
}
