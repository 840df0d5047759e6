// Package outbox is the bounded admission queue between the HTTP send
// path and the store. Senders enqueue an encoded message and return
// immediately; a worker pool drains the queue and commits through the
// store, invoking the per-op Done callback with the confirmed record or
// the failure. Backpressure is explicit: a full queue rejects rather
// than blocks, and a memory sensor can pause intake.
package outbox

import (
	"errors"

	"github.com/valyala/bytebufferpool"

	"github.com/samsmithyeah/flock-sub002/pkg/models"
)

var (
	// ErrQueueFull signals admission backpressure; callers surface it as
	// a retryable failure.
	ErrQueueFull = errors.New("outbox queue full")
	// ErrQueueClosed is returned after Shutdown.
	ErrQueueClosed = errors.New("outbox closed")
	// ErrQueuePaused is returned while the memory sensor holds intake.
	ErrQueuePaused = errors.New("outbox intake paused")
)

// DoneFunc delivers the outcome of one queued send. msg is the
// committed record (server-assigned ts/seq) on success, nil on failure.
type DoneFunc func(msg *models.Message, err error)

// Op is one queued send. Payload is a pooled buffer holding the
// JSON-encoded message; workers return it to the pool after commit.
type Op struct {
	Conversation string
	Payload      *bytebufferpool.ByteBuffer
	Done         DoneFunc
}

func (o *Op) release() {
	if o.Payload != nil {
		bytebufferpool.Put(o.Payload)
		o.Payload = nil
	}
}
