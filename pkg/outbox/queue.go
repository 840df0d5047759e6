package outbox

import (
	"context"
	"encoding/json"
	"hash/fnv"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/valyala/bytebufferpool"

	"github.com/samsmithyeah/flock-sub002/pkg/logger"
	"github.com/samsmithyeah/flock-sub002/pkg/models"
)

var (
	queueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "flock_outbox_depth",
		Help: "Queued sends awaiting commit.",
	})
	queueRejected = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "flock_outbox_rejected_total",
		Help: "Sends rejected by a full or paused queue.",
	})
	sendsCommitted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "flock_outbox_committed_total",
		Help: "Sends committed by outbox workers.",
	})
	sendsFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "flock_outbox_failed_total",
		Help: "Sends that failed at commit.",
	})
)

func init() {
	prometheus.MustRegister(queueDepth, queueRejected, sendsCommitted, sendsFailed)
}

// Committer commits one decoded message. Wired to store.AppendMessage
// in production; tests substitute fakes.
type Committer func(convID string, msg *models.Message) (*models.Message, error)

// Queue is the bounded admission queue plus its worker pool. Ops are
// sharded by conversation id, one channel per worker, so commits for a
// conversation run on one worker in admission order.
type Queue struct {
	shards []chan *Op
	commit Committer
	paused atomic.Bool
	closed atomic.Bool
	wg     sync.WaitGroup
}

// New builds a queue of the given total capacity and worker count.
func New(capacity, workers int, commit Committer) *Queue {
	if capacity <= 0 {
		capacity = 1024
	}
	if workers <= 0 {
		workers = 4
	}
	per := (capacity + workers - 1) / workers
	shards := make([]chan *Op, workers)
	for i := range shards {
		shards[i] = make(chan *Op, per)
	}
	return &Queue{
		shards: shards,
		commit: commit,
	}
}

// shard maps a conversation id to its worker channel.
func (q *Queue) shard(convID string) chan *Op {
	h := fnv.New32a()
	h.Write([]byte(convID))
	return q.shards[h.Sum32()%uint32(len(q.shards))]
}

// Start launches one worker per shard. Workers exit when ctx is
// cancelled or the queue is closed and drained.
func (q *Queue) Start(ctx context.Context) {
	for i, ops := range q.shards {
		q.wg.Add(1)
		go q.worker(ctx, i, ops)
	}
	logger.Info("outbox_started", "workers", len(q.shards), "capacity", len(q.shards)*cap(q.shards[0]))
}

// Enqueue encodes msg into a pooled buffer and admits it. done is
// invoked exactly once, from a worker goroutine, unless Enqueue itself
// returns an error.
func (q *Queue) Enqueue(convID string, msg *models.Message, done DoneFunc) error {
	if q.closed.Load() {
		return ErrQueueClosed
	}
	if q.paused.Load() {
		queueRejected.Inc()
		return ErrQueuePaused
	}
	buf := bytebufferpool.Get()
	if err := json.NewEncoder(buf).Encode(msg); err != nil {
		bytebufferpool.Put(buf)
		return err
	}
	op := &Op{Conversation: convID, Payload: buf, Done: done}
	select {
	case q.shard(convID) <- op:
		queueDepth.Inc()
		return nil
	default:
		op.release()
		queueRejected.Inc()
		logger.Warn("outbox_full", "conversation", convID)
		return ErrQueueFull
	}
}

// Pause holds intake; queued ops keep draining.
func (q *Queue) Pause() {
	if q.paused.CompareAndSwap(false, true) {
		logger.Warn("outbox_paused")
	}
}

// Resume reopens intake.
func (q *Queue) Resume() {
	if q.paused.CompareAndSwap(true, false) {
		logger.Info("outbox_resumed")
	}
}

// Depth returns the current queue occupancy across all shards.
func (q *Queue) Depth() int {
	n := 0
	for _, ops := range q.shards {
		n += len(ops)
	}
	return n
}

// Shutdown stops intake, drains queued ops and waits for workers.
func (q *Queue) Shutdown() {
	if !q.closed.CompareAndSwap(false, true) {
		return
	}
	for _, ops := range q.shards {
		close(ops)
	}
	q.wg.Wait()
	logger.Info("outbox_stopped")
}
