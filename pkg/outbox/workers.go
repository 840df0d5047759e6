package outbox

import (
	"context"
	"encoding/json"

	"github.com/samsmithyeah/flock-sub002/pkg/logger"
	"github.com/samsmithyeah/flock-sub002/pkg/models"
	"github.com/samsmithyeah/flock-sub002/pkg/telemetry"
)

// worker drains one shard, so the shard's conversations commit in
// admission order.
func (q *Queue) worker(ctx context.Context, id int, ops <-chan *Op) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			// drain what is already admitted so Done always fires
			for {
				select {
				case op, ok := <-ops:
					if !ok {
						return
					}
					queueDepth.Dec()
					q.process(op)
				default:
					return
				}
			}
		case op, ok := <-ops:
			if !ok {
				return
			}
			queueDepth.Dec()
			q.process(op)
		}
	}
}

func (q *Queue) process(op *Op) {
	tr := telemetry.Track("outbox.commit")
	defer tr.Finish()
	defer op.release()

	var msg models.Message
	if err := json.Unmarshal(op.Payload.B, &msg); err != nil {
		sendsFailed.Inc()
		logger.Error("outbox_decode_failed", "conversation", op.Conversation, "error", err)
		if op.Done != nil {
			op.Done(nil, err)
		}
		return
	}
	tr.Mark("decoded")

	committed, err := q.commit(op.Conversation, &msg)
	if err != nil {
		sendsFailed.Inc()
		logger.Warn("outbox_commit_failed", "conversation", op.Conversation, "correlation", msg.CorrelationID, "error", err)
		if op.Done != nil {
			op.Done(nil, err)
		}
		return
	}
	sendsCommitted.Inc()
	if op.Done != nil {
		op.Done(committed, nil)
	}
}
