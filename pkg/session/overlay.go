package session

import (
	"sort"

	"github.com/samsmithyeah/flock-sub002/pkg/models"
)

// overlay holds the locally-pending sends for one conversation and
// merges them over the confirmed list. Entries leave the overlay when
// the confirmed record carrying their correlation id arrives; a failed
// send stays, marked, until the conversation closes. Guarded by the
// session mutex.
type overlay struct {
	pending []pendingEntry
}

type pendingEntry struct {
	msg    models.Message
	failed bool
}

func newOverlay() *overlay {
	return &overlay{}
}

// addPending records an optimistic send and returns its view entry.
func (o *overlay) addPending(msg models.Message) MessageView {
	o.pending = append(o.pending, pendingEntry{msg: msg})
	return MessageView{Message: msg, Pending: true}
}

// reconcile drops the pending entry for correlationID. Safe to call
// with ids the overlay never held.
func (o *overlay) reconcile(correlationID string) {
	if correlationID == "" {
		return
	}
	for i := range o.pending {
		if o.pending[i].msg.CorrelationID == correlationID {
			o.pending = append(o.pending[:i], o.pending[i+1:]...)
			return
		}
	}
}

// markFailed flags the pending entry so it is never rendered as sent.
func (o *overlay) markFailed(correlationID string) {
	for i := range o.pending {
		if o.pending[i].msg.CorrelationID == correlationID {
			o.pending[i].failed = true
			return
		}
	}
}

// merge produces the rendered view: confirmed plus pending,
// deduplicated by correlation id, chronologically sorted.
func (o *overlay) merge(confirmed []models.Message) []MessageView {
	out := make([]MessageView, 0, len(confirmed)+len(o.pending))
	seen := make(map[string]struct{}, len(confirmed))
	for _, m := range confirmed {
		if m.CorrelationID != "" {
			seen[m.CorrelationID] = struct{}{}
		}
		out = append(out, MessageView{Message: m})
	}
	for _, p := range o.pending {
		if _, dup := seen[p.msg.CorrelationID]; dup {
			continue
		}
		out = append(out, MessageView{Message: p.msg, Pending: !p.failed, Failed: p.failed})
	}
	sort.SliceStable(out, func(i, j int) bool { return after(out[j].Message, out[i].Message) })
	return out
}
