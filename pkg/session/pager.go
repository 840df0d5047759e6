package session

import (
	"errors"

	"github.com/samsmithyeah/flock-sub002/pkg/logger"
	"github.com/samsmithyeah/flock-sub002/pkg/store"
	"github.com/samsmithyeah/flock-sub002/pkg/store/pagination"
)

// pager tracks the backwards scan through one conversation's history.
// The loading flag is the only cross-call mutual exclusion the session
// layer has: one fetch per conversation at a time.
type pager struct {
	pageSize int
	cursor   string
	hasMore  bool
	loading  bool
	fetched  bool // first page not yet loaded when false
}

func newPager(pageSize int) *pager {
	if pageSize <= 0 {
		pageSize = pagination.MessagePageSize
	}
	return &pager{pageSize: pageSize, hasMore: true}
}

// LoadEarlier fetches the next older page for convID and prepends it to
// the view. Returns false without a query when a fetch is already in
// flight or no older history remains.
func (s *Session) LoadEarlier(convID string) bool {
	s.mu.Lock()
	cs, ok := s.convs[convID]
	if !ok {
		s.mu.Unlock()
		return false
	}
	p := cs.pager
	if p.loading || (p.fetched && !p.hasMore) {
		s.mu.Unlock()
		return false
	}
	p.loading = true
	cursor, limit := p.cursor, p.pageSize
	s.mu.Unlock()

	// membership is re-checked per fetch: revocation after open must
	// stop history reads, not just feed deliveries
	var page *store.MessagePage
	_, err := s.backend.RequireParticipant(convID, s.User)
	if err == nil {
		page, err = s.backend.ListMessagesBefore(convID, cursor, limit)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// conversation may have been closed while the fetch ran
	cs2, still := s.convs[convID]
	if !still || cs2.pager != p {
		return false
	}
	p.loading = false
	if errors.Is(err, store.ErrNotParticipant) {
		// terminal and silent, like the listener: detach from a
		// separate goroutine since CloseConversation drains the pump
		go s.CloseConversation(convID)
		logger.Debug("pager_detached_permission", "user", s.User, "conversation", convID)
		return false
	}
	if err != nil {
		logger.Warn("load_earlier_failed", "user", s.User, "conversation", convID, "error", err)
		s.notify(Notice{Event: "load_earlier_failed", Conversation: convID, Detail: err.Error()})
		return false
	}
	p.fetched = true
	p.hasMore = page.HasMore
	if page.NextCursor != "" {
		p.cursor = page.NextCursor
	}
	// page arrives newest-first; walk it forward to prepend in
	// chronological order
	for _, m := range page.Messages {
		insertConfirmed(&cs2.confirmed, m)
		cs2.overlay.reconcile(m.CorrelationID)
	}
	logger.Debug("page_loaded", "user", s.User, "conversation", convID, "count", len(page.Messages), "has_more", p.hasMore)
	return len(page.Messages) > 0
}
