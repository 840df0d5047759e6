package frontend

import (
	"errors"

	"github.com/valyala/fasthttp"

	"github.com/samsmithyeah/flock-sub002/pkg/api/routes/common"
	"github.com/samsmithyeah/flock-sub002/pkg/logger"
	"github.com/samsmithyeah/flock-sub002/pkg/session"
	"github.com/samsmithyeah/flock-sub002/pkg/store"
	"github.com/samsmithyeah/flock-sub002/pkg/store/pagination"
	"github.com/samsmithyeah/flock-sub002/pkg/utils"
)

type openConversationRequest struct {
	Kind         string   `json:"kind"`
	Peer         string   `json:"peer,omitempty"`
	Crew         string   `json:"crew,omitempty"`
	Date         string   `json:"date,omitempty"`
	Participants []string `json:"participants,omitempty"`
}

// OpenConversation resolves the canonical conversation id from the
// request (pair or crew+date), creates the conversation on first use
// and attaches the caller's session to its change feed.
func OpenConversation(ctx *fasthttp.RequestCtx) {
	user, tr, ok := common.SetupHandler(ctx, "frontend.open_conversation")
	if !ok {
		return
	}
	defer tr.Finish()

	var req openConversationRequest
	if err := utils.DecodeJSONBody(ctx, &req); err != nil {
		utils.JSONErrorFast(ctx, fasthttp.StatusBadRequest, "invalid JSON body")
		return
	}

	var convID string
	var participants []string
	switch req.Kind {
	case session.KindDirect:
		if req.Peer == "" {
			utils.JSONErrorFast(ctx, fasthttp.StatusBadRequest, "peer required for direct conversation")
			return
		}
		convID = session.DirectKey(user, req.Peer)
		participants = []string{user, req.Peer}
	case session.KindCrewDate:
		if req.Crew == "" || req.Date == "" {
			utils.JSONErrorFast(ctx, fasthttp.StatusBadRequest, "crew and date required")
			return
		}
		convID = session.CrewDateKey(req.Crew, req.Date)
		participants = req.Participants
	default:
		utils.JSONErrorFast(ctx, fasthttp.StatusBadRequest, "unknown conversation kind")
		return
	}
	tr.Mark("resolved")

	s := sessions.Open(user)
	conv, err := s.OpenConversation(convID, req.Kind, participants)
	if err != nil {
		if errors.Is(err, store.ErrNotParticipant) {
			utils.JSONErrorFast(ctx, fasthttp.StatusForbidden, "not a participant")
			return
		}
		logger.Warn("open_conversation_failed", "user", user, "conversation", convID, "error", err)
		utils.JSONErrorFast(ctx, fasthttp.StatusInternalServerError, "failed to open conversation")
		return
	}
	_ = utils.JSONWriteFast(ctx, fasthttp.StatusOK, conv)
}

// ListConversations returns one page of the caller's conversations
// newest-first with unread counts. The cursor resumes after the last
// conversation of the previous page.
func ListConversations(ctx *fasthttp.RequestCtx) {
	user, tr, ok := common.SetupHandler(ctx, "frontend.list_conversations")
	if !ok {
		return
	}
	defer tr.Finish()

	page := pagination.ParsePaginationRequest(ctx)
	cp, err := pagination.DecodeCursor(page.Cursor)
	if err != nil {
		utils.JSONErrorFast(ctx, fasthttp.StatusBadRequest, "invalid cursor")
		return
	}

	views, hasMore, err := sessions.Conversations(user, cp.LastConversationKey, page.Limit)
	if err != nil {
		logger.Warn("list_conversations_failed", "user", user, "error", err)
		utils.JSONErrorFast(ctx, fasthttp.StatusInternalServerError, "failed to list conversations")
		return
	}
	next := ""
	if hasMore && len(views) > 0 {
		next = pagination.EncodeCursor(pagination.CursorPayload{LastConversationKey: views[len(views)-1].ID})
	}
	_ = utils.JSONWriteFast(ctx, fasthttp.StatusOK, map[string]interface{}{
		"conversations": views,
		"pagination":    pagination.NewPaginationResponse(page.Limit, hasMore, next, len(views)),
	})
}

// CloseConversation detaches the caller's session from the
// conversation.
func CloseConversation(ctx *fasthttp.RequestCtx) {
	user, tr, ok := common.SetupHandler(ctx, "frontend.close_conversation")
	if !ok {
		return
	}
	defer tr.Finish()
	convID, ok := common.ConvID(ctx)
	if !ok {
		return
	}
	if s := sessions.Get(user); s != nil {
		s.CloseConversation(convID)
	}
	_ = utils.JSONWriteFast(ctx, fasthttp.StatusOK, map[string]string{"status": "closed"})
}
