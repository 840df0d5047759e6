package frontend

import (
	"errors"

	"github.com/valyala/fasthttp"

	"github.com/samsmithyeah/flock-sub002/pkg/api/routes/common"
	"github.com/samsmithyeah/flock-sub002/pkg/logger"
	"github.com/samsmithyeah/flock-sub002/pkg/models"
	"github.com/samsmithyeah/flock-sub002/pkg/outbox"
	"github.com/samsmithyeah/flock-sub002/pkg/session"
	"github.com/samsmithyeah/flock-sub002/pkg/store"
	"github.com/samsmithyeah/flock-sub002/pkg/utils"
)

// requireSession returns the caller's session with convID open;
// writes the error response when the conversation is not open.
func requireSession(ctx *fasthttp.RequestCtx, user string) *session.Session {
	s := sessions.Get(user)
	if s == nil {
		utils.JSONErrorFast(ctx, fasthttp.StatusConflict, "no open session; open the conversation first")
		return nil
	}
	return s
}

// ListMessages returns the merged view (confirmed plus pending
// overlay) for an open conversation.
func ListMessages(ctx *fasthttp.RequestCtx) {
	user, tr, ok := common.SetupHandler(ctx, "frontend.list_messages")
	if !ok {
		return
	}
	defer tr.Finish()
	convID, ok := common.ConvID(ctx)
	if !ok {
		return
	}
	s := requireSession(ctx, user)
	if s == nil {
		return
	}
	views := s.Messages(convID)
	_ = utils.JSONWriteFast(ctx, fasthttp.StatusOK, map[string]interface{}{
		"messages": views,
		"has_more": s.HasMore(convID),
	})
}

// LoadEarlier pulls the next older history page into the view.
// Returns loaded=false without querying when a fetch is in flight or
// no older history remains.
func LoadEarlier(ctx *fasthttp.RequestCtx) {
	user, tr, ok := common.SetupHandler(ctx, "frontend.load_earlier")
	if !ok {
		return
	}
	defer tr.Finish()
	convID, ok := common.ConvID(ctx)
	if !ok {
		return
	}
	s := requireSession(ctx, user)
	if s == nil {
		return
	}
	loaded := s.LoadEarlier(convID)
	_ = utils.JSONWriteFast(ctx, fasthttp.StatusOK, map[string]interface{}{
		"loaded":   loaded,
		"has_more": s.HasMore(convID),
	})
}

type sendRequest struct {
	Text          string       `json:"text,omitempty"`
	Image         string       `json:"image,omitempty"`
	Poll          *models.Poll `json:"poll,omitempty"`
	CorrelationID string       `json:"correlation_id,omitempty"`
}

// SendMessage admits an optimistic send and acknowledges immediately
// with the pending entry; confirmation arrives on the stream.
func SendMessage(ctx *fasthttp.RequestCtx) {
	user, tr, ok := common.SetupHandler(ctx, "frontend.send_message")
	if !ok {
		return
	}
	defer tr.Finish()
	convID, ok := common.ConvID(ctx)
	if !ok {
		return
	}
	s := requireSession(ctx, user)
	if s == nil {
		return
	}

	var req sendRequest
	if err := utils.DecodeJSONBody(ctx, &req); err != nil {
		utils.JSONErrorFast(ctx, fasthttp.StatusBadRequest, "invalid JSON body")
		return
	}
	view, err := s.Send(convID, models.Message{
		Text:          req.Text,
		Image:         req.Image,
		Poll:          req.Poll,
		CorrelationID: req.CorrelationID,
	})
	if err != nil {
		switch {
		case errors.Is(err, session.ErrValidation):
			utils.JSONErrorFast(ctx, fasthttp.StatusBadRequest, err.Error())
		case errors.Is(err, outbox.ErrQueueFull), errors.Is(err, outbox.ErrQueuePaused):
			utils.JSONErrorFast(ctx, fasthttp.StatusServiceUnavailable, "send queue saturated, retry")
		default:
			logger.Warn("send_message_failed", "user", user, "conversation", convID, "error", err)
			utils.JSONErrorFast(ctx, fasthttp.StatusInternalServerError, "failed to send message")
		}
		return
	}
	tr.Mark("enqueued")
	_ = utils.JSONWriteFast(ctx, fasthttp.StatusAccepted, view)
}

type voteRequest struct {
	Option int `json:"option"`
}

// Vote toggles or moves the caller's poll vote on one message.
func Vote(ctx *fasthttp.RequestCtx) {
	user, tr, ok := common.SetupHandler(ctx, "frontend.vote")
	if !ok {
		return
	}
	defer tr.Finish()
	convID, ok := common.ConvID(ctx)
	if !ok {
		return
	}
	msgID, _ := ctx.UserValue("msgID").(string)
	if msgID == "" {
		utils.JSONErrorFast(ctx, fasthttp.StatusBadRequest, "message id required")
		return
	}
	s := requireSession(ctx, user)
	if s == nil {
		return
	}

	var req voteRequest
	if err := utils.DecodeJSONBody(ctx, &req); err != nil {
		utils.JSONErrorFast(ctx, fasthttp.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.Vote(convID, msgID, req.Option); err != nil {
		switch {
		case errors.Is(err, session.ErrValidation):
			utils.JSONErrorFast(ctx, fasthttp.StatusBadRequest, err.Error())
		case errors.Is(err, store.ErrNotParticipant):
			utils.JSONErrorFast(ctx, fasthttp.StatusForbidden, "forbidden")
		case store.IsNotFound(err):
			utils.JSONErrorFast(ctx, fasthttp.StatusNotFound, "message not found")
		default:
			logger.Warn("vote_failed", "user", user, "conversation", convID, "message", msgID, "error", err)
			utils.JSONErrorFast(ctx, fasthttp.StatusInternalServerError, "failed to apply vote")
		}
		return
	}
	_ = utils.JSONWriteFast(ctx, fasthttp.StatusOK, map[string]string{"status": "applied"})
}
