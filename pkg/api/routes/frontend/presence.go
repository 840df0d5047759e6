package frontend

import (
	"github.com/valyala/fasthttp"

	"github.com/samsmithyeah/flock-sub002/pkg/api/routes/common"
	"github.com/samsmithyeah/flock-sub002/pkg/logger"
	"github.com/samsmithyeah/flock-sub002/pkg/utils"
)

type typingRequest struct {
	Text string `json:"text"`
}

// Typing feeds the caller's typing debouncer with the current input
// text. The debounced indicator writes happen server-side; clients
// just report keystrokes.
func Typing(ctx *fasthttp.RequestCtx) {
	user, tr, ok := common.SetupHandler(ctx, "frontend.typing")
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

	var req typingRequest
	if err := utils.DecodeJSONBody(ctx, &req); err != nil {
		utils.JSONErrorFast(ctx, fasthttp.StatusBadRequest, "invalid JSON body")
		return
	}
	s.OnTextChanged(convID, req.Text)
	ctx.SetStatusCode(fasthttp.StatusNoContent)
}

// TypingUsers lists the other participants currently typing.
func TypingUsers(ctx *fasthttp.RequestCtx) {
	user, tr, ok := common.SetupHandler(ctx, "frontend.typing_users")
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
	_ = utils.JSONWriteFast(ctx, fasthttp.StatusOK, map[string]interface{}{"typing": s.TypingUsers(convID)})
}

// MarkRead advances the caller's read watermark for the conversation.
func MarkRead(ctx *fasthttp.RequestCtx) {
	user, tr, ok := common.SetupHandler(ctx, "frontend.mark_read")
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
	if err := s.MarkRead(convID); err != nil {
		logger.Warn("mark_read_failed", "user", user, "conversation", convID, "error", err)
		utils.JSONErrorFast(ctx, fasthttp.StatusInternalServerError, "failed to mark read")
		return
	}
	_ = utils.JSONWriteFast(ctx, fasthttp.StatusOK, map[string]string{"status": "read"})
}
