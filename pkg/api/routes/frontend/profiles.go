package frontend

import (
	"github.com/valyala/fasthttp"

	"github.com/samsmithyeah/flock-sub002/pkg/api/routes/common"
	"github.com/samsmithyeah/flock-sub002/pkg/logger"
	"github.com/samsmithyeah/flock-sub002/pkg/utils"
)

type profileBatchRequest struct {
	IDs []string `json:"ids"`
}

// ProfileBatch resolves a set of user ids to profiles through the
// shared cache; cold ids are chunked to the store's batch limit.
func ProfileBatch(ctx *fasthttp.RequestCtx) {
	user, tr, ok := common.SetupHandler(ctx, "frontend.profile_batch")
	if !ok {
		return
	}
	defer tr.Finish()

	var req profileBatchRequest
	if err := utils.DecodeJSONBody(ctx, &req); err != nil {
		utils.JSONErrorFast(ctx, fasthttp.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.IDs) == 0 {
		_ = utils.JSONWriteFast(ctx, fasthttp.StatusOK, map[string]interface{}{"profiles": []interface{}{}})
		return
	}
	s := sessions.Open(user)
	profiles, err := s.FetchProfiles(req.IDs)
	if err != nil {
		logger.Warn("profile_batch_failed", "user", user, "ids", len(req.IDs), "error", err)
		utils.JSONErrorFast(ctx, fasthttp.StatusInternalServerError, "failed to resolve profiles")
		return
	}
	_ = utils.JSONWriteFast(ctx, fasthttp.StatusOK, map[string]interface{}{"profiles": profiles})
}
