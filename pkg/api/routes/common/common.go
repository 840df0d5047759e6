// Package common holds helpers shared by the route packages.
package common

import (
	"github.com/valyala/fasthttp"

	"github.com/samsmithyeah/flock-sub002/pkg/auth"
	"github.com/samsmithyeah/flock-sub002/pkg/store/keys"
	"github.com/samsmithyeah/flock-sub002/pkg/telemetry"
	"github.com/samsmithyeah/flock-sub002/pkg/utils"
)

// SetupHandler resolves the acting user and opens a telemetry trace.
// On failure the error response is already written; callers just
// return.
func SetupHandler(ctx *fasthttp.RequestCtx, op string) (string, *telemetry.Trace, bool) {
	user, status, msg := auth.ResolveUserFromRequestFast(ctx)
	if status != 0 {
		utils.JSONErrorFast(ctx, status, msg)
		return "", nil, false
	}
	tr := telemetry.Track(op)
	return user, tr, true
}

// ConvID extracts and validates the {convID} path param.
func ConvID(ctx *fasthttp.RequestCtx) (string, bool) {
	id, _ := ctx.UserValue("convID").(string)
	if err := keys.ValidateID(id); err != nil {
		utils.JSONErrorFast(ctx, fasthttp.StatusBadRequest, "invalid conversation id")
		return "", false
	}
	return id, true
}
