// Package backend holds routes for trusted backend services: user
// signature minting and profile upserts.
package backend

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/samsmithyeah/flock-sub002/pkg/config"
	"github.com/samsmithyeah/flock-sub002/pkg/logger"
	"github.com/samsmithyeah/flock-sub002/pkg/models"
	"github.com/samsmithyeah/flock-sub002/pkg/store"
	"github.com/samsmithyeah/flock-sub002/pkg/store/keys"
	"github.com/samsmithyeah/flock-sub002/pkg/utils"
)

func isBackendRequest(ctx *fasthttp.RequestCtx) bool {
	role := strings.ToLower(string(ctx.Request.Header.Peek("X-Role-Name")))
	return role == "backend" || role == "admin"
}

func getSigningKey() (string, error) {
	ks := config.GetSigningKeys()
	for k := range ks {
		return k, nil
	}
	return "", fmt.Errorf("no signing keys configured")
}

// Sign mints an X-User-Signature for a user id so frontend clients can
// act as that user. Backend callers only.
func Sign(ctx *fasthttp.RequestCtx) {
	if !isBackendRequest(ctx) {
		logger.Warn("sign_forbidden", "remote", ctx.RemoteAddr().String())
		utils.JSONErrorFast(ctx, fasthttp.StatusForbidden, "forbidden")
		return
	}

	var payload struct {
		UserID string `json:"userId"`
	}
	if err := utils.DecodeJSONBody(ctx, &payload); err != nil {
		utils.JSONErrorFast(ctx, fasthttp.StatusBadRequest, "invalid JSON payload")
		return
	}
	if err := keys.ValidateUserID(payload.UserID); err != nil {
		utils.JSONErrorFast(ctx, fasthttp.StatusBadRequest, fmt.Sprintf("invalid user ID: %s", err.Error()))
		return
	}

	signingKey, err := getSigningKey()
	if err != nil {
		logger.Error("signing_key_unavailable", "error", err)
		utils.JSONErrorFast(ctx, fasthttp.StatusInternalServerError, err.Error())
		return
	}

	mac := hmac.New(sha256.New, []byte(signingKey))
	mac.Write([]byte(payload.UserID))
	sig := hex.EncodeToString(mac.Sum(nil))

	_ = utils.JSONWriteFast(ctx, fasthttp.StatusOK, map[string]string{"userId": payload.UserID, "signature": sig})
}

// UpsertProfile writes a user profile document. Backend callers only;
// profiles originate from the account system, not from chat clients.
func UpsertProfile(ctx *fasthttp.RequestCtx) {
	if !isBackendRequest(ctx) {
		utils.JSONErrorFast(ctx, fasthttp.StatusForbidden, "forbidden")
		return
	}
	userID, _ := ctx.UserValue("userID").(string)
	if err := keys.ValidateUserID(userID); err != nil {
		utils.JSONErrorFast(ctx, fasthttp.StatusBadRequest, "invalid user id")
		return
	}

	var p models.Profile
	if err := utils.DecodeJSONBody(ctx, &p); err != nil {
		utils.JSONErrorFast(ctx, fasthttp.StatusBadRequest, "invalid JSON body")
		return
	}
	p.ID = userID
	p.UpdatedTS = time.Now().UnixNano()
	if err := store.SaveProfile(&p); err != nil {
		logger.Warn("profile_upsert_failed", "user", userID, "error", err)
		utils.JSONErrorFast(ctx, fasthttp.StatusInternalServerError, "failed to save profile")
		return
	}
	_ = utils.JSONWriteFast(ctx, fasthttp.StatusOK, &p)
}
