package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/valyala/fasthttp"

	"github.com/samsmithyeah/flock-sub002/pkg/config"
	"github.com/samsmithyeah/flock-sub002/pkg/logger"
	"github.com/samsmithyeah/flock-sub002/pkg/utils"
)

// caller role
type Role int

const (
	RoleUnauth Role = iota
	RoleFrontend
	RoleBackend
	RoleAdmin
)

// security config
type SecConfig struct {
	AllowedOrigins []string
	RPS            float64
	Burst          int
	IPWhitelist    []string
	BackendKeys    map[string]struct{}
	FrontendKeys   map[string]struct{}
	AdminKeys      map[string]struct{}
}

// RequireSignedUserFast verifies the HMAC user signature for frontend
// callers and attaches the verified user id to the request context.
func RequireSignedUserFast(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		role := strings.ToLower(string(ctx.Request.Header.Peek("X-Role-Name")))
		userID := strings.TrimSpace(string(ctx.Request.Header.Peek("X-User-ID")))
		sig := strings.TrimSpace(string(ctx.Request.Header.Peek("X-User-Signature")))

		// probes and unrecognized roles carry no user context
		if role != "frontend" && role != "backend" && role != "admin" {
			next(ctx)
			return
		}

		// backend services act on users' behalf without signatures
		if role == "backend" && sig == "" {
			next(ctx)
			return
		}

		// admin endpoints are site-wide; no user context needed
		if role == "admin" && strings.HasPrefix(string(ctx.Path()), "/admin") && sig == "" {
			next(ctx)
			return
		}

		if sig == "" || userID == "" {
			logger.Warn("missing_signature_headers", "path", string(ctx.Path()), "remote", ctx.RemoteAddr().String())
			utils.JSONErrorFast(ctx, fasthttp.StatusUnauthorized, "missing signature headers")
			return
		}

		keys := config.GetSigningKeys()
		if len(keys) == 0 {
			logger.Error("no_signing_keys_configured")
			utils.JSONErrorFast(ctx, fasthttp.StatusInternalServerError, "server misconfigured: no signing secrets available")
			return
		}

		ok := false
		for k := range keys {
			mac := hmac.New(sha256.New, []byte(k))
			mac.Write([]byte(userID))
			expected := hex.EncodeToString(mac.Sum(nil))
			if hmac.Equal([]byte(expected), []byte(sig)) {
				ok = true
				break
			}
		}
		if !ok {
			logger.Warn("invalid_signature", "user", userID, "remote", ctx.RemoteAddr().String(), "path", string(ctx.Path()))
			utils.JSONErrorFast(ctx, fasthttp.StatusUnauthorized, "invalid signature")
			return
		}

		ctx.SetUserValue("user", userID)
		next(ctx)
	}
}

func validateUser(u string) (bool, string) {
	if u == "" {
		return false, "user required"
	}
	if len(u) > 128 {
		return false, "user too long"
	}
	return true, ""
}

// ResolveUserFromRequestFast extracts the acting user id. Frontend
// callers get the signature-verified id; backend callers may name any
// user via header or query. Returns (user, status, errMsg).
func ResolveUserFromRequestFast(ctx *fasthttp.RequestCtx) (string, int, string) {
	if v := ctx.UserValue("user"); v != nil {
		if id, ok := v.(string); ok && id != "" {
			if q := string(ctx.QueryArgs().Peek("user")); q != "" && q != id {
				logger.Warn("user_mismatch_signature_query", "signature", id, "query", q, "path", string(ctx.Path()))
				return "", fasthttp.StatusForbidden, "user mismatch between signature and query param"
			}
			return id, 0, ""
		}
	}

	role := strings.ToLower(string(ctx.Request.Header.Peek("X-Role-Name")))
	if role == "backend" || role == "admin" {
		id := strings.TrimSpace(string(ctx.Request.Header.Peek("X-User-ID")))
		if id == "" {
			id = strings.TrimSpace(string(ctx.QueryArgs().Peek("user")))
		}
		if ok, msg := validateUser(id); !ok {
			return "", fasthttp.StatusBadRequest, msg
		}
		return id, 0, ""
	}

	return "", fasthttp.StatusUnauthorized, "verified user identity required"
}
