package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/valyala/fasthttp"

	"github.com/samsmithyeah/flock-sub002/pkg/config"
)

func signUser(key, userID string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(userID))
	return hex.EncodeToString(mac.Sum(nil))
}

func setSigningKeys(t *testing.T, keys ...string) {
	t.Helper()
	m := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		m[k] = struct{}{}
	}
	config.SetRuntime(&config.RuntimeConfig{SigningKeys: m})
	t.Cleanup(func() { config.SetRuntime(nil) })
}

func signedRequest(role, userID, sig, path string) *fasthttp.RequestCtx {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod("GET")
	ctx.Request.SetRequestURI(path)
	if role != "" {
		ctx.Request.Header.Set("X-Role-Name", role)
	}
	if userID != "" {
		ctx.Request.Header.Set("X-User-ID", userID)
	}
	if sig != "" {
		ctx.Request.Header.Set("X-User-Signature", sig)
	}
	return ctx
}

func TestRequireSignedUserValid(t *testing.T) {
	setSigningKeys(t, "secret-1")

	var gotUser string
	h := RequireSignedUserFast(func(ctx *fasthttp.RequestCtx) {
		gotUser, _ = ctx.UserValue("user").(string)
	})

	ctx := signedRequest("frontend", "alice", signUser("secret-1", "alice"), "/v1/conversations")
	h(ctx)
	if gotUser != "alice" {
		t.Fatalf("expected verified user alice, got %q (status %d)", gotUser, ctx.Response.StatusCode())
	}
}

func TestRequireSignedUserAnyConfiguredKey(t *testing.T) {
	// key rotation: old and new keys verify simultaneously
	setSigningKeys(t, "old-key", "new-key")

	called := false
	h := RequireSignedUserFast(func(ctx *fasthttp.RequestCtx) { called = true })
	h(signedRequest("frontend", "alice", signUser("old-key", "alice"), "/v1/conversations"))
	if !called {
		t.Fatal("signature under a rotated key must still verify")
	}
}

func TestRequireSignedUserRejectsBadSignature(t *testing.T) {
	setSigningKeys(t, "secret-1")

	h := RequireSignedUserFast(func(ctx *fasthttp.RequestCtx) {
		t.Fatal("handler must not run on invalid signature")
	})
	ctx := signedRequest("frontend", "alice", signUser("wrong-key", "alice"), "/v1/conversations")
	h(ctx)
	if ctx.Response.StatusCode() != fasthttp.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", ctx.Response.StatusCode())
	}
}

func TestRequireSignedUserRejectsMissingHeaders(t *testing.T) {
	setSigningKeys(t, "secret-1")

	h := RequireSignedUserFast(func(ctx *fasthttp.RequestCtx) {
		t.Fatal("handler must not run without signature headers")
	})
	ctx := signedRequest("frontend", "alice", "", "/v1/conversations")
	h(ctx)
	if ctx.Response.StatusCode() != fasthttp.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", ctx.Response.StatusCode())
	}
}

func TestRequireSignedUserBackendBypass(t *testing.T) {
	setSigningKeys(t, "secret-1")

	called := false
	h := RequireSignedUserFast(func(ctx *fasthttp.RequestCtx) { called = true })
	h(signedRequest("backend", "alice", "", "/v1/conversations"))
	if !called {
		t.Fatal("backend callers act without signatures")
	}
}

func TestRequireSignedUserNoKeysConfigured(t *testing.T) {
	config.SetRuntime(nil)

	h := RequireSignedUserFast(func(ctx *fasthttp.RequestCtx) {
		t.Fatal("handler must not run when no signing keys exist")
	})
	ctx := signedRequest("frontend", "alice", "deadbeef", "/v1/conversations")
	h(ctx)
	if ctx.Response.StatusCode() != fasthttp.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", ctx.Response.StatusCode())
	}
}

func TestResolveUserFromRequest(t *testing.T) {
	t.Run("verified user wins", func(t *testing.T) {
		ctx := signedRequest("frontend", "", "", "/v1/messages")
		ctx.SetUserValue("user", "alice")
		id, status, _ := ResolveUserFromRequestFast(ctx)
		if id != "alice" || status != 0 {
			t.Fatalf("got id=%q status=%d", id, status)
		}
	})

	t.Run("query user conflicting with signature is forbidden", func(t *testing.T) {
		ctx := signedRequest("frontend", "", "", "/v1/messages?user=mallory")
		ctx.SetUserValue("user", "alice")
		_, status, _ := ResolveUserFromRequestFast(ctx)
		if status != fasthttp.StatusForbidden {
			t.Fatalf("expected 403, got %d", status)
		}
	})

	t.Run("backend names the acting user", func(t *testing.T) {
		ctx := signedRequest("backend", "bob", "", "/v1/messages")
		id, status, _ := ResolveUserFromRequestFast(ctx)
		if id != "bob" || status != 0 {
			t.Fatalf("got id=%q status=%d", id, status)
		}
	})

	t.Run("frontend without verified identity is unauthorized", func(t *testing.T) {
		ctx := signedRequest("frontend", "bob", "", "/v1/messages")
		_, status, _ := ResolveUserFromRequestFast(ctx)
		if status != fasthttp.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", status)
		}
	})
}
