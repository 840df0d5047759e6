package router

import (
	"testing"

	"github.com/valyala/fasthttp"
)

func dispatch(r *Router, method, path string) *fasthttp.RequestCtx {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(path)
	r.Handler(ctx)
	return ctx
}

func TestStaticRoute(t *testing.T) {
	r := New()
	hit := false
	r.GET("/healthz", func(ctx *fasthttp.RequestCtx) {
		hit = true
		ctx.SetStatusCode(fasthttp.StatusOK)
	})

	ctx := dispatch(r, "GET", "/healthz")
	if !hit || ctx.Response.StatusCode() != fasthttp.StatusOK {
		t.Fatalf("expected handler hit with 200, got hit=%v status=%d", hit, ctx.Response.StatusCode())
	}
}

func TestParamCapture(t *testing.T) {
	r := New()
	var conv, msg string
	r.POST("/v1/conversations/:id/messages/:msgID/vote", func(ctx *fasthttp.RequestCtx) {
		conv = ctx.UserValue("id").(string)
		msg = ctx.UserValue("msgID").(string)
	})

	dispatch(r, "POST", "/v1/conversations/dm_alice_bob/messages/m-42/vote")
	if conv != "dm_alice_bob" || msg != "m-42" {
		t.Fatalf("params not captured: conv=%q msg=%q", conv, msg)
	}
}

func TestMethodDispatch(t *testing.T) {
	r := New()
	var got string
	r.GET("/v1/thing", func(ctx *fasthttp.RequestCtx) { got = "GET" })
	r.POST("/v1/thing", func(ctx *fasthttp.RequestCtx) { got = "POST" })
	r.DELETE("/v1/thing", func(ctx *fasthttp.RequestCtx) { got = "DELETE" })

	dispatch(r, "POST", "/v1/thing")
	if got != "POST" {
		t.Fatalf("expected POST handler, got %q", got)
	}
	dispatch(r, "DELETE", "/v1/thing")
	if got != "DELETE" {
		t.Fatalf("expected DELETE handler, got %q", got)
	}

	// unregistered method on a known path is 405, not 404
	ctx := dispatch(r, "PUT", "/v1/thing")
	if ctx.Response.StatusCode() != fasthttp.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for PUT, got %d", ctx.Response.StatusCode())
	}
	if allow := string(ctx.Response.Header.Peek(fasthttp.HeaderAllow)); allow != "DELETE, GET, POST" {
		t.Fatalf("unexpected Allow header %q", allow)
	}
}

func TestLiteralRouteBeforeParam(t *testing.T) {
	r := New()
	var got string
	r.POST("/v1/conversations/open", func(ctx *fasthttp.RequestCtx) { got = "open" })
	r.DELETE("/v1/conversations/:convID", func(ctx *fasthttp.RequestCtx) {
		got = "close " + ctx.UserValue("convID").(string)
	})

	dispatch(r, "POST", "/v1/conversations/open")
	if got != "open" {
		t.Fatalf("literal route not preferred: %q", got)
	}
	dispatch(r, "DELETE", "/v1/conversations/dm_a_b")
	if got != "close dm_a_b" {
		t.Fatalf("param route not reached: %q", got)
	}
}

func TestNotFoundDefault(t *testing.T) {
	r := New()
	r.GET("/known", func(ctx *fasthttp.RequestCtx) {})

	ctx := dispatch(r, "GET", "/unknown")
	if ctx.Response.StatusCode() != fasthttp.StatusNotFound {
		t.Fatalf("expected 404, got %d", ctx.Response.StatusCode())
	}
}

func TestNotFoundCustom(t *testing.T) {
	r := New()
	r.NotFound(func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(fasthttp.StatusTeapot)
	})

	ctx := dispatch(r, "GET", "/nope")
	if ctx.Response.StatusCode() != fasthttp.StatusTeapot {
		t.Fatalf("expected custom not-found status, got %d", ctx.Response.StatusCode())
	}
}

func TestSegmentCountMustMatch(t *testing.T) {
	r := New()
	r.GET("/v1/conversations/:id", func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(fasthttp.StatusOK)
	})

	if ctx := dispatch(r, "GET", "/v1/conversations"); ctx.Response.StatusCode() != fasthttp.StatusNotFound {
		t.Fatalf("short path matched: %d", ctx.Response.StatusCode())
	}
	if ctx := dispatch(r, "GET", "/v1/conversations/x/extra"); ctx.Response.StatusCode() != fasthttp.StatusNotFound {
		t.Fatalf("long path matched: %d", ctx.Response.StatusCode())
	}
	if ctx := dispatch(r, "GET", "/v1/conversations/x"); ctx.Response.StatusCode() != fasthttp.StatusOK {
		t.Fatalf("exact path did not match: %d", ctx.Response.StatusCode())
	}
}

func TestRootRoute(t *testing.T) {
	r := New()
	r.GET("/", func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(fasthttp.StatusOK)
	})
	if ctx := dispatch(r, "GET", "/"); ctx.Response.StatusCode() != fasthttp.StatusOK {
		t.Fatalf("root did not match: %d", ctx.Response.StatusCode())
	}
}
