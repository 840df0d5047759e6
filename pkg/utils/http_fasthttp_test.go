package utils

import (
	"encoding/json"
	"testing"

	"github.com/valyala/fasthttp"
)

func TestJSONErrorFastEnvelope(t *testing.T) {
	ctx := &fasthttp.RequestCtx{}
	JSONErrorFast(ctx, fasthttp.StatusForbidden, "not a participant")

	if ctx.Response.StatusCode() != fasthttp.StatusForbidden {
		t.Fatalf("status = %d", ctx.Response.StatusCode())
	}
	var env ErrorEnvelope
	if err := json.Unmarshal(ctx.Response.Body(), &env); err != nil {
		t.Fatalf("body not an error envelope: %v", err)
	}
	if env.Error.Status != fasthttp.StatusForbidden || env.Error.Reason != "Forbidden" || env.Error.Message != "not a participant" {
		t.Fatalf("unexpected envelope %+v", env)
	}
}

func TestJSONWriteFast(t *testing.T) {
	ctx := &fasthttp.RequestCtx{}
	if err := JSONWriteFast(ctx, fasthttp.StatusCreated, map[string]int{"n": 7}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if ctx.Response.StatusCode() != fasthttp.StatusCreated {
		t.Fatalf("status = %d", ctx.Response.StatusCode())
	}
	if ct := string(ctx.Response.Header.ContentType()); ct != "application/json" {
		t.Fatalf("content type = %q", ct)
	}
	var out map[string]int
	if err := json.Unmarshal(ctx.Response.Body(), &out); err != nil || out["n"] != 7 {
		t.Fatalf("bad body %q: %v", ctx.Response.Body(), err)
	}
}

func TestJSONWriteFastEncodeFailure(t *testing.T) {
	ctx := &fasthttp.RequestCtx{}
	if err := JSONWriteFast(ctx, fasthttp.StatusOK, func() {}); err == nil {
		t.Fatal("expected encode error")
	}
	if ctx.Response.StatusCode() != fasthttp.StatusInternalServerError {
		t.Fatalf("status = %d", ctx.Response.StatusCode())
	}
	if len(ctx.Response.Body()) != 0 {
		t.Fatalf("partial body written: %q", ctx.Response.Body())
	}
}

func TestDecodeJSONBody(t *testing.T) {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.SetBody([]byte(`{"kind":"direct"}`))
	var v struct {
		Kind string `json:"kind"`
	}
	if err := DecodeJSONBody(ctx, &v); err != nil || v.Kind != "direct" {
		t.Fatalf("decode: %v, kind=%q", err, v.Kind)
	}

	empty := &fasthttp.RequestCtx{}
	if err := DecodeJSONBody(empty, &v); err == nil {
		t.Fatal("expected error for empty body")
	}
}
