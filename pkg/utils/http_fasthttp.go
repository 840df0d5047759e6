package utils

import (
	"encoding/json"
	"fmt"

	"github.com/valyala/bytebufferpool"
	"github.com/valyala/fasthttp"
)

// ErrorEnvelope is the wire shape of every error response.
type ErrorEnvelope struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the status code, its standard reason phrase and
// a caller-supplied message.
type ErrorDetail struct {
	Status  int    `json:"status"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

// JSONErrorFast writes the error envelope for status.
func JSONErrorFast(ctx *fasthttp.RequestCtx, status int, message string) {
	_ = JSONWriteFast(ctx, status, ErrorEnvelope{Error: ErrorDetail{
		Status:  status,
		Reason:  fasthttp.StatusMessage(status),
		Message: message,
	}})
}

// JSONWriteFast encodes v through a pooled buffer so an encode failure
// never leaves a half-written body behind a success status.
func JSONWriteFast(ctx *fasthttp.RequestCtx, status int, v interface{}) error {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	if err := json.NewEncoder(buf).Encode(v); err != nil {
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		return err
	}
	ctx.SetContentType("application/json")
	if status != 0 {
		ctx.SetStatusCode(status)
	}
	_, err := ctx.Write(buf.B)
	return err
}

// DecodeJSONBody unmarshals the request body into v. Empty bodies are
// rejected before the decoder sees them.
func DecodeJSONBody(ctx *fasthttp.RequestCtx, v interface{}) error {
	body := ctx.PostBody()
	if len(body) == 0 {
		return fmt.Errorf("empty request body")
	}
	return json.Unmarshal(body, v)
}
