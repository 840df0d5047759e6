package frontend

import (
	"bufio"
	"encoding/json"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/samsmithyeah/flock-sub002/pkg/api/routes/common"
	"github.com/samsmithyeah/flock-sub002/pkg/logger"
	"github.com/samsmithyeah/flock-sub002/pkg/store"
	"github.com/samsmithyeah/flock-sub002/pkg/utils"
)

const streamHeartbeat = 15 * time.Second

func setSSEHeaders(ctx *fasthttp.RequestCtx) {
	ctx.SetContentType("text/event-stream")
	ctx.Response.Header.Set("Cache-Control", "no-cache")
	ctx.Response.Header.Set("Connection", "keep-alive")
	ctx.Response.Header.Set("X-Accel-Buffering", "no")
}

func writeSSE(w *bufio.Writer, event string, data []byte) error {
	if _, err := w.WriteString("event: " + event + "\ndata: "); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	if _, err := w.WriteString("\n\n"); err != nil {
		return err
	}
	return w.Flush()
}

// Stream serves a conversation's change feed as server-sent events.
// The subscription ends when the client disconnects (write failure) or
// the hub shuts down; heartbeats keep intermediaries from timing the
// stream out.
func Stream(ctx *fasthttp.RequestCtx) {
	user, tr, ok := common.SetupHandler(ctx, "frontend.stream")
	if !ok {
		return
	}
	defer tr.Finish()
	convID, ok := common.ConvID(ctx)
	if !ok {
		return
	}
	if _, err := store.RequireParticipant(convID, user); err != nil {
		if store.IsNotFound(err) {
			utils.JSONErrorFast(ctx, fasthttp.StatusNotFound, "conversation not found")
		} else {
			utils.JSONErrorFast(ctx, fasthttp.StatusForbidden, "forbidden")
		}
		return
	}

	sub := hub.Subscribe(convID)
	setSSEHeaders(ctx)
	ctx.SetBodyStreamWriter(func(w *bufio.Writer) {
		defer sub.Cancel()
		logger.Debug("stream_opened", "user", user, "conversation", convID, "sub", sub.ID)
		heartbeat := time.NewTicker(streamHeartbeat)
		defer heartbeat.Stop()
		for {
			select {
			case ev, open := <-sub.C():
				if !open {
					return
				}
				b, err := json.Marshal(ev)
				if err != nil {
					continue
				}
				if err := writeSSE(w, string(ev.Topic), b); err != nil {
					logger.Debug("stream_closed", "user", user, "conversation", convID, "error", err)
					return
				}
			case <-heartbeat.C:
				if _, err := w.WriteString(": ping\n\n"); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	})
}

// Notices streams the caller's toast events (failed sends, failed
// votes) as server-sent events.
func Notices(ctx *fasthttp.RequestCtx) {
	user, tr, ok := common.SetupHandler(ctx, "frontend.notices")
	if !ok {
		return
	}
	defer tr.Finish()

	s := sessions.Open(user)
	setSSEHeaders(ctx)
	ctx.SetBodyStreamWriter(func(w *bufio.Writer) {
		heartbeat := time.NewTicker(streamHeartbeat)
		defer heartbeat.Stop()
		for {
			select {
			case n, open := <-s.Notices():
				if !open {
					return
				}
				b, err := json.Marshal(n)
				if err != nil {
					continue
				}
				if err := writeSSE(w, "notice", b); err != nil {
					return
				}
			case <-heartbeat.C:
				if _, err := w.WriteString(": ping\n\n"); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	})
}
