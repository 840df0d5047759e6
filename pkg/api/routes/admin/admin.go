// Package admin holds the operator-facing routes: health, stats, raw
// key inspection and manual job triggers. All of them sit behind the
// admin API key.
package admin

import (
	"sort"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/samsmithyeah/flock-sub002/pkg/logger"
	"github.com/samsmithyeah/flock-sub002/pkg/session"
	"github.com/samsmithyeah/flock-sub002/pkg/store"
	"github.com/samsmithyeah/flock-sub002/pkg/store/keys"
	"github.com/samsmithyeah/flock-sub002/pkg/store/pagination"
	"github.com/samsmithyeah/flock-sub002/pkg/utils"
)

var (
	sessions     *session.Manager
	triggerSweep func() (int, error)
	startedAt    = time.Now()
	version      string
)

// Setup wires the handler dependencies; call before registering routes.
func Setup(m *session.Manager, sweep func() (int, error), ver string) {
	sessions = m
	triggerSweep = sweep
	version = ver
}

// Health reports process liveness.
func Health(ctx *fasthttp.RequestCtx) {
	_ = utils.JSONWriteFast(ctx, fasthttp.StatusOK, map[string]interface{}{
		"status":  "ok",
		"version": version,
		"uptime":  time.Since(startedAt).String(),
		"ready":   store.Ready(),
	})
}

// Stats reports counters an operator cares about at a glance.
func Stats(ctx *fasthttp.RequestCtx) {
	convCount := 0
	msgCount := 0
	all, err := store.ListKeys("c:")
	if err != nil {
		logger.Warn("admin_stats_scan_failed", "error", err)
		utils.JSONErrorFast(ctx, fasthttp.StatusInternalServerError, "stats scan failed")
		return
	}
	for _, k := range all {
		if strings.HasSuffix(k, ":meta") {
			convCount++
		} else if _, err := keys.ParseMessageKey(k); err == nil {
			msgCount++
		}
	}
	stats := map[string]interface{}{
		"conversations": convCount,
		"messages":      msgCount,
	}
	if sessions != nil {
		stats["sessions"] = sessions.Count()
		stats["cache_entries"] = sessions.Cache().Len()
	}
	_ = utils.JSONWriteFast(ctx, fasthttp.StatusOK, stats)
}

// ListKeys lists raw store keys by prefix, paginated. The cursor
// resumes after the last key of the previous page; keys arrive from
// the store in lexical order.
func ListKeys(ctx *fasthttp.RequestCtx) {
	prefix := string(ctx.QueryArgs().Peek("prefix"))
	page := pagination.ParsePaginationRequest(ctx)
	if len(ctx.QueryArgs().Peek("limit")) == 0 {
		page.Limit = pagination.AdminDefaultLimit
	}
	cp, err := pagination.DecodeCursor(page.Cursor)
	if err != nil {
		utils.JSONErrorFast(ctx, fasthttp.StatusBadRequest, "invalid cursor")
		return
	}
	ks, err := store.ListKeys(prefix)
	if err != nil {
		utils.JSONErrorFast(ctx, fasthttp.StatusInternalServerError, "list failed")
		return
	}
	total := len(ks)
	if after := cp.LastConversationKey; after != "" {
		i := sort.SearchStrings(ks, after)
		if i < len(ks) && ks[i] == after {
			i++
		}
		ks = ks[i:]
	}
	hasMore := len(ks) > page.Limit
	if hasMore {
		ks = ks[:page.Limit]
	}
	next := ""
	if hasMore && len(ks) > 0 {
		next = pagination.EncodeCursor(pagination.CursorPayload{LastConversationKey: ks[len(ks)-1]})
	}
	resp := pagination.NewPaginationResponse(page.Limit, hasMore, next, len(ks))
	resp.Total = total
	_ = utils.JSONWriteFast(ctx, fasthttp.StatusOK, map[string]interface{}{
		"keys":       ks,
		"total":      total,
		"pagination": resp,
	})
}

// GetKey returns one raw document.
func GetKey(ctx *fasthttp.RequestCtx) {
	key, _ := ctx.UserValue("key").(string)
	if key == "" {
		utils.JSONErrorFast(ctx, fasthttp.StatusBadRequest, "key required")
		return
	}
	val, err := store.GetKey(key)
	if err != nil {
		if store.IsNotFound(err) {
			utils.JSONErrorFast(ctx, fasthttp.StatusNotFound, "not found")
		} else {
			utils.JSONErrorFast(ctx, fasthttp.StatusInternalServerError, "get failed")
		}
		return
	}
	ctx.SetContentType("application/json")
	ctx.SetStatusCode(fasthttp.StatusOK)
	ctx.SetBodyString(val)
}

// RunSweep triggers the background sweep immediately.
func RunSweep(ctx *fasthttp.RequestCtx) {
	if triggerSweep == nil {
		utils.JSONErrorFast(ctx, fasthttp.StatusServiceUnavailable, "sweeper not running")
		return
	}
	cleared, err := triggerSweep()
	if err != nil {
		logger.Warn("manual_sweep_failed", "error", err)
		utils.JSONErrorFast(ctx, fasthttp.StatusInternalServerError, err.Error())
		return
	}
	logger.Info("manual_sweep_done", "cleared", cleared)
	_ = utils.JSONWriteFast(ctx, fasthttp.StatusOK, map[string]interface{}{"cleared": cleared})
}
