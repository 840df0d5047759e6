// Package api wires the HTTP surface: route registration, runtime
// prometheus gauges, and the pprof/metrics debug endpoints behind the
// admin key.
package api

import (
	"net/http"
	"net/http/pprof"
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	adminRoutes "github.com/samsmithyeah/flock-sub002/pkg/api/routes/admin"
	backendRoutes "github.com/samsmithyeah/flock-sub002/pkg/api/routes/backend"
	frontendRoutes "github.com/samsmithyeah/flock-sub002/pkg/api/routes/frontend"
	"github.com/samsmithyeah/flock-sub002/pkg/router"
	"github.com/samsmithyeah/flock-sub002/pkg/store"
	"github.com/samsmithyeah/flock-sub002/pkg/utils"
)

var (
	gcPauseTotal = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "go_gc_pause_total_ns",
			Help: "Total GC pause time in nanoseconds.",
		},
		func() float64 {
			var stats runtime.MemStats
			runtime.ReadMemStats(&stats)
			return float64(stats.PauseTotalNs)
		},
	)

	heapAlloc = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "go_heap_alloc_bytes",
			Help: "Current heap allocation in bytes.",
		},
		func() float64 {
			var stats runtime.MemStats
			runtime.ReadMemStats(&stats)
			return float64(stats.HeapAlloc)
		},
	)

	heapSys = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "go_heap_sys_bytes",
			Help: "Total heap size in bytes.",
		},
		func() float64 {
			var stats runtime.MemStats
			runtime.ReadMemStats(&stats)
			return float64(stats.HeapSys)
		},
	)

	numGC = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "go_gc_cycles_total",
			Help: "Total number of GC cycles.",
		},
		func() float64 {
			var stats runtime.MemStats
			runtime.ReadMemStats(&stats)
			return float64(stats.NumGC)
		},
	)
)

func init() {
	prometheus.MustRegister(gcPauseTotal)
	prometheus.MustRegister(heapAlloc)
	prometheus.MustRegister(heapSys)
	prometheus.MustRegister(numGC)
}

// wrapHTTPHandler wraps an http.Handler to work with fasthttp.
func wrapHTTPHandler(h http.Handler) func(ctx *fasthttp.RequestCtx) {
	return func(ctx *fasthttp.RequestCtx) {
		fasthttpadaptor.NewFastHTTPHandler(h)(ctx)
	}
}

// RegisterRoutes wires all API routes onto the provided router.
func RegisterRoutes(r *router.Router) {
	// probes
	r.GET("/healthz", func(ctx *fasthttp.RequestCtx) {
		_ = utils.JSONWriteFast(ctx, fasthttp.StatusOK, map[string]string{"status": "ok"})
	})
	r.GET("/readyz", func(ctx *fasthttp.RequestCtx) {
		if !store.Ready() {
			utils.JSONErrorFast(ctx, fasthttp.StatusServiceUnavailable, "store not ready")
			return
		}
		_ = utils.JSONWriteFast(ctx, fasthttp.StatusOK, map[string]string{"status": "ready"})
	})

	// backend service endpoints
	r.POST("/v1/sign", backendRoutes.Sign)
	r.PUT("/v1/profiles/:userID", backendRoutes.UpsertProfile)

	// conversation directory
	r.POST("/v1/conversations/open", frontendRoutes.OpenConversation)
	r.GET("/v1/conversations", frontendRoutes.ListConversations)
	r.DELETE("/v1/conversations/:convID", frontendRoutes.CloseConversation)

	// conversation view + history
	r.GET("/v1/conversations/:convID/messages", frontendRoutes.ListMessages)
	r.POST("/v1/conversations/:convID/earlier", frontendRoutes.LoadEarlier)
	r.POST("/v1/conversations/:convID/messages", frontendRoutes.SendMessage)
	r.POST("/v1/conversations/:convID/messages/:msgID/vote", frontendRoutes.Vote)

	// presence
	r.POST("/v1/conversations/:convID/typing", frontendRoutes.Typing)
	r.GET("/v1/conversations/:convID/typing", frontendRoutes.TypingUsers)
	r.POST("/v1/conversations/:convID/read", frontendRoutes.MarkRead)

	// streams
	r.GET("/v1/conversations/:convID/stream", frontendRoutes.Stream)
	r.GET("/v1/session/notices", frontendRoutes.Notices)

	// profile batch fetch
	r.POST("/v1/profiles/batch", frontendRoutes.ProfileBatch)

	// admin data routes
	r.GET("/admin/health", adminRoutes.Health)
	r.GET("/admin/stats", adminRoutes.Stats)
	r.GET("/admin/keys", adminRoutes.ListKeys)
	r.GET("/admin/keys/:key", adminRoutes.GetKey)

	// admin debug routes
	r.GET("/admin/debug/prometheus", wrapHTTPHandler(promhttp.Handler()))
	r.GET("/admin/debug/pprof/", wrapHTTPHandler(http.HandlerFunc(pprof.Index)))
	r.GET("/admin/debug/pprof/cmdline", wrapHTTPHandler(http.HandlerFunc(pprof.Cmdline)))
	r.GET("/admin/debug/pprof/profile", wrapHTTPHandler(http.HandlerFunc(pprof.Profile)))
	r.GET("/admin/debug/pprof/symbol", wrapHTTPHandler(http.HandlerFunc(pprof.Symbol)))
	r.GET("/admin/debug/pprof/trace", wrapHTTPHandler(http.HandlerFunc(pprof.Trace)))

	// admin job routes
	r.POST("/admin/jobs/sweep", adminRoutes.RunSweep)
}

// Handler returns the fasthttp handler for the API.
func Handler() fasthttp.RequestHandler {
	r := router.New()
	RegisterRoutes(r)
	return r.Handler
}
