package app

import (
	"context"
	"fmt"

	"github.com/valyala/fasthttp"

	"github.com/samsmithyeah/flock-sub002/internal/sweeper"
	"github.com/samsmithyeah/flock-sub002/pkg/api/routes/admin"
	"github.com/samsmithyeah/flock-sub002/pkg/api/routes/frontend"
	"github.com/samsmithyeah/flock-sub002/pkg/config"
	"github.com/samsmithyeah/flock-sub002/pkg/logger"
	"github.com/samsmithyeah/flock-sub002/pkg/outbox"
	"github.com/samsmithyeah/flock-sub002/pkg/sensor"
	"github.com/samsmithyeah/flock-sub002/pkg/session"
	"github.com/samsmithyeah/flock-sub002/pkg/state"
	"github.com/samsmithyeah/flock-sub002/pkg/store"
	"github.com/samsmithyeah/flock-sub002/pkg/store/feed"
	"github.com/samsmithyeah/flock-sub002/pkg/telemetry"
)

// App groups server state and long-lived components.
type App struct {
	eff       config.EffectiveConfigResult
	version   string
	commit    string
	buildDate string

	srvFast *fasthttp.Server
	state   string

	hub      *feed.Hub
	queue    *outbox.Queue
	sessions *session.Manager
	hwSensor *sensor.Sensor
	sweep    *sweeper.Sweeper

	queueCancel context.CancelFunc
	sweepCancel context.CancelFunc
}

// New sets up resources that don't need a running context: store,
// feed hub, outbox, session manager, runtime keys, telemetry. Call Run
// to start the scheduler, sensor and HTTP server.
func New(eff config.EffectiveConfigResult, version, commit, buildDate string) (*App, error) {
	cfg := eff.Config

	// telemetry defaults
	telemetry.SetSampleRate(cfg.Telemetry.SampleRate)
	telemetry.SetSlowThreshold(cfg.Telemetry.SlowThreshold.Duration())
	telemetry.Init(
		state.PathsVar.Tel,
		int(cfg.Telemetry.BufferSize.Int64()),
		cfg.Telemetry.QueueCapacity,
		cfg.Telemetry.FlushInterval.Duration(),
		cfg.Telemetry.FileMaxSize.Int64(),
	)

	// runtime keys: backend keys double as signing keys unless signing
	// keys are named explicitly
	runtimeCfg := &config.RuntimeConfig{BackendKeys: map[string]struct{}{}, SigningKeys: map[string]struct{}{}}
	for _, k := range cfg.Security.APIKeys.Backend {
		runtimeCfg.BackendKeys[k] = struct{}{}
		runtimeCfg.SigningKeys[k] = struct{}{}
	}
	for _, k := range cfg.Security.SigningKeys {
		runtimeCfg.SigningKeys[k] = struct{}{}
	}
	config.SetRuntime(runtimeCfg)

	// audit sink is optional; a failed attach degrades to the main log
	auditDir := cfg.Logging.AuditDir
	if auditDir == "" {
		auditDir = state.PathsVar.Audit
	}
	if err := logger.AttachAuditFileSink(auditDir); err != nil {
		logger.Warn("audit_sink_attach_failed", "dir", auditDir, "error", err)
	}

	if state.PathsVar.Store == "" {
		return nil, fmt.Errorf("state paths not initialized")
	}
	if err := store.Open(state.PathsVar.Store); err != nil {
		return nil, fmt.Errorf("failed to open pebble at %s: %w", state.PathsVar.Store, err)
	}

	hub := feed.NewHub(cfg.Feed.Buffer)
	store.SetHub(hub)

	queue := outbox.New(cfg.Outbox.Capacity, cfg.Outbox.Workers, store.AppendMessage)

	sessions := session.NewManager(session.StoreBackend{}, queue, hub, session.Config{
		PageSize:          cfg.Chat.PageSize,
		ProfileBatchLimit: cfg.Chat.ProfileBatchLimit,
		TypingIdle:        cfg.Chat.TypingIdle.Duration(),
		CacheTTL:          cfg.Chat.CacheTTL.Duration(),
	})

	a := &App{
		eff:       eff,
		version:   version,
		commit:    commit,
		buildDate: buildDate,
		hub:       hub,
		queue:     queue,
		sessions:  sessions,
	}
	return a, nil
}

// Run starts the outbox workers, sweeper, sensor and HTTP server, then
// blocks until context cancellation or a fatal server error.
func (a *App) Run(ctx context.Context) error {
	cfg := a.eff.Config

	queueCtx, queueCancel := context.WithCancel(ctx)
	a.queueCancel = queueCancel
	a.queue.Start(queueCtx)

	sw, sweepCancel := sweeper.Start(ctx, cfg, a.sessions.Cache(), state.PathsVar.Sweep)
	a.sweep = sw
	a.sweepCancel = sweepCancel

	// memory pressure pauses message intake; sends fail fast with 503
	// instead of growing the queue
	hw := sensor.NewSensor(sensor.MonitorConfig{
		PollInterval:   cfg.Sensor.Monitor.PollInterval.Duration(),
		MemHighPct:     cfg.Sensor.Monitor.MemHighPct,
		MemLowPct:      cfg.Sensor.Monitor.MemLowPct,
		RecoveryWindow: cfg.Sensor.Monitor.RecoveryWindow.Duration(),
	})
	hw.OnAlert = a.queue.Pause
	hw.OnRecover = a.queue.Resume
	hw.Start()
	a.hwSensor = hw

	frontend.Setup(a.sessions, a.hub)
	admin.Setup(a.sessions, a.sweep.RunImmediate, a.version)

	errCh := a.startHTTP()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}
