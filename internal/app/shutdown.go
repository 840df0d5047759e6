package app

import (
	"context"

	"github.com/samsmithyeah/flock-sub002/pkg/logger"
	"github.com/samsmithyeah/flock-sub002/pkg/store"
	"github.com/samsmithyeah/flock-sub002/pkg/telemetry"
)

// Shutdown tears components down in dependency order: stop intake,
// drain the outbox, detach sessions, then close the store.
func (a *App) Shutdown(ctx context.Context) error {
	a.state = "shutting_down"
	logger.Info("shutdown_requested")

	done := make(chan struct{})
	go func() {
		defer close(done)

		if a.srvFast != nil {
			logger.Info("shutdown_http")
			if err := a.srvFast.Shutdown(); err != nil {
				logger.Error("shutdown_http_error", "error", err)
			}
		}

		if a.sweepCancel != nil {
			logger.Info("shutdown_sweeper")
			a.sweepCancel()
		}

		if a.hwSensor != nil {
			logger.Info("shutdown_sensor")
			a.hwSensor.Stop()
		}

		// drain admitted sends before sessions detach so Done callbacks
		// still have somewhere to land
		if a.queue != nil {
			logger.Info("shutdown_outbox", "depth", a.queue.Depth())
			a.queue.Shutdown()
		}
		if a.queueCancel != nil {
			a.queueCancel()
		}

		if a.sessions != nil {
			logger.Info("shutdown_sessions", "count", a.sessions.Count())
			a.sessions.CloseAll()
		}

		if a.hub != nil {
			logger.Info("shutdown_feed")
			a.hub.Close()
		}

		logger.Info("shutdown_telemetry")
		telemetry.Close()

		logger.Info("shutdown_store")
		if err := store.Close(); err != nil {
			logger.Error("shutdown_store_error", "error", err)
		}
	}()

	select {
	case <-done:
		a.state = "stopped"
		logger.Info("shutdown_complete")
		return nil
	case <-ctx.Done():
		logger.Error("shutdown_timeout")
		return ctx.Err()
	}
}
