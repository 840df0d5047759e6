package sweeper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/adhocore/gronx"

	"github.com/samsmithyeah/flock-sub002/pkg/cache"
	"github.com/samsmithyeah/flock-sub002/pkg/config"
	"github.com/samsmithyeah/flock-sub002/pkg/logger"
	"github.com/samsmithyeah/flock-sub002/pkg/store"
	"github.com/samsmithyeah/flock-sub002/pkg/utils"
)

// Sweeper periodically clears stuck typing indicators and expired cache
// entries. Runs are serialized across processes with a file lease under
// the sweep state dir.
type Sweeper struct {
	cfg      *config.Config
	cache    *cache.Cache
	sweepDir string
	ctx      context.Context
	cancel   context.CancelFunc
	running  bool
	mutex    sync.Mutex
}

func Start(ctx context.Context, cfg *config.Config, c *cache.Cache, sweepDir string) (*Sweeper, context.CancelFunc) {
	ctx2, cancel := context.WithCancel(ctx)
	sw := &Sweeper{
		cfg:      cfg,
		cache:    c,
		sweepDir: sweepDir,
		ctx:      ctx2,
		cancel:   cancel,
	}
	if !cfg.Sweep.Enabled {
		logger.Info("sweeper_disabled")
		return sw, cancel
	}
	logger.Info("sweeper_enabled", "cron", cfg.Sweep.Cron)
	go sw.scheduleLoop()
	return sw, cancel
}

// RunImmediate executes a sweep outside the schedule. Backs the admin
// trigger endpoint.
func (sw *Sweeper) RunImmediate() (int, error) {
	return sw.runOnce()
}

func (sw *Sweeper) scheduleLoop() {
	for {
		now := time.Now()
		next, err := gronx.NextTickAfter(sw.cfg.Sweep.Cron, now, false)
		if err != nil {
			logger.Error("sweep_nexttick_failed", "cron", sw.cfg.Sweep.Cron, "error", err)
			select {
			case <-time.After(30 * time.Second):
			case <-sw.ctx.Done():
				return
			}
			continue
		}

		wait := time.Until(next)
		if wait <= 0 {
			sw.runJob()
			select {
			case <-time.After(time.Second):
			case <-sw.ctx.Done():
				return
			}
			continue
		}

		select {
		case <-time.After(wait):
			sw.runJob()
		case <-sw.ctx.Done():
			return
		}
	}
}

func (sw *Sweeper) runJob() {
	sw.mutex.Lock()
	if sw.running {
		sw.mutex.Unlock()
		return
	}
	sw.running = true
	sw.mutex.Unlock()

	defer func() {
		sw.mutex.Lock()
		sw.running = false
		sw.mutex.Unlock()
	}()

	if _, err := sw.runOnce(); err != nil {
		logger.Error("sweep_run_error", "error", err)
	}
}

// runOnce executes a single sweep: acquire the lease, clear stale typing
// indicators, drop expired cache entries, write audit events.
func (sw *Sweeper) runOnce() (int, error) {
	owner := utils.GenMessageID()
	lock := newFileLease(sw.sweepDir)
	ttl := sw.cfg.Sweep.LockTTL.Duration()
	acq, err := lock.Acquire(owner, ttl)
	if err != nil {
		logger.Error("sweep_lease_acquire_error", "error", err)
		return 0, fmt.Errorf("lease acquire failed: %w", err)
	}
	if !acq {
		logger.Info("sweep_lease_not_acquired")
		return 0, nil
	}
	defer func() {
		if err := lock.Release(owner); err != nil {
			logger.Error("sweep_lease_release_error", "error", err)
		}
	}()

	runCtx, runCancel := context.WithCancel(sw.ctx)
	defer runCancel()

	// heartbeat keeps the lease alive for long runs; repeated renew
	// failures abort the run so another holder can take over
	hbCtx, hbCancel := context.WithCancel(runCtx)
	go func() {
		t := time.NewTicker(ttl / 3)
		defer t.Stop()
		defer hbCancel()
		var failCount int
		const maxConsecutiveRenewFails = 3
		for {
			select {
			case <-hbCtx.Done():
				return
			case <-t.C:
				if err := lock.Renew(owner, ttl); err != nil {
					failCount++
					logger.Error("sweep_lease_renew_failed", "error", err, "count", failCount)
					if failCount >= maxConsecutiveRenewFails {
						logger.Error("sweep_lease_renew_failed_fatal", "owner", owner)
						runCancel()
						return
					}
				} else {
					failCount = 0
				}
			}
		}
	}()
	defer hbCancel()

	dryRun := sw.cfg.Sweep.DryRun
	runID := utils.GenMessageID()
	logger.Info("sweep_run_start", "run_id", runID, "owner", owner, "dry_run", dryRun)
	auditInfo := logger.Info
	if logger.Audit != nil {
		auditInfo = logger.Audit.Info
	}
	auditInfo("sweep_audit_header", "run_id", runID, "started_at", time.Now().Format(time.RFC3339), "dry_run", dryRun, "stale_after", sw.cfg.Chat.TypingStaleAfter.Duration().String())

	cutoff := time.Now().Add(-sw.cfg.Chat.TypingStaleAfter.Duration())
	stale, err := store.StaleTyping(cutoff)
	if err != nil {
		return 0, fmt.Errorf("scan stale typing: %w", err)
	}

	var cleared int
	for _, st := range stale {
		select {
		case <-runCtx.Done():
			return cleared, fmt.Errorf("sweep run aborted due to lease renewal failures")
		default:
		}
		if dryRun {
			auditInfo("sweep_audit_item", "run_id", runID, "conversation", st.Conversation, "user", st.User, "status", "dry_run")
			continue
		}
		if err := store.SetTyping(st.Conversation, st.User, false); err != nil {
			auditInfo("sweep_audit_item", "run_id", runID, "conversation", st.Conversation, "user", st.User, "status", "failed", "error", err.Error())
			logger.Error("sweep_clear_failed", "conversation", st.Conversation, "user", st.User, "error", err)
			continue
		}
		auditInfo("sweep_audit_item", "run_id", runID, "conversation", st.Conversation, "user", st.User, "status", "cleared")
		cleared++
	}

	expired := 0
	if !dryRun && sw.cache != nil {
		expired = sw.cache.Sweep()
	}

	auditInfo("sweep_audit_footer", "run_id", runID, "scanned", len(stale), "cleared", cleared, "cache_expired", expired)
	logger.Info("sweep_run_complete", "run_id", runID, "scanned", len(stale), "cleared", cleared, "cache_expired", expired)
	return cleared, nil
}
