// Package sensor watches host memory and disk and toggles outbox
// intake around a high/low watermark pair. Recovery requires the
// reading to stay below the low mark for the recovery window, so a
// flapping host does not flap the queue.
package sensor

import (
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/mem"
	"golang.org/x/sys/unix"

	"github.com/samsmithyeah/flock-sub002/pkg/logger"
)

type MonitorConfig struct {
	PollInterval   time.Duration
	MemHighPct     int
	MemLowPct      int
	RecoveryWindow time.Duration
}

// Sensor polls and calls OnAlert when memory crosses the high mark and
// OnRecover when it settles below the low mark.
type Sensor struct {
	config   MonitorConfig
	OnAlert  func()
	OnRecover func()

	stopCh   chan struct{}
	stopOnce sync.Once

	mu           sync.Mutex
	memAlert     bool
	memBelowLow  time.Time
	diskAlert    bool
}

func NewSensor(config MonitorConfig) *Sensor {
	if config.PollInterval <= 0 {
		config.PollInterval = 500 * time.Millisecond
	}
	return &Sensor{
		config: config,
		stopCh: make(chan struct{}),
	}
}

func (s *Sensor) Start() {
	go s.run()
}

func (s *Sensor) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
}

func (s *Sensor) run() {
	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.check()
		case <-s.stopCh:
			return
		}
	}
}

func (s *Sensor) check() {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	vm, err := mem.VirtualMemory()
	if err != nil {
		logger.Warn("sensor_mem_stat_failed", "error", err)
		return
	}
	usedPct := vm.UsedPercent

	if usedPct > float64(s.config.MemHighPct) {
		s.memBelowLow = time.Time{}
		if !s.memAlert {
			logger.Warn("memory_usage_high", "used_pct", usedPct, "threshold", s.config.MemHighPct)
			s.memAlert = true
			if s.OnAlert != nil {
				s.OnAlert()
			}
		}
	} else if s.memAlert && usedPct < float64(s.config.MemLowPct) {
		if s.memBelowLow.IsZero() {
			s.memBelowLow = now
		}
		if now.Sub(s.memBelowLow) >= s.config.RecoveryWindow {
			logger.Info("memory_usage_recovered", "used_pct", usedPct, "below", s.config.MemLowPct, "window", s.config.RecoveryWindow)
			s.memAlert = false
			s.memBelowLow = time.Time{}
			if s.OnRecover != nil {
				s.OnRecover()
			}
		}
	}

	// disk is advisory only; log on crossings
	var stat unix.Statfs_t
	if err := unix.Statfs("/", &stat); err != nil {
		logger.Warn("sensor_disk_stat_failed", "error", err)
		return
	}
	available := stat.Bavail * uint64(stat.Bsize)
	total := stat.Blocks * uint64(stat.Bsize)
	if total == 0 {
		return
	}
	diskPct := float64(total-available) / float64(total) * 100
	if diskPct > 90 {
		if !s.diskAlert {
			logger.Warn("disk_usage_high", "used_pct", diskPct)
			s.diskAlert = true
		}
	} else if s.diskAlert && diskPct < 80 {
		logger.Info("disk_usage_recovered", "used_pct", diskPct)
		s.diskAlert = false
	}
}
