package config

import (
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/samsmithyeah/flock-sub002/pkg/logger"
)

// Defaults
const (
	defaultPageSize          = 25
	defaultProfileBatchLimit = 10
	defaultTypingIdle        = time.Second
	defaultTypingStaleAfter  = 30 * time.Second
	defaultCacheTTL          = 5 * time.Minute

	defaultOutboxCapacity = 4096
	defaultFeedBuffer     = 64

	defaultSweepCron    = "*/5 * * * *" // every five minutes
	defaultSweepLockTTL = 300 * time.Second

	defaultTelemetrySampleRate    = 0.001
	defaultTelemetrySlowMs        = 200
	defaultTelemetryBufferSize    = 8 * 1024 * 1024
	defaultTelemetryFileMaxSize   = 40 * 1024 * 1024
	defaultTelemetryFlushMs       = 2000
	defaultTelemetryQueueCapacity = 2048

	defaultSensorPollInterval   = 500 * time.Millisecond
	defaultSensorMemHighPct     = 85
	defaultSensorMemLowPct      = 70
	defaultSensorRecoveryWindow = 5 * time.Second
)

var (
	runtimeMu  sync.RWMutex
	runtimeCfg *RuntimeConfig
)

// SetRuntime sets the global runtime config.
func SetRuntime(rc *RuntimeConfig) {
	runtimeMu.Lock()
	defer runtimeMu.Unlock()
	runtimeCfg = rc
}

// GetBackendKeys returns a copy of backend API keys.
func GetBackendKeys() map[string]struct{} {
	runtimeMu.RLock()
	defer runtimeMu.RUnlock()
	out := make(map[string]struct{})
	if runtimeCfg == nil || runtimeCfg.BackendKeys == nil {
		return out
	}
	for k := range runtimeCfg.BackendKeys {
		out[k] = struct{}{}
	}
	return out
}

// GetSigningKeys returns a copy of user-signature signing keys.
func GetSigningKeys() map[string]struct{} {
	runtimeMu.RLock()
	defer runtimeMu.RUnlock()
	out := make(map[string]struct{})
	if runtimeCfg == nil || runtimeCfg.SigningKeys == nil {
		return out
	}
	for k := range runtimeCfg.SigningKeys {
		out[k] = struct{}{}
	}
	return out
}

// Addr returns the HTTP server address as host:port.
func (c *Config) Addr() string {
	addr := c.Server.Address
	if addr == "" {
		addr = "0.0.0.0"
	}
	port := c.Server.Port
	if port == 0 {
		port = 8080
	}
	return fmt.Sprintf("%s:%d", addr, port)
}

// LoadConfigFile reads and parses a config file.
func LoadConfigFile(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills missing values in place.
func (c *Config) ApplyDefaults() {
	numCPU := runtime.NumCPU()
	runtime.GOMAXPROCS(numCPU)
	logger.Info("system_logical_cores", "logical_cores", numCPU)

	if c.Chat.PageSize <= 0 {
		c.Chat.PageSize = defaultPageSize
	}
	if c.Chat.ProfileBatchLimit <= 0 {
		c.Chat.ProfileBatchLimit = defaultProfileBatchLimit
	}
	if c.Chat.TypingIdle.Duration() == 0 {
		c.Chat.TypingIdle = Duration(defaultTypingIdle)
	}
	if c.Chat.TypingStaleAfter.Duration() == 0 {
		c.Chat.TypingStaleAfter = Duration(defaultTypingStaleAfter)
	}
	if c.Chat.CacheTTL.Duration() == 0 {
		c.Chat.CacheTTL = Duration(defaultCacheTTL)
	}

	if c.Outbox.Capacity <= 0 {
		c.Outbox.Capacity = defaultOutboxCapacity
	}
	if c.Outbox.Workers <= 0 {
		c.Outbox.Workers = numCPU
	} else if c.Outbox.Workers > numCPU {
		logger.Warn("outbox_workers_capped", "requested", c.Outbox.Workers, "capped_to", numCPU)
		c.Outbox.Workers = numCPU
	}
	if c.Feed.Buffer <= 0 {
		c.Feed.Buffer = defaultFeedBuffer
	}

	if c.Sweep.Cron == "" {
		c.Sweep.Cron = defaultSweepCron
	}
	if c.Sweep.LockTTL.Duration() == 0 {
		c.Sweep.LockTTL = Duration(defaultSweepLockTTL)
	}

	if c.Telemetry.SampleRate == 0 {
		c.Telemetry.SampleRate = defaultTelemetrySampleRate
	}
	if c.Telemetry.SlowThreshold.Duration() == 0 {
		c.Telemetry.SlowThreshold = Duration(defaultTelemetrySlowMs * time.Millisecond)
	}
	if c.Telemetry.BufferSize.Int64() == 0 {
		c.Telemetry.BufferSize = SizeBytes(defaultTelemetryBufferSize)
	}
	if c.Telemetry.FileMaxSize.Int64() == 0 {
		c.Telemetry.FileMaxSize = SizeBytes(defaultTelemetryFileMaxSize)
	}
	if c.Telemetry.FlushInterval.Duration() == 0 {
		c.Telemetry.FlushInterval = Duration(defaultTelemetryFlushMs * time.Millisecond)
	}
	if c.Telemetry.QueueCapacity <= 0 {
		c.Telemetry.QueueCapacity = defaultTelemetryQueueCapacity
	}

	if c.Security.RateLimit.RPS <= 0 {
		c.Security.RateLimit.RPS = 1000
	}
	if c.Security.RateLimit.Burst <= 0 {
		c.Security.RateLimit.Burst = 1000
	}

	if c.Sensor.Monitor.PollInterval.Duration() == 0 {
		c.Sensor.Monitor.PollInterval = Duration(defaultSensorPollInterval)
	}
	if c.Sensor.Monitor.MemHighPct == 0 {
		c.Sensor.Monitor.MemHighPct = defaultSensorMemHighPct
	}
	if c.Sensor.Monitor.MemLowPct == 0 {
		c.Sensor.Monitor.MemLowPct = defaultSensorMemLowPct
	}
	if c.Sensor.Monitor.RecoveryWindow.Duration() == 0 {
		c.Sensor.Monitor.RecoveryWindow = Duration(defaultSensorRecoveryWindow)
	}
}

// ResolveConfigPath returns the config file path, preferring flag, then env.
func ResolveConfigPath(flagPath string, flagSet bool) string {
	if flagSet {
		return flagPath
	}
	if p := os.Getenv("FLOCK_SERVER_CONFIG"); p != "" {
		return p
	}
	if p := os.Getenv("FLOCK_CONFIG"); p != "" {
		return p
	}
	return flagPath
}
