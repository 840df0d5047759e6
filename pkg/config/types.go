package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// RuntimeConfig holds runtime key sets for use by other packages.
type RuntimeConfig struct {
	BackendKeys map[string]struct{}
	SigningKeys map[string]struct{}
}

// Config is the main configuration struct.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Security  SecurityConfig  `yaml:"security"`
	Logging   LoggingConfig   `yaml:"logging"`
	Chat      ChatConfig      `yaml:"chat"`
	Outbox    OutboxConfig    `yaml:"outbox"`
	Feed      FeedConfig      `yaml:"feed"`
	Sweep     SweepConfig     `yaml:"sweep"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Sensor    SensorConfig    `yaml:"sensor"`
}

// ServerConfig holds http and storage settings.
type ServerConfig struct {
	Address  string    `yaml:"address"`
	Port     int       `yaml:"port"`
	DBPath   string    `yaml:"db_path"`
	StateDir string    `yaml:"state_dir"`
	TLS      TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate configuration.
type TLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// SecurityConfig holds security related settings.
type SecurityConfig struct {
	CORS struct {
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"cors"`
	RateLimit struct {
		RPS   float64 `yaml:"rps"`
		Burst int     `yaml:"burst"`
	} `yaml:"rate_limit"`
	IPWhitelist []string `yaml:"ip_whitelist"`
	APIKeys     struct {
		Backend  []string `yaml:"backend"`
		Frontend []string `yaml:"frontend"`
		Admin    []string `yaml:"admin"`
	} `yaml:"api_keys"`
	SigningKeys []string `yaml:"signing_keys"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level    string `yaml:"level"`
	AuditDir string `yaml:"audit_dir"`
}

// ChatConfig holds the sync runtime knobs.
type ChatConfig struct {
	// PageSize is the fixed history page for backwards pagination.
	PageSize int `yaml:"page_size"`
	// ProfileBatchLimit caps ids per profile lookup query.
	ProfileBatchLimit int `yaml:"profile_batch_limit"`
	// TypingIdle is the pause after the last keystroke before the
	// typing indicator clears.
	TypingIdle Duration `yaml:"typing_idle"`
	// TypingStaleAfter is the sweeper threshold for stuck indicators.
	TypingStaleAfter Duration `yaml:"typing_stale_after"`
	// CacheTTL bounds profile cache entries.
	CacheTTL Duration `yaml:"cache_ttl"`
}

// OutboxConfig holds send queue settings.
type OutboxConfig struct {
	Capacity int `yaml:"capacity"`
	Workers  int `yaml:"workers"`
}

// FeedConfig holds change feed settings.
type FeedConfig struct {
	Buffer int `yaml:"buffer"`
}

// SweepConfig holds configuration for the background sweeper.
type SweepConfig struct {
	Enabled bool   `yaml:"enabled"`
	Cron    string `yaml:"cron"`
	// LockTTL is the lease TTL the sweeper acquires before a run, so
	// only one node of a shared data dir sweeps at a time.
	LockTTL Duration `yaml:"lock_ttl"`
	DryRun  bool     `yaml:"dry_run"`
}

// TelemetryConfig controls sampling and slow-operation thresholds.
type TelemetryConfig struct {
	Dir           string    `yaml:"dir"`
	SampleRate    float64   `yaml:"sample_rate"`
	SlowThreshold Duration  `yaml:"slow_threshold"`
	BufferSize    SizeBytes `yaml:"buffer_size"`
	FileMaxSize   SizeBytes `yaml:"file_max_size"`
	FlushInterval Duration  `yaml:"flush_interval"`
	QueueCapacity int       `yaml:"queue_capacity"`
}

// SensorConfig holds memory watermark tuning knobs.
type SensorConfig struct {
	Monitor struct {
		PollInterval   Duration `yaml:"poll_interval"`
		MemHighPct     int      `yaml:"mem_high_pct"`
		MemLowPct      int      `yaml:"mem_low_pct"`
		RecoveryWindow Duration `yaml:"recovery_window"`
	} `yaml:"monitor"`
}

// SizeBytes represents a number of bytes, unmarshaled from human-friendly strings like "64MB" or plain integers.
type SizeBytes int64

func (s *SizeBytes) UnmarshalYAML(data []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(data)), `"'`)
	if raw == "" {
		*s = 0
		return nil
	}
	if v, err := humanize.ParseBytes(raw); err == nil {
		*s = SizeBytes(v)
		return nil
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		*s = SizeBytes(i)
		return nil
	}
	return fmt.Errorf("invalid size value: %q", raw)
}

func (s SizeBytes) Int64() int64 { return int64(s) }

// Duration wraps time.Duration and parses YAML strings like "100ms" or plain numbers (interpreted as seconds).
type Duration time.Duration

func (d *Duration) UnmarshalYAML(data []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(data)), `"'`)
	if raw == "" {
		*d = Duration(0)
		return nil
	}
	if td, err := time.ParseDuration(raw); err == nil {
		*d = Duration(td)
		return nil
	}
	// allow numeric seconds
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		*d = Duration(time.Duration(f * float64(time.Second)))
		return nil
	}
	return fmt.Errorf("invalid duration value: %q", raw)
}

func (d Duration) Duration() time.Duration { return time.Duration(d) }
