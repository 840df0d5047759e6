package config

import (
	"fmt"
	"os"

	"github.com/adhocore/gronx"
	"github.com/dustin/go-humanize"

	"github.com/samsmithyeah/flock-sub002/pkg/logger"
)

// set defaults, fail fast on critical errors
func ValidateConfig(eff EffectiveConfigResult) error {
	cfg := eff.Config
	if cfg == nil {
		return fmt.Errorf("effective config is nil")
	}
	if p := eff.DBPath; p == "" {
		return fmt.Errorf("database path is empty: set --db flag, FLOCK_DB_PATH env, or server.db_path in config")
	}

	cert := cfg.Server.TLS.CertFile
	key := cfg.Server.TLS.KeyFile
	if (cert != "" && key == "") || (cert == "" && key != "") {
		return fmt.Errorf("incomplete TLS configuration: both server.tls.cert_file and server.tls.key_file must be set")
	}
	if cert != "" {
		if _, err := os.Stat(cert); err != nil {
			return fmt.Errorf("tls cert file not accessible: %w", err)
		}
		if _, err := os.Stat(key); err != nil {
			return fmt.Errorf("tls key file not accessible: %w", err)
		}
	}

	if cfg.Chat.ProfileBatchLimit > 10 {
		return fmt.Errorf("chat.profile_batch_limit above backend limit 10")
	}
	if ti := cfg.Chat.TypingIdle.Duration(); ti != 0 && cfg.Chat.TypingStaleAfter.Duration() != 0 && cfg.Chat.TypingStaleAfter.Duration() < ti {
		return fmt.Errorf("chat.typing_stale_after must be >= chat.typing_idle")
	}

	if cfg.Sweep.Enabled && cfg.Sweep.Cron != "" {
		gron := gronx.New()
		if !gron.IsValid(cfg.Sweep.Cron) {
			return fmt.Errorf("invalid sweep.cron: not a valid cron expression")
		}
	}

	if bs := cfg.Telemetry.BufferSize.Int64(); bs > 256*1024*1024 {
		logger.Warn("telemetry_buffer_large", "size", humanize.Bytes(uint64(bs)))
	}

	return nil
}
