package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDurationUnmarshalYAML(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
		ok   bool
	}{
		{"100ms", 100 * time.Millisecond, true},
		{"2s", 2 * time.Second, true},
		{"5m", 5 * time.Minute, true},
		{`"1h"`, time.Hour, true},
		{"'30s'", 30 * time.Second, true},
		{"1.5", 1500 * time.Millisecond, true}, // bare numbers are seconds
		{"10", 10 * time.Second, true},
		{"", 0, true},
		{"soon", 0, false},
	}
	for _, c := range cases {
		var d Duration
		err := d.UnmarshalYAML([]byte(c.in))
		if !c.ok {
			require.Error(t, err, "input %q", c.in)
			continue
		}
		require.NoError(t, err, "input %q", c.in)
		require.Equal(t, c.want, d.Duration(), "input %q", c.in)
	}
}

func TestSizeBytesUnmarshalYAML(t *testing.T) {
	cases := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"64MB", 64 * 1000 * 1000, true},
		{"64MiB", 64 * 1024 * 1024, true},
		{"1024", 1024, true},
		{`"8KiB"`, 8 * 1024, true},
		{"", 0, true},
		{"lots", 0, false},
	}
	for _, c := range cases {
		var s SizeBytes
		err := s.UnmarshalYAML([]byte(c.in))
		if !c.ok {
			require.Error(t, err, "input %q", c.in)
			continue
		}
		require.NoError(t, err, "input %q", c.in)
		require.Equal(t, c.want, s.Int64(), "input %q", c.in)
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfigFile(t *testing.T) {
	path := writeConfig(t, `
server:
  address: "127.0.0.1"
  port: 9191
  db_path: "/tmp/flock-db"
chat:
  page_size: 50
  profile_batch_limit: 5
  typing_idle: "750ms"
  typing_stale_after: "45s"
  cache_ttl: "10m"
sweep:
  enabled: true
  cron: "*/10 * * * *"
  lock_ttl: "2m"
telemetry:
  buffer_size: "4MiB"
security:
  api_keys:
    backend: ["bk1"]
`)
	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:9191", cfg.Addr())
	require.Equal(t, "/tmp/flock-db", cfg.Server.DBPath)
	require.Equal(t, 50, cfg.Chat.PageSize)
	require.Equal(t, 5, cfg.Chat.ProfileBatchLimit)
	require.Equal(t, 750*time.Millisecond, cfg.Chat.TypingIdle.Duration())
	require.Equal(t, 45*time.Second, cfg.Chat.TypingStaleAfter.Duration())
	require.Equal(t, 10*time.Minute, cfg.Chat.CacheTTL.Duration())
	require.True(t, cfg.Sweep.Enabled)
	require.Equal(t, 2*time.Minute, cfg.Sweep.LockTTL.Duration())
	require.Equal(t, int64(4*1024*1024), cfg.Telemetry.BufferSize.Int64())
	require.Equal(t, []string{"bk1"}, cfg.Security.APIKeys.Backend)
}

func TestLoadConfigFileMissing(t *testing.T) {
	_, err := LoadConfigFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "not found")
}

func TestApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()

	require.Equal(t, 25, cfg.Chat.PageSize)
	require.Equal(t, 10, cfg.Chat.ProfileBatchLimit)
	require.Equal(t, time.Second, cfg.Chat.TypingIdle.Duration())
	require.Equal(t, 30*time.Second, cfg.Chat.TypingStaleAfter.Duration())
	require.Equal(t, 5*time.Minute, cfg.Chat.CacheTTL.Duration())
	require.Equal(t, 4096, cfg.Outbox.Capacity)
	require.Positive(t, cfg.Outbox.Workers)
	require.Equal(t, 64, cfg.Feed.Buffer)
	require.Equal(t, "*/5 * * * *", cfg.Sweep.Cron)
	require.Equal(t, 5*time.Minute, cfg.Sweep.LockTTL.Duration())
	require.Equal(t, 85, cfg.Sensor.Monitor.MemHighPct)
	require.Equal(t, 70, cfg.Sensor.Monitor.MemLowPct)
}

func TestApplyDefaultsCapsWorkers(t *testing.T) {
	var cfg Config
	cfg.Outbox.Workers = 100000
	cfg.ApplyDefaults()
	require.Equal(t, runtime.NumCPU(), cfg.Outbox.Workers)
}

func TestLoadEffectiveConfigPrecedence(t *testing.T) {
	fileCfg := &Config{}
	fileCfg.Server.Address = "10.0.0.1"
	fileCfg.Server.Port = 7000
	fileCfg.Server.DBPath = "/data/file-db"
	envCfg := &Config{}
	envCfg.Server.Address = "10.0.0.2"
	envCfg.Server.Port = 7001
	envCfg.Server.DBPath = "/data/env-db"

	t.Run("explicit config flag wins outright", func(t *testing.T) {
		flags := Flags{Config: "c.yaml", Set: map[string]bool{"config": true}}
		res, err := LoadEffectiveConfig(flags, fileCfg, true, envCfg, EnvResult{})
		require.NoError(t, err)
		require.Equal(t, "config", res.Source)
		require.Equal(t, "10.0.0.1:7000", res.Addr)
		require.Equal(t, "/data/file-db", res.DBPath)
	})

	t.Run("explicit config flag with missing file fails", func(t *testing.T) {
		flags := Flags{Config: "gone.yaml", Set: map[string]bool{"config": true}}
		_, err := LoadEffectiveConfig(flags, &Config{}, false, envCfg, EnvResult{})
		require.Error(t, err)
	})

	t.Run("addr and db flags override both sources", func(t *testing.T) {
		flags := Flags{Addr: ":9999", DB: "/data/flag-db", Set: map[string]bool{"addr": true, "db": true}}
		res, err := LoadEffectiveConfig(flags, fileCfg, true, envCfg, EnvResult{})
		require.NoError(t, err)
		require.Equal(t, "flags", res.Source)
		require.Equal(t, ":9999", res.Addr)
		require.Equal(t, "/data/flag-db", res.DBPath)
	})

	t.Run("partial flags fill db from env then file", func(t *testing.T) {
		flags := Flags{Addr: ":9999", Set: map[string]bool{"addr": true}}
		res, err := LoadEffectiveConfig(flags, fileCfg, true, envCfg, EnvResult{EnvUsed: true})
		require.NoError(t, err)
		require.Equal(t, "flags", res.Source)
		require.Equal(t, "/data/env-db", res.DBPath)
	})

	t.Run("config file beats env when no flags set", func(t *testing.T) {
		res, err := LoadEffectiveConfig(Flags{Set: map[string]bool{}}, fileCfg, true, envCfg, EnvResult{EnvUsed: true})
		require.NoError(t, err)
		require.Equal(t, "config", res.Source)
		require.Equal(t, "/data/file-db", res.DBPath)
	})

	t.Run("env is the fallback source", func(t *testing.T) {
		res, err := LoadEffectiveConfig(Flags{Set: map[string]bool{}}, &Config{}, false, envCfg, EnvResult{EnvUsed: true})
		require.NoError(t, err)
		require.Equal(t, "env", res.Source)
		require.Equal(t, "10.0.0.2:7001", res.Addr)
	})
}

func TestParseConfigEnvs(t *testing.T) {
	t.Setenv("FLOCK_SERVER_ADDR", "127.0.0.1:9090")
	t.Setenv("FLOCK_DB_PATH", "/data/env-db")
	t.Setenv("FLOCK_API_BACKEND_KEYS", "bk1, bk2")
	t.Setenv("FLOCK_CHAT_PAGE_SIZE", "40")
	t.Setenv("FLOCK_CHAT_TYPING_IDLE", "2s")
	t.Setenv("FLOCK_SWEEP_ENABLED", "true")
	t.Setenv("FLOCK_SWEEP_DRY_RUN", "no")

	cfg, res := ParseConfigEnvs()
	require.True(t, res.EnvUsed)
	require.Equal(t, "127.0.0.1", cfg.Server.Address)
	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "/data/env-db", cfg.Server.DBPath)
	require.Equal(t, []string{"bk1", "bk2"}, cfg.Security.APIKeys.Backend)
	require.Equal(t, 40, cfg.Chat.PageSize)
	require.Equal(t, 2*time.Second, cfg.Chat.TypingIdle.Duration())
	require.True(t, cfg.Sweep.Enabled)
	require.False(t, cfg.Sweep.DryRun)

	// backend keys double as signing secrets when none are named
	require.Contains(t, res.SigningKeys, "bk1")
	require.Contains(t, res.SigningKeys, "bk2")
}

func TestParseConfigEnvsExplicitSigningKeys(t *testing.T) {
	t.Setenv("FLOCK_API_BACKEND_KEYS", "bk1")
	t.Setenv("FLOCK_SIGNING_KEYS", "sk1")

	_, res := ParseConfigEnvs()
	require.Contains(t, res.SigningKeys, "sk1")
	require.NotContains(t, res.SigningKeys, "bk1")
	require.Contains(t, res.BackendKeys, "bk1")
}

func TestResolveConfigPath(t *testing.T) {
	t.Setenv("FLOCK_SERVER_CONFIG", "/etc/flock/server.yaml")
	t.Setenv("FLOCK_CONFIG", "/etc/flock/alt.yaml")

	require.Equal(t, "/from/flag.yaml", ResolveConfigPath("/from/flag.yaml", true))
	require.Equal(t, "/etc/flock/server.yaml", ResolveConfigPath("ignored.yaml", false))

	t.Setenv("FLOCK_SERVER_CONFIG", "")
	require.Equal(t, "/etc/flock/alt.yaml", ResolveConfigPath("ignored.yaml", false))
}

func validEffective(t *testing.T) EffectiveConfigResult {
	t.Helper()
	cfg := &Config{}
	cfg.Server.DBPath = "/data/db"
	return EffectiveConfigResult{Config: cfg, Addr: ":8080", DBPath: "/data/db", Source: "config"}
}

func TestValidateConfig(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		require.NoError(t, ValidateConfig(validEffective(t)))
	})

	t.Run("nil config", func(t *testing.T) {
		require.Error(t, ValidateConfig(EffectiveConfigResult{}))
	})

	t.Run("empty db path", func(t *testing.T) {
		eff := validEffective(t)
		eff.DBPath = ""
		require.Error(t, ValidateConfig(eff))
	})

	t.Run("profile batch limit above backend cap", func(t *testing.T) {
		eff := validEffective(t)
		eff.Config.Chat.ProfileBatchLimit = 11
		require.Error(t, ValidateConfig(eff))
	})

	t.Run("stale threshold below typing idle", func(t *testing.T) {
		eff := validEffective(t)
		eff.Config.Chat.TypingIdle = Duration(10 * time.Second)
		eff.Config.Chat.TypingStaleAfter = Duration(5 * time.Second)
		require.Error(t, ValidateConfig(eff))
	})

	t.Run("bad sweep cron", func(t *testing.T) {
		eff := validEffective(t)
		eff.Config.Sweep.Enabled = true
		eff.Config.Sweep.Cron = "every five minutes"
		require.Error(t, ValidateConfig(eff))
	})

	t.Run("cron ignored while sweeper disabled", func(t *testing.T) {
		eff := validEffective(t)
		eff.Config.Sweep.Cron = "every five minutes"
		require.NoError(t, ValidateConfig(eff))
	})

	t.Run("tls cert without key", func(t *testing.T) {
		eff := validEffective(t)
		eff.Config.Server.TLS.CertFile = "/etc/cert.pem"
		require.Error(t, ValidateConfig(eff))
	})

	t.Run("tls files must exist", func(t *testing.T) {
		eff := validEffective(t)
		eff.Config.Server.TLS.CertFile = "/no/such/cert.pem"
		eff.Config.Server.TLS.KeyFile = "/no/such/key.pem"
		require.Error(t, ValidateConfig(eff))
	})
}
