package config

import (
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

// holds parsed command-line flag values and which were set
type Flags struct {
	Addr     string
	DB       string
	Config   string
	Set      map[string]bool
	Validate bool
}

// holds the results of applying environment overrides
type EnvResult struct {
	BackendKeys map[string]struct{}
	SigningKeys map[string]struct{}
	EnvUsed     bool
}

// holds the result of LoadEffectiveConfig
type EffectiveConfigResult struct {
	Config *Config
	Addr   string
	DBPath string
	Source string // "flags", "config", or "env"
}

// parses command-line flags and returns them as a Flags struct
func ParseConfigFlags() Flags {
	addrPtr := flag.String("addr", ":8080", "HTTP listen address")
	dbPtr := flag.String("db", "./.database", "Pebble DB path")
	cfgPtr := flag.String("config", "./config.yaml", "Path to config file")
	flag.Parse()

	setFlags := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = true })

	return Flags{Addr: *addrPtr, DB: *dbPtr, Config: *cfgPtr, Set: setFlags}
}

// loads config from file, returns config, found bool, and error
func ParseConfigFile(flags Flags) (*Config, bool, error) {
	cfgPath := ResolveConfigPath(flags.Config, flags.Set["config"])
	cfg, err := LoadConfigFile(cfgPath)
	if err != nil {
		if os.IsNotExist(err) || strings.Contains(err.Error(), "not found") {
			return &Config{}, false, nil
		}
		return nil, false, err
	}
	return cfg, true, nil
}

// loads environment variables into a new Config and returns it with
// EnvResult; caller config is unchanged
func ParseConfigEnvs() (*Config, EnvResult) {
	envs := map[string]string{
		"SERVER_ADDR":       os.Getenv("FLOCK_SERVER_ADDR"),
		"ADDR":              os.Getenv("FLOCK_ADDR"),
		"SERVER_ADDRESS":    os.Getenv("FLOCK_SERVER_ADDRESS"),
		"SERVER_PORT":       os.Getenv("FLOCK_SERVER_PORT"),
		"SERVER_DB_PATH":    os.Getenv("FLOCK_SERVER_DB_PATH"),
		"DB_PATH":           os.Getenv("FLOCK_DB_PATH"),
		"STATE_DIR":         os.Getenv("FLOCK_STATE_DIR"),
		"CORS_ORIGINS":      os.Getenv("FLOCK_CORS_ORIGINS"),
		"RATE_RPS":          os.Getenv("FLOCK_RATE_RPS"),
		"RATE_BURST":        os.Getenv("FLOCK_RATE_BURST"),
		"IP_WHITELIST":      os.Getenv("FLOCK_IP_WHITELIST"),
		"API_BACKEND_KEYS":  os.Getenv("FLOCK_API_BACKEND_KEYS"),
		"API_FRONTEND_KEYS": os.Getenv("FLOCK_API_FRONTEND_KEYS"),
		"API_ADMIN_KEYS":    os.Getenv("FLOCK_API_ADMIN_KEYS"),
		"SIGNING_KEYS":      os.Getenv("FLOCK_SIGNING_KEYS"),
		"TLS_CERT":          os.Getenv("FLOCK_TLS_CERT"),
		"TLS_KEY":           os.Getenv("FLOCK_TLS_KEY"),

		// chat runtime
		"CHAT_PAGE_SIZE":           os.Getenv("FLOCK_CHAT_PAGE_SIZE"),
		"CHAT_PROFILE_BATCH_LIMIT": os.Getenv("FLOCK_CHAT_PROFILE_BATCH_LIMIT"),
		"CHAT_TYPING_IDLE":         os.Getenv("FLOCK_CHAT_TYPING_IDLE"),
		"CHAT_TYPING_STALE_AFTER":  os.Getenv("FLOCK_CHAT_TYPING_STALE_AFTER"),
		"CHAT_CACHE_TTL":           os.Getenv("FLOCK_CHAT_CACHE_TTL"),

		// outbox / feed
		"OUTBOX_CAPACITY": os.Getenv("FLOCK_OUTBOX_CAPACITY"),
		"OUTBOX_WORKERS":  os.Getenv("FLOCK_OUTBOX_WORKERS"),
		"FEED_BUFFER":     os.Getenv("FLOCK_FEED_BUFFER"),

		// sweeper
		"SWEEP_ENABLED":  os.Getenv("FLOCK_SWEEP_ENABLED"),
		"SWEEP_CRON":     os.Getenv("FLOCK_SWEEP_CRON"),
		"SWEEP_LOCK_TTL": os.Getenv("FLOCK_SWEEP_LOCK_TTL"),
		"SWEEP_DRY_RUN":  os.Getenv("FLOCK_SWEEP_DRY_RUN"),

		// telemetry
		"TELEMETRY_SAMPLE_RATE":    os.Getenv("FLOCK_TELEMETRY_SAMPLE_RATE"),
		"TELEMETRY_SLOW_THRESHOLD": os.Getenv("FLOCK_TELEMETRY_SLOW_THRESHOLD"),
		"TELEMETRY_DIR":            os.Getenv("FLOCK_TELEMETRY_DIR"),

		// sensor.monitor
		"SENSOR_MONITOR_POLL_INTERVAL":   os.Getenv("FLOCK_SENSOR_MONITOR_POLL_INTERVAL"),
		"SENSOR_MONITOR_MEM_HIGH_PCT":    os.Getenv("FLOCK_SENSOR_MONITOR_MEM_HIGH_PCT"),
		"SENSOR_MONITOR_MEM_LOW_PCT":     os.Getenv("FLOCK_SENSOR_MONITOR_MEM_LOW_PCT"),
		"SENSOR_MONITOR_RECOVERY_WINDOW": os.Getenv("FLOCK_SENSOR_MONITOR_RECOVERY_WINDOW"),

		// logging
		"LOG_LEVEL":     os.Getenv("FLOCK_LOG_LEVEL"),
		"LOG_AUDIT_DIR": os.Getenv("FLOCK_LOG_AUDIT_DIR"),
	}

	envUsed := false
	for _, v := range envs {
		if v != "" {
			envUsed = true
			break
		}
	}
	envCfg := &Config{}

	parseList := func(v string) []string {
		if v == "" {
			return nil
		}
		parts := []string{}
		for _, p := range strings.Split(v, ",") {
			if s := strings.TrimSpace(p); s != "" {
				parts = append(parts, s)
			}
		}
		return parts
	}

	parseBool := func(v string, def bool) bool {
		if v == "" {
			return def
		}
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes":
			return true
		default:
			return false
		}
	}

	parseDuration := func(v string) Duration {
		if strings.TrimSpace(v) == "" {
			return Duration(0)
		}
		if td, err := time.ParseDuration(v); err == nil {
			return Duration(td)
		}
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return Duration(time.Duration(f * float64(time.Second)))
		}
		return Duration(0)
	}

	parseInt := func(v string) (int, bool) {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n, true
		}
		return 0, false
	}

	// address precedence follows SERVER_ADDR > ADDR > ADDRESS+PORT
	if v := envs["SERVER_ADDR"]; v != "" {
		if h, p, err := net.SplitHostPort(v); err == nil {
			envCfg.Server.Address = h
			if pi, err := strconv.Atoi(p); err == nil {
				envCfg.Server.Port = pi
			}
		} else {
			envCfg.Server.Address = v
		}
	} else if v := envs["ADDR"]; v != "" {
		if h, p, err := net.SplitHostPort(v); err == nil {
			envCfg.Server.Address = h
			if pi, err := strconv.Atoi(p); err == nil {
				envCfg.Server.Port = pi
			}
		} else {
			envCfg.Server.Address = v
		}
	} else {
		if host := envs["SERVER_ADDRESS"]; host != "" {
			envCfg.Server.Address = host
		}
		if port := envs["SERVER_PORT"]; port != "" {
			if pi, ok := parseInt(port); ok {
				envCfg.Server.Port = pi
			}
		}
	}

	if v := envs["SERVER_DB_PATH"]; v != "" {
		envCfg.Server.DBPath = v
	} else if v := envs["DB_PATH"]; v != "" {
		envCfg.Server.DBPath = v
	}
	if v := envs["STATE_DIR"]; v != "" {
		envCfg.Server.StateDir = v
	}

	if v := envs["CORS_ORIGINS"]; v != "" {
		envCfg.Security.CORS.AllowedOrigins = parseList(v)
	}
	if v := envs["RATE_RPS"]; v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			envCfg.Security.RateLimit.RPS = f
		}
	}
	if v := envs["RATE_BURST"]; v != "" {
		if n, ok := parseInt(v); ok {
			envCfg.Security.RateLimit.Burst = n
		}
	}
	if v := envs["IP_WHITELIST"]; v != "" {
		envCfg.Security.IPWhitelist = parseList(v)
	}
	if v := envs["API_BACKEND_KEYS"]; v != "" {
		envCfg.Security.APIKeys.Backend = parseList(v)
	}
	if v := envs["API_FRONTEND_KEYS"]; v != "" {
		envCfg.Security.APIKeys.Frontend = parseList(v)
	}
	if v := envs["API_ADMIN_KEYS"]; v != "" {
		envCfg.Security.APIKeys.Admin = parseList(v)
	}
	if v := envs["SIGNING_KEYS"]; v != "" {
		envCfg.Security.SigningKeys = parseList(v)
	}

	if c := envs["TLS_CERT"]; c != "" {
		envCfg.Server.TLS.CertFile = c
	}
	if k := envs["TLS_KEY"]; k != "" {
		envCfg.Server.TLS.KeyFile = k
	}

	backendKeys := make(map[string]struct{})
	for _, k := range envCfg.Security.APIKeys.Backend {
		backendKeys[k] = struct{}{}
	}
	signingKeys := make(map[string]struct{})
	for _, k := range envCfg.Security.SigningKeys {
		signingKeys[k] = struct{}{}
	}
	// backend keys double as signing secrets when none are named
	if len(signingKeys) == 0 {
		for k := range backendKeys {
			signingKeys[k] = struct{}{}
		}
	}

	if v := envs["CHAT_PAGE_SIZE"]; v != "" {
		if n, ok := parseInt(v); ok {
			envCfg.Chat.PageSize = n
		}
	}
	if v := envs["CHAT_PROFILE_BATCH_LIMIT"]; v != "" {
		if n, ok := parseInt(v); ok {
			envCfg.Chat.ProfileBatchLimit = n
		}
	}
	if v := envs["CHAT_TYPING_IDLE"]; v != "" {
		envCfg.Chat.TypingIdle = parseDuration(v)
	}
	if v := envs["CHAT_TYPING_STALE_AFTER"]; v != "" {
		envCfg.Chat.TypingStaleAfter = parseDuration(v)
	}
	if v := envs["CHAT_CACHE_TTL"]; v != "" {
		envCfg.Chat.CacheTTL = parseDuration(v)
	}

	if v := envs["OUTBOX_CAPACITY"]; v != "" {
		if n, ok := parseInt(v); ok {
			envCfg.Outbox.Capacity = n
		}
	}
	if v := envs["OUTBOX_WORKERS"]; v != "" {
		if n, ok := parseInt(v); ok {
			envCfg.Outbox.Workers = n
		}
	}
	if v := envs["FEED_BUFFER"]; v != "" {
		if n, ok := parseInt(v); ok {
			envCfg.Feed.Buffer = n
		}
	}

	if v := envs["SWEEP_ENABLED"]; v != "" {
		envCfg.Sweep.Enabled = parseBool(v, false)
	}
	if v := envs["SWEEP_CRON"]; v != "" {
		envCfg.Sweep.Cron = v
	}
	if v := envs["SWEEP_LOCK_TTL"]; v != "" {
		envCfg.Sweep.LockTTL = parseDuration(v)
	}
	if v := envs["SWEEP_DRY_RUN"]; v != "" {
		envCfg.Sweep.DryRun = parseBool(v, false)
	}

	if v := envs["TELEMETRY_SAMPLE_RATE"]; v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			envCfg.Telemetry.SampleRate = f
		}
	}
	if v := envs["TELEMETRY_SLOW_THRESHOLD"]; v != "" {
		envCfg.Telemetry.SlowThreshold = parseDuration(v)
	}
	if v := envs["TELEMETRY_DIR"]; v != "" {
		envCfg.Telemetry.Dir = v
	}

	if v := envs["SENSOR_MONITOR_POLL_INTERVAL"]; v != "" {
		envCfg.Sensor.Monitor.PollInterval = parseDuration(v)
	}
	if v := envs["SENSOR_MONITOR_MEM_HIGH_PCT"]; v != "" {
		if n, ok := parseInt(v); ok {
			envCfg.Sensor.Monitor.MemHighPct = n
		}
	}
	if v := envs["SENSOR_MONITOR_MEM_LOW_PCT"]; v != "" {
		if n, ok := parseInt(v); ok {
			envCfg.Sensor.Monitor.MemLowPct = n
		}
	}
	if v := envs["SENSOR_MONITOR_RECOVERY_WINDOW"]; v != "" {
		envCfg.Sensor.Monitor.RecoveryWindow = parseDuration(v)
	}

	if v := envs["LOG_LEVEL"]; v != "" {
		envCfg.Logging.Level = strings.TrimSpace(v)
	}
	if v := envs["LOG_AUDIT_DIR"]; v != "" {
		envCfg.Logging.AuditDir = strings.TrimSpace(v)
	}

	return envCfg, EnvResult{BackendKeys: backendKeys, SigningKeys: signingKeys, EnvUsed: envUsed}
}

// decides which single source to use (flags, config file, or env) and
// returns the effective config plus resolved addr and dbPath. if
// --config is set, only the config file is used; otherwise flags if
// set; else config file if present; else env
func LoadEffectiveConfig(flags Flags, fileCfg *Config, fileExists bool, envCfg *Config, envRes EnvResult) (EffectiveConfigResult, error) {
	var res EffectiveConfigResult

	if flags.Set["config"] {
		if !fileExists {
			return res, fmt.Errorf("config file %s not found", flags.Config)
		}
		res.Config = fileCfg
		res.Addr = fileCfg.Addr()
		res.DBPath = fileCfg.Server.DBPath
		res.Source = "config"
		return res, nil
	}

	if flags.Set["addr"] || flags.Set["db"] {
		addr := flags.Addr
		if !flags.Set["addr"] {
			addr = envCfg.Addr()
			if addr == "" {
				addr = fileCfg.Addr()
			}
		}
		dbPath := flags.DB
		if !flags.Set["db"] {
			if p := strings.TrimSpace(envCfg.Server.DBPath); p != "" {
				dbPath = p
			} else if p := strings.TrimSpace(fileCfg.Server.DBPath); p != "" {
				dbPath = p
			}
		}
		out := &Config{}
		out.Server.Address = addr
		out.Server.Port = parsePortFromAddr(addr)
		out.Server.DBPath = dbPath
		res.Config = out
		res.Addr = addr
		res.DBPath = dbPath
		res.Source = "flags"
		return res, nil
	}

	if fileExists {
		res.Config = fileCfg
		res.Addr = fileCfg.Addr()
		res.DBPath = fileCfg.Server.DBPath
		res.Source = "config"
		return res, nil
	}
	res.Config = envCfg
	res.Addr = envCfg.Addr()
	res.DBPath = envCfg.Server.DBPath
	res.Source = "env"
	return res, nil
}

// extracts port integer from host:port string
func parsePortFromAddr(a string) int {
	if a == "" {
		return 0
	}
	if _, p, err := net.SplitHostPort(a); err == nil {
		if pi, err := strconv.Atoi(p); err == nil {
			return pi
		}
	}
	return 0
}
