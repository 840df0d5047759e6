package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/samsmithyeah/flock-sub002/internal/app"
	"github.com/samsmithyeah/flock-sub002/pkg/config"
	"github.com/samsmithyeah/flock-sub002/pkg/logger"
	"github.com/samsmithyeah/flock-sub002/pkg/state"
)

// set by the linker at build time
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	// load .env file if present
	_ = godotenv.Load(".env")

	// parse config flags
	flags := config.ParseConfigFlags()

	// parse config file
	fileCfg, fileExists, err := config.ParseConfigFile(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config file: %v\n", err)
		os.Exit(1)
	}

	// parse config env variables
	envCfg, envRes := config.ParseConfigEnvs()

	// load effective config
	eff, err := config.LoadEffectiveConfig(flags, fileCfg, fileExists, envCfg, envRes)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build effective config: %v\n", err)
		os.Exit(1)
	}

	// validate config
	if err := config.ValidateConfig(eff); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	if flags.Validate {
		fmt.Println("configuration valid")
		return
	}

	// initialize logger after config is fully loaded
	logger.Init(eff.Config.Logging.Level)
	defer logger.Sync()

	logger.Info("effective_config_loaded", "source", eff.Source, "addr", eff.Addr, "db_path", eff.DBPath)
	logger.Info("config_validation_passed")

	// pin GOMAXPROCS and cap worker counts
	eff.Config.ApplyDefaults()

	// init database folders and ensure the filesystem layout
	if err := state.Init(eff.DBPath); err != nil {
		logger.Error("state_dirs_setup_failed", "error", err)
		fmt.Fprintf(os.Stderr, "state_dirs_setup_failed: %v\n", err)
		os.Exit(1)
	}

	// initialize app
	a, err := app.New(eff, version, commit, buildDate)
	if err != nil {
		state.Crash("failed to initialize app", err)
	}

	a.PrintBanner()

	// set up context and signal handling for graceful shutdown
	ctx, cancel := app.SetupSignalHandler(context.Background())
	defer cancel()

	// run the app
	if err := a.Run(ctx); err != nil {
		state.Crash("app run failed", err)
	}

	// shutdown with a bounded timeout so teardown cannot hang forever
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer shutdownCancel()
	_ = a.Shutdown(shutdownCtx)
}
