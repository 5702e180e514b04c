package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/mathscan/mathscan/internal/cli"
	"github.com/mathscan/mathscan/internal/config"
	"github.com/mathscan/mathscan/internal/logger"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	os.Exit(run())
}

// run returns the process exit code. Deferred calls, including closing the
// log file, complete before main exits.
func run() int {
	// A missing .env file is normal.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}

	closer, err := logger.Setup(cfg.GetLoggerConfig())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return 2
	}
	defer closer.Close()

	log := logger.WithComponent("main")
	log.Debug().
		Str("version", Version).
		Str("build_time", BuildTime).
		Str("commit", GitCommit).
		Msg("Starting mathscan")

	if err := cli.Execute(cfg, fmt.Sprintf("%s (built %s, commit %s)", Version, BuildTime, GitCommit)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
