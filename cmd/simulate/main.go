package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/arena/internal/simulate"
	"github.com/okian/arena/pkg/logger"
)

// Default configuration constants.
const (
	defaultVotes   = 10000
	defaultTopN    = 50
	defaultWorkers = 2 // multiplier for runtime.NumCPU()
	defaultTimeout = 30 * time.Second
	runTimeout     = 10 * time.Minute
)

func main() {
	var (
		baseURL  = flag.String("url", "http://localhost:9080", "Base URL of the service")
		category = flag.String("category", "masculino", "Category to vote in")
		votes    = flag.Int("votes", defaultVotes, "Number of votes to cast")
		topN     = flag.Int("top", defaultTopN, "Leaderboard size to verify")
		workers  = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent voters")
		timeout  = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		format   = flag.String("log-format", logger.FormatText, "Log format: text or json")
		verbose  = flag.Bool("verbose", false, "Enable debug logging")
	)
	flag.Parse()

	if err := logger.Init(logger.WithFormat(*format)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	if *verbose {
		_ = logger.SetLevelString("debug")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	_, err := simulate.Run(ctx, &simulate.Config{
		BaseURL:  *baseURL,
		Category: *category,
		Votes:    *votes,
		Workers:  max(*workers, 1),
		Timeout:  *timeout,
		TopN:     *topN,
		Verbose:  *verbose,
	})
	if err != nil {
		logger.Get().Error(ctx, "simulation failed", logger.Error(err))
		os.Exit(1)
	}
}
