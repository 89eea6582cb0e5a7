// Fraud Guardian - transaction risk scoring for Bank of Anthos
package main

import (
	"context"
	"os"

	"github.com/samarthmishra46/anthos-fraud-guardian/internal/config"
	"github.com/samarthmishra46/anthos-fraud-guardian/internal/logging"
	"github.com/samarthmishra46/anthos-fraud-guardian/internal/server"
)

// Build info - set by ldflags
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	logger := logging.New("info", "text")

	logger.Info("starting fraud guardian",
		"version", Version,
		"commit", Commit,
		"build_time", BuildTime,
	)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"env", cfg.Env,
		"block_threshold", cfg.BlockThreshold,
		"history_api", cfg.HistoryAPIAddr,
		"ledger_api", cfg.TransactionsAPIAddr,
	)

	srv, err := server.New(cfg, server.WithLogger(logger))
	if err != nil {
		logger.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	if err := srv.Run(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
