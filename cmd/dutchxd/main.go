// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/luxfi/dutchx/pkg/auction"
	"github.com/luxfi/dutchx/pkg/funds"
	"github.com/luxfi/dutchx/pkg/log"
	"github.com/luxfi/dutchx/pkg/metric"
	"github.com/luxfi/dutchx/pkg/receipts"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// Config is loaded from the environment; flags take precedence.
type Config struct {
	ListenAddr   string `env:"DUTCHX_LISTEN" envDefault:":8080"`
	DataDir      string `env:"DUTCHX_DATA_DIR" envDefault:"/var/lib/dutchxd"`
	FeePercent   uint64 `env:"DUTCHX_FEE_PERCENT" envDefault:"5"`
	ProceedsAddr string `env:"DUTCHX_PROCEEDS_ADDR" envDefault:"platform"`
	LogLevel     string `env:"DUTCHX_LOG_LEVEL" envDefault:"info"`
	InMemory     bool   `env:"DUTCHX_IN_MEMORY" envDefault:"false"`
}

func main() {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	var (
		listenAddr   = flag.String("listen", cfg.ListenAddr, "HTTP listen address")
		dataDir      = flag.String("data-dir", cfg.DataDir, "Data directory")
		feePercent   = flag.Uint64("fee-percent", cfg.FeePercent, "Platform fee, percent of the paid amount (0-100)")
		proceedsAddr = flag.String("proceeds-addr", cfg.ProceedsAddr, "Address credited with platform fees")
		logLevel     = flag.String("log-level", cfg.LogLevel, "Log level")
		inMemory     = flag.Bool("in-memory", cfg.InMemory, "Keep the receipt journal in memory")
		version      = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *version {
		fmt.Printf("dutchxd %s (commit: %s, built: %s)\n", Version, GitCommit, BuildTime)
		os.Exit(0)
	}

	logger := log.NewWithLevel(*logLevel)
	defer logger.Sync()

	registry, err := auction.NewRegistry[Deed](*feePercent, auction.Address(*proceedsAddr), auction.WithLogger(logger))
	if err != nil {
		logger.Error("invalid fee configuration", "fee_percent", *feePercent, "error", err)
		os.Exit(1)
	}

	var journal *receipts.Store
	if *inMemory {
		journal, err = receipts.OpenInMemory(logger)
	} else {
		journal, err = receipts.Open(*dataDir, logger)
	}
	if err != nil {
		logger.Error("failed to open receipt journal", "data_dir", *dataDir, "error", err)
		os.Exit(1)
	}
	defer journal.Close()

	metrics, err := metric.NewMetrics()
	if err != nil {
		logger.Error("failed to create metrics", "error", err)
		os.Exit(1)
	}

	server := NewServer(registry, journal, funds.NewLedger(), metrics, logger)

	srv := &http.Server{
		Addr:    *listenAddr,
		Handler: server.Router(),
	}

	go func() {
		logger.Info("dutchxd started",
			"version", Version,
			"listen", *listenAddr,
			"fee_percent", *feePercent,
			"proceeds_addr", *proceedsAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("forced shutdown", "error", err)
	}
}
