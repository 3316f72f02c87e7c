package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/blackmichael/esaver-notifier/internal/app"
	"github.com/blackmichael/esaver-notifier/internal/config"
	"github.com/blackmichael/esaver-notifier/internal/httpserver"
	"github.com/blackmichael/esaver-notifier/internal/metrics"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	bootLogger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	config.LoadDotEnv(bootLogger)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	collector := metrics.New(app.ServiceName)
	a, err := app.New(ctx, cfg, collector, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	if a.HasLedger() {
		go a.StartLedgerPruning(ctx, time.Hour, 30*24*time.Hour)
	}

	server := httpserver.NewServer(cfg, a.Service, collector, logger)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server exited with error", "error", err)
			sigCh <- syscall.SIGTERM
		}
	}()

	logger.Info("server started", "port", cfg.Port, "feed_enabled", cfg.FeedEnabled(), "ledger", a.HasLedger())

	sig := <-sigCh
	logger.Info("received signal, shutting down", "signal", sig)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("error shutting down http server", "error", err)
	}

	return nil
}
