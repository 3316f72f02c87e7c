// Package app assembles the notification service from configuration. The
// server, Lambda and CLI entry points share it.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/blackmichael/esaver-notifier/internal/config"
	"github.com/blackmichael/esaver-notifier/internal/domain"
	"github.com/blackmichael/esaver-notifier/internal/facebook"
	"github.com/blackmichael/esaver-notifier/internal/metrics"
	"github.com/blackmichael/esaver-notifier/internal/onesignal"
	"github.com/blackmichael/esaver-notifier/internal/postgres"
	"github.com/blackmichael/esaver-notifier/internal/sqlite"
)

const ServiceName = "esaver-notifier"

// ledgerStore is what both ledger backends provide.
type ledgerStore interface {
	domain.DispatchLedger
	domain.LedgerPruner
	io.Closer
}

// App holds the wired collaborators. Close releases the ledger, if any.
type App struct {
	Config  *config.Config
	Service *domain.NotificationService
	Metrics *metrics.Collector

	// Feed is nil when feed credentials are not configured.
	Feed *facebook.Client

	ledger ledgerStore
	logger *slog.Logger
}

// New wires the service described by cfg. collector may be nil.
func New(ctx context.Context, cfg *config.Config, collector *metrics.Collector, logger *slog.Logger) (*App, error) {
	a := &App{Config: cfg, Metrics: collector, logger: logger}

	builder := domain.NewPayloadBuilder(cfg.OneSignal.AppID, cfg.Facebook.ProfileURL, time.Now)
	notifier := onesignal.NewClient(cfg.OneSignal.APIURL, cfg.OneSignal.RESTAPIKey, cfg.OutboundTimeout)

	opts := []domain.Option{
		domain.WithPostLimit(cfg.PostLimit),
		domain.WithDispatchConcurrency(cfg.DispatchConcurrency),
	}
	if collector != nil {
		opts = append(opts, domain.WithObserver(collector))
	}

	if cfg.FeedEnabled() {
		a.Feed = facebook.NewClient(cfg.Facebook.GraphURL, cfg.OutboundTimeout, facebook.Config{
			AppID:     cfg.Facebook.AppID,
			AppSecret: cfg.Facebook.AppSecret,
			PageID:    cfg.Facebook.PageID,
			Version:   cfg.Facebook.GraphVersion,
		}, logger)
		opts = append(opts, domain.WithFeed(a.Feed))
	} else {
		logger.Warn("feed credentials not configured, feed monitoring disabled")
	}

	ledger, err := openLedger(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if ledger != nil {
		a.ledger = ledger
		opts = append(opts, domain.WithLedger(ledger))
	}

	svc, err := domain.NewNotificationService(builder, notifier, logger, opts...)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create notification service: %w", err)
	}
	a.Service = svc
	return a, nil
}

func openLedger(ctx context.Context, cfg *config.Config) (ledgerStore, error) {
	switch {
	case cfg.DatabaseURL != "":
		repo, err := postgres.NewRepository(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open postgres ledger: %w", err)
		}
		return repo, nil
	case cfg.LedgerSQLitePath != "":
		l, err := sqlite.Open(ctx, cfg.LedgerSQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite ledger: %w", err)
		}
		return l, nil
	}
	return nil, nil
}

// StartLedgerPruning runs the ledger prune job until ctx is done. It returns
// immediately when no ledger is configured.
func (a *App) StartLedgerPruning(ctx context.Context, interval, maxAge time.Duration) {
	if a.ledger == nil {
		return
	}
	domain.StartLedgerPruneJob(ctx, a.ledger, interval, maxAge, a.logger)
}

// HasLedger reports whether a dispatch ledger is configured.
func (a *App) HasLedger() bool {
	return a.ledger != nil
}

func (a *App) Close() {
	if a.ledger == nil {
		return
	}
	if err := a.ledger.Close(); err != nil {
		a.logger.Error("failed to close dispatch ledger", "error", err)
	}
}
