package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const (
	// KindManual tags notifications sent through the free-form endpoint.
	KindManual = "manual_notification"

	DefaultManualHeading = "E-Saver Reminder"
	DefaultManualMessage = "Time to check your energy usage!"
	DefaultManualSegment = "All"

	defaultPostLimit = 10
)

// NotificationService is the core domain service. It owns the orchestration
// of scheduled, manual and feed-driven notifications. It keeps no state
// between calls.
type NotificationService struct {
	builder     *PayloadBuilder
	notifier    Notifier
	feed        PostSource
	ledger      DispatchLedger
	observer    DispatchObserver
	postLimit   int
	concurrency int
	logger      *slog.Logger
}

// Option configures optional collaborators of a NotificationService.
type Option func(*NotificationService)

// WithFeed enables feed monitoring against src. Without it every feed
// branch reports itself disabled.
func WithFeed(src PostSource) Option {
	return func(s *NotificationService) { s.feed = src }
}

// WithLedger enables dispatch de-duplication by post id.
func WithLedger(l DispatchLedger) Option {
	return func(s *NotificationService) { s.ledger = l }
}

func WithObserver(o DispatchObserver) Option {
	return func(s *NotificationService) { s.observer = o }
}

// WithPostLimit sets how many recent posts one monitoring run analyzes.
func WithPostLimit(n int) Option {
	return func(s *NotificationService) { s.postLimit = n }
}

// WithDispatchConcurrency bounds parallel rate-update dispatches.
func WithDispatchConcurrency(n int) Option {
	return func(s *NotificationService) { s.concurrency = n }
}

// NewNotificationService creates a NotificationService.
func NewNotificationService(builder *PayloadBuilder, notifier Notifier, logger *slog.Logger, opts ...Option) (*NotificationService, error) {
	if builder == nil {
		return nil, errors.New("payload builder is required")
	}
	if notifier == nil {
		return nil, errors.New("notifier is required")
	}

	s := &NotificationService{
		builder:     builder,
		notifier:    notifier,
		observer:    nopObserver{},
		postLimit:   defaultPostLimit,
		concurrency: 1,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.postLimit < 1 {
		return nil, fmt.Errorf("post limit must be positive, got %d", s.postLimit)
	}
	if s.concurrency < 1 {
		s.concurrency = 1
	}
	return s, nil
}

// FeedEnabled reports whether feed monitoring is configured.
func (s *NotificationService) FeedEnabled() bool {
	return s.feed != nil
}

// ScheduledResult is the outcome of a catalog notification dispatch.
type ScheduledResult struct {
	Type    string
	Outcome DispatchOutcome
}

// SendScheduled dispatches the ScheduledCatalog message registered for typ.
func (s *NotificationService) SendScheduled(ctx context.Context, typ string) (*ScheduledResult, error) {
	msg, err := ScheduledCatalog.resolve(typ)
	if err != nil {
		return nil, err
	}

	s.logger.Info("sending scheduled notification", "type", typ)
	outcome, err := s.dispatch(ctx, typ, s.builder.BuildScheduled(msg.Type, msg.Heading, msg.Message, msg.Segment))
	if err != nil {
		return nil, fmt.Errorf("send %s notification: %w", typ, err)
	}
	return &ScheduledResult{Type: typ, Outcome: outcome}, nil
}

// CustomNotification holds caller overrides for a manual notification.
// Empty fields fall back to the manual defaults.
type CustomNotification struct {
	Heading string `json:"heading"`
	Message string `json:"message"`
	Segment string `json:"segment"`
}

// SendCustom dispatches a free-form notification.
func (s *NotificationService) SendCustom(ctx context.Context, n CustomNotification) (DispatchOutcome, error) {
	heading := orDefault(n.Heading, DefaultManualHeading)
	message := orDefault(n.Message, DefaultManualMessage)
	segment := orDefault(n.Segment, DefaultManualSegment)

	s.logger.Info("sending manual notification", "segment", segment)
	outcome, err := s.dispatch(ctx, KindManual, s.builder.BuildScheduled(KindManual, heading, message, segment))
	if err != nil {
		return DispatchOutcome{}, fmt.Errorf("send notification: %w", err)
	}
	return outcome, nil
}

// RateUpdateResult is the per-post record of a monitoring run.
type RateUpdateResult struct {
	PostID        string
	PostURL       string
	ExtractedRate decimal.NullDecimal

	// Skipped is true when the ledger showed the post was already notified.
	Skipped bool
	Outcome DispatchOutcome
}

// MonitorReport summarizes one fetch, detect and dispatch pass.
type MonitorReport struct {
	Enabled             bool
	PostsAnalyzed       int
	RateUpdatesFound    int
	NotificationsSent   int
	NotificationsFailed int
	AlreadyNotified     int
	Updates             []RateUpdateResult
}

// Failed reports whether any rate-update dispatch failed.
func (r *MonitorReport) Failed() bool {
	return r.NotificationsFailed > 0
}

// MonitorFeed fetches recent posts, runs the detector on each and dispatches a
// rate-update notification for every match. A failed dispatch is recorded in
// the report and does not stop the others. The returned error covers only
// the feed fetch.
func (s *NotificationService) MonitorFeed(ctx context.Context) (*MonitorReport, error) {
	if s.feed == nil {
		return &MonitorReport{}, nil
	}

	s.logger.Info("starting feed rate monitoring")
	posts, err := s.feed.RecentPosts(ctx, s.postLimit)
	if err != nil {
		return nil, fmt.Errorf("fetch posts: %w", err)
	}
	s.logger.Info("fetched posts", "count", len(posts))

	var matches []PostAnalysis
	for _, p := range posts {
		a := AnalyzePost(p)
		if !a.IsRateUpdate {
			continue
		}
		s.logger.Info("rate update found",
			"post_id", a.PostID,
			"extracted_rate", a.ExtractedRate.Decimal.String(),
			"has_rate", a.ExtractedRate.Valid,
			"text_preview", truncate(a.Message, 100),
		)
		matches = append(matches, a)
	}

	report := &MonitorReport{
		Enabled:          true,
		PostsAnalyzed:    len(posts),
		RateUpdatesFound: len(matches),
		Updates:          make([]RateUpdateResult, len(matches)),
	}

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, a := range matches {
		g.Go(func() error {
			report.Updates[i] = s.notifyRateUpdate(ctx, a)
			return nil
		})
	}
	_ = g.Wait()

	for _, u := range report.Updates {
		switch {
		case u.Skipped:
			report.AlreadyNotified++
		case u.Outcome.Success:
			report.NotificationsSent++
		default:
			report.NotificationsFailed++
		}
	}

	s.observer.FeedScanned(report.PostsAnalyzed, report.RateUpdatesFound)
	s.logger.Info("feed rate monitoring complete",
		"posts_analyzed", report.PostsAnalyzed,
		"rate_updates_found", report.RateUpdatesFound,
		"notifications_sent", report.NotificationsSent,
		"notifications_failed", report.NotificationsFailed,
		"already_notified", report.AlreadyNotified,
	)
	return report, nil
}

func (s *NotificationService) notifyRateUpdate(ctx context.Context, a PostAnalysis) RateUpdateResult {
	payload := s.builder.BuildRateUpdate(a.ExtractedRate, a.PermalinkURL, a.PostID)
	result := RateUpdateResult{
		PostID:        a.PostID,
		PostURL:       payload.URL,
		ExtractedRate: a.ExtractedRate,
	}

	if s.ledger != nil {
		notified, err := s.ledger.IsNotified(ctx, a.PostID)
		if err != nil {
			s.logger.Warn("dispatch ledger lookup failed, sending anyway", "post_id", a.PostID, "error", err)
		} else if notified {
			s.logger.Info("rate update already notified", "post_id", a.PostID)
			result.Skipped = true
			return result
		}
	}

	outcome, err := s.dispatch(ctx, KindRateUpdate, payload)
	if err != nil {
		outcome = DispatchOutcome{Error: err.Error()}
	}
	result.Outcome = outcome

	if !outcome.Success {
		s.logger.Error("failed to send rate update notification", "post_id", a.PostID, "error", outcome.Error)
		return result
	}
	s.logger.Info("rate update notification sent", "post_id", a.PostID, "notification_id", outcome.ID)

	if s.ledger != nil {
		if err := s.ledger.MarkNotified(ctx, a.PostID, outcome.ID, time.Now().UTC()); err != nil {
			s.logger.Warn("failed to record dispatch", "post_id", a.PostID, "error", err)
		}
	}
	return result
}

// ScheduledBranch is the scheduled-message half of a combined run.
type ScheduledBranch struct {
	Success    bool
	Type       string
	ResponseID string
	Error      any
}

// MonitoringBranch is the feed-monitoring half of a combined run.
type MonitoringBranch struct {
	Success bool
	Report  *MonitorReport
	Error   string
}

// CombinedResult aggregates the branches a combined type ran. A nil branch
// was not attempted.
type CombinedResult struct {
	Type       string
	Scheduled  *ScheduledBranch
	Monitoring *MonitoringBranch
}

// Success reports whether every attempted branch succeeded.
func (r *CombinedResult) Success() bool {
	if r.Scheduled != nil && !r.Scheduled.Success {
		return false
	}
	if r.Monitoring != nil && !r.Monitoring.Success {
		return false
	}
	return true
}

// RunCombined runs the scheduled and feed-monitoring branches selected by
// typ. Each branch's failure is captured in its own result; only an unknown
// type is returned as an error.
func (s *NotificationService) RunCombined(ctx context.Context, typ string) (*CombinedResult, error) {
	msg, err := CombinedCatalog.resolve(typ)
	if err != nil {
		return nil, err
	}

	result := &CombinedResult{Type: typ}
	sendScheduled, monitorFeed := combinedPlan(typ)

	if sendScheduled {
		s.logger.Info("sending scheduled notification", "type", typ)
		branch := &ScheduledBranch{Type: typ}
		outcome, err := s.dispatch(ctx, typ, s.builder.BuildScheduled(msg.Type, msg.Heading, msg.Message, msg.Segment))
		switch {
		case err != nil:
			branch.Error = err.Error()
		case outcome.Success:
			branch.Success = true
			branch.ResponseID = outcome.ID
		default:
			branch.Error = outcome.Error
		}
		result.Scheduled = branch
	}

	if monitorFeed && s.FeedEnabled() {
		branch := &MonitoringBranch{}
		report, err := s.MonitorFeed(ctx)
		if err != nil {
			s.logger.Error("feed monitoring failed", "error", err)
			branch.Error = err.Error()
		} else {
			branch.Report = report
			branch.Success = !report.Failed()
			if report.Failed() {
				branch.Error = fmt.Sprintf("%d of %d rate update notifications failed", report.NotificationsFailed, report.RateUpdatesFound)
			}
		}
		result.Monitoring = branch
	}

	return result, nil
}

func (s *NotificationService) dispatch(ctx context.Context, kind string, payload Payload) (DispatchOutcome, error) {
	outcome, err := s.notifier.Send(ctx, payload)
	s.observer.NotificationDispatched(kind, err == nil && outcome.Success)
	return outcome, err
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

// truncate returns the first n characters of s, appending "..." if truncated.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
