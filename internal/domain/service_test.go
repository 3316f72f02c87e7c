package domain

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFeed struct {
	posts []Post
	err   error
	calls int
	limit int
}

func (f *fakeFeed) RecentPosts(_ context.Context, limit int) ([]Post, error) {
	f.calls++
	f.limit = limit
	return f.posts, f.err
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []Payload
	// respond decides the outcome per payload; nil means success.
	respond func(p Payload) (DispatchOutcome, error)
}

func (n *fakeNotifier) Send(_ context.Context, p Payload) (DispatchOutcome, error) {
	n.mu.Lock()
	n.sent = append(n.sent, p)
	n.mu.Unlock()
	if n.respond != nil {
		return n.respond(p)
	}
	return DispatchOutcome{Success: true, ID: "notif-" + p.Data.Type}, nil
}

func (n *fakeNotifier) payloads() []Payload {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Payload(nil), n.sent...)
}

type fakeLedger struct {
	mu       sync.Mutex
	notified map[string]string
	lookErr  error
}

func (l *fakeLedger) IsNotified(_ context.Context, postID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.lookErr != nil {
		return false, l.lookErr
	}
	_, ok := l.notified[postID]
	return ok, nil
}

func (l *fakeLedger) MarkNotified(_ context.Context, postID, notificationID string, _ time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.notified[postID] = notificationID
	return nil
}

type countingObserver struct {
	mu         sync.Mutex
	dispatched map[string]int
	posts      int
	found      int
}

func (o *countingObserver) NotificationDispatched(kind string, success bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if success {
		o.dispatched[kind]++
	}
}

func (o *countingObserver) FeedScanned(posts, found int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.posts += posts
	o.found += found
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(t *testing.T, n Notifier, opts ...Option) *NotificationService {
	t.Helper()
	svc, err := NewNotificationService(newTestBuilder(), n, discardLogger(), opts...)
	require.NoError(t, err)
	return svc
}

var twoPosts = []Post{
	{ID: "1", Message: "New rate ₱12.50/kWh effective today", PermalinkURL: "https://facebook.com/p/1"},
	{ID: "2", Message: "Thank you for joining our tree planting drive!"},
}

func TestNewNotificationServiceValidates(t *testing.T) {
	_, err := NewNotificationService(nil, &fakeNotifier{}, discardLogger())
	assert.Error(t, err)

	_, err = NewNotificationService(newTestBuilder(), nil, discardLogger())
	assert.Error(t, err)

	_, err = NewNotificationService(newTestBuilder(), &fakeNotifier{}, discardLogger(), WithPostLimit(0))
	assert.Error(t, err)
}

func TestSendScheduled(t *testing.T) {
	n := &fakeNotifier{}
	svc := newTestService(t, n)

	res, err := svc.SendScheduled(context.Background(), "energy_tips")
	require.NoError(t, err)
	assert.True(t, res.Outcome.Success)
	assert.Equal(t, "energy_tips", res.Type)

	sent := n.payloads()
	require.Len(t, sent, 1)
	assert.Equal(t, "💡 Energy Saving Tip", sent[0].Headings.EN)
	assert.Equal(t, []string{"energy_tips"}, sent[0].IncludedSegments)
}

func TestSendScheduledUnknownType(t *testing.T) {
	n := &fakeNotifier{}
	svc := newTestService(t, n)

	_, err := svc.SendScheduled(context.Background(), "midnight")
	require.ErrorIs(t, err, ErrUnknownNotificationType)

	var typeErr *UnknownTypeError
	require.ErrorAs(t, err, &typeErr)
	assert.Equal(t, []string{"morning", "afternoon", "evening", "weekly", "energy_tips"}, typeErr.Available)
	assert.Equal(t, "Invalid notification type. Available types: morning, afternoon, evening, weekly, energy_tips", err.Error())
	assert.Empty(t, n.payloads())
}

func TestSendScheduledTransportError(t *testing.T) {
	n := &fakeNotifier{respond: func(Payload) (DispatchOutcome, error) {
		return DispatchOutcome{}, errors.New("connection refused")
	}}
	svc := newTestService(t, n)

	_, err := svc.SendScheduled(context.Background(), "morning")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestSendCustomDefaults(t *testing.T) {
	n := &fakeNotifier{}
	svc := newTestService(t, n)

	outcome, err := svc.SendCustom(context.Background(), CustomNotification{})
	require.NoError(t, err)
	assert.True(t, outcome.Success)

	sent := n.payloads()
	require.Len(t, sent, 1)
	assert.Equal(t, DefaultManualHeading, sent[0].Headings.EN)
	assert.Equal(t, DefaultManualMessage, sent[0].Contents.EN)
	assert.Equal(t, []string{"All"}, sent[0].IncludedSegments)
	assert.Equal(t, KindManual, sent[0].Data.Type)
}

func TestSendCustomOverrides(t *testing.T) {
	n := &fakeNotifier{}
	svc := newTestService(t, n)

	_, err := svc.SendCustom(context.Background(), CustomNotification{Heading: "Outage", Message: "Brownout at 2PM", Segment: "Tacloban"})
	require.NoError(t, err)

	sent := n.payloads()
	require.Len(t, sent, 1)
	assert.Equal(t, "Outage", sent[0].Headings.EN)
	assert.Equal(t, "Brownout at 2PM", sent[0].Contents.EN)
	assert.Equal(t, []string{"Tacloban"}, sent[0].IncludedSegments)
}

func TestMonitorFeedDisabled(t *testing.T) {
	n := &fakeNotifier{}
	svc := newTestService(t, n)

	report, err := svc.MonitorFeed(context.Background())
	require.NoError(t, err)
	assert.False(t, report.Enabled)
	assert.Empty(t, n.payloads())
}

func TestMonitorFeedDispatchesMatches(t *testing.T) {
	feed := &fakeFeed{posts: twoPosts}
	n := &fakeNotifier{}
	obs := &countingObserver{dispatched: map[string]int{}}
	svc := newTestService(t, n, WithFeed(feed), WithPostLimit(5), WithObserver(obs))

	report, err := svc.MonitorFeed(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, feed.limit)
	assert.True(t, report.Enabled)
	assert.Equal(t, 2, report.PostsAnalyzed)
	assert.Equal(t, 1, report.RateUpdatesFound)
	assert.Equal(t, 1, report.NotificationsSent)
	assert.False(t, report.Failed())

	sent := n.payloads()
	require.Len(t, sent, 1)
	assert.Equal(t, "https://facebook.com/p/1", sent[0].URL)
	assert.Contains(t, sent[0].Contents.EN, "₱12.50/kWh")

	assert.Equal(t, 1, obs.dispatched[KindRateUpdate])
	assert.Equal(t, 2, obs.posts)
	assert.Equal(t, 1, obs.found)
}

func TestMonitorFeedFetchError(t *testing.T) {
	feed := &fakeFeed{err: errors.New("failed to get access token")}
	svc := newTestService(t, &fakeNotifier{}, WithFeed(feed))

	_, err := svc.MonitorFeed(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to get access token")
}

func TestMonitorFeedIsolatesFailedDispatches(t *testing.T) {
	posts := []Post{
		{ID: "a", Message: "rate ₱10.00/kWh"},
		{ID: "b", Message: "rate ₱11.00/kWh"},
		{ID: "c", Message: "rate ₱12.00/kWh"},
	}
	n := &fakeNotifier{respond: func(p Payload) (DispatchOutcome, error) {
		switch p.Data.UpdateID {
		case "a":
			return DispatchOutcome{}, errors.New("dial tcp: timeout")
		case "b":
			return DispatchOutcome{Error: map[string]any{"errors": []any{"Invalid app_id"}}}, nil
		}
		return DispatchOutcome{Success: true, ID: "ok-" + p.Data.UpdateID}, nil
	}}

	for _, concurrency := range []int{1, 3} {
		svc := newTestService(t, n, WithFeed(&fakeFeed{posts: posts}), WithDispatchConcurrency(concurrency))

		report, err := svc.MonitorFeed(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 3, report.RateUpdatesFound)
		assert.Equal(t, 1, report.NotificationsSent)
		assert.Equal(t, 2, report.NotificationsFailed)
		assert.True(t, report.Failed())

		require.Len(t, report.Updates, 3)
		assert.Equal(t, "a", report.Updates[0].PostID)
		assert.Equal(t, "dial tcp: timeout", report.Updates[0].Outcome.Error)
		assert.Equal(t, "c", report.Updates[2].PostID)
		assert.Equal(t, "ok-c", report.Updates[2].Outcome.ID)
	}
}

func TestMonitorFeedSkipsAlreadyNotified(t *testing.T) {
	ledger := &fakeLedger{notified: map[string]string{}}
	n := &fakeNotifier{}
	svc := newTestService(t, n, WithFeed(&fakeFeed{posts: twoPosts}), WithLedger(ledger))

	first, err := svc.MonitorFeed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, first.NotificationsSent)
	assert.Equal(t, "notif-rate_update", ledger.notified["1"])

	second, err := svc.MonitorFeed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, second.RateUpdatesFound)
	assert.Equal(t, 0, second.NotificationsSent)
	assert.Equal(t, 1, second.AlreadyNotified)
	assert.True(t, second.Updates[0].Skipped)

	assert.Len(t, n.payloads(), 1)
}

func TestMonitorFeedLedgerErrorStillSends(t *testing.T) {
	ledger := &fakeLedger{notified: map[string]string{}, lookErr: errors.New("db down")}
	n := &fakeNotifier{}
	svc := newTestService(t, n, WithFeed(&fakeFeed{posts: twoPosts}), WithLedger(ledger))

	report, err := svc.MonitorFeed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.NotificationsSent)
}

func TestRunCombinedMorning(t *testing.T) {
	n := &fakeNotifier{}
	svc := newTestService(t, n, WithFeed(&fakeFeed{posts: twoPosts}))

	res, err := svc.RunCombined(context.Background(), "morning")
	require.NoError(t, err)
	assert.True(t, res.Success())

	require.NotNil(t, res.Scheduled)
	assert.True(t, res.Scheduled.Success)
	assert.Equal(t, "notif-morning", res.Scheduled.ResponseID)

	require.NotNil(t, res.Monitoring)
	assert.True(t, res.Monitoring.Success)
	assert.Equal(t, 2, res.Monitoring.Report.PostsAnalyzed)
	assert.Equal(t, 1, res.Monitoring.Report.RateUpdatesFound)

	sent := n.payloads()
	require.Len(t, sent, 2)
	assert.Equal(t, "morning", sent[0].Data.Type)
	assert.Equal(t, KindRateUpdate, sent[1].Data.Type)
}

func TestRunCombinedWeeklySkipsFeed(t *testing.T) {
	feed := &fakeFeed{posts: twoPosts}
	svc := newTestService(t, &fakeNotifier{}, WithFeed(feed))

	res, err := svc.RunCombined(context.Background(), "weekly")
	require.NoError(t, err)
	assert.NotNil(t, res.Scheduled)
	assert.Nil(t, res.Monitoring)
	assert.Zero(t, feed.calls)
}

func TestRunCombinedFeedCheckOnlyMonitors(t *testing.T) {
	n := &fakeNotifier{}
	svc := newTestService(t, n, WithFeed(&fakeFeed{posts: twoPosts}))

	res, err := svc.RunCombined(context.Background(), "facebook_check")
	require.NoError(t, err)
	assert.Nil(t, res.Scheduled)
	require.NotNil(t, res.Monitoring)
	assert.Len(t, n.payloads(), 1)
}

func TestRunCombinedWithoutFeedCredentials(t *testing.T) {
	n := &fakeNotifier{}
	svc := newTestService(t, n)

	res, err := svc.RunCombined(context.Background(), "morning")
	require.NoError(t, err)
	assert.NotNil(t, res.Scheduled)
	assert.Nil(t, res.Monitoring)
	assert.True(t, res.Success())
}

func TestRunCombinedPartialFailure(t *testing.T) {
	n := &fakeNotifier{}
	feed := &fakeFeed{err: errors.New("failed to fetch posts")}
	svc := newTestService(t, n, WithFeed(feed))

	res, err := svc.RunCombined(context.Background(), "morning")
	require.NoError(t, err)
	assert.True(t, res.Scheduled.Success)
	assert.False(t, res.Monitoring.Success)
	assert.Contains(t, res.Monitoring.Error, "failed to fetch posts")
	assert.False(t, res.Success())
}

func TestRunCombinedScheduledRejected(t *testing.T) {
	n := &fakeNotifier{respond: func(p Payload) (DispatchOutcome, error) {
		if p.Data.Type == "morning" {
			return DispatchOutcome{Error: map[string]any{"errors": []any{"All included players are not subscribed"}}}, nil
		}
		return DispatchOutcome{Success: true, ID: "x"}, nil
	}}
	svc := newTestService(t, n, WithFeed(&fakeFeed{posts: twoPosts}))

	res, err := svc.RunCombined(context.Background(), "morning")
	require.NoError(t, err)
	assert.False(t, res.Scheduled.Success)
	assert.NotNil(t, res.Scheduled.Error)
	assert.True(t, res.Monitoring.Success, "monitoring still runs after the scheduled branch fails")
	assert.False(t, res.Success())
}

func TestRunCombinedUnknownType(t *testing.T) {
	svc := newTestService(t, &fakeNotifier{})

	_, err := svc.RunCombined(context.Background(), "evening")
	require.ErrorIs(t, err, ErrUnknownNotificationType)
	assert.Contains(t, err.Error(), "morning, weekly, facebook_check")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "₱₱₱...", truncate("₱₱₱₱₱", 3))
}
