package domain

import (
	"context"
	"time"
)

// PostSource lists recent posts from the monitored content feed.
type PostSource interface {
	// RecentPosts returns up to limit of the newest posts, newest first.
	RecentPosts(ctx context.Context, limit int) ([]Post, error)
}

// Notifier dispatches a single push notification.
type Notifier interface {
	// Send delivers payload once. A rejected or malformed upstream response
	// is reported through the outcome; the error is reserved for transport
	// failures.
	Send(ctx context.Context, payload Payload) (DispatchOutcome, error)
}

// DispatchOutcome is the result of one outbound notification call.
type DispatchOutcome struct {
	Success bool

	// ID is the identifier the notification service assigned on success.
	ID string

	// Error is the upstream error payload on failure. It is kept verbatim so
	// callers can surface it in their responses.
	Error any
}

// DispatchLedger records which posts already produced a notification so a
// re-triggered run does not notify twice.
type DispatchLedger interface {
	// IsNotified reports whether postID was already dispatched.
	IsNotified(ctx context.Context, postID string) (bool, error)

	// MarkNotified records a successful dispatch for postID.
	MarkNotified(ctx context.Context, postID, notificationID string, at time.Time) error
}

// DispatchObserver receives counts for metrics. Implementations must be safe
// for concurrent use.
type DispatchObserver interface {
	NotificationDispatched(kind string, success bool)
	FeedScanned(postsAnalyzed, rateUpdatesFound int)
}

type nopObserver struct{}

func (nopObserver) NotificationDispatched(string, bool) {}
func (nopObserver) FeedScanned(int, int)                {}
