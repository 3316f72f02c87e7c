package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
	CREATE TABLE IF NOT EXISTS notified_posts (
		post_id         TEXT PRIMARY KEY,
		notification_id TEXT NOT NULL,
		notified_at     INTEGER NOT NULL
	)`

// Ledger implements domain.DispatchLedger on a local SQLite file. Times are
// stored as unix milliseconds.
type Ledger struct {
	db *sql.DB
}

// Open opens (creating if needed) the ledger database at path.
func Open(ctx context.Context, path string) (*Ledger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, `PRAGMA busy_timeout = 5000`); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create notified_posts table: %w", err)
	}
	return &Ledger{db: db}, nil
}

// Close closes the database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// IsNotified reports whether a notification was already sent for postID.
func (l *Ledger) IsNotified(ctx context.Context, postID string) (bool, error) {
	var n int
	err := l.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM notified_posts WHERE post_id = ?`, postID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("query notified post %s: %w", postID, err)
	}
	return n > 0, nil
}

// MarkNotified records the dispatch for postID, keeping the first entry when
// the post is recorded twice.
func (l *Ledger) MarkNotified(ctx context.Context, postID, notificationID string, at time.Time) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO notified_posts (post_id, notification_id, notified_at) VALUES (?, ?, ?)`,
		postID, notificationID, at.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert notified post %s: %w", postID, err)
	}
	return nil
}

// NotificationID returns the id recorded for postID, or "" if none.
func (l *Ledger) NotificationID(ctx context.Context, postID string) (string, error) {
	var id string
	err := l.db.QueryRowContext(ctx, `SELECT notification_id FROM notified_posts WHERE post_id = ?`, postID).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return id, err
}

// DeleteNotifiedBefore removes entries older than cutoff and returns how many
// were deleted.
func (l *Ledger) DeleteNotifiedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := l.db.ExecContext(ctx, `DELETE FROM notified_posts WHERE notified_at < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("delete expired notified posts: %w", err)
	}
	return res.RowsAffected()
}
