package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

const schema = `
	CREATE TABLE IF NOT EXISTS notified_posts (
		post_id         TEXT PRIMARY KEY,
		notification_id TEXT NOT NULL,
		notified_at     TIMESTAMPTZ NOT NULL
	)`

// Repository implements domain.DispatchLedger using PostgreSQL.
type Repository struct {
	db *sql.DB
}

// NewRepository connects to PostgreSQL at the given URL, verifies the
// connection, ensures the ledger table exists and returns a new Repository.
// The caller should call Close when the repository is no longer needed.
func NewRepository(ctx context.Context, databaseURL string) (*Repository, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &Repository{db: db}
	if err := r.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Repository) migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create notified_posts table: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// IsNotified reports whether a notification was already sent for postID.
func (r *Repository) IsNotified(ctx context.Context, postID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM notified_posts WHERE post_id = $1)`, postID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query notified post %s: %w", postID, err)
	}
	return exists, nil
}

// MarkNotified records the dispatch for postID. Recording the same post twice
// keeps the first entry.
func (r *Repository) MarkNotified(ctx context.Context, postID, notificationID string, at time.Time) error {
	query := `
		INSERT INTO notified_posts (post_id, notification_id, notified_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (post_id) DO NOTHING`

	if _, err := r.db.ExecContext(ctx, query, postID, notificationID, at.UTC()); err != nil {
		return fmt.Errorf("insert notified post %s: %w", postID, err)
	}
	return nil
}

// DeleteNotifiedBefore removes ledger entries older than cutoff. Returns the
// number of rows deleted.
func (r *Repository) DeleteNotifiedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM notified_posts WHERE notified_at < $1`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired notified posts: %w", err)
	}
	return res.RowsAffected()
}
