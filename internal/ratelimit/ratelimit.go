// Package ratelimit throttles self-service marking attempts with a
// PostgreSQL-backed sliding window, so limits hold across API instances.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/facemark-labs/facemark/internal/domain"
)

// DB interface for database operations
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// RateLimiter provides PostgreSQL-based rate limiting with sliding window
type RateLimiter struct {
	db     DB
	window time.Duration
}

// NewRateLimiter creates a new rate limiter with sliding window
func NewRateLimiter(db *pgxpool.Pool, window time.Duration) *RateLimiter {
	return &RateLimiter{
		db:     db,
		window: window,
	}
}

// NewRateLimiterWithDB creates a rate limiter with custom DB interface
func NewRateLimiterWithDB(db DB, window time.Duration) *RateLimiter {
	return &RateLimiter{
		db:     db,
		window: window,
	}
}

// CheckSelfMarkLimit counts a self-service marking attempt for the student in
// the session and returns domain.ErrRateLimitExceeded once the window limit
// is hit. A limit of zero or below disables throttling.
func (r *RateLimiter) CheckSelfMarkLimit(ctx context.Context, sessionID, studentID uuid.UUID, limit int) error {
	if limit <= 0 {
		return nil
	}

	now := time.Now()
	windowStart := now.Add(-r.window)
	key := fmt.Sprintf("selfmark:%s:%s", sessionID, studentID)

	// Atomically increment, or restart the counter when the window lapsed.
	query := `
		WITH current_count AS (
			INSERT INTO rate_limit_counters (key, count, window_start, window_end)
			VALUES ($1, 1, $2, $3)
			ON CONFLICT (key)
			DO UPDATE SET
				count = CASE
					WHEN rate_limit_counters.window_end < $2 THEN 1
					ELSE rate_limit_counters.count + 1
				END,
				window_start = CASE
					WHEN rate_limit_counters.window_end < $2 THEN $2
					ELSE rate_limit_counters.window_start
				END,
				window_end = $3
			RETURNING count
		)
		SELECT count FROM current_count
	`

	var count int
	err := r.db.QueryRow(ctx, query, key, windowStart, now).Scan(&count)
	if err != nil {
		return fmt.Errorf("check rate limit: %w", err)
	}

	if count > limit {
		return domain.ErrRateLimitExceeded.WithError(
			fmt.Errorf("%d/%d attempts in window", count, limit))
	}

	return nil
}

// CleanupExpired removes stale rate limit counters (run periodically)
func (r *RateLimiter) CleanupExpired(ctx context.Context) (int64, error) {
	query := `DELETE FROM rate_limit_counters WHERE window_end < NOW() - INTERVAL '1 hour'`
	result, err := r.db.Exec(ctx, query)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

// ResetLimit clears the counter for a student in a session (admin operation)
func (r *RateLimiter) ResetLimit(ctx context.Context, sessionID, studentID uuid.UUID) error {
	key := fmt.Sprintf("selfmark:%s:%s", sessionID, studentID)
	query := `DELETE FROM rate_limit_counters WHERE key = $1`
	_, err := r.db.Exec(ctx, query, key)
	return err
}
