package sqlstore

import (
	"context"
	"database/sql/driver"
	"errors"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

// RetryConfig bounds the connection-class retry behavior required by
// spec §4.3: every borrowed connection is validated with a trivial
// round-trip, and query helpers retry a bounded number of times on
// connection-class errors before giving up.
type RetryConfig struct {
	Attempts int
	Backoff  time.Duration
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{Attempts: 2, Backoff: 500 * time.Millisecond}
}

// Validate performs the trivial round-trip spec §4.3 requires before a
// borrowed connection is used. If it fails the caller should treat the
// connection as dead and obtain a fresh one rather than reuse it.
func Validate(ctx context.Context, db *sqlx.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}

// WithRetry runs fn, retrying up to cfg.Attempts additional times with
// cfg.Backoff between attempts if fn returns an error classified as
// connection-class (net errors, driver.ErrBadConn, context deadline).
// Non-connection errors are returned immediately without retry.
func WithRetry(ctx context.Context, cfg RetryConfig, component string, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt <= cfg.Attempts; attempt++ {
		if attempt > 0 {
			slog.Warn("retrying after connection-class error",
				slog.String("component", component),
				slog.Int("attempt", attempt),
				slog.Any("error", lastErr))
			select {
			case <-time.After(cfg.Backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !isConnectionClassError(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

func isConnectionClassError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || errors.Is(err, driver.ErrBadConn) {
		return true
	}
	// driver-level connection resets surface as plain errors whose message
	// we can't type-switch on across every driver; the deadline/cancel
	// check above plus this net.Error.Temporary() check cover the common
	// cases the pool-validation retry is meant for (spec §4.3, §7
	// "transient external").
	return isNetErrorLike(err)
}

func isNetErrorLike(err error) bool {
	type temporary interface{ Temporary() bool }
	var t temporary
	if errors.As(err, &t) {
		return t.Temporary()
	}
	return false
}
