package indexer

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// backoffTier separates failure classes that deserve different pacing:
// rate-limited providers need much longer pauses than a flaky socket, and
// store contention sits in between.
type backoffTier int

const (
	tierTransient backoffTier = iota
	tierContention
	tierRateLimit
)

const maxBackoff = 30 * time.Second

func classifyError(err error) backoffTier {
	if err == nil {
		return tierTransient
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "55P03", "53300":
			return tierContention
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429"),
		strings.Contains(msg, "rate limit"),
		strings.Contains(msg, "too many requests"):
		return tierRateLimit
	case strings.Contains(msg, "database is locked"),
		strings.Contains(msg, "deadlock"),
		strings.Contains(msg, "lock timeout"),
		strings.Contains(msg, "too many clients"):
		return tierContention
	default:
		return tierTransient
	}
}

func backoffFor(tier backoffTier, attempt int, base time.Duration) time.Duration {
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	delay := base
	for i := 0; i < attempt && delay < maxBackoff; i++ {
		delay *= 2
	}
	switch tier {
	case tierContention:
		delay *= 2
	case tierRateLimit:
		delay *= 4
	}
	if delay > maxBackoff {
		delay = maxBackoff
	}
	return delay
}

// withRetry runs fn until it succeeds or attempts are exhausted. The delay
// between attempts escalates with the attempt count and the error class.
func withRetry(ctx context.Context, maxRetries int, baseDelay time.Duration, fn func(context.Context) error) error {
	if maxRetries < 0 {
		maxRetries = 0
	}

	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if attempt >= maxRetries {
			return err
		}

		timer := time.NewTimer(backoffFor(classifyError(err), attempt, baseDelay))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
