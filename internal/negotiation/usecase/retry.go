// retry.go wraps transient collaborator failures with exponential backoff and
// jitter. Only idempotent operations go through withRetry; the calendar commit
// never does, because a retried insert after an ambiguous failure could
// double-book.
package usecase

import (
	"context"
	"math/rand"
	"net"
	"strings"
	"time"
)

// retryConfig controls retry behavior for transient collaborator errors
type retryConfig struct {
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// defaultRetryConfig is used for all retried collaborator calls
var defaultRetryConfig = retryConfig{
	maxRetries: 3,
	baseDelay:  500 * time.Millisecond,
	maxDelay:   5 * time.Second,
}

// isTransientErr reports whether the error looks like a transient transport
// failure worth retrying.
func isTransientErr(err error) bool {
	if err == nil {
		return false
	}
	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{
		"connection refused",
		"connection reset",
		"network is unreachable",
		"no such host",
		"timeout",
		"temporar", // "temporary failure", "temporarily unavailable"
		"eof",
		"broken pipe",
		"502",
		"503",
		"429",
	} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// withRetry executes fn with exponential backoff + jitter for transient
// errors. Non-transient errors and context cancellation return immediately.
func withRetry(ctx context.Context, cfg retryConfig, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= cfg.maxRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !isTransientErr(lastErr) {
			return lastErr
		}
		if attempt < cfg.maxRetries {
			select {
			case <-time.After(backoffDelay(cfg, attempt)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return lastErr
}

// backoffDelay computes the delay for a retry attempt: baseDelay * 2^attempt
// capped at maxDelay, plus random jitter in [0, baseDelay).
func backoffDelay(cfg retryConfig, attempt int) time.Duration {
	delay := cfg.baseDelay << uint(attempt)
	if delay > cfg.maxDelay {
		delay = cfg.maxDelay
	}
	jitter := time.Duration(rand.Int63n(int64(cfg.baseDelay)))
	return delay + jitter
}
