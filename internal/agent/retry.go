package agent

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/rendis/traverse/pkg/schema"
)

const (
	retryBaseDelay = 50 * time.Millisecond
	retryMaxDelay  = time.Second
)

// IsRetryableError classifies whether an executor error is worth retrying.
// Retryable by default: network errors, timeouts, context.DeadlineExceeded.
// Non-retryable: validation errors and cancelled contexts.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	// Step timeout is retryable; a cancelled context means the run is
	// shutting down.
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	// TraverseError codes decide for themselves.
	var tErr *schema.TraverseError
	if errors.As(err, &tErr) {
		switch tErr.Code {
		case schema.ErrCodeValidation, schema.ErrCodeUnknownState,
			schema.ErrCodeNotFound, schema.ErrCodeConflict, schema.ErrCodeCancelled:
			return false
		}
		return true
	}

	// Network errors are retryable.
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	// String heuristics for common retryable patterns.
	msg := strings.ToLower(err.Error())
	retryablePatterns := []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"eof",
		"temporary failure",
		"i/o timeout",
		"service unavailable",
		"too many requests",
	}
	for _, p := range retryablePatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}

	// Default: retryable (conservative, the attempt budget limits it).
	return true
}

// retryBackoff calculates the delay before the next retry attempt:
// exponential from retryBaseDelay, capped at retryMaxDelay.
func retryBackoff(attempt int) time.Duration {
	delay := retryBaseDelay
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= retryMaxDelay {
			return retryMaxDelay
		}
	}
	return delay
}

// waitForBackoff sleeps for the given delay or returns early if the context
// is cancelled.
func waitForBackoff(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	select {
	case <-time.After(delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
