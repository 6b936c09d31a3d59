package engine

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/lib/pq"

	"github.com/Ramsey-B/aster/pkg/board"
)

// retryDelay is the fixed pause before the single retry of a transient
// failure.
const retryDelay = 2 * time.Second

const deadlockDetected = pq.ErrorCode("40P01")

// isTransient classifies an error as worth exactly one retry. The set is
// deliberately small: database deadlocks, timeouts, and retryable board
// responses (429 and 5xx). Everything else fails the record immediately.
func isTransient(err error) bool {
	if err == nil {
		return false
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == deadlockDetected {
		return true
	}

	var apiErr *board.APIError
	if errors.As(err, &apiErr) {
		return apiErr.IsRetryable()
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	return false
}

// withRetry runs fn, retrying once after a fixed delay when the failure is
// transient. A second failure is returned as a normal failure. The delay is
// abandoned if the pass is cancelled.
func (e *Engine) withRetry(ctx context.Context, op string, fn func(context.Context) error) error {
	err := fn(ctx)
	if err == nil || !isTransient(err) {
		return err
	}

	e.logger.WithContext(ctx).WithError(err).WithField("operation", op).Warn("Transient failure; retrying once")

	select {
	case <-ctx.Done():
		return err
	case <-time.After(retryDelay):
	}

	return fn(ctx)
}
