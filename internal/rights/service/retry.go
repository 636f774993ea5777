package service

import (
	"context"
	"errors"
	"time"

	dErrors "privata/pkg/domain-errors"
	"privata/pkg/platform/sentinel"
)

// RetryPolicy bounds step retries. The delay before attempt n+1 is
// Base * 2^(n-1), capped at Max.
type RetryPolicy struct {
	Attempts int
	Base     time.Duration
	Max      time.Duration
}

// DefaultRetryPolicy is used unless WithRetryPolicy overrides it.
var DefaultRetryPolicy = RetryPolicy{Attempts: 3, Base: 200 * time.Millisecond, Max: 5 * time.Second}

func (p RetryPolicy) delay(attempt int) time.Duration {
	d := p.Base << (attempt - 1)
	if d <= 0 || d > p.Max {
		return p.Max
	}
	return d
}

func (p RetryPolicy) wait(ctx context.Context, attempt int) error {
	t := time.NewTimer(p.delay(attempt))
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

var errNotConfigured = errors.New("not configured")

// transient reports whether a failed step may succeed if retried.
func transient(err error) bool {
	switch {
	case errors.Is(err, errNotConfigured),
		errors.Is(err, context.Canceled):
		return false
	case errors.Is(err, sentinel.ErrUnavailable):
		return true
	}
	switch dErrors.CodeOf(err) {
	case dErrors.CodeTimeout, dErrors.CodeInternal, dErrors.CodeConsentCheckFailed, dErrors.CodeAuditWriteFailed:
		return true
	}
	return false
}
