package services

import (
	"errors"
	"fmt"

	"cosnap-backend/internal/plan"
)

// Error kinds returned by the lifecycle services. Business outcomes are
// values, never panics; handlers map them to HTTP status codes with
// errors.Is / errors.As.
var (
	// ErrValidation marks malformed input. Never retried.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound covers both a missing record and a caller lacking the
	// role required to see it. The two are intentionally
	// indistinguishable so existence does not leak.
	ErrNotFound = errors.New("not found")

	// ErrInvalidTransition means the offer was not in the status the
	// requested action expects.
	ErrInvalidTransition = errors.New("invalid offer transition")

	// ErrDependency marks a transient store failure; retry policy is
	// the caller's business.
	ErrDependency = errors.New("dependency failure")
)

// Profile-missing variants are distinguished because the client shows
// different remediation copy for each.
var (
	ErrSenderProfileMissing   = fmt.Errorf("sender profile: %w", ErrNotFound)
	ErrReceiverProfileMissing = fmt.Errorf("receiver profile: %w", ErrNotFound)
)

// QuotaExceededError reports a plan-tier flag limit hit, carrying the
// limiting numbers so the client can offer an upgrade path.
type QuotaExceededError struct {
	Tier   plan.Tier
	Limit  int
	Active int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("active flag quota exceeded: %d/%d on %s plan", e.Active, e.Limit, e.Tier)
}
