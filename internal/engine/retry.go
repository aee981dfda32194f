package engine

import (
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/tanq16/segfetch/internal/utils"
)

type FailureKind int

const (
	FailureNone FailureKind = iota
	FailureTransport
	FailureStatus
	FailureSizeMismatch
	FailureFilesystem
	FailureRequest
	FailureCancelled
)

func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "none"
	case FailureTransport:
		return "transport"
	case FailureStatus:
		return "status"
	case FailureSizeMismatch:
		return "size-mismatch"
	case FailureFilesystem:
		return "filesystem"
	case FailureRequest:
		return "request"
	case FailureCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Transient reports whether a failure of this kind may succeed on another attempt.
func (k FailureKind) Transient() bool {
	switch k {
	case FailureTransport, FailureStatus, FailureSizeMismatch:
		return true
	default:
		return false
	}
}

type RetryPolicy struct {
	// MaxAttempts is the total number of attempts per segment, first one included.
	MaxAttempts int
	// InitialBackoff is the delay before the second attempt. Zero disables delays.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    utils.DefaultMaxAttempts,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
	}
}

func (p RetryPolicy) normalize() RetryPolicy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.MaxBackoff < p.InitialBackoff {
		p.MaxBackoff = p.InitialBackoff
	}
	return p
}

// ShouldRetry decides whether another attempt follows attempt number
// `attempt` (1-based) that ended with the given failure.
func (p RetryPolicy) ShouldRetry(attempt int, kind FailureKind) bool {
	p = p.normalize()
	if !kind.Transient() {
		return false
	}
	return attempt < p.MaxAttempts
}

func (p RetryPolicy) newBackOff() backoff.BackOff {
	p = p.normalize()
	if p.InitialBackoff <= 0 {
		return &backoff.ZeroBackOff{}
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialBackoff
	b.MaxInterval = p.MaxBackoff
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// waitBackoff sleeps for d unless the signal fires first. It returns false
// when the wait was cut short by cancellation.
func waitBackoff(sig *CancelSignal, d time.Duration) bool {
	if d <= 0 {
		return !sig.Cancelled()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return !sig.Cancelled()
	case <-sig.Done():
		return false
	}
}
