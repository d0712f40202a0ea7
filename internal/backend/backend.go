// Package backend defines the narrow circuit-execution contract the
// search core depends on, plus the retry policy applied to transient
// execution failures. A backend may be the in-process statevector
// simulator, a remote execution service, or eventually real hardware;
// the core never assumes determinism across shots.
package backend

import (
	"context"
	"errors"
	"time"

	"github.com/qubitlab/subisom/internal/circuit"
)

// ErrExecution is the sentinel wrapped by every backend failure.
// Execution failures are retryable at the request level; structural
// input errors are not and never carry this sentinel.
var ErrExecution = errors.New("backend: execution failed")

// Bitstring is one measured outcome: one byte (0 or 1) per measured
// qubit, in the circuit's Measure order.
type Bitstring []byte

// Backend executes a prepared circuit and returns one bit-string per
// shot. Draws are independent and identically distributed for a fixed
// circuit. Implementations must be safe for concurrent use.
type Backend interface {
	Execute(ctx context.Context, c *circuit.Circuit, shots int) ([]Bitstring, error)
	Name() string
}

// RetryPolicy bounds the retry loop around one execution request.
type RetryPolicy struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// DefaultRetryPolicy returns the policy used by the search controller
// when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts:  3,
		BaseDelay: 100 * time.Millisecond,
		MaxDelay:  2 * time.Second,
	}
}

// Retry runs fn up to policy.Attempts times with exponential backoff.
// It stops early when fn succeeds, when fn returns an error that is
// not an execution failure, or when ctx is done. The last error is
// returned with whatever sentinel it carries.
func Retry(ctx context.Context, policy RetryPolicy, fn func() error) error {
	attempts := policy.Attempts
	if attempts < 1 {
		attempts = 1
	}

	delay := policy.BaseDelay
	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
			if policy.MaxDelay > 0 && delay > policy.MaxDelay {
				delay = policy.MaxDelay
			}
		}

		err = fn()
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrExecution) {
			return err
		}
	}
	return err
}
