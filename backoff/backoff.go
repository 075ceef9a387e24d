// Package backoff retries a fallible operation with exponentially growing delays.
//
// The delay before attempt k (k >= 2) is InitialDelay * 2^(k-2); attempt 1 runs immediately.
// Retry stops early on success, on a Permanent error, or when the context is cancelled.
package backoff

import (
	"context"
	"errors"
	"time"

	cbackoff "github.com/cenkalti/backoff/v4"

	"github.com/moyoez/pairdrop-go/tool"
)

const (
	DefaultMaxAttempts  = 3
	DefaultInitialDelay = time.Second
)

// Policy bounds one Retry invocation.
type Policy struct {
	Name         string // log prefix, e.g. "Pair"
	MaxAttempts  int
	InitialDelay time.Duration
}

// DefaultPolicy is shared by pairing and transfer.
func DefaultPolicy(name string) Policy {
	return Policy{Name: name, MaxAttempts: DefaultMaxAttempts, InitialDelay: DefaultInitialDelay}
}

// Delay returns the wait before attempt n. Attempt 1 has none.
func (p Policy) Delay(n int) time.Duration {
	if n < 2 {
		return 0
	}
	return p.InitialDelay << (n - 2)
}

func (p Policy) normalized() Policy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.InitialDelay < 0 {
		p.InitialDelay = 0
	}
	return p
}

// Attempt describes the attempt currently running. It lives only for one Retry call.
type Attempt struct {
	Number          int           // starts at 1
	DelayBeforeNext time.Duration // 0 on the last attempt
}

// Last reports whether no further attempt follows a failure of this one.
func (a Attempt) Last() bool {
	return a.DelayBeforeNext == 0
}

// Operation is one unit of retried work. It must honour ctx.
type Operation[T any] func(ctx context.Context, attempt Attempt) (T, error)

// ExhaustedError is returned when every attempt failed. Error() is the last failure's text.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return e.Err.Error()
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// Permanent marks err as not worth retrying. Retry returns the unwrapped err immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return cbackoff.Permanent(err)
}

// Retry runs op until it succeeds, fails permanently, ctx ends, or p.MaxAttempts is used up.
// Cancellation is checked before every attempt, so a cancelled Retry never starts another one.
func Retry[T any](ctx context.Context, p Policy, op Operation[T]) (T, error) {
	p = p.normalized()

	exp := cbackoff.NewExponentialBackOff()
	exp.InitialInterval = p.InitialDelay
	exp.RandomizationFactor = 0
	exp.Multiplier = 2
	exp.MaxElapsedTime = 0
	exp.MaxInterval = max(p.Delay(p.MaxAttempts), p.InitialDelay)

	policy := cbackoff.WithContext(cbackoff.WithMaxRetries(exp, uint64(p.MaxAttempts-1)), ctx)

	attempts := 0
	permanent := false
	wrapped := func() (T, error) {
		var zero T
		if err := ctx.Err(); err != nil {
			permanent = true
			return zero, cbackoff.Permanent(err)
		}
		attempts++
		a := Attempt{Number: attempts}
		if attempts < p.MaxAttempts {
			a.DelayBeforeNext = p.Delay(attempts + 1)
		}
		res, err := op(ctx, a)
		if err != nil {
			var perm *cbackoff.PermanentError
			if errors.As(err, &perm) {
				permanent = true
			}
		}
		return res, err
	}

	notify := func(err error, wait time.Duration) {
		tool.DefaultLogger.Warnf("[Backoff] %s attempt %d/%d failed: %v, retrying in %s",
			p.Name, attempts, p.MaxAttempts, err, wait)
	}

	res, err := cbackoff.RetryNotifyWithData(wrapped, policy, notify)
	if err == nil {
		return res, nil
	}
	if permanent {
		return res, err
	}
	if cerr := ctx.Err(); cerr != nil {
		return res, cerr
	}
	tool.DefaultLogger.Debugf("[Backoff] %s gave up after %d attempts: %v", p.Name, attempts, err)
	return res, &ExhaustedError{Attempts: attempts, Err: err}
}

// IsExhausted reports whether err came from running out of attempts.
func IsExhausted(err error) bool {
	var ex *ExhaustedError
	return errors.As(err, &ex)
}
