// Package retry runs an operation a bounded number of times, sleeping
// between failed attempts according to a Backoff. The store adapters use it
// to retry failed writes before surfacing a persistence error.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

// Backoff returns how long to wait after the given attempt failed.
// Attempts are numbered from 1.
type Backoff func(attempt int) time.Duration

// Linear waits step, 2*step, 3*step...
func Linear(step time.Duration) Backoff {
	return func(attempt int) time.Duration {
		if step <= 0 {
			return 0
		}
		return step * time.Duration(attempt)
	}
}

// Exponential waits initial, initial*multiplier, initial*multiplier^2...
// capped at max. Each wait is spread by ±jitter (a fraction, 0 to 1) so that
// several clients failing together do not retry in lockstep.
func Exponential(initial, max time.Duration, multiplier, jitter float64) Backoff {
	if multiplier < 1 {
		multiplier = 1
	}
	jitter = math.Min(math.Max(jitter, 0), 1)

	return func(attempt int) time.Duration {
		if initial <= 0 {
			return 0
		}
		d := float64(initial) * math.Pow(multiplier, float64(attempt-1))
		if max > 0 && d > float64(max) {
			d = float64(max)
		}
		if jitter > 0 {
			d += d * jitter * (rand.Float64()*2 - 1)
		}
		return time.Duration(math.Max(d, 0))
	}
}

// Transient reports whether err is worth another attempt: everything except
// context cancellation and deadline expiry.
func Transient(err error) bool {
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// Retrier runs operations with a fixed attempt limit and backoff.
type Retrier struct {
	attempts int
	backoff  Backoff
	retryIf  func(error) bool
	sleep    func(ctx context.Context, d time.Duration) error
}

// New returns a Retrier making at most attempts tries (at least one) and
// retrying only errors for which Transient is true.
func New(attempts int, backoff Backoff) *Retrier {
	if attempts < 1 {
		attempts = 1
	}
	if backoff == nil {
		backoff = Linear(0)
	}
	return &Retrier{attempts: attempts, backoff: backoff, retryIf: Transient, sleep: sleepCtx}
}

// MaxAttempts returns the attempt limit.
func (r *Retrier) MaxAttempts() int { return r.attempts }

// Do calls op until it succeeds, returns a non-transient error, the attempt
// limit is reached or ctx is done. The last error from op is returned as is.
func (r *Retrier) Do(ctx context.Context, op func(ctx context.Context) error) error {
	var err error
	for attempt := 1; attempt <= r.attempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if err != nil {
				return err
			}
			return ctxErr
		}

		if err = op(ctx); err == nil {
			return nil
		}
		if !r.retryIf(err) || attempt == r.attempts {
			return err
		}

		if r.sleep(ctx, r.backoff(attempt)) != nil {
			return err
		}
	}
	return err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
