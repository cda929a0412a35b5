// Package retry provides injectable wait policies for loops that must
// survive slow or flaky collaborators: archive status polling and database
// reconnection. Production policies are unbounded, matching how long the
// remote archive is allowed to take; tests inject bounded zero-wait ones.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ErrAttemptsExhausted is returned by Wait once a bounded policy has used
// up its attempts.
var ErrAttemptsExhausted = errors.New("retry attempts exhausted")

// Policy decides how long to pause before retry attempt n (1-based) and
// how many attempts are allowed in total. MaxAttempts of 0 means retry
// forever.
type Policy interface {
	Delay(attempt int) time.Duration
	MaxAttempts() int
}

// Wait sleeps for the policy's delay before the given attempt, honouring
// context cancellation. It returns ErrAttemptsExhausted when the policy's
// attempt bound has been exceeded.
func Wait(ctx context.Context, p Policy, attempt int) error {
	if max := p.MaxAttempts(); max > 0 && attempt > max {
		return ErrAttemptsExhausted
	}

	d := p.Delay(attempt)
	if d <= 0 {
		// Still yield to cancellation between zero-delay attempts.
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			return nil
		}
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type fixed struct {
	delay time.Duration
	max   int
}

// Fixed waits the same delay before every attempt, forever.
func Fixed(delay time.Duration) Policy {
	return fixed{delay: delay}
}

// FixedN waits the same delay before every attempt with an attempt bound.
func FixedN(delay time.Duration, maxAttempts int) Policy {
	return fixed{delay: delay, max: maxAttempts}
}

func (f fixed) Delay(int) time.Duration { return f.delay }
func (f fixed) MaxAttempts() int        { return f.max }

type jitter struct {
	min, max time.Duration
	attempts int

	mu  sync.Mutex
	rng *rand.Rand
}

// Jitter waits a uniformly random duration in [min, max) before every
// attempt, forever. The randomization spreads simultaneous reconnects so
// a restarted database is not hammered by every worker at once.
func Jitter(min, max time.Duration) Policy {
	return JitterN(min, max, 0)
}

// JitterN is Jitter with an attempt bound.
func JitterN(min, max time.Duration, maxAttempts int) Policy {
	if max < min {
		max = min
	}
	return &jitter{
		min:      min,
		max:      max,
		attempts: maxAttempts,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (j *jitter) Delay(int) time.Duration {
	if j.max == j.min {
		return j.min
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.min + time.Duration(j.rng.Int63n(int64(j.max-j.min)))
}

func (j *jitter) MaxAttempts() int { return j.attempts }

type exponential struct {
	b   *backoff.ExponentialBackOff
	max int
}

// Exponential grows the delay geometrically from initial up to maxInterval,
// with the backoff library's default randomization. Attempt numbers are
// ignored; the underlying backoff is stateful, so a policy value must not
// be shared between concurrent loops.
func Exponential(initial, maxInterval time.Duration, maxAttempts int) Policy {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initial
	b.MaxInterval = maxInterval
	b.MaxElapsedTime = 0
	b.Reset()
	return &exponential{b: b, max: maxAttempts}
}

func (e *exponential) Delay(int) time.Duration { return e.b.NextBackOff() }
func (e *exponential) MaxAttempts() int        { return e.max }
