package invoke

import (
	"context"
	"log/slog"
	"math"
	"math/rand"
	"time"
)

// CallFunc performs one attempt against the upstream service.
type CallFunc func(ctx context.Context) (*Response, error)

// Policy controls backoff and the bounds on retrying.
type Policy struct {
	// BaseDelay is the delay before the first retry.
	BaseDelay time.Duration
	// MaxDelay caps the computed delay (and any server retry hint).
	MaxDelay time.Duration
	// Growth multiplies the delay each attempt (2.0 doubles it).
	Growth float64
	// Jitter adds up to Jitter*delay of random slack to each sleep so
	// concurrent callers don't retry in lockstep.
	Jitter float64
	// MaxAttempts is the secondary bound on total attempts.
	MaxAttempts int
	// Budget is the wall-clock limit on total retry time. Whichever of
	// Budget and MaxAttempts triggers first stops retrying.
	Budget time.Duration
}

// DefaultPolicy suits ordinary calls with no fallback behind them.
func DefaultPolicy() Policy {
	return Policy{
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
		Growth:      2.0,
		Jitter:      0.25,
		MaxAttempts: 6,
		Budget:      2 * time.Minute,
	}
}

// FastPolicy fails fast. Used for the primary leg of a fallback chain,
// where a stuck endpoint should yield to the fallback quickly.
func FastPolicy() Policy {
	return Policy{
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    2 * time.Second,
		Growth:      2.0,
		Jitter:      0.25,
		MaxAttempts: 3,
		Budget:      8 * time.Second,
	}
}

// PatientPolicy waits out rate limits. Used where no fallback exists and
// the only alternative to waiting is failing the whole artifact.
func PatientPolicy() Policy {
	return Policy{
		BaseDelay:   2 * time.Second,
		MaxDelay:    2 * time.Minute,
		Growth:      2.0,
		Jitter:      0.25,
		MaxAttempts: 30,
		Budget:      20 * time.Minute,
	}
}

// Invoker wraps a single outbound call with jittered exponential backoff,
// a wall-clock retry budget, and an attempt cap.
type Invoker struct {
	policy Policy
	logger *slog.Logger

	// sleep is swappable so tests can observe delays without waiting.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates an Invoker with the given policy.
func New(policy Policy, logger *slog.Logger) *Invoker {
	if logger == nil {
		logger = slog.Default()
	}
	if policy.Growth < 1 {
		policy.Growth = 2.0
	}
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}
	return &Invoker{
		policy: policy,
		logger: logger,
		sleep:  sleepCtx,
	}
}

// Do runs call until it succeeds, returns a terminal response, or the
// policy's bounds run out. Terminal (non-retryable) responses are
// returned with a nil error; the caller decides whether the status is
// acceptable. Exhaustion returns a *BudgetExceededError.
func (i *Invoker) Do(ctx context.Context, call CallFunc) (*Response, error) {
	start := time.Now()
	var lastStatus int
	var lastErr error
	attempts := 0

	for attempt := 0; attempt < i.policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		resp, err := call(ctx)
		attempts++
		out := Classify(resp, err)

		switch out.Kind {
		case OutcomeSuccess, OutcomeTerminal:
			return out.Response, nil
		}

		lastErr = out.Err
		if out.Response != nil {
			lastStatus = out.Response.StatusCode
		} else {
			lastStatus = 0
		}

		if attempt == i.policy.MaxAttempts-1 {
			break
		}

		delay := i.delayFor(attempt, out)
		if time.Since(start)+delay > i.policy.Budget {
			break
		}

		i.logger.Debug("retrying upstream call",
			"attempt", attempt+1,
			"reason", out.Reason,
			"delay", delay,
		)
		if err := i.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}

	return nil, &BudgetExceededError{
		LastStatus: lastStatus,
		Attempts:   attempts,
		Elapsed:    time.Since(start),
		Err:        lastErr,
	}
}

// delayFor computes the sleep before the next attempt. A server retry
// hint overrides the computed backoff, capped at MaxDelay either way.
func (i *Invoker) delayFor(attempt int, out Outcome) time.Duration {
	d := time.Duration(float64(i.policy.BaseDelay) * math.Pow(i.policy.Growth, float64(attempt)))
	if d > i.policy.MaxDelay || d < 0 {
		d = i.policy.MaxDelay
	}

	if out.Response != nil && out.Response.RetryAfter > 0 {
		d = out.Response.RetryAfter
		if d > i.policy.MaxDelay {
			d = i.policy.MaxDelay
		}
	}

	if i.policy.Jitter > 0 {
		d += time.Duration(rand.Float64() * i.policy.Jitter * float64(d))
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
