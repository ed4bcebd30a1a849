package invoke

import (
	"fmt"
	"net/http"
	"time"
)

// Response is the raw result of one call to the upstream service.
type Response struct {
	StatusCode int
	Body       []byte
	// RetryAfter is the server's explicit retry hint, if one was supplied.
	// Zero means no hint.
	RetryAfter time.Duration
}

// OK reports whether the response carries a 2xx status.
func (r *Response) OK() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// OutcomeKind classifies a single call attempt.
type OutcomeKind int

const (
	// OutcomeSuccess means the call returned a 2xx response.
	OutcomeSuccess OutcomeKind = iota
	// OutcomeRetryable means the attempt failed in a way worth retrying:
	// transport error, 429, or 5xx.
	OutcomeRetryable
	// OutcomeTerminal means the response is final and must not be retried
	// (any other status, e.g. 400 or 403). The caller decides whether it
	// is an error.
	OutcomeTerminal
)

// Outcome is the explicit result of one call attempt. Retry policy is a
// pure function of Outcome, never of error types caught along the way.
type Outcome struct {
	Kind     OutcomeKind
	Response *Response // set unless the transport failed
	Reason   string    // short description for retryable outcomes
	Err      error     // transport error, if any
}

// Classify maps a raw call result onto an Outcome.
func Classify(resp *Response, err error) Outcome {
	if err != nil {
		return Outcome{
			Kind:   OutcomeRetryable,
			Reason: fmt.Sprintf("transport error: %v", err),
			Err:    err,
		}
	}
	if resp.OK() {
		return Outcome{Kind: OutcomeSuccess, Response: resp}
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return Outcome{
			Kind:     OutcomeRetryable,
			Response: resp,
			Reason:   fmt.Sprintf("status %d", resp.StatusCode),
		}
	}
	return Outcome{Kind: OutcomeTerminal, Response: resp}
}

// BudgetExceededError is returned when the invoker gives up because the
// wall-clock retry budget (or the attempt cap) ran out. It carries the
// last observed status so callers can tell "rate limited, try later"
// apart from a generic failure.
type BudgetExceededError struct {
	LastStatus int
	Attempts   int
	Elapsed    time.Duration
	Err        error // last transport error, if the final attempt had one
}

func (e *BudgetExceededError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("retry budget exceeded after %d attempts (%s): %v", e.Attempts, e.Elapsed.Round(time.Millisecond), e.Err)
	}
	return fmt.Sprintf("retry budget exceeded after %d attempts (%s), last status %d", e.Attempts, e.Elapsed.Round(time.Millisecond), e.LastStatus)
}

func (e *BudgetExceededError) Unwrap() error { return e.Err }

// RateLimited reports whether the budget ran out while the service was
// throttling us, as opposed to failing outright.
func (e *BudgetExceededError) RateLimited() bool {
	return e.LastStatus == http.StatusTooManyRequests
}
