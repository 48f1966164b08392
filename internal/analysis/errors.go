package analysis

import (
	"context"
	"errors"
	"strings"
)

// Failure taxonomy for the analysis request lifecycle. Transient errors
// are retried locally with backoff; everything else surfaces as a
// terminal Error state with a manual retry affordance.
var (
	// ErrEmptySelection - Start called with zero selected words.
	ErrEmptySelection = errors.New("analysis: selection is empty")
	// ErrAlreadyInFlight - Start called inside the debounce window.
	// Double-clicks on the start control are common.
	ErrAlreadyInFlight = errors.New("analysis: request already in flight")
	// ErrRateLimited - the sliding one-minute window cap was hit before
	// dispatch. Transient: eligible for caller-level retry.
	ErrRateLimited = errors.New("analysis: rate limited")
	// ErrMalformedResponse - provider reported success but the payload is
	// missing the expected fields. Retryable up to maxAttempts.
	ErrMalformedResponse = errors.New("analysis: malformed provider response")
	// ErrNotReady - Start called while the overlay cannot enter
	// Processing (it is hidden). Dispatching anyway would strand the
	// result: the success transition only fires from Processing.
	ErrNotReady = errors.New("analysis: overlay is not collecting a selection")
)

// transientKeywords matches provider error text that looks recoverable.
var transientKeywords = []string{
	"timeout",
	"timed out",
	"deadline",
	"network",
	"connection",
	"rate limit",
	"too many requests",
	"429",
	"503",
	"unavailable",
	"temporar",
}

// Transient reports whether err is worth retrying. Sentinels are checked
// first, then the error text against the transience keyword heuristic.
func Transient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrMalformedResponse) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, kw := range transientKeywords {
		if strings.Contains(msg, kw) {
			return true
		}
	}
	return false
}
