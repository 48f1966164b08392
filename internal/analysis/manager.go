package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/subgloss/subgloss/internal/modal"
	"github.com/subgloss/subgloss/internal/selection"
)

// Config tunes the request lifecycle.
type Config struct {
	DebounceWindow  time.Duration // min gap between Start calls
	ProviderTimeout time.Duration // per-dispatch round-trip timeout
	MaxAttempts     int
	RateCap         int           // requests per RateWindow, 0 disables
	RateWindow      time.Duration
}

// DefaultConfig returns the lifecycle defaults.
func DefaultConfig() Config {
	return Config{
		DebounceWindow:  500 * time.Millisecond,
		ProviderTimeout: 30 * time.Second,
		MaxAttempts:     3,
		RateCap:         60,
		RateWindow:      time.Minute,
	}
}

// Request is one correlated analysis request. It lives until completion,
// final failure, or pause; a newer request invalidates it without
// cancelling the underlying provider call.
type Request struct {
	CorrelationID string
	Text          string
	ContextTypes  []string
	SourceLang    string
	TargetLang    string
	CreatedAt     time.Time
	Attempt       int
	MaxAttempts   int
}

// Disposition says what the manager decided about a delivered result.
type Disposition int

const (
	// Stale - correlation id did not match the current request; the
	// result was discarded with no state transition.
	Stale Disposition = iota
	// Displayed - success; the modal moved to Display.
	Displayed
	// Retrying - transient failure; re-dispatch Request after Delay.
	Retrying
	// Failed - terminal failure; the modal moved to Error.
	Failed
)

// Decision is the manager's verdict on a result, acted on by the owning
// event loop (which schedules the retry timer or renders the outcome).
type Decision struct {
	Disposition Disposition
	Request     Request       // set when Disposition == Retrying
	Delay       time.Duration // backoff before re-dispatch
	Result      *Result       // set when Disposition == Displayed
	Err         error         // set when Disposition == Failed
	StatusText  string        // processing/error text for the UI
}

// Manager owns the lifecycle of one in-flight analysis request for a
// surface: issuing, correlating, timing out, rate limiting, and bounded
// retry. It is driven by the surface's single event loop and is not
// safe for concurrent use.
type Manager struct {
	cfg      Config
	provider Provider
	machine  *modal.Machine
	limiter  *RateLimiter
	log      *zap.Logger

	now   func() time.Time
	newID func() string

	current    *Request
	lastFailed *Request
	lastStart  time.Time
}

// NewManager wires a manager to its provider and modal machine.
func NewManager(provider Provider, machine *modal.Machine, cfg Config, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	m := &Manager{
		cfg:      cfg,
		provider: provider,
		machine:  machine,
		log:      log,
		now:      time.Now,
		newID:    uuid.NewString,
	}
	m.limiter = NewRateLimiter(cfg.RateCap, cfg.RateWindow, func() time.Time { return m.now() })
	return m
}

// SetClock replaces the time source (tests).
func (m *Manager) SetClock(now func() time.Time) { m.now = now }

// SetIDSource replaces the correlation id generator (tests).
func (m *Manager) SetIDSource(newID func() string) { m.newID = newID }

// InFlight reports whether a request is current.
func (m *Manager) InFlight() bool { return m.current != nil }

// Current returns a copy of the current request, if any.
func (m *Manager) Current() (Request, bool) {
	if m.current == nil {
		return Request{}, false
	}
	return *m.current, true
}

// Start begins a new analysis for the snapshot. It fails fast with
// ErrEmptySelection, ErrAlreadyInFlight (debounce window not elapsed),
// ErrNotReady (overlay hidden), or ErrRateLimited; on success the
// returned request is current and must be
// dispatched via Do by the caller's event loop. A new start invalidates
// any previous request: late responses for it are discarded by the
// correlation check, not cancelled on the wire.
func (m *Manager) Start(snap selection.Snapshot, contextTypes []string) (Request, error) {
	if snap.Empty() {
		return Request{}, ErrEmptySelection
	}
	now := m.now()
	if !m.lastStart.IsZero() && now.Sub(m.lastStart) < m.cfg.DebounceWindow {
		return Request{}, ErrAlreadyInFlight
	}
	// Starting over from a shown result or a terminal error leaves that
	// state first, the same way ManualRetry does. A start from Processing
	// stays there and supersedes the in-flight request. Only a hidden
	// overlay refuses: a request issued from Hidden would have its
	// success transition refused and the result lost.
	if st := m.machine.State(); st == modal.Display || st == modal.Error {
		m.machine.NewAnalysis()
	}
	if m.machine.State() == modal.Hidden {
		return Request{}, ErrNotReady
	}
	if !m.limiter.Allow() {
		return Request{}, ErrRateLimited
	}

	req := Request{
		CorrelationID: m.newID(),
		Text:          snap.Text(),
		ContextTypes:  append([]string(nil), contextTypes...),
		SourceLang:    snap.SourceLang,
		TargetLang:    snap.TargetLang,
		CreatedAt:     now,
		Attempt:       1,
		MaxAttempts:   m.cfg.MaxAttempts,
	}
	m.current = &req
	m.lastStart = now
	m.machine.AnalysisStarted()
	m.log.Debug("analysis started",
		zap.String("correlation_id", req.CorrelationID),
		zap.String("provider", m.provider.Name()),
		zap.Int("words", len(snap.Words)))
	return req, nil
}

// Do performs one provider round trip for req under the configured
// timeout. It has no lifecycle side effects; deliver the outcome to
// OnResult from the owning event loop.
func (m *Manager) Do(ctx context.Context, req Request) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.ProviderTimeout)
	defer cancel()
	return m.provider.Analyze(ctx, Query{
		Text:          req.Text,
		ContextTypes:  req.ContextTypes,
		SourceLang:    req.SourceLang,
		TargetLang:    req.TargetLang,
		CorrelationID: req.CorrelationID,
	})
}

// OnResult applies a delivered provider outcome to the lifecycle.
// Results tagged with a non-current correlation id are discarded; this is
// the stale-response guard that makes pause a safe soft cancel.
func (m *Manager) OnResult(correlationID string, res Result, err error) Decision {
	if m.current == nil || m.current.CorrelationID != correlationID {
		m.log.Debug("stale analysis result discarded", zap.String("correlation_id", correlationID))
		return Decision{Disposition: Stale}
	}

	if err == nil && malformed(res) {
		err = ErrMalformedResponse
	}

	if err == nil {
		m.machine.AnalysisSucceeded()
		m.current = nil
		m.lastFailed = nil
		return Decision{Disposition: Displayed, Result: &res}
	}

	if Transient(err) && m.current.Attempt < m.current.MaxAttempts {
		return m.retry(err)
	}
	return m.fail(err)
}

// retry schedules re-dispatch of the same text with exponential backoff:
// min(1s * 2^(attempt-1), 5s), where attempt is the one that just failed.
func (m *Manager) retry(cause error) Decision {
	failed := m.current.Attempt
	delay := time.Duration(1<<(failed-1)) * time.Second
	if delay > 5*time.Second {
		delay = 5 * time.Second
	}
	m.current.Attempt++
	m.log.Debug("analysis retry scheduled",
		zap.String("correlation_id", m.current.CorrelationID),
		zap.Int("attempt", m.current.Attempt),
		zap.Duration("delay", delay),
		zap.Error(cause))
	return Decision{
		Disposition: Retrying,
		Request:     *m.current,
		Delay:       delay,
		StatusText:  m.ProcessingStatus(),
	}
}

func (m *Manager) fail(err error) Decision {
	m.machine.AnalysisFailed()
	m.lastFailed = m.current
	m.current = nil
	m.log.Warn("analysis failed", zap.Error(err))
	return Decision{
		Disposition: Failed,
		Err:         err,
		StatusText:  failureText(err),
	}
}

// Pause soft-cancels the current request: the modal returns to Selection
// and any response that later arrives for it is discarded. The provider
// call itself may still complete on the wire.
func (m *Manager) Pause() bool {
	if m.current == nil {
		return false
	}
	m.log.Debug("analysis paused", zap.String("correlation_id", m.current.CorrelationID))
	m.current = nil
	m.machine.Paused()
	return true
}

// ManualRetry re-arms the last terminally failed request with a fresh
// correlation id and attempt counter. Only valid from the Error state.
func (m *Manager) ManualRetry() (Request, error) {
	if m.lastFailed == nil || m.machine.State() != modal.Error {
		return Request{}, errors.New("analysis: nothing to retry")
	}
	if !m.limiter.Allow() {
		return Request{}, ErrRateLimited
	}
	req := *m.lastFailed
	req.CorrelationID = m.newID()
	req.CreatedAt = m.now()
	req.Attempt = 1
	m.current = &req
	m.lastStart = req.CreatedAt
	m.machine.NewAnalysis()
	m.machine.AnalysisStarted()
	return req, nil
}

// ProcessingStatus is the UI text for the processing state, including the
// attempt counter once a retry has happened.
func (m *Manager) ProcessingStatus() string {
	if m.current == nil {
		return ""
	}
	if m.current.Attempt > 1 {
		return fmt.Sprintf("Analyzing… (attempt %d/%d)", m.current.Attempt, m.current.MaxAttempts)
	}
	return "Analyzing…"
}

// malformed detects a success payload missing every expected field.
func malformed(res Result) bool {
	return res.Analysis == "" && res.Summary == "" && len(res.Sections) == 0
}

func failureText(err error) string {
	switch {
	case errors.Is(err, ErrMalformedResponse):
		return "The analysis service returned an unreadable answer. Retry?"
	case errors.Is(err, ErrRateLimited):
		return "Too many requests right now. Wait a moment and retry."
	default:
		return fmt.Sprintf("Analysis failed: %v", err)
	}
}
