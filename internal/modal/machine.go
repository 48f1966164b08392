// Package modal owns the overlay state machine. Rendering reads the
// current state but never writes it; every mutation goes through a named
// transition so racy async events cannot put the overlay in a state no
// user action produced.
package modal

import "go.uber.org/zap"

// State is the overlay's visibility/mode.
type State int

const (
	// Hidden - overlay not shown. Initial state, revisitable.
	Hidden State = iota
	// Selection - overlay shown, collecting word clicks.
	Selection
	// Processing - analysis request in flight.
	Processing
	// Display - analysis result shown.
	Display
	// Error - terminal failure shown with a manual retry affordance.
	Error
)

func (s State) String() string {
	switch s {
	case Hidden:
		return "hidden"
	case Selection:
		return "selection"
	case Processing:
		return "processing"
	case Display:
		return "display"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// Machine is the overlay state machine for one surface.
type Machine struct {
	state State
	log   *zap.Logger
}

// NewMachine starts Hidden.
func NewMachine(log *zap.Logger) *Machine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Machine{state: Hidden, log: log}
}

// State returns the current state.
func (m *Machine) State() State { return m.state }

// ShowRequested handles an (often asynchronous) request to show the
// overlay. It only ever promotes Hidden to Selection; a show-request must
// never downgrade Processing, Display, or Error, because it can race a
// state that already advanced (a late word-selection echo arriving after
// analysis started). Returns whether a transition happened.
func (m *Machine) ShowRequested(selectionEmpty bool) bool {
	if m.state != Hidden {
		m.log.Debug("show request ignored", zap.Stringer("state", m.state))
		return false
	}
	if selectionEmpty {
		return false
	}
	return m.to(Selection)
}

// AnalysisStarted moves Selection to Processing.
func (m *Machine) AnalysisStarted() bool {
	if m.state != Selection {
		return false
	}
	return m.to(Processing)
}

// AnalysisSucceeded moves Processing to Display.
func (m *Machine) AnalysisSucceeded() bool {
	if m.state != Processing {
		return false
	}
	return m.to(Display)
}

// AnalysisFailed moves Processing to Error on a final, non-retryable
// failure. Retryable failures stay in Processing.
func (m *Machine) AnalysisFailed() bool {
	if m.state != Processing {
		return false
	}
	return m.to(Error)
}

// Paused returns Processing to Selection without surfacing an error.
func (m *Machine) Paused() bool {
	if m.state != Processing {
		return false
	}
	return m.to(Selection)
}

// NewAnalysis leaves Display or Error back to Selection on an explicit
// user action.
func (m *Machine) NewAnalysis() bool {
	if m.state != Display && m.state != Error {
		return false
	}
	return m.to(Selection)
}

// Close hides the overlay from any state.
func (m *Machine) Close() bool {
	if m.state == Hidden {
		return false
	}
	return m.to(Hidden)
}

// SelectionEmptied hides the overlay when the last word is deselected,
// unless a request is in flight.
func (m *Machine) SelectionEmptied() bool {
	if m.state == Hidden || m.state == Processing {
		return false
	}
	return m.to(Hidden)
}

func (m *Machine) to(next State) bool {
	m.log.Debug("modal transition", zap.Stringer("from", m.state), zap.Stringer("to", next))
	m.state = next
	return true
}
