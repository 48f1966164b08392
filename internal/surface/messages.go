// Package surface reconciles selection state between independently
// running UI surfaces (the in-page overlay and the side panel). Surfaces
// share no memory; everything crosses an asynchronous transport with
// at-most-once delivery. Broadcasts are fire-and-forget, direct
// request/response calls surface their errors.
package surface

import (
	"encoding/json"
	"time"

	"github.com/subgloss/subgloss/internal/selection"
)

// Wire actions. Get/Apply are request/response; Changed/Analyzing are
// fire-and-forget broadcasts.
const (
	ActionGetSnapshot      = "selection.get"
	ActionApplySnapshot    = "selection.apply"
	ActionSelectionChanged = "selection.changed"
	ActionAnalyzingChanged = "analysis.state"
)

// SnapshotMessage carries a selection snapshot between surfaces.
type SnapshotMessage struct {
	selection.Snapshot
	Origin string    `json:"origin"` // sending surface id
	SentAt time.Time `json:"sentAt"`
}

// AnalyzingMessage advertises whether a surface has an analysis in
// flight. Purely advisory: receivers disable their word-click affordances
// but never drive their state machine from it.
type AnalyzingMessage struct {
	Origin string `json:"origin"`
	Active bool   `json:"active"`
}

func encode(v any) []byte {
	b, _ := json.Marshal(v)
	return b
}
