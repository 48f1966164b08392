package surface

import (
	"errors"
	"fmt"

	"github.com/subgloss/subgloss/internal/selection"
)

// IntentKind classifies a normalized word interaction.
type IntentKind int

const (
	IntentToggle IntentKind = iota
	IntentAdd
	IntentRemove
)

// WordIntent is the single canonical shape word interactions take once
// they cross into the core. Pos is nil when the sender could not compute
// a position (the store then assigns a fallback key).
type WordIntent struct {
	Kind IntentKind
	Word string
	Pos  *selection.Position
}

// RawWordEvent accepts both historical click-event shapes:
// {word, action, position} and {word, element, subtitleType, tokenIndex}.
// Normalize turns either into a WordIntent at the boundary so nothing
// deeper in the core branches on shape.
type RawWordEvent struct {
	Word         string                 `json:"word"`
	Action       string                 `json:"action,omitempty"`
	Position     *selection.Position    `json:"position,omitempty"`
	Element      string                 `json:"element,omitempty"`
	SubtitleType selection.SubtitleType `json:"subtitleType,omitempty"`
	TokenIndex   *int                   `json:"tokenIndex,omitempty"`
}

var ErrEmptyWord = errors.New("surface: word event with empty word")

// Normalize converts a raw event into the canonical intent.
func Normalize(raw RawWordEvent) (WordIntent, error) {
	if raw.Word == "" {
		return WordIntent{}, ErrEmptyWord
	}

	kind := IntentToggle
	switch raw.Action {
	case "", "toggle":
	case "select", "add":
		kind = IntentAdd
	case "deselect", "remove":
		kind = IntentRemove
	default:
		return WordIntent{}, fmt.Errorf("surface: unknown word action %q", raw.Action)
	}

	pos := raw.Position
	if pos == nil && raw.Element != "" {
		// Legacy shape: container id under "element", optional token index.
		idx := -1
		if raw.TokenIndex != nil {
			idx = *raw.TokenIndex
		}
		st := raw.SubtitleType
		if st == "" {
			st = selection.SubtitleOriginal
		}
		if idx >= 0 {
			pos = &selection.Position{ContainerID: raw.Element, Subtitle: st, Index: idx}
		}
	}
	return WordIntent{Kind: kind, Word: raw.Word, Pos: pos}, nil
}
