package selection

import (
	"errors"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrTranslatedSubtitle rejects selections not made on the original
// line. Only words from the original-language subtitle are selectable;
// callers that cannot name the subtitle type go through Normalize, which
// defaults legacy events to original.
var ErrTranslatedSubtitle = errors.New("selection: only words from the original subtitle are selectable")

// Entry is one selected word occurrence.
type Entry struct {
	Word string
	Pos  Position
}

// Snapshot is the wire-serializable projection of a Store, exchanged
// between surfaces and mirrored to the persistence store.
type Snapshot struct {
	Words      []string `json:"selectedWords"`
	SourceLang string   `json:"sourceLanguage"`
	TargetLang string   `json:"targetLanguage"`
}

// Empty reports whether the snapshot carries no words.
func (s Snapshot) Empty() bool { return len(s.Words) == 0 }

// Text joins the snapshot words in order.
func (s Snapshot) Text() string { return strings.Join(s.Words, " ") }

// Store holds the ordered set of selected (word, position) entries for one
// surface. It is the single source of truth for "what is selected" there.
// The key→entry map and the ordered key list are kept in lockstep: every
// key in one appears in the other.
type Store struct {
	entries map[Key]Entry
	order   []Key // insertion order; rendering order comes from Ordered

	sourceLang  string
	targetLang  string
	fallbackSeq int
	lastEdit    time.Time

	now func() time.Time
	log *zap.Logger
}

// NewStore creates an empty store for the given language pair.
func NewStore(sourceLang, targetLang string, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		entries:    make(map[Key]Entry),
		sourceLang: sourceLang,
		targetLang: targetLang,
		now:        time.Now,
		log:        log,
	}
}

// SetClock replaces the store's time source. Tests use this to make the
// staleness guard deterministic.
func (s *Store) SetClock(now func() time.Time) { s.now = now }

// Toggle flips membership of the word at pos. It returns the new
// membership: true when the word was inserted, false when removed.
func (s *Store) Toggle(word string, pos Position) (bool, error) {
	if pos.Subtitle != SubtitleOriginal {
		return false, ErrTranslatedSubtitle
	}
	key := RealKey(word, pos)
	if _, ok := s.entries[key]; ok {
		s.delete(key)
		return false, nil
	}
	s.insert(key, Entry{Word: word, Pos: pos})
	return true, nil
}

// ToggleFallback inserts or removes a word that arrived before its position
// could be computed. Each insert gets a fresh sequence number, so repeated
// fallback clicks of the same word accumulate rather than toggle; removal
// happens through RemoveWord. A later real-position click of the same word
// is a distinct entry: fallback entries are not merged automatically.
func (s *Store) ToggleFallback(word string) Key {
	s.fallbackSeq++
	key := FallbackKey(word, s.fallbackSeq)
	s.insert(key, Entry{Word: word})
	s.log.Debug("selection fallback key accepted", zap.String("key", key.String()))
	return key
}

// Add inserts the word at pos. Inserting an existing key is a no-op.
func (s *Store) Add(word string, pos Position) error {
	if pos.Subtitle != SubtitleOriginal {
		return ErrTranslatedSubtitle
	}
	key := RealKey(word, pos)
	if _, ok := s.entries[key]; ok {
		return nil
	}
	s.insert(key, Entry{Word: word, Pos: pos})
	return nil
}

// Remove deletes the word at pos. Removing an absent key is a no-op.
func (s *Store) Remove(word string, pos Position) {
	s.delete(RealKey(word, pos))
}

// RemoveWord deletes every entry whose word matches, regardless of
// position. This is the legacy path for callers that never learned the
// position of the word they are removing; position-aware callers should
// use Remove. Fallback entries are only removable through here.
func (s *Store) RemoveWord(word string) int {
	removed := 0
	for _, key := range append([]Key(nil), s.order...) {
		if key.Word == word {
			s.delete(key)
			removed++
		}
	}
	return removed
}

// Contains reports membership of the exact key.
func (s *Store) Contains(key Key) bool {
	_, ok := s.entries[key]
	return ok
}

// Selected reports whether the word at pos should render as selected.
// Exact keys match first. Entries adopted from a remote snapshot (and
// fallback entries) carry no container, so for those any occurrence of
// the word matches; the true position lives only on the surface that
// captured the sentence.
func (s *Store) Selected(word string, pos Position) bool {
	if s.Contains(RealKey(word, pos)) {
		return true
	}
	for key := range s.entries {
		if key.Word == word && key.ContainerID == "" {
			return true
		}
	}
	return false
}

// Len returns the number of selected entries.
func (s *Store) Len() int { return len(s.entries) }

// Clear empties the selection.
func (s *Store) Clear() {
	s.entries = make(map[Key]Entry)
	s.order = nil
	s.touch()
}

// Ordered returns the selection keys in original-sentence order: real keys
// sorted by container then token index, then fallback keys in arrival
// order. Click order does not matter.
func (s *Store) Ordered() []Key {
	real := make([]Key, 0, len(s.order))
	fallback := make([]Key, 0)
	for _, k := range s.order {
		if k.Kind == KeyFallback {
			fallback = append(fallback, k)
			continue
		}
		real = append(real, k)
	}
	sort.SliceStable(real, func(i, j int) bool {
		if real[i].ContainerID != real[j].ContainerID {
			return real[i].ContainerID < real[j].ContainerID
		}
		return real[i].Index < real[j].Index
	})
	return append(real, fallback...)
}

// Words returns the selected words in original-sentence order.
func (s *Store) Words() []string {
	keys := s.Ordered()
	words := make([]string, len(keys))
	for i, k := range keys {
		words[i] = k.Word
	}
	return words
}

// SelectedText joins the selected words in original-sentence order.
func (s *Store) SelectedText() string {
	return strings.Join(s.Words(), " ")
}

// Snapshot projects the store for cross-surface sync and mirroring.
func (s *Store) Snapshot() Snapshot {
	return Snapshot{
		Words:      s.Words(),
		SourceLang: s.sourceLang,
		TargetLang: s.targetLang,
	}
}

// ApplySnapshot replaces the local selection with a remote canonical
// order. The snapshot carries only words, so entries are rebuilt with
// synthetic real keys whose index is the canonical order; per-container
// positions live only on the surface that captured the sentence.
// ApplySnapshot does not count as a manual edit.
func (s *Store) ApplySnapshot(snap Snapshot) {
	s.entries = make(map[Key]Entry, len(snap.Words))
	s.order = s.order[:0]
	for i, word := range snap.Words {
		key := Key{Word: word, Kind: KeyReal, Index: i}
		s.entries[key] = Entry{Word: word, Pos: Position{Subtitle: SubtitleOriginal, Index: i}}
		s.order = append(s.order, key)
	}
	if snap.SourceLang != "" {
		s.sourceLang = snap.SourceLang
	}
	if snap.TargetLang != "" {
		s.targetLang = snap.TargetLang
	}
}

// LastManualEdit returns when the selection was last mutated locally.
// The sync staleness guard compares broadcast arrival against this.
func (s *Store) LastManualEdit() time.Time { return s.lastEdit }

func (s *Store) insert(key Key, e Entry) {
	s.entries[key] = e
	s.order = append(s.order, key)
	s.touch()
}

func (s *Store) delete(key Key) {
	if _, ok := s.entries[key]; !ok {
		return
	}
	delete(s.entries, key)
	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.touch()
}

func (s *Store) touch() { s.lastEdit = s.now() }
