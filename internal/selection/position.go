package selection

import "fmt"

// SubtitleType distinguishes the original-language line from its translation.
type SubtitleType string

const (
	SubtitleOriginal   SubtitleType = "original"
	SubtitleTranslated SubtitleType = "translated"
)

// Position locates one word occurrence inside a subtitle container.
type Position struct {
	ContainerID string
	Subtitle    SubtitleType
	Index       int // token index within the container, left to right
}

// KeyKind tags a Key as carrying a real position or a synthetic fallback.
type KeyKind int

const (
	// KeyReal identifies a word by its container and token index.
	KeyReal KeyKind = iota
	// KeyFallback identifies a word whose position could not be computed
	// when the click arrived (DOM not settled). Index holds an arrival
	// sequence number instead of a token index.
	KeyFallback
)

// Key is the position-disambiguated identity of one selected word
// occurrence. Keying on (word, container, index) rather than word alone is
// what lets the same word appearing twice in a sentence be selected and
// removed independently. Key is comparable and used directly as a map key.
type Key struct {
	Word        string
	Kind        KeyKind
	ContainerID string
	Index       int
}

// RealKey builds the key for a word at a computed position.
func RealKey(word string, pos Position) Key {
	return Key{Word: word, Kind: KeyReal, ContainerID: pos.ContainerID, Index: pos.Index}
}

// FallbackKey builds a synthetic key for a word whose position is unknown.
// seq is the store's arrival counter.
func FallbackKey(word string, seq int) Key {
	return Key{Word: word, Kind: KeyFallback, Index: seq}
}

func (k Key) String() string {
	if k.Kind == KeyFallback {
		return fmt.Sprintf("%s:fallback:%d", k.Word, k.Index)
	}
	return fmt.Sprintf("%s:%s:%d", k.Word, k.ContainerID, k.Index)
}
