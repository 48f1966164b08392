package analysis

import "context"

// Context types a request can ask the provider to cover.
const (
	ContextCultural   = "cultural"
	ContextHistorical = "historical"
	ContextLinguistic = "linguistic"
)

// Query is what the manager sends to a provider.
type Query struct {
	Text          string   `json:"text"`
	ContextTypes  []string `json:"contextTypes"`
	SourceLang    string   `json:"sourceLanguage"`
	TargetLang    string   `json:"targetLanguage"`
	CorrelationID string   `json:"correlationId"`
}

// Section is one annotated aspect of a structured analysis.
type Section struct {
	Kind  string `json:"kind"` // cultural, historical, linguistic
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Result is a completed analysis. Free-text replies carry only Analysis;
// structured replies also fill Summary and Sections and set IsStructured.
type Result struct {
	Analysis     string    `json:"analysis"`
	Summary      string    `json:"summary,omitempty"`
	Sections     []Section `json:"sections,omitempty"`
	IsStructured bool      `json:"isStructured"`
}

// Provider performs the actual context analysis. Implementations own
// their transport-level retry; the manager only retries lifecycle-level
// failures. Calls must respect ctx cancellation and deadline.
type Provider interface {
	Analyze(ctx context.Context, q Query) (Result, error)
	Name() string
}
