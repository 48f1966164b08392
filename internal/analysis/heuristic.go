package analysis

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// HeuristicProvider is a lightweight, offline-friendly implementation.
// It mimics the interface and behavior (timeouts, structured results) so
// the rest of the app stays non-blocking when no API key is configured.
type HeuristicProvider struct{}

func NewHeuristicProvider() *HeuristicProvider { return &HeuristicProvider{} }

func (h *HeuristicProvider) Name() string { return "heuristic" }

func (h *HeuristicProvider) Analyze(ctx context.Context, q Query) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	default:
	}

	words := strings.Fields(q.Text)
	if len(words) == 0 {
		return Result{}, fmt.Errorf("heuristic: nothing to analyze")
	}

	kinds := q.ContextTypes
	if len(kinds) == 0 {
		kinds = []string{ContextLinguistic}
	}

	out := Result{
		Summary:      fmt.Sprintf("%q: %s phrase, %s", q.Text, q.SourceLang, pluralize(len(words), "word")),
		IsStructured: true,
	}
	for _, kind := range kinds {
		out.Sections = append(out.Sections, heuristicSection(kind, q, words))
	}
	out.Analysis = out.Summary
	return out, nil
}

func heuristicSection(kind string, q Query, words []string) Section {
	switch kind {
	case ContextCultural:
		return Section{
			Kind:  kind,
			Title: "Cultural notes",
			Body:  fmt.Sprintf("No offline cultural data for %q. Configure a Gemini API key for full annotations.", q.Text),
		}
	case ContextHistorical:
		return Section{
			Kind:  kind,
			Title: "Historical notes",
			Body:  fmt.Sprintf("No offline historical data for %q.", q.Text),
		}
	default:
		longest := ""
		for _, w := range words {
			if len(w) > len(longest) {
				longest = w
			}
		}
		return Section{
			Kind:  ContextLinguistic,
			Title: "Linguistic notes",
			Body: fmt.Sprintf("%s selected from the %s line; longest token %q (%d letters).",
				pluralize(len(words), "word"), q.SourceLang, longest, len([]rune(longest))),
		}
	}
}

func pluralize(n int, word string) string {
	if n == 1 {
		return "1 " + word
	}
	return fmt.Sprintf("%d %ss", n, word)
}
