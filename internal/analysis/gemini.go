package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GeminiProvider asks Gemini for cultural/historical/linguistic context
// and parses its JSON reply into a structured Result. The client is built
// lazily so a missing API key only fails when an analysis is requested.
type GeminiProvider struct {
	apiKey string
	model  string
	client *genai.Client
}

var ErrGeminiNoAPIKey = fmt.Errorf("gemini: api key not configured")

func NewGeminiProvider(apiKey, model string) *GeminiProvider {
	return &GeminiProvider{apiKey: strings.TrimSpace(apiKey), model: strings.TrimSpace(model)}
}

func (p *GeminiProvider) Name() string { return "gemini" }

func (p *GeminiProvider) ensureClient(ctx context.Context) error {
	if p.apiKey == "" {
		return ErrGeminiNoAPIKey
	}
	if p.client != nil {
		return nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: p.apiKey})
	if err != nil {
		return fmt.Errorf("gemini: create client: %w", err)
	}
	p.client = client
	return nil
}

// structuredReply mirrors the JSON shape the prompt asks for.
type structuredReply struct {
	Summary  string `json:"summary"`
	Sections []struct {
		Kind  string `json:"kind"`
		Title string `json:"title"`
		Body  string `json:"body"`
	} `json:"sections"`
}

func (p *GeminiProvider) Analyze(ctx context.Context, q Query) (Result, error) {
	if err := p.ensureClient(ctx); err != nil {
		return Result{}, err
	}

	model := p.model
	if model == "" {
		model = "gemini-2.0-flash"
	}

	aspects := strings.Join(q.ContextTypes, ", ")
	if aspects == "" {
		aspects = strings.Join([]string{ContextCultural, ContextHistorical, ContextLinguistic}, ", ")
	}
	system := fmt.Sprintf(
		"You annotate subtitle phrases for language learners. The phrase is in %s; the learner reads %s. "+
			"Cover these aspects: %s. Return ONLY valid JSON with keys: summary (string), sections (array of {kind, title, body}). "+
			"kind must be one of the requested aspects.",
		q.SourceLang, q.TargetLang, aspects)

	resp, err := p.client.Models.GenerateContent(ctx, model,
		genai.Text("Phrase: "+q.Text),
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
			ResponseMIMEType:  "application/json",
		})
	if err != nil {
		return Result{}, fmt.Errorf("gemini: generate: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return Result{}, fmt.Errorf("gemini: empty response")
	}
	return parseStructured(text), nil
}

// parseStructured upgrades a JSON reply to a structured Result, falling
// back to plain text when the payload does not decode. Missing expected
// fields are left for the manager's malformed-response check.
func parseStructured(text string) Result {
	trimmed := strings.TrimPrefix(strings.TrimSpace(text), "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")

	var reply structuredReply
	if err := json.Unmarshal([]byte(trimmed), &reply); err != nil || (reply.Summary == "" && len(reply.Sections) == 0) {
		return Result{Analysis: text}
	}
	out := Result{
		Analysis:     reply.Summary,
		Summary:      reply.Summary,
		IsStructured: true,
	}
	for _, s := range reply.Sections {
		out.Sections = append(out.Sections, Section{Kind: s.Kind, Title: s.Title, Body: s.Body})
	}
	if out.Analysis == "" && len(out.Sections) > 0 {
		out.Analysis = out.Sections[0].Body
	}
	return out
}
