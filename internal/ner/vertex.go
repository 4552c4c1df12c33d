package ner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"
	"github.com/Lllllllleong/documententityflow/internal/gcp"
)

// ContentGenerator is the part of *genai.GenerativeModel that VertexModel uses.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// VertexModel recognizes entities with a Gemini model configured for JSON
// output (see gcp.NewVertexClient).
type VertexModel struct {
	model ContentGenerator
}

// NewVertexModel wraps a configured generative model.
func NewVertexModel(model ContentGenerator) *VertexModel {
	return &VertexModel{model: model}
}

// parsedEntity defines the structure of the JSON objects we expect from the Gemini response.
type parsedEntity struct {
	Text  string `json:"text"`
	Label string `json:"label"`
}

var refusalPhrases = []string{
	"i am unable to",
	"i cannot fulfill",
	"i cannot answer",
	"i cannot provide",
	"as a large language model",
}

// Recognize implements Model. Offsets are not reported by the model, so
// every span has Start -1.
func (m *VertexModel) Recognize(ctx context.Context, text string) ([]Span, error) {
	resp, err := m.model.GenerateContent(ctx, genai.Text(gcp.NERUserPrompt), genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("failed to generate entities from gemini: %w", err)
	}

	jsonString := extractJSONContent(resp)
	if jsonString == "" {
		return nil, fmt.Errorf("gemini returned an empty response instead of JSON")
	}

	var entities []parsedEntity
	if err := json.Unmarshal([]byte(jsonString), &entities); err != nil {
		lower := strings.ToLower(jsonString)
		for _, phrase := range refusalPhrases {
			if strings.Contains(lower, phrase) {
				return nil, fmt.Errorf("gemini response indicates refusal")
			}
		}
		return nil, fmt.Errorf("failed to parse JSON from model: %w", err)
	}

	spans := make([]Span, 0, len(entities))
	for _, e := range entities {
		spans = append(spans, Span{Text: e.Text, Label: strings.TrimSpace(e.Label), Start: -1})
	}
	return spans, nil
}

// extractJSONContent gets the raw text content from the model response,
// concatenating text parts and removing markdown fences.
func extractJSONContent(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return ""
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}

	cleanJSON := strings.TrimSpace(b.String())
	cleanJSON = strings.TrimPrefix(cleanJSON, "```json")
	cleanJSON = strings.TrimPrefix(cleanJSON, "```")
	cleanJSON = strings.TrimSuffix(cleanJSON, "```")
	return strings.TrimSpace(cleanJSON)
}
