// Package gemini summarizes transcripts with the Gemini API.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"ai-transcription-summary-service/internal/service/summary"
)

// models is the subset of genai.Models the generator uses.
type models interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Generator implements summary.Generator.
type Generator struct {
	models models
	model  string
}

// New creates a Gemini API client.
func New(ctx context.Context, apiKey, model string) (*Generator, error) {
	if apiKey == "" {
		return nil, errors.New("gemini generator requires an api key")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Generator{models: client.Models, model: model}, nil
}

func (g *Generator) Summarize(ctx context.Context, transcription json.RawMessage) (map[string]any, error) {
	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{genai.NewPartFromText(summary.SystemPrompt)},
		},
		ResponseMIMEType: "application/json",
	}

	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(string(transcription)), config)
	if err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}

	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				text.WriteString(part.Text)
			}
		}
	}
	if text.Len() == 0 {
		return nil, fmt.Errorf("%w: empty response from Gemini", summary.ErrMalformedResponse)
	}
	return summary.ParseSummary(text.String())
}
