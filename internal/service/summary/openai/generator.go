// Package openai summarizes transcripts with OpenAI chat completions, either
// against api.openai.com or an Azure OpenAI deployment.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/azure"
	"github.com/openai/openai-go/v3/option"

	"ai-transcription-summary-service/internal/service/summary"
)

// Config selects the endpoint and model.
type Config struct {
	// Azure switches to the Azure OpenAI endpoint and api-key auth.
	Azure      bool
	Endpoint   string
	APIKey     string
	APIVersion string
	// Model is the model name, or the deployment name on Azure.
	Model string
}

// completions is the subset of the chat completions service the generator uses.
type completions interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// Generator implements summary.Generator.
type Generator struct {
	chat  completions
	model string
}

// New creates a generator from the configuration.
func New(cfg Config) (*Generator, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai generator requires an api key")
	}
	if cfg.Model == "" {
		return nil, errors.New("openai generator requires a model or deployment")
	}

	var opts []option.RequestOption
	if cfg.Azure {
		if cfg.Endpoint == "" {
			return nil, errors.New("azure openai generator requires an endpoint")
		}
		opts = append(opts,
			azure.WithEndpoint(cfg.Endpoint, cfg.APIVersion),
			azure.WithAPIKey(cfg.APIKey),
		)
	} else {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
		if cfg.Endpoint != "" {
			opts = append(opts, option.WithBaseURL(cfg.Endpoint))
		}
	}

	client := openai.NewClient(opts...)
	return &Generator{chat: &client.Chat.Completions, model: cfg.Model}, nil
}

func (g *Generator) Summarize(ctx context.Context, transcription json.RawMessage) (map[string]any, error) {
	resp, err := g.chat.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(g.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(summary.SystemPrompt),
			openai.UserMessage(string(transcription)),
		},
		Temperature: openai.Float(0.2),
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices", summary.ErrMalformedResponse)
	}
	return summary.ParseSummary(resp.Choices[0].Message.Content)
}
