package openai

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"ai-transcription-summary-service/internal/service/summary"
)

var _ summary.Generator = (*Generator)(nil)

// testCompletions returns a canned reply and records the request.
type testCompletions struct {
	reply string
	empty bool
	err   error
	got   openai.ChatCompletionNewParams
}

func (c *testCompletions) New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error) {
	c.got = body
	if c.err != nil {
		return nil, c.err
	}
	if c.empty {
		return &openai.ChatCompletion{}, nil
	}
	return &openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: c.reply}},
		},
	}, nil
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"openai", Config{APIKey: "k", Model: "gpt-4o-mini"}, false},
		{"openai custom base url", Config{APIKey: "k", Model: "m", Endpoint: "http://localhost:8080/v1"}, false},
		{"azure", Config{Azure: true, Endpoint: "https://x.openai.azure.com", APIKey: "k", APIVersion: "2024-06-01", Model: "gpt4"}, false},
		{"missing key", Config{Model: "m"}, true},
		{"missing model", Config{APIKey: "k"}, true},
		{"azure missing endpoint", Config{Azure: true, APIKey: "k", Model: "m"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSummarize(t *testing.T) {
	chat := &testCompletions{reply: "```json\n{\"summary\":\"Customer wants to cancel.\"}\n```"}
	g := &Generator{chat: chat, model: "deployment-1"}
	transcript := json.RawMessage(`[{"speakerId":"Guest-1","text":"cancel"}]`)

	fields, err := g.Summarize(context.Background(), transcript)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fields["summary"] != "Customer wants to cancel." {
		t.Errorf("unexpected fields: %v", fields)
	}
	if string(chat.got.Model) != "deployment-1" {
		t.Errorf("expected model deployment-1, got %s", chat.got.Model)
	}
	if len(chat.got.Messages) != 2 {
		t.Errorf("expected system and user messages, got %d", len(chat.got.Messages))
	}
}

func TestSummarize_Errors(t *testing.T) {
	tests := []struct {
		name      string
		chat      *testCompletions
		malformed bool
	}{
		{"transport", &testCompletions{err: errors.New("401 unauthorized")}, false},
		{"no choices", &testCompletions{empty: true}, true},
		{"not json", &testCompletions{reply: "Sorry, I cannot help."}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := &Generator{chat: tt.chat, model: "m"}
			_, err := g.Summarize(context.Background(), json.RawMessage(`[]`))
			if err == nil {
				t.Fatal("expected error")
			}
			if got := errors.Is(err, summary.ErrMalformedResponse); got != tt.malformed {
				t.Errorf("malformed = %v, want %v (%v)", got, tt.malformed, err)
			}
		})
	}
}
