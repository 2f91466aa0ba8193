// Package summary turns batches of transcript change events into summary
// documents, one generator call per transcript.
package summary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Generator produces a key-value summary of one transcript.
// transcription is the document's transcription field, verbatim.
type Generator interface {
	Summarize(ctx context.Context, transcription json.RawMessage) (map[string]any, error)
}

// ErrMalformedResponse is returned when a generator reply is not one JSON object.
var ErrMalformedResponse = errors.New("malformed generator response")

// SystemPrompt instructs the model to answer with JSON only.
const SystemPrompt = `You summarize customer conversations. The user message is a JSON array of
transcript segments with speakerId, text, offset and duration (100ns ticks), in spoken order.
Reply with one JSON object and nothing else, using these keys:
  "summary": a concise paragraph describing the conversation,
  "topics": an array of short topic strings,
  "sentiment": one of "positive", "neutral", "negative",
  "actionItems": an array of follow-up actions, empty if none,
  "speakers": an object mapping each speakerId to a one-line role description.
Do not wrap the object in markdown.`

// ParseSummary decodes a generator reply into a key-value map. It accepts a
// bare object, an object inside a ```json fence, or an object surrounded by prose.
func ParseSummary(reply string) (map[string]any, error) {
	text := stripFence(strings.TrimSpace(reply))
	if text == "" {
		return nil, fmt.Errorf("%w: empty reply", ErrMalformedResponse)
	}

	fields, err := decodeObject(text)
	if err == nil {
		return fields, nil
	}

	start, end := strings.Index(text, "{"), strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		if fields, ferr := decodeObject(text[start : end+1]); ferr == nil {
			return fields, nil
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
}

func decodeObject(text string) (map[string]any, error) {
	var fields map[string]any
	if err := json.Unmarshal([]byte(text), &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		return nil, errors.New("reply is null")
	}
	return fields, nil
}

func stripFence(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	// Drop the language tag line.
	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		text = text[nl+1:]
	}
	text = strings.TrimSpace(text)
	return strings.TrimSpace(strings.TrimSuffix(text, "```"))
}
