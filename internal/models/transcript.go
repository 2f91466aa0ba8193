// Package models defines the documents that flow through the transcription pipeline.
package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// TicksPerSecond is the resolution of segment offsets and durations (100ns ticks).
const TicksPerSecond = int64(10_000_000)

// AudioPayload is one raw audio object picked up by an input trigger.
type AudioPayload struct {
	Name string
	Data []byte
}

// Segment is one speaker-attributed recognized utterance.
type Segment struct {
	SpeakerID string `json:"speakerId"`
	Text      string `json:"text" validate:"required"`
	Offset    int64  `json:"offset" validate:"gte=0"`
	Duration  int64  `json:"duration" validate:"gte=0"`
}

// Ticks converts a duration to 100ns ticks.
func Ticks(d time.Duration) int64 {
	return int64(d / 100)
}

// TranscriptDocument is the output of one completed recognition session.
// It is immutable once written.
type TranscriptDocument struct {
	ID            string    `json:"id" validate:"required"`
	AudioFile     string    `json:"audioFile" validate:"required"`
	Transcription []Segment `json:"transcription" validate:"dive"`
}

// NewTranscriptDocument builds a document with a fresh random id.
func NewTranscriptDocument(audioFile string, segments []Segment) *TranscriptDocument {
	if segments == nil {
		segments = []Segment{}
	}
	return &TranscriptDocument{
		ID:            NewDocumentID(),
		AudioFile:     audioFile,
		Transcription: segments,
	}
}

// NewDocumentID returns a random UUIDv4 (122 random bits).
func NewDocumentID() string {
	return uuid.NewString()
}

// SummaryDocument holds the generator's key-value summary for one transcript.
// ID equals the source TranscriptDocument.ID.
type SummaryDocument struct {
	ID     string         `validate:"required"`
	Fields map[string]any `validate:"required"`
}

// MarshalJSON flattens Fields next to id. The document id always wins over a
// generator-supplied "id" key.
func (d SummaryDocument) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(d.Fields)+1)
	for k, v := range d.Fields {
		out[k] = v
	}
	out["id"] = d.ID
	return json.Marshal(out)
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (d *SummaryDocument) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	id, _ := raw["id"].(string)
	delete(raw, "id")
	d.ID = id
	d.Fields = raw
	return nil
}
