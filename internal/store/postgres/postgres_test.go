package postgres

import (
	"encoding/json"
	"testing"

	"ai-transcription-summary-service/internal/models"
	"ai-transcription-summary-service/internal/store"
)

var _ store.Store = (*Store)(nil)

func TestTranscriptRow_RoundTrip(t *testing.T) {
	doc := models.NewTranscriptDocument("call.wav", []models.Segment{
		{SpeakerID: "Guest-1", Text: "hello", Offset: 5_000_000, Duration: 10_000_000},
		{SpeakerID: "Guest-2", Text: "hi", Offset: 20_000_000, Duration: 5_000_000},
	})

	row, err := toTranscriptRow(doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if row.ID != doc.ID || row.AudioFile != "call.wav" {
		t.Errorf("unexpected row: %+v", row)
	}

	got, err := row.document()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.Transcription) != 2 || got.Transcription[1] != doc.Transcription[1] {
		t.Errorf("unexpected transcription: %+v", got.Transcription)
	}
}

func TestTranscriptRow_EmptyTranscriptionIsArray(t *testing.T) {
	row, err := toTranscriptRow(&models.TranscriptDocument{ID: "doc-1", AudioFile: "a.wav"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(row.Transcription) != "[]" {
		t.Errorf("expected [], got %s", row.Transcription)
	}
}

func TestSummaryRow_StoresFlatDocument(t *testing.T) {
	doc := &models.SummaryDocument{ID: "doc-1", Fields: map[string]any{"summary": "text", "id": "other"}}

	row, err := toSummaryRow(doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var flat map[string]any
	if err := json.Unmarshal(row.Content, &flat); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if flat["id"] != "doc-1" || flat["summary"] != "text" {
		t.Errorf("unexpected content: %v", flat)
	}

	got, err := row.document()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != "doc-1" || got.Fields["summary"] != "text" {
		t.Errorf("unexpected document: %+v", got)
	}
}

func TestTableNames(t *testing.T) {
	if (transcriptRow{}).TableName() != "transcripts" {
		t.Error("unexpected transcripts table name")
	}
	if (summaryRow{}).TableName() != "summaries" {
		t.Error("unexpected summaries table name")
	}
}
