// Package store defines the transcript and summary document stores.
package store

import (
	"context"
	"errors"

	"ai-transcription-summary-service/internal/models"
)

var (
	// ErrDuplicateID is returned when a transcript with the same id already exists.
	ErrDuplicateID = errors.New("document id already exists")
	// ErrNotFound is returned when no document has the requested id.
	ErrNotFound = errors.New("document not found")
)

// TranscriptStore is append-only: a document is written once and never changed.
type TranscriptStore interface {
	Insert(ctx context.Context, doc *models.TranscriptDocument) error
	GetTranscript(ctx context.Context, id string) (*models.TranscriptDocument, error)
}

// SummaryStore overwrites the summary for an id on every Upsert.
type SummaryStore interface {
	Upsert(ctx context.Context, doc *models.SummaryDocument) error
	GetSummary(ctx context.Context, id string) (*models.SummaryDocument, error)
}

// Store is a backend holding both collections.
type Store interface {
	TranscriptStore
	SummaryStore
	Close() error
}
