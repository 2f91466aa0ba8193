package events

import (
	"context"
	"errors"
	"fmt"

	"ai-transcription-summary-service/internal/models"
	"ai-transcription-summary-service/internal/service/transcription"
	"ai-transcription-summary-service/internal/store"
)

// TranscriptSink writes a transcript to the store and then announces it on the
// change feed.
type TranscriptSink struct {
	store    store.TranscriptStore
	notifier Notifier
}

// NewTranscriptSink creates a sink.
func NewTranscriptSink(st store.TranscriptStore, n Notifier) *TranscriptSink {
	return &TranscriptSink{store: st, notifier: n}
}

// WriteTranscript is safe to retry: a document already inserted by an earlier
// attempt is announced again instead of failing as a duplicate. A publish
// failure after a successful insert is a *transcription.NotAnnouncedError.
func (s *TranscriptSink) WriteTranscript(ctx context.Context, doc *models.TranscriptDocument) error {
	err := s.store.Insert(ctx, doc)
	if errors.Is(err, store.ErrDuplicateID) {
		existing, gerr := s.store.GetTranscript(ctx, doc.ID)
		if gerr != nil || existing.AudioFile != doc.AudioFile {
			return err
		}
	} else if err != nil {
		return fmt.Errorf("insert transcript: %w", err)
	}

	if err := s.notifier.PublishTranscript(ctx, doc); err != nil {
		return &transcription.NotAnnouncedError{ID: doc.ID, Err: err}
	}
	return nil
}
