package session

import (
	"sync"

	"ai-transcription-summary-service/internal/models"
)

// Transcript accumulates recognized segments in delivery order.
// Safe for concurrent appends; it never reorders.
type Transcript struct {
	mu       sync.Mutex
	segments []models.Segment
}

// NewTranscript creates an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{segments: []models.Segment{}}
}

// Append adds a segment at the end.
func (t *Transcript) Append(s models.Segment) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.segments = append(t.segments, s)
}

// Segments returns a copy of the accumulated segments.
func (t *Transcript) Segments() []models.Segment {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]models.Segment, len(t.segments))
	copy(out, t.segments)
	return out
}
