// Package memory is an in-process document store for local runs and tests.
package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"ai-transcription-summary-service/internal/models"
	"ai-transcription-summary-service/internal/store"
)

// Store keeps serialized documents so callers never share memory with it.
type Store struct {
	mu          sync.RWMutex
	transcripts map[string][]byte
	summaries   map[string][]byte
	upserts     int
}

// New creates an empty store.
func New() *Store {
	return &Store{
		transcripts: make(map[string][]byte),
		summaries:   make(map[string][]byte),
	}
}

func (s *Store) Insert(ctx context.Context, doc *models.TranscriptDocument) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.transcripts[doc.ID]; ok {
		return store.ErrDuplicateID
	}
	s.transcripts[doc.ID] = data
	return nil
}

func (s *Store) GetTranscript(ctx context.Context, id string) (*models.TranscriptDocument, error) {
	s.mu.RLock()
	data, ok := s.transcripts[id]
	s.mu.RUnlock()
	if !ok {
		return nil, store.ErrNotFound
	}

	var doc models.TranscriptDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (s *Store) Upsert(ctx context.Context, doc *models.SummaryDocument) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaries[doc.ID] = data
	s.upserts++
	return nil
}

func (s *Store) GetSummary(ctx context.Context, id string) (*models.SummaryDocument, error) {
	s.mu.RLock()
	data, ok := s.summaries[id]
	s.mu.RUnlock()
	if !ok {
		return nil, store.ErrNotFound
	}

	var doc models.SummaryDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// TranscriptIDs returns the stored transcript ids, sorted.
func (s *Store) TranscriptIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedKeys(s.transcripts)
}

// SummaryIDs returns the stored summary ids, sorted.
func (s *Store) SummaryIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedKeys(s.summaries)
}

// Upserts returns the number of Upsert calls.
func (s *Store) Upserts() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.upserts
}

func (s *Store) Close() error {
	return nil
}

func sortedKeys(m map[string][]byte) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
