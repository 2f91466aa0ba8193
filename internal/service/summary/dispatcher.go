package summary

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"ai-transcription-summary-service/internal/models"
	"ai-transcription-summary-service/internal/observability/logging"
	"ai-transcription-summary-service/internal/observability/metrics"
	"ai-transcription-summary-service/internal/store"
)

var (
	// ErrMissingID is returned for a change event without a document id.
	ErrMissingID = errors.New("change event has no id")
	// ErrMissingTranscription is returned for a change event without a transcription.
	ErrMissingTranscription = errors.New("change event has no transcription")
	// ErrItemPanic wraps a panic recovered while processing one item.
	ErrItemPanic = errors.New("summary item panicked")
)

// Stage is the per-item step that failed.
type Stage string

const (
	StageDecode   Stage = "decode"
	StageGenerate Stage = "generate"
	StageStore    Stage = "store"
)

const outcomeSucceeded = "succeeded"

// ItemError is one isolated per-item failure.
type ItemError struct {
	Index int
	ID    string
	Stage Stage
	Err   error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("item %d (id=%q) failed at %s: %v", e.Index, e.ID, e.Stage, e.Err)
}

func (e *ItemError) Unwrap() error {
	return e.Err
}

// Report is the outcome of one batch.
type Report struct {
	Total     int
	Succeeded []string
	Failures  []*ItemError
}

// Failed returns the number of failed items.
func (r Report) Failed() int {
	return len(r.Failures)
}

// Config holds dispatcher settings.
type Config struct {
	// Provider labels generator metrics.
	Provider string
	// Concurrency bounds the items processed at once.
	Concurrency int
}

// Dispatcher summarizes batches of transcript change events.
// Items are independent: a failure is logged and counted, never propagated.
type Dispatcher struct {
	gen     Generator
	store   store.SummaryStore
	cfg     Config
	log     zerolog.Logger
	metrics *metrics.Metrics
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(gen Generator, st store.SummaryStore, cfg Config) *Dispatcher {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &Dispatcher{
		gen:     gen,
		store:   st,
		cfg:     cfg,
		log:     logging.WithComponent("summary-dispatcher"),
		metrics: metrics.DefaultMetrics,
	}
}

// DispatchDocuments summarizes already decoded transcripts.
func (d *Dispatcher) DispatchDocuments(ctx context.Context, docs []models.TranscriptDocument) Report {
	items := make([][]byte, len(docs))
	for i := range docs {
		// A marshal failure leaves the item empty, which fails at decode.
		items[i], _ = json.Marshal(&docs[i])
	}
	return d.Dispatch(ctx, items)
}

// Dispatch summarizes a batch of serialized TranscriptDocuments. Every item
// is decoded, summarized and upserted on its own.
func (d *Dispatcher) Dispatch(ctx context.Context, items [][]byte) Report {
	d.metrics.RecordBatch(len(items))

	// Each goroutine owns one slot.
	results := make([]itemResult, len(items))

	var g errgroup.Group
	g.SetLimit(d.cfg.Concurrency)
	for i, raw := range items {
		g.Go(func() error {
			results[i] = d.process(ctx, i, raw)
			return nil
		})
	}
	g.Wait()

	report := Report{Total: len(items)}
	for _, r := range results {
		if r.err != nil {
			report.Failures = append(report.Failures, r.err)
			continue
		}
		report.Succeeded = append(report.Succeeded, r.id)
	}

	d.log.Info().
		Int("total", report.Total).
		Int("succeeded", len(report.Succeeded)).
		Int("failed", report.Failed()).
		Msg("Summary batch processed")
	return report
}

type itemResult struct {
	id  string
	err *ItemError
}

type changeEvent struct {
	ID            string          `json:"id"`
	AudioFile     string          `json:"audioFile"`
	Transcription json.RawMessage `json:"transcription"`
}

func (d *Dispatcher) fail(index int, id string, stage Stage, err error) itemResult {
	d.metrics.RecordSummaryItem(string(stage))
	d.log.Error().
		Err(err).
		Int("index", index).
		Str("documentId", id).
		Str("stage", string(stage)).
		Msg("Summary item failed")
	return itemResult{id: id, err: &ItemError{Index: index, ID: id, Stage: stage, Err: err}}
}

// process never panics: a generator or store panic becomes a failure of the
// stage that was running.
func (d *Dispatcher) process(ctx context.Context, index int, raw []byte) (res itemResult) {
	var ev changeEvent
	stage := StageDecode
	defer func() {
		if r := recover(); r != nil {
			res = d.fail(index, ev.ID, stage, fmt.Errorf("%w: %v", ErrItemPanic, r))
		}
	}()

	if err := json.Unmarshal(raw, &ev); err != nil {
		return d.fail(index, "", StageDecode, err)
	}
	if ev.ID == "" {
		return d.fail(index, "", StageDecode, ErrMissingID)
	}
	if len(ev.Transcription) == 0 || bytes.Equal(ev.Transcription, []byte("null")) {
		return d.fail(index, ev.ID, StageDecode, ErrMissingTranscription)
	}

	stage = StageGenerate
	start := time.Now()
	fields, err := d.gen.Summarize(ctx, ev.Transcription)
	d.metrics.RecordGeneratorLatency(d.cfg.Provider, time.Since(start).Seconds())
	if err != nil {
		return d.fail(index, ev.ID, StageGenerate, err)
	}
	if fields == nil {
		return d.fail(index, ev.ID, StageGenerate, fmt.Errorf("%w: no fields", ErrMalformedResponse))
	}

	stage = StageStore
	doc := &models.SummaryDocument{ID: ev.ID, Fields: fields}
	if err := d.store.Upsert(ctx, doc); err != nil {
		return d.fail(index, ev.ID, StageStore, err)
	}

	d.metrics.RecordSummaryItem(outcomeSucceeded)
	logger := logging.WithDocument(ev.ID, ev.AudioFile)
	logger.Info().
		Int("fields", len(fields)).
		Msg("Summary written")
	return itemResult{id: ev.ID}
}
