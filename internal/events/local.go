package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"ai-transcription-summary-service/internal/models"
	"ai-transcription-summary-service/internal/observability/logging"
)

// LocalFeed is an in-process change feed used when Kafka is disabled.
// PublishTranscript blocks while the buffer is full.
type LocalFeed struct {
	ch        chan []byte
	batchSize int
	batchWait time.Duration
	log       zerolog.Logger
}

// NewLocalFeed creates a feed buffering up to buffer events.
func NewLocalFeed(buffer, batchSize int, batchWait time.Duration) *LocalFeed {
	if batchSize <= 0 {
		batchSize = 1
	}
	if batchWait <= 0 {
		batchWait = time.Second
	}
	return &LocalFeed{
		ch:        make(chan []byte, buffer),
		batchSize: batchSize,
		batchWait: batchWait,
		log:       logging.WithComponent("local-feed"),
	}
}

func (f *LocalFeed) PublishTranscript(ctx context.Context, doc *models.TranscriptDocument) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	select {
	case f.ch <- payload:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run delivers batches to handle until ctx is canceled. Events still
// buffered at cancellation are dropped.
func (f *LocalFeed) Run(ctx context.Context, handle BatchHandler) error {
	for {
		var batch [][]byte
		select {
		case <-ctx.Done():
			return nil
		case item := <-f.ch:
			batch = append(batch, item)
		}

		timer := time.NewTimer(f.batchWait)
	collect:
		for len(batch) < f.batchSize {
			select {
			case item := <-f.ch:
				batch = append(batch, item)
			case <-timer.C:
				break collect
			case <-ctx.Done():
				timer.Stop()
				return nil
			}
		}
		timer.Stop()

		f.log.Debug().Int("items", len(batch)).Msg("Delivering batch")
		handle(ctx, batch)
	}
}
