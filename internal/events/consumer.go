package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"ai-transcription-summary-service/internal/observability/logging"
	"ai-transcription-summary-service/internal/observability/metrics"
)

// BatchHandler processes one batch of serialized TranscriptDocuments.
// It must isolate per-item failures itself.
type BatchHandler func(ctx context.Context, items [][]byte)

// messageReader is the subset of *kafka.Reader the consumer uses.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ConsumerConfig holds Kafka consumer configuration.
type ConsumerConfig struct {
	Brokers   []string
	Topic     string
	GroupID   string
	BatchSize int
	BatchWait time.Duration
}

// Consumer reads change events in a consumer group and hands them to a
// BatchHandler. Offsets are committed only after the handler returns, so a
// crash redelivers the batch (at-least-once).
type Consumer struct {
	reader    messageReader
	topic     string
	batchSize int
	batchWait time.Duration
	log       zerolog.Logger
	metrics   *metrics.Metrics
}

// NewConsumer creates a consumer group reader.
func NewConsumer(cfg ConsumerConfig) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka consumer requires at least one broker")
	}
	if cfg.GroupID == "" {
		return nil, errors.New("kafka consumer requires a group id")
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  500 * time.Millisecond,
		Dialer: &kafka.Dialer{
			Timeout:   10 * time.Second,
			DualStack: true,
		},
	})

	return newConsumer(reader, cfg), nil
}

func newConsumer(reader messageReader, cfg ConsumerConfig) *Consumer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1
	}
	if cfg.BatchWait <= 0 {
		cfg.BatchWait = time.Second
	}
	return &Consumer{
		reader:    reader,
		topic:     cfg.Topic,
		batchSize: cfg.BatchSize,
		batchWait: cfg.BatchWait,
		log:       logging.WithComponent("kafka-consumer"),
		metrics:   metrics.DefaultMetrics,
	}
}

// Run consumes until ctx is canceled. A fetched but unprocessed batch is not
// committed and will be redelivered.
func (c *Consumer) Run(ctx context.Context, handle BatchHandler) error {
	c.log.Info().
		Str("topic", c.topic).
		Int("batchSize", c.batchSize).
		Dur("batchWait", c.batchWait).
		Msg("Kafka consumer started")

	for {
		msgs, err := c.fetchBatch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.log.Info().Msg("Kafka consumer stopped")
				return nil
			}
			return fmt.Errorf("fetch messages: %w", err)
		}
		c.metrics.RecordKafkaConsumed(c.topic, len(msgs))

		items := make([][]byte, len(msgs))
		for i, m := range msgs {
			items[i] = m.Value
		}
		handle(ctx, items)

		if err := c.reader.CommitMessages(ctx, msgs...); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("commit messages: %w", err)
		}
		c.log.Debug().Int("messages", len(msgs)).Msg("Batch committed")
	}
}

// fetchBatch blocks for the first message, then collects more until the batch
// is full or batchWait elapses.
func (c *Consumer) fetchBatch(ctx context.Context) ([]kafka.Message, error) {
	first, err := c.reader.FetchMessage(ctx)
	if err != nil {
		return nil, err
	}
	msgs := []kafka.Message{first}

	wctx, cancel := context.WithTimeout(ctx, c.batchWait)
	defer cancel()
	for len(msgs) < c.batchSize {
		m, err := c.reader.FetchMessage(wctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			break
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

// Close closes the reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
