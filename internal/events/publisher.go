// Package events provides the transcript change feed: a Kafka publisher and
// batch consumer, and an in-process feed with the same contract.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"ai-transcription-summary-service/internal/models"
	"ai-transcription-summary-service/internal/observability/metrics"
)

// EventTranscriptCreated is the eventType header of every change message.
const EventTranscriptCreated = "transcript.created"

// Notifier announces a newly written transcript to the change feed.
type Notifier interface {
	PublishTranscript(ctx context.Context, doc *models.TranscriptDocument) error
}

// messageWriter is the subset of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher publishes transcript change events to Kafka.
type Publisher struct {
	writer    messageWriter
	principal string
	topic     string
	enabled   bool
	metrics   *metrics.Metrics
}

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers   []string
	Topic     string
	Principal string
	Enabled   bool
}

// NewPublisher creates a Kafka publisher, or a log-only one when Kafka is disabled.
func NewPublisher(cfg *Config) *Publisher {
	m := metrics.DefaultMetrics

	// Handle nil config case
	if cfg == nil {
		log.Info().Msg("Kafka disabled (nil config), using log-only mode")
		return &Publisher{
			enabled: false,
			metrics: m,
		}
	}

	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		log.Info().Msg("Kafka disabled, using log-only mode")
		return &Publisher{
			principal: cfg.Principal,
			topic:     cfg.Topic,
			enabled:   false,
			metrics:   m,
		}
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireAll,
		Transport:    newTransport(),
	}

	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topic", cfg.Topic).
		Str("principal", cfg.Principal).
		Msg("Kafka publisher initialized")

	return &Publisher{
		writer:    writer,
		principal: cfg.Principal,
		topic:     cfg.Topic,
		enabled:   true,
		metrics:   m,
	}
}

// newTransport uses longer dial timeouts for DNS resolution in Kubernetes.
func newTransport() *kafka.Transport {
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}
	return &kafka.Transport{
		Dial: dialer.DialFunc,
	}
}

// PublishTranscript publishes the document keyed by its id, so every event for
// one document lands on the same partition.
func (p *Publisher) PublishTranscript(ctx context.Context, doc *models.TranscriptDocument) error {
	start := time.Now()

	payload, err := json.Marshal(doc)
	if err != nil {
		log.Error().Err(err).Str("topic", p.topic).Msg("Failed to marshal event")
		return err
	}

	log.Debug().
		Str("principal", p.principal).
		Str("topic", p.topic).
		Str("key", doc.ID).
		Int("segments", len(doc.Transcription)).
		Msg("Publishing event")

	// If Kafka is disabled, just log
	if !p.enabled || p.writer == nil {
		p.metrics.RecordKafkaPublish(p.topic, EventTranscriptCreated, nil, time.Since(start).Seconds())
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(doc.ID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(EventTranscriptCreated)},
			{Key: "principal", Value: []byte(p.principal)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		log.Error().
			Err(err).
			Str("topic", p.topic).
			Str("key", doc.ID).
			Msg("Failed to write to Kafka")
		p.metrics.RecordKafkaPublish(p.topic, EventTranscriptCreated, err, time.Since(start).Seconds())
		return err
	}

	p.metrics.RecordKafkaPublish(p.topic, EventTranscriptCreated, nil, time.Since(start).Seconds())
	return nil
}

// Close closes the Kafka writer.
func (p *Publisher) Close() error {
	if p.writer == nil {
		return nil
	}
	if err := p.writer.Close(); err != nil {
		log.Error().Err(err).Msg("Error closing Kafka writer")
		return err
	}
	return nil
}
