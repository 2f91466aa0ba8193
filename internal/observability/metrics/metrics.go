// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ai_transcription_summary"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Session metrics
	SessionsTotal    prometheus.Counter
	SessionsActive   prometheus.Gauge
	SessionsByResult *prometheus.CounterVec
	SessionDuration  prometheus.Histogram

	// Recognition metrics
	SegmentsRecognized prometheus.Counter
	NoMatchResults     prometheus.Counter
	STTCancellations   *prometheus.CounterVec

	// Audio metrics
	AudioBytesPushed  prometheus.Counter
	AudioChunksPushed prometheus.Counter

	// Transcript store metrics
	TranscriptsWritten prometheus.Counter
	TranscriptsLost    prometheus.Counter

	// Summary metrics
	SummaryItems      *prometheus.CounterVec
	GeneratorLatency  *prometheus.HistogramVec
	SummaryBatchSize  prometheus.Histogram

	// Kafka metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec
	KafkaConsumed       *prometheus.CounterVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		// Session metrics
		SessionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Total number of recognition sessions started",
		}),
		SessionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of recognition sessions in progress",
		}),
		SessionsByResult: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_finished_total",
			Help:      "Total number of finished sessions by result",
		}, []string{"result"}),
		SessionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Duration of recognition sessions in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		}),

		// Recognition metrics
		SegmentsRecognized: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segments_recognized_total",
			Help:      "Total number of recognized speech segments",
		}),
		NoMatchResults: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "no_match_results_total",
			Help:      "Total number of final results with no recognized speech",
		}),
		STTCancellations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stt_cancellations_total",
			Help:      "Total number of session terminations by reason",
		}, []string{"provider", "reason"}),

		// Audio metrics
		AudioBytesPushed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_pushed_total",
			Help:      "Total audio bytes pushed into sessions",
		}),
		AudioChunksPushed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_chunks_pushed_total",
			Help:      "Total audio chunks pushed into sessions",
		}),

		// Transcript store metrics
		TranscriptsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcripts_written_total",
			Help:      "Total number of transcript documents written",
		}),
		TranscriptsLost: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcripts_lost_total",
			Help:      "Total number of completed transcripts that could not be written",
		}),

		// Summary metrics
		SummaryItems: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summary_items_total",
			Help:      "Total number of summary items processed by outcome",
		}, []string{"outcome"}),
		GeneratorLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generator_latency_seconds",
			Help:      "Summarization generator latency in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"provider"}),
		SummaryBatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "summary_batch_size",
			Help:      "Number of items per dispatched batch",
			Buckets:   []float64{1, 2, 4, 8, 16, 32, 64},
		}),

		// Kafka metrics
		KafkaPublishTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka messages published",
		}, []string{"topic", "event_type"}),
		KafkaPublishErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish errors",
		}, []string{"topic", "event_type"}),
		KafkaPublishLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),
		KafkaConsumed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_consumed_total",
			Help:      "Total number of Kafka messages consumed",
		}, []string{"topic"}),
	}
}

// RecordSessionStart records a new session starting.
func (m *Metrics) RecordSessionStart() {
	m.SessionsTotal.Inc()
	m.SessionsActive.Inc()
}

// RecordSessionEnd records a session ending with result
// completed, canceled or failed.
func (m *Metrics) RecordSessionEnd(result string, durationSeconds float64) {
	m.SessionsActive.Dec()
	m.SessionDuration.Observe(durationSeconds)
	m.SessionsByResult.WithLabelValues(result).Inc()
}

// RecordSegment records a recognized segment.
func (m *Metrics) RecordSegment() {
	m.SegmentsRecognized.Inc()
}

// RecordNoMatch records a final result without recognized speech.
func (m *Metrics) RecordNoMatch() {
	m.NoMatchResults.Inc()
}

// RecordCancellation records a session termination.
func (m *Metrics) RecordCancellation(provider, reason string) {
	m.STTCancellations.WithLabelValues(provider, reason).Inc()
}

// RecordAudioPushed records one chunk pushed into a session.
func (m *Metrics) RecordAudioPushed(bytes int) {
	m.AudioBytesPushed.Add(float64(bytes))
	m.AudioChunksPushed.Inc()
}

// RecordTranscriptWritten records a transcript document written.
func (m *Metrics) RecordTranscriptWritten() {
	m.TranscriptsWritten.Inc()
}

// RecordTranscriptLost records a completed transcript that could not be written.
func (m *Metrics) RecordTranscriptLost() {
	m.TranscriptsLost.Inc()
}

// RecordSummaryItem records one dispatched item. Outcome is
// succeeded or the failed stage (decode, generate, store).
func (m *Metrics) RecordSummaryItem(outcome string) {
	m.SummaryItems.WithLabelValues(outcome).Inc()
}

// RecordGeneratorLatency records one generator call.
func (m *Metrics) RecordGeneratorLatency(provider string, latencySeconds float64) {
	m.GeneratorLatency.WithLabelValues(provider).Observe(latencySeconds)
}

// RecordBatch records the size of a dispatched batch.
func (m *Metrics) RecordBatch(size int) {
	m.SummaryBatchSize.Observe(float64(size))
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}

// RecordKafkaConsumed records messages fetched from a topic.
func (m *Metrics) RecordKafkaConsumed(topic string, n int) {
	m.KafkaConsumed.WithLabelValues(topic).Add(float64(n))
}
