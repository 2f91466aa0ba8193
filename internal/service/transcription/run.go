package transcription

import (
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"ai-transcription-summary-service/internal/models"
	"ai-transcription-summary-service/internal/observability/metrics"
	"ai-transcription-summary-service/internal/service/session"
	"ai-transcription-summary-service/internal/service/stt"
)

// run observes one session. Its methods are called on engine goroutines.
type run struct {
	log      zerolog.Logger
	provider string
	metrics  *metrics.Metrics

	transcript *session.Transcript
	gate       *session.Gate

	mu         sync.Mutex
	terminated bool
	failure    *stt.Cancellation
}

func newRun(log zerolog.Logger, provider string, m *metrics.Metrics) *run {
	return &run{
		log:        log,
		provider:   provider,
		metrics:    m,
		transcript: session.NewTranscript(),
		gate:       session.NewGate(),
	}
}

func (r *run) OnInterim(res stt.Result) {
	r.log.Debug().
		Str("speakerId", res.SpeakerID).
		Str("text", res.Text).
		Msg("Interim result")
}

func (r *run) OnFinal(res stt.Result) {
	if res.Reason == stt.NoMatch || strings.TrimSpace(res.Text) == "" {
		r.metrics.RecordNoMatch()
		r.log.Warn().
			Dur("offset", res.Offset).
			Msg("NOMATCH: speech could not be recognized")
		return
	}

	r.transcript.Append(models.Segment{
		SpeakerID: res.SpeakerID,
		Text:      res.Text,
		Offset:    models.Ticks(res.Offset),
		Duration:  models.Ticks(res.Duration),
	})
	r.metrics.RecordSegment()

	r.log.Info().
		Str("speakerId", res.SpeakerID).
		Dur("offset", res.Offset).
		Dur("duration", res.Duration).
		Str("text", res.Text).
		Msg("Recognized segment")
}

func (r *run) OnSessionStarted(sessionId string) {
	r.log.Info().Str("sessionId", sessionId).Msg("Session started")
}

func (r *run) OnSessionStopped(sessionId string) {
	r.log.Info().Str("sessionId", sessionId).Msg("Session stopped")
}

// OnCanceled records the outcome of the first termination and opens the gate.
// The outcome is recorded before the gate opens so the waiter always sees it.
func (r *run) OnCanceled(c stt.Cancellation) {
	r.mu.Lock()
	first := !r.terminated
	if first {
		r.terminated = true
		if c.Reason == stt.Error {
			failure := c
			r.failure = &failure
		}
	}
	r.mu.Unlock()

	if !first {
		r.gate.Release()
		r.log.Warn().Stringer("reason", c.Reason).Msg("Duplicate termination event ignored")
		return
	}

	r.metrics.RecordCancellation(r.provider, c.Reason.String())
	if c.Reason == stt.Error {
		r.log.Error().
			Str("errorCode", c.ErrorCode).
			Str("errorDetails", c.ErrorDetails).
			Msg("CANCELED: session terminated with error")
	} else {
		r.log.Info().Msg("CANCELED: end of stream reached")
	}

	r.gate.Release()
}

// outcome returns the recorded error cancellation, if any.
func (r *run) outcome() *stt.Cancellation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.failure
}
