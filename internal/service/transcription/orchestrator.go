// Package transcription drives one recognition session per audio payload and
// writes the resulting transcript document.
package transcription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"ai-transcription-summary-service/internal/config"
	"ai-transcription-summary-service/internal/models"
	"ai-transcription-summary-service/internal/observability/logging"
	"ai-transcription-summary-service/internal/observability/metrics"
	"ai-transcription-summary-service/internal/schema"
	"ai-transcription-summary-service/internal/service/audio"
	"ai-transcription-summary-service/internal/service/session"
	"ai-transcription-summary-service/internal/service/stt"
	"ai-transcription-summary-service/internal/store"
)

// Sink receives the transcript of every completed session.
type Sink interface {
	WriteTranscript(ctx context.Context, doc *models.TranscriptDocument) error
}

// Session results recorded in metrics.
const (
	resultCompleted   = "completed"
	resultCanceled    = "canceled"
	resultFailed      = "failed"
	resultLost        = "lost"
	resultUnannounced = "unannounced"
)

// Options tune the orchestrator beyond the speech configuration.
type Options struct {
	// Format is the PCM format announced to the engine.
	Format stt.AudioFormat
	// StopTimeout bounds the Stop call on every exit path.
	StopTimeout time.Duration
	// RetryInterval is the first delay between transcript write attempts.
	RetryInterval time.Duration
}

// DefaultOptions returns PCM mono 24 kHz 16-bit and production timings.
func DefaultOptions() Options {
	return Options{
		Format:        stt.DefaultFormat,
		StopTimeout:   10 * time.Second,
		RetryInterval: 500 * time.Millisecond,
	}
}

// Orchestrator turns a callback-driven recognition session into a blocking call.
// It is safe for concurrent use; every Transcribe call owns its own session.
type Orchestrator struct {
	engine    stt.Engine
	sink      Sink
	cfg       config.SpeechConfig
	opts      Options
	validator *schema.Validator
	metrics   *metrics.Metrics
}

// New creates an orchestrator. The speech configuration is checked on every
// call so a misconfigured process fails each invocation before any engine call.
func New(engine stt.Engine, sink Sink, cfg config.SpeechConfig, opts Options) *Orchestrator {
	def := DefaultOptions()
	if opts.Format == (stt.AudioFormat{}) {
		opts.Format = def.Format
	}
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = def.StopTimeout
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = def.RetryInterval
	}
	return &Orchestrator{
		engine:    engine,
		sink:      sink,
		cfg:       cfg,
		opts:      opts,
		validator: schema.New(),
		metrics:   metrics.DefaultMetrics,
	}
}

// Transcribe runs one session over the payload and returns the written document.
// When the document was stored but not announced, both the document and a
// *NotAnnouncedError are returned.
//
// The session goes IDLE → CONFIGURED → STREAMING → AWAITING_COMPLETION and ends
// COMPLETED (document written) or CANCELED (nothing written). The session is
// stopped and closed on every path. ctx bounds the whole call, including the
// wait for the engine's terminated event.
func (o *Orchestrator) Transcribe(ctx context.Context, payload models.AudioPayload) (*models.TranscriptDocument, error) {
	logger := logging.WithAudioFile(payload.Name, o.cfg.Provider)

	if err := o.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	if payload.Name == "" {
		return nil, fmt.Errorf("%w: missing name", ErrInvalidPayload)
	}
	prepared, err := audio.Prepare(payload.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	if prepared.IsWAV() && !prepared.Header.Matches(o.opts.Format) {
		logger.Warn().
			Stringer("header", prepared.Header).
			Uint32("expectedSampleRate", o.opts.Format.SampleRateHz).
			Msg("WAV format differs from the session format, streaming as is")
	}

	lc := session.NewLifecycle()
	sess, err := o.engine.NewSession(ctx, stt.SessionConfig{
		Language: o.cfg.Language,
		Format:   o.opts.Format,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	transition(logger, lc.Configured)

	start := time.Now()
	result := resultFailed
	o.metrics.RecordSessionStart()
	defer func() {
		o.metrics.RecordSessionEnd(result, time.Since(start).Seconds())
		logger.Info().
			Stringer("state", lc.State()).
			Str("result", result).
			Dur("elapsed", time.Since(start)).
			Msg("Transcription finished")
	}()
	defer o.release(sess, logger)

	r := newRun(logger, o.cfg.Provider, o.metrics)
	sess.Subscribe(r)

	if err := sess.Start(ctx); err != nil {
		lc.Cancel()
		return nil, fmt.Errorf("start session: %w", err)
	}
	transition(logger, lc.Streaming)

	if err := o.stream(ctx, sess, prepared.PCM, r.gate); err != nil {
		// Drive the session to its terminated event before giving up.
		sess.CloseInput()
		transition(logger, lc.AwaitingCompletion)
		if werr := r.gate.Wait(ctx); werr != nil {
			logger.Error().Err(werr).Msg("Session did not terminate after stream failure")
		}
		lc.Cancel()
		return nil, fmt.Errorf("stream audio: %w", err)
	}

	sess.CloseInput()
	transition(logger, lc.AwaitingCompletion)

	if err := r.gate.Wait(ctx); err != nil {
		lc.Cancel()
		return nil, fmt.Errorf("await session termination: %w", err)
	}

	if c := r.outcome(); c != nil {
		lc.Cancel()
		result = resultCanceled
		return nil, &CancellationError{Code: c.ErrorCode, Details: c.ErrorDetails}
	}
	transition(logger, lc.Complete)

	doc := models.NewTranscriptDocument(payload.Name, r.transcript.Segments())
	if err := o.write(ctx, doc); err != nil {
		if errors.Is(err, ErrNotAnnounced) {
			result = resultUnannounced
			return doc, err
		}
		result = resultLost
		return nil, err
	}

	result = resultCompleted
	return doc, nil
}

// transition applies a forward lifecycle step. A rejected step leaves the state
// unchanged and is logged; the session itself carries on.
func transition(logger zerolog.Logger, step func() error) {
	if err := step(); err != nil {
		logger.Error().Err(err).Msg("Session state transition rejected")
	}
}

// stream pushes pcm in chunks. It stops early once the session terminated.
func (o *Orchestrator) stream(ctx context.Context, sess stt.Session, pcm []byte, gate *session.Gate) error {
	for chunk := range audio.Chunks(pcm, o.cfg.ChunkBytes) {
		if gate.Released() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := sess.Write(chunk); err != nil {
			return err
		}
		o.metrics.RecordAudioPushed(len(chunk))
	}
	return nil
}

// write validates the document and hands it to the sink, retrying a bounded
// number of times. A final failure is a lost result.
func (o *Orchestrator) write(ctx context.Context, doc *models.TranscriptDocument) error {
	logger := logging.WithDocument(doc.ID, doc.AudioFile)

	if err := o.validator.Validate(doc); err != nil {
		o.lost(logger, doc, err)
		return fmt.Errorf("%w: %w", ErrTranscriptLost, err)
	}

	attempts := max(o.cfg.WriteAttempts, 1)
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = o.opts.RetryInterval
	b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(attempts-1)), ctx)

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		err := o.sink.WriteTranscript(ctx, doc)
		if err == nil {
			return nil
		}
		logger.Warn().Err(err).Int("attempt", attempt).Int("maxAttempts", attempts).Msg("Transcript write failed")
		if errors.Is(err, store.ErrDuplicateID) {
			return backoff.Permanent(err)
		}
		return err
	}, b)
	if errors.Is(err, ErrNotAnnounced) {
		o.metrics.RecordTranscriptWritten()
		logger.Error().
			Err(err).
			Int("attempts", attempt).
			Msg("Transcript stored but change notification failed, replay by documentId")
		return err
	}
	if err != nil {
		o.lost(logger, doc, err)
		return fmt.Errorf("%w: %w", ErrTranscriptLost, err)
	}

	o.metrics.RecordTranscriptWritten()
	logger.Info().Int("segments", len(doc.Transcription)).Msg("Transcript written")
	return nil
}

// lost logs at fatal level without exiting: the session cannot be replayed cheaply.
func (o *Orchestrator) lost(logger zerolog.Logger, doc *models.TranscriptDocument, err error) {
	o.metrics.RecordTranscriptLost()
	logger.WithLevel(zerolog.FatalLevel).
		Err(err).
		Int("segments", len(doc.Transcription)).
		Msg("LOST RESULT: completed transcript could not be written")
}

func (o *Orchestrator) release(sess stt.Session, logger zerolog.Logger) {
	sess.CloseInput()

	ctx, cancel := context.WithTimeout(context.Background(), o.opts.StopTimeout)
	defer cancel()
	if err := sess.Stop(ctx); err != nil {
		logger.Warn().Err(err).Msg("Failed to stop session")
	}
	if err := sess.Close(); err != nil {
		logger.Warn().Err(err).Msg("Failed to close session")
	}
}
