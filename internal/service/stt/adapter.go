// Package stt defines the interface for speech recognition engines.
package stt

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ResultReason classifies a final recognition result.
type ResultReason int

const (
	RecognizedSpeech ResultReason = iota
	NoMatch
)

func (r ResultReason) String() string {
	switch r {
	case RecognizedSpeech:
		return "RecognizedSpeech"
	case NoMatch:
		return "NoMatch"
	default:
		return fmt.Sprintf("ResultReason(%d)", int(r))
	}
}

// CancellationReason says why a session terminated.
type CancellationReason int

const (
	EndOfStream CancellationReason = iota
	Error
)

func (r CancellationReason) String() string {
	switch r {
	case EndOfStream:
		return "EndOfStream"
	case Error:
		return "Error"
	default:
		return fmt.Sprintf("CancellationReason(%d)", int(r))
	}
}

// Result is one interim or final recognition result.
type Result struct {
	Reason    ResultReason
	SpeakerID string
	Text      string
	Offset    time.Duration
	Duration  time.Duration
}

// Cancellation is delivered exactly once per session when it terminates.
type Cancellation struct {
	Reason       CancellationReason
	ErrorCode    string
	ErrorDetails string
}

// AudioFormat describes the raw PCM pushed into a session.
type AudioFormat struct {
	SampleRateHz  uint32
	BitsPerSample uint8
	Channels      uint8
}

// DefaultFormat is PCM, mono, 24 kHz, 16-bit.
var DefaultFormat = AudioFormat{SampleRateHz: 24000, BitsPerSample: 16, Channels: 1}

// SessionConfig configures one recognition session.
type SessionConfig struct {
	Language string
	Format   AudioFormat
}

// Callback receives session events. Methods are called on engine goroutines.
type Callback interface {
	// OnInterim is called for intermediate hypotheses.
	OnInterim(r Result)

	// OnFinal is called once per finally recognized region, in audio order.
	OnFinal(r Result)

	// OnSessionStarted and OnSessionStopped are diagnostic.
	OnSessionStarted(sessionID string)
	OnSessionStopped(sessionID string)

	// OnCanceled is the terminal event: end of audio or engine error.
	OnCanceled(c Cancellation)
}

// Session is one streaming recognition session.
type Session interface {
	// Subscribe registers the callback. It must be called before Start.
	Subscribe(cb Callback)

	// Start begins recognition and returns once the engine accepted it.
	Start(ctx context.Context) error

	// Write pushes audio bytes into the session input.
	Write(audio []byte) error

	// CloseInput signals that no more audio will be written. Idempotent.
	CloseInput()

	// Stop ends recognition. Idempotent.
	Stop(ctx context.Context) error

	// Close releases every native or network resource. Idempotent.
	Close() error
}

// Engine creates recognition sessions (Azure, Google, mock).
type Engine interface {
	NewSession(ctx context.Context, cfg SessionConfig) (Session, error)
}

var (
	ErrNotSubscribed = errors.New("stt: no callback subscribed before start")
	ErrInputClosed   = errors.New("stt: session input already closed")
)
