// Package mock provides a scripted speech engine for tests and local runs without
// cloud credentials. Events are delivered from the engine's own goroutine, the
// way real engines deliver them.
package mock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ai-transcription-summary-service/internal/service/stt"
)

// DefaultUtterances is a two-speaker, three-utterance conversation.
var DefaultUtterances = []stt.Result{
	{
		Reason:    stt.RecognizedSpeech,
		SpeakerID: "Guest-1",
		Text:      "I want to cancel my subscription.",
		Offset:    500 * time.Millisecond,
		Duration:  2 * time.Second,
	},
	{
		Reason:    stt.RecognizedSpeech,
		SpeakerID: "Guest-2",
		Text:      "Can you tell me why you want to cancel?",
		Offset:    3 * time.Second,
		Duration:  2500 * time.Millisecond,
	},
	{
		Reason:    stt.RecognizedSpeech,
		SpeakerID: "Guest-1",
		Text:      "I've been waiting for over an hour.",
		Offset:    6 * time.Second,
		Duration:  2 * time.Second,
	},
}

// Script controls what a session emits.
type Script struct {
	// Finals are delivered in order after the input is closed.
	Finals []stt.Result

	// Terminal replaces the default EndOfStream cancellation.
	Terminal *stt.Cancellation

	// CancelAfterWrites fires Terminal mid-stream after that many writes.
	CancelAfterWrites int

	// DuplicateTerminal delivers the terminal event twice.
	DuplicateTerminal bool

	ConfigureErr  error
	StartErr      error
	WriteErr      error
	WriteErrAfter int
}

// DefaultScript plays DefaultUtterances and ends normally.
func DefaultScript() Script {
	return Script{Finals: DefaultUtterances}
}

// Engine implements stt.Engine and records every session it creates.
type Engine struct {
	script Script

	mu       sync.Mutex
	sessions []*Session
	configs  []stt.SessionConfig
}

// New creates a mock engine that plays the script in every session.
func New(script Script) *Engine {
	return &Engine{script: script}
}

func (e *Engine) NewSession(ctx context.Context, cfg stt.SessionConfig) (stt.Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.configs = append(e.configs, cfg)
	if e.script.ConfigureErr != nil {
		return nil, e.script.ConfigureErr
	}

	s := &Session{
		id:     fmt.Sprintf("mock-%d", len(e.sessions)+1),
		script: e.script,
	}
	e.sessions = append(e.sessions, s)
	return s, nil
}

// Sessions returns the sessions created so far.
func (e *Engine) Sessions() []*Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*Session{}, e.sessions...)
}

// Configs returns the SessionConfig of every NewSession call.
func (e *Engine) Configs() []stt.SessionConfig {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]stt.SessionConfig{}, e.configs...)
}

// Session implements stt.Session.
type Session struct {
	id     string
	script Script

	mu          sync.Mutex
	cb          stt.Callback
	started     bool
	writes      int
	bytes       int
	inputClosed bool
	terminated  bool
	stopped     bool
	closed      bool
	delivering  sync.WaitGroup
}

func (s *Session) Subscribe(cb stt.Callback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cb = cb
}

func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cb == nil {
		return stt.ErrNotSubscribed
	}
	if s.script.StartErr != nil {
		return s.script.StartErr
	}
	s.started = true

	cb := s.cb
	s.async(func() { cb.OnSessionStarted(s.id) })
	return nil
}

func (s *Session) Write(audio []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inputClosed {
		return stt.ErrInputClosed
	}
	if s.script.WriteErr != nil && s.writes >= s.script.WriteErrAfter {
		return s.script.WriteErr
	}
	s.writes++
	s.bytes += len(audio)

	if s.script.CancelAfterWrites > 0 && s.writes == s.script.CancelAfterWrites && !s.terminated {
		s.terminated = true
		cb, term := s.cb, s.terminal()
		s.async(func() {
			s.fireTerminal(cb, term)
		})
	}
	return nil
}

// CloseInput delivers the scripted finals and the terminal event, unless the
// session already terminated mid-stream.
func (s *Session) CloseInput() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inputClosed {
		return
	}
	s.inputClosed = true
	if s.terminated || !s.started {
		return
	}
	s.terminated = true

	cb, finals, term := s.cb, s.script.Finals, s.terminal()
	s.async(func() {
		for _, r := range finals {
			if r.Reason == stt.RecognizedSpeech {
				cb.OnInterim(stt.Result{Reason: stt.RecognizedSpeech, SpeakerID: r.SpeakerID, Text: r.Text})
			}
			cb.OnFinal(r)
		}
		s.fireTerminal(cb, term)
	})
}

func (s *Session) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.delivering.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Released reports whether input, recognition and native resources were all released.
func (s *Session) Released() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inputClosed && s.stopped && s.closed
}

// Writes returns the number of Write calls and the bytes received.
func (s *Session) Writes() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes, s.bytes
}

func (s *Session) terminal() stt.Cancellation {
	if s.script.Terminal != nil {
		return *s.script.Terminal
	}
	return stt.Cancellation{Reason: stt.EndOfStream}
}

func (s *Session) fireTerminal(cb stt.Callback, term stt.Cancellation) {
	cb.OnCanceled(term)
	if s.script.DuplicateTerminal {
		cb.OnCanceled(term)
	}
	cb.OnSessionStopped(s.id)
}

// async must be called with s.mu held.
func (s *Session) async(fn func()) {
	s.delivering.Add(1)
	go func() {
		defer s.delivering.Done()
		fn()
	}()
}
