package transcription

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"ai-transcription-summary-service/internal/config"
	"ai-transcription-summary-service/internal/models"
	"ai-transcription-summary-service/internal/service/session"
	"ai-transcription-summary-service/internal/service/stt"
	"ai-transcription-summary-service/internal/service/stt/mock"
	"ai-transcription-summary-service/internal/store"
)

// testSink records written documents and fails the first failures calls.
type testSink struct {
	mu       sync.Mutex
	docs     []*models.TranscriptDocument
	calls    int
	failures int
	err      error
}

func (s *testSink) WriteTranscript(ctx context.Context, doc *models.TranscriptDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls <= s.failures {
		return s.err
	}
	s.docs = append(s.docs, doc)
	return nil
}

func (s *testSink) written() []*models.TranscriptDocument {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*models.TranscriptDocument{}, s.docs...)
}

func testConfig() config.SpeechConfig {
	return config.SpeechConfig{
		Provider:      "mock",
		Language:      "en-US",
		ChunkBytes:    4,
		WriteAttempts: 3,
	}
}

func testOptions() Options {
	return Options{
		Format:        stt.DefaultFormat,
		StopTimeout:   time.Second,
		RetryInterval: time.Millisecond,
	}
}

func newTestOrchestrator(script mock.Script) (*Orchestrator, *mock.Engine, *testSink) {
	engine := mock.New(script)
	sink := &testSink{}
	return New(engine, sink, testConfig(), testOptions()), engine, sink
}

func payload() models.AudioPayload {
	return models.AudioPayload{Name: "call-001.wav", Data: bytes.Repeat([]byte{1}, 40)}
}

func TestTranscribe_TwoSpeakersThreeUtterances(t *testing.T) {
	o, engine, sink := newTestOrchestrator(mock.DefaultScript())

	doc, err := o.Transcribe(context.Background(), payload())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if doc.AudioFile != "call-001.wav" || doc.ID == "" {
		t.Errorf("unexpected document header: id=%q audioFile=%q", doc.ID, doc.AudioFile)
	}
	wantSpeakers := []string{"Guest-1", "Guest-2", "Guest-1"}
	if len(doc.Transcription) != len(wantSpeakers) {
		t.Fatalf("expected %d segments, got %d", len(wantSpeakers), len(doc.Transcription))
	}
	for i, seg := range doc.Transcription {
		if seg.SpeakerID != wantSpeakers[i] {
			t.Errorf("segment %d: expected speaker %s, got %s", i, wantSpeakers[i], seg.SpeakerID)
		}
		if seg.Text != mock.DefaultUtterances[i].Text {
			t.Errorf("segment %d: unexpected text %q", i, seg.Text)
		}
		if seg.Offset != models.Ticks(mock.DefaultUtterances[i].Offset) {
			t.Errorf("segment %d: expected offset %d, got %d", i, models.Ticks(mock.DefaultUtterances[i].Offset), seg.Offset)
		}
	}

	written := sink.written()
	if len(written) != 1 || written[0].ID != doc.ID {
		t.Fatalf("expected exactly one write of the returned document, got %d", len(written))
	}

	sessions := engine.Sessions()
	if len(sessions) != 1 || !sessions[0].Released() {
		t.Error("expected the session to be released")
	}
	if n, b := sessions[0].Writes(); n != 10 || b != 40 {
		t.Errorf("expected 10 chunks / 40 bytes pushed, got %d / %d", n, b)
	}
}

func TestTranscribe_NSegmentsOffsetAscending(t *testing.T) {
	tests := []struct {
		name string
		n    int
	}{
		{"none", 0},
		{"one", 1},
		{"many", 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			finals := make([]stt.Result, tt.n)
			for i := range finals {
				finals[i] = stt.Result{
					Reason:    stt.RecognizedSpeech,
					SpeakerID: "Guest-1",
					Text:      "utterance",
					Offset:    time.Duration(i) * time.Second,
					Duration:  500 * time.Millisecond,
				}
			}
			o, _, _ := newTestOrchestrator(mock.Script{Finals: finals})

			doc, err := o.Transcribe(context.Background(), payload())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(doc.Transcription) != tt.n {
				t.Fatalf("expected %d segments, got %d", tt.n, len(doc.Transcription))
			}
			for i := 1; i < len(doc.Transcription); i++ {
				if doc.Transcription[i].Offset <= doc.Transcription[i-1].Offset {
					t.Fatalf("segments not offset-ascending at %d", i)
				}
			}
		})
	}
}

func TestTranscribe_NoMatchIsSkipped(t *testing.T) {
	finals := []stt.Result{
		mock.DefaultUtterances[0],
		{Reason: stt.NoMatch, Offset: 2 * time.Second},
		{Reason: stt.RecognizedSpeech, SpeakerID: "Guest-2", Text: "   ", Offset: 2500 * time.Millisecond},
		mock.DefaultUtterances[1],
	}
	o, _, _ := newTestOrchestrator(mock.Script{Finals: finals})

	doc, err := o.Transcribe(context.Background(), payload())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Transcription) != 2 {
		t.Errorf("expected 2 segments, got %d", len(doc.Transcription))
	}
}

func TestTranscribe_CanceledWritesNothing(t *testing.T) {
	term := &stt.Cancellation{Reason: stt.Error, ErrorCode: "ServiceTimeout", ErrorDetails: "no response"}
	o, engine, sink := newTestOrchestrator(mock.Script{Finals: mock.DefaultUtterances, Terminal: term})

	doc, err := o.Transcribe(context.Background(), payload())
	if doc != nil {
		t.Error("expected no document")
	}
	if !errors.Is(err, ErrSessionCanceled) {
		t.Fatalf("expected ErrSessionCanceled, got %v", err)
	}
	var ce *CancellationError
	if !errors.As(err, &ce) || ce.Code != "ServiceTimeout" || ce.Details != "no response" {
		t.Errorf("expected cancellation details, got %v", err)
	}
	if len(sink.written()) != 0 {
		t.Error("expected zero writes on the canceled path")
	}
	if !engine.Sessions()[0].Released() {
		t.Error("expected the session to be released")
	}
}

func TestTranscribe_CancelMidStreamReleasesResources(t *testing.T) {
	term := &stt.Cancellation{Reason: stt.Error, ErrorCode: "ConnectionFailure", ErrorDetails: "socket closed"}
	o, engine, sink := newTestOrchestrator(mock.Script{
		Finals:            mock.DefaultUtterances,
		Terminal:          term,
		CancelAfterWrites: 2,
	})

	_, err := o.Transcribe(context.Background(), payload())
	if !errors.Is(err, ErrSessionCanceled) {
		t.Fatalf("expected ErrSessionCanceled, got %v", err)
	}
	if len(sink.written()) != 0 {
		t.Error("expected no document to be written")
	}
	if !engine.Sessions()[0].Released() {
		t.Error("expected input, session and native resources to be released")
	}
}

func TestTranscribe_DuplicateTerminalCompletesOnce(t *testing.T) {
	o, _, sink := newTestOrchestrator(mock.Script{Finals: mock.DefaultUtterances, DuplicateTerminal: true})

	if _, err := o.Transcribe(context.Background(), payload()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sink.written()) != 1 {
		t.Errorf("expected exactly one write, got %d", len(sink.written()))
	}
}

func TestTranscribe_WriteErrorDrivesSessionToTermination(t *testing.T) {
	writeErr := errors.New("push stream broken")
	o, engine, sink := newTestOrchestrator(mock.Script{
		Finals:        mock.DefaultUtterances,
		WriteErr:      writeErr,
		WriteErrAfter: 3,
	})

	_, err := o.Transcribe(context.Background(), payload())
	if !errors.Is(err, writeErr) {
		t.Fatalf("expected write error, got %v", err)
	}
	if len(sink.written()) != 0 {
		t.Error("expected no document to be written")
	}
	if !engine.Sessions()[0].Released() {
		t.Error("expected the session to be released")
	}
}

func TestTranscribe_ConfigurationErrors(t *testing.T) {
	t.Run("engine", func(t *testing.T) {
		o, engine, sink := newTestOrchestrator(mock.Script{ConfigureErr: errors.New("invalid subscription key")})

		_, err := o.Transcribe(context.Background(), payload())
		if !errors.Is(err, ErrConfiguration) {
			t.Fatalf("expected ErrConfiguration, got %v", err)
		}
		if len(engine.Sessions()) != 0 || len(sink.written()) != 0 {
			t.Error("expected no session and no write")
		}
	})

	t.Run("missing language", func(t *testing.T) {
		engine := mock.New(mock.DefaultScript())
		cfg := testConfig()
		cfg.Language = ""
		o := New(engine, &testSink{}, cfg, testOptions())

		_, err := o.Transcribe(context.Background(), payload())
		if !errors.Is(err, ErrConfiguration) {
			t.Fatalf("expected ErrConfiguration, got %v", err)
		}
		if len(engine.Configs()) != 0 {
			t.Error("expected no engine call")
		}
	})
}

func TestTranscribe_StartError(t *testing.T) {
	o, engine, sink := newTestOrchestrator(mock.Script{StartErr: errors.New("quota exceeded")})

	if _, err := o.Transcribe(context.Background(), payload()); err == nil {
		t.Fatal("expected start error")
	}
	if len(sink.written()) != 0 {
		t.Error("expected no write")
	}
	if !engine.Sessions()[0].Released() {
		t.Error("expected the session to be released")
	}
}

func TestTranscribe_SessionConfig(t *testing.T) {
	o, engine, _ := newTestOrchestrator(mock.DefaultScript())

	o.Transcribe(context.Background(), payload())

	cfgs := engine.Configs()
	if len(cfgs) != 1 {
		t.Fatalf("expected one session config, got %d", len(cfgs))
	}
	if cfgs[0].Language != "en-US" {
		t.Errorf("expected en-US, got %s", cfgs[0].Language)
	}
	if cfgs[0].Format != (stt.AudioFormat{SampleRateHz: 24000, BitsPerSample: 16, Channels: 1}) {
		t.Errorf("unexpected format: %+v", cfgs[0].Format)
	}
}

func TestTranscribe_SinkRetries(t *testing.T) {
	tests := []struct {
		name      string
		failures  int
		err       error
		wantCalls int
		wantErr   error
	}{
		{"succeeds after retry", 2, errors.New("throttled"), 3, nil},
		{"lost after max attempts", 10, errors.New("unavailable"), 3, ErrTranscriptLost},
		{"duplicate id is not retried", 10, store.ErrDuplicateID, 1, ErrTranscriptLost},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := mock.New(mock.DefaultScript())
			sink := &testSink{failures: tt.failures, err: tt.err}
			o := New(engine, sink, testConfig(), testOptions())

			doc, err := o.Transcribe(context.Background(), payload())
			if tt.wantErr == nil {
				if err != nil || doc == nil {
					t.Fatalf("unexpected error: %v", err)
				}
			} else if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if sink.calls != tt.wantCalls {
				t.Errorf("expected %d write calls, got %d", tt.wantCalls, sink.calls)
			}
			if !engine.Sessions()[0].Released() {
				t.Error("expected the session to be released")
			}
		})
	}
}

func TestTranscribe_StoredButNotAnnounced(t *testing.T) {
	engine := mock.New(mock.DefaultScript())
	sink := &testSink{failures: 10, err: &NotAnnouncedError{ID: "stored-id", Err: errors.New("broker unavailable")}}
	o := New(engine, sink, testConfig(), testOptions())

	doc, err := o.Transcribe(context.Background(), payload())

	if !errors.Is(err, ErrNotAnnounced) {
		t.Fatalf("expected ErrNotAnnounced, got %v", err)
	}
	if errors.Is(err, ErrTranscriptLost) {
		t.Error("a stored transcript must not be reported as lost")
	}
	var na *NotAnnouncedError
	if !errors.As(err, &na) || na.ID != "stored-id" {
		t.Errorf("expected the stored id in the error, got %v", err)
	}
	if doc == nil || len(doc.Transcription) != 3 {
		t.Fatalf("expected the stored document to be returned, got %+v", doc)
	}
	if sink.calls != 3 {
		t.Errorf("expected the announcement to be retried 3 times, got %d", sink.calls)
	}
}

// silentEngine creates sessions that never terminate.
type silentEngine struct {
	sess *silentSession
}

func (e *silentEngine) NewSession(ctx context.Context, cfg stt.SessionConfig) (stt.Session, error) {
	return e.sess, nil
}

type silentSession struct {
	mu          sync.Mutex
	inputClosed bool
	stopped     bool
	closed      bool
}

func (s *silentSession) Subscribe(stt.Callback)          {}
func (s *silentSession) Start(ctx context.Context) error { return nil }
func (s *silentSession) Write([]byte) error              { return nil }

func (s *silentSession) CloseInput() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inputClosed = true
}

func (s *silentSession) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	return nil
}

func (s *silentSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func TestTranscribe_ContextBoundsTheWait(t *testing.T) {
	sess := &silentSession{}
	sink := &testSink{}
	o := New(&silentEngine{sess: sess}, sink, testConfig(), testOptions())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := o.Transcribe(ctx, payload())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected DeadlineExceeded, got %v", err)
	}
	if len(sink.written()) != 0 {
		t.Error("expected no write")
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if !sess.inputClosed || !sess.stopped || !sess.closed {
		t.Error("expected the session to be released")
	}
}

func wavBytes(rate uint32, pcm []byte) []byte {
	var b bytes.Buffer
	b.WriteString("RIFF")
	binary.Write(&b, binary.LittleEndian, uint32(36+len(pcm)))
	b.WriteString("WAVEfmt ")
	for _, v := range []any{uint32(16), uint16(1), uint16(1), rate, rate * 2, uint16(2), uint16(16)} {
		binary.Write(&b, binary.LittleEndian, v)
	}
	b.WriteString("data")
	binary.Write(&b, binary.LittleEndian, uint32(len(pcm)))
	b.Write(pcm)
	return b.Bytes()
}

func TestTranscribe_WAVPayload(t *testing.T) {
	tests := []struct {
		name string
		rate uint32
	}{
		{"matching format", 24000},
		{"mismatched format still streams", 8000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, engine, _ := newTestOrchestrator(mock.DefaultScript())
			pcm := bytes.Repeat([]byte{9}, 12)

			if _, err := o.Transcribe(context.Background(), models.AudioPayload{Name: "a.wav", Data: wavBytes(tt.rate, pcm)}); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if _, b := engine.Sessions()[0].Writes(); b != len(pcm) {
				t.Errorf("expected only the %d data bytes to be pushed, got %d", len(pcm), b)
			}
		})
	}
}

func TestTranscribe_InvalidPayload(t *testing.T) {
	tests := []struct {
		name    string
		payload models.AudioPayload
	}{
		{"missing name", models.AudioPayload{Data: []byte{1, 2}}},
		{"broken wav", models.AudioPayload{Name: "a.wav", Data: []byte("RIFF\x00\x00\x00\x00WAVEjunk")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, engine, _ := newTestOrchestrator(mock.DefaultScript())

			if _, err := o.Transcribe(context.Background(), tt.payload); !errors.Is(err, ErrInvalidPayload) {
				t.Fatalf("expected ErrInvalidPayload, got %v", err)
			}
			if len(engine.Configs()) != 0 {
				t.Error("expected no engine call")
			}
		})
	}
}

func TestTransition_LogsRejectedStep(t *testing.T) {
	var logs bytes.Buffer
	logger := zerolog.New(&logs)
	lc := session.NewLifecycle()

	transition(logger, lc.Configured)
	if logs.Len() != 0 {
		t.Fatalf("accepted step logged: %s", logs.String())
	}

	// Skips STREAMING.
	transition(logger, lc.Complete)
	if lc.State() != session.StateConfigured {
		t.Errorf("state = %v, want CONFIGURED", lc.State())
	}
	out := logs.String()
	if !strings.Contains(out, `"level":"error"`) || !strings.Contains(out, session.ErrInvalidTransition.Error()) {
		t.Errorf("rejected step not logged as an error: %s", out)
	}
}
