// Package google provides a Google Cloud Speech-to-Text engine.
package google

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"ai-transcription-summary-service/internal/service/stt"
)

// Config tunes diarization. Credentials come from GOOGLE_APPLICATION_CREDENTIALS.
type Config struct {
	MinSpeakers int32
	MaxSpeakers int32
}

// DefaultConfig returns the diarization bounds used when none are configured.
func DefaultConfig() Config {
	return Config{MinSpeakers: 1, MaxSpeakers: 6}
}

// Engine implements stt.Engine using streaming recognition with speaker diarization.
type Engine struct {
	client *speech.Client
	cfg    Config
}

// New creates a Google engine.
func New(ctx context.Context, cfg Config) (*Engine, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return &Engine{client: c, cfg: cfg}, nil
}

// Close releases the underlying gRPC client.
func (e *Engine) Close() error {
	return e.client.Close()
}

// NewSession prepares a session; the stream itself is opened by Start.
func (e *Engine) NewSession(ctx context.Context, cfg stt.SessionConfig) (stt.Session, error) {
	if cfg.Language == "" {
		return nil, fmt.Errorf("google speech requires a recognition language")
	}
	if cfg.Format.BitsPerSample != 16 {
		return nil, fmt.Errorf("google speech supports LINEAR16 only, got %d-bit samples", cfg.Format.BitsPerSample)
	}
	return &Adapter{
		client:    e.client,
		streamCfg: streamingConfig(cfg, e.cfg),
	}, nil
}

func streamingConfig(cfg stt.SessionConfig, diar Config) *speechpb.StreamingRecognitionConfig {
	return &speechpb.StreamingRecognitionConfig{
		Config: &speechpb.RecognitionConfig{
			Encoding:              speechpb.RecognitionConfig_LINEAR16,
			SampleRateHertz:       int32(cfg.Format.SampleRateHz),
			AudioChannelCount:     int32(cfg.Format.Channels),
			LanguageCode:          cfg.Language,
			EnableWordTimeOffsets: true,
			DiarizationConfig: &speechpb.SpeakerDiarizationConfig{
				EnableSpeakerDiarization: true,
				MinSpeakerCount:          diar.MinSpeakers,
				MaxSpeakerCount:          diar.MaxSpeakers,
			},
		},
		InterimResults: true,
	}
}

// Adapter is one streaming recognition session.
type Adapter struct {
	client    *speech.Client
	streamCfg *speechpb.StreamingRecognitionConfig

	mu     sync.Mutex
	stream speechpb.Speech_StreamingRecognizeClient
	cancel context.CancelFunc
	cb     stt.Callback

	inputOnce sync.Once
	stopOnce  sync.Once
	listening sync.WaitGroup
	sessionID string
}

func (a *Adapter) Subscribe(cb stt.Callback) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cb = cb
}

// Start opens the stream, sends the streaming config and starts Listen.
func (a *Adapter) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cb == nil {
		return stt.ErrNotSubscribed
	}

	// The stream outlives the Start call; it is bounded by Stop instead.
	streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stream, err := a.client.StreamingRecognize(streamCtx)
	if err != nil {
		cancel()
		return err
	}

	if err := stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: a.streamCfg,
		},
	}); err != nil {
		cancel()
		return err
	}

	a.stream = stream
	a.cancel = cancel
	a.sessionID = fmt.Sprintf("google-%d", time.Now().UnixNano())
	a.cb.OnSessionStarted(a.sessionID)

	a.listening.Add(1)
	go a.Listen()
	return nil
}

// Write sends audio bytes to Google Speech-to-Text.
func (a *Adapter) Write(audio []byte) error {
	return a.stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
			AudioContent: audio,
		},
	})
}

func (a *Adapter) CloseInput() {
	a.inputOnce.Do(func() {
		if a.stream != nil {
			a.stream.CloseSend()
		}
	})
}

// Stop cancels the stream and waits for Listen to return.
func (a *Adapter) Stop(ctx context.Context) error {
	a.stopOnce.Do(func() {
		if a.cancel != nil {
			a.cancel()
		}
	})
	done := make(chan struct{})
	go func() {
		a.listening.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close is equivalent to Stop with no deadline; the client is owned by the Engine.
func (a *Adapter) Close() error {
	return a.Stop(context.Background())
}

// Listen receives responses and invokes callbacks until the stream ends.
// io.EOF after CloseInput is the natural end of audio; anything else is an error.
func (a *Adapter) Listen() {
	defer a.listening.Done()
	for {
		resp, err := a.stream.Recv()
		if err != nil {
			a.cb.OnCanceled(cancellationFor(err))
			a.cb.OnSessionStopped(a.sessionID)
			return
		}
		if resp.Error != nil {
			a.cb.OnCanceled(stt.Cancellation{
				Reason:       stt.Error,
				ErrorCode:    codes.Code(resp.Error.Code).String(),
				ErrorDetails: resp.Error.Message,
			})
			a.cb.OnSessionStopped(a.sessionID)
			return
		}

		for _, r := range resp.Results {
			res := toResult(r)
			if r.IsFinal {
				a.cb.OnFinal(res)
			} else {
				a.cb.OnInterim(res)
			}
		}
	}
}

func cancellationFor(err error) stt.Cancellation {
	if errors.Is(err, io.EOF) {
		return stt.Cancellation{Reason: stt.EndOfStream}
	}
	st, _ := status.FromError(err)
	if st.Code() == codes.Canceled {
		return stt.Cancellation{Reason: stt.EndOfStream}
	}
	return stt.Cancellation{
		Reason:       stt.Error,
		ErrorCode:    st.Code().String(),
		ErrorDetails: st.Message(),
	}
}

// toResult maps a streaming result; the speaker of the first word labels the segment.
func toResult(r *speechpb.StreamingRecognitionResult) stt.Result {
	if len(r.Alternatives) == 0 || r.Alternatives[0].Transcript == "" {
		return stt.Result{Reason: stt.NoMatch}
	}
	alt := r.Alternatives[0]
	res := stt.Result{
		Reason: stt.RecognizedSpeech,
		Text:   alt.Transcript,
	}
	if len(alt.Words) > 0 {
		first := alt.Words[0]
		res.SpeakerID = speakerLabel(first)
		res.Offset = first.StartTime.AsDuration()
		end := alt.Words[len(alt.Words)-1].EndTime.AsDuration()
		if r.ResultEndTime != nil {
			end = r.ResultEndTime.AsDuration()
		}
		if end > res.Offset {
			res.Duration = end - res.Offset
		}
	}
	return res
}

func speakerLabel(w *speechpb.WordInfo) string {
	if w.SpeakerLabel != "" {
		return "Guest-" + w.SpeakerLabel
	}
	if w.SpeakerTag > 0 {
		return fmt.Sprintf("Guest-%d", w.SpeakerTag)
	}
	return "Unknown"
}
