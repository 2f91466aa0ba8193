// Package azure provides a speech engine backed by the Azure Speech
// ConversationTranscriber, which attributes each final result to a speaker.
package azure

import (
	"context"
	"fmt"
	"sync"

	"github.com/Microsoft/cognitive-services-speech-sdk-go/audio"
	"github.com/Microsoft/cognitive-services-speech-sdk-go/common"
	"github.com/Microsoft/cognitive-services-speech-sdk-go/speech"

	"ai-transcription-summary-service/internal/service/stt"
)

// Engine creates Azure conversation transcription sessions.
type Engine struct {
	key    string
	region string
}

// New creates an Azure engine from a subscription key and region. Credentials
// are checked when a session is created.
func New(key, region string) *Engine {
	return &Engine{key: key, region: region}
}

// NewSession builds the speech config, the push stream and the transcriber.
// On any failure everything created so far is released.
func (e *Engine) NewSession(ctx context.Context, cfg stt.SessionConfig) (stt.Session, error) {
	if e.key == "" || e.region == "" {
		return nil, fmt.Errorf("azure speech requires subscription key and region")
	}
	if cfg.Language == "" {
		return nil, fmt.Errorf("azure speech requires a recognition language")
	}

	s := &session{}
	ok := false
	defer func() {
		if !ok {
			s.Close()
		}
	}()

	speechConfig, err := speech.NewSpeechConfigFromSubscription(e.key, e.region)
	if err != nil {
		return nil, fmt.Errorf("create speech config: %w", err)
	}
	s.speechConfig = speechConfig

	if err := speechConfig.SetSpeechRecognitionLanguage(cfg.Language); err != nil {
		return nil, fmt.Errorf("set recognition language: %w", err)
	}

	format, err := audio.GetWaveFormatPCM(cfg.Format.SampleRateHz, cfg.Format.BitsPerSample, cfg.Format.Channels)
	if err != nil {
		return nil, fmt.Errorf("create audio format: %w", err)
	}
	s.format = format

	stream, err := audio.CreatePushAudioInputStreamFromFormat(format)
	if err != nil {
		return nil, fmt.Errorf("create push stream: %w", err)
	}
	s.stream = stream

	audioConfig, err := audio.NewAudioConfigFromStreamInput(stream)
	if err != nil {
		return nil, fmt.Errorf("create audio config: %w", err)
	}
	s.audioConfig = audioConfig

	transcriber, err := speech.NewConversationTranscriberFromConfig(speechConfig, audioConfig)
	if err != nil {
		return nil, fmt.Errorf("create conversation transcriber: %w", err)
	}
	s.transcriber = transcriber

	ok = true
	return s, nil
}

type session struct {
	speechConfig *speech.SpeechConfig
	format       *audio.AudioStreamFormat
	stream       *audio.PushAudioInputStream
	audioConfig  *audio.AudioConfig
	transcriber  *speech.ConversationTranscriber

	subscribed bool
	inputOnce  sync.Once
	stopOnce   sync.Once
	closeOnce  sync.Once
	stopErr    error
}

func (s *session) Subscribe(cb stt.Callback) {
	s.transcriber.Transcribing(func(e speech.ConversationTranscriptionEventArgs) {
		defer e.Close()
		cb.OnInterim(toResult(e.Result))
	})
	s.transcriber.Transcribed(func(e speech.ConversationTranscriptionEventArgs) {
		defer e.Close()
		cb.OnFinal(toResult(e.Result))
	})
	s.transcriber.Canceled(func(e speech.ConversationTranscriptionCanceledEventArgs) {
		defer e.Close()
		c := stt.Cancellation{Reason: stt.EndOfStream}
		if e.Reason == common.Error {
			c.Reason = stt.Error
			c.ErrorCode = fmt.Sprint(e.ErrorCode)
			c.ErrorDetails = e.ErrorDetails
		}
		cb.OnCanceled(c)
	})
	s.transcriber.SessionStarted(func(e speech.SessionEventArgs) {
		defer e.Close()
		cb.OnSessionStarted(e.SessionID)
	})
	s.transcriber.SessionStopped(func(e speech.SessionEventArgs) {
		defer e.Close()
		cb.OnSessionStopped(e.SessionID)
	})
	s.subscribed = true
}

func (s *session) Start(ctx context.Context) error {
	if !s.subscribed {
		return stt.ErrNotSubscribed
	}
	select {
	case err := <-s.transcriber.StartTranscribingAsync():
		if err != nil {
			return fmt.Errorf("start transcribing: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *session) Write(p []byte) error {
	return s.stream.Write(p)
}

func (s *session) CloseInput() {
	s.inputOnce.Do(func() {
		if s.stream != nil {
			s.stream.CloseStream()
		}
	})
}

func (s *session) Stop(ctx context.Context) error {
	s.stopOnce.Do(func() {
		if s.transcriber == nil {
			return
		}
		select {
		case err := <-s.transcriber.StopTranscribingAsync():
			if err != nil {
				s.stopErr = fmt.Errorf("stop transcribing: %w", err)
			}
		case <-ctx.Done():
			s.stopErr = ctx.Err()
		}
	})
	return s.stopErr
}

// Close releases native handles in reverse creation order.
func (s *session) Close() error {
	s.closeOnce.Do(func() {
		if s.transcriber != nil {
			s.transcriber.Close()
		}
		if s.audioConfig != nil {
			s.audioConfig.Close()
		}
		if s.stream != nil {
			s.stream.Close()
		}
		if s.format != nil {
			s.format.Close()
		}
		if s.speechConfig != nil {
			s.speechConfig.Close()
		}
	})
	return nil
}

func toResult(r speech.ConversationTranscriptionResult) stt.Result {
	out := stt.Result{
		Reason:    stt.RecognizedSpeech,
		SpeakerID: r.SpeakerID,
		Text:      r.Text,
		Offset:    r.Offset,
		Duration:  r.Duration,
	}
	if r.Reason == common.NoMatch {
		out.Reason = stt.NoMatch
	}
	return out
}
