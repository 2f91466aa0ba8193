// Package app wires the transcription and summarization pipeline from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"ai-transcription-summary-service/internal/config"
	"ai-transcription-summary-service/internal/events"
	"ai-transcription-summary-service/internal/ingest"
	"ai-transcription-summary-service/internal/models"
	"ai-transcription-summary-service/internal/observability/logging"
	"ai-transcription-summary-service/internal/service/stt"
	"ai-transcription-summary-service/internal/service/stt/azure"
	"ai-transcription-summary-service/internal/service/stt/google"
	"ai-transcription-summary-service/internal/service/stt/mock"
	"ai-transcription-summary-service/internal/service/summary"
	"ai-transcription-summary-service/internal/service/summary/gemini"
	openaigen "ai-transcription-summary-service/internal/service/summary/openai"
	"ai-transcription-summary-service/internal/service/transcription"
	"ai-transcription-summary-service/internal/store"
	"ai-transcription-summary-service/internal/store/memory"
	"ai-transcription-summary-service/internal/store/postgres"
	redisstore "ai-transcription-summary-service/internal/store/redis"
)

// localFeedBuffer bounds change events queued in-process when Kafka is disabled.
const localFeedBuffer = 256

// Components overrides parts built from configuration. Nil fields are built.
type Components struct {
	Engine    stt.Engine
	Generator summary.Generator
	Store     store.Store
	Source    ingest.Source
}

// feed delivers change-event batches.
type feed interface {
	Run(ctx context.Context, handle events.BatchHandler) error
}

// Application holds process-wide state for the service.
type Application struct {
	StartupTime time.Time
	Cfg         *config.Configuration

	Store        store.Store
	Orchestrator *transcription.Orchestrator
	Dispatcher   *summary.Dispatcher

	source   ingest.Source
	feed     feed
	notifier events.Notifier
	closers  []io.Closer
	ready    atomic.Bool
	log      zerolog.Logger
}

// New builds every component. Speech settings are checked per transcription;
// store and summarizer settings are checked here.
func New(ctx context.Context, cfg *config.Configuration, c Components) (*Application, error) {
	a := &Application{
		Cfg: cfg,
		log: logging.WithComponent("application"),
	}

	st, err := a.buildStore(ctx, c.Store)
	if err != nil {
		a.closeAll()
		return nil, err
	}
	a.Store = st

	engine, err := a.buildEngine(ctx, c.Engine)
	if err != nil {
		a.closeAll()
		return nil, err
	}

	gen, err := a.buildGenerator(ctx, c.Generator)
	if err != nil {
		a.closeAll()
		return nil, err
	}

	if err := a.buildFeed(); err != nil {
		a.closeAll()
		return nil, err
	}
	a.source = c.Source

	sink := events.NewTranscriptSink(st, a.notifier)
	a.Orchestrator = transcription.New(engine, sink, cfg.Speech, transcription.DefaultOptions())
	a.Dispatcher = summary.NewDispatcher(gen, st, summary.Config{
		Provider:    cfg.Summarizer.Provider,
		Concurrency: cfg.Summarizer.Concurrency,
	})

	a.log.Info().
		Str("speechProvider", cfg.Speech.Provider).
		Str("summarizer", cfg.Summarizer.Provider).
		Str("store", cfg.Store.Driver).
		Bool("kafka", cfg.Kafka.Enabled).
		Msg("Application created")
	return a, nil
}

func (a *Application) buildStore(ctx context.Context, st store.Store) (store.Store, error) {
	if st != nil {
		return st, nil
	}
	cfg := a.Cfg.Store
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("store config: %w", err)
	}
	switch cfg.Driver {
	case "redis":
		s, err := redisstore.New(ctx, redisstore.Config{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, s)
		return s, nil
	case "postgres":
		s, err := postgres.New(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, s)
		return s, nil
	default:
		return memory.New(), nil
	}
}

func (a *Application) buildEngine(ctx context.Context, engine stt.Engine) (stt.Engine, error) {
	if engine != nil {
		return engine, nil
	}
	cfg := a.Cfg.Speech
	switch cfg.Provider {
	case "google":
		e, err := google.New(ctx, google.DefaultConfig())
		if err != nil {
			return nil, fmt.Errorf("google speech client: %w", err)
		}
		a.closers = append(a.closers, e)
		return e, nil
	case "mock":
		return mock.New(mock.DefaultScript()), nil
	default:
		// Missing credentials surface as a configuration error on each transcription.
		return azure.New(cfg.Key, cfg.Region), nil
	}
}

func (a *Application) buildGenerator(ctx context.Context, gen summary.Generator) (summary.Generator, error) {
	if gen != nil {
		return gen, nil
	}
	cfg := a.Cfg.Summarizer
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("summarizer config: %w", err)
	}
	switch cfg.Provider {
	case "gemini":
		return gemini.New(ctx, cfg.APIKey, cfg.Deployment)
	case "openai":
		return openaigen.New(openaigen.Config{Endpoint: cfg.Endpoint, APIKey: cfg.APIKey, Model: cfg.Deployment})
	default:
		return openaigen.New(openaigen.Config{
			Azure:      true,
			Endpoint:   cfg.Endpoint,
			APIKey:     cfg.APIKey,
			APIVersion: cfg.APIVersion,
			Model:      cfg.Deployment,
		})
	}
}

func (a *Application) buildFeed() error {
	cfg := a.Cfg.Kafka
	if !cfg.Enabled {
		local := events.NewLocalFeed(localFeedBuffer, cfg.BatchSize, cfg.BatchWait)
		a.feed, a.notifier = local, local
		return nil
	}

	publisher := events.NewPublisher(&events.Config{
		Brokers:   cfg.Brokers,
		Topic:     cfg.Topic,
		Principal: cfg.Principal,
		Enabled:   true,
	})
	a.closers = append(a.closers, publisher)

	consumer, err := events.NewConsumer(events.ConsumerConfig{
		Brokers:   cfg.Brokers,
		Topic:     cfg.Topic,
		GroupID:   cfg.GroupID,
		BatchSize: cfg.BatchSize,
		BatchWait: cfg.BatchWait,
	})
	if err != nil {
		return err
	}
	a.closers = append(a.closers, consumer)
	a.feed, a.notifier = consumer, publisher
	return nil
}

// buildSource opens the configured input trigger.
func (a *Application) buildSource(ctx context.Context) (ingest.Source, error) {
	cfg := a.Cfg.Ingest
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("ingest config: %w", err)
	}
	switch cfg.Source {
	case "minio":
		return ingest.NewBucketListener(ctx, ingest.BucketConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			Prefix:    cfg.MinioPrefix,
			UseSSL:    cfg.MinioUseSSL,
		})
	default:
		return ingest.NewDirWatcher(cfg.Dir, cfg.Concurrency, ingest.DefaultSettleDelay)
	}
}

// Run starts the input trigger and the change-feed consumer and blocks until
// ctx is canceled or either fails.
func (a *Application) Run(ctx context.Context) error {
	if a.source == nil {
		src, err := a.buildSource(ctx)
		if err != nil {
			return err
		}
		a.source = src
	}

	a.StartupTime = time.Now().UTC()
	a.log.Info().Time("startupTime", a.StartupTime).Msg("Pipeline starting")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.feed.Run(gctx, a.HandleBatch) })
	g.Go(func() error { return a.source.Run(gctx, a.HandleAudio) })

	a.ready.Store(true)
	err := g.Wait()
	a.ready.Store(false)
	return err
}

// HandleAudio transcribes one payload; the transcript reaches the change feed
// through the sink.
func (a *Application) HandleAudio(ctx context.Context, payload models.AudioPayload) error {
	_, err := a.Orchestrator.Transcribe(ctx, payload)
	return err
}

// HandleBatch summarizes one change-feed batch. The dispatcher logs the report.
func (a *Application) HandleBatch(ctx context.Context, items [][]byte) {
	a.Dispatcher.Dispatch(ctx, items)
}

// Ready reports whether the pipeline loops are running.
func (a *Application) Ready(context.Context) error {
	if !a.ready.Load() {
		return errors.New("pipeline not running")
	}
	return nil
}

// Shutdown releases every component. Run must have returned.
func (a *Application) Shutdown() {
	a.log.Info().Msg("Application shutting down")
	if a.source != nil {
		if err := a.source.Close(); err != nil {
			a.log.Warn().Err(err).Msg("Failed to close input source")
		}
	}
	a.closeAll()
}

func (a *Application) closeAll() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.log.Warn().Err(err).Msg("Failed to close component")
		}
	}
	a.closers = nil
}
