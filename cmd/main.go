package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"ai-transcription-summary-service/internal/app"
	"ai-transcription-summary-service/internal/config"
	apihttp "ai-transcription-summary-service/internal/http"
	"ai-transcription-summary-service/internal/observability"
	"ai-transcription-summary-service/internal/observability/logging"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfg *config.Configuration

	root := &cobra.Command{
		Use:          "transcriber",
		Short:        "Speaker-attributed transcription and summarization pipeline",
		SilenceUsage: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			cfg = config.Load()
			logging.Init(logging.Config{
				Level:      cfg.Observability.LogLevel,
				Format:     cfg.Observability.LogFormat,
				TimeFormat: time.RFC3339,
			})
		},
	}

	root.AddCommand(
		newServeCmd(func() *config.Configuration { return cfg }),
		newTranscribeCmd(func() *config.Configuration { return cfg }),
		newSummarizeCmd(func() *config.Configuration { return cfg }),
	)
	return root
}

func newServeCmd(cfg func() *config.Configuration) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Watch for audio, transcribe it and summarize every new transcript",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), cfg())
		},
	}
}

func serve(ctx context.Context, cfg *config.Configuration) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, app.Components{})
	if err != nil {
		return err
	}
	defer application.Shutdown()

	httpServer := observability.NewServer(cfg.Service.HTTPAddr, apihttp.NewRouter(apihttp.Deps{
		Transcriber: application.Orchestrator,
		Documents:   application.Store,
		Ready:       application.Ready,
	}))
	httpServer.Start()

	healthServer, err := observability.NewHealthServer(cfg.Service.GRPCPort)
	if err != nil {
		return err
	}
	healthServer.SetServing(true)
	healthServer.Start()

	log.Info().Str("service", cfg.Service.Name).Msg("Service started")
	runErr := application.Run(ctx)

	log.Info().Msg("Shutting down")
	healthServer.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("HTTP server shutdown error")
	}
	return runErr
}
