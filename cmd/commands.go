package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"ai-transcription-summary-service/internal/app"
	"ai-transcription-summary-service/internal/config"
	"ai-transcription-summary-service/internal/models"
)

func newTranscribeCmd(cfg func() *config.Configuration) *cobra.Command {
	var summarize bool

	cmd := &cobra.Command{
		Use:   "transcribe <audio-file>",
		Short: "Transcribe one WAV or raw PCM file and print the transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			application, err := app.New(ctx, cfg(), app.Components{})
			if err != nil {
				return err
			}
			defer application.Shutdown()

			doc, err := application.Orchestrator.Transcribe(ctx, models.AudioPayload{
				Name: filepath.Base(args[0]),
				Data: data,
			})
			if err != nil {
				return err
			}
			if err := printJSON(cmd, doc); err != nil {
				return err
			}

			if !summarize {
				return nil
			}
			return summarizeDocument(ctx, cmd, application, *doc)
		},
	}
	cmd.Flags().BoolVar(&summarize, "summarize", false, "also summarize the transcript and print the summary")
	return cmd
}

func summarizeDocument(ctx context.Context, cmd *cobra.Command, application *app.Application, doc models.TranscriptDocument) error {
	report := application.Dispatcher.DispatchDocuments(ctx, []models.TranscriptDocument{doc})
	if report.Failed() > 0 {
		return report.Failures[0]
	}
	summary, err := application.Store.GetSummary(ctx, doc.ID)
	if err != nil {
		return err
	}
	return printJSON(cmd, summary)
}

func newSummarizeCmd(cfg func() *config.Configuration) *cobra.Command {
	return &cobra.Command{
		Use:   "summarize <transcript.json>...",
		Short: "Summarize stored transcript documents as one batch",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			items := make([][]byte, 0, len(args))
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				items = append(items, data)
			}

			application, err := app.New(ctx, cfg(), app.Components{})
			if err != nil {
				return err
			}
			defer application.Shutdown()

			report := application.Dispatcher.Dispatch(ctx, items)
			for _, f := range report.Failures {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", args[f.Index], f)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "summarized %d of %d transcripts\n", len(report.Succeeded), report.Total)
			if report.Failed() > 0 {
				return fmt.Errorf("%d transcripts failed", report.Failed())
			}
			return nil
		},
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
