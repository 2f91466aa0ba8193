package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"ai-transcription-summary-service/internal/models"
	"ai-transcription-summary-service/internal/service/transcription"
	"ai-transcription-summary-service/internal/store"
)

// MaxUploadBytes bounds the body of an upload request.
const MaxUploadBytes = 256 << 20

// Transcriber runs one audio payload through a recognition session.
type Transcriber interface {
	Transcribe(ctx context.Context, payload models.AudioPayload) (*models.TranscriptDocument, error)
}

// Documents reads stored transcripts and summaries.
type Documents interface {
	GetTranscript(ctx context.Context, id string) (*models.TranscriptDocument, error)
	GetSummary(ctx context.Context, id string) (*models.SummaryDocument, error)
}

// Deps are the services behind the routes. A nil Ready always reports ready.
type Deps struct {
	Transcriber Transcriber
	Documents   Documents
	Ready       func(ctx context.Context) error
}

// NewRouter constructs the HTTP router for the service.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Handle("/metrics", promhttp.Handler())

	r.Get("/v1/liveness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/v1/readiness", func(w http.ResponseWriter, req *http.Request) {
		if deps.Ready != nil {
			if err := deps.Ready(req.Context()); err != nil {
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/transcriptions", transcribe(deps.Transcriber))
		r.Get("/transcripts/{id}", func(w http.ResponseWriter, req *http.Request) {
			doc, err := deps.Documents.GetTranscript(req.Context(), chi.URLParam(req, "id"))
			writeDocument(w, doc, err)
		})
		r.Get("/summaries/{id}", func(w http.ResponseWriter, req *http.Request) {
			doc, err := deps.Documents.GetSummary(req.Context(), chi.URLParam(req, "id"))
			writeDocument(w, doc, err)
		})
	})

	return r
}

// transcribe accepts the raw audio as the request body; ?name= sets the audio file name.
func transcribe(t Transcriber) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		name := req.URL.Query().Get("name")
		if name == "" {
			http.Error(w, "missing name query parameter", http.StatusBadRequest)
			return
		}

		data, err := io.ReadAll(http.MaxBytesReader(w, req.Body, MaxUploadBytes))
		if err != nil {
			http.Error(w, "failed to read body: "+err.Error(), http.StatusRequestEntityTooLarge)
			return
		}

		doc, err := t.Transcribe(req.Context(), models.AudioPayload{Name: name, Data: data})
		if errors.Is(err, transcription.ErrNotAnnounced) && doc != nil {
			// Stored; only the change notification is pending.
			writeJSON(w, http.StatusAccepted, doc)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), transcribeStatus(err))
			return
		}
		writeJSON(w, http.StatusCreated, doc)
	}
}

func transcribeStatus(err error) int {
	switch {
	case errors.Is(err, transcription.ErrInvalidPayload):
		return http.StatusBadRequest
	case errors.Is(err, transcription.ErrSessionCanceled):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeDocument(w http.ResponseWriter, doc any, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case err != nil:
		log.Error().Err(err).Msg("Document lookup failed")
		http.Error(w, "lookup failed", http.StatusInternalServerError)
	default:
		writeJSON(w, http.StatusOK, doc)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
