package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"ai-transcription-summary-service/internal/models"
	"ai-transcription-summary-service/internal/service/transcription"
	"ai-transcription-summary-service/internal/store/memory"
)

type testTranscriber struct {
	err error
	got []models.AudioPayload
}

func (t *testTranscriber) Transcribe(_ context.Context, p models.AudioPayload) (*models.TranscriptDocument, error) {
	t.got = append(t.got, p)
	doc := models.NewTranscriptDocument(p.Name, []models.Segment{{SpeakerID: "Guest-1", Text: "hello"}})
	if errors.Is(t.err, transcription.ErrNotAnnounced) {
		return doc, t.err
	}
	if t.err != nil {
		return nil, t.err
	}
	return doc, nil
}

func TestRouter_Health(t *testing.T) {
	ready := errors.New("store unreachable")
	tests := []struct {
		name       string
		path       string
		readyErr   error
		wantStatus int
	}{
		{"liveness", "/v1/liveness", nil, http.StatusOK},
		{"ready", "/v1/readiness", nil, http.StatusOK},
		{"not ready", "/v1/readiness", ready, http.StatusServiceUnavailable},
		{"metrics", "/metrics", nil, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := NewRouter(Deps{
				Transcriber: &testTranscriber{},
				Documents:   memory.New(),
				Ready:       func(context.Context) error { return tt.readyErr },
			})
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if rec.Code != tt.wantStatus {
				t.Errorf("GET %s = %d, want %d", tt.path, rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestRouter_Transcribe(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		err        error
		wantStatus int
	}{
		{"created", "/v1/transcriptions?name=call.wav", nil, http.StatusCreated},
		{"missing name", "/v1/transcriptions", nil, http.StatusBadRequest},
		{"invalid payload", "/v1/transcriptions?name=x.wav", transcription.ErrInvalidPayload, http.StatusBadRequest},
		{"canceled", "/v1/transcriptions?name=x.wav", &transcription.CancellationError{Code: "AuthenticationFailure"}, http.StatusBadGateway},
		{"lost", "/v1/transcriptions?name=x.wav", transcription.ErrTranscriptLost, http.StatusInternalServerError},
		{"stored not announced", "/v1/transcriptions?name=call.wav", &transcription.NotAnnouncedError{ID: "id", Err: errors.New("broker down")}, http.StatusAccepted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := &testTranscriber{err: tt.err}
			router := NewRouter(Deps{Transcriber: tr, Documents: memory.New()})

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, tt.target, strings.NewReader("pcm-bytes")))
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantStatus != http.StatusCreated && tt.wantStatus != http.StatusAccepted {
				return
			}

			if len(tr.got) != 1 || tr.got[0].Name != "call.wav" || string(tr.got[0].Data) != "pcm-bytes" {
				t.Errorf("transcriber got %+v", tr.got)
			}
			var doc models.TranscriptDocument
			if err := json.NewDecoder(rec.Body).Decode(&doc); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if doc.AudioFile != "call.wav" || len(doc.Transcription) != 1 {
				t.Errorf("doc = %+v", doc)
			}
		})
	}
}

func TestRouter_Documents(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	doc := models.NewTranscriptDocument("call.wav", nil)
	if err := st.Insert(ctx, doc); err != nil {
		t.Fatal(err)
	}
	if err := st.Upsert(ctx, &models.SummaryDocument{ID: doc.ID, Fields: map[string]any{"summary": "short"}}); err != nil {
		t.Fatal(err)
	}
	router := NewRouter(Deps{Transcriber: &testTranscriber{}, Documents: st})

	tests := []struct {
		path       string
		wantStatus int
		wantBody   string
	}{
		{"/v1/transcripts/" + doc.ID, http.StatusOK, `"audioFile":"call.wav"`},
		{"/v1/summaries/" + doc.ID, http.StatusOK, `"summary":"short"`},
		{"/v1/transcripts/missing", http.StatusNotFound, ""},
		{"/v1/summaries/missing", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantBody != "" && !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("body %s missing %s", rec.Body.String(), tt.wantBody)
			}
		})
	}
}
