package speaches_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"meetwatch/internal/services"
	"meetwatch/internal/services/speaches"
)

func TestTranscribePostsMultipartChunk(t *testing.T) {
	var gotModel, gotFilename string
	var gotSize int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/audio/transcriptions" {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		gotModel = r.FormValue("model")
		file, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		gotSize = len(data)
		gotFilename = header.Filename
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"text":"  hello team  "}`)
	}))
	defer srv.Close()

	client := speaches.New(speaches.Config{BaseURL: srv.URL + "/", Model: "Systran/faster-distil-whisper-small.en"})
	text, err := client.Transcribe(context.Background(), []byte("RIFFfakewav"), "chunk_0001.wav")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "hello team" {
		t.Fatalf("expected trimmed text, got %q", text)
	}
	if gotModel != "Systran/faster-distil-whisper-small.en" {
		t.Fatalf("unexpected model %q", gotModel)
	}
	if gotFilename != "chunk_0001.wav" || gotSize != len("RIFFfakewav") {
		t.Fatalf("unexpected file %q (%d bytes)", gotFilename, gotSize)
	}
}

func TestTranscribeServerErrorIsNotRetried(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		http.Error(w, `{"error":{"message":"model loading"}}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := speaches.New(speaches.Config{BaseURL: srv.URL, Model: "m"})
	if _, err := client.Transcribe(context.Background(), []byte("x"), "c.wav"); err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Fatalf("expected a single attempt, got %d", calls)
	}
}

func TestHealth(t *testing.T) {
	healthy := true
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			http.NotFound(w, r)
			return
		}
		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, "OK")
	}))
	defer srv.Close()

	client := speaches.New(speaches.Config{BaseURL: srv.URL, Model: "m", HealthPath: "/health"})
	if err := client.Health(context.Background()); err != nil {
		t.Fatalf("expected healthy, got %v", err)
	}
	healthy = false
	err := client.Health(context.Background())
	if !errors.Is(err, services.ErrTranscriptionUnavailable) {
		t.Fatalf("expected transcription unavailable, got %v", err)
	}
}

func TestHealthUnreachable(t *testing.T) {
	client := speaches.New(speaches.Config{BaseURL: "http://127.0.0.1:1", Model: "m", HealthPath: "/health"})
	if err := client.Health(context.Background()); !errors.Is(err, services.ErrTranscriptionUnavailable) {
		t.Fatalf("expected transcription unavailable, got %v", err)
	}
}
