package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/MrWong99/ekivoice/internal/availability"
	"github.com/MrWong99/ekivoice/internal/record"
	"github.com/MrWong99/ekivoice/pkg/wav"
)

func testClip() *record.Clip {
	return &record.Clip{
		PCM:        make([]byte, 4096),
		SampleRate: 16000,
		Channels:   1,
		BitDepth:   16,
	}
}

func TestTranscribe(t *testing.T) {
	var gotInfo wav.Info
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {})
	mux.HandleFunc("POST /transcribe", func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("audio")
		if err != nil {
			t.Errorf("form field audio: %v", err)
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		defer file.Close()
		if header.Filename != "audio.wav" {
			t.Errorf("filename = %q", header.Filename)
		}
		data, _ := io.ReadAll(file)
		if gotInfo, err = wav.Parse(data); err != nil {
			t.Errorf("uploaded audio is not valid WAV: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]string{"text": "hello world"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	asr := NewASR(upMonitor(t, availability.KindASR, srv.URL))
	text, err := asr.Transcribe(context.Background(), testClip())
	if err != nil {
		t.Fatalf("Transcribe() error: %v", err)
	}
	if text != "hello world" {
		t.Errorf("Transcribe() = %q", text)
	}
	if gotInfo.SampleRate != 16000 || gotInfo.Channels != 1 || gotInfo.BitDepth != 16 {
		t.Errorf("uploaded WAV format = %+v", gotInfo)
	}
}

func TestTranscribeUnavailableSkipsNetwork(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	asr := NewASR(downMonitor(availability.KindASR, srv.URL))
	_, err := asr.Transcribe(context.Background(), testClip())
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("Transcribe() error = %v, want ErrUnavailable", err)
	}
	if hits.Load() != 0 {
		t.Errorf("unavailable service received %d requests", hits.Load())
	}
}

func TestTranscribeFailureMarksDown(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {})
	mux.HandleFunc("POST /transcribe", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	monitor := upMonitor(t, availability.KindASR, srv.URL)
	asr := NewASR(monitor)
	if _, err := asr.Transcribe(context.Background(), testClip()); err == nil {
		t.Fatal("Transcribe() did not report server error")
	}
	if monitor.IsAvailable(availability.KindASR) {
		t.Error("service still available after failure")
	}

	// No recovery without a fresh probe round.
	if _, err := asr.Transcribe(context.Background(), testClip()); !errors.Is(err, ErrUnavailable) {
		t.Errorf("second Transcribe() error = %v, want ErrUnavailable", err)
	}
}

func TestTranscribeMalformedResponse(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {})
	mux.HandleFunc("POST /transcribe", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "not json")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	monitor := upMonitor(t, availability.KindASR, srv.URL)
	asr := NewASR(monitor)
	if _, err := asr.Transcribe(context.Background(), testClip()); err == nil {
		t.Error("Transcribe() accepted a malformed response")
	}
	if monitor.IsAvailable(availability.KindASR) {
		t.Error("service still available after decode failure")
	}
}
