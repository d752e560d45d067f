// Package gateway implements the HTTP clients for the three remote
// conversation services: speech recognition (ASR), NPC dialogue, and
// speech synthesis (TTS). Every client consults the
// [availability.Monitor] before touching the network and marks its
// service down on any failure, leaving recovery to the next explicit
// probe round.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	"github.com/MrWong99/ekivoice/internal/availability"
	"github.com/MrWong99/ekivoice/internal/observe"
	"github.com/MrWong99/ekivoice/internal/record"
	"github.com/MrWong99/ekivoice/pkg/wav"
)

// ErrUnavailable is returned when a gateway call is skipped because the
// service is currently marked down.
var ErrUnavailable = errors.New("gateway: service unavailable")

const defaultTranscribeTimeout = 5 * time.Second

// ASR is the client for the speech recognition service.
type ASR struct {
	monitor *availability.Monitor
	client  *http.Client
	timeout time.Duration
	metrics *observe.Metrics
}

// ASROption configures an [ASR] client.
type ASROption func(*ASR)

// WithASRTimeout overrides the per-request timeout (default 5s).
func WithASRTimeout(d time.Duration) ASROption {
	return func(a *ASR) {
		a.timeout = d
	}
}

// WithASRHTTPClient overrides the HTTP client.
func WithASRHTTPClient(c *http.Client) ASROption {
	return func(a *ASR) {
		a.client = c
	}
}

// WithASRMetrics overrides the metrics sink.
func WithASRMetrics(m *observe.Metrics) ASROption {
	return func(a *ASR) {
		a.metrics = m
	}
}

// NewASR returns a transcription client routed through monitor.
func NewASR(monitor *availability.Monitor, opts ...ASROption) *ASR {
	a := &ASR{
		monitor: monitor,
		client:  &http.Client{},
		timeout: defaultTranscribeTimeout,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	return a
}

type transcribeResponse struct {
	Text string `json:"text"`
}

// Transcribe sends the clip to the ASR service and returns the
// recognized text. When the service is marked down it returns
// [ErrUnavailable] without any network traffic. Any transport, status
// or decode failure marks the service down.
func (a *ASR) Transcribe(ctx context.Context, clip *record.Clip) (string, error) {
	if !a.monitor.IsAvailable(availability.KindASR) {
		return "", ErrUnavailable
	}

	start := time.Now()
	text, err := a.transcribe(ctx, clip)
	a.metrics.TranscribeDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		a.metrics.RecordServiceError(ctx, availability.KindASR.String())
		a.monitor.MarkDown(availability.KindASR)
		observe.Logger(ctx).Warn("transcription failed", "error", err)
		return "", err
	}
	a.metrics.RecordServiceRequest(ctx, availability.KindASR.String(), "ok")
	return text, nil
}

func (a *ASR) transcribe(ctx context.Context, clip *record.Clip) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="audio"; filename="audio.wav"`)
	header.Set("Content-Type", "audio/wav")
	part, err := mw.CreatePart(header)
	if err != nil {
		return "", fmt.Errorf("gateway: create multipart: %w", err)
	}
	if _, err := part.Write(wav.Encode(clip.PCM, clip.Channels, clip.SampleRate, clip.BitDepth)); err != nil {
		return "", fmt.Errorf("gateway: write audio part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("gateway: close multipart: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	url := a.monitor.BaseURL(availability.KindASR) + "/transcribe"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return "", fmt.Errorf("gateway: build transcribe request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("gateway: transcribe request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("gateway: transcribe returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("gateway: read transcribe response: %w", err)
	}
	var tr transcribeResponse
	if err := json.Unmarshal(data, &tr); err != nil {
		return "", fmt.Errorf("gateway: decode transcribe response: %w", err)
	}
	return tr.Text, nil
}
