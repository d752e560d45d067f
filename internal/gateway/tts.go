package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MrWong99/ekivoice/internal/availability"
	"github.com/MrWong99/ekivoice/internal/bilingual"
	"github.com/MrWong99/ekivoice/internal/observe"
)

const (
	defaultSynthesizeTimeout = 30 * time.Second
	defaultFetchTimeout      = 10 * time.Second

	// DefaultVoice is used for NPCs without a voice table entry.
	DefaultVoice = "female1"

	// DefaultJapaneseVoice is used for marker-tagged replies.
	DefaultJapaneseVoice = "japanese1"
)

// DefaultVoices is the built-in NPC voice table.
var DefaultVoices = map[string]string{
	"Hachiko":                      "male1",
	"Information":                  "female1",
	"Ticket":                       "female2",
	"Station Platform Attendant 1": "male1",
	"Station Platform Attendant 2": "male2",
	"Station Platform Attendant 3": "male3",
}

// Synthesis is the client for the text-to-speech service.
type Synthesis struct {
	monitor       *availability.Monitor
	client        *http.Client
	timeout       time.Duration
	fetchTimeout  time.Duration
	metrics       *observe.Metrics
	voices        map[string]string
	defaultVoice  string
	japaneseVoice string
}

// SynthesisOption configures a [Synthesis] client.
type SynthesisOption func(*Synthesis)

// WithSynthesizeTimeout overrides the per-request timeout (default 30s).
func WithSynthesizeTimeout(d time.Duration) SynthesisOption {
	return func(s *Synthesis) {
		s.timeout = d
	}
}

// WithFetchTimeout overrides the timeout for fetching audio referenced
// by URL (default 10s).
func WithFetchTimeout(d time.Duration) SynthesisOption {
	return func(s *Synthesis) {
		s.fetchTimeout = d
	}
}

// WithSynthesisHTTPClient overrides the HTTP client.
func WithSynthesisHTTPClient(c *http.Client) SynthesisOption {
	return func(s *Synthesis) {
		s.client = c
	}
}

// WithSynthesisMetrics overrides the metrics sink.
func WithSynthesisMetrics(m *observe.Metrics) SynthesisOption {
	return func(s *Synthesis) {
		s.metrics = m
	}
}

// WithVoices merges extra NPC voice assignments over [DefaultVoices].
func WithVoices(voices map[string]string) SynthesisOption {
	return func(s *Synthesis) {
		for name, voice := range voices {
			s.voices[name] = voice
		}
	}
}

// WithDefaultVoice overrides the fallback voice for unmapped NPCs.
func WithDefaultVoice(voice string) SynthesisOption {
	return func(s *Synthesis) {
		s.defaultVoice = voice
	}
}

// WithJapaneseVoice overrides the voice for marker-tagged replies.
func WithJapaneseVoice(voice string) SynthesisOption {
	return func(s *Synthesis) {
		s.japaneseVoice = voice
	}
}

// NewSynthesis returns a synthesis client routed through monitor.
func NewSynthesis(monitor *availability.Monitor, opts ...SynthesisOption) *Synthesis {
	s := &Synthesis{
		monitor:       monitor,
		client:        &http.Client{},
		timeout:       defaultSynthesizeTimeout,
		fetchTimeout:  defaultFetchTimeout,
		voices:        make(map[string]string, len(DefaultVoices)),
		defaultVoice:  DefaultVoice,
		japaneseVoice: DefaultJapaneseVoice,
	}
	for name, voice := range DefaultVoices {
		s.voices[name] = voice
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s
}

type synthesizeRequest struct {
	Text     string `json:"text"`
	Voice    string `json:"voice"`
	Language string `json:"language"`
}

type synthesizeResponse struct {
	AudioContent *string `json:"audio_content"`
	AudioURL     *string `json:"audio_url"`
}

// Synthesize converts the NPC's reply into speech audio. A
// marker-tagged reply is synthesized from its original-language text
// with the Japanese voice; otherwise the NPC's table voice (or the
// default) speaks the full text in English. When the service is marked
// down it returns [ErrUnavailable] without any network traffic; any
// failure marks the service down.
func (s *Synthesis) Synthesize(ctx context.Context, text, npcName string) ([]byte, error) {
	if !s.monitor.IsAvailable(availability.KindSynthesis) {
		return nil, ErrUnavailable
	}

	req := s.buildRequest(text, npcName)

	start := time.Now()
	audio, err := s.synthesize(ctx, req)
	s.metrics.SynthesizeDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		s.metrics.RecordServiceError(ctx, availability.KindSynthesis.String())
		s.monitor.MarkDown(availability.KindSynthesis)
		observe.Logger(ctx).Warn("synthesis failed", "npc", npcName, "voice", req.Voice, "error", err)
		return nil, err
	}
	s.metrics.RecordServiceRequest(ctx, availability.KindSynthesis.String(), "ok")
	return audio, nil
}

// buildRequest picks the text, voice and language for the given reply.
func (s *Synthesis) buildRequest(text, npcName string) synthesizeRequest {
	voice := s.defaultVoice
	if v, ok := s.voices[npcName]; ok {
		voice = v
	}
	if original, _, ok := bilingual.Extract(text); ok {
		if trimmed := strings.TrimSpace(original); bilingual.ContainsJapanese(trimmed) {
			return synthesizeRequest{Text: trimmed, Voice: s.japaneseVoice, Language: "ja"}
		}
	}
	return synthesizeRequest{Text: text, Voice: voice, Language: "en"}
}

func (s *Synthesis) synthesize(ctx context.Context, sr synthesizeRequest) ([]byte, error) {
	payload, err := json.Marshal(sr)
	if err != nil {
		return nil, fmt.Errorf("gateway: encode synthesize request: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	base := s.monitor.BaseURL(availability.KindSynthesis)
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, base+"/synthesize", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("gateway: build synthesize request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway: synthesize request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gateway: synthesize returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("gateway: read synthesize response: %w", err)
	}
	var res synthesizeResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("gateway: decode synthesize response: %w", err)
	}

	switch {
	case res.AudioContent != nil:
		audio, err := base64.StdEncoding.DecodeString(*res.AudioContent)
		if err != nil {
			return nil, fmt.Errorf("gateway: decode audio content: %w", err)
		}
		return audio, nil
	case res.AudioURL != nil:
		return s.fetchAudio(ctx, base, *res.AudioURL)
	default:
		return nil, fmt.Errorf("gateway: synthesize response carries neither audio_content nor audio_url")
	}
}

// fetchAudio downloads synthesized audio referenced by URL. A URL with
// a leading slash is resolved against the service's scheme and host.
func (s *Synthesis) fetchAudio(ctx context.Context, base, audioURL string) ([]byte, error) {
	if strings.HasPrefix(audioURL, "/") {
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("gateway: parse synthesis base url: %w", err)
		}
		audioURL = u.Scheme + "://" + u.Host + audioURL
	}

	ctx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, audioURL, nil)
	if err != nil {
		return nil, fmt.Errorf("gateway: build audio fetch request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway: fetch audio: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gateway: audio fetch returned status %d", resp.StatusCode)
	}
	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("gateway: read fetched audio: %w", err)
	}
	return audio, nil
}
