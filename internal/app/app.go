// Package app wires all Ekivoice subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects the
// availability monitor, the three service gateways, the microphone
// recorder, the audio player, and the conversation engine; Run executes
// the availability probe and the debug listener until the context is
// cancelled; Shutdown tears everything down in order.
//
// For testing, inject mock stage implementations via functional options
// (WithResponder, WithRecorder, etc.). When an option is not provided,
// New creates real implementations from the config.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/ekivoice/internal/availability"
	"github.com/MrWong99/ekivoice/internal/config"
	"github.com/MrWong99/ekivoice/internal/engine"
	"github.com/MrWong99/ekivoice/internal/gateway"
	"github.com/MrWong99/ekivoice/internal/observe"
	"github.com/MrWong99/ekivoice/internal/playback"
	"github.com/MrWong99/ekivoice/internal/record"
	"github.com/MrWong99/ekivoice/internal/script"
)

// App owns all subsystem lifetimes.
type App struct {
	cfg     *config.Config
	monitor *availability.Monitor
	eng     *engine.Engine
	scripts *script.Store

	debug *http.Server

	// closers are called in order during Shutdown.
	closers []func() error

	stopOnce sync.Once
}

// options collects injectable stage overrides.
type options struct {
	transcriber engine.Transcriber
	responder   engine.Responder
	synthesizer engine.Synthesizer
	player      engine.AudioPlayer
	recorder    engine.VoiceRecorder
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*options)

// WithTranscriber injects an ASR stage instead of the HTTP gateway.
func WithTranscriber(t engine.Transcriber) Option {
	return func(o *options) { o.transcriber = t }
}

// WithResponder injects a dialogue stage instead of the HTTP gateway.
func WithResponder(r engine.Responder) Option {
	return func(o *options) { o.responder = r }
}

// WithSynthesizer injects a TTS stage instead of the HTTP gateway.
func WithSynthesizer(s engine.Synthesizer) Option {
	return func(o *options) { o.synthesizer = s }
}

// WithPlayer injects an audio output stage instead of the mixer player.
func WithPlayer(p engine.AudioPlayer) Option {
	return func(o *options) { o.player = p }
}

// WithRecorder injects a capture stage instead of the microphone.
func WithRecorder(r engine.VoiceRecorder) Option {
	return func(o *options) { o.recorder = r }
}

// New creates an App by wiring all subsystems together.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{cfg: cfg}

	a.monitor = availability.NewMonitor([]availability.Endpoint{
		{Kind: availability.KindASR, BaseURL: cfg.Services.ASR.BaseURL},
		{Kind: availability.KindDialogue, BaseURL: cfg.Services.Dialogue.BaseURL},
		{Kind: availability.KindSynthesis, BaseURL: cfg.Services.Synthesis.BaseURL},
	}, availability.WithProbeTimeout(cfg.Services.ProbeTimeout.Std()))

	a.scripts = script.NewStore(cfg.NPCs, cfg.Dialogue.FuzzyKeywords)

	deps := engine.Deps{
		ASR:      o.transcriber,
		Dialogue: o.responder,
		TTS:      o.synthesizer,
		Player:   o.player,
		Recorder: o.recorder,
		Scripts:  a.scripts,
	}
	if deps.ASR == nil {
		deps.ASR = gateway.NewASR(a.monitor,
			gateway.WithASRTimeout(cfg.Services.ASR.Timeout.Std()))
	}
	if deps.Dialogue == nil {
		deps.Dialogue = gateway.NewDialogue(a.monitor,
			gateway.WithReplyTimeout(cfg.Services.Dialogue.Timeout.Std()),
			gateway.WithPlayerID(cfg.Game.PlayerID),
			gateway.WithServiceIDs(npcServiceIDs(cfg.NPCs)))
	}
	if deps.TTS == nil {
		deps.TTS = gateway.NewSynthesis(a.monitor,
			gateway.WithSynthesizeTimeout(cfg.Services.Synthesis.Timeout.Std()),
			gateway.WithFetchTimeout(cfg.Services.Synthesis.FetchTimeout.Std()),
			gateway.WithVoices(npcVoices(cfg.NPCs)),
			gateway.WithDefaultVoice(cfg.Services.Synthesis.DefaultVoice),
			gateway.WithJapaneseVoice(cfg.Services.Synthesis.JapaneseVoice))
	}
	if deps.Player == nil {
		deps.Player = playback.NewPlayer(cfg.Playback)
	}
	if deps.Recorder == nil {
		deps.Recorder = a.initRecorder(cfg.Recording)
	}

	a.eng = engine.New(deps)

	if cfg.Game.DebugListenAddr != "" {
		a.debug = a.newDebugServer(ctx, cfg.Game.DebugListenAddr)
	}

	return a, nil
}

// initRecorder opens the default microphone. A machine without a
// working input device degrades to text-only turns instead of failing
// startup.
func (a *App) initRecorder(cfg config.RecordingConfig) engine.VoiceRecorder {
	mic, err := record.NewMicSource(cfg.SampleRate, cfg.Channels, cfg.FrameSize)
	if err != nil {
		slog.Warn("microphone unavailable, voice input disabled", "error", err)
		return disabledRecorder{err: err}
	}
	a.closers = append(a.closers, mic.Close)
	return record.NewRecorder(mic, cfg)
}

// Engine returns the conversation engine for the UI loop.
func (a *App) Engine() *engine.Engine {
	return a.eng
}

// Monitor returns the availability monitor, e.g. for the status line.
func (a *App) Monitor() *availability.Monitor {
	return a.monitor
}

// Probe re-checks all services. This is the only path by which a
// service marked down comes back.
func (a *App) Probe(ctx context.Context) bool {
	return a.monitor.ProbeAll(ctx)
}

// ReloadScripts swaps the scripted dialogue content, typically from a
// config watcher callback. Conversation cursors carry over.
func (a *App) ReloadScripts(npcs []config.NPCConfig) {
	a.scripts.Replace(npcs)
	slog.Info("scripted dialogue reloaded", "npcs", len(npcs))
}

// Run probes the services once and then serves the debug listener
// until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if a.Probe(ctx) {
		slog.Info("all services available")
	} else {
		slog.Warn("degraded start", "status", a.monitor.StatusLine())
	}

	g, ctx := errgroup.WithContext(ctx)

	if a.debug != nil {
		g.Go(func() error {
			slog.Info("debug listener started", "addr", a.debug.Addr)
			if err := a.debug.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("app: debug listener: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return a.debug.Shutdown(shutdownCtx)
		})
	} else {
		g.Go(func() error {
			<-ctx.Done()
			return nil
		})
	}

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return err
	}
	return ctx.Err()
}

// Shutdown tears down all subsystems in order. Safe to call more than
// once.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))
		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}
		slog.Info("shutdown complete")
	})
	return shutdownErr
}

// ---- helpers ----

// disabledRecorder stands in when no microphone could be opened.
type disabledRecorder struct {
	err error
}

func (d disabledRecorder) Start() error {
	return fmt.Errorf("app: voice input disabled: %w", d.err)
}

func (d disabledRecorder) Stop() {}

func (d disabledRecorder) Wait() (*record.Clip, error) {
	return nil, nil
}

// npcVoices collects explicit per-NPC voice assignments from config.
func npcVoices(npcs []config.NPCConfig) map[string]string {
	out := make(map[string]string)
	for _, npc := range npcs {
		if npc.Voice != "" {
			out[npc.Name] = npc.Voice
		}
	}
	return out
}

// npcServiceIDs collects explicit display-name to service-id mappings
// from config.
func npcServiceIDs(npcs []config.NPCConfig) map[string]string {
	out := make(map[string]string)
	for _, npc := range npcs {
		if npc.ServiceID != "" {
			out[npc.Name] = npc.ServiceID
		}
	}
	return out
}

// newDebugServer builds the debug HTTP listener: Prometheus metrics,
// service health snapshot, and a manual probe trigger.
func (a *App) newDebugServer(ctx context.Context, addr string) *http.Server {
	mux := http.NewServeMux()
	a.registerDebugRoutes(mux)
	return &http.Server{
		Addr:        addr,
		Handler:     observe.Middleware(observe.DefaultMetrics())(mux),
		BaseContext: func(net.Listener) context.Context { return ctx },
	}
}

func (a *App) registerDebugRoutes(mux *http.ServeMux) {
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		snapshot := a.monitor.Snapshot()
		allUp := true
		for _, s := range snapshot {
			if !s.Available {
				allUp = false
			}
		}
		w.Header().Set("Content-Type", "application/json")
		if !allUp {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		if err := json.NewEncoder(w).Encode(map[string]any{
			"healthy":  allUp,
			"services": snapshot,
		}); err != nil {
			observe.Logger(r.Context()).Warn("healthz encode failed", "err", err)
		}
	})
	mux.HandleFunc("POST /probe", func(w http.ResponseWriter, r *http.Request) {
		ok := a.Probe(r.Context())
		w.Header().Set("Content-Type", "application/json")
		if !ok {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		if err := json.NewEncoder(w).Encode(map[string]any{
			"healthy":  ok,
			"services": a.monitor.Snapshot(),
		}); err != nil {
			observe.Logger(r.Context()).Warn("probe encode failed", "err", err)
		}
	})
}
