// Package engine orchestrates conversation turns between the player
// and an NPC: typed text turns and push-to-talk voice turns across the
// recording, transcription, dialogue, synthesis, and playback stages.
//
// Workers never touch UI state. Everything the UI needs to show flows
// through a buffered event channel ([Engine.Events]) that the game
// loop drains once per tick. The reply event for a turn is always
// emitted before its audio starts playing, so the text is on screen
// while the NPC speaks.
package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/MrWong99/ekivoice/internal/observe"
	"github.com/MrWong99/ekivoice/internal/record"
	"github.com/MrWong99/ekivoice/internal/script"
)

// Apology lines shown when a stage of the turn fails.
const (
	apologyNotHeard      = "I couldn't hear what you said."
	apologyNoReply       = "Sorry, I couldn't generate a response."
	apologyNotUnderstood = "I couldn't understand what you said."
)

// ErrVoiceTurnActive is returned by [Engine.StartVoiceTurn] while a
// previous voice turn is still running.
var ErrVoiceTurnActive = errors.New("engine: a voice turn is already in progress")

// EventKind discriminates UI events.
type EventKind int

const (
	// EventHeard carries the transcription of what the player said.
	EventHeard EventKind = iota
	// EventReply carries the NPC reply (or apology) to display.
	EventReply
)

// Event is one item for the UI to render.
type Event struct {
	Kind EventKind
	NPC  string
	Text string

	// Scripted is set on replies that came from the scripted fallback
	// rather than the dialogue service.
	Scripted bool
}

// Transcriber converts a recorded clip to text.
type Transcriber interface {
	Transcribe(ctx context.Context, clip *record.Clip) (string, error)
}

// Responder produces an NPC reply to the player's message.
type Responder interface {
	Reply(ctx context.Context, npcName, message string) (string, error)
}

// Synthesizer converts a reply into speech audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, npcName string) ([]byte, error)
}

// AudioPlayer plays synthesized audio to completion.
type AudioPlayer interface {
	Play(ctx context.Context, audio []byte) error
}

// VoiceRecorder runs a single microphone capture session.
type VoiceRecorder interface {
	Start() error
	Stop()
	Wait() (*record.Clip, error)
}

// Deps bundles the stage implementations an [Engine] drives.
type Deps struct {
	ASR      Transcriber
	Dialogue Responder
	TTS      Synthesizer
	Player   AudioPlayer
	Recorder VoiceRecorder
	Scripts  *script.Store
}

// Engine coordinates conversation turns.
type Engine struct {
	deps    Deps
	metrics *observe.Metrics
	events  chan Event

	mu       sync.Mutex
	progress map[string]*script.Progress

	voiceActive atomic.Bool
}

// Option configures an [Engine].
type Option func(*Engine)

// WithMetrics overrides the metrics sink.
func WithMetrics(m *observe.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithEventBuffer sets the event channel capacity (default 16).
func WithEventBuffer(n int) Option {
	return func(e *Engine) {
		e.events = make(chan Event, n)
	}
}

// New returns an engine over the given stage implementations.
func New(deps Deps, opts ...Option) *Engine {
	e := &Engine{
		deps:     deps,
		events:   make(chan Event, 16),
		progress: make(map[string]*script.Progress),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.metrics == nil {
		e.metrics = observe.DefaultMetrics()
	}
	return e
}

// Events returns the channel the UI drains for display updates.
func (e *Engine) Events() <-chan Event {
	return e.events
}

// emit delivers an event without ever blocking a worker. When the UI
// has fallen a full buffer behind, the oldest pending event is dropped
// to make room.
func (e *Engine) emit(ev Event) {
	for {
		select {
		case e.events <- ev:
			return
		default:
		}
		select {
		case dropped := <-e.events:
			observe.Logger(context.Background()).Warn("event buffer full, dropping oldest",
				"npc", dropped.NPC)
		default:
		}
	}
}

// TextTurn handles a typed message to the NPC. The reply event is
// emitted before this method returns, so the text is visible
// immediately; synthesis and playback then run in their own goroutine.
func (e *Engine) TextTurn(ctx context.Context, npcName, text string) {
	ctx, span := observe.StartSpan(ctx, "engine.TextTurn")
	start := time.Now()

	reply, scripted := e.reply(ctx, npcName, text)
	e.emit(Event{Kind: EventReply, NPC: npcName, Text: reply, Scripted: scripted})

	go func() {
		defer span.End()
		e.speak(ctx, npcName, reply)
		e.metrics.TurnDuration.Record(ctx, time.Since(start).Seconds(),
			metric.WithAttributes(attribute.String("mode", "text")))
	}()
}

// StartVoiceTurn begins a push-to-talk turn: it starts the microphone
// session and spawns a worker that carries the turn through
// transcription, dialogue, synthesis and playback. Only one voice turn
// may run at a time.
func (e *Engine) StartVoiceTurn(npcName string) error {
	if !e.voiceActive.CompareAndSwap(false, true) {
		return ErrVoiceTurnActive
	}
	if err := e.deps.Recorder.Start(); err != nil {
		e.voiceActive.Store(false)
		if errors.Is(err, record.ErrBusy) {
			return ErrVoiceTurnActive
		}
		return err
	}
	go e.voiceTurn(npcName)
	return nil
}

// StopRecording ends the capture phase of an active voice turn. The
// worker then continues with whatever audio was heard.
func (e *Engine) StopRecording() {
	e.deps.Recorder.Stop()
}

// VoiceTurnActive reports whether a voice turn worker is running.
func (e *Engine) VoiceTurnActive() bool {
	return e.voiceActive.Load()
}

func (e *Engine) voiceTurn(npcName string) {
	defer e.voiceActive.Store(false)

	ctx, span := observe.StartSpan(context.Background(), "engine.VoiceTurn")
	defer span.End()
	e.metrics.ActiveVoiceTurns.Add(ctx, 1)
	defer e.metrics.ActiveVoiceTurns.Add(ctx, -1)
	start := time.Now()
	defer func() {
		e.metrics.TurnDuration.Record(ctx, time.Since(start).Seconds(),
			metric.WithAttributes(attribute.String("mode", "voice")))
	}()

	clip, err := e.deps.Recorder.Wait()
	if err != nil {
		observe.Logger(ctx).Warn("voice capture failed", "npc", npcName, "error", err)
		e.emit(Event{Kind: EventReply, NPC: npcName, Text: apologyNotUnderstood})
		return
	}
	if clip == nil {
		// Nothing was said.
		e.emit(Event{Kind: EventReply, NPC: npcName, Text: apologyNotHeard})
		return
	}

	text, err := e.deps.ASR.Transcribe(ctx, clip)
	if err != nil || text == "" {
		e.emit(Event{Kind: EventReply, NPC: npcName, Text: apologyNotHeard})
		return
	}
	e.emit(Event{Kind: EventHeard, NPC: npcName, Text: text})

	reply, scripted := e.reply(ctx, npcName, text)
	e.emit(Event{Kind: EventReply, NPC: npcName, Text: reply, Scripted: scripted})
	e.speak(ctx, npcName, reply)
}

// reply asks the dialogue service, falling back to the NPC's script
// and finally to an apology. The scripted-fallback cursor lives here,
// with the rest of the per-NPC conversation state, never in the script
// content itself.
func (e *Engine) reply(ctx context.Context, npcName, input string) (reply string, scripted bool) {
	text, err := e.deps.Dialogue.Reply(ctx, npcName, input)
	if err == nil && text != "" {
		return text, false
	}

	if e.deps.Scripts != nil {
		if s, ok := e.deps.Scripts.Lookup(npcName); ok {
			if line := s.Talk(e.progressFor(npcName), input); line != "" {
				e.metrics.RecordScriptedReply(ctx, npcName)
				return line, true
			}
		}
	}
	return apologyNoReply, false
}

func (e *Engine) progressFor(npcName string) *script.Progress {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.progress[npcName]
	if !ok {
		p = &script.Progress{}
		e.progress[npcName] = p
	}
	return p
}

// speak synthesizes and plays the reply. Either stage failing is
// logged and swallowed; the text is already on screen.
func (e *Engine) speak(ctx context.Context, npcName, reply string) {
	audio, err := e.deps.TTS.Synthesize(ctx, reply, npcName)
	if err != nil || len(audio) == 0 {
		return
	}
	if err := e.deps.Player.Play(ctx, audio); err != nil {
		observe.Logger(ctx).Warn("playback failed", "npc", npcName, "error", err)
	}
}
