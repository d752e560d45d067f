// Package mock provides in-memory implementations of the [engine]
// stage interfaces for use in unit tests.
//
// Each mock records every call and lets the test configure return
// values via exported fields. All mocks are safe for concurrent use.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/ekivoice/internal/engine"
	"github.com/MrWong99/ekivoice/internal/record"
)

// Compile-time interface assertions.
var (
	_ engine.Transcriber   = (*Transcriber)(nil)
	_ engine.Responder     = (*Responder)(nil)
	_ engine.Synthesizer   = (*Synthesizer)(nil)
	_ engine.AudioPlayer   = (*AudioPlayer)(nil)
	_ engine.VoiceRecorder = (*VoiceRecorder)(nil)
)

// Transcriber is a mock [engine.Transcriber].
type Transcriber struct {
	mu sync.Mutex

	// TranscribeResult is returned by Transcribe.
	TranscribeResult string

	// TranscribeError is the error returned by Transcribe.
	TranscribeError error

	// TranscribeCalls records the clips passed to Transcribe.
	TranscribeCalls []*record.Clip
}

// Transcribe implements [engine.Transcriber].
func (t *Transcriber) Transcribe(_ context.Context, clip *record.Clip) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.TranscribeCalls = append(t.TranscribeCalls, clip)
	return t.TranscribeResult, t.TranscribeError
}

// ReplyCall records the arguments of a single [Responder.Reply] call.
type ReplyCall struct {
	NPCName string
	Message string
}

// Responder is a mock [engine.Responder].
type Responder struct {
	mu sync.Mutex

	// ReplyResult is returned by Reply.
	ReplyResult string

	// ReplyError is the error returned by Reply.
	ReplyError error

	// ReplyCalls records all Reply invocations.
	ReplyCalls []ReplyCall
}

// Reply implements [engine.Responder].
func (r *Responder) Reply(_ context.Context, npcName, message string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ReplyCalls = append(r.ReplyCalls, ReplyCall{NPCName: npcName, Message: message})
	return r.ReplyResult, r.ReplyError
}

// SynthesizeCall records the arguments of a single [Synthesizer.Synthesize] call.
type SynthesizeCall struct {
	Text    string
	NPCName string
}

// Synthesizer is a mock [engine.Synthesizer].
type Synthesizer struct {
	mu sync.Mutex

	// SynthesizeResult is returned by Synthesize.
	SynthesizeResult []byte

	// SynthesizeError is the error returned by Synthesize.
	SynthesizeError error

	// SynthesizeCalls records all Synthesize invocations.
	SynthesizeCalls []SynthesizeCall
}

// Synthesize implements [engine.Synthesizer].
func (s *Synthesizer) Synthesize(_ context.Context, text, npcName string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SynthesizeCalls = append(s.SynthesizeCalls, SynthesizeCall{Text: text, NPCName: npcName})
	return s.SynthesizeResult, s.SynthesizeError
}

// AudioPlayer is a mock [engine.AudioPlayer].
type AudioPlayer struct {
	mu sync.Mutex

	// PlayError is the error returned by Play.
	PlayError error

	// PlayCalls records the audio passed to Play.
	PlayCalls [][]byte

	// Played is closed after the first Play call, letting tests wait
	// for asynchronous playback. Leave nil when not needed.
	Played chan struct{}

	playedOnce sync.Once
}

// Play implements [engine.AudioPlayer].
func (p *AudioPlayer) Play(_ context.Context, audio []byte) error {
	p.mu.Lock()
	p.PlayCalls = append(p.PlayCalls, audio)
	err := p.PlayError
	p.mu.Unlock()
	if p.Played != nil {
		p.playedOnce.Do(func() { close(p.Played) })
	}
	return err
}

// Calls returns a copy of the recorded Play calls.
func (p *AudioPlayer) Calls() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([][]byte, len(p.PlayCalls))
	copy(out, p.PlayCalls)
	return out
}

// VoiceRecorder is a mock [engine.VoiceRecorder].
type VoiceRecorder struct {
	mu sync.Mutex

	// StartError is returned by Start.
	StartError error

	// WaitClip and WaitError are returned by Wait.
	WaitClip  *record.Clip
	WaitError error

	// WaitGate, when non-nil, blocks Wait until the channel is closed.
	// Lets tests hold a voice turn in its capture phase.
	WaitGate chan struct{}

	// CallCountStart and CallCountStop record invocation counts.
	CallCountStart int
	CallCountStop  int
}

// Start implements [engine.VoiceRecorder].
func (v *VoiceRecorder) Start() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.CallCountStart++
	return v.StartError
}

// Stop implements [engine.VoiceRecorder].
func (v *VoiceRecorder) Stop() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.CallCountStop++
}

// Wait implements [engine.VoiceRecorder].
func (v *VoiceRecorder) Wait() (*record.Clip, error) {
	v.mu.Lock()
	gate := v.WaitGate
	v.mu.Unlock()
	if gate != nil {
		<-gate
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.WaitClip, v.WaitError
}
