package record

import (
	"errors"
	"testing"
	"time"

	"github.com/MrWong99/ekivoice/internal/config"
)

// scriptedSource replays a fixed sequence of frames. Each entry is the
// peak sample value for that frame; the frame is otherwise flat.
type scriptedSource struct {
	peaks   []int16
	pos     int
	started bool
	stopped bool
	readErr error
}

func (s *scriptedSource) Start() error {
	s.started = true
	s.stopped = false
	return nil
}

func (s *scriptedSource) Stop() error {
	s.stopped = true
	return nil
}

func (s *scriptedSource) ReadFrame(frame []int16) error {
	if s.readErr != nil {
		return s.readErr
	}
	peak := int16(0)
	if s.pos < len(s.peaks) {
		peak = s.peaks[s.pos]
		s.pos++
	}
	for i := range frame {
		frame[i] = 0
	}
	if len(frame) > 0 {
		frame[0] = peak
	}
	return nil
}

// gatedSource blocks every read until the gate channel is closed, to
// hold the worker mid-session.
type gatedSource struct {
	scriptedSource
	gate chan struct{}
}

func (g *gatedSource) ReadFrame(frame []int16) error {
	<-g.gate
	return g.scriptedSource.ReadFrame(frame)
}

func testConfig() config.RecordingConfig {
	return config.RecordingConfig{
		SampleRate:         16000,
		Channels:           1,
		FrameSize:          1024,
		AmplitudeThreshold: 500,
		SilenceFrames:      30,
		MaxDuration:        config.Duration(5 * time.Second),
	}
}

func frames(n int, peak int16) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = peak
	}
	return out
}

func record(t *testing.T, src FrameSource, cfg config.RecordingConfig) (*Clip, error) {
	t.Helper()
	r := NewRecorder(src, cfg)
	if err := r.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	return r.Wait()
}

func TestStopsAfterSilenceRun(t *testing.T) {
	// Ten loud frames, then silence. The session should stop once the
	// silence run exceeds 30 frames: 10 + 31 = 41 frames captured.
	src := &scriptedSource{peaks: append(frames(10, 2000), frames(100, 100)...)}
	clip, err := record(t, src, testConfig())
	if err != nil {
		t.Fatalf("Wait() error: %v", err)
	}
	if clip == nil {
		t.Fatal("Wait() returned nil clip")
	}
	wantFrames := 41
	if got := len(clip.PCM) / 2 / 1024; got != wantFrames {
		t.Errorf("captured %d frames, want %d", got, wantFrames)
	}
	if !src.stopped {
		t.Error("frame source not stopped")
	}
}

func TestLoudFrameResetsSilenceRun(t *testing.T) {
	// 20 silent, one loud, then silence again. The first run must not
	// carry over: total = 20 + 1 + 31 = 52 frames.
	peaks := append(frames(20, 100), 2000)
	peaks = append(peaks, frames(100, 100)...)
	src := &scriptedSource{peaks: peaks}
	clip, err := record(t, src, testConfig())
	if err != nil {
		t.Fatalf("Wait() error: %v", err)
	}
	if got := len(clip.PCM) / 2 / 1024; got != 52 {
		t.Errorf("captured %d frames, want 52", got)
	}
}

func TestStopsAtDurationCeiling(t *testing.T) {
	// Constant loud input never triggers the silence stop; the 5 s
	// ceiling at 16 kHz with 1024-sample frames is 78 frames.
	src := &scriptedSource{peaks: frames(1000, 2000)}
	clip, err := record(t, src, testConfig())
	if err != nil {
		t.Fatalf("Wait() error: %v", err)
	}
	if got := len(clip.PCM) / 2 / 1024; got != 78 {
		t.Errorf("captured %d frames, want 78", got)
	}
}

func TestManualStop(t *testing.T) {
	src := &gatedSource{
		scriptedSource: scriptedSource{peaks: frames(100, 2000)},
		gate:           make(chan struct{}),
	}
	r := NewRecorder(src, testConfig())
	if err := r.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	// Hand the worker exactly one frame before stopping, so there is
	// audio to keep.
	src.gate <- struct{}{}
	r.Stop()
	close(src.gate)
	clip, err := r.Wait()
	if err != nil {
		t.Fatalf("Wait() error: %v", err)
	}
	if clip == nil {
		t.Fatal("manual stop lost the captured audio")
	}
}

func TestSecondStartWhileActive(t *testing.T) {
	src := &gatedSource{
		scriptedSource: scriptedSource{peaks: frames(100, 2000)},
		gate:           make(chan struct{}),
	}
	r := NewRecorder(src, testConfig())
	if err := r.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if err := r.Start(); !errors.Is(err, ErrBusy) {
		t.Errorf("second Start() = %v, want ErrBusy", err)
	}
	r.Stop()
	close(src.gate)
	if _, err := r.Wait(); err != nil {
		t.Fatalf("Wait() error: %v", err)
	}

	// After the session ended the recorder is reusable.
	src2 := &scriptedSource{peaks: frames(40, 100)}
	r2 := NewRecorder(src2, testConfig())
	if err := r2.Start(); err != nil {
		t.Errorf("Start() after finished session: %v", err)
	}
	r2.Wait()
}

func TestZeroFramesIsNotAnError(t *testing.T) {
	// Drive the worker with the stop signal already raised, so it exits
	// before reading a single frame.
	src := &scriptedSource{}
	r := NewRecorder(src, testConfig())
	stop := make(chan struct{})
	close(stop)
	done := make(chan struct{})
	r.run(stop, done)

	if r.err != nil {
		t.Errorf("empty session error: %v", r.err)
	}
	if r.clip != nil {
		t.Errorf("empty session produced a clip of %d bytes", len(r.clip.PCM))
	}
	if !src.stopped {
		t.Error("frame source not stopped")
	}
}

func TestSourceReadErrorSurfaces(t *testing.T) {
	src := &scriptedSource{readErr: errors.New("device gone")}
	clip, err := record(t, src, testConfig())
	if err == nil {
		t.Error("Wait() did not surface the read error")
	}
	if clip != nil {
		t.Error("clip returned alongside a read error")
	}
}

func TestClipDuration(t *testing.T) {
	clip := &Clip{PCM: make([]byte, 32000), SampleRate: 16000, Channels: 1, BitDepth: 16}
	if got := clip.Duration(); got != time.Second {
		t.Errorf("Duration() = %v, want 1s", got)
	}
}

func TestClipFormat(t *testing.T) {
	src := &scriptedSource{peaks: frames(40, 100)}
	clip, err := record(t, src, testConfig())
	if err != nil {
		t.Fatalf("Wait() error: %v", err)
	}
	if clip.SampleRate != 16000 || clip.Channels != 1 || clip.BitDepth != 16 {
		t.Errorf("clip format = %d Hz %d ch %d bit", clip.SampleRate, clip.Channels, clip.BitDepth)
	}
}
