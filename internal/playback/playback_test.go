package playback

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/MrWong99/ekivoice/internal/config"
	"github.com/MrWong99/ekivoice/pkg/wav"
)

type stubBackend struct {
	err    error
	called bool
	pcm    []byte
	wait   time.Duration
}

func (s *stubBackend) Play(_ context.Context, pcm []byte, _ wav.Info, wait time.Duration) error {
	s.called = true
	s.pcm = pcm
	s.wait = wait
	return s.err
}

func testAudio(t *testing.T) []byte {
	t.Helper()
	// One second of silence at 16 kHz mono.
	return wav.Encode(make([]byte, 32000), 1, 16000, 16)
}

func newTestPlayer(t *testing.T, b backend, f fallbackFunc) (*Player, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.PlaybackConfig{
		SafetyMargin: config.Duration(2 * time.Second),
		ScratchDir:   dir,
	}
	return NewPlayer(cfg, WithBackend(b), WithFallback(f)), dir
}

func scratchFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read scratch dir: %v", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestPlayPrimary(t *testing.T) {
	primary := &stubBackend{}
	fallbackCalled := false
	p, dir := newTestPlayer(t, primary, func(context.Context, string, time.Duration) error {
		fallbackCalled = true
		return nil
	})

	if err := p.Play(context.Background(), testAudio(t)); err != nil {
		t.Fatalf("Play() error: %v", err)
	}
	if !primary.called {
		t.Error("primary backend not used")
	}
	if fallbackCalled {
		t.Error("fallback used although primary succeeded")
	}
	if len(primary.pcm) != 32000 {
		t.Errorf("primary received %d PCM bytes, want 32000", len(primary.pcm))
	}
	if primary.wait != 3*time.Second {
		t.Errorf("wait = %v, want clip duration plus margin (3s)", primary.wait)
	}
	if left := scratchFiles(t, dir); len(left) != 0 {
		t.Errorf("scratch files left behind: %v", left)
	}
}

func TestPlayFallsBackOnPrimaryFailure(t *testing.T) {
	primary := &stubBackend{err: errors.New("no device")}
	var fallbackPath string
	p, dir := newTestPlayer(t, primary, func(_ context.Context, path string, _ time.Duration) error {
		fallbackPath = path
		if _, err := os.Stat(path); err != nil {
			t.Errorf("scratch file missing during fallback: %v", err)
		}
		return nil
	})

	if err := p.Play(context.Background(), testAudio(t)); err != nil {
		t.Fatalf("Play() error: %v", err)
	}
	if fallbackPath == "" {
		t.Fatal("fallback not invoked")
	}
	if filepath.Ext(fallbackPath) != ".wav" {
		t.Errorf("fallback path %q lacks .wav suffix", fallbackPath)
	}
	if left := scratchFiles(t, dir); len(left) != 0 {
		t.Errorf("scratch files left behind: %v", left)
	}
}

func TestPlayBothBackendsFail(t *testing.T) {
	primary := &stubBackend{err: errors.New("no device")}
	p, dir := newTestPlayer(t, primary, func(context.Context, string, time.Duration) error {
		return errors.New("no player binary")
	})

	if err := p.Play(context.Background(), testAudio(t)); err == nil {
		t.Error("Play() succeeded although both backends failed")
	}
	if left := scratchFiles(t, dir); len(left) != 0 {
		t.Errorf("scratch files left behind after failure: %v", left)
	}
}

func TestPlayUnparseableAudioGoesToFallback(t *testing.T) {
	primary := &stubBackend{}
	fallbackCalled := false
	p, dir := newTestPlayer(t, primary, func(context.Context, string, time.Duration) error {
		fallbackCalled = true
		return nil
	})

	if err := p.Play(context.Background(), []byte("definitely not a wav")); err != nil {
		t.Fatalf("Play() error: %v", err)
	}
	if primary.called {
		t.Error("primary backend used for unparseable audio")
	}
	if !fallbackCalled {
		t.Error("fallback not used for unparseable audio")
	}
	if left := scratchFiles(t, dir); len(left) != 0 {
		t.Errorf("scratch files left behind: %v", left)
	}
}

func TestPlayEmptyAudio(t *testing.T) {
	primary := &stubBackend{}
	p, _ := newTestPlayer(t, primary, func(context.Context, string, time.Duration) error { return nil })
	if err := p.Play(context.Background(), nil); err == nil {
		t.Error("Play() accepted empty audio")
	}
	if primary.called {
		t.Error("backend invoked for empty audio")
	}
}

func TestPlayUniqueScratchNames(t *testing.T) {
	var paths []string
	primary := &stubBackend{err: errors.New("force fallback")}
	p, _ := newTestPlayer(t, primary, func(_ context.Context, path string, _ time.Duration) error {
		paths = append(paths, path)
		return nil
	})

	p.Play(context.Background(), testAudio(t))
	p.Play(context.Background(), testAudio(t))
	if len(paths) == 2 && paths[0] == paths[1] {
		t.Errorf("scratch file name reused: %q", paths[0])
	}
}
