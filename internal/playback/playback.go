// Package playback plays synthesized speech. Audio is staged in a
// uniquely named scratch WAV file which is removed on every exit path.
// The primary backend feeds decoded PCM to the system mixer; when that
// fails the clip is handed to an OS audio player as a fallback.
package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/ekivoice/internal/config"
	"github.com/MrWong99/ekivoice/internal/observe"
	"github.com/MrWong99/ekivoice/pkg/wav"
)

// fallbackWait bounds the OS player when the clip length is unknown.
const fallbackWait = 30 * time.Second

// backend plays raw PCM through the system mixer. wait bounds how long
// playback may take before it is abandoned.
type backend interface {
	Play(ctx context.Context, pcm []byte, info wav.Info, wait time.Duration) error
}

// fallbackFunc plays a WAV file through an external OS player.
type fallbackFunc func(ctx context.Context, path string, wait time.Duration) error

// Player stages and plays speech clips. Safe for sequential use from
// the conversation worker; concurrent Play calls would contend for the
// output device.
type Player struct {
	margin     time.Duration
	scratchDir string
	primary    backend
	fallback   fallbackFunc
}

// Option configures a [Player].
type Option func(*Player)

// WithBackend overrides the primary mixer backend.
func WithBackend(b backend) Option {
	return func(p *Player) {
		p.primary = b
	}
}

// WithFallback overrides the OS player fallback.
func WithFallback(f fallbackFunc) Option {
	return func(p *Player) {
		p.fallback = f
	}
}

// NewPlayer returns a player writing scratch files under
// cfg.ScratchDir (the OS temp dir when empty) and waiting clip
// duration plus cfg.SafetyMargin for playback to finish.
func NewPlayer(cfg config.PlaybackConfig, opts ...Option) *Player {
	p := &Player{
		margin:     cfg.SafetyMargin.Std(),
		scratchDir: cfg.ScratchDir,
		primary:    newOtoBackend(),
		fallback:   playWithOSPlayer,
	}
	if p.scratchDir == "" {
		p.scratchDir = os.TempDir()
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Play blocks until the clip finished playing or the wait ceiling
// passed. The scratch file is removed before returning, on success and
// on every failure path. Both backends failing is reported as an
// error; the caller decides whether that is fatal.
func (p *Player) Play(ctx context.Context, audio []byte) error {
	if len(audio) == 0 {
		return errors.New("playback: no audio data")
	}

	path := filepath.Join(p.scratchDir, "ekivoice_"+uuid.NewString()[:8]+".wav")
	if err := os.WriteFile(path, audio, 0o600); err != nil {
		return fmt.Errorf("playback: write scratch file: %w", err)
	}
	defer func() {
		if err := os.Remove(path); err != nil {
			slog.Warn("removing scratch file failed", "path", path, "error", err)
		}
	}()

	wait := fallbackWait + p.margin
	var primaryErr error
	pcm, info, err := wav.PCM(audio)
	if err != nil {
		primaryErr = fmt.Errorf("playback: parse clip: %w", err)
	} else {
		wait = info.Duration() + p.margin
		primaryErr = p.primary.Play(ctx, pcm, info, wait)
		if primaryErr == nil {
			return nil
		}
	}
	observe.Logger(ctx).Warn("mixer playback failed, trying OS player", "error", primaryErr)

	if err := p.fallback(ctx, path, wait); err != nil {
		return fmt.Errorf("playback: all backends failed: %w", errors.Join(primaryErr, err))
	}
	return nil
}
