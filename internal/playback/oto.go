package playback

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/MrWong99/ekivoice/pkg/wav"
)

// pollInterval is how often playback progress is checked.
const pollInterval = 50 * time.Millisecond

// otoBackend plays PCM through an oto mixer context. oto allows only
// one context per process, so the context is created once for the
// format of the first clip; clips in a different format are rejected
// and handled by the fallback player.
type otoBackend struct {
	mu         sync.Mutex
	ctx        *oto.Context
	sampleRate int
	channels   int
}

func newOtoBackend() *otoBackend {
	return &otoBackend{}
}

func (b *otoBackend) context(info wav.Info) (*oto.Context, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ctx != nil {
		if info.SampleRate != b.sampleRate || info.Channels != b.channels {
			return nil, fmt.Errorf("playback: mixer is bound to %d Hz %d ch, clip is %d Hz %d ch",
				b.sampleRate, b.channels, info.SampleRate, info.Channels)
		}
		return b.ctx, nil
	}
	if info.BitDepth != 16 {
		return nil, fmt.Errorf("playback: mixer supports 16-bit PCM, clip is %d-bit", info.BitDepth)
	}
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   info.SampleRate,
		ChannelCount: info.Channels,
		Format:       oto.FormatSignedInt16LE,
	})
	if err != nil {
		return nil, fmt.Errorf("playback: open mixer: %w", err)
	}
	<-ready
	b.ctx = ctx
	b.sampleRate = info.SampleRate
	b.channels = info.Channels
	return ctx, nil
}

// Play feeds the clip to the mixer and waits until the player drained
// or the wait ceiling passed.
func (b *otoBackend) Play(ctx context.Context, pcm []byte, info wav.Info, wait time.Duration) error {
	octx, err := b.context(info)
	if err != nil {
		return err
	}

	player := octx.NewPlayer(bytes.NewReader(pcm))
	defer player.Close()
	player.Play()

	deadline := time.NewTimer(wait)
	defer deadline.Stop()
	tick := time.NewTicker(pollInterval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return nil
		case <-tick.C:
			if !player.IsPlaying() {
				return nil
			}
		}
	}
}
