// Package record captures push-to-talk microphone audio. A worker
// goroutine pulls fixed-size sample frames from a [FrameSource] and
// stops on its own when it has heard a long enough run of silence or
// hits the wall-clock ceiling; the caller can also stop it early. At
// most one recording session is active per [Recorder] at a time.
package record

import (
	"context"
	"encoding/binary"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/MrWong99/ekivoice/internal/config"
	"github.com/MrWong99/ekivoice/internal/observe"
)

// ErrBusy is returned by [Recorder.Start] while a session is active.
var ErrBusy = errors.New("record: recording session already active")

// Clip is a finished recording as raw PCM plus its format.
type Clip struct {
	PCM        []byte
	SampleRate int
	Channels   int
	BitDepth   int
}

// Duration returns the play length of the clip.
func (c *Clip) Duration() time.Duration {
	bytesPerSec := c.SampleRate * c.Channels * c.BitDepth / 8
	if bytesPerSec == 0 {
		return 0
	}
	return time.Duration(len(c.PCM)) * time.Second / time.Duration(bytesPerSec)
}

// FrameSource delivers audio one frame at a time. Start and Stop
// bracket a capture session; ReadFrame blocks until it has filled the
// given slice with samples.
type FrameSource interface {
	Start() error
	ReadFrame(frame []int16) error
	Stop() error
}

// Recorder runs the recording state machine over a [FrameSource].
type Recorder struct {
	source  FrameSource
	cfg     config.RecordingConfig
	metrics *observe.Metrics

	mu     sync.Mutex
	active bool
	stop   chan struct{}
	done   chan struct{}
	clip   *Clip
	err    error
}

// Option configures a [Recorder].
type Option func(*Recorder)

// WithMetrics overrides the metrics sink.
func WithMetrics(m *observe.Metrics) Option {
	return func(r *Recorder) {
		r.metrics = m
	}
}

// NewRecorder returns a recorder reading from source with the given
// capture parameters.
func NewRecorder(source FrameSource, cfg config.RecordingConfig, opts ...Option) *Recorder {
	r := &Recorder{source: source, cfg: cfg}
	for _, opt := range opts {
		opt(r)
	}
	if r.metrics == nil {
		r.metrics = observe.DefaultMetrics()
	}
	return r
}

// Start begins a recording session. It returns [ErrBusy] if one is
// already running, or the source's error if capture cannot begin.
func (r *Recorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active {
		return ErrBusy
	}
	if err := r.source.Start(); err != nil {
		return err
	}
	r.active = true
	r.clip = nil
	r.err = nil
	r.stop = make(chan struct{})
	r.done = make(chan struct{})
	go r.run(r.stop, r.done)
	return nil
}

// Stop requests the active session to finish. It is safe to call at
// any time, including after the session stopped on its own.
func (r *Recorder) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active {
		return
	}
	select {
	case <-r.stop:
	default:
		close(r.stop)
	}
}

// Done returns a channel closed when the current session's worker has
// finished. It returns nil when no session was started.
func (r *Recorder) Done() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done
}

// Wait blocks until the session ends and returns the captured clip.
// A session in which nothing was said yields a nil clip and no error.
func (r *Recorder) Wait() (*Clip, error) {
	r.mu.Lock()
	done := r.done
	r.mu.Unlock()
	if done != nil {
		<-done
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.clip, r.err
}

func (r *Recorder) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ctx := context.Background()
	r.metrics.ActiveRecordings.Add(ctx, 1)
	defer r.metrics.ActiveRecordings.Add(ctx, -1)

	frame := make([]int16, r.cfg.FrameSize*r.cfg.Channels)
	maxFrames := maxFrameCount(r.cfg)

	var pcm []byte
	silentRun := 0
	frames := 0

loop:
	for {
		select {
		case <-stop:
			break loop
		default:
		}

		if err := r.source.ReadFrame(frame); err != nil {
			r.finish(nil, err)
			return
		}
		pcm = appendSamples(pcm, frame)
		frames++

		if peakAmplitude(frame) < r.cfg.AmplitudeThreshold {
			silentRun++
			if silentRun > r.cfg.SilenceFrames {
				slog.Debug("recording stopped on silence", "frames", frames)
				break loop
			}
		} else {
			silentRun = 0
		}

		if frames >= maxFrames {
			slog.Debug("recording stopped at duration ceiling", "frames", frames)
			break loop
		}
	}

	if frames == 0 {
		// Nothing was captured. Not an error.
		r.finish(nil, nil)
		return
	}
	r.finish(&Clip{
		PCM:        pcm,
		SampleRate: r.cfg.SampleRate,
		Channels:   r.cfg.Channels,
		BitDepth:   16,
	}, nil)
}

func (r *Recorder) finish(clip *Clip, err error) {
	if serr := r.source.Stop(); serr != nil && err == nil {
		slog.Warn("stopping frame source failed", "error", serr)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clip = clip
	r.err = err
	r.active = false
}

// maxFrameCount converts the wall-clock ceiling into a frame count.
func maxFrameCount(cfg config.RecordingConfig) int {
	samples := int(cfg.MaxDuration.Std().Seconds() * float64(cfg.SampleRate))
	n := samples / cfg.FrameSize
	if n < 1 {
		return 1
	}
	return n
}

// peakAmplitude returns the largest absolute sample value in the frame.
func peakAmplitude(frame []int16) int {
	peak := 0
	for _, s := range frame {
		v := int(s)
		if v < 0 {
			v = -v
		}
		if v > peak {
			peak = v
		}
	}
	return peak
}

func appendSamples(pcm []byte, frame []int16) []byte {
	for _, s := range frame {
		pcm = binary.LittleEndian.AppendUint16(pcm, uint16(s))
	}
	return pcm
}
