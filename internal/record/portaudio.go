package record

import (
	"fmt"

	"github.com/gordonklaus/portaudio"
)

// MicSource captures frames from the default system microphone via
// PortAudio. It implements [FrameSource].
type MicSource struct {
	stream *portaudio.Stream
	buffer []int16
}

var _ FrameSource = (*MicSource)(nil)

// NewMicSource opens the default input device for the given capture
// format. Close must be called to release the device.
func NewMicSource(sampleRate, channels, frameSize int) (*MicSource, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("record: initialize portaudio: %w", err)
	}
	buffer := make([]int16, frameSize*channels)
	stream, err := portaudio.OpenDefaultStream(channels, 0, float64(sampleRate), frameSize, buffer)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("record: open default input stream: %w", err)
	}
	return &MicSource{stream: stream, buffer: buffer}, nil
}

// Start begins capturing from the device.
func (m *MicSource) Start() error {
	if err := m.stream.Start(); err != nil {
		return fmt.Errorf("record: start input stream: %w", err)
	}
	return nil
}

// ReadFrame blocks until the device has filled one frame and copies the
// samples into frame.
func (m *MicSource) ReadFrame(frame []int16) error {
	if err := m.stream.Read(); err != nil {
		return fmt.Errorf("record: read input stream: %w", err)
	}
	copy(frame, m.buffer)
	return nil
}

// Stop halts capture without releasing the device, so another session
// can start later.
func (m *MicSource) Stop() error {
	if err := m.stream.Stop(); err != nil {
		return fmt.Errorf("record: stop input stream: %w", err)
	}
	return nil
}

// Close releases the device and shuts PortAudio down.
func (m *MicSource) Close() error {
	err := m.stream.Close()
	if terr := portaudio.Terminate(); err == nil {
		err = terr
	}
	if err != nil {
		return fmt.Errorf("record: close input stream: %w", err)
	}
	return nil
}
