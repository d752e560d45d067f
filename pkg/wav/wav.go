// Package wav provides minimal RIFF/WAVE encoding and header parsing for the
// PCM clips that flow between the recorder, the speech gateways, and the
// playback subsystem. It handles the canonical 16-bit little-endian PCM
// layout only; compressed WAVE formats are out of scope.
package wav

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// Info holds the format metadata extracted from a RIFF/WAVE header.
type Info struct {
	DataOffset int // byte offset of the first PCM sample
	DataLen    int // length of the data chunk in bytes
	SampleRate int // samples per second (e.g., 16000, 22050, 44100)
	Channels   int // 1 = mono, 2 = stereo
	BitDepth   int // bits per sample (typically 16)
}

// Duration returns the playing time of the data chunk described by info.
// Returns 0 when the format fields are incomplete.
func (i Info) Duration() time.Duration {
	bytesPerSec := i.SampleRate * i.Channels * i.BitDepth / 8
	if bytesPerSec <= 0 || i.DataLen <= 0 {
		return 0
	}
	return time.Duration(float64(i.DataLen) / float64(bytesPerSec) * float64(time.Second))
}

// Encode wraps raw little-endian PCM in a canonical 44-byte RIFF/WAVE
// container. channels, sampleRate and bitDepth describe the PCM layout.
func Encode(pcm []byte, channels, sampleRate, bitDepth int) []byte {
	byteRate := sampleRate * channels * bitDepth / 8
	blockAlign := channels * bitDepth / 8

	buf := make([]byte, 0, 44+len(pcm))
	buf = append(buf, "RIFF"...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(36+len(pcm)))
	buf = append(buf, "WAVE"...)
	buf = append(buf, "fmt "...)
	buf = binary.LittleEndian.AppendUint32(buf, 16) // PCM fmt chunk size
	buf = binary.LittleEndian.AppendUint16(buf, 1)  // audio format: PCM
	buf = binary.LittleEndian.AppendUint16(buf, uint16(channels))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(sampleRate))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(byteRate))
	buf = binary.LittleEndian.AppendUint16(buf, uint16(blockAlign))
	buf = binary.LittleEndian.AppendUint16(buf, uint16(bitDepth))
	buf = append(buf, "data"...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(pcm)))
	buf = append(buf, pcm...)
	return buf
}

// Parse scans the RIFF/WAVE container in data and returns the data offset and
// audio format from the "fmt " sub-chunk. Walking the chunk list is more
// robust than hardcoding a fixed 44-byte offset because the fmt chunk size
// may vary between encoders.
//
// Returns an error if data is not a valid RIFF/WAVE container or if the data
// chunk cannot be located.
func Parse(data []byte) (Info, error) {
	if len(data) < 12 {
		return Info{}, errors.New("wav: input too short to be a valid RIFF file")
	}
	if string(data[0:4]) != "RIFF" {
		return Info{}, errors.New("wav: missing RIFF header")
	}
	if string(data[8:12]) != "WAVE" {
		return Info{}, errors.New("wav: missing WAVE identifier")
	}

	var info Info
	foundFmt := false

	// Walk RIFF chunks starting immediately after the 12-byte RIFF/WAVE header.
	offset := 12
	for offset+8 <= len(data) {
		chunkID := string(data[offset : offset+4])
		chunkSize := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))

		switch chunkID {
		case "fmt ":
			if chunkSize >= 16 && offset+8+16 <= len(data) {
				fmtData := data[offset+8:]
				info.Channels = int(binary.LittleEndian.Uint16(fmtData[2:4]))
				info.SampleRate = int(binary.LittleEndian.Uint32(fmtData[4:8]))
				info.BitDepth = int(binary.LittleEndian.Uint16(fmtData[14:16]))
				foundFmt = true
			}
		case "data":
			info.DataOffset = offset + 8
			info.DataLen = chunkSize
			if remaining := len(data) - info.DataOffset; chunkSize > remaining {
				// Truncated or streaming writer that never patched the size.
				info.DataLen = remaining
			}
			if !foundFmt {
				return Info{}, errors.New("wav: data chunk precedes fmt chunk")
			}
			return info, nil
		}

		// Advance past this chunk (chunks are word-aligned: pad by 1 if odd size).
		offset += 8 + chunkSize
		if chunkSize%2 != 0 {
			offset++
		}
	}
	return Info{}, errors.New("wav: missing data chunk")
}

// PCM returns the raw PCM samples of a WAVE container, validating the header
// on the way.
func PCM(data []byte) ([]byte, Info, error) {
	info, err := Parse(data)
	if err != nil {
		return nil, Info{}, err
	}
	end := info.DataOffset + info.DataLen
	if end > len(data) {
		return nil, Info{}, fmt.Errorf("wav: data chunk claims %d bytes but only %d remain", info.DataLen, len(data)-info.DataOffset)
	}
	return data[info.DataOffset:end], info, nil
}
