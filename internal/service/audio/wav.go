// Package audio prepares raw audio payloads for a recognition session.
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"

	"ai-transcription-summary-service/internal/service/stt"
)

const (
	riffHeaderSize  = 12
	chunkHeaderSize = 8
	fmtChunkMinSize = 16

	formatPCM        = 1
	formatExtensible = 0xFFFE
)

var (
	// ErrInvalidWAV is returned for a RIFF/WAVE container that cannot be read.
	ErrInvalidWAV = errors.New("invalid wav payload")
	// ErrUnsupportedEncoding is returned for a WAV file that is not PCM.
	ErrUnsupportedEncoding = errors.New("unsupported wav encoding")
)

// Header is the fmt chunk of a WAV file.
type Header struct {
	AudioFormat   uint16
	Channels      uint16
	SampleRateHz  uint32
	BitsPerSample uint16
}

// Matches reports whether the header describes the given PCM format.
func (h Header) Matches(f stt.AudioFormat) bool {
	return h.SampleRateHz == f.SampleRateHz &&
		h.BitsPerSample == uint16(f.BitsPerSample) &&
		h.Channels == uint16(f.Channels)
}

func (h Header) String() string {
	return fmt.Sprintf("format=%d channels=%d sampleRate=%d bitsPerSample=%d",
		h.AudioFormat, h.Channels, h.SampleRateHz, h.BitsPerSample)
}

// Payload is audio ready to be pushed into a session.
type Payload struct {
	// PCM holds the raw samples.
	PCM []byte
	// Header is set when the input was a WAV container.
	Header *Header
}

// IsWAV returns true if the payload was unwrapped from a WAV container.
func (p Payload) IsWAV() bool {
	return p.Header != nil
}

// Prepare unwraps a RIFF/WAVE container down to its data chunk.
// Anything else is treated as headerless PCM and returned unchanged.
func Prepare(data []byte) (Payload, error) {
	if !isWAV(data) {
		return Payload{PCM: data}, nil
	}

	var header *Header
	pos := riffHeaderSize
	for pos+chunkHeaderSize <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + chunkHeaderSize

		switch id {
		case "fmt ":
			if size < fmtChunkMinSize || body+size > len(data) {
				return Payload{}, fmt.Errorf("%w: short fmt chunk", ErrInvalidWAV)
			}
			h := Header{
				AudioFormat:   binary.LittleEndian.Uint16(data[body : body+2]),
				Channels:      binary.LittleEndian.Uint16(data[body+2 : body+4]),
				SampleRateHz:  binary.LittleEndian.Uint32(data[body+4 : body+8]),
				BitsPerSample: binary.LittleEndian.Uint16(data[body+14 : body+16]),
			}
			if h.AudioFormat != formatPCM && h.AudioFormat != formatExtensible {
				return Payload{}, fmt.Errorf("%w: format %d", ErrUnsupportedEncoding, h.AudioFormat)
			}
			header = &h
		case "data":
			if header == nil {
				return Payload{}, fmt.Errorf("%w: data chunk before fmt chunk", ErrInvalidWAV)
			}
			end := body + size
			// Streaming encoders leave the size unset or too large.
			if size == 0 || end > len(data) {
				end = len(data)
			}
			return Payload{PCM: data[body:end], Header: header}, nil
		}

		// Chunks are word aligned.
		pos = body + size + size%2
	}

	return Payload{}, fmt.Errorf("%w: no data chunk", ErrInvalidWAV)
}

func isWAV(data []byte) bool {
	return len(data) >= riffHeaderSize &&
		string(data[0:4]) == "RIFF" &&
		string(data[8:12]) == "WAVE"
}
