// ABOUTME: PCM audio codec for the conversation transport
// ABOUTME: Converts normalized frames to base64 16-bit little-endian PCM chunks
package codec

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/parley-ai/parley-go/pkg/audio"
)

// Chunk is a transport-safe encoded audio payload
type Chunk struct {
	Data string // base64-encoded 16-bit little-endian PCM
	MIME string // e.g. "audio/pcm;rate=16000"
}

// Error reports a malformed chunk
type Error struct {
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("codec: %s", e.Reason)
}

// PCMMIME builds the MIME tag for raw PCM at the given rate
func PCMMIME(rate int) string {
	return fmt.Sprintf("audio/pcm;rate=%d", rate)
}

// RateFromMIME extracts the sample rate from a MIME tag like
// "audio/pcm;rate=24000". Returns fallback when no rate parameter exists.
func RateFromMIME(mime string, fallback int) int {
	for _, param := range strings.Split(mime, ";") {
		param = strings.TrimSpace(param)
		if rate, ok := strings.CutPrefix(param, "rate="); ok {
			if n, err := strconv.Atoi(rate); err == nil && n > 0 {
				return n
			}
		}
	}
	return fallback
}

// Encode converts a frame to a transport chunk. Samples are clamped to
// [-1, 1], scaled to int16, serialized little-endian and base64 encoded.
func Encode(frame audio.Frame) Chunk {
	raw := make([]byte, len(frame.Samples)*2)
	for i, s := range frame.Samples {
		binary.LittleEndian.PutUint16(raw[i*2:], uint16(audio.SampleToInt16(s)))
	}

	return Chunk{
		Data: base64.StdEncoding.EncodeToString(raw),
		MIME: PCMMIME(frame.SampleRate),
	}
}

// Decode converts a transport chunk back to a normalized frame.
// Each sample is the stored int16 divided by 32768.
func Decode(chunk Chunk) (audio.Frame, error) {
	raw, err := base64.StdEncoding.DecodeString(chunk.Data)
	if err != nil {
		return audio.Frame{}, &Error{Reason: fmt.Sprintf("invalid base64 payload: %v", err)}
	}
	return DecodePCM16(raw, RateFromMIME(chunk.MIME, 0))
}

// DecodePCM16 converts raw 16-bit little-endian PCM bytes to a frame
func DecodePCM16(raw []byte, rate int) (audio.Frame, error) {
	if len(raw)%2 != 0 {
		return audio.Frame{}, &Error{Reason: fmt.Sprintf("odd byte count %d", len(raw))}
	}

	samples := make([]float32, len(raw)/2)
	for i := range samples {
		samples[i] = audio.SampleFromInt16(int16(binary.LittleEndian.Uint16(raw[i*2:])))
	}

	return audio.Frame{Samples: samples, SampleRate: rate}, nil
}
