// ABOUTME: Inbound chunk decoding for playback
// ABOUTME: Handles raw PCM and MP3-tagged agent audio
package player

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	mp3 "github.com/hajimehoshi/go-mp3"

	"github.com/parley-ai/parley-go/pkg/audio"
	"github.com/parley-ai/parley-go/pkg/audio/codec"
)

// DecodeChunk converts an inbound encoded chunk to a playable frame.
// Most agent voices stream raw PCM; some return MP3, routed through
// go-mp3 by MIME tag. fallbackRate applies when the tag omits one.
func DecodeChunk(chunk codec.Chunk, fallbackRate int) (audio.Frame, error) {
	if strings.HasPrefix(chunk.MIME, "audio/mpeg") || strings.HasPrefix(chunk.MIME, "audio/mp3") {
		return decodeMP3(chunk)
	}

	frame, err := codec.Decode(chunk)
	if err != nil {
		return audio.Frame{}, err
	}
	if frame.SampleRate == 0 {
		frame.SampleRate = fallbackRate
	}
	return frame, nil
}

// decodeMP3 decompresses an MP3 chunk to normalized samples
func decodeMP3(chunk codec.Chunk) (audio.Frame, error) {
	raw, err := base64.StdEncoding.DecodeString(chunk.Data)
	if err != nil {
		return audio.Frame{}, &codec.Error{Reason: fmt.Sprintf("invalid base64 payload: %v", err)}
	}

	dec, err := mp3.NewDecoder(bytes.NewReader(raw))
	if err != nil {
		return audio.Frame{}, &codec.Error{Reason: fmt.Sprintf("mp3 header: %v", err)}
	}

	pcm, err := io.ReadAll(dec)
	if err != nil {
		return audio.Frame{}, &codec.Error{Reason: fmt.Sprintf("mp3 decode: %v", err)}
	}

	// go-mp3 emits 16-bit stereo; fold to mono at the decoder's rate
	frame, err := codec.DecodePCM16(pcm, dec.SampleRate())
	if err != nil {
		return audio.Frame{}, err
	}
	return foldStereo(frame), nil
}

// foldStereo averages interleaved stereo down to mono
func foldStereo(frame audio.Frame) audio.Frame {
	mono := make([]float32, len(frame.Samples)/2)
	for i := range mono {
		mono[i] = (frame.Samples[i*2] + frame.Samples[i*2+1]) / 2
	}
	return audio.Frame{Samples: mono, SampleRate: frame.SampleRate}
}
