// ABOUTME: Audio type definitions
// ABOUTME: Defines sample frames and stream formats shared by capture and playback
package audio

import "time"

// Format describes an audio stream format
type Format struct {
	SampleRate int
	Channels   int
	BitDepth   int
}

// Frame is a block of normalized PCM samples in [-1.0, 1.0]
type Frame struct {
	Samples    []float32
	SampleRate int
}

// Duration returns the playback duration of the frame (mono)
func (f Frame) Duration() time.Duration {
	if f.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(f.Samples)) * time.Second / time.Duration(f.SampleRate)
}

// Clamp limits a sample to the [-1.0, 1.0] range
func Clamp(s float32) float32 {
	if s > 1.0 {
		return 1.0
	}
	if s < -1.0 {
		return -1.0
	}
	return s
}

// SampleToInt16 converts a normalized sample to int16.
// Negative samples scale by 32768, non-negative by 32767, matching
// the asymmetric range of standard 16-bit PCM.
func SampleToInt16(s float32) int16 {
	s = Clamp(s)
	if s < 0 {
		return int16(s * 32768)
	}
	return int16(s * 32767)
}

// SampleFromInt16 converts an int16 sample to a normalized float32
func SampleFromInt16(s int16) float32 {
	return float32(s) / 32768.0
}
