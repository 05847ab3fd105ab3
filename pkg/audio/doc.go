// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines Format, Frame types and sample conversion functions
// Package audio provides fundamental audio types and utilities for voice processing.
//
// This package defines core types used throughout the parley library:
//   - Format: Describes audio stream format (sample rate, channels, bit depth)
//   - Frame: A block of normalized float32 PCM samples at a declared rate
//
// It also provides utilities for converting between normalized float
// samples and 16-bit signed integers, the wire format of the transport.
//
// Example:
//
//	frame := audio.Frame{
//	    Samples:    samples,
//	    SampleRate: 16000,
//	}
//
//	// Convert a normalized sample to 16-bit PCM
//	s16 := audio.SampleToInt16(sample)
package audio
