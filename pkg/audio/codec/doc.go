// ABOUTME: Codec package for the conversation transport wire format
// ABOUTME: Provides PCM16/base64 encode/decode and capture-path downsampling
// Package codec converts between normalized audio frames and the
// transport's encoded chunk representation.
//
// The wire format is 16-bit signed little-endian PCM carried as base64
// text with a MIME-like tag declaring the sample rate. A decoded chunk
// reproduces the source frame within the quantization error of the
// int16 round trip (1/32768 per sample).
//
// Example:
//
//	chunk := codec.Encode(frame)
//	back, err := codec.Decode(chunk)
package codec
