// ABOUTME: Sample-rate conversion for the capture path
// ABOUTME: Nearest-neighbor decimation from the device rate to the transport rate
package codec

import "github.com/parley-ai/parley-go/pkg/audio"

// Downsample converts a frame to a lower sample rate by nearest-neighbor
// selection: output[i] = input[floor(i*ratio)]. No band-limiting filter is
// applied; the transport tolerates the aliasing and the conversion stays
// allocation-light on the capture hot path.
//
// Frames already at or below the target rate are returned unchanged.
func Downsample(frame audio.Frame, toRate int) audio.Frame {
	if toRate <= 0 || frame.SampleRate <= toRate {
		return frame
	}

	ratio := float64(frame.SampleRate) / float64(toRate)
	outLen := int(float64(len(frame.Samples)) / ratio)
	out := make([]float32, outLen)

	for i := range out {
		src := int(float64(i) * ratio)
		if src >= len(frame.Samples) {
			src = len(frame.Samples) - 1
		}
		out[i] = frame.Samples[src]
	}

	return audio.Frame{Samples: out, SampleRate: toRate}
}
