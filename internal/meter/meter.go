// ABOUTME: Loudness metering for UI visualization
// ABOUTME: Read-only RMS tap on the capture and playback paths
package meter

import (
	"context"
	"math"
	"sync"
	"time"
)

// Source identifies which audio path fed a tap
type Source int

const (
	SourceLocal Source = iota // microphone capture
	SourceRemote              // decoded agent audio

	numSources
)

// Tap observes raw samples from an audio path. Implementations must be
// cheap and non-blocking; the capture and playback paths call Observe
// inline and never wait on it.
type Tap interface {
	Observe(src Source, samples []float32)
}

// Meter tracks a smoothed, normalized loudness level per source
type Meter struct {
	mu     sync.Mutex
	levels [numSources]float64

	smoothing float64
	interval  time.Duration

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a meter with default smoothing
func New() *Meter {
	ctx, cancel := context.WithCancel(context.Background())

	return &Meter{
		smoothing: 0.35,
		interval:  33 * time.Millisecond,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Observe folds a block of samples into the source's smoothed level
func (m *Meter) Observe(src Source, samples []float32) {
	if src < 0 || src >= numSources || len(samples) == 0 {
		return
	}

	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	rms := math.Sqrt(sum / float64(len(samples)))
	if rms > 1.0 {
		rms = 1.0
	}

	m.mu.Lock()
	m.levels[src] = m.levels[src]*(1.0-m.smoothing) + rms*m.smoothing
	m.mu.Unlock()
}

// Levels returns the current local and remote loudness in [0, 1]
func (m *Meter) Levels() (local, remote float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.levels[SourceLocal], m.levels[SourceRemote]
}

// Run publishes levels on a fixed cadence until Stop is called. The loop
// is independent of session state and never blocks on session operations.
func (m *Meter) Run(publish func(local, remote float64)) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			local, remote := m.Levels()
			publish(local, remote)
		}
	}
}

// Stop cancels the publish loop. Safe to call multiple times.
func (m *Meter) Stop() {
	m.cancel()
}
