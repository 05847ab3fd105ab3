// ABOUTME: Microphone capture pipeline
// ABOUTME: Frames samples into fixed blocks, gates, downsamples, encodes and forwards
package capture

import (
	"log"
	"sync"

	"github.com/parley-ai/parley-go/internal/meter"
	"github.com/parley-ai/parley-go/pkg/audio"
	"github.com/parley-ai/parley-go/pkg/audio/codec"
)

// SendFunc hands an encoded chunk to the remote channel
type SendFunc func(codec.Chunk) error

// Stats tracks capture pipeline counters
type Stats struct {
	Blocks  int64 // fixed-size blocks framed from the device
	Sent    int64 // blocks encoded and handed to the channel
	Dropped int64 // blocks gated out or lost to transmit failures
}

// Config holds capture pipeline settings
type Config struct {
	DeviceRate int // sample rate delivered by the microphone
	TargetRate int // sample rate required by the transport
	BlockSize  int // samples per block at the device rate
	Send       SendFunc
	Tap        meter.Tap
}

// Pipeline frames live microphone samples into fixed-size blocks and
// forwards them to the remote channel. Live audio is inherently lossy
// under contention: gated or failed blocks are dropped, never buffered.
type Pipeline struct {
	cfg Config

	mu      sync.Mutex
	pending []float32
	armed   bool
	muted   bool
	stats   Stats
}

// NewPipeline creates a capture pipeline
func NewPipeline(cfg Config) *Pipeline {
	if cfg.BlockSize <= 0 {
		cfg.BlockSize = 2048
	}
	return &Pipeline{
		cfg:     cfg,
		pending: make([]float32, 0, cfg.BlockSize*2),
	}
}

// Arm opens or closes the encode path. The pipeline only transmits
// while armed (session active and channel open).
func (p *Pipeline) Arm(armed bool) {
	p.mu.Lock()
	p.armed = armed
	p.mu.Unlock()
}

// SetMuted gates transmission without touching the device
func (p *Pipeline) SetMuted(muted bool) {
	p.mu.Lock()
	p.muted = muted
	p.mu.Unlock()
}

// Muted reports the mute flag
func (p *Pipeline) Muted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.muted
}

// Stats returns a snapshot of the pipeline counters
func (p *Pipeline) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// Process accepts raw device samples, accumulating them into fixed-size
// blocks. Called from the device callback; must stay allocation-light.
func (p *Pipeline) Process(samples []float32) {
	p.mu.Lock()
	p.pending = append(p.pending, samples...)

	var blocks [][]float32
	for len(p.pending) >= p.cfg.BlockSize {
		block := make([]float32, p.cfg.BlockSize)
		copy(block, p.pending[:p.cfg.BlockSize])
		p.pending = p.pending[p.cfg.BlockSize:]
		blocks = append(blocks, block)
	}
	p.mu.Unlock()

	for _, block := range blocks {
		p.processBlock(block)
	}
}

// processBlock gates, downsamples, encodes and forwards one block
func (p *Pipeline) processBlock(block []float32) {
	// Level tap is read-only and never gates the encode path
	if p.cfg.Tap != nil {
		p.cfg.Tap.Observe(meter.SourceLocal, block)
	}

	p.mu.Lock()
	p.stats.Blocks++
	armed, muted := p.armed, p.muted
	if !armed || muted {
		p.stats.Dropped++
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	frame := audio.Frame{Samples: block, SampleRate: p.cfg.DeviceRate}
	if p.cfg.TargetRate > 0 && p.cfg.TargetRate < p.cfg.DeviceRate {
		frame = codec.Downsample(frame, p.cfg.TargetRate)
	}

	chunk := codec.Encode(frame)
	if err := p.cfg.Send(chunk); err != nil {
		// A dropped frame must not terminate the session; channel-level
		// close/error events are the only authoritative signals.
		log.Printf("capture: dropping frame: %v", err)
		p.mu.Lock()
		p.stats.Dropped++
		p.mu.Unlock()
		return
	}

	p.mu.Lock()
	p.stats.Sent++
	p.mu.Unlock()
}
