// ABOUTME: Audio output using the oto library
// ABOUTME: Feeds a persistent pipe-backed player for continuous streaming
package player

import (
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/ebitengine/oto/v3"

	"github.com/parley-ai/parley-go/pkg/audio"
)

// Output manages the playback device
type Output struct {
	mu         sync.Mutex
	otoCtx     *oto.Context
	player     *oto.Player
	pipeReader *io.PipeReader
	pipeWriter *io.PipeWriter
	sampleRate int
	channels   int
	ready      bool
}

// NewOutput creates an audio output
func NewOutput() *Output {
	return &Output{}
}

// Open initializes the output device. oto allows a single context per
// process, so a matching format reuses the existing one.
func (o *Output) Open(sampleRate, channels int) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.otoCtx != nil {
		if o.sampleRate != sampleRate || o.channels != channels {
			log.Printf("player: format change %dHz/%dch -> %dHz/%dch not supported by oto, keeping existing context",
				o.sampleRate, o.channels, sampleRate, channels)
		}
		if o.ready {
			// Already streaming; replacing the pipe here would leak the
			// live player
			return nil
		}
		_ = o.otoCtx.Resume()
		o.openPipeLocked()
		return nil
	}

	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channels,
		Format:       oto.FormatSignedInt16LE,
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return fmt.Errorf("failed to create oto context: %w", err)
	}
	<-readyChan

	o.otoCtx = ctx
	o.sampleRate = sampleRate
	o.channels = channels
	o.openPipeLocked()

	log.Printf("player: output initialized at %dHz, %d channels", sampleRate, channels)
	return nil
}

// openPipeLocked wires a fresh pipe into a persistent player
func (o *Output) openPipeLocked() {
	o.pipeReader, o.pipeWriter = io.Pipe()
	o.player = o.otoCtx.NewPlayer(o.pipeReader)
	o.player.Play()
	o.ready = true
}

// Write streams a frame to the device. Blocks until the pipe accepts
// the bytes, which paces back-to-back playback naturally.
func (o *Output) Write(frame audio.Frame) error {
	o.mu.Lock()
	if !o.ready {
		o.mu.Unlock()
		return fmt.Errorf("output not initialized")
	}
	w := o.pipeWriter
	o.mu.Unlock()

	out := make([]byte, len(frame.Samples)*2)
	for i, s := range frame.Samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(audio.SampleToInt16(s)))
	}

	if _, err := w.Write(out); err != nil {
		return fmt.Errorf("pipe write failed: %w", err)
	}
	return nil
}

// Close releases the playback path. The oto context is suspended, not
// destroyed, since oto cannot reinitialize within a process. Safe to
// call multiple times.
func (o *Output) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.ready {
		return nil
	}
	o.ready = false

	if o.pipeWriter != nil {
		_ = o.pipeWriter.Close()
		o.pipeWriter = nil
	}
	if o.player != nil {
		_ = o.player.Close()
		o.player = nil
	}
	if o.pipeReader != nil {
		_ = o.pipeReader.Close()
		o.pipeReader = nil
	}
	if o.otoCtx != nil {
		_ = o.otoCtx.Suspend()
	}

	log.Printf("player: output closed")
	return nil
}
