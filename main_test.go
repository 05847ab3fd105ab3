// ABOUTME: Tests for entry-point wiring helpers
// ABOUTME: Covers TUI control forwarding and report gating
package main

import (
	"sync"
	"testing"
	"time"

	"github.com/parley-ai/parley-go/internal/channel"
	"github.com/parley-ai/parley-go/internal/config"
	"github.com/parley-ai/parley-go/internal/session"
	"github.com/parley-ai/parley-go/internal/ui"
	"github.com/parley-ai/parley-go/pkg/audio"
	"github.com/parley-ai/parley-go/pkg/audio/codec"
)

type stubChannel struct {
	mu     sync.Mutex
	closed int
}

func (s *stubChannel) Send(codec.Chunk) error { return nil }

func (s *stubChannel) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

func (s *stubChannel) closeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type stubMic struct{}

func (stubMic) Close() error { return nil }

type stubSink struct{}

func (stubSink) Open(int, int) error { return nil }

func (stubSink) Write(audio.Frame) error { return nil }

func (stubSink) Close() error { return nil }

func TestQuitControlEndsSession(t *testing.T) {
	ch := &stubChannel{}
	dialed := make(chan channel.Callbacks, 1)
	complete := make(chan string, 1)

	eng := session.New(session.Config{
		Duration: time.Hour,
		DialChannel: func(systemPrompt string, cb channel.Callbacks) (session.Channel, error) {
			dialed <- cb
			return ch, nil
		},
		OpenMic: func(onSamples func([]float32)) (session.Microphone, error) {
			return stubMic{}, nil
		},
		Output: stubSink{},
	}, session.Callbacks{
		OnComplete: func(final string) { complete <- final },
	})

	if err := eng.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	var cb channel.Callbacks
	select {
	case cb = <-dialed:
	case <-time.After(2 * time.Second):
		t.Fatal("channel never dialed")
	}
	cb.OnOpen()

	controls := ui.NewControls()
	go handleControls(eng, controls)
	controls.Quit <- struct{}{}

	select {
	case <-complete:
	case <-time.After(2 * time.Second):
		t.Fatal("quit left the session running")
	}
	if eng.State() != session.StateClosed {
		t.Errorf("state = %v after quit, want %v", eng.State(), session.StateClosed)
	}
	if ch.closeCount() != 1 {
		t.Errorf("channel closed %d times after quit, want 1", ch.closeCount())
	}
}

func TestReportWanted(t *testing.T) {
	cfg := config.Default()

	if reportWanted(false, cfg) {
		t.Error("report generated with neither flag nor config set")
	}
	if !reportWanted(true, cfg) {
		t.Error("-report flag ignored")
	}

	cfg.Report.Enabled = true
	if !reportWanted(false, cfg) {
		t.Error("config report.enabled ignored")
	}
}
