// ABOUTME: Tests for the session engine state machine
// ABOUTME: Drives the lifecycle with fake devices and a fast countdown tick
package session

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/parley-ai/parley-go/internal/channel"
	"github.com/parley-ai/parley-go/pkg/audio"
	"github.com/parley-ai/parley-go/pkg/audio/codec"
)

type fakeChannel struct {
	mu     sync.Mutex
	sent   []codec.Chunk
	closed int
}

func (f *fakeChannel) Send(chunk codec.Chunk) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, chunk)
	return nil
}

func (f *fakeChannel) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func (f *fakeChannel) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *fakeChannel) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

type fakeMic struct {
	mu     sync.Mutex
	closed int
}

func (f *fakeMic) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func (f *fakeMic) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

type fakeSink struct {
	mu     sync.Mutex
	rate   int
	opened int
	closed int
	frames []audio.Frame
}

func (f *fakeSink) Open(sampleRate, channels int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rate = sampleRate
	f.opened++
	return nil
}

func (f *fakeSink) Write(frame audio.Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, frame)
	return nil
}

func (f *fakeSink) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func (f *fakeSink) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// harness wires an engine to fake devices and a driveable channel
type harness struct {
	eng  *Engine
	ch   *fakeChannel
	mic  *fakeMic
	sink *fakeSink

	mu        sync.Mutex
	chcb      channel.Callbacks
	onSamples func([]float32)
	micErr    error

	dialed   chan struct{}
	states   chan State
	complete chan string
	errs     chan error
}

func newHarness(duration time.Duration) *harness {
	h := &harness{
		ch:       &fakeChannel{},
		mic:      &fakeMic{},
		sink:     &fakeSink{},
		dialed:   make(chan struct{}, 4),
		states:   make(chan State, 64),
		complete: make(chan string, 4),
		errs:     make(chan error, 16),
	}

	cfg := Config{
		SystemPrompt: "You are a friendly interviewer.",
		Duration:     duration,
		DialChannel: func(systemPrompt string, cb channel.Callbacks) (Channel, error) {
			h.mu.Lock()
			h.chcb = cb
			h.mu.Unlock()
			h.dialed <- struct{}{}
			return h.ch, nil
		},
		OpenMic: func(onSamples func([]float32)) (Microphone, error) {
			h.mu.Lock()
			err := h.micErr
			h.micErr = nil
			h.onSamples = onSamples
			h.mu.Unlock()
			if err != nil {
				return nil, err
			}
			return h.mic, nil
		},
		Output: h.sink,
	}

	h.eng = New(cfg, Callbacks{
		OnState:    func(s State) { h.states <- s },
		OnComplete: func(final string) { h.complete <- final },
		OnError: func(err error) {
			select {
			case h.errs <- err:
			default:
			}
		},
	})
	h.eng.tick = 2 * time.Millisecond
	return h
}

func (h *harness) callbacks() channel.Callbacks {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.chcb
}

func (h *harness) feed(samples []float32) {
	h.mu.Lock()
	fn := h.onSamples
	h.mu.Unlock()
	if fn != nil {
		fn(samples)
	}
}

func (h *harness) waitState(t *testing.T, want State) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case got := <-h.states:
			if got == want {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for state %v (engine at %v)", want, h.eng.State())
		}
	}
}

func (h *harness) waitDial(t *testing.T) {
	t.Helper()
	select {
	case <-h.dialed:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for channel dial")
	}
}

func (h *harness) startActive(t *testing.T) {
	t.Helper()
	if err := h.eng.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	h.waitDial(t)
	h.callbacks().OnOpen()
	h.waitState(t, StateActive)
}

func TestCountdownEndsSessionOnce(t *testing.T) {
	h := newHarness(50 * time.Millisecond)
	h.startActive(t)

	cb := h.callbacks()
	cb.OnMessage(channel.Message{InterviewerText: "Tell me about "})
	cb.OnMessage(channel.Message{InterviewerText: "a project you led."})
	cb.OnMessage(channel.Message{CandidateText: "I led the rollout of our billing system."})

	var final string
	select {
	case final = <-h.complete:
	case <-time.After(2 * time.Second):
		t.Fatal("countdown never completed the session")
	}

	if h.eng.State() != StateClosed {
		t.Errorf("state = %v, want %v", h.eng.State(), StateClosed)
	}
	if !strings.Contains(final, "Interviewer: Tell me about a project you led.") {
		t.Errorf("final transcript missing merged interviewer entry:\n%s", final)
	}
	if !strings.Contains(final, "Candidate: I led the rollout of our billing system.") {
		t.Errorf("final transcript missing candidate entry:\n%s", final)
	}

	// Teardown ran exactly once on every resource
	if n := h.ch.closeCount(); n != 1 {
		t.Errorf("channel closed %d times, want 1", n)
	}
	if n := h.mic.closeCount(); n != 1 {
		t.Errorf("microphone closed %d times, want 1", n)
	}
	if n := h.sink.closeCount(); n != 1 {
		t.Errorf("output closed %d times, want 1", n)
	}

	select {
	case extra := <-h.complete:
		t.Errorf("completion delivered twice, second: %q", extra)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestEmptyConversationPlaceholder(t *testing.T) {
	h := newHarness(time.Hour)
	h.startActive(t)

	h.eng.EndNow()

	select {
	case final := <-h.complete:
		if final != "No conversation recorded." {
			t.Errorf("final = %q, want placeholder", final)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("EndNow never completed the session")
	}
}

func TestUntaggedTextFallsBackToRawTranscript(t *testing.T) {
	h := newHarness(time.Hour)
	h.startActive(t)

	// Agent words arrive as plain model turn text, never as role-tagged
	// transcription fragments
	cb := h.callbacks()
	cb.OnMessage(channel.Message{RawText: "Thanks for joining. "})
	cb.OnMessage(channel.Message{RawText: "Tell me about yourself."})

	h.eng.EndNow()

	select {
	case final := <-h.complete:
		want := "Thanks for joining. Tell me about yourself."
		if final != want {
			t.Errorf("final = %q, want raw fallback %q", final, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("EndNow never completed the session")
	}
}

func TestTaggedFragmentsOutrankRawText(t *testing.T) {
	h := newHarness(time.Hour)
	h.startActive(t)

	cb := h.callbacks()
	cb.OnMessage(channel.Message{RawText: "untagged words"})
	cb.OnMessage(channel.Message{InterviewerText: "What interests you about this role?"})

	h.eng.EndNow()

	select {
	case final := <-h.complete:
		if final != "Interviewer: What interests you about this role?" {
			t.Errorf("final = %q, want tagged entry only", final)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("EndNow never completed the session")
	}
}

func TestEndNowIdempotent(t *testing.T) {
	h := newHarness(time.Hour)
	h.startActive(t)

	h.eng.EndNow()
	h.waitState(t, StateClosed)
	h.eng.EndNow()
	h.eng.EndNow()

	if n := h.ch.closeCount(); n != 1 {
		t.Errorf("channel closed %d times, want 1", n)
	}
	select {
	case <-h.complete:
	case <-time.After(2 * time.Second):
		t.Fatal("no completion delivered")
	}
	select {
	case final := <-h.complete:
		t.Errorf("repeated EndNow delivered a second completion: %q", final)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestMicFailureIsRetryable(t *testing.T) {
	h := newHarness(time.Hour)
	h.mu.Lock()
	h.micErr = errors.New("microphone permission denied")
	h.mu.Unlock()

	if err := h.eng.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	h.waitState(t, StateError)

	if h.eng.LastError() == "" {
		t.Error("LastError empty after failed attempt")
	}
	if h.ch.closeCount() != 0 {
		t.Error("channel closed though it was never dialed")
	}

	// The error state is a valid retry point
	h.startActive(t)
	if h.eng.LastError() != "" {
		t.Errorf("LastError = %q after successful retry, want empty", h.eng.LastError())
	}
}

func TestStaleCallbacksAreIgnored(t *testing.T) {
	h := newHarness(time.Hour)
	h.startActive(t)
	old := h.callbacks()
	firstID := h.eng.SessionID()

	h.eng.EndNow()
	h.waitState(t, StateClosed)
	<-h.complete

	h.startActive(t)
	if h.eng.SessionID() == firstID {
		t.Error("session ID not regenerated across attempts")
	}

	// Events from the superseded attempt must not touch the new one
	old.OnMessage(channel.Message{InterviewerText: "ghost of a prior attempt"})
	old.OnError(errors.New("stale runtime fault"))
	old.OnClose()

	if n := len(h.eng.Entries()); n != 0 {
		t.Errorf("stale message reached the transcript, %d entries", n)
	}
	if h.eng.State() != StateActive {
		t.Errorf("stale events moved state to %v, want %v", h.eng.State(), StateActive)
	}
}

func TestChannelErrorWhileActiveIsRecoverable(t *testing.T) {
	h := newHarness(time.Hour)
	h.startActive(t)

	h.callbacks().OnError(&channel.RuntimeError{Err: errors.New("read: connection reset")})

	select {
	case <-h.errs:
	case <-time.After(2 * time.Second):
		t.Fatal("runtime fault never surfaced")
	}
	if h.eng.State() != StateActive {
		t.Errorf("state = %v after runtime fault, want %v", h.eng.State(), StateActive)
	}

	// Transmission is gated once the channel is gone
	before := h.ch.sentCount()
	h.feed(make([]float32, 4096))
	if got := h.ch.sentCount(); got != before {
		t.Errorf("pipeline transmitted %d chunks after channel fault", got-before)
	}
}

func TestChannelErrorBeforeOpenIsFatal(t *testing.T) {
	h := newHarness(time.Hour)
	if err := h.eng.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	h.waitDial(t)

	h.callbacks().OnError(&channel.RuntimeError{Err: errors.New("handshake rejected")})
	h.waitState(t, StateError)

	select {
	case err := <-h.errs:
		var openErr *channel.OpenError
		if !errors.As(err, &openErr) {
			t.Errorf("pre-open fault surfaced as %T, want *channel.OpenError", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("fatal fault never surfaced")
	}
	if h.ch.closeCount() != 1 {
		t.Errorf("channel closed %d times on fatal fault, want 1", h.ch.closeCount())
	}
}

func TestRemoteCloseEndsSession(t *testing.T) {
	h := newHarness(time.Hour)
	h.startActive(t)

	h.callbacks().OnClose()

	select {
	case <-h.complete:
	case <-time.After(2 * time.Second):
		t.Fatal("remote close never completed the session")
	}
	if h.eng.State() != StateClosed {
		t.Errorf("state = %v, want %v", h.eng.State(), StateClosed)
	}
}

func TestStartRejectedWhileRunning(t *testing.T) {
	h := newHarness(time.Hour)
	h.startActive(t)

	if err := h.eng.Start(); err == nil {
		t.Error("Start() accepted while a session is active")
	}
}

func TestMuteGatesTransmission(t *testing.T) {
	h := newHarness(time.Hour)
	h.startActive(t)

	h.feed(make([]float32, 4096))
	sent := h.ch.sentCount()
	if sent == 0 {
		t.Fatal("armed pipeline transmitted nothing")
	}

	h.eng.ToggleMute(true)
	if !h.eng.Muted() {
		t.Error("Muted() = false after ToggleMute(true)")
	}
	h.feed(make([]float32, 4096))
	if got := h.ch.sentCount(); got != sent {
		t.Errorf("muted pipeline transmitted %d chunks", got-sent)
	}

	h.eng.ToggleMute(false)
	h.feed(make([]float32, 4096))
	if got := h.ch.sentCount(); got <= sent {
		t.Error("unmuted pipeline did not resume transmitting")
	}
}

func TestInboundAudioScheduledAndMetered(t *testing.T) {
	h := newHarness(time.Hour)
	h.startActive(t)

	frame := audio.Frame{Samples: []float32{0.5, -0.5, 0.5, -0.5}, SampleRate: 24000}
	chunk := codec.Encode(frame)
	h.callbacks().OnMessage(channel.Message{Audio: &chunk})

	deadline := time.After(2 * time.Second)
	for {
		h.sink.mu.Lock()
		n := len(h.sink.frames)
		h.sink.mu.Unlock()
		if n > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("inbound audio never reached the output sink")
		case <-time.After(time.Millisecond):
		}
	}

	_, remote := h.eng.Levels()
	if remote == 0 {
		t.Error("remote level untouched by inbound audio")
	}
}

func TestCloseDisposesEngine(t *testing.T) {
	h := newHarness(time.Hour)
	h.startActive(t)
	old := h.callbacks()

	h.eng.Close()

	if h.ch.closeCount() != 1 {
		t.Errorf("channel closed %d times on dispose, want 1", h.ch.closeCount())
	}
	// Disposal invalidates in-flight callbacks
	old.OnMessage(channel.Message{InterviewerText: "after dispose"})
	if n := len(h.eng.Entries()); n != 0 {
		t.Errorf("post-dispose message reached the transcript, %d entries", n)
	}
}
