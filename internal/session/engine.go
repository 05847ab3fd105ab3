// ABOUTME: Session state machine and orchestration
// ABOUTME: Owns the lifecycle and wires capture, channel, playback and transcript per generation
package session

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/parley-ai/parley-go/internal/capture"
	"github.com/parley-ai/parley-go/internal/channel"
	"github.com/parley-ai/parley-go/internal/meter"
	"github.com/parley-ai/parley-go/internal/player"
	"github.com/parley-ai/parley-go/internal/transcript"
	"github.com/parley-ai/parley-go/pkg/audio"
	"github.com/parley-ai/parley-go/pkg/audio/codec"
)

// Channel is the conversation channel as the engine sees it
type Channel interface {
	Send(chunk codec.Chunk) error
	Close() error
}

// ChannelDialer opens the conversation channel with the given system prompt
type ChannelDialer func(systemPrompt string, cb channel.Callbacks) (Channel, error)

// Microphone is an open capture stream
type Microphone interface {
	Close() error
}

// MicOpener acquires the microphone and delivers normalized samples to
// onSamples from the device callback
type MicOpener func(onSamples func([]float32)) (Microphone, error)

// Sink is the playback output device
type Sink interface {
	Open(sampleRate, channels int) error
	Write(frame audio.Frame) error
	Close() error
}

// Config holds session settings and the device/transport constructors
type Config struct {
	SystemPrompt  string
	Duration      time.Duration
	CaptureRate   int // microphone rate (downsampled for transport)
	TransportRate int // rate required by the remote agent
	PlaybackRate  int // rate of inbound agent audio
	BlockSize     int // capture block size in samples at CaptureRate

	DialChannel ChannelDialer
	OpenMic     MicOpener
	Output      Sink
}

// Callbacks surface session events. All fields optional; callbacks are
// invoked outside the engine lock.
type Callbacks struct {
	OnState      func(state State)
	OnRemaining  func(seconds int)
	OnTranscript func(entries []transcript.Entry)
	OnLevels     func(local, remote float64)
	OnError      func(err error)
	OnComplete   func(finalTranscript string)
}

// Stats aggregates the per-attempt pipeline counters
type Stats struct {
	Capture  capture.Stats
	Playback player.Stats
}

// Engine is the session state machine. It serializes all lifecycle
// mutations behind one mutex while capture callbacks, channel events,
// the countdown tick and the metering loop run concurrently around it.
type Engine struct {
	cfg Config
	cb  Callbacks

	mu         sync.Mutex
	state      State
	gen        Generation
	genCounter uint64
	remaining  int
	lastErr    string
	sessionID  string
	ended      bool
	chOpen     bool

	logbook  *transcript.Log
	levels   *meter.Meter
	pipeline *capture.Pipeline
	sched    *player.Scheduler
	mic      Microphone
	ch       Channel
	td       *Teardown

	tick time.Duration
}

// New creates a session engine
func New(cfg Config, cb Callbacks) *Engine {
	if cfg.Duration <= 0 {
		cfg.Duration = 3 * time.Minute
	}
	if cfg.CaptureRate <= 0 {
		cfg.CaptureRate = 48000
	}
	if cfg.TransportRate <= 0 {
		cfg.TransportRate = 16000
	}
	if cfg.PlaybackRate <= 0 {
		cfg.PlaybackRate = 24000
	}
	if cfg.BlockSize <= 0 {
		cfg.BlockSize = 2048
	}

	return &Engine{
		cfg:     cfg,
		cb:      cb,
		state:   StateIdle,
		logbook: transcript.New(),
		tick:    time.Second,
	}
}

// Start begins a new session attempt. Valid from idle, closed or error
// (retry); any in-flight callbacks of an earlier attempt are invalidated
// by the fresh generation token.
func (e *Engine) Start() error {
	e.mu.Lock()
	if !e.state.startable() {
		st := e.state
		e.mu.Unlock()
		return fmt.Errorf("session not startable from state %q", st)
	}
	gen := e.beginGenerationLocked()
	e.state = StateInitializing
	e.remaining = int(e.cfg.Duration / time.Second)
	e.lastErr = ""
	e.ended = false
	e.chOpen = false
	e.sessionID = uuid.New().String()
	e.logbook.Reset()
	e.td = &Teardown{}
	e.mu.Unlock()

	e.notifyState()
	go e.run(gen)
	return nil
}

// run drives one attempt from initialization to the open channel
func (e *Engine) run(gen Generation) {
	e.mu.Lock()
	id := e.sessionID
	e.mu.Unlock()
	log.Printf("session %s: initializing", id)

	m := meter.New()
	pl := capture.NewPipeline(capture.Config{
		DeviceRate: e.cfg.CaptureRate,
		TargetRate: e.cfg.TransportRate,
		BlockSize:  e.cfg.BlockSize,
		Send:       e.transmit(gen),
		Tap:        m,
	})
	sched := player.NewScheduler(e.cfg.Output)

	e.mu.Lock()
	if gen != e.gen {
		e.mu.Unlock()
		return
	}
	e.levels = m
	e.pipeline = pl
	e.sched = sched
	e.mu.Unlock()

	mic, err := e.cfg.OpenMic(func(samples []float32) {
		if e.stale(gen) {
			return
		}
		pl.Process(samples)
	})
	if err != nil {
		e.fail(gen, err)
		return
	}
	if e.stale(gen) {
		// Acquisition outlived its attempt (e.g. a slow permission
		// prompt resolving after a restart); ignore the result.
		_ = mic.Close()
		return
	}

	e.mu.Lock()
	e.mic = mic
	e.state = StateConnecting
	e.mu.Unlock()
	e.notifyState()

	if err := e.cfg.Output.Open(e.cfg.PlaybackRate, 1); err != nil {
		e.fail(gen, err)
		return
	}
	go sched.Run()

	ch, err := e.cfg.DialChannel(e.cfg.SystemPrompt, channel.Callbacks{
		OnOpen:    func() { e.handleOpen(gen) },
		OnMessage: func(msg channel.Message) { e.handleMessage(gen, msg, sched, m) },
		OnClose:   func() { e.handleClose(gen) },
		OnError:   func(err error) { e.handleChannelError(gen, err) },
	})
	if err != nil {
		e.fail(gen, err)
		return
	}
	if e.stale(gen) {
		_ = ch.Close()
		return
	}

	e.mu.Lock()
	e.ch = ch
	e.mu.Unlock()
	log.Printf("session %s: channel dialed, awaiting open", id)

	go m.Run(func(local, remote float64) {
		if e.stale(gen) {
			return
		}
		if e.cb.OnLevels != nil {
			e.cb.OnLevels(local, remote)
		}
	})
}

// transmit builds the pipeline's send hook, gated on the generation and
// an open channel
func (e *Engine) transmit(gen Generation) capture.SendFunc {
	return func(chunk codec.Chunk) error {
		e.mu.Lock()
		ch := e.ch
		open := e.chOpen
		cur := e.gen
		e.mu.Unlock()

		if gen != cur || ch == nil || !open {
			return &channel.TransmitError{Err: errors.New("channel not open")}
		}
		return ch.Send(chunk)
	}
}

// handleOpen transitions Connecting -> Active when the channel opens
func (e *Engine) handleOpen(gen Generation) {
	e.mu.Lock()
	if gen != e.gen || e.state != StateConnecting {
		e.mu.Unlock()
		return
	}
	e.state = StateActive
	e.chOpen = true
	pl := e.pipeline
	id := e.sessionID
	e.mu.Unlock()

	pl.Arm(true)
	log.Printf("session %s: active", id)
	e.notifyState()
	go e.countdown(gen)
}

// handleMessage routes one inbound channel event
func (e *Engine) handleMessage(gen Generation, msg channel.Message, sched *player.Scheduler, m *meter.Meter) {
	if e.stale(gen) {
		return
	}

	if msg.Audio != nil {
		frame, err := player.DecodeChunk(*msg.Audio, e.cfg.PlaybackRate)
		if err != nil {
			// Malformed chunks are dropped; they never reach the state machine
			log.Printf("session: dropping malformed audio chunk: %v", err)
		} else {
			m.Observe(meter.SourceRemote, frame.Samples)
			sched.Schedule(frame)
		}
	}

	if msg.CandidateText == "" && msg.InterviewerText == "" && msg.RawText == "" {
		return
	}

	e.mu.Lock()
	if gen != e.gen {
		e.mu.Unlock()
		return
	}
	if msg.CandidateText != "" {
		e.logbook.Append(transcript.RoleCandidate, msg.CandidateText)
	}
	if msg.InterviewerText != "" {
		e.logbook.Append(transcript.RoleInterviewer, msg.InterviewerText)
	}
	if msg.RawText != "" {
		// Untagged agent text only surfaces in the final transcript when
		// no role-tagged fragments ever arrive
		e.logbook.AppendRaw(msg.RawText)
	}
	entries := e.logbook.Entries()
	e.mu.Unlock()

	if e.cb.OnTranscript != nil {
		e.cb.OnTranscript(entries)
	}
}

// handleChannelError distinguishes recoverable runtime faults from
// fatal-at-open failures
func (e *Engine) handleChannelError(gen Generation, err error) {
	e.mu.Lock()
	if gen != e.gen || e.ended {
		e.mu.Unlock()
		return
	}
	active := e.state == StateActive
	pl := e.pipeline
	if active {
		e.chOpen = false
	}
	e.mu.Unlock()

	if active {
		// Recoverable: stop transmitting but keep the session and its
		// clock running; the user-visible countdown is elapsed time,
		// not connected time.
		if pl != nil {
			pl.Arm(false)
		}
		log.Printf("session: channel error while active: %v", err)
		if e.cb.OnError != nil {
			e.cb.OnError(err)
		}
		return
	}

	var openErr *channel.OpenError
	if !errors.As(err, &openErr) {
		err = &channel.OpenError{Err: err}
	}
	e.fail(gen, err)
}

// handleClose reacts to the remote ending the stream
func (e *Engine) handleClose(gen Generation) {
	e.mu.Lock()
	if gen != e.gen || e.ended {
		e.mu.Unlock()
		return
	}
	st := e.state
	e.mu.Unlock()

	switch st {
	case StateActive:
		log.Printf("session: channel closed by remote, ending")
		e.beginEnding(gen)
	case StateConnecting:
		e.fail(gen, &channel.OpenError{Err: errors.New("channel closed before open")})
	}
}

// countdown decrements the remaining clock once per tick while active.
// The clock keeps running across transient disconnects.
func (e *Engine) countdown(gen Generation) {
	ticker := time.NewTicker(e.tick)
	defer ticker.Stop()

	for range ticker.C {
		e.mu.Lock()
		if gen != e.gen || e.ended || e.state != StateActive {
			e.mu.Unlock()
			return
		}
		if e.remaining > 0 {
			e.remaining--
		}
		rem := e.remaining
		e.mu.Unlock()

		if e.cb.OnRemaining != nil {
			e.cb.OnRemaining(rem)
		}
		if rem <= 0 {
			e.beginEnding(gen)
			return
		}
	}
}

// beginEnding runs the Ending -> Closed transition at most once per
// generation, whether triggered by the countdown, the user, the remote
// close or disposal
func (e *Engine) beginEnding(gen Generation) {
	e.mu.Lock()
	if gen != e.gen || e.ended {
		e.mu.Unlock()
		return
	}
	switch e.state {
	case StateInitializing, StateConnecting, StateActive:
	default:
		e.mu.Unlock()
		return
	}
	e.ended = true
	e.state = StateEnding
	id := e.sessionID
	e.mu.Unlock()

	log.Printf("session %s: ending", id)
	e.notifyState()

	e.runTeardown()

	e.mu.Lock()
	final := e.logbook.Final()
	e.logbook.Reset()
	e.state = StateClosed
	e.mu.Unlock()

	e.notifyState()
	log.Printf("session %s: closed", id)
	if e.cb.OnComplete != nil {
		e.cb.OnComplete(final)
	}
}

// fail tears the attempt down and parks the engine in the retryable
// error state with the message preserved for display
func (e *Engine) fail(gen Generation, err error) {
	e.mu.Lock()
	if gen != e.gen || e.ended {
		e.mu.Unlock()
		return
	}
	e.ended = true
	e.mu.Unlock()

	log.Printf("session: attempt failed: %v", err)
	e.runTeardown()

	e.mu.Lock()
	if gen == e.gen {
		e.state = StateError
		e.lastErr = err.Error()
	}
	e.mu.Unlock()

	e.notifyState()
	if e.cb.OnError != nil {
		e.cb.OnError(err)
	}
}

// runTeardown snapshots the attempt's resources and releases them in
// fixed order: channel, microphone, playback, metering loop
func (e *Engine) runTeardown() {
	e.mu.Lock()
	td := e.td
	ch := e.ch
	mic := e.mic
	sched := e.sched
	m := e.levels
	pl := e.pipeline
	out := e.cfg.Output
	e.ch = nil
	e.mic = nil
	e.chOpen = false
	e.mu.Unlock()

	if pl != nil {
		pl.Arm(false)
	}
	if td == nil {
		return
	}

	var steps []Step
	if ch != nil {
		steps = append(steps, Step{Name: "remote channel", Close: ch.Close})
	}
	if mic != nil {
		steps = append(steps, Step{Name: "microphone", Close: mic.Close})
	}
	if sched != nil {
		steps = append(steps, Step{Name: "playback scheduler", Close: func() error { sched.Stop(); return nil }})
	}
	if out != nil {
		steps = append(steps, Step{Name: "audio output", Close: out.Close})
	}
	if m != nil {
		steps = append(steps, Step{Name: "meter loop", Close: func() error { m.Stop(); return nil }})
	}
	td.Run(steps)
}

// EndNow ends the current session at the user's request
func (e *Engine) EndNow() {
	e.mu.Lock()
	gen := e.gen
	e.mu.Unlock()
	e.beginEnding(gen)
}

// ToggleMute gates outbound audio without touching the device
func (e *Engine) ToggleMute(muted bool) {
	e.mu.Lock()
	pl := e.pipeline
	e.mu.Unlock()
	if pl != nil {
		pl.SetMuted(muted)
	}
}

// Close disposes the engine, invalidating all in-flight callbacks and
// releasing any held resources. Safe alongside other triggers.
func (e *Engine) Close() {
	e.mu.Lock()
	e.beginGenerationLocked()
	e.ended = true
	e.state = StateClosed
	e.mu.Unlock()
	e.runTeardown()
}

// notifyState reports the current state outside the lock
func (e *Engine) notifyState() {
	if e.cb.OnState == nil {
		return
	}
	e.mu.Lock()
	st := e.state
	e.mu.Unlock()
	e.cb.OnState(st)
}

// State returns the current lifecycle state
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Remaining returns the countdown in whole seconds, floored at zero
func (e *Engine) Remaining() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.remaining
}

// LastError returns the preserved message of the last failed attempt
func (e *Engine) LastError() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

// SessionID returns the identifier of the current attempt
func (e *Engine) SessionID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sessionID
}

// Entries returns the live transcript log for incremental display
func (e *Engine) Entries() []transcript.Entry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.logbook.Entries()
}

// Muted reports the capture mute flag
func (e *Engine) Muted() bool {
	e.mu.Lock()
	pl := e.pipeline
	e.mu.Unlock()
	if pl == nil {
		return false
	}
	return pl.Muted()
}

// Levels returns the normalized local and remote loudness
func (e *Engine) Levels() (local, remote float64) {
	e.mu.Lock()
	m := e.levels
	e.mu.Unlock()
	if m == nil {
		return 0, 0
	}
	return m.Levels()
}

// Stats returns the current attempt's pipeline counters
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	pl := e.pipeline
	sched := e.sched
	e.mu.Unlock()

	var s Stats
	if pl != nil {
		s.Capture = pl.Stats()
	}
	if sched != nil {
		s.Playback = sched.Stats()
	}
	return s
}
