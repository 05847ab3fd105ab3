// ABOUTME: Gapless playback scheduler
// ABOUTME: Schedules decoded chunks back-to-back on a single output timeline cursor
package player

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/parley-ai/parley-go/pkg/audio"
)

// Sink consumes scheduled frames in playback order
type Sink interface {
	Write(frame audio.Frame) error
}

// Buffer is a frame bound to its slot on the output timeline
type Buffer struct {
	Frame  audio.Frame
	PlayAt time.Time
}

// Stats tracks scheduler counters
type Stats struct {
	Scheduled int64
	Played    int64
}

// Scheduler places inbound frames on the output timeline. A single
// cursor tracks the next start time: every buffer starts at
// max(now, cursor) and the cursor advances by the buffer's duration,
// so consecutive chunks play back-to-back with no gap or overlap even
// under bursty arrival. A late chunk never plays in the past.
type Scheduler struct {
	sink  Sink
	queue chan Buffer

	mu    sync.Mutex
	next  time.Time
	stats Stats

	now func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler creates a playback scheduler feeding the sink
func NewScheduler(sink Sink) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		sink:   sink,
		queue:  make(chan Buffer, 256),
		now:    time.Now,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Schedule assigns the frame its timeline slot and queues it for
// playback. Returns the scheduled buffer.
func (s *Scheduler) Schedule(frame audio.Frame) Buffer {
	now := s.now()

	s.mu.Lock()
	start := now
	if s.next.After(now) {
		start = s.next
	}
	s.next = start.Add(frame.Duration())
	s.stats.Scheduled++
	s.mu.Unlock()

	buf := Buffer{Frame: frame, PlayAt: start}

	select {
	case s.queue <- buf:
	case <-s.ctx.Done():
	}

	return buf
}

// Run delivers queued buffers to the sink at their scheduled times
func (s *Scheduler) Run() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case buf := <-s.queue:
			if wait := time.Until(buf.PlayAt); wait > 0 {
				timer := time.NewTimer(wait)
				select {
				case <-timer.C:
				case <-s.ctx.Done():
					timer.Stop()
					return
				}
			}

			if err := s.sink.Write(buf.Frame); err != nil {
				log.Printf("player: write failed: %v", err)
				continue
			}

			s.mu.Lock()
			s.stats.Played++
			s.mu.Unlock()
		}
	}
}

// Stats returns a snapshot of scheduler counters
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Stop halts the scheduler loop. Safe to call multiple times.
func (s *Scheduler) Stop() {
	s.cancel()
}
