// Package playback schedules decoded model audio for gapless, in-order
// output with instant full-stop on barge-in.
package playback

import (
	"fmt"
	"sync"

	"github.com/FearYourSelf/forge-and-quill/pkg/core/pcm"
)

// Clock reports the current playback-device time in seconds.
type Clock interface {
	Now() float64
}

// Handle controls one in-flight output buffer. Stop is idempotent: stopping
// a buffer that already finished naturally is a no-op, never an error.
type Handle interface {
	Stop()
}

// Sink realizes scheduled buffers on an output device. done fires when the
// buffer finishes playing naturally (not when stopped early).
type Sink interface {
	Start(buf *pcm.Buffer, at float64, done func()) (Handle, error)
	Close() error
}

// Scheduler keeps a monotonic next-start cursor and the set of in-flight
// buffers. Chunks scheduled back-to-back play with no gap and no overlap as
// long as they arrive faster than real time.
type Scheduler struct {
	clock Clock
	sink  Sink
	cfg   pcm.AudioConfig

	mu     sync.Mutex
	cursor float64
	seq    uint64
	active map[uint64]Handle
	closed bool
}

// NewScheduler creates a scheduler playing 24 kHz mono model audio.
func NewScheduler(clock Clock, sink Sink) *Scheduler {
	return &Scheduler{
		clock:  clock,
		sink:   sink,
		cfg:    pcm.PlaybackConfig(),
		active: make(map[uint64]Handle),
	}
}

// Schedule decodes one audio chunk and queues it directly after the previous
// one. After a period of silence the cursor snaps forward to the current
// clock time; it otherwise never regresses.
func (s *Scheduler) Schedule(chunk []byte) error {
	buf := pcm.BytesToBuffer(chunk, s.cfg)
	if len(buf.Samples) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("scheduler is closed")
	}

	startAt := s.cursor
	if now := s.clock.Now(); startAt < now {
		startAt = now
	}

	id := s.seq
	s.seq++
	handle, err := s.sink.Start(buf, startAt, func() { s.remove(id) })
	if err != nil {
		return fmt.Errorf("start playback buffer: %w", err)
	}
	s.active[id] = handle
	s.cursor = startAt + buf.Duration()
	return nil
}

func (s *Scheduler) remove(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, id)
}

// Interrupt force-stops every in-flight buffer and resets the cursor to 0.
// Called on server-signaled barge-in; safe to call at any time.
func (s *Scheduler) Interrupt() {
	s.mu.Lock()
	handles := make([]Handle, 0, len(s.active))
	for _, h := range s.active {
		handles = append(handles, h)
	}
	s.active = make(map[uint64]Handle)
	s.cursor = 0
	s.mu.Unlock()

	for _, h := range handles {
		h.Stop()
	}
}

// Teardown interrupts and releases the output device. Idempotent.
func (s *Scheduler) Teardown() error {
	s.Interrupt()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	return s.sink.Close()
}

// Pending returns the number of in-flight buffers.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// Cursor returns the next allowed start time in seconds.
func (s *Scheduler) Cursor() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}
