package live

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/FearYourSelf/forge-and-quill/pkg/core/capture"
	"github.com/FearYourSelf/forge-and-quill/pkg/core/document"
	"github.com/FearYourSelf/forge-and-quill/pkg/core/playback"
	"github.com/FearYourSelf/forge-and-quill/pkg/core/tools"
)

// OutputDevice is an opened playback device: it realizes scheduled buffers
// and provides the clock the scheduler's cursor is measured against.
type OutputDevice interface {
	playback.Clock
	playback.Sink
}

// DeviceFactory acquires audio hardware at connect time. Devices are opened
// per session attempt and released on teardown, never held across attempts.
type DeviceFactory interface {
	OpenOutput() (OutputDevice, error)
	OpenInput() (capture.Source, error)
}

const eventBufferSize = 64

// Session coordinates one live brainstorming connection: device acquisition,
// the duplex transport, playback scheduling, capture forwarding, and tool
// dispatch. A single goroutine consumes transport events, so ordered
// concerns (tool acks, playback order) need no further synchronization.
type Session struct {
	cfg       SessionConfig
	transport Transport
	docs      *document.Store
	dispatch  *tools.Dispatcher
	devices   DeviceFactory
	logger    *slog.Logger

	// guard gates every outbound frame. It is a separate flag from the
	// state field so the capture callback path never takes the mutex.
	guard atomic.Bool

	events    chan Event
	retired   atomic.Bool
	closeOnce sync.Once

	mu            sync.Mutex
	state         State
	scheduler     *playback.Scheduler
	pipeline      *capture.Pipeline
	captureCancel context.CancelFunc
	loopDone      chan struct{}
}

// NewSession creates an idle session. cfg zero values fall back to
// DefaultSessionConfig.
func NewSession(cfg SessionConfig, transport Transport, docs *document.Store, dispatch *tools.Dispatcher, devices DeviceFactory, logger *slog.Logger) *Session {
	def := DefaultSessionConfig()
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.Voice == "" {
		cfg.Voice = def.Voice
	}
	if cfg.Persona == "" {
		cfg.Persona = def.Persona
	}
	if cfg.ContextBudget <= 0 {
		cfg.ContextBudget = def.ContextBudget
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		cfg:       cfg,
		transport: transport,
		docs:      docs,
		dispatch:  dispatch,
		devices:   devices,
		logger:    logger,
		events:    make(chan Event, eventBufferSize),
		state:     StateIdle,
	}
}

// Events returns the session's UI event stream. The channel closes when the
// session is retired with Close.
func (s *Session) Events() <-chan Event {
	return s.events
}

// State returns the current session state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start connects the session. It acquires both audio devices, dials the
// transport with a fresh document snapshot as context, and hands the inbound
// stream to the coordinating loop. Start may be called again after the
// session returns to Idle or Error.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case StateConnecting, StateConnected:
		s.mu.Unlock()
		return fmt.Errorf("session already active in state %s", s.state)
	case StateClosed:
		s.mu.Unlock()
		return fmt.Errorf("session is closed")
	}
	from := s.state
	s.state = StateConnecting
	s.mu.Unlock()
	s.emit(&StateChangedEvent{From: from, To: StateConnecting})

	out, err := s.devices.OpenOutput()
	if err != nil {
		return s.fail(fmt.Errorf("open output device: %w", err))
	}
	in, err := s.devices.OpenInput()
	if err != nil {
		_ = out.Close()
		return s.fail(fmt.Errorf("open input device: %w", err))
	}

	scheduler := playback.NewScheduler(out, out)
	pipeline := capture.NewPipeline(in, s.transport.SendAudioFrame, &s.guard, s.logger)

	// The microphone stream is acquired while still connecting; an
	// unusable microphone fails the attempt rather than producing a
	// connected session with no input. The guard keeps captured frames
	// from being forwarded until the transport reports open.
	if err := pipeline.Acquire(ctx); err != nil {
		_ = pipeline.Stop()
		_ = scheduler.Teardown()
		return s.fail(fmt.Errorf("acquire microphone: %w", err))
	}

	snap := s.docs.Snapshot()
	connectCfg := ConnectConfig{
		Model:             s.cfg.Model,
		Voice:             s.cfg.Voice,
		SystemInstruction: ContextSnapshot(s.cfg.Persona, snap, s.cfg.ContextBudget),
		Tools:             tools.Declarations(tools.NameUpdateDraft),
	}
	if err := s.transport.Connect(ctx, connectCfg); err != nil {
		_ = pipeline.Stop()
		_ = scheduler.Teardown()
		return s.fail(fmt.Errorf("connect transport: %w", err))
	}

	done := make(chan struct{})
	s.mu.Lock()
	s.scheduler = scheduler
	s.pipeline = pipeline
	s.loopDone = done
	s.mu.Unlock()

	go s.run(ctx, done)
	return nil
}

// Stop ends an active connection and waits for the coordinating loop to
// unwind. Stopping an idle session is a no-op.
func (s *Session) Stop() error {
	s.mu.Lock()
	active := s.state == StateConnecting || s.state == StateConnected
	done := s.loopDone
	s.mu.Unlock()
	if !active {
		return nil
	}

	err := s.transport.Close()
	if done != nil {
		<-done
	}
	return err
}

// Close stops the session and retires it permanently. The events channel
// closes; a retired session rejects Start.
func (s *Session) Close() error {
	err := s.Stop()

	s.mu.Lock()
	from := s.state
	alreadyClosed := s.state == StateClosed
	s.state = StateClosed
	s.mu.Unlock()

	if !alreadyClosed {
		s.emit(&StateChangedEvent{From: from, To: StateClosed})
	}
	s.closeOnce.Do(func() {
		s.retired.Store(true)
		close(s.events)
	})
	return err
}

func (s *Session) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	for ev := range s.transport.Events() {
		switch ev := ev.(type) {
		case Opened:
			s.onOpened(ctx)
		case AudioChunk:
			if err := s.scheduler.Schedule(ev.Data); err != nil {
				s.logger.Warn("schedule audio chunk failed", "error", err)
			}
		case Interrupted:
			// Barge-in stops playback immediately; the session itself
			// stays connected.
			s.scheduler.Interrupt()
		case ToolCalls:
			s.onToolCalls(ev.Calls)
		case Closed:
			s.finish(StateIdle, nil)
			return
		case TransportError:
			s.finish(StateError, ev.Err)
			return
		}
	}

	// Stream ended without a terminal event: treat as an orderly close.
	s.finish(StateIdle, nil)
}

func (s *Session) onOpened(ctx context.Context) {
	captureCtx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	from := s.state
	s.state = StateConnected
	s.captureCancel = cancel
	pipeline := s.pipeline
	s.mu.Unlock()

	// Guard up before capture starts so the first frame is forwardable.
	s.guard.Store(true)
	s.emit(&StateChangedEvent{From: from, To: StateConnected})

	go pipeline.Run(captureCtx)
}

// onToolCalls dispatches each call and acknowledges it exactly once, in
// arrival order.
func (s *Session) onToolCalls(calls []tools.Request) {
	for _, call := range calls {
		s.dispatch.Dispatch(call)
		if !s.guard.Load() {
			continue
		}
		if err := s.transport.SendToolAck(call.ID, call.Name); err != nil {
			s.logger.Warn("tool ack failed", "id", call.ID, "name", call.Name, "error", err)
		}
		s.emit(&ToolAppliedEvent{ID: call.ID, Name: call.Name})
	}
}

// fail tears down after a setup error and moves the session to Error.
func (s *Session) fail(err error) error {
	s.mu.Lock()
	from := s.state
	s.state = StateError
	s.mu.Unlock()

	s.emit(&StateChangedEvent{From: from, To: StateError})
	s.emit(&SessionErrorEvent{Message: err.Error()})
	s.logger.Error("session start failed", "error", err)
	return err
}

// finish tears the connected resources down in guard-first order and lands
// in the given terminal state. The guard drops before anything else so no
// frame can race onto a dying connection.
func (s *Session) finish(to State, cause error) {
	s.guard.Store(false)

	s.mu.Lock()
	cancel := s.captureCancel
	pipeline := s.pipeline
	scheduler := s.scheduler
	s.captureCancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if pipeline != nil {
		if err := pipeline.Stop(); err != nil {
			s.logger.Warn("stop capture failed", "error", err)
		}
	}
	if scheduler != nil {
		if err := scheduler.Teardown(); err != nil {
			s.logger.Warn("playback teardown failed", "error", err)
		}
	}
	if err := s.transport.Close(); err != nil {
		s.logger.Warn("transport close failed", "error", err)
	}

	s.mu.Lock()
	from := s.state
	s.state = to
	s.mu.Unlock()

	if from != to {
		s.emit(&StateChangedEvent{From: from, To: to})
	}
	if cause != nil {
		s.emit(&SessionErrorEvent{Message: cause.Error()})
		s.logger.Error("session ended with error", "error", cause)
	} else {
		s.logger.Info("session ended", "state", to.String())
	}
}

// emit delivers a UI event without ever blocking the coordinating loop.
func (s *Session) emit(ev Event) {
	if s.retired.Load() {
		return
	}
	select {
	case s.events <- ev:
	default:
		s.logger.Debug("event dropped, buffer full", "type", ev.EventType())
	}
}
