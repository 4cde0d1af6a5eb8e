package live

import "github.com/FearYourSelf/forge-and-quill/pkg/core/tools"

// TransportEvent is the typed event enumeration a transport translates the
// provider protocol into. The session's coordinating loop is the single
// consumer.
type TransportEvent interface {
	transportEventType() string
}

// Opened signals the provider acknowledged the session setup. Capture starts
// only after this event.
type Opened struct{}

func (Opened) transportEventType() string { return "opened" }

// AudioChunk carries one decoded unit of server audio (24 kHz mono s16le).
type AudioChunk struct {
	Data []byte
}

func (AudioChunk) transportEventType() string { return "audio_chunk" }

// ToolCalls carries a batch of function-call requests, in arrival order.
type ToolCalls struct {
	Calls []tools.Request
}

func (ToolCalls) transportEventType() string { return "tool_calls" }

// Interrupted signals server-detected barge-in: stop all playback now.
// It is not a state transition; the session stays connected.
type Interrupted struct{}

func (Interrupted) transportEventType() string { return "interrupted" }

// Closed signals an orderly provider-side close.
type Closed struct{}

func (Closed) transportEventType() string { return "closed" }

// TransportError signals a fatal provider or connection failure.
type TransportError struct {
	Err error
}

func (TransportError) transportEventType() string { return "error" }

// Event is the session-level event surface consumed by the UI layer.
type Event interface {
	EventType() string
}

// StateChangedEvent is emitted on every session state transition.
type StateChangedEvent struct {
	From State `json:"from"`
	To   State `json:"to"`
}

func (*StateChangedEvent) EventType() string { return "state.changed" }

// SessionErrorEvent is emitted when the session enters the Error state,
// offering the user a retry.
type SessionErrorEvent struct {
	Message string `json:"message"`
}

func (*SessionErrorEvent) EventType() string { return "session.error" }

// ToolAppliedEvent is emitted after a tool call has been dispatched and
// acknowledged.
type ToolAppliedEvent struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (*ToolAppliedEvent) EventType() string { return "tool.applied" }
