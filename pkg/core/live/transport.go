package live

import (
	"context"

	"github.com/FearYourSelf/forge-and-quill/pkg/core/pcm"
	"github.com/FearYourSelf/forge-and-quill/pkg/core/tools"
)

// ConnectConfig is the provider-facing session setup.
type ConnectConfig struct {
	// Model is the live model identifier.
	Model string

	// Voice is an enumerable provider-defined voice name, passed through
	// uninterpreted; the provider validates it.
	Voice string

	// SystemInstruction carries the session context: a bounded snapshot of
	// the current draft and profile (see ContextSnapshot).
	SystemInstruction string

	// Tools are the declared tool schemas, the closed set of four names.
	Tools []tools.Declaration
}

// Transport owns the duplex provider connection and translates protocol
// frames into TransportEvents.
type Transport interface {
	// Connect establishes the connection and sends the session setup.
	// It returns once the provider acknowledges open, after emitting Opened.
	Connect(ctx context.Context, cfg ConnectConfig) error

	// Events yields the inbound event stream. The channel closes after
	// Closed or TransportError.
	Events() <-chan TransportEvent

	// SendAudioFrame forwards one captured frame. Fire-and-forget; only
	// valid while connected.
	SendAudioFrame(frame pcm.Frame) error

	// SendToolAck answers one tool-call request, echoing its id, with the
	// generic success marker.
	SendToolAck(id, name string) error

	// Close tears the connection down. Idempotent.
	Close() error
}
