// Package capture taps the microphone and forwards PCM frames to the live
// transport while a session is connected.
package capture

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/FearYourSelf/forge-and-quill/pkg/core/pcm"
)

// Source delivers fixed-size mono frames of normalized float samples.
type Source interface {
	Start(ctx context.Context) error
	Stop() error
	Frames() <-chan []float32
}

// SendFunc hands one encoded frame to the transport. The pipeline does not
// await completion; frames are at-most-once, best effort.
type SendFunc func(frame pcm.Frame) error

// Pipeline encodes captured frames and forwards them while the connection
// guard is up. Frames arriving while the guard is down are dropped silently:
// the backpressure policy on disconnect is drop, not buffer.
type Pipeline struct {
	source Source
	send   SendFunc
	guard  *atomic.Bool
	logger *slog.Logger

	sent    atomic.Int64
	dropped atomic.Int64
}

// NewPipeline wires a source to a transport send behind the shared
// connection guard.
func NewPipeline(source Source, send SendFunc, guard *atomic.Bool, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		source: source,
		send:   send,
		guard:  guard,
		logger: logger,
	}
}

// Acquire starts the source. It is called while the session is still
// connecting, so an acquisition failure (no device, permission denied)
// fails the whole attempt instead of leaving a connected session with no
// microphone.
func (p *Pipeline) Acquire(ctx context.Context) error {
	return p.source.Start(ctx)
}

// Run forwards frames until the context is cancelled or the source closes
// its frame channel. Per-frame send failures are logged and tolerated,
// since only transport error/close events end a session.
func (p *Pipeline) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case samples, ok := <-p.source.Frames():
			if !ok {
				return
			}
			p.forward(samples)
		}
	}
}

func (p *Pipeline) forward(samples []float32) {
	if !p.guard.Load() {
		p.dropped.Add(1)
		return
	}

	frame := pcm.EncodeFrame(samples)
	if err := p.send(frame); err != nil {
		p.logger.Warn("audio frame send failed", "error", err)
		return
	}
	p.sent.Add(1)
	p.logger.Debug("audio frame sent",
		"bytes", len(frame.Data),
		"rms", pcm.RMSEnergy(frame.Data),
	)
}

// Stop releases the capture device.
func (p *Pipeline) Stop() error {
	return p.source.Stop()
}

// Sent reports how many frames reached the transport send.
func (p *Pipeline) Sent() int64 { return p.sent.Load() }

// Dropped reports how many frames were discarded by the connection guard.
func (p *Pipeline) Dropped() int64 { return p.dropped.Load() }
