// Package geminilive implements the live.Transport interface over the Gemini
// Live websocket API (BidiGenerateContent).
package geminilive

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/FearYourSelf/forge-and-quill/pkg/core/live"
	"github.com/FearYourSelf/forge-and-quill/pkg/core/pcm"
	"github.com/FearYourSelf/forge-and-quill/pkg/core/tools"
)

const (
	defaultHost = "generativelanguage.googleapis.com"
	bidiPath    = "/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"

	connectTimeout = 15 * time.Second
)

// Transport speaks the Gemini Live protocol over a single websocket
// connection. It is reusable: after Close, a new Connect opens a fresh
// connection, so a session can retry from its Error state.
type Transport struct {
	apiKey string
	host   string
	logger *slog.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	events chan live.TransportEvent
	gen    uint64 // bumped by Close; a Connect handshake from an older gen is discarded

	writeMu sync.Mutex
	closed  atomic.Bool
}

// Option customizes a Transport.
type Option func(*Transport)

// WithHost overrides the provider host, e.g. for a regional endpoint or a
// test server.
func WithHost(host string) Option {
	return func(t *Transport) { t.host = host }
}

// WithLogger sets the transport logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Transport) { t.logger = logger }
}

// New creates a disconnected transport authenticated by apiKey.
func New(apiKey string, opts ...Option) *Transport {
	t := &Transport{
		apiKey: apiKey,
		host:   defaultHost,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.closed.Store(true)
	return t
}

// Connect dials the live endpoint, sends the session setup, and waits for
// the provider's setupComplete acknowledgement. On success the inbound read
// loop is running and Opened is already queued on Events.
func (t *Transport) Connect(ctx context.Context, cfg live.ConnectConfig) error {
	t.mu.Lock()
	if t.conn != nil && !t.closed.Load() {
		t.mu.Unlock()
		return fmt.Errorf("transport already connected")
	}
	myGen := t.gen
	t.mu.Unlock()

	if t.apiKey == "" {
		return fmt.Errorf("missing API key")
	}

	endpoint := url.URL{
		Scheme:   "wss",
		Host:     t.host,
		Path:     bidiPath,
		RawQuery: url.Values{"key": {t.apiKey}}.Encode(),
	}

	dialCtx := ctx
	var cancel context.CancelFunc
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		dialCtx, cancel = context.WithTimeout(ctx, connectTimeout)
		defer cancel()
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(dialCtx, endpoint.String(), nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("websocket dial failed (status %d): %w", resp.StatusCode, err)
		}
		return fmt.Errorf("websocket dial failed: %w", err)
	}

	if err := conn.WriteJSON(buildSetup(cfg)); err != nil {
		_ = conn.Close()
		return fmt.Errorf("send session setup: %w", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(connectTimeout))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("read setup acknowledgement: %w", err)
	}
	_ = conn.SetReadDeadline(time.Time{})

	var first serverMessage
	if err := json.Unmarshal(payload, &first); err != nil {
		_ = conn.Close()
		return fmt.Errorf("decode setup acknowledgement: %w", err)
	}
	if first.SetupComplete == nil {
		_ = conn.Close()
		return fmt.Errorf("unexpected first frame, want setupComplete")
	}

	events := make(chan live.TransportEvent, 256)
	events <- live.Opened{}

	if err := t.install(conn, events, myGen); err != nil {
		_ = conn.Close()
		return err
	}

	go t.readLoop(conn, events)
	t.logger.Info("live transport connected", "model", cfg.Model, "voice", cfg.Voice)
	return nil
}

// install publishes a freshly handshaken connection. Close bumps the
// generation, so an attempt whose handshake raced a Close is discarded
// here instead of resurrecting a transport the caller already gave up on.
func (t *Transport) install(conn *websocket.Conn, events chan live.TransportEvent, gen uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.gen != gen {
		return fmt.Errorf("transport closed while connecting")
	}
	t.conn = conn
	t.events = events
	t.closed.Store(false)
	return nil
}

func buildSetup(cfg live.ConnectConfig) setupMessage {
	msg := setupMessage{Setup: setupPayload{
		Model: "models/" + cfg.Model,
		GenerationConfig: generationConfig{
			ResponseModalities: []string{"AUDIO"},
			SpeechConfig: &speechConfig{
				VoiceConfig: voiceConfig{
					PrebuiltVoiceConfig: prebuiltVoiceConfig{VoiceName: cfg.Voice},
				},
			},
		},
	}}
	if cfg.SystemInstruction != "" {
		msg.Setup.SystemInstruction = &content{
			Parts: []part{{Text: cfg.SystemInstruction}},
		}
	}
	if len(cfg.Tools) > 0 {
		msg.Setup.Tools = []toolBundle{{FunctionDeclarations: cfg.Tools}}
	}
	return msg
}

// Events yields the inbound event stream for the current connection.
func (t *Transport) Events() <-chan live.TransportEvent {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.events
}

// SendAudioFrame forwards one captured audio frame as a realtime media chunk.
func (t *Transport) SendAudioFrame(frame pcm.Frame) error {
	return t.sendJSON(realtimeInputMessage{RealtimeInput: realtimeInput{
		MediaChunks: []mediaChunk{{
			MIMEType: frame.MIMEType,
			Data:     pcm.EncodeBase64(frame.Data),
		}},
	}})
}

// SendToolAck answers one tool call with the generic success marker.
func (t *Transport) SendToolAck(id, name string) error {
	return t.sendJSON(toolResponseMessage{ToolResponse: toolResponse{
		FunctionResponses: []functionResponse{{
			ID:       id,
			Name:     name,
			Response: tools.Result(),
		}},
	}})
}

func (t *Transport) sendJSON(v any) error {
	if t.closed.Load() {
		return fmt.Errorf("transport is closed")
	}
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("transport is not connected")
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return conn.WriteJSON(v)
}

// Close tears the current connection down. Idempotent; safe to call on a
// never-connected transport, and a Close racing an in-flight Connect
// handshake aborts that attempt.
func (t *Transport) Close() error {
	t.mu.Lock()
	t.gen++
	conn := t.conn
	open := conn != nil && !t.closed.Load()
	if open {
		t.closed.Store(true)
	}
	t.mu.Unlock()
	if !open {
		return nil
	}

	t.writeMu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(2*time.Second))
	t.writeMu.Unlock()
	return conn.Close()
}

func (t *Transport) readLoop(conn *websocket.Conn, events chan live.TransportEvent) {
	defer close(events)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if t.closed.Load() || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				events <- live.Closed{}
			} else {
				events <- live.TransportError{Err: err}
			}
			return
		}
		t.handleFrame(data, events)
	}
}

// handleFrame decodes one inbound frame into transport events. Malformed or
// unknown frames are skipped; only connection failures end the stream.
func (t *Transport) handleFrame(data []byte, events chan live.TransportEvent) {
	var msg serverMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.logger.Debug("malformed live frame skipped", "error", err)
		return
	}

	switch {
	case msg.ServerContent != nil:
		sc := msg.ServerContent
		if sc.Interrupted {
			events <- live.Interrupted{}
		}
		if sc.ModelTurn != nil {
			for _, p := range sc.ModelTurn.Parts {
				if p.InlineData == nil || p.InlineData.Data == "" {
					continue
				}
				audio, err := pcm.DecodeBase64(p.InlineData.Data)
				if err != nil {
					t.logger.Debug("undecodable audio part skipped", "error", err)
					continue
				}
				events <- live.AudioChunk{Data: audio}
			}
		}
	case msg.ToolCall != nil:
		calls := make([]tools.Request, 0, len(msg.ToolCall.FunctionCalls))
		for _, fc := range msg.ToolCall.FunctionCalls {
			calls = append(calls, tools.Request{ID: fc.ID, Name: fc.Name, Args: fc.Args})
		}
		if len(calls) > 0 {
			events <- live.ToolCalls{Calls: calls}
		}
	case msg.SetupComplete != nil:
		// Already consumed during Connect; a duplicate is harmless.
	default:
		t.logger.Debug("unknown live frame skipped")
	}
}
