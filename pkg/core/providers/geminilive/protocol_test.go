package geminilive

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/FearYourSelf/forge-and-quill/pkg/core/live"
	"github.com/FearYourSelf/forge-and-quill/pkg/core/pcm"
	"github.com/FearYourSelf/forge-and-quill/pkg/core/tools"
)

func collectFrameEvents(t *testing.T, raw string) []live.TransportEvent {
	t.Helper()
	tr := New("test-key")
	events := make(chan live.TransportEvent, 16)
	tr.handleFrame([]byte(raw), events)
	close(events)

	var out []live.TransportEvent
	for ev := range events {
		out = append(out, ev)
	}
	return out
}

func TestHandleFrameAudioChunks(t *testing.T) {
	raw := `{
		"serverContent": {
			"modelTurn": {
				"parts": [
					{"inlineData": {"mimeType": "audio/pcm;rate=24000", "data": "AAEAAQ=="}},
					{"text": "ignored"},
					{"inlineData": {"mimeType": "audio/pcm;rate=24000", "data": "AgME/w=="}}
				]
			}
		}
	}`
	events := collectFrameEvents(t, raw)
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2 audio chunks", len(events))
	}
	first, ok := events[0].(live.AudioChunk)
	if !ok {
		t.Fatalf("events[0] = %T, want AudioChunk", events[0])
	}
	want := []byte{0x00, 0x01, 0x00, 0x01}
	if len(first.Data) != len(want) {
		t.Fatalf("chunk length = %d, want %d", len(first.Data), len(want))
	}
	for i := range want {
		if first.Data[i] != want[i] {
			t.Errorf("chunk[%d] = %#x, want %#x", i, first.Data[i], want[i])
		}
	}
}

func TestHandleFrameInterrupted(t *testing.T) {
	events := collectFrameEvents(t, `{"serverContent": {"interrupted": true}}`)
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if _, ok := events[0].(live.Interrupted); !ok {
		t.Errorf("events[0] = %T, want Interrupted", events[0])
	}
}

func TestHandleFrameToolCalls(t *testing.T) {
	raw := `{
		"toolCall": {
			"functionCalls": [
				{"id": "fc-1", "name": "updateDraft", "args": {"text": "hello", "action": "append"}},
				{"id": "fc-2", "name": "addWorldEntry", "args": {"title": "The Spire", "description": "A tower."}}
			]
		}
	}`
	events := collectFrameEvents(t, raw)
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1 batch", len(events))
	}
	batch, ok := events[0].(live.ToolCalls)
	if !ok {
		t.Fatalf("events[0] = %T, want ToolCalls", events[0])
	}
	if len(batch.Calls) != 2 {
		t.Fatalf("got %d calls, want 2", len(batch.Calls))
	}
	if batch.Calls[0].ID != "fc-1" || batch.Calls[0].Name != "updateDraft" {
		t.Errorf("calls[0] = %+v", batch.Calls[0])
	}
	if got := batch.Calls[0].Args["text"]; got != "hello" {
		t.Errorf("calls[0] text arg = %v, want hello", got)
	}
	if batch.Calls[1].ID != "fc-2" || batch.Calls[1].Name != "addWorldEntry" {
		t.Errorf("calls[1] = %+v", batch.Calls[1])
	}
}

func TestHandleFrameMalformedIsSkipped(t *testing.T) {
	for _, raw := range []string{
		`not json at all`,
		`{"somethingElse": true}`,
		`{"serverContent": {"modelTurn": {"parts": [{"inlineData": {"mimeType": "audio/pcm", "data": "!!!"}}]}}}`,
	} {
		if events := collectFrameEvents(t, raw); len(events) != 0 {
			t.Errorf("frame %q produced %d events, want 0", raw, len(events))
		}
	}
}

func TestBuildSetupShape(t *testing.T) {
	cfg := live.ConnectConfig{
		Model:             "gemini-live-2.5-flash",
		Voice:             "Puck",
		SystemInstruction: "You are a co-writer.",
		Tools:             tools.Declarations(tools.NameUpdateDraft),
	}
	data, err := json.Marshal(buildSetup(cfg))
	if err != nil {
		t.Fatalf("marshal setup: %v", err)
	}
	s := string(data)

	for _, want := range []string{
		`"model":"models/gemini-live-2.5-flash"`,
		`"responseModalities":["AUDIO"]`,
		`"voiceName":"Puck"`,
		`"You are a co-writer."`,
		`"functionDeclarations"`,
		`"createFullCharacter"`,
		`"updateDraft"`,
		`"updateCharacterProfile"`,
		`"addWorldEntry"`,
	} {
		if !strings.Contains(s, want) {
			t.Errorf("setup JSON missing %s", want)
		}
	}
	if strings.Contains(s, `"updateStory"`) {
		t.Error("setup JSON advertises updateStory; live surface uses updateDraft")
	}
}

func TestRealtimeInputShape(t *testing.T) {
	frame := pcm.EncodeFrame([]float32{0, 0.5})
	msg := realtimeInputMessage{RealtimeInput: realtimeInput{
		MediaChunks: []mediaChunk{{
			MIMEType: frame.MIMEType,
			Data:     pcm.EncodeBase64(frame.Data),
		}},
	}}
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal realtime input: %v", err)
	}
	s := string(data)
	if !strings.Contains(s, `"mimeType":"audio/pcm;rate=16000"`) {
		t.Errorf("realtime input JSON missing capture mime type: %s", s)
	}
	if !strings.Contains(s, `"realtimeInput"`) || !strings.Contains(s, `"mediaChunks"`) {
		t.Errorf("realtime input JSON missing envelope keys: %s", s)
	}
}

func TestToolResponseShape(t *testing.T) {
	msg := toolResponseMessage{ToolResponse: toolResponse{
		FunctionResponses: []functionResponse{{
			ID:       "fc-1",
			Name:     "updateDraft",
			Response: tools.Result(),
		}},
	}}
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal tool response: %v", err)
	}
	s := string(data)
	for _, want := range []string{`"toolResponse"`, `"functionResponses"`, `"id":"fc-1"`, `"result":"ok"`} {
		if !strings.Contains(s, want) {
			t.Errorf("tool response JSON missing %s: %s", want, s)
		}
	}
}

func TestSendBeforeConnectFails(t *testing.T) {
	tr := New("test-key")
	if err := tr.SendAudioFrame(pcm.EncodeFrame([]float32{0})); err == nil {
		t.Error("SendAudioFrame on disconnected transport should fail")
	}
	if err := tr.SendToolAck("fc-1", "updateDraft"); err == nil {
		t.Error("SendToolAck on disconnected transport should fail")
	}
	if err := tr.Close(); err != nil {
		t.Errorf("Close on disconnected transport: %v", err)
	}
}

func TestCloseWhileConnectingAbortsAttempt(t *testing.T) {
	tr := New("test-key")
	events := make(chan live.TransportEvent, 1)

	// Close lands between the generation snapshot at the top of Connect
	// and the publish of the handshaken connection.
	if err := tr.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := tr.install(nil, events, 0); err == nil {
		t.Fatal("a connect attempt that raced Close must be discarded")
	}
	if err := tr.SendToolAck("fc-1", "updateDraft"); err == nil {
		t.Error("transport must stay unusable after the aborted attempt")
	}

	// Without an intervening Close the same attempt publishes normally.
	fresh := New("test-key")
	if err := fresh.install(nil, events, 0); err != nil {
		t.Fatalf("install on untouched transport: %v", err)
	}
}
