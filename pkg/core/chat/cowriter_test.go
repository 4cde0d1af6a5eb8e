package chat

import (
	"io"
	"log/slog"
	"testing"

	"google.golang.org/genai"

	"github.com/FearYourSelf/forge-and-quill/pkg/core/document"
	"github.com/FearYourSelf/forge-and-quill/pkg/core/tools"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestApplyCallsFunnelsThroughDispatcher(t *testing.T) {
	docs := document.NewStore()
	c := &CoWriter{
		docs:     docs,
		dispatch: tools.NewDispatcher(docs, nil),
		logger:   discardLogger(),
	}

	parts := c.applyCalls([]*genai.FunctionCall{
		{ID: "fc-1", Name: tools.NameUpdateCharacterProfile, Args: map[string]any{"field": "name", "value": "Ilsa"}},
		nil,
		{ID: "fc-2", Name: tools.NameUpdateStory, Args: map[string]any{"text": "She woke at dawn."}},
	})

	if len(parts) != 2 {
		t.Fatalf("got %d response parts, want 2", len(parts))
	}
	for i, wantID := range []string{"fc-1", "fc-2"} {
		fr := parts[i].FunctionResponse
		if fr == nil {
			t.Fatalf("parts[%d] has no function response", i)
		}
		if fr.ID != wantID {
			t.Errorf("parts[%d].ID = %q, want %q", i, fr.ID, wantID)
		}
		if got := fr.Response["result"]; got != "ok" {
			t.Errorf("parts[%d] result = %v, want ok", i, got)
		}
	}

	snap := docs.Snapshot()
	if snap.Profile.Name != "Ilsa" {
		t.Errorf("profile name = %q, want Ilsa", snap.Profile.Name)
	}
	if snap.Draft != "She woke at dawn." {
		t.Errorf("draft = %q", snap.Draft)
	}
}

func TestApplyCallsUnknownNameStillAcked(t *testing.T) {
	docs := document.NewStore()
	c := &CoWriter{
		docs:     docs,
		dispatch: tools.NewDispatcher(docs, nil),
		logger:   discardLogger(),
	}

	parts := c.applyCalls([]*genai.FunctionCall{
		{ID: "fc-9", Name: "deleteEverything", Args: map[string]any{}},
	})
	if len(parts) != 1 {
		t.Fatalf("got %d parts, want 1", len(parts))
	}
	if parts[0].FunctionResponse.ID != "fc-9" {
		t.Errorf("ack id = %q, want fc-9", parts[0].FunctionResponse.ID)
	}
	if snap := docs.Snapshot(); snap.Draft != "" || snap.Profile.Name != "" {
		t.Error("unknown tool call mutated the document")
	}
}

func TestDeclaredToolsUseStoryAlias(t *testing.T) {
	bundles := declaredTools()
	if len(bundles) != 1 {
		t.Fatalf("got %d tool bundles, want 1", len(bundles))
	}

	names := map[string]bool{}
	for _, fn := range bundles[0].FunctionDeclarations {
		names[fn.Name] = true
	}
	for _, want := range []string{
		tools.NameCreateFullCharacter,
		tools.NameUpdateStory,
		tools.NameUpdateCharacterProfile,
		tools.NameAddWorldEntry,
	} {
		if !names[want] {
			t.Errorf("missing declaration %q", want)
		}
	}
	if names[tools.NameUpdateDraft] {
		t.Error("text surface should advertise updateStory, not updateDraft")
	}
}

func TestToGenAISchemaConversion(t *testing.T) {
	in := tools.Schema{
		Type:     "OBJECT",
		Required: []string{"title"},
		Properties: map[string]tools.Schema{
			"title":    {Type: "STRING"},
			"category": {Type: "STRING", Enum: []string{"lore", "magic"}},
			"entries": {
				Type:  "ARRAY",
				Items: &tools.Schema{Type: "OBJECT"},
			},
		},
	}

	out := toGenAISchema(in)
	if out.Type != genai.TypeObject {
		t.Errorf("type = %v, want OBJECT", out.Type)
	}
	if len(out.Required) != 1 || out.Required[0] != "title" {
		t.Errorf("required = %v", out.Required)
	}
	if out.Properties["category"].Enum[1] != "magic" {
		t.Errorf("enum not preserved: %v", out.Properties["category"].Enum)
	}
	if out.Properties["entries"].Items == nil || out.Properties["entries"].Items.Type != genai.TypeObject {
		t.Error("nested items not converted")
	}
}
