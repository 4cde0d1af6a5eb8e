package tools

import (
	"fmt"
	"testing"

	"github.com/FearYourSelf/forge-and-quill/pkg/core/document"
)

func newTestDispatcher() (*Dispatcher, *document.Store) {
	docs := document.NewStore()
	d := NewDispatcher(docs, nil)
	seq := 0
	d.newID = func() string {
		seq++
		return fmt.Sprintf("test-id-%d", seq)
	}
	return d, docs
}

func TestDispatchUpdateDraftAppendAndReplace(t *testing.T) {
	d, docs := newTestDispatcher()
	docs.Reset(document.Snapshot{Draft: "Hello"})

	d.Dispatch(Request{ID: "1", Name: NameUpdateDraft, Args: map[string]any{
		"text": "World", "action": "append",
	}})
	if got := docs.Snapshot().Draft; got != "Hello\n\nWorld" {
		t.Errorf("append: expected %q, got %q", "Hello\n\nWorld", got)
	}

	docs.Reset(document.Snapshot{Draft: "Hello"})
	d.Dispatch(Request{ID: "2", Name: NameUpdateDraft, Args: map[string]any{
		"text": "New", "action": "replace",
	}})
	if got := docs.Snapshot().Draft; got != "New" {
		t.Errorf("replace: expected %q, got %q", "New", got)
	}
}

func TestDispatchUpdateStoryAlias(t *testing.T) {
	d, docs := newTestDispatcher()
	d.Dispatch(Request{ID: "1", Name: NameUpdateStory, Args: map[string]any{"text": "Once"}})
	if got := docs.Snapshot().Draft; got != "Once" {
		t.Errorf("updateStory must behave as updateDraft, got draft %q", got)
	}
}

func TestDispatchCreateFullCharacterMerge(t *testing.T) {
	d, docs := newTestDispatcher()
	docs.Reset(document.Snapshot{Profile: document.Profile{Name: "Ava"}})

	d.Dispatch(Request{ID: "1", Name: NameCreateFullCharacter, Args: map[string]any{
		"name":        "",
		"role":        "Detective",
		"personality": "Bold",
		"draft_intro": "A dark night.",
		"world_lore": []any{
			map[string]any{"category": "Lore", "title": "T", "description": "D"},
		},
	}})

	snap := docs.Snapshot()
	if snap.Profile.Name != "Ava" {
		t.Errorf("empty name must not overwrite, got %q", snap.Profile.Name)
	}
	if snap.Profile.Role != "Detective" {
		t.Errorf("expected role Detective, got %q", snap.Profile.Role)
	}
	if snap.Draft != "A dark night." {
		t.Errorf("expected draft set to intro, got %q", snap.Draft)
	}
	if len(snap.World) != 1 {
		t.Fatalf("expected exactly one world entry, got %d", len(snap.World))
	}
	if snap.World[0].ID == "" {
		t.Error("world entry must get a fresh id")
	}
	if snap.World[0].Title != "T" || snap.World[0].Description != "D" {
		t.Errorf("unexpected world entry %+v", snap.World[0])
	}
}

func TestDispatchCreateFullCharacterSkipsIncompleteLore(t *testing.T) {
	d, docs := newTestDispatcher()
	d.Dispatch(Request{ID: "1", Name: NameCreateFullCharacter, Args: map[string]any{
		"name": "Ava", "role": "Bard", "personality": "Wry", "draft_intro": "x",
		"world_lore": []any{
			map[string]any{"title": "only title"},
			"not an object",
			map[string]any{"title": "ok", "description": "ok"},
		},
	}})
	if got := len(docs.Snapshot().World); got != 1 {
		t.Errorf("expected 1 valid lore entry, got %d", got)
	}
}

func TestDispatchUpdateCharacterProfile(t *testing.T) {
	d, docs := newTestDispatcher()

	d.Dispatch(Request{ID: "1", Name: NameUpdateCharacterProfile, Args: map[string]any{
		"field": "backstory", "value": "Raised at sea.",
	}})
	if got := docs.Snapshot().Profile.Backstory; got != "Raised at sea." {
		t.Errorf("expected backstory set, got %q", got)
	}

	// Unknown field and empty value are silent no-ops.
	before := docs.Snapshot()
	d.Dispatch(Request{ID: "2", Name: NameUpdateCharacterProfile, Args: map[string]any{
		"field": "alignment", "value": "chaotic",
	}})
	d.Dispatch(Request{ID: "3", Name: NameUpdateCharacterProfile, Args: map[string]any{
		"field": "name", "value": "",
	}})
	after := docs.Snapshot()
	if after.Profile != before.Profile {
		t.Errorf("no-op dispatches must not change the profile: %+v vs %+v", before.Profile, after.Profile)
	}
}

func TestDispatchAddWorldEntry(t *testing.T) {
	d, docs := newTestDispatcher()

	d.Dispatch(Request{ID: "1", Name: NameAddWorldEntry, Args: map[string]any{
		"category": "Magic", "title": "Runes", "description": "Old script.",
	}})
	snap := docs.Snapshot()
	if len(snap.World) != 1 {
		t.Fatalf("expected one entry, got %d", len(snap.World))
	}
	if snap.World[0].Category != document.CategoryMagic {
		t.Errorf("expected category Magic, got %q", snap.World[0].Category)
	}

	// Missing description: no change, the caller still acks.
	d.Dispatch(Request{ID: "2", Name: NameAddWorldEntry, Args: map[string]any{
		"category": "Lore", "title": "",
	}})
	if got := len(docs.Snapshot().World); got != 1 {
		t.Errorf("incomplete entry must be a no-op, got %d entries", got)
	}

	// Unknown category defaults to Lore.
	d.Dispatch(Request{ID: "3", Name: NameAddWorldEntry, Args: map[string]any{
		"category": "Weapon", "title": "Axe", "description": "Sharp.",
	}})
	snap = docs.Snapshot()
	if snap.World[len(snap.World)-1].Category != document.CategoryLore {
		t.Errorf("unknown category must normalize to Lore, got %q", snap.World[len(snap.World)-1].Category)
	}
}

func TestDispatchUnknownNameIsNoop(t *testing.T) {
	d, docs := newTestDispatcher()
	docs.Reset(document.Snapshot{Draft: "keep"})
	d.Dispatch(Request{ID: "1", Name: "eraseEverything", Args: map[string]any{"text": "x"}})
	if got := docs.Snapshot().Draft; got != "keep" {
		t.Errorf("unknown tool must not mutate, got draft %q", got)
	}
}

func TestDeclarationsAliases(t *testing.T) {
	names := func(decls []Declaration) map[string]bool {
		m := make(map[string]bool, len(decls))
		for _, d := range decls {
			m[d.Name] = true
		}
		return m
	}

	live := names(Declarations(NameUpdateStory))
	if !live[NameUpdateStory] || live[NameUpdateDraft] {
		t.Errorf("expected updateStory alias only, got %v", live)
	}

	chat := names(Declarations(NameUpdateDraft))
	if !chat[NameUpdateDraft] || chat[NameUpdateStory] {
		t.Errorf("expected updateDraft alias only, got %v", chat)
	}

	for _, decls := range [][]Declaration{Declarations(NameUpdateStory), Declarations(NameUpdateDraft)} {
		if len(decls) != 4 {
			t.Errorf("expected 4 declarations, got %d", len(decls))
		}
	}
}
