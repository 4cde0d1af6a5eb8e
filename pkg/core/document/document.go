// Package document holds the shared character document: profile fields, the
// narrative draft, and the world-lore list. All mutation funnels through a
// single serialized entry point so tool dispatches and user edits never tear
// each other's read-modify-write.
package document

import (
	"strings"
	"sync"
)

// Profile is the structured character sheet.
type Profile struct {
	Name        string `json:"name"`
	Role        string `json:"role"`
	Age         string `json:"age"`
	Personality string `json:"personality"`
	Backstory   string `json:"backstory"`
	Biography   string `json:"biography"`
}

// Field names accepted by profile mutations.
const (
	FieldName        = "name"
	FieldRole        = "role"
	FieldAge         = "age"
	FieldPersonality = "personality"
	FieldBackstory   = "backstory"
	FieldBiography   = "biography"
)

// World-entry categories form a closed set; unknown values normalize to Lore.
const (
	CategoryLore         = "Lore"
	CategoryLocation     = "Location"
	CategoryRelationship = "Relationship"
	CategoryMagic        = "Magic"
)

// NormalizeCategory maps arbitrary input onto the closed category set.
func NormalizeCategory(category string) string {
	switch strings.TrimSpace(category) {
	case CategoryLocation:
		return CategoryLocation
	case CategoryRelationship:
		return CategoryRelationship
	case CategoryMagic:
		return CategoryMagic
	default:
		return CategoryLore
	}
}

// WorldEntry is one item of world lore.
type WorldEntry struct {
	ID          string `json:"id"`
	Category    string `json:"category"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Snapshot is an immutable copy of the full document.
type Snapshot struct {
	Profile Profile      `json:"profile"`
	Draft   string       `json:"draft"`
	World   []WorldEntry `json:"world"`
}

// DraftAction selects how a draft mutation combines with existing text.
type DraftAction string

const (
	// DraftAppend adds text after a blank-line separator.
	DraftAppend DraftAction = "append"
	// DraftReplace discards the existing draft.
	DraftReplace DraftAction = "replace"
)

// Mutation is one atomic merge-update of the document. Zero-value fields are
// left untouched; only non-empty profile values overwrite.
type Mutation struct {
	Profile     map[string]string
	Draft       *DraftChange
	WorldAppend []WorldEntry
}

// DraftChange rewrites or extends the draft text.
type DraftChange struct {
	Text   string
	Action DraftAction
}

// IsZero reports whether applying the mutation would change nothing.
func (m Mutation) IsZero() bool {
	return len(m.Profile) == 0 && m.Draft == nil && len(m.WorldAppend) == 0
}

// ApplyHook observes every applied mutation with the state it replaced.
// External collaborators (undo history, auto-save) hang off this seam; the
// store itself never persists anything.
type ApplyHook func(before Snapshot, m Mutation)

// Store owns the document state. Safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	profile Profile
	draft   string
	world   []WorldEntry
	onApply ApplyHook
}

// NewStore returns an empty document store.
func NewStore() *Store {
	return &Store{}
}

// SetApplyHook registers the external persistence/undo collaborator.
func (s *Store) SetApplyHook(hook ApplyHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onApply = hook
}

// Reset replaces the whole document, e.g. when loading a saved draft.
func (s *Store) Reset(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profile = snap.Profile
	s.draft = snap.Draft
	s.world = append([]WorldEntry(nil), snap.World...)
}

// Snapshot returns a copy of the current document.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{
		Profile: s.profile,
		Draft:   s.draft,
		World:   append([]WorldEntry(nil), s.world...),
	}
}

// Apply merges one mutation into the document atomically. No partial
// application is ever observable: the lock is held for the whole merge and
// the hook sees the pre-mutation snapshot.
func (s *Store) Apply(m Mutation) {
	if m.IsZero() {
		return
	}

	s.mu.Lock()
	before := s.snapshotLocked()

	for field, value := range m.Profile {
		if strings.TrimSpace(value) == "" {
			continue
		}
		switch field {
		case FieldName:
			s.profile.Name = value
		case FieldRole:
			s.profile.Role = value
		case FieldAge:
			s.profile.Age = value
		case FieldPersonality:
			s.profile.Personality = value
		case FieldBackstory:
			s.profile.Backstory = value
		case FieldBiography:
			s.profile.Biography = value
		}
	}

	if m.Draft != nil {
		switch m.Draft.Action {
		case DraftReplace:
			s.draft = m.Draft.Text
		default:
			if s.draft == "" {
				s.draft = m.Draft.Text
			} else {
				s.draft = s.draft + "\n\n" + m.Draft.Text
			}
		}
	}

	s.world = append(s.world, m.WorldAppend...)

	hook := s.onApply
	s.mu.Unlock()

	if hook != nil {
		hook(before, m)
	}
}
