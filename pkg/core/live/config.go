package live

import (
	"fmt"
	"strings"

	"github.com/FearYourSelf/forge-and-quill/pkg/core/document"
)

// State represents the current session state.
type State int

const (
	// StateIdle is the initial state; no resources are held.
	StateIdle State = iota
	// StateConnecting holds acquired audio devices while the transport dials.
	StateConnecting
	// StateConnected streams audio both ways and dispatches tool calls.
	StateConnected
	// StateError is terminal for the attempt; a retry re-enters Connecting.
	StateError
	// StateClosed marks a session whose event loop has fully unwound.
	StateClosed
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateError:
		return "ERROR"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// DefaultContextBudget bounds the system-instruction snapshot, keeping the
// prompt size fixed no matter how long the draft grows.
const DefaultContextBudget = 4000

// SessionConfig configures one live brainstorming session.
type SessionConfig struct {
	// Model is the provider live model. Default: gemini-live-2.5-flash.
	Model string

	// Voice is the user-selected provider voice name.
	Voice string

	// Persona is the fixed co-writer instruction prefixed to the document
	// snapshot.
	Persona string

	// ContextBudget caps the snapshot length in characters.
	ContextBudget int
}

// DefaultSessionConfig returns a SessionConfig with sensible defaults.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Model:         "gemini-live-2.5-flash",
		Voice:         "Puck",
		Persona:       "You are Geny, a collaborative character co-writer. Brainstorm out loud with the author and use the provided tools to update their document directly.",
		ContextBudget: DefaultContextBudget,
	}
}

// ContextSnapshot renders the current document into the system instruction,
// truncated to at most budget characters.
func ContextSnapshot(persona string, snap document.Snapshot, budget int) string {
	if budget <= 0 {
		budget = DefaultContextBudget
	}

	var b strings.Builder
	if persona != "" {
		b.WriteString(persona)
		b.WriteString("\n\n")
	}

	b.WriteString("Current character profile:\n")
	fmt.Fprintf(&b, "- name: %s\n", snap.Profile.Name)
	fmt.Fprintf(&b, "- role: %s\n", snap.Profile.Role)
	fmt.Fprintf(&b, "- age: %s\n", snap.Profile.Age)
	fmt.Fprintf(&b, "- personality: %s\n", snap.Profile.Personality)
	fmt.Fprintf(&b, "- backstory: %s\n", snap.Profile.Backstory)
	fmt.Fprintf(&b, "- biography: %s\n", snap.Profile.Biography)

	if len(snap.World) > 0 {
		b.WriteString("\nWorld lore:\n")
		for _, entry := range snap.World {
			fmt.Fprintf(&b, "- [%s] %s: %s\n", entry.Category, entry.Title, entry.Description)
		}
	}

	b.WriteString("\nCurrent draft:\n")
	b.WriteString(snap.Draft)

	out := b.String()
	runes := []rune(out)
	if len(runes) > budget {
		out = string(runes[:budget])
	}
	return out
}
