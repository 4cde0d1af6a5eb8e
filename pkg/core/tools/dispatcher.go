// Package tools converts structured function-call requests from the
// generative model into atomic mutations of the shared character document.
// Both the live-voice transport and the text-chat co-writer funnel through
// the same dispatcher.
package tools

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/FearYourSelf/forge-and-quill/pkg/core/document"
)

// Request is one function-call request as delivered by a transport.
// IDs are unique per request and answered exactly once by the caller.
type Request struct {
	ID   string
	Name string
	Args map[string]any
}

// Result is the generic success marker echoed back to the provider. The
// acknowledgement never signals semantic failure: the model cannot correct
// its own call, so invalid arguments degrade to a silent no-op instead.
func Result() map[string]any {
	return map[string]any{"result": "ok"}
}

// Dispatcher applies tool-call requests to the document store. Dispatch calls
// are serialized so two rapid calls cannot interleave their read-modify-write
// of the same field list.
type Dispatcher struct {
	mu     sync.Mutex
	docs   *document.Store
	logger *slog.Logger
	newID  func() string
}

// NewDispatcher creates a dispatcher bound to the shared document store.
func NewDispatcher(docs *document.Store, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		docs:   docs,
		logger: logger,
		newID:  func() string { return uuid.NewString() },
	}
}

// Dispatch applies exactly one document mutation for the request. Unknown
// names and incomplete arguments are silent no-ops; the caller still sends
// the acknowledgement either way.
func (d *Dispatcher) Dispatch(req Request) {
	d.mu.Lock()
	defer d.mu.Unlock()

	m, ok := d.mutationFor(req)
	if !ok {
		d.logger.Debug("tool call skipped", "id", req.ID, "name", req.Name)
		return
	}
	d.docs.Apply(m)
	d.logger.Debug("tool call applied", "id", req.ID, "name", req.Name)
}

func (d *Dispatcher) mutationFor(req Request) (document.Mutation, bool) {
	switch req.Name {
	case NameCreateFullCharacter:
		return d.createFullCharacter(req.Args)
	case NameUpdateDraft, NameUpdateStory:
		return updateDraft(req.Args)
	case NameUpdateCharacterProfile:
		return updateProfile(req.Args)
	case NameAddWorldEntry:
		return d.addWorldEntry(req.Args)
	default:
		return document.Mutation{}, false
	}
}

func (d *Dispatcher) createFullCharacter(args map[string]any) (document.Mutation, bool) {
	m := document.Mutation{Profile: map[string]string{}}

	// Only non-empty values overwrite; omitted fields keep their value.
	for _, field := range []string{document.FieldName, document.FieldRole, document.FieldPersonality} {
		if v := stringArg(args, field); v != "" {
			m.Profile[field] = v
		}
	}
	if intro := stringArg(args, "draft_intro"); intro != "" {
		m.Draft = &document.DraftChange{Text: intro, Action: document.DraftReplace}
	}

	for _, raw := range sliceArg(args, "world_lore") {
		entry, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		title := stringArg(entry, "title")
		description := stringArg(entry, "description")
		if title == "" || description == "" {
			continue
		}
		m.WorldAppend = append(m.WorldAppend, document.WorldEntry{
			ID:          d.newID(),
			Category:    document.NormalizeCategory(stringArg(entry, "category")),
			Title:       title,
			Description: description,
		})
	}

	return m, !m.IsZero()
}

func updateDraft(args map[string]any) (document.Mutation, bool) {
	text := stringArg(args, "text")
	if text == "" {
		return document.Mutation{}, false
	}
	action := document.DraftAppend
	if stringArg(args, "action") == string(document.DraftReplace) {
		action = document.DraftReplace
	}
	return document.Mutation{Draft: &document.DraftChange{Text: text, Action: action}}, true
}

func updateProfile(args map[string]any) (document.Mutation, bool) {
	field := stringArg(args, "field")
	value := stringArg(args, "value")
	if field == "" || value == "" {
		return document.Mutation{}, false
	}
	switch field {
	case document.FieldName, document.FieldRole, document.FieldAge,
		document.FieldPersonality, document.FieldBackstory, document.FieldBiography:
		return document.Mutation{Profile: map[string]string{field: value}}, true
	default:
		return document.Mutation{}, false
	}
}

func (d *Dispatcher) addWorldEntry(args map[string]any) (document.Mutation, bool) {
	title := stringArg(args, "title")
	description := stringArg(args, "description")
	if title == "" || description == "" {
		return document.Mutation{}, false
	}
	return document.Mutation{WorldAppend: []document.WorldEntry{{
		ID:          d.newID(),
		Category:    document.NormalizeCategory(stringArg(args, "category")),
		Title:       title,
		Description: description,
	}}}, true
}

func stringArg(args map[string]any, key string) string {
	if args == nil {
		return ""
	}
	s, _ := args[key].(string)
	return strings.TrimSpace(s)
}

func sliceArg(args map[string]any, key string) []any {
	if args == nil {
		return nil
	}
	s, _ := args[key].([]any)
	return s
}
