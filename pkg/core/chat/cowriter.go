// Package chat is the text surface of the co-writer: a turn-based
// conversation that mutates the same character document through the same
// tool dispatcher as the live voice session.
package chat

import (
	"context"
	"fmt"
	"log/slog"

	"google.golang.org/genai"

	"github.com/FearYourSelf/forge-and-quill/pkg/core/document"
	"github.com/FearYourSelf/forge-and-quill/pkg/core/live"
	"github.com/FearYourSelf/forge-and-quill/pkg/core/tools"
)

// DefaultModel is the text model used when Config.Model is empty.
const DefaultModel = "gemini-2.5-flash"

// maxToolRounds bounds the tool loop per user turn so a model stuck calling
// tools cannot spin forever.
const maxToolRounds = 8

// Config configures the text co-writer.
type Config struct {
	Model         string
	Persona       string
	ContextBudget int
}

// CoWriter drives a tool-enabled chat against the generative model. All
// document edits flow through the shared dispatcher, so text chat and live
// voice stay consistent with each other.
type CoWriter struct {
	client   *genai.Client
	dispatch *tools.Dispatcher
	docs     *document.Store
	cfg      Config
	logger   *slog.Logger

	chat *genai.Chat
}

// NewCoWriter creates a co-writer backed by the Gemini API.
func NewCoWriter(ctx context.Context, apiKey string, cfg Config, docs *document.Store, dispatch *tools.Dispatcher, logger *slog.Logger) (*CoWriter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("missing API key")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Persona == "" {
		cfg.Persona = live.DefaultSessionConfig().Persona
	}
	if cfg.ContextBudget <= 0 {
		cfg.ContextBudget = live.DefaultContextBudget
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &CoWriter{
		client:   client,
		dispatch: dispatch,
		docs:     docs,
		cfg:      cfg,
		logger:   logger,
	}, nil
}

// Send delivers one user turn, runs the tool loop to completion, and returns
// the model's final text reply.
func (c *CoWriter) Send(ctx context.Context, text string) (string, error) {
	if c.chat == nil {
		if err := c.startChat(ctx); err != nil {
			return "", err
		}
	}

	resp, err := c.chat.SendMessage(ctx, genai.Part{Text: text})
	if err != nil {
		return "", fmt.Errorf("send chat message: %w", err)
	}

	for round := 0; round < maxToolRounds; round++ {
		calls := resp.FunctionCalls()
		if len(calls) == 0 {
			return resp.Text(), nil
		}
		resp, err = c.chat.SendMessage(ctx, c.applyCalls(calls)...)
		if err != nil {
			return "", fmt.Errorf("send tool responses: %w", err)
		}
	}
	return resp.Text(), nil
}

// startChat opens the session with a fresh document snapshot as system
// instruction. The snapshot is bound at chat start; tool calls afterwards
// keep the model's view current through its own call results.
func (c *CoWriter) startChat(ctx context.Context) error {
	instruction := live.ContextSnapshot(c.cfg.Persona, c.docs.Snapshot(), c.cfg.ContextBudget)

	chat, err := c.client.Chats.Create(ctx, c.cfg.Model, &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: instruction}},
		},
		Tools: declaredTools(),
	}, nil)
	if err != nil {
		return fmt.Errorf("create chat: %w", err)
	}
	c.chat = chat
	return nil
}

// applyCalls dispatches each function call in order and builds the echoed
// responses, one per call.
func (c *CoWriter) applyCalls(calls []*genai.FunctionCall) []genai.Part {
	parts := make([]genai.Part, 0, len(calls))
	for _, call := range calls {
		if call == nil {
			continue
		}
		c.dispatch.Dispatch(tools.Request{ID: call.ID, Name: call.Name, Args: call.Args})
		parts = append(parts, genai.Part{FunctionResponse: &genai.FunctionResponse{
			ID:       call.ID,
			Name:     call.Name,
			Response: tools.Result(),
		}})
		c.logger.Debug("chat tool call applied", "id", call.ID, "name", call.Name)
	}
	return parts
}

// declaredTools converts the shared declarations into the client's schema
// types. The text surface advertises the updateStory alias of the draft
// operation.
func declaredTools() []*genai.Tool {
	decls := tools.Declarations(tools.NameUpdateStory)
	fns := make([]*genai.FunctionDeclaration, 0, len(decls))
	for _, d := range decls {
		fns = append(fns, &genai.FunctionDeclaration{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  toGenAISchema(d.Parameters),
		})
	}
	return []*genai.Tool{{FunctionDeclarations: fns}}
}

func toGenAISchema(s tools.Schema) *genai.Schema {
	out := &genai.Schema{
		Type:        genai.Type(s.Type),
		Description: s.Description,
		Required:    append([]string(nil), s.Required...),
		Enum:        append([]string(nil), s.Enum...),
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, prop := range s.Properties {
			out.Properties[name] = toGenAISchema(prop)
		}
	}
	if s.Items != nil {
		out.Items = toGenAISchema(*s.Items)
	}
	return out
}
