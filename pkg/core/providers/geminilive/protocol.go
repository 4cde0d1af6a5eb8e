package geminilive

import "github.com/FearYourSelf/forge-and-quill/pkg/core/tools"

// Wire types for the BidiGenerateContent websocket protocol. Field names
// follow the provider's JSON casing exactly; everything here stays internal
// to this package.

type setupMessage struct {
	Setup setupPayload `json:"setup"`
}

type setupPayload struct {
	Model             string           `json:"model"`
	GenerationConfig  generationConfig `json:"generationConfig"`
	SystemInstruction *content         `json:"systemInstruction,omitempty"`
	Tools             []toolBundle     `json:"tools,omitempty"`
}

type generationConfig struct {
	ResponseModalities []string      `json:"responseModalities"`
	SpeechConfig       *speechConfig `json:"speechConfig,omitempty"`
}

type speechConfig struct {
	VoiceConfig voiceConfig `json:"voiceConfig"`
}

type voiceConfig struct {
	PrebuiltVoiceConfig prebuiltVoiceConfig `json:"prebuiltVoiceConfig"`
}

type prebuiltVoiceConfig struct {
	VoiceName string `json:"voiceName"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type toolBundle struct {
	FunctionDeclarations []tools.Declaration `json:"functionDeclarations"`
}

type realtimeInputMessage struct {
	RealtimeInput realtimeInput `json:"realtimeInput"`
}

type realtimeInput struct {
	MediaChunks []mediaChunk `json:"mediaChunks"`
}

type mediaChunk struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type toolResponseMessage struct {
	ToolResponse toolResponse `json:"toolResponse"`
}

type toolResponse struct {
	FunctionResponses []functionResponse `json:"functionResponses"`
}

type functionResponse struct {
	ID       string         `json:"id,omitempty"`
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

// serverMessage is the inbound frame envelope. Exactly one field is set per
// frame; frames with none set are unknown and skipped.
type serverMessage struct {
	SetupComplete *struct{}      `json:"setupComplete,omitempty"`
	ServerContent *serverContent `json:"serverContent,omitempty"`
	ToolCall      *toolCallFrame `json:"toolCall,omitempty"`
}

type serverContent struct {
	ModelTurn    *content `json:"modelTurn,omitempty"`
	Interrupted  bool     `json:"interrupted,omitempty"`
	TurnComplete bool     `json:"turnComplete,omitempty"`
}

type toolCallFrame struct {
	FunctionCalls []functionCall `json:"functionCalls"`
}

type functionCall struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}
