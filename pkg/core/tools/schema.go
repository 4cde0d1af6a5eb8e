package tools

import "github.com/FearYourSelf/forge-and-quill/pkg/core/document"

// Tool names form a closed set. updateDraft and updateStory are two accepted
// names for the same operation; which one the model sees depends on the
// calling surface (live voice vs text chat).
const (
	NameCreateFullCharacter    = "createFullCharacter"
	NameUpdateDraft            = "updateDraft"
	NameUpdateStory            = "updateStory"
	NameUpdateCharacterProfile = "updateCharacterProfile"
	NameAddWorldEntry          = "addWorldEntry"
)

// Schema is a JSON-schema-like parameter description sent to the provider at
// connect time.
type Schema struct {
	Type        string            `json:"type"`
	Description string            `json:"description,omitempty"`
	Properties  map[string]Schema `json:"properties,omitempty"`
	Required    []string          `json:"required,omitempty"`
	Enum        []string          `json:"enum,omitempty"`
	Items       *Schema           `json:"items,omitempty"`
}

// Declaration describes one callable tool.
type Declaration struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Parameters  Schema `json:"parameters"`
}

var categoryEnum = []string{
	document.CategoryLore,
	document.CategoryLocation,
	document.CategoryRelationship,
	document.CategoryMagic,
}

var profileFieldEnum = []string{
	document.FieldName,
	document.FieldRole,
	document.FieldAge,
	document.FieldPersonality,
	document.FieldBackstory,
	document.FieldBiography,
}

// Declarations returns the tool schemas declared to the provider.
// draftName selects which alias of the draft operation is advertised.
func Declarations(draftName string) []Declaration {
	if draftName != NameUpdateStory {
		draftName = NameUpdateDraft
	}
	return []Declaration{
		{
			Name:        NameCreateFullCharacter,
			Description: "Create a complete character in one shot: profile, opening draft, and initial world lore.",
			Parameters: Schema{
				Type: "OBJECT",
				Properties: map[string]Schema{
					"name":        {Type: "STRING", Description: "Character name."},
					"role":        {Type: "STRING", Description: "Narrative role or archetype."},
					"personality": {Type: "STRING", Description: "Personality summary."},
					"draft_intro": {Type: "STRING", Description: "Opening draft paragraph(s)."},
					"world_lore": {
						Type:        "ARRAY",
						Description: "Initial world entries.",
						Items: &Schema{
							Type: "OBJECT",
							Properties: map[string]Schema{
								"category":    {Type: "STRING", Enum: categoryEnum},
								"title":       {Type: "STRING"},
								"description": {Type: "STRING"},
							},
							Required: []string{"title", "description"},
						},
					},
				},
				Required: []string{"name", "role", "personality", "draft_intro"},
			},
		},
		{
			Name:        draftName,
			Description: "Append to or replace the narrative draft.",
			Parameters: Schema{
				Type: "OBJECT",
				Properties: map[string]Schema{
					"text": {Type: "STRING", Description: "Text to add or substitute."},
					"action": {
						Type:        "STRING",
						Description: "append (default) or replace.",
						Enum:        []string{string(document.DraftAppend), string(document.DraftReplace)},
					},
				},
				Required: []string{"text"},
			},
		},
		{
			Name:        NameUpdateCharacterProfile,
			Description: "Set a single character profile field.",
			Parameters: Schema{
				Type: "OBJECT",
				Properties: map[string]Schema{
					"field": {Type: "STRING", Enum: profileFieldEnum},
					"value": {Type: "STRING"},
				},
				Required: []string{"field", "value"},
			},
		},
		{
			Name:        NameAddWorldEntry,
			Description: "Add one world-lore entry.",
			Parameters: Schema{
				Type: "OBJECT",
				Properties: map[string]Schema{
					"category":    {Type: "STRING", Enum: categoryEnum},
					"title":       {Type: "STRING"},
					"description": {Type: "STRING"},
				},
				Required: []string{"title", "description"},
			},
		},
	}
}
