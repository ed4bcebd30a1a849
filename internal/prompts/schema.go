package prompts

import "encoding/json"

// JSON schemas the structured generation steps are validated against.

var IdentifySchema = mustJSON(map[string]any{
	"type":                 "object",
	"required":             []string{"identified", "plant_name", "summary"},
	"additionalProperties": false,
	"properties": map[string]any{
		"identified": map[string]any{"type": "boolean"},
		"plant_name": map[string]any{"type": "string"},
		"summary":    map[string]any{"type": "string"},
	},
})

var CharacterSchema = mustJSON(map[string]any{
	"type":                 "object",
	"required":             []string{"name", "personality"},
	"additionalProperties": false,
	"properties": map[string]any{
		"name":        map[string]any{"type": "string", "minLength": 1},
		"personality": map[string]any{"type": "string", "minLength": 1},
	},
})

var GuideSchema = mustJSON(map[string]any{
	"type":                 "object",
	"required":             []string{"plant_name", "steps"},
	"additionalProperties": false,
	"properties": map[string]any{
		"plant_name": map[string]any{"type": "string"},
		"steps": map[string]any{
			"type":     "array",
			"minItems": 1,
			"items": map[string]any{
				"type":                 "object",
				"required":             []string{"order", "title", "body"},
				"additionalProperties": true,
				"properties": map[string]any{
					"order":               map[string]any{"type": "integer"},
					"title":               map[string]any{"type": "string"},
					"body":                map[string]any{"type": "string"},
					"illustration_prompt": map[string]any{"type": "string"},
				},
			},
		},
	},
})

func mustJSON(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}
