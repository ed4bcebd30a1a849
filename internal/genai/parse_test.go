package genai

import (
	"encoding/json"
	"errors"
	"testing"
)

var nameSchema = json.RawMessage(`{"type":"object","required":["name"],"properties":{"name":{"type":"string"}}}`)

func TestParseStructured(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr bool
	}{
		{"plain json", `{"name":"Basil"}`, false},
		{"fenced json", "```json\n{\"name\":\"Basil\"}\n```", false},
		{"fenced no language", "```\n{\"name\":\"Basil\"}\n```", false},
		{"json wrapped in prose", "Here is the result:\n{\"name\":\"Basil\"}\nHope that helps!", false},
		{"empty", "", true},
		{"no json at all", "I could not identify the plant.", true},
		{"valid json wrong shape", `{"plant":"Basil"}`, true},
		{"wrong type", `{"name":42}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed, err := ParseStructured(tt.content, nameSchema)
			if tt.wantErr {
				if !errors.Is(err, ErrSchemaMismatch) {
					t.Errorf("ParseStructured() error = %v, want ErrSchemaMismatch", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseStructured() error = %v", err)
			}
			var doc struct {
				Name string `json:"name"`
			}
			if err := json.Unmarshal(parsed, &doc); err != nil {
				t.Fatalf("parsed output invalid: %v", err)
			}
			if doc.Name != "Basil" {
				t.Errorf("name = %q, want Basil", doc.Name)
			}
		})
	}
}

func TestParseStructured_NoSchemaValidatesJSONOnly(t *testing.T) {
	parsed, err := ParseStructured(`{"anything":"goes"}`, nil)
	if err != nil {
		t.Fatalf("ParseStructured() error = %v", err)
	}
	if len(parsed) == 0 {
		t.Error("ParseStructured() returned empty JSON")
	}
}
