package prompts

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestPromptsRenderInputs(t *testing.T) {
	tests := []struct {
		name   string
		prompt string
		want   []string
	}{
		{"identify", Identify(), []string{"seed packet", "identified"}},
		{"character", Character("Sweet Basil"), []string{"Sweet Basil", "personality"}},
		{"portrait", Portrait("Sprouty", "cheerful and curious", "Sweet Basil"), []string{"Sprouty", "cheerful and curious", "Sweet Basil"}},
		{"guide", Guide("Sweet Basil", "an annual herb"), []string{"Sweet Basil", "an annual herb", "steps"}},
		{"guide no summary", Guide("Sweet Basil", ""), []string{"Sweet Basil"}},
		{"research", Research("Sweet Basil", "an annual herb"), []string{"Sweet Basil", "cultivation"}},
		{"diary", Diary("Sweet Basil"), []string{"Sweet Basil", "diary"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.prompt == "" {
				t.Fatal("empty prompt")
			}
			for _, want := range tt.want {
				if !strings.Contains(tt.prompt, want) {
					t.Errorf("prompt missing %q:\n%s", want, tt.prompt)
				}
			}
		})
	}
}

func TestGuideNoSummaryOmitsContext(t *testing.T) {
	if strings.Contains(Guide("Basil", ""), "Context:") {
		t.Error("empty summary should omit the context block")
	}
}

func TestSchemasAreValidJSON(t *testing.T) {
	for name, schema := range map[string]json.RawMessage{
		"identify":  IdentifySchema,
		"character": CharacterSchema,
		"guide":     GuideSchema,
	} {
		var doc map[string]any
		if err := json.Unmarshal(schema, &doc); err != nil {
			t.Errorf("%s schema invalid: %v", name, err)
		}
	}
}
