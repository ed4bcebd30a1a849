// Package prompts holds the embedded prompt templates and output
// schemas for every generation step.
package prompts

import (
	"bytes"
	_ "embed"
	"text/template"
)

//go:embed identify.tmpl
var identifyPrompt string

//go:embed character.tmpl
var characterTmpl string

//go:embed portrait.tmpl
var portraitTmpl string

//go:embed guide.tmpl
var guideTmpl string

//go:embed research.tmpl
var researchTmpl string

//go:embed diary.tmpl
var diaryTmpl string

var (
	characterTemplate = template.Must(template.New("character").Parse(characterTmpl))
	portraitTemplate  = template.Must(template.New("portrait").Parse(portraitTmpl))
	guideTemplate     = template.Must(template.New("guide").Parse(guideTmpl))
	researchTemplate  = template.Must(template.New("research").Parse(researchTmpl))
	diaryTemplate     = template.Must(template.New("diary").Parse(diaryTmpl))
)

// Identify returns the seed-packet identification prompt. The packet
// image travels alongside it.
func Identify() string {
	return identifyPrompt
}

// Character builds the mascot concept prompt.
func Character(plantName string) string {
	return render(characterTemplate, struct{ PlantName string }{plantName})
}

// Portrait builds the mascot image prompt.
func Portrait(name, personality, plantName string) string {
	return render(portraitTemplate, struct {
		Name        string
		Personality string
		PlantName   string
	}{name, personality, plantName})
}

// Guide builds the growing-guide prompt.
func Guide(plantName, summary string) string {
	return render(guideTemplate, struct{ PlantName, Summary string }{plantName, summary})
}

// Research builds the deep-research prompt.
func Research(plantName, summary string) string {
	return render(researchTemplate, struct{ PlantName, Summary string }{plantName, summary})
}

// Diary builds the growth-diary prompt.
func Diary(plantName string) string {
	return render(diaryTemplate, struct{ PlantName string }{plantName})
}

func render(tmpl *template.Template, data any) string {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		// Templates are embedded and parsed at init; execution over
		// plain string fields cannot fail in practice.
		return ""
	}
	return buf.String()
}
