package orchestrator

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/seedlab/sprout/internal/genai"
	"github.com/seedlab/sprout/internal/invoke"
	"github.com/seedlab/sprout/internal/jobs"
	"github.com/seedlab/sprout/internal/prompts"
)

// characterConcept is the structured output of the concept step.
type characterConcept struct {
	Name        string `json:"name"`
	Personality string `json:"personality"`
}

// runCharacter generates the mascot: a concept from the packet image,
// then a portrait through the image fallback chain. The step degrades
// rather than fails: a malformed concept keeps the raw text as the
// personality, and a doubly-failed portrait becomes the placeholder.
func (o *Orchestrator) runCharacter(ctx context.Context, sub *Submission, imageData []byte, imageMIME string, progress *jobs.Channel) {
	if err := o.jobs.SetStatus(ctx, sub.CharacterID, jobs.StatusProcessing, "inventing character"); err != nil {
		o.logger.Error("failed to mark character processing", "job_id", sub.CharacterID, "error", err)
	}
	progress.Publish(jobs.Event{Stage: "character", Message: "inventing mascot character"})

	result, err := o.ai.Generate(ctx, invoke.New(invoke.DefaultPolicy(), o.logger), genai.GenerateRequest{
		Model:     o.ai.TextModel(),
		Prompt:    prompts.Character(""),
		ImageData: imageData,
		ImageMIME: imageMIME,
		Schema:    prompts.CharacterSchema,
	})

	var concept characterConcept
	switch {
	case err == nil:
		if uerr := json.Unmarshal(result.ParsedJSON, &concept); uerr != nil {
			o.failCharacter(ctx, sub, progress, uerr)
			return
		}
	case errors.Is(err, genai.ErrSchemaMismatch) && result != nil && result.Text != "":
		// Keep the prose the model gave us instead of throwing the
		// artifact away.
		concept = characterConcept{Name: "Sprout", Personality: result.Text}
	default:
		o.failCharacter(ctx, sub, progress, err)
		return
	}

	progress.Publish(jobs.Event{Stage: "character", Message: "drawing portrait of " + concept.Name})
	portrait, placeholder := o.generateImage(ctx, prompts.Portrait(concept.Name, concept.Personality, ""))

	imageURL, err := o.objects.Put(ctx, "plants/"+sub.ResearchID+"/character.png", portrait, "image/png")
	if err != nil {
		o.failCharacter(ctx, sub, progress, err)
		return
	}

	characterResult := &jobs.Result{Character: &jobs.CharacterResult{
		Name:        concept.Name,
		Personality: concept.Personality,
		ImageURL:    imageURL,
		Placeholder: placeholder,
	}}
	if err := o.jobs.SetResult(ctx, sub.CharacterID, characterResult, "character ready"); err != nil {
		o.logger.Error("failed to store character result", "job_id", sub.CharacterID, "error", err)
		return
	}
	progress.Publish(jobs.Event{Stage: "character", Message: "character " + concept.Name + " ready"})
}

func (o *Orchestrator) failCharacter(ctx context.Context, sub *Submission, progress *jobs.Channel, cause error) {
	o.logger.Warn("character generation failed", "job_id", sub.CharacterID, "error", cause)
	if err := o.jobs.Fail(ctx, sub.CharacterID, "character generation failed", cause); err != nil {
		o.logger.Error("failed to fail character job", "job_id", sub.CharacterID, "error", err)
	}
	progress.Publish(jobs.Event{Stage: "character", Message: "character generation failed"})
}
