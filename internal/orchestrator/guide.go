package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/seedlab/sprout/internal/genai"
	"github.com/seedlab/sprout/internal/invoke"
	"github.com/seedlab/sprout/internal/jobs"
	"github.com/seedlab/sprout/internal/prompts"
)

// guideDoc is the structured output of the guide text step.
type guideDoc struct {
	PlantName string         `json:"plant_name"`
	Steps     []guideDocStep `json:"steps"`
}

type guideDocStep struct {
	Order              int    `json:"order"`
	Title              string `json:"title"`
	Body               string `json:"body"`
	IllustrationPrompt string `json:"illustration_prompt"`
}

// runGuide produces the illustrated growing guide: ordered steps from
// the text model, then one illustration per step through the image
// fallback chain. Malformed step JSON degrades to a single step holding
// the raw text; illustrations degrade per-step to the placeholder.
func (o *Orchestrator) runGuide(ctx context.Context, sub *Submission, ident identification, progress *jobs.Channel) {
	if err := o.jobs.SetStatus(ctx, sub.GuideID, jobs.StatusProcessing, "writing growing guide"); err != nil {
		o.logger.Error("failed to mark guide processing", "job_id", sub.GuideID, "error", err)
	}
	progress.Publish(jobs.Event{Stage: "guide", Message: "writing growing guide for " + ident.PlantName})

	result, err := o.ai.Generate(ctx, invoke.New(invoke.DefaultPolicy(), o.logger), genai.GenerateRequest{
		Model:  o.ai.TextModel(),
		Prompt: prompts.Guide(ident.PlantName, ident.Summary),
		Schema: prompts.GuideSchema,
	})

	var doc guideDoc
	switch {
	case err == nil:
		if uerr := json.Unmarshal(result.ParsedJSON, &doc); uerr != nil {
			o.failGuide(ctx, sub, progress, uerr)
			return
		}
	case errors.Is(err, genai.ErrSchemaMismatch) && result != nil && result.Text != "":
		doc = guideDoc{
			PlantName: ident.PlantName,
			Steps: []guideDocStep{
				{Order: 1, Title: "Growing " + ident.PlantName, Body: result.Text},
			},
		}
	default:
		o.failGuide(ctx, sub, progress, err)
		return
	}
	if len(doc.Steps) == 0 {
		o.failGuide(ctx, sub, progress, fmt.Errorf("guide has no steps"))
		return
	}

	steps := make([]jobs.GuideStep, 0, len(doc.Steps))
	for i, step := range doc.Steps {
		guideStep := jobs.GuideStep{
			Order: step.Order,
			Title: step.Title,
			Body:  step.Body,
		}
		if guideStep.Order == 0 {
			guideStep.Order = i + 1
		}

		if step.IllustrationPrompt != "" {
			progress.Publish(jobs.Event{Stage: "guide", Message: fmt.Sprintf("illustrating step %d of %d", i+1, len(doc.Steps))})
			image, _ := o.generateImage(ctx, step.IllustrationPrompt)
			url, err := o.objects.Put(ctx, fmt.Sprintf("plants/%s/guide-step-%d.png", sub.ResearchID, guideStep.Order), image, "image/png")
			if err != nil {
				o.logger.Warn("failed to store guide illustration", "job_id", sub.GuideID, "step", guideStep.Order, "error", err)
			} else {
				guideStep.ImageURL = url
			}
		}
		steps = append(steps, guideStep)
	}

	plantName := doc.PlantName
	if plantName == "" {
		plantName = ident.PlantName
	}
	guideResult := &jobs.Result{Guide: &jobs.GuideResult{
		PlantName: plantName,
		Steps:     steps,
	}}
	if err := o.jobs.SetResult(ctx, sub.GuideID, guideResult, "guide ready"); err != nil {
		o.logger.Error("failed to store guide result", "job_id", sub.GuideID, "error", err)
		return
	}
	progress.Publish(jobs.Event{Stage: "guide", Message: "growing guide ready"})
}

func (o *Orchestrator) failGuide(ctx context.Context, sub *Submission, progress *jobs.Channel, cause error) {
	o.logger.Warn("guide generation failed", "job_id", sub.GuideID, "error", cause)
	if err := o.jobs.Fail(ctx, sub.GuideID, "guide generation failed", cause); err != nil {
		o.logger.Error("failed to fail guide job", "job_id", sub.GuideID, "error", err)
	}
	progress.Publish(jobs.Event{Stage: "guide", Message: "guide generation failed"})
}
