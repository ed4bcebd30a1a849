package orchestrator

import (
	"context"
	"encoding/json"

	"github.com/seedlab/sprout/internal/genai"
	"github.com/seedlab/sprout/internal/invoke"
	"github.com/seedlab/sprout/internal/jobs"
	"github.com/seedlab/sprout/internal/prompts"
)

// identification is the outcome of the fast phase-1 identify step.
type identification struct {
	Identified bool   `json:"identified"`
	PlantName  string `json:"plant_name"`
	Summary    string `json:"summary"`
}

// runIdentify asks the text model to name the plant on the packet. On
// success the name and summary are written to the research record as a
// partial result immediately, while the record stays processing for the
// deep-research phase. Any failure here counts as unidentified and
// fails the research record.
func (o *Orchestrator) runIdentify(ctx context.Context, sub *Submission, imageData []byte, imageMIME string, progress *jobs.Channel) identification {
	if err := o.jobs.SetStatus(ctx, sub.ResearchID, jobs.StatusProcessing, "identifying plant"); err != nil {
		o.logger.Error("failed to mark research processing", "job_id", sub.ResearchID, "error", err)
	}
	progress.Publish(jobs.Event{Stage: "identify", Message: "identifying plant from packet"})

	result, err := o.ai.Generate(ctx, invoke.New(invoke.DefaultPolicy(), o.logger), genai.GenerateRequest{
		Model:     o.ai.TextModel(),
		Prompt:    prompts.Identify(),
		ImageData: imageData,
		ImageMIME: imageMIME,
		Schema:    prompts.IdentifySchema,
	})
	if err != nil {
		o.failIdentify(ctx, sub, progress, err)
		return identification{}
	}

	var ident identification
	if err := json.Unmarshal(result.ParsedJSON, &ident); err != nil {
		o.failIdentify(ctx, sub, progress, err)
		return identification{}
	}
	if !ident.Identified || ident.PlantName == "" {
		o.failIdentify(ctx, sub, progress, nil)
		return identification{}
	}

	partial := &jobs.Result{Research: &jobs.ResearchResult{
		PlantName: ident.PlantName,
		Summary:   ident.Summary,
	}}
	if err := o.jobs.MergePartial(ctx, sub.ResearchID, partial); err != nil {
		o.logger.Error("failed to write partial research result", "job_id", sub.ResearchID, "error", err)
	}
	if err := o.jobs.Progress(ctx, sub.ResearchID, "identified as "+ident.PlantName); err != nil {
		o.logger.Error("failed to update research progress", "job_id", sub.ResearchID, "error", err)
	}
	progress.Publish(jobs.Event{Stage: "identify", Message: "identified as " + ident.PlantName})
	return ident
}

func (o *Orchestrator) failIdentify(ctx context.Context, sub *Submission, progress *jobs.Channel, cause error) {
	o.logger.Warn("plant identification failed", "job_id", sub.ResearchID, "error", cause)
	if err := o.jobs.Fail(ctx, sub.ResearchID, "plant could not be identified", cause); err != nil {
		o.logger.Error("failed to fail research job", "job_id", sub.ResearchID, "error", err)
	}
	progress.Publish(jobs.Event{Stage: "identify", Message: "plant could not be identified"})
}
