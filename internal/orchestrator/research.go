package orchestrator

import (
	"context"

	"github.com/seedlab/sprout/internal/invoke"
	"github.com/seedlab/sprout/internal/jobs"
	"github.com/seedlab/sprout/internal/prompts"
)

// runResearch drives the long-running deep-research operation: start
// it, poll at a fixed interval until done, then complete the research
// record with the full report. A failure here leaves the partial
// identification result on the record.
func (o *Orchestrator) runResearch(ctx context.Context, sub *Submission, ident identification, progress *jobs.Channel) {
	if err := o.jobs.Progress(ctx, sub.ResearchID, "researching "+ident.PlantName); err != nil {
		o.logger.Error("failed to update research progress", "job_id", sub.ResearchID, "error", err)
	}
	progress.Publish(jobs.Event{Stage: "research", Message: "deep research started for " + ident.PlantName})

	operationID, err := o.ai.StartResearch(ctx, invoke.New(invoke.DefaultPolicy(), o.logger), prompts.Research(ident.PlantName, ident.Summary))
	if err != nil {
		o.failResearch(ctx, sub, progress, err)
		return
	}

	report, err := o.ai.PollResearch(ctx, operationID, o.pollInterval, o.pollTimeout)
	if err != nil {
		o.failResearch(ctx, sub, progress, err)
		return
	}

	researchResult := &jobs.Result{Research: &jobs.ResearchResult{
		PlantName: ident.PlantName,
		Summary:   ident.Summary,
		Report:    report,
	}}
	if err := o.jobs.SetResult(ctx, sub.ResearchID, researchResult, "research complete"); err != nil {
		o.logger.Error("failed to store research result", "job_id", sub.ResearchID, "error", err)
		return
	}
	progress.Publish(jobs.Event{Stage: "research", Message: "research report ready"})
}

func (o *Orchestrator) failResearch(ctx context.Context, sub *Submission, progress *jobs.Channel, cause error) {
	o.logger.Warn("deep research failed", "job_id", sub.ResearchID, "error", cause)
	if err := o.jobs.Fail(ctx, sub.ResearchID, "deep research failed", cause); err != nil {
		o.logger.Error("failed to fail research job", "job_id", sub.ResearchID, "error", err)
	}
	progress.Publish(jobs.Event{Stage: "research", Message: "deep research failed"})
}
