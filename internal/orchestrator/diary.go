package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/seedlab/sprout/internal/genai"
	"github.com/seedlab/sprout/internal/invoke"
	"github.com/seedlab/sprout/internal/jobs"
	"github.com/seedlab/sprout/internal/prompts"
)

// CreateDiaryEntry submits a one-shot diary generation for a plant.
// It exercises the plain single-record job path: one pending record,
// one background step, no unified bookkeeping.
func (o *Orchestrator) CreateDiaryEntry(ctx context.Context, plantName string) (*jobs.Record, error) {
	plantName = strings.TrimSpace(plantName)
	if plantName == "" {
		return nil, fmt.Errorf("plant name required")
	}

	record, err := o.jobs.Create(ctx, jobs.KindDiary)
	if err != nil {
		return nil, fmt.Errorf("failed to create diary job: %w", err)
	}

	o.supervisor.Spawn("diary-"+record.ID, func() {
		o.runDiary(context.Background(), record.ID, plantName)
	})
	return record, nil
}

func (o *Orchestrator) runDiary(ctx context.Context, jobID, plantName string) {
	if err := o.jobs.SetStatus(ctx, jobID, jobs.StatusProcessing, "writing diary entry"); err != nil {
		o.logger.Error("failed to mark diary processing", "job_id", jobID, "error", err)
	}

	result, err := o.ai.Generate(ctx, invoke.New(invoke.DefaultPolicy(), o.logger), genai.GenerateRequest{
		Model:  o.ai.TextModel(),
		Prompt: prompts.Diary(plantName),
	})
	if err != nil || result.Text == "" {
		if err == nil {
			err = fmt.Errorf("empty diary entry")
		}
		o.logger.Warn("diary generation failed", "job_id", jobID, "error", err)
		if ferr := o.jobs.Fail(ctx, jobID, "diary generation failed", err); ferr != nil {
			o.logger.Error("failed to fail diary job", "job_id", jobID, "error", ferr)
		}
		return
	}

	diaryResult := &jobs.Result{Diary: &jobs.DiaryResult{
		PlantName: plantName,
		Entry:     result.Text,
	}}
	if err := o.jobs.SetResult(ctx, jobID, diaryResult, "diary entry ready"); err != nil {
		o.logger.Error("failed to store diary result", "job_id", jobID, "error", err)
	}
}
