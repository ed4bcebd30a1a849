// Package orchestrator runs the two-phase workflow that turns one
// seed-packet image into a research report, a growing guide, and a
// mascot character. Each artifact owns exactly one job record; the
// unified record ties them together for polling and the event stream.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/seedlab/sprout/internal/genai"
	"github.com/seedlab/sprout/internal/invoke"
	"github.com/seedlab/sprout/internal/jobs"
	"github.com/seedlab/sprout/internal/objstore"
)

// Generator is the slice of the genai client the workflow needs.
// *genai.Client satisfies it; tests substitute a scripted fake.
type Generator interface {
	Generate(ctx context.Context, inv *invoke.Invoker, req genai.GenerateRequest) (*genai.GenerateResult, error)
	StartResearch(ctx context.Context, inv *invoke.Invoker, prompt string) (string, error)
	PollResearch(ctx context.Context, operationID string, interval, timeout time.Duration) (string, error)
	TextModel() string
	ImageModel() string
	ImageFallbackModel() string
}

// Config holds workflow tuning. Zero values get sensible defaults.
type Config struct {
	// PollInterval is the fixed delay between deep-research polls.
	PollInterval time.Duration
	// PollTimeout bounds how long a deep-research operation is awaited.
	PollTimeout time.Duration
}

// Submission is what a client gets back immediately: the ids of the
// four records created before any background work starts.
type Submission struct {
	UnifiedID   string `json:"unified_id"`
	ResearchID  string `json:"research_id"`
	GuideID     string `json:"guide_id"`
	CharacterID string `json:"character_id"`
}

// Orchestrator owns the plant workflow.
type Orchestrator struct {
	jobs       *jobs.Manager
	objects    objstore.Store
	ai         Generator
	registry   *jobs.Registry
	supervisor *jobs.Supervisor
	logger     *slog.Logger

	pollInterval time.Duration
	pollTimeout  time.Duration
}

// New creates an orchestrator.
func New(manager *jobs.Manager, objects objstore.Store, ai Generator, registry *jobs.Registry, supervisor *jobs.Supervisor, cfg Config, logger *slog.Logger) *Orchestrator {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 15 * time.Second
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 20 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		jobs:         manager,
		objects:      objects,
		ai:           ai,
		registry:     registry,
		supervisor:   supervisor,
		logger:       logger,
		pollInterval: cfg.PollInterval,
		pollTimeout:  cfg.PollTimeout,
	}
}

// Submit uploads the packet image, creates all four records pending,
// registers the progress channel, and spawns the background run. The
// returned ids are pollable before any generation step has started.
func (o *Orchestrator) Submit(ctx context.Context, imageData []byte, imageMIME string) (*Submission, error) {
	if len(imageData) == 0 {
		return nil, fmt.Errorf("empty image")
	}
	if imageMIME == "" {
		imageMIME = "image/png"
	}

	research, err := o.jobs.Create(ctx, jobs.KindResearch)
	if err != nil {
		return nil, fmt.Errorf("failed to create research job: %w", err)
	}
	guide, err := o.jobs.Create(ctx, jobs.KindGuide)
	if err != nil {
		return nil, fmt.Errorf("failed to create guide job: %w", err)
	}
	character, err := o.jobs.Create(ctx, jobs.KindCharacter)
	if err != nil {
		return nil, fmt.Errorf("failed to create character job: %w", err)
	}

	imageURL, err := o.objects.Put(ctx, "plants/"+research.ID+"/packet"+extFor(imageMIME), imageData, imageMIME)
	if err != nil {
		return nil, fmt.Errorf("failed to store packet image: %w", err)
	}

	unified, err := o.jobs.CreateUnified(ctx, jobs.UnifiedResult{
		ResearchJobID:  research.ID,
		GuideJobID:     guide.ID,
		CharacterJobID: character.ID,
		ImageURL:       imageURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create unified job: %w", err)
	}

	sub := &Submission{
		UnifiedID:   unified.ID,
		ResearchID:  research.ID,
		GuideID:     guide.ID,
		CharacterID: character.ID,
	}
	progress := o.registry.Register(unified.ID)

	o.supervisor.Spawn("plant-run-"+unified.ID, func() {
		// The run outlives the submit request; a disconnecting client
		// must not cancel generation.
		o.run(context.Background(), sub, imageData, imageMIME, progress)
	})

	o.logger.Info("plant submission accepted",
		"unified_id", unified.ID,
		"research_id", research.ID,
		"guide_id", guide.ID,
		"character_id", character.ID,
	)
	return sub, nil
}

// run drives the two phases. Phase 1 races character generation against
// identification; phase 2 runs deep research and the guide. Step
// failures stay confined to the record the step owns.
func (o *Orchestrator) run(ctx context.Context, sub *Submission, imageData []byte, imageMIME string, progress *jobs.Channel) {
	defer o.registry.Remove(sub.UnifiedID)

	if err := o.jobs.SetStatus(ctx, sub.UnifiedID, jobs.StatusProcessing, "generation started"); err != nil {
		o.logger.Error("failed to mark unified processing", "unified_id", sub.UnifiedID, "error", err)
	}
	progress.Publish(jobs.Event{Stage: "submit", Message: "generation started"})

	// Phase 1: mascot and identification work from the raw image and
	// need nothing from each other.
	var (
		wg    sync.WaitGroup
		ident identification
	)
	o.step(&wg, "character", func() {
		o.runCharacter(ctx, sub, imageData, imageMIME, progress)
	})
	o.step(&wg, "identify", func() {
		ident = o.runIdentify(ctx, sub, imageData, imageMIME, progress)
	})
	wg.Wait()

	if !ident.Identified {
		o.abortUnidentified(ctx, sub, progress)
		return
	}

	// Phase 2: both steps consume the identification.
	o.step(&wg, "research", func() {
		o.runResearch(ctx, sub, ident, progress)
	})
	o.step(&wg, "guide", func() {
		o.runGuide(ctx, sub, ident, progress)
	})
	wg.Wait()

	if err := o.jobs.Complete(ctx, sub.UnifiedID, "generation finished"); err != nil {
		o.logger.Error("failed to complete unified job", "unified_id", sub.UnifiedID, "error", err)
	}
	progress.Done(jobs.Event{Stage: "done", Message: "generation finished", Status: jobs.StatusCompleted})
}

// step runs one workflow step in its own goroutine. A panicking step
// is logged and absorbed so the sibling step and the run keep going.
func (o *Orchestrator) step(wg *sync.WaitGroup, name string, fn func()) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer func() {
			if r := recover(); r != nil {
				o.logger.Error("workflow step panicked",
					"step", name,
					"panic", r,
					"stack", string(debug.Stack()),
				)
			}
		}()
		fn()
	}()
}

// abortUnidentified ends the run after phase 1 when the packet could
// not be identified. The character step already settled its own record.
func (o *Orchestrator) abortUnidentified(ctx context.Context, sub *Submission, progress *jobs.Channel) {
	cause := fmt.Errorf("plant could not be identified from the packet image")
	if err := o.jobs.Fail(ctx, sub.GuideID, "skipped: plant not identified", cause); err != nil {
		o.logger.Error("failed to fail guide job", "job_id", sub.GuideID, "error", err)
	}
	if err := o.jobs.Fail(ctx, sub.UnifiedID, "plant not identified", cause); err != nil {
		o.logger.Error("failed to fail unified job", "job_id", sub.UnifiedID, "error", err)
	}
	progress.Done(jobs.Event{Stage: "identify", Message: "plant not identified", Status: jobs.StatusFailed})
}

// generateImage runs the primary/fallback image chain and degrades to
// the deterministic placeholder when both legs fail.
func (o *Orchestrator) generateImage(ctx context.Context, prompt string) (data []byte, placeholder bool) {
	result, err := invoke.WithFallback(ctx, o.logger,
		func(ctx context.Context) (*genai.GenerateResult, error) {
			return o.ai.Generate(ctx, invoke.New(invoke.FastPolicy(), o.logger), genai.GenerateRequest{
				Model:     o.ai.ImageModel(),
				Prompt:    prompt,
				WantImage: true,
			})
		},
		func(ctx context.Context) (*genai.GenerateResult, error) {
			return o.ai.Generate(ctx, invoke.New(invoke.DefaultPolicy(), o.logger), genai.GenerateRequest{
				Model:     o.ai.ImageFallbackModel(),
				Prompt:    prompt,
				WantImage: true,
			})
		},
	)
	if err != nil || result == nil || len(result.ImageData) == 0 {
		o.logger.Warn("image generation failed on both models, using placeholder", "error", err)
		return PlaceholderPNG(), true
	}
	return result.ImageData, false
}

func extFor(mime string) string {
	switch mime {
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}
