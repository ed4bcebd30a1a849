// Package jobs holds the persisted job model and the supporting
// machinery around it: the record manager, the progress channel used by
// the SSE stream, the background-task supervisor, and the base64 encode
// pool.
package jobs

import (
	"time"
)

// Kind identifies the artifact a job produces.
type Kind string

const (
	KindResearch  Kind = "research"
	KindGuide     Kind = "guide"
	KindCharacter Kind = "character"
	KindDiary     Kind = "diary"
	KindUnified   Kind = "unified"
)

// Status is the lifecycle state of a job. Transitions are forward-only
// and terminal states are absorbing.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether the status is absorbing.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// rank orders statuses for the forward-only transition guard.
func (s Status) rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusProcessing:
		return 1
	case StatusCompleted, StatusFailed:
		return 2
	default:
		return -1
	}
}

// Record is a job document as persisted in the document store.
type Record struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Status    Status    `json:"status"`
	Message   string    `json:"message,omitempty"`
	Error     string    `json:"error,omitempty"`
	Result    *Result   `json:"result,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Result is a tagged union keyed by the record's Kind: exactly the
// variant matching the Kind is set. Images are object-store URLs, never
// inline bytes.
type Result struct {
	Research  *ResearchResult  `json:"research,omitempty"`
	Guide     *GuideResult     `json:"guide,omitempty"`
	Character *CharacterResult `json:"character,omitempty"`
	Diary     *DiaryResult     `json:"diary,omitempty"`
	Unified   *UnifiedResult   `json:"unified,omitempty"`
}

// ResearchResult accrues in two stages: identification fills PlantName
// and Summary while the record is still processing; the deep-research
// report lands at completion.
type ResearchResult struct {
	PlantName string `json:"plant_name"`
	Summary   string `json:"summary,omitempty"`
	Report    string `json:"report,omitempty"`
}

// GuideStep is one ordered step of the growing guide.
type GuideStep struct {
	Order    int    `json:"order"`
	Title    string `json:"title"`
	Body     string `json:"body"`
	ImageURL string `json:"image_url,omitempty"`
}

type GuideResult struct {
	PlantName string      `json:"plant_name"`
	Steps     []GuideStep `json:"steps"`
}

type CharacterResult struct {
	Name        string `json:"name"`
	Personality string `json:"personality"`
	ImageURL    string `json:"image_url"`
	Placeholder bool   `json:"placeholder,omitempty"`
}

type DiaryResult struct {
	PlantName string `json:"plant_name"`
	Entry     string `json:"entry"`
}

// UnifiedResult ties a submission to its sibling jobs. The job ids and
// the uploaded image URL are identity, written at creation and never
// changed.
type UnifiedResult struct {
	ResearchJobID  string `json:"research_job_id"`
	GuideJobID     string `json:"guide_job_id"`
	CharacterJobID string `json:"character_job_id"`
	ImageURL       string `json:"image_url"`
}
