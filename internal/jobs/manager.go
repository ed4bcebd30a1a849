package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/seedlab/sprout/internal/docstore"
)

// Database is the document-store database job records live in.
const Database = "jobs"

// ErrInvalidTransition is returned when a status update would move a
// record backwards or out of a terminal state.
var ErrInvalidTransition = errors.New("invalid status transition")

// Manager persists job records. All writes go through it so the
// forward-only status invariant is enforced in one place.
type Manager struct {
	store  docstore.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewManager creates a record manager over the given store.
func NewManager(store docstore.Store, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:  store,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Create persists a new pending record. It is written before any
// background work is spawned so the id is immediately pollable.
func (m *Manager) Create(ctx context.Context, kind Kind) (*Record, error) {
	return m.create(ctx, kind, nil)
}

// CreateUnified persists the pending unified record for a submission.
// The sibling ids and image URL are identity, not output, so they are
// written at creation.
func (m *Manager) CreateUnified(ctx context.Context, links UnifiedResult) (*Record, error) {
	return m.create(ctx, KindUnified, &Result{Unified: &links})
}

func (m *Manager) create(ctx context.Context, kind Kind, result *Result) (*Record, error) {
	now := m.now()
	record := &Record{
		ID:        uuid.New().String(),
		Kind:      kind,
		Status:    StatusPending,
		Result:    result,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.put(ctx, record); err != nil {
		return nil, err
	}
	m.logger.Info("job created", "job_id", record.ID, "kind", kind)
	return record, nil
}

// Get fetches a record by id. Returns docstore.ErrNotFound if absent.
func (m *Manager) Get(ctx context.Context, id string) (*Record, error) {
	doc, err := m.store.Get(ctx, Database, id)
	if err != nil {
		return nil, err
	}
	return docToRecord(doc)
}

// SetStatus advances a record's status. Moving backwards or out of a
// terminal state returns ErrInvalidTransition; re-asserting the current
// status just updates the message.
func (m *Manager) SetStatus(ctx context.Context, id string, status Status, message string) error {
	record, err := m.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := checkTransition(record.Status, status); err != nil {
		return fmt.Errorf("%w: job %s", err, id)
	}

	record.Status = status
	record.Message = message
	record.UpdatedAt = m.now()
	return m.put(ctx, record)
}

// Progress overwrites the record's message without touching status.
// Each update replaces the last; messages are not accumulated.
func (m *Manager) Progress(ctx context.Context, id, message string) error {
	record, err := m.Get(ctx, id)
	if err != nil {
		return err
	}
	if record.Status.Terminal() {
		return fmt.Errorf("%w: job %s is %s", ErrInvalidTransition, id, record.Status)
	}

	record.Message = message
	record.UpdatedAt = m.now()
	return m.put(ctx, record)
}

// MergePartial writes a partial result while the record is still in
// flight, so intermediate artifacts (the identified plant name) are
// visible to polling before completion.
func (m *Manager) MergePartial(ctx context.Context, id string, result *Result) error {
	record, err := m.Get(ctx, id)
	if err != nil {
		return err
	}
	if record.Status.Terminal() {
		return fmt.Errorf("%w: job %s is %s", ErrInvalidTransition, id, record.Status)
	}

	record.Result = result
	record.UpdatedAt = m.now()
	return m.put(ctx, record)
}

// SetResult stores the final result and marks the record completed in
// one write. A result is never attached to a non-completed record by
// any other path.
func (m *Manager) SetResult(ctx context.Context, id string, result *Result, message string) error {
	record, err := m.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := checkTransition(record.Status, StatusCompleted); err != nil {
		return fmt.Errorf("%w: job %s", err, id)
	}

	record.Status = StatusCompleted
	record.Result = result
	record.Message = message
	record.Error = ""
	record.UpdatedAt = m.now()
	if err := m.put(ctx, record); err != nil {
		return err
	}
	m.logger.Info("job completed", "job_id", id, "kind", record.Kind)
	return nil
}

// Complete marks a record completed without replacing its result. Used
// for the unified record, whose result is written at creation.
func (m *Manager) Complete(ctx context.Context, id, message string) error {
	if err := m.SetStatus(ctx, id, StatusCompleted, message); err != nil {
		return err
	}
	m.logger.Info("job completed", "job_id", id)
	return nil
}

// Fail marks a record failed with a user-facing message and the
// underlying cause.
func (m *Manager) Fail(ctx context.Context, id, message string, cause error) error {
	record, err := m.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := checkTransition(record.Status, StatusFailed); err != nil {
		return fmt.Errorf("%w: job %s", err, id)
	}

	record.Status = StatusFailed
	record.Message = message
	if cause != nil {
		record.Error = cause.Error()
	}
	record.UpdatedAt = m.now()
	if err := m.put(ctx, record); err != nil {
		return err
	}
	m.logger.Warn("job failed", "job_id", id, "kind", record.Kind, "error", cause)
	return nil
}

func checkTransition(from, to Status) error {
	if from == to {
		return nil
	}
	if from.Terminal() || to.rank() < from.rank() {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

func (m *Manager) put(ctx context.Context, record *Record) error {
	doc, err := recordToDoc(record)
	if err != nil {
		return err
	}
	return m.store.Put(ctx, Database, record.ID, doc)
}

func recordToDoc(record *Record) (map[string]any, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job record: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to convert job record: %w", err)
	}
	return doc, nil
}

func docToRecord(doc map[string]any) (*Record, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job document: %w", err)
	}
	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to decode job record: %w", err)
	}
	return &record, nil
}
