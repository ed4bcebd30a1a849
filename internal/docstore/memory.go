package docstore

import (
	"context"
	"fmt"
	"sync"
)

// Memory is an in-memory Store for unit tests.
type Memory struct {
	mu  sync.RWMutex
	dbs map[string]map[string]map[string]any
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{dbs: make(map[string]map[string]map[string]any)}
}

func (m *Memory) Put(ctx context.Context, db, id string, doc map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.dbs[db] == nil {
		m.dbs[db] = make(map[string]map[string]any)
	}
	m.dbs[db][id] = cloneDoc(doc)
	return nil
}

func (m *Memory) Get(ctx context.Context, db, id string) (map[string]any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.dbs[db][id]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, db, id)
	}
	return cloneDoc(doc), nil
}

func (m *Memory) Merge(ctx context.Context, db, id string, fields map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.dbs[db][id]
	if !ok {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, db, id)
	}
	for k, v := range fields {
		doc[k] = v
	}
	return nil
}

// cloneDoc shallow-copies a document so callers cannot mutate stored state.
func cloneDoc(doc map[string]any) map[string]any {
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out
}

// Verify interface
var _ Store = (*Memory)(nil)
