package store

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Memory keeps runs in process memory.
type Memory struct {
	mu    sync.RWMutex
	runs  map[uuid.UUID]Run
	order []uuid.UUID
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{runs: make(map[uuid.UUID]Run)}
}

func (m *Memory) SaveRun(_ context.Context, run *Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.runs[run.ID]; !exists {
		m.order = append(m.order, run.ID)
	}
	m.runs[run.ID] = copyRun(*run)
	return nil
}

func (m *Memory) GetRun(_ context.Context, id uuid.UUID) (*Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	run, ok := m.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}
	out := copyRun(run)
	return &out, nil
}

func (m *Memory) ListRuns(_ context.Context, limit int) ([]Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Run, 0, len(m.order))
	for i := len(m.order) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, copyRun(m.runs[m.order[i]]))
	}
	return out, nil
}

func (m *Memory) Close() error {
	return nil
}

func copyRun(r Run) Run {
	if r.TopCustomers != nil {
		tc := make([]CustomerTotal, len(r.TopCustomers))
		copy(tc, r.TopCustomers)
		r.TopCustomers = tc
	}
	return r
}
