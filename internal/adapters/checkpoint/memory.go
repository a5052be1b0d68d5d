package checkpoint

import (
	"context"
	"sort"
	"sync"

	"github.com/eleven-am/meandra/internal/domain"
)

// Memory is an in-process checkpoint store for tests. It assigns sequence
// numbers the same way the durable store does but keeps records in a map.
type Memory struct {
	mu      sync.Mutex
	records map[string][]domain.CheckpointRecord
	closed  bool
}

func NewMemory() *Memory {
	return &Memory{records: make(map[string][]domain.CheckpointRecord)}
}

func (m *Memory) Append(ctx context.Context, rec domain.CheckpointRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return domain.ErrStoreClosed
	}

	rec.Seq = uint64(len(m.records[rec.RunID]) + 1)
	if rec.OutputBindings != nil {
		bindings := make(map[string]domain.OutputBinding, len(rec.OutputBindings))
		for k, v := range rec.OutputBindings {
			bindings[k] = v
		}
		rec.OutputBindings = bindings
	}
	m.records[rec.RunID] = append(m.records[rec.RunID], rec)
	return nil
}

func (m *Memory) Load(ctx context.Context, runID string) (domain.CheckpointLog, error) {
	if err := ctx.Err(); err != nil {
		return domain.CheckpointLog{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return domain.CheckpointLog{}, domain.ErrStoreClosed
	}

	return domain.CheckpointLog{
		Records: append([]domain.CheckpointRecord(nil), m.records[runID]...),
	}, nil
}

func (m *Memory) Runs(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, domain.ErrStoreClosed
	}

	runs := make([]string, 0, len(m.records))
	for runID := range m.records {
		runs = append(runs, runID)
	}
	sort.Strings(runs)
	return runs, nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
