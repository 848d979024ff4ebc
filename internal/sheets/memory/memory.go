package memory

import (
	"context"
	"sort"
	"sync"

	"minhasfinancas/internal/core"
	ports "minhasfinancas/internal/sheets"
)

var _ ports.EntryMirror = (*Mirror)(nil)

// Mirror is an in-process EntryMirror, used for dry runs and tests.
type Mirror struct {
	mu   sync.Mutex
	rows map[int64]core.Lancamento
}

func New() *Mirror {
	return &Mirror{rows: make(map[int64]core.Lancamento)}
}

func (m *Mirror) UpsertEntry(_ context.Context, l core.Lancamento) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[l.ID] = l
	return nil
}

func (m *Mirror) ClearEntry(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, id)
	return nil
}

// Get returns the mirrored row for id.
func (m *Mirror) Get(id int64) (core.Lancamento, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.rows[id]
	return l, ok
}

// IDs returns the mirrored entry ids in ascending order.
func (m *Mirror) IDs() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int64, 0, len(m.rows))
	for id := range m.rows {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
