// Пакет tabulartest — in-memory реализация tabular.Store для тестов.
package tabulartest

import (
	"context"
	"slices"
	"sync"

	"github.com/bigkaa/feedgate/internal/tabular"
)

// Call — запись об обращении к хранилищу.
type Call struct {
	Op       string
	Resource string
	Range    string
}

// Memory хранит листы в памяти. Строки листа нумеруются с единицы,
// как в таблице, поэтому для диапазонов вида News!A2:H первой строкой
// кладут заголовок.
type Memory struct {
	mu     sync.Mutex
	sheets map[string][]tabular.Row
	calls  []Call

	// ReadErr / AppendErr — ошибки, возвращаемые вместо операции.
	ReadErr   error
	AppendErr error
}

// NewMemory создаёт пустое хранилище.
func NewMemory() *Memory {
	return &Memory{sheets: make(map[string][]tabular.Row)}
}

// Seed дописывает строки листа как есть, начиная с колонки A.
func (m *Memory) Seed(sheet string, rows ...tabular.Row) *Memory {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range rows {
		m.sheets[sheet] = append(m.sheets[sheet], slices.Clone(r))
	}
	return m
}

// Rows возвращает все строки листа.
func (m *Memory) Rows(sheet string) []tabular.Row {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.sheets[sheet])
}

// Calls возвращает журнал обращений.
func (m *Memory) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.calls)
}

// CountOps возвращает число обращений с операцией op (read, append).
func (m *Memory) CountOps(op string) int {
	n := 0
	for _, c := range m.Calls() {
		if c.Op == op {
			n++
		}
	}
	return n
}

func (m *Memory) ReadRange(_ context.Context, resource, rng string) ([]tabular.Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Op: "read", Resource: resource, Range: rng})
	if m.ReadErr != nil {
		return nil, m.ReadErr
	}

	r, err := tabular.ParseRange(rng)
	if err != nil {
		return nil, err
	}
	var out []tabular.Row
	for i, row := range m.sheets[r.Sheet] {
		if !r.Contains(i + 1) {
			continue
		}
		out = append(out, r.Clip(row))
	}
	return out, nil
}

func (m *Memory) AppendRows(_ context.Context, resource, rng string, rows []tabular.Row) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Op: "append", Resource: resource, Range: rng})
	if m.AppendErr != nil {
		return m.AppendErr
	}

	r, err := tabular.ParseRange(rng)
	if err != nil {
		return err
	}
	for _, row := range rows {
		m.sheets[r.Sheet] = append(m.sheets[r.Sheet], r.Place(row))
	}
	return nil
}
