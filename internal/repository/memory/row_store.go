// Package memory contains an in-process implementation of the row store.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/and161185/lumen/internal/repository"
)

// RowStore keeps tables in memory. It serializes single calls but, like the external
// stores it stands in for, offers no atomicity across calls.
type RowStore struct {
	mu     sync.RWMutex
	tables map[string][][]string
}

// NewRowStore constructs an empty store.
func NewRowStore() *RowStore {
	return &RowStore{tables: make(map[string][][]string)}
}

// QueryRows returns copies of all rows of table.
func (s *RowStore) QueryRows(_ context.Context, table string) ([]repository.Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := s.tables[table]
	out := make([]repository.Row, 0, len(rows))
	for i, r := range rows {
		out = append(out, repository.Row{Index: i, Cells: append([]string(nil), r...)})
	}
	return out, nil
}

// AppendRow adds a row at the end of table.
func (s *RowStore) AppendRow(_ context.Context, table string, cells []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[table] = append(s.tables[table], append([]string(nil), cells...))
	return nil
}

// UpdateRow overwrites an existing row.
func (s *RowStore) UpdateRow(_ context.Context, table string, index int, cells []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.tables[table]
	if index < 0 || index >= len(rows) {
		return fmt.Errorf("update %s row %d: out of range (%d rows)", table, index, len(rows))
	}
	rows[index] = append([]string(nil), cells...)
	return nil
}

// Len returns the number of rows in table.
func (s *RowStore) Len(table string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tables[table])
}
