package postgres

import (
	"context"
	"fmt"

	"github.com/and161185/lumen/internal/errs"
	"github.com/and161185/lumen/internal/repository"
)

// appendAttempts bounds retries when two appends race for the same row index.
const appendAttempts = 3

// RowStore implements repository.RowStore on a single sheet_rows table keyed by (tbl, idx).
// Like a spreadsheet it has no per-table schema and no unique keys on row contents.
type RowStore struct{ db *DB }

// NewRowStore constructs a row store.
func NewRowStore(db *DB) *RowStore { return &RowStore{db: db} }

// QueryRows returns all rows of table ordered by index.
func (s *RowStore) QueryRows(ctx context.Context, table string) ([]repository.Row, error) {
	const q = `SELECT idx, cells FROM sheet_rows WHERE tbl=$1 ORDER BY idx ASC`
	rows, err := s.db.Pool.Query(ctx, q, table)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	var out []repository.Row
	for rows.Next() {
		var (
			idx   int
			cells []string
		)
		if err := rows.Scan(&idx, &cells); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		out = append(out, repository.Row{Index: idx, Cells: cells})
	}
	return out, rows.Err()
}

// AppendRow inserts a row at MAX(idx)+1. A concurrent append taking the same index
// surfaces as a unique violation and is retried.
func (s *RowStore) AppendRow(ctx context.Context, table string, cells []string) error {
	const q = `
INSERT INTO sheet_rows (tbl, idx, cells)
SELECT $1::text, COALESCE(MAX(idx) + 1, 0), $2::text[]
FROM sheet_rows WHERE tbl=$1::text`
	var err error
	for i := 0; i < appendAttempts; i++ {
		_, err = s.db.Pool.Exec(ctx, q, table, cells)
		if !isUniqueViolation(err) {
			break
		}
	}
	if err != nil {
		return fmt.Errorf("append %s: %w", table, err)
	}
	return nil
}

// UpdateRow overwrites the cells of an existing row.
func (s *RowStore) UpdateRow(ctx context.Context, table string, index int, cells []string) error {
	const q = `UPDATE sheet_rows SET cells=$3 WHERE tbl=$1 AND idx=$2`
	tag, err := s.db.Pool.Exec(ctx, q, table, index, cells)
	if err != nil {
		return fmt.Errorf("update %s row %d: %w", table, index, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update %s row %d: %w", table, index, errs.ErrNotFound)
	}
	return nil
}
