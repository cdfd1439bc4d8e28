// Package tables implements the per-table repositories on top of any repository.RowStore.
// Every write is a scan for the key followed by an update in place or an append; the store
// has no unique constraints, so two racing inserts can leave duplicate rows. Reads resolve
// duplicates by taking the last matching row, and writes target that same row.
package tables

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/and161185/lumen/internal/repository"
)

const boolTrue = "TRUE"

func cell(cells []string, i int) string {
	if i < len(cells) {
		return strings.TrimSpace(cells[i])
	}
	return ""
}

func parseInt64(s string) (int64, bool) {
	v, err := strconv.ParseInt(s, 10, 64)
	return v, err == nil
}

func formatInt64(v int64) string { return strconv.FormatInt(v, 10) }

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func formatBool(b bool) string {
	if b {
		return boolTrue
	}
	return "FALSE"
}

// findLast returns the last row whose first cell equals key.
func findLast(rows []repository.Row, key string) (repository.Row, bool) {
	for i := len(rows) - 1; i >= 0; i-- {
		if cell(rows[i].Cells, 0) == key {
			return rows[i], true
		}
	}
	return repository.Row{}, false
}

// upsert writes cells over the last row keyed by cells[0], or appends when none exists.
func upsert(ctx context.Context, store repository.RowStore, table string, cells []string) error {
	rows, err := store.QueryRows(ctx, table)
	if err != nil {
		return err
	}
	if row, ok := findLast(rows, cells[0]); ok {
		return store.UpdateRow(ctx, table, row.Index, cells)
	}
	return store.AppendRow(ctx, table, cells)
}
