// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"
)

// Table names of the row store.
const (
	TablePresence    = "presence"
	TableDialogMeta  = "dialog_meta"
	TableDialogs     = "dialogs"
	TableUsers       = "users"
	TablePreferences = "preferences"
	TableMessages    = "messages"
)

// Row is a data row of a table together with its position.
// Index is zero-based and counts data rows only (no header).
type Row struct {
	Index int
	Cells []string
}

// RowStore is a row-oriented datastore without transactions or unique constraints.
// Callers implement upserts by scanning for a key and branching between UpdateRow and AppendRow.
type RowStore interface {
	// QueryRows returns every data row of table in storage order.
	QueryRows(ctx context.Context, table string) ([]Row, error)
	// AppendRow adds a row after the last one.
	AppendRow(ctx context.Context, table string, cells []string) error
	// UpdateRow overwrites the row at index.
	UpdateRow(ctx context.Context, table string, index int, cells []string) error
}
