package tables

import (
	"context"
	"fmt"

	"github.com/and161185/lumen/internal/model"
	"github.com/and161185/lumen/internal/repository"
)

// dialog_meta columns: dialog_id, u1_last_open_at, u2_last_open_at, u1_last_notify_at, u2_last_notify_at

// DialogMetaRepo implements repository.DialogMetaRepository.
type DialogMetaRepo struct{ store repository.RowStore }

// NewDialogMetaRepo constructs a dialog meta repository.
func NewDialogMetaRepo(store repository.RowStore) *DialogMetaRepo {
	return &DialogMetaRepo{store: store}
}

// Get returns the record for dialogID; every timestamp is zero when it does not exist.
func (r *DialogMetaRepo) Get(ctx context.Context, dialogID string) (model.DialogMeta, error) {
	rows, err := r.store.QueryRows(ctx, repository.TableDialogMeta)
	if err != nil {
		return model.DialogMeta{}, fmt.Errorf("dialog meta get %s: %w", dialogID, err)
	}
	row, ok := findLast(rows, dialogID)
	if !ok {
		return model.DialogMeta{DialogID: dialogID}, nil
	}
	return model.DialogMeta{
		DialogID:       dialogID,
		U1LastOpenAt:   parseTime(cell(row.Cells, 1)),
		U2LastOpenAt:   parseTime(cell(row.Cells, 2)),
		U1LastNotifyAt: parseTime(cell(row.Cells, 3)),
		U2LastNotifyAt: parseTime(cell(row.Cells, 4)),
	}, nil
}

// Upsert overwrites the existing row for rec.DialogID or appends one.
func (r *DialogMetaRepo) Upsert(ctx context.Context, rec model.DialogMeta) error {
	if rec.DialogID == "" {
		return fmt.Errorf("dialog meta upsert: empty dialog id")
	}
	cells := []string{
		rec.DialogID,
		formatTime(rec.U1LastOpenAt),
		formatTime(rec.U2LastOpenAt),
		formatTime(rec.U1LastNotifyAt),
		formatTime(rec.U2LastNotifyAt),
	}
	if err := upsert(ctx, r.store, repository.TableDialogMeta, cells); err != nil {
		return fmt.Errorf("dialog meta upsert %s: %w", rec.DialogID, err)
	}
	return nil
}
