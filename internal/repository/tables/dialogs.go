package tables

import (
	"context"
	"fmt"

	"github.com/and161185/lumen/internal/errs"
	"github.com/and161185/lumen/internal/model"
	"github.com/and161185/lumen/internal/repository"
)

// dialogs columns: dialog_id, participant_1, participant_2, created_at, status

// DialogRepo implements repository.DialogRepository.
type DialogRepo struct{ store repository.RowStore }

// NewDialogRepo constructs a dialog repository.
func NewDialogRepo(store repository.RowStore) *DialogRepo { return &DialogRepo{store: store} }

func decodeDialog(cells []string) (model.Dialog, bool) {
	u1, ok1 := parseInt64(cell(cells, 1))
	u2, ok2 := parseInt64(cell(cells, 2))
	if cell(cells, 0) == "" || !ok1 || !ok2 {
		return model.Dialog{}, false
	}
	return model.Dialog{
		ID:        cell(cells, 0),
		U1:        u1,
		U2:        u2,
		CreatedAt: parseTime(cell(cells, 3)),
		Status:    model.DialogStatus(cell(cells, 4)),
	}, true
}

func encodeDialog(d model.Dialog) []string {
	return []string{d.ID, formatInt64(d.U1), formatInt64(d.U2), formatTime(d.CreatedAt), string(d.Status)}
}

// Get loads a dialog; malformed rows are treated as missing.
func (r *DialogRepo) Get(ctx context.Context, dialogID string) (model.Dialog, error) {
	rows, err := r.store.QueryRows(ctx, repository.TableDialogs)
	if err != nil {
		return model.Dialog{}, fmt.Errorf("dialog get %s: %w", dialogID, err)
	}
	row, ok := findLast(rows, dialogID)
	if !ok {
		return model.Dialog{}, errs.ErrNotFound
	}
	d, ok := decodeDialog(row.Cells)
	if !ok {
		return model.Dialog{}, errs.ErrNotFound
	}
	return d, nil
}

// ListByUser returns all dialogs the user participates in, in creation order.
func (r *DialogRepo) ListByUser(ctx context.Context, userID int64) ([]model.Dialog, error) {
	rows, err := r.store.QueryRows(ctx, repository.TableDialogs)
	if err != nil {
		return nil, fmt.Errorf("dialog list %d: %w", userID, err)
	}
	var out []model.Dialog
	for _, row := range rows {
		d, ok := decodeDialog(row.Cells)
		if !ok || d.Slot(userID) == 0 {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

// OpenCounts counts OPEN dialogs per participant. For duplicated ids the last row wins.
func (r *DialogRepo) OpenCounts(ctx context.Context) (map[int64]int, error) {
	rows, err := r.store.QueryRows(ctx, repository.TableDialogs)
	if err != nil {
		return nil, fmt.Errorf("dialog open counts: %w", err)
	}
	latest := make(map[string]model.Dialog, len(rows))
	for _, row := range rows {
		if d, ok := decodeDialog(row.Cells); ok {
			latest[d.ID] = d
		}
	}
	counts := make(map[int64]int)
	for _, d := range latest {
		if d.Status == model.DialogOpen {
			counts[d.U1]++
			counts[d.U2]++
		}
	}
	return counts, nil
}

// Create appends a dialog row.
func (r *DialogRepo) Create(ctx context.Context, d model.Dialog) error {
	if err := r.store.AppendRow(ctx, repository.TableDialogs, encodeDialog(d)); err != nil {
		return fmt.Errorf("dialog create %s: %w", d.ID, err)
	}
	return nil
}

// SetStatus rewrites the status cell of an existing dialog.
func (r *DialogRepo) SetStatus(ctx context.Context, dialogID string, status model.DialogStatus) error {
	rows, err := r.store.QueryRows(ctx, repository.TableDialogs)
	if err != nil {
		return fmt.Errorf("dialog status %s: %w", dialogID, err)
	}
	row, ok := findLast(rows, dialogID)
	if !ok {
		return errs.ErrNotFound
	}
	d, ok := decodeDialog(row.Cells)
	if !ok {
		return errs.ErrNotFound
	}
	d.Status = status
	if err := r.store.UpdateRow(ctx, repository.TableDialogs, row.Index, encodeDialog(d)); err != nil {
		return fmt.Errorf("dialog status %s: %w", dialogID, err)
	}
	return nil
}
