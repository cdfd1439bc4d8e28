package tables

import (
	"context"
	"fmt"

	"github.com/and161185/lumen/internal/model"
	"github.com/and161185/lumen/internal/repository"
)

// preferences columns: from_user_id, to_user_id, action, created_at

// PreferenceRepo implements repository.PreferenceRepository.
type PreferenceRepo struct{ store repository.RowStore }

// NewPreferenceRepo constructs a preference repository.
func NewPreferenceRepo(store repository.RowStore) *PreferenceRepo {
	return &PreferenceRepo{store: store}
}

// Add appends a reaction.
func (r *PreferenceRepo) Add(ctx context.Context, p model.Preference) error {
	cells := []string{formatInt64(p.From), formatInt64(p.To), string(p.Action), formatTime(p.CreatedAt)}
	if err := r.store.AppendRow(ctx, repository.TablePreferences, cells); err != nil {
		return fmt.Errorf("preference add %d->%d: %w", p.From, p.To, err)
	}
	return nil
}

// ListFrom returns reactions made by userID.
func (r *PreferenceRepo) ListFrom(ctx context.Context, userID int64) ([]model.Preference, error) {
	rows, err := r.store.QueryRows(ctx, repository.TablePreferences)
	if err != nil {
		return nil, fmt.Errorf("preference list %d: %w", userID, err)
	}
	var out []model.Preference
	for _, row := range rows {
		from, ok1 := parseInt64(cell(row.Cells, 0))
		to, ok2 := parseInt64(cell(row.Cells, 1))
		if !ok1 || !ok2 || from != userID {
			continue
		}
		out = append(out, model.Preference{
			From:      from,
			To:        to,
			Action:    model.PreferenceAction(cell(row.Cells, 2)),
			CreatedAt: parseTime(cell(row.Cells, 3)),
		})
	}
	return out, nil
}

// Liked reports whether from has ever liked to.
func (r *PreferenceRepo) Liked(ctx context.Context, from, to int64) (bool, error) {
	prefs, err := r.ListFrom(ctx, from)
	if err != nil {
		return false, err
	}
	for _, p := range prefs {
		if p.To == to && p.Action == model.ActionLike {
			return true, nil
		}
	}
	return false, nil
}
