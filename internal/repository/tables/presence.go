package tables

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/and161185/lumen/internal/model"
	"github.com/and161185/lumen/internal/repository"
)

// presence columns: user_id, state, current_dialog_id, main_message_handle, updated_at

// PresenceRepo implements repository.PresenceRepository.
type PresenceRepo struct{ store repository.RowStore }

// NewPresenceRepo constructs a presence repository.
func NewPresenceRepo(store repository.RowStore) *PresenceRepo { return &PresenceRepo{store: store} }

// Get returns the user's presence or a zero IDLE record when none exists.
func (r *PresenceRepo) Get(ctx context.Context, userID int64) (model.Presence, error) {
	rows, err := r.store.QueryRows(ctx, repository.TablePresence)
	if err != nil {
		return model.Presence{}, fmt.Errorf("presence get %d: %w", userID, err)
	}
	row, ok := findLast(rows, formatInt64(userID))
	if !ok {
		return model.Presence{UserID: userID, State: model.StateIdle}, nil
	}
	return decodePresence(userID, row.Cells), nil
}

// Set replaces the user's presence; updated_at is always now.
func (r *PresenceRepo) Set(
	ctx context.Context, userID int64, state model.State, dialogID string, handle model.MessageHandle, now time.Time,
) error {
	cells := []string{
		formatInt64(userID),
		string(state),
		dialogID,
		formatHandle(handle),
		formatTime(now),
	}
	if err := upsert(ctx, r.store, repository.TablePresence, cells); err != nil {
		return fmt.Errorf("presence set %d: %w", userID, err)
	}
	return nil
}

func decodePresence(userID int64, cells []string) model.Presence {
	p := model.Presence{
		UserID:          userID,
		State:           model.State(cell(cells, 1)),
		CurrentDialogID: cell(cells, 2),
		MainMessage:     parseHandle(cell(cells, 3)),
		UpdatedAt:       parseTime(cell(cells, 4)),
	}
	if p.State == "" {
		p.State = model.StateIdle
	}
	return p
}

func formatHandle(h model.MessageHandle) string {
	if h == 0 {
		return ""
	}
	return strconv.Itoa(int(h))
}

func parseHandle(s string) model.MessageHandle {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return model.MessageHandle(v)
}
