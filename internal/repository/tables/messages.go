package tables

import (
	"context"
	"fmt"

	"github.com/and161185/lumen/internal/model"
	"github.com/and161185/lumen/internal/repository"
)

// messages columns: dialog_id, sender_id, text, created_at

// MessageRepo implements repository.MessageRepository.
type MessageRepo struct{ store repository.RowStore }

// NewMessageRepo constructs a message repository.
func NewMessageRepo(store repository.RowStore) *MessageRepo { return &MessageRepo{store: store} }

// Append stores a message.
func (r *MessageRepo) Append(ctx context.Context, m model.Message) error {
	cells := []string{m.DialogID, formatInt64(m.SenderID), m.Text, formatTime(m.CreatedAt)}
	if err := r.store.AppendRow(ctx, repository.TableMessages, cells); err != nil {
		return fmt.Errorf("message append %s: %w", m.DialogID, err)
	}
	return nil
}

// ListRecent returns the last limit messages of a dialog, oldest first.
func (r *MessageRepo) ListRecent(ctx context.Context, dialogID string, limit int) ([]model.Message, error) {
	rows, err := r.store.QueryRows(ctx, repository.TableMessages)
	if err != nil {
		return nil, fmt.Errorf("message list %s: %w", dialogID, err)
	}
	var out []model.Message
	for _, row := range rows {
		if cell(row.Cells, 0) != dialogID {
			continue
		}
		sender, ok := parseInt64(cell(row.Cells, 1))
		if !ok {
			continue
		}
		out = append(out, model.Message{
			DialogID:  dialogID,
			SenderID:  sender,
			Text:      cell(row.Cells, 2),
			CreatedAt: parseTime(cell(row.Cells, 3)),
		})
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}
