package repository

import (
	"context"

	"github.com/and161185/lumen/internal/model"
)

// DialogRepository provides access to dialogs between two users.
type DialogRepository interface {
	// Get loads a dialog by id; errs.ErrNotFound if absent.
	Get(ctx context.Context, dialogID string) (model.Dialog, error)
	// ListByUser returns the user's dialogs in creation order.
	ListByUser(ctx context.Context, userID int64) ([]model.Dialog, error)
	// OpenCounts returns the number of OPEN dialogs per participant, read in one scan.
	OpenCounts(ctx context.Context) (map[int64]int, error)
	// Create appends a new dialog.
	Create(ctx context.Context, d model.Dialog) error
	// SetStatus updates the dialog status; errs.ErrNotFound if absent.
	SetStatus(ctx context.Context, dialogID string, status model.DialogStatus) error
}

// MessageRepository stores append-only dialog messages.
type MessageRepository interface {
	// Append stores a message.
	Append(ctx context.Context, m model.Message) error
	// ListRecent returns up to limit latest messages of a dialog, oldest first.
	ListRecent(ctx context.Context, dialogID string, limit int) ([]model.Message, error)
}
