package repository

import (
	"context"
	"time"

	"github.com/and161185/lumen/internal/model"
)

// PresenceRepository stores one presence record per user.
type PresenceRepository interface {
	// Get returns the user's presence, or a zero record in IDLE state if none exists.
	Get(ctx context.Context, userID int64) (model.Presence, error)
	// Set replaces every mutable field and stamps updated_at with now.
	Set(ctx context.Context, userID int64, state model.State, dialogID string, handle model.MessageHandle, now time.Time) error
}

// DialogMetaRepository stores per-dialog open/notify timestamps.
type DialogMetaRepository interface {
	// Get returns the dialog's meta record, zero-valued if absent.
	Get(ctx context.Context, dialogID string) (model.DialogMeta, error)
	// Upsert overwrites the record with the same dialog id or appends a new one.
	Upsert(ctx context.Context, rec model.DialogMeta) error
}
