// Package transport defines the chat delivery collaborator.
package transport

import (
	"context"

	"github.com/and161185/lumen/internal/model"
)

// Transport delivers screens to users.
type Transport interface {
	// SendMessage posts a new message and returns its handle.
	SendMessage(ctx context.Context, userID int64, text string, kb model.Keyboard) (model.MessageHandle, error)
	// SendPhoto posts a photo, given by a transport file id, with a caption.
	SendPhoto(ctx context.Context, userID int64, fileID, caption string, kb model.Keyboard) (model.MessageHandle, error)
	// DeleteMessage removes a previously sent message. Callers treat failures as best-effort.
	DeleteMessage(ctx context.Context, userID int64, handle model.MessageHandle) error
	// AnswerCallback acknowledges a button press; text may be empty.
	AnswerCallback(ctx context.Context, callbackID, text string) error
}
