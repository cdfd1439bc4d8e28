package service

import (
	"context"
	"fmt"

	"github.com/and161185/lumen/internal/model"
)

// Session is the transient copy of a user's presence owned by one handler invocation.
// It must not be shared between goroutines.
type Session struct {
	UserID      int64
	State       model.State
	DialogID    string
	MainMessage model.MessageHandle
}

func sessionFromPresence(p model.Presence) *Session {
	return &Session{
		UserID:      p.UserID,
		State:       p.State,
		DialogID:    p.CurrentDialogID,
		MainMessage: p.MainMessage,
	}
}

// Session loads the user's presence into a fresh session.
func (c *ScreenController) Session(ctx context.Context, userID int64) (*Session, error) {
	p, err := c.presence.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	return sessionFromPresence(p), nil
}
