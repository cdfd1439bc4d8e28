// Package service contains the screen controller, the notification throttler and the
// bot features built on top of them.
package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/lumen/internal/errs"
	"github.com/and161185/lumen/internal/lease"
	"github.com/and161185/lumen/internal/model"
	"github.com/and161185/lumen/internal/repository"
	"github.com/and161185/lumen/internal/transport"
)

// DialogScreener renders the dialog screen as seen by viewerID.
type DialogScreener interface {
	DialogScreen(ctx context.Context, viewerID int64, dialogID string) (string, model.Keyboard, error)
}

// ScreenController keeps at most one live screen message per user. It is the only
// component that writes presence.
type ScreenController struct {
	presence repository.PresenceRepository
	tr       transport.Transport
	screener DialogScreener
	locker   *lease.Locker
	now      func() time.Time
	log      *zap.Logger
}

// NewScreenController wires the controller. locker may be nil.
func NewScreenController(presence repository.PresenceRepository, tr transport.Transport, screener DialogScreener, locker *lease.Locker, log *zap.Logger) *ScreenController {
	if log == nil {
		log = zap.NewNop()
	}
	return &ScreenController{
		presence: presence,
		tr:       tr,
		screener: screener,
		locker:   locker,
		now:      time.Now,
		log:      log,
	}
}

// ShowScreen replaces the user's screen with text and kb and moves the user to state.
// A nil sess is loaded from presence. DIALOG is rejected with errs.ErrDialogScreen, both as
// the target state and as the stored state of a background call: dialog screens carry a
// dialog reference and go through RenderDialogScreen.
// On failure neither presence nor sess is changed.
func (c *ScreenController) ShowScreen(ctx context.Context, userID int64, sess *Session, state model.State, text string, kb model.Keyboard) error {
	return c.show(ctx, userID, sess, state, func(ctx context.Context) (model.MessageHandle, error) {
		return c.tr.SendMessage(ctx, userID, text, kb)
	})
}

// ShowPhotoScreen is ShowScreen for a screen made of a photo with a caption.
func (c *ScreenController) ShowPhotoScreen(ctx context.Context, userID int64, sess *Session, state model.State, fileID, caption string, kb model.Keyboard) error {
	return c.show(ctx, userID, sess, state, func(ctx context.Context) (model.MessageHandle, error) {
		return c.tr.SendPhoto(ctx, userID, fileID, caption, kb)
	})
}

type sendFunc func(ctx context.Context) (model.MessageHandle, error)

func (c *ScreenController) show(ctx context.Context, userID int64, sess *Session, state model.State, send sendFunc) error {
	if state == model.StateDialog {
		return errs.ErrDialogScreen
	}

	unlock := c.lock(ctx, lease.UserKeyPrefix+strconv.FormatInt(userID, 10))
	defer unlock()

	if sess == nil {
		loaded, err := c.Session(ctx, userID)
		if err != nil {
			return err
		}
		if loaded.State == model.StateDialog {
			return errs.ErrDialogScreen
		}
		sess = loaded
	}

	handle, err := c.replace(ctx, userID, sess.MainMessage, send)
	if err != nil {
		return err
	}
	if err := c.presence.Set(ctx, userID, state, "", handle, c.now()); err != nil {
		return fmt.Errorf("show screen: %w", err)
	}
	sess.State = state
	sess.DialogID = ""
	sess.MainMessage = handle
	return nil
}

// RenderDialogScreen replaces the user's screen with the dialog view and records
// {DIALOG, dialogID} in one presence write. sess may be nil for system-initiated refreshes.
func (c *ScreenController) RenderDialogScreen(ctx context.Context, userID int64, dialogID string, sess *Session) error {
	text, kb, err := c.screener.DialogScreen(ctx, userID, dialogID)
	if err != nil {
		return fmt.Errorf("render dialog: %w", err)
	}

	unlock := c.lock(ctx, lease.UserKeyPrefix+strconv.FormatInt(userID, 10))
	defer unlock()

	var prev model.MessageHandle
	if sess != nil {
		prev = sess.MainMessage
	} else {
		// presence is the source of truth when no handler owns the user
		p, err := c.presence.Get(ctx, userID)
		if err != nil {
			return fmt.Errorf("render dialog: %w", err)
		}
		prev = p.MainMessage
	}

	handle, err := c.replace(ctx, userID, prev, func(ctx context.Context) (model.MessageHandle, error) {
		return c.tr.SendMessage(ctx, userID, text, kb)
	})
	if err != nil {
		return err
	}
	if err := c.presence.Set(ctx, userID, model.StateDialog, dialogID, handle, c.now()); err != nil {
		return fmt.Errorf("render dialog: %w", err)
	}
	if sess != nil {
		sess.State = model.StateDialog
		sess.DialogID = dialogID
		sess.MainMessage = handle
	}
	return nil
}

// replace sends the new message, then deletes prev (best effort). If the send fails
// prev stays on screen.
func (c *ScreenController) replace(ctx context.Context, userID int64, prev model.MessageHandle, send sendFunc) (model.MessageHandle, error) {
	handle, err := send(ctx)
	if err != nil {
		return 0, fmt.Errorf("send screen: %w", err)
	}
	if prev != 0 && prev != handle {
		if err := c.tr.DeleteMessage(ctx, userID, prev); err != nil {
			c.log.Debug("previous screen not removed",
				zap.Int64("user_id", userID), zap.Int("handle", int(prev)), zap.Error(err))
		}
	}
	return handle, nil
}

func (c *ScreenController) lock(ctx context.Context, key string) func() {
	return acquire(ctx, c.locker, c.log, key)
}

// acquire takes an advisory lease; on failure the caller proceeds unlocked.
func acquire(ctx context.Context, locker *lease.Locker, log *zap.Logger, key string) func() {
	unlock, err := locker.Lock(ctx, key)
	if err != nil {
		lvl := zap.WarnLevel
		if errors.Is(err, context.Canceled) {
			lvl = zap.DebugLevel
		}
		log.Check(lvl, "proceeding without lease").Write(zap.String("key", key), zap.Error(err))
	}
	return unlock
}
