// Package bot routes inbound transport events to the services and runs the event loop.
package bot

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/and161185/lumen/internal/errs"
	"github.com/and161185/lumen/internal/model"
	"github.com/and161185/lumen/internal/service"
	"github.com/and161185/lumen/internal/transport"
	"github.com/and161185/lumen/internal/view"
)

const finishProfileFirst = "Finish your profile first."

// Dispatcher decides which service handles an event based on its kind and the user's state.
type Dispatcher struct {
	screens    *service.ScreenController
	onboarding *service.Onboarding
	matching   *service.Matching
	dialogs    *service.Dialogs
	tr         transport.Transport
	log        *zap.Logger
}

// NewDispatcher wires the dispatcher.
func NewDispatcher(
	screens *service.ScreenController,
	onboarding *service.Onboarding,
	matching *service.Matching,
	dialogs *service.Dialogs,
	tr transport.Transport,
	log *zap.Logger,
) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{screens: screens, onboarding: onboarding, matching: matching, dialogs: dialogs, tr: tr, log: log}
}

// Handle processes one event with a session loaded from presence.
func (d *Dispatcher) Handle(ctx context.Context, ev model.Event) error {
	sess, err := d.screens.Session(ctx, ev.UserID)
	if err != nil {
		if ev.Kind == model.EventButton {
			d.answer(ctx, ev, "")
		}
		return err
	}

	switch ev.Kind {
	case model.EventButton:
		return d.button(ctx, sess, ev)
	case model.EventCommand:
		defer d.dropInbound(ctx, ev)
		return d.command(ctx, sess, ev)
	case model.EventText:
		defer d.dropInbound(ctx, ev)
		return d.text(ctx, sess, ev)
	case model.EventPhoto:
		defer d.dropInbound(ctx, ev)
		switch sess.State {
		case model.StateOnboardingPhotoMain, model.StateOnboardingPhotoExtra:
			return d.onboarding.Photo(ctx, sess, ev.Payload)
		case model.StateEditPhoto:
			return d.onboarding.ApplyPhoto(ctx, sess, ev.Payload)
		}
		return nil
	}
	return nil
}

func (d *Dispatcher) command(ctx context.Context, sess *service.Session, ev model.Event) error {
	switch ev.Payload {
	case "start":
		return d.onboarding.Start(ctx, sess, ev.Username)
	case "dialogs":
		if sess.State.IsOnboarding() {
			return nil
		}
		return d.dialogs.ShowList(ctx, sess)
	case "profile":
		if sess.State.IsOnboarding() {
			return nil
		}
		return d.onboarding.ShowProfile(ctx, sess)
	}
	return nil
}

func (d *Dispatcher) text(ctx context.Context, sess *service.Session, ev model.Event) error {
	switch {
	case sess.State.IsOnboarding():
		return d.onboarding.Answer(ctx, sess, ev.Payload)
	case sess.State.IsEditing():
		return d.onboarding.ApplyEdit(ctx, sess, ev.Payload)
	case sess.State == model.StateDialog:
		err := d.dialogs.Send(ctx, sess, ev.Payload)
		if errors.Is(err, errs.ErrDialogClosed) || errors.Is(err, errs.ErrNotParticipant) {
			return d.dialogs.ShowList(ctx, sess)
		}
		return err
	default:
		// unregistered users start onboarding, registered ones get their dialogs
		return d.onboarding.Start(ctx, sess, ev.Username)
	}
}

func (d *Dispatcher) button(ctx context.Context, sess *service.Session, ev model.Event) error {
	cb, err := view.ParseCallback(ev.Payload)
	if err != nil {
		d.log.Debug("unknown button", zap.Int64("user_id", ev.UserID), zap.Error(err))
		d.answer(ctx, ev, "")
		return nil
	}
	if sess.State.IsOnboarding() && cb.Action != view.ActionFinishOnboarding {
		d.answer(ctx, ev, finishProfileFirst)
		return nil
	}

	err = d.route(ctx, sess, ev, cb)
	switch {
	case errors.Is(err, errs.ErrDialogLimit):
		d.answer(ctx, ev, view.DialogLimit)
		return nil
	case errors.Is(err, errs.ErrEditLimit):
		d.answer(ctx, ev, view.EditLimit)
		return nil
	case errors.Is(err, errs.ErrDialogClosed), errors.Is(err, errs.ErrNotParticipant), errors.Is(err, errs.ErrNotFound):
		d.answer(ctx, ev, view.DialogClosed)
		if sess.State == model.StateDialog {
			// the dialog screen is stale; fall back to the list
			return d.dialogs.ShowList(ctx, sess)
		}
		return nil
	}
	d.answer(ctx, ev, "")
	return err
}

func (d *Dispatcher) route(ctx context.Context, sess *service.Session, ev model.Event, cb view.Callback) error {
	switch cb.Action {
	case view.ActionDialogs:
		return d.dialogs.ShowList(ctx, sess)
	case view.ActionRecNext:
		return d.matching.Next(ctx, sess)
	case view.ActionLike:
		return d.matching.Like(ctx, sess, cb.UserID)
	case view.ActionSkip:
		return d.matching.Skip(ctx, sess, cb.UserID)
	case view.ActionProfile:
		return d.onboarding.ShowProfile(ctx, sess)
	case view.ActionFinishOnboarding:
		return d.onboarding.Finish(ctx, sess)
	case view.ActionOpenDialog:
		return d.dialogs.Open(ctx, sess, cb.DialogID)
	case view.ActionOpenNotification:
		if ev.Message != 0 && ev.Message != sess.MainMessage {
			d.delete(ctx, ev.UserID, ev.Message)
		}
		return d.dialogs.Open(ctx, sess, cb.DialogID)
	case view.ActionCloseDialog:
		return d.dialogs.Close(ctx, sess, cb.DialogID)
	case view.ActionPartnerProfile:
		return d.dialogs.ShowPartner(ctx, sess, cb.DialogID)
	case view.ActionEditProfile:
		return d.onboarding.EditMenu(ctx, sess)
	case view.ActionEditField:
		return d.onboarding.EditField(ctx, sess, cb.Field)
	}
	return nil
}

// dropInbound removes the user's own message so the chat only shows the current screen.
func (d *Dispatcher) dropInbound(ctx context.Context, ev model.Event) {
	if ev.Message != 0 {
		d.delete(ctx, ev.UserID, ev.Message)
	}
}

func (d *Dispatcher) delete(ctx context.Context, userID int64, h model.MessageHandle) {
	if err := d.tr.DeleteMessage(ctx, userID, h); err != nil {
		d.log.Debug("delete message", zap.Int64("user_id", userID), zap.Int("handle", int(h)), zap.Error(err))
	}
}

func (d *Dispatcher) answer(ctx context.Context, ev model.Event, text string) {
	if ev.CallbackID == "" {
		return
	}
	if err := d.tr.AnswerCallback(ctx, ev.CallbackID, text); err != nil {
		d.log.Debug("answer callback", zap.Int64("user_id", ev.UserID), zap.Error(err))
	}
}
