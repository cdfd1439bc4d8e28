package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/lumen/internal/errs"
	"github.com/and161185/lumen/internal/model"
	"github.com/and161185/lumen/internal/repository"
	"github.com/and161185/lumen/internal/view"
)

// Matching shows recommendations and turns mutual likes into dialogs.
type Matching struct {
	users     repository.UserRepository
	prefs     repository.PreferenceRepository
	dialogs   repository.DialogRepository
	screens   *ScreenController
	dialogSvc *Dialogs
	now       func() time.Time
	newID     func() string
	log       *zap.Logger
}

// NewMatching wires the matching service.
func NewMatching(
	users repository.UserRepository,
	prefs repository.PreferenceRepository,
	dialogs repository.DialogRepository,
	screens *ScreenController,
	dialogSvc *Dialogs,
	log *zap.Logger,
) *Matching {
	if log == nil {
		log = zap.NewNop()
	}
	return &Matching{
		users:     users,
		prefs:     prefs,
		dialogs:   dialogs,
		screens:   screens,
		dialogSvc: dialogSvc,
		now:       time.Now,
		newID:     func() string { return uuid.Must(uuid.NewV4()).String() },
		log:       log,
	}
}

// Candidate returns the first completed user that userID has not rated, has no dialog
// with, and who still has a free dialog slot. ok is false when nobody qualifies.
func (m *Matching) Candidate(ctx context.Context, userID int64) (model.User, bool, error) {
	counts, err := m.dialogs.OpenCounts(ctx)
	if err != nil {
		return model.User{}, false, err
	}
	return m.candidate(ctx, userID, counts)
}

// candidate does the work of Candidate with open-dialog counts already loaded.
func (m *Matching) candidate(ctx context.Context, userID int64, openCounts map[int64]int) (model.User, bool, error) {
	rated, err := m.prefs.ListFrom(ctx, userID)
	if err != nil {
		return model.User{}, false, err
	}
	mine, err := m.dialogs.ListByUser(ctx, userID)
	if err != nil {
		return model.User{}, false, err
	}
	exclude := map[int64]struct{}{userID: {}}
	for _, p := range rated {
		exclude[p.To] = struct{}{}
	}
	for _, d := range mine {
		other, _, _ := d.Other(userID)
		exclude[other] = struct{}{}
	}

	users, err := m.users.ListCompleted(ctx)
	if err != nil {
		return model.User{}, false, err
	}
	for _, u := range users {
		if _, skip := exclude[u.ID]; skip {
			continue
		}
		if openCounts[u.ID] >= model.MaxOpenDialogs {
			continue
		}
		return u, true, nil
	}
	return model.User{}, false, nil
}

// Next shows the next recommendation, or the EMPTY screen when there is none.
// errs.ErrDialogLimit is returned when the user has no free dialog slot.
func (m *Matching) Next(ctx context.Context, sess *Session) error {
	counts, err := m.dialogs.OpenCounts(ctx)
	if err != nil {
		return fmt.Errorf("next recommendation: %w", err)
	}
	if counts[sess.UserID] >= model.MaxOpenDialogs {
		return errs.ErrDialogLimit
	}

	u, ok, err := m.candidate(ctx, sess.UserID, counts)
	if err != nil {
		return fmt.Errorf("next recommendation: %w", err)
	}
	if !ok {
		text, kb := view.Empty()
		return m.screens.ShowScreen(ctx, sess.UserID, sess, model.StateEmpty, text, kb)
	}
	text, kb := view.Recommendation(u)
	return m.screens.ShowScreen(ctx, sess.UserID, sess, model.StateRecommendation, text, kb)
}

// Like records a like. A mutual like opens a new dialog when both sides have a free slot;
// otherwise the next recommendation is shown.
func (m *Matching) Like(ctx context.Context, sess *Session, target int64) error {
	if err := m.react(ctx, sess.UserID, target, model.ActionLike); err != nil {
		return err
	}
	mutual, err := m.prefs.Liked(ctx, target, sess.UserID)
	if err != nil {
		return fmt.Errorf("like: %w", err)
	}
	if !mutual {
		return m.Next(ctx, sess)
	}

	dialogID, err := m.createDialog(ctx, sess.UserID, target)
	if err != nil {
		if errors.Is(err, errs.ErrDialogLimit) || errors.Is(err, errs.ErrDialogClosed) {
			m.log.Info("mutual like without new dialog", zap.Int64("user_id", sess.UserID), zap.Int64("target", target), zap.Error(err))
			return m.Next(ctx, sess)
		}
		return err
	}
	return m.dialogSvc.Open(ctx, sess, dialogID)
}

// Skip records a skip and shows the next recommendation.
func (m *Matching) Skip(ctx context.Context, sess *Session, target int64) error {
	if err := m.react(ctx, sess.UserID, target, model.ActionSkip); err != nil {
		return err
	}
	return m.Next(ctx, sess)
}

func (m *Matching) react(ctx context.Context, from, to int64, action model.PreferenceAction) error {
	if from == to {
		return fmt.Errorf("%w: reaction to self", errs.ErrValidation)
	}
	p := model.Preference{From: from, To: to, Action: action, CreatedAt: m.now()}
	if err := m.prefs.Add(ctx, p); err != nil {
		return fmt.Errorf("%s: %w", action, err)
	}
	return nil
}

// createDialog returns the id of a new dialog, or of the already open one between u1 and u2.
func (m *Matching) createDialog(ctx context.Context, u1, u2 int64) (string, error) {
	existing, err := m.dialogs.ListByUser(ctx, u1)
	if err != nil {
		return "", fmt.Errorf("create dialog: %w", err)
	}
	for _, d := range existing {
		if other, _, _ := d.Other(u1); other != u2 {
			continue
		}
		if d.Status != model.DialogOpen {
			return "", errs.ErrDialogClosed
		}
		return d.ID, nil
	}

	counts, err := m.dialogs.OpenCounts(ctx)
	if err != nil {
		return "", fmt.Errorf("create dialog: %w", err)
	}
	if counts[u1] >= model.MaxOpenDialogs || counts[u2] >= model.MaxOpenDialogs {
		return "", errs.ErrDialogLimit
	}
	d := model.Dialog{ID: m.newID(), U1: u1, U2: u2, CreatedAt: m.now(), Status: model.DialogOpen}
	if err := m.dialogs.Create(ctx, d); err != nil {
		return "", fmt.Errorf("create dialog: %w", err)
	}
	m.log.Info("dialog created", zap.String("dialog_id", d.ID), zap.Int64("u1", u1), zap.Int64("u2", u2))
	return d.ID, nil
}
