package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/lumen/internal/errs"
	"github.com/and161185/lumen/internal/model"
	"github.com/and161185/lumen/internal/repository"
	"github.com/and161185/lumen/internal/view"
)

// DialogHistory is how many latest messages a dialog screen shows.
const DialogHistory = 10

// DialogRenderer builds dialog screens from stored dialogs, users and messages.
type DialogRenderer struct {
	dialogs  repository.DialogRepository
	messages repository.MessageRepository
	users    repository.UserRepository
}

// NewDialogRenderer constructs a DialogScreener.
func NewDialogRenderer(dialogs repository.DialogRepository, messages repository.MessageRepository, users repository.UserRepository) *DialogRenderer {
	return &DialogRenderer{dialogs: dialogs, messages: messages, users: users}
}

// DialogScreen renders the latest messages of dialogID for viewerID.
func (r *DialogRenderer) DialogScreen(ctx context.Context, viewerID int64, dialogID string) (string, model.Keyboard, error) {
	d, err := r.dialogs.Get(ctx, dialogID)
	if err != nil {
		return "", nil, err
	}
	other, _, ok := d.Other(viewerID)
	if !ok {
		return "", nil, errs.ErrNotParticipant
	}
	msgs, err := r.messages.ListRecent(ctx, dialogID, DialogHistory)
	if err != nil {
		return "", nil, err
	}
	title, err := title(ctx, r.users, other)
	if err != nil {
		return "", nil, err
	}
	text, kb := view.Dialog(dialogID, title, viewerID, msgs)
	return text, kb, nil
}

// title resolves a display name; a missing profile is not an error.
func title(ctx context.Context, users repository.UserRepository, userID int64) (string, error) {
	u, err := users.Get(ctx, userID)
	if errors.Is(err, errs.ErrNotFound) {
		return view.Title(model.User{ID: userID}), nil
	}
	if err != nil {
		return "", err
	}
	return view.Title(u), nil
}

// Dialogs implements the dialog list and in-dialog actions.
type Dialogs struct {
	dialogs   repository.DialogRepository
	messages  repository.MessageRepository
	meta      repository.DialogMetaRepository
	users     repository.UserRepository
	screens   *ScreenController
	throttler *Throttler
	now       func() time.Time
	log       *zap.Logger
}

// NewDialogs wires the dialog service.
func NewDialogs(
	dialogs repository.DialogRepository,
	messages repository.MessageRepository,
	meta repository.DialogMetaRepository,
	users repository.UserRepository,
	screens *ScreenController,
	throttler *Throttler,
	log *zap.Logger,
) *Dialogs {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dialogs{
		dialogs:   dialogs,
		messages:  messages,
		meta:      meta,
		users:     users,
		screens:   screens,
		throttler: throttler,
		now:       time.Now,
		log:       log,
	}
}

// OpenDialogs returns the user's dialogs with status OPEN.
func OpenDialogs(ctx context.Context, repo repository.DialogRepository, userID int64) ([]model.Dialog, error) {
	all, err := repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, d := range all {
		if d.Status == model.DialogOpen {
			out = append(out, d)
		}
	}
	return out, nil
}

// ShowList shows the DIALOGS screen.
func (s *Dialogs) ShowList(ctx context.Context, sess *Session) error {
	open, err := OpenDialogs(ctx, s.dialogs, sess.UserID)
	if err != nil {
		return fmt.Errorf("list dialogs: %w", err)
	}
	entries := make([]view.DialogEntry, 0, len(open))
	for _, d := range open {
		other, _, _ := d.Other(sess.UserID)
		t, err := title(ctx, s.users, other)
		if err != nil {
			return fmt.Errorf("list dialogs: %w", err)
		}
		entries = append(entries, view.DialogEntry{DialogID: d.ID, Title: t})
	}
	text, kb := view.DialogsList(entries)
	return s.screens.ShowScreen(ctx, sess.UserID, sess, model.StateDialogs, text, kb)
}

// Open enters the dialog and stamps the viewer's last_open.
func (s *Dialogs) Open(ctx context.Context, sess *Session, dialogID string) error {
	d, err := s.participantDialog(ctx, sess.UserID, dialogID)
	if err != nil {
		return err
	}
	meta, err := s.meta.Get(ctx, dialogID)
	if err != nil {
		return fmt.Errorf("open dialog: %w", err)
	}
	meta.DialogID = dialogID
	meta.SetLastOpen(d.Slot(sess.UserID), s.now())
	if err := s.meta.Upsert(ctx, meta); err != nil {
		return fmt.Errorf("open dialog: %w", err)
	}
	return s.screens.RenderDialogScreen(ctx, sess.UserID, dialogID, sess)
}

// ShowPartner shows the counterpart's profile, with the main photo when there is one.
func (s *Dialogs) ShowPartner(ctx context.Context, sess *Session, dialogID string) error {
	d, err := s.participantDialog(ctx, sess.UserID, dialogID)
	if err != nil {
		return err
	}
	other, _, _ := d.Other(sess.UserID)
	u, err := s.users.Get(ctx, other)
	if err != nil {
		return fmt.Errorf("partner profile: %w", err)
	}
	text, kb := view.PartnerCard(dialogID, u)
	if u.PhotoMain != "" {
		return s.screens.ShowPhotoScreen(ctx, sess.UserID, sess, model.StateIdle, u.PhotoMain, view.Caption(text), kb)
	}
	return s.screens.ShowScreen(ctx, sess.UserID, sess, model.StateIdle, text, kb)
}

// Send stores a message in the session's current dialog, re-renders the sender's
// screen and lets the throttler inform the counterpart.
func (s *Dialogs) Send(ctx context.Context, sess *Session, text string) error {
	text = strings.TrimSpace(text)
	if sess.State != model.StateDialog || sess.DialogID == "" {
		return fmt.Errorf("%w: not in a dialog", errs.ErrValidation)
	}
	if text == "" {
		return nil
	}
	dialogID := sess.DialogID
	if _, err := s.participantDialog(ctx, sess.UserID, dialogID); err != nil {
		return err
	}

	msg := model.Message{DialogID: dialogID, SenderID: sess.UserID, Text: text, CreatedAt: s.now()}
	if err := s.messages.Append(ctx, msg); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	if err := s.screens.RenderDialogScreen(ctx, sess.UserID, dialogID, sess); err != nil {
		return err
	}
	if _, err := s.throttler.ConsiderNotifying(ctx, dialogID, sess.UserID); err != nil {
		// the message is stored; the counterpart will be informed by a later event
		s.log.Warn("consider notifying", zap.String("dialog_id", dialogID), zap.Error(err))
	}
	return nil
}

// Close marks the dialog closed and returns to the dialogs list.
func (s *Dialogs) Close(ctx context.Context, sess *Session, dialogID string) error {
	if _, err := s.participantDialog(ctx, sess.UserID, dialogID); err != nil {
		return err
	}
	if err := s.dialogs.SetStatus(ctx, dialogID, model.DialogClosed); err != nil {
		return fmt.Errorf("close dialog: %w", err)
	}
	s.log.Info("dialog closed", zap.String("dialog_id", dialogID), zap.Int64("by", sess.UserID))
	return s.ShowList(ctx, sess)
}

func (s *Dialogs) participantDialog(ctx context.Context, userID int64, dialogID string) (model.Dialog, error) {
	d, err := s.dialogs.Get(ctx, dialogID)
	if err != nil {
		return model.Dialog{}, fmt.Errorf("dialog %s: %w", dialogID, err)
	}
	if d.Slot(userID) == 0 {
		return model.Dialog{}, errs.ErrNotParticipant
	}
	if d.Status != model.DialogOpen {
		return model.Dialog{}, errs.ErrDialogClosed
	}
	return d, nil
}
