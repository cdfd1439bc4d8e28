package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/and161185/lumen/internal/errs"
	"github.com/and161185/lumen/internal/model"
	"github.com/and161185/lumen/internal/view"
)

var fieldStates = map[string]model.State{
	view.FieldName:  model.StateEditName,
	view.FieldAge:   model.StateEditAge,
	view.FieldCity:  model.StateEditCity,
	view.FieldAbout: model.StateEditAbout,
	view.FieldPhoto: model.StateEditPhoto,
}

// ShowProfile shows the user's own profile on the IDLE screen.
func (o *Onboarding) ShowProfile(ctx context.Context, sess *Session) error {
	return o.showProfile(ctx, sess, "")
}

// EditMenu offers the profile fields to change, at most once per model.ProfileEditCooldown.
func (o *Onboarding) EditMenu(ctx context.Context, sess *Session) error {
	if _, err := o.editable(ctx, sess.UserID); err != nil {
		return err
	}
	text, kb := view.EditMenu()
	return o.screens.ShowScreen(ctx, sess.UserID, sess, model.StateIdle, text, kb)
}

// EditField asks for the new value of field.
func (o *Onboarding) EditField(ctx context.Context, sess *Session, field string) error {
	state, ok := fieldStates[field]
	if !ok {
		return fmt.Errorf("%w: profile field %q", errs.ErrValidation, field)
	}
	if _, err := o.editable(ctx, sess.UserID); err != nil {
		return err
	}
	text, kb := view.EditPrompt(state, "")
	return o.screens.ShowScreen(ctx, sess.UserID, sess, state, text, kb)
}

// ApplyEdit takes a text value for the field being edited. A rejected value re-asks
// the same question.
func (o *Onboarding) ApplyEdit(ctx context.Context, sess *Session, text string) error {
	if !sess.State.IsEditing() {
		return fmt.Errorf("%w: edit in state %s", errs.ErrValidation, sess.State)
	}
	u, err := o.editable(ctx, sess.UserID)
	if err != nil {
		return err
	}
	text = strings.TrimSpace(text)
	switch {
	case sess.State == model.StateEditPhoto:
		return o.editPrompt(ctx, sess, "Please send a photo.")
	case text == "":
		return o.editPrompt(ctx, sess, "Please type an answer.")
	case len(text) > maxAnswerLen:
		return o.editPrompt(ctx, sess, fmt.Sprintf("Please keep it under %d characters.", maxAnswerLen))
	}

	switch sess.State {
	case model.StateEditName:
		u.Name = text
	case model.StateEditAge:
		age, err := strconv.Atoi(text)
		if err != nil || age < MinAge || age > MaxAge {
			return o.editPrompt(ctx, sess, fmt.Sprintf("Age must be a number from %d to %d.", MinAge, MaxAge))
		}
		u.Age = age
	case model.StateEditCity:
		u.City = text
	case model.StateEditAbout:
		u.About = text
	}
	return o.saveEdit(ctx, sess, u)
}

// ApplyPhoto replaces the main photo while the user is editing it.
func (o *Onboarding) ApplyPhoto(ctx context.Context, sess *Session, fileID string) error {
	if sess.State != model.StateEditPhoto {
		return fmt.Errorf("%w: photo in state %s", errs.ErrValidation, sess.State)
	}
	u, err := o.editable(ctx, sess.UserID)
	if err != nil {
		return err
	}
	u.PhotoMain = fileID
	if len(u.Photos) == 0 {
		u.Photos = []string{fileID}
	} else {
		u.Photos = append([]string{fileID}, u.Photos[1:]...)
	}
	return o.saveEdit(ctx, sess, u)
}

// editable loads a registered profile whose last edit is older than the cooldown.
func (o *Onboarding) editable(ctx context.Context, userID int64) (model.User, error) {
	u, err := o.users.Get(ctx, userID)
	if err != nil {
		return model.User{}, fmt.Errorf("profile: %w", err)
	}
	if !u.ProfileEditedAt.IsZero() && o.now().Sub(u.ProfileEditedAt) < model.ProfileEditCooldown {
		return model.User{}, errs.ErrEditLimit
	}
	return u, nil
}

func (o *Onboarding) saveEdit(ctx context.Context, sess *Session, u model.User) error {
	u.ProfileEditedAt = o.now()
	if err := o.users.Save(ctx, u); err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	o.log.Info("profile edited", zap.Int64("user_id", u.ID), zap.String("state", string(sess.State)))
	return o.showProfile(ctx, sess, "Profile updated.")
}

func (o *Onboarding) editPrompt(ctx context.Context, sess *Session, problem string) error {
	text, kb := view.EditPrompt(sess.State, problem)
	return o.screens.ShowScreen(ctx, sess.UserID, sess, sess.State, text, kb)
}

func (o *Onboarding) showProfile(ctx context.Context, sess *Session, notice string) error {
	u, err := o.users.Get(ctx, sess.UserID)
	if err != nil {
		return fmt.Errorf("profile: %w", err)
	}
	text, kb := view.Profile(u, notice)
	return o.screens.ShowScreen(ctx, sess.UserID, sess, model.StateIdle, text, kb)
}
