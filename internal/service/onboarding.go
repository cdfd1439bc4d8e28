package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/lumen/internal/errs"
	"github.com/and161185/lumen/internal/model"
	"github.com/and161185/lumen/internal/repository"
	"github.com/and161185/lumen/internal/view"
)

// Age bounds accepted by the questionnaire.
const (
	MinAge = 18
	MaxAge = 99
)

const maxAnswerLen = 500

// Onboarding walks a new user through the profile questionnaire.
type Onboarding struct {
	users     repository.UserRepository
	screens   *ScreenController
	dialogSvc *Dialogs
	now       func() time.Time
	log       *zap.Logger
}

// NewOnboarding wires the onboarding service.
func NewOnboarding(users repository.UserRepository, screens *ScreenController, dialogSvc *Dialogs, log *zap.Logger) *Onboarding {
	if log == nil {
		log = zap.NewNop()
	}
	return &Onboarding{users: users, screens: screens, dialogSvc: dialogSvc, now: time.Now, log: log}
}

// Start greets the user: registered users land on their dialogs, everyone else
// starts the questionnaire from the first question.
func (o *Onboarding) Start(ctx context.Context, sess *Session, username string) error {
	u, err := o.users.Get(ctx, sess.UserID)
	switch {
	case err == nil && u.OnboardingCompleted:
		return o.dialogSvc.ShowList(ctx, sess)
	case err == nil:
		u.Username = username
	case errors.Is(err, errs.ErrNotFound):
		u = model.User{ID: sess.UserID, CreatedAt: o.now(), Username: username}
		o.log.Info("new user", zap.Int64("user_id", sess.UserID))
	default:
		return fmt.Errorf("start: %w", err)
	}
	if err := o.users.Save(ctx, u); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	return o.prompt(ctx, sess, model.StateOnboardingName, 0, "")
}

// Answer takes a text reply to the current question.
func (o *Onboarding) Answer(ctx context.Context, sess *Session, text string) error {
	u, err := o.draft(ctx, sess.UserID)
	if err != nil {
		return err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return o.prompt(ctx, sess, sess.State, len(u.Photos), "Please type an answer.")
	}
	if len(text) > maxAnswerLen {
		return o.prompt(ctx, sess, sess.State, len(u.Photos), fmt.Sprintf("Please keep it under %d characters.", maxAnswerLen))
	}

	var next model.State
	switch sess.State {
	case model.StateOnboardingName:
		u.Name, next = text, model.StateOnboardingAge
	case model.StateOnboardingAge:
		age, err := strconv.Atoi(text)
		if err != nil || age < MinAge || age > MaxAge {
			return o.prompt(ctx, sess, sess.State, 0, fmt.Sprintf("Age must be a number from %d to %d.", MinAge, MaxAge))
		}
		u.Age, next = age, model.StateOnboardingCity
	case model.StateOnboardingCity:
		u.City, next = text, model.StateOnboardingAbout
	case model.StateOnboardingAbout:
		u.About, next = text, model.StateOnboardingPhotoMain
	case model.StateOnboardingPhotoMain, model.StateOnboardingPhotoExtra:
		return o.prompt(ctx, sess, sess.State, len(u.Photos), "Please send a photo.")
	default:
		return fmt.Errorf("%w: answer in state %s", errs.ErrValidation, sess.State)
	}

	if err := o.users.Save(ctx, u); err != nil {
		return fmt.Errorf("save answer: %w", err)
	}
	return o.prompt(ctx, sess, next, len(u.Photos), "")
}

// Photo takes the main photo, then extra photos up to model.MaxPhotos. Reaching the limit
// finishes onboarding.
func (o *Onboarding) Photo(ctx context.Context, sess *Session, fileID string) error {
	if sess.State != model.StateOnboardingPhotoMain && sess.State != model.StateOnboardingPhotoExtra {
		return fmt.Errorf("%w: photo in state %s", errs.ErrValidation, sess.State)
	}
	u, err := o.draft(ctx, sess.UserID)
	if err != nil {
		return err
	}
	if sess.State == model.StateOnboardingPhotoMain || u.PhotoMain == "" {
		u.PhotoMain = fileID
		u.Photos = []string{fileID}
	} else if len(u.Photos) < model.MaxPhotos {
		u.Photos = append(u.Photos, fileID)
	}
	if len(u.Photos) >= model.MaxPhotos {
		return o.complete(ctx, sess, u)
	}
	if err := o.users.Save(ctx, u); err != nil {
		return fmt.Errorf("save photo: %w", err)
	}
	return o.prompt(ctx, sess, model.StateOnboardingPhotoExtra, len(u.Photos), "")
}

// Finish completes onboarding once a main photo exists.
func (o *Onboarding) Finish(ctx context.Context, sess *Session) error {
	if !sess.State.IsOnboarding() {
		return o.dialogSvc.ShowList(ctx, sess)
	}
	u, err := o.draft(ctx, sess.UserID)
	if err != nil {
		return err
	}
	if u.PhotoMain == "" {
		return o.prompt(ctx, sess, model.StateOnboardingPhotoMain, 0, "A main photo is required.")
	}
	return o.complete(ctx, sess, u)
}

func (o *Onboarding) complete(ctx context.Context, sess *Session, u model.User) error {
	u.OnboardingCompleted = true
	if err := o.users.Save(ctx, u); err != nil {
		return fmt.Errorf("finish onboarding: %w", err)
	}
	o.log.Info("onboarding completed", zap.Int64("user_id", u.ID), zap.Int("photos", len(u.Photos)))
	return o.dialogSvc.ShowList(ctx, sess)
}

// draft loads the profile being filled in, creating an empty one if the row is missing.
func (o *Onboarding) draft(ctx context.Context, userID int64) (model.User, error) {
	u, err := o.users.Get(ctx, userID)
	if errors.Is(err, errs.ErrNotFound) {
		return model.User{ID: userID, CreatedAt: o.now()}, nil
	}
	if err != nil {
		return model.User{}, fmt.Errorf("load profile: %w", err)
	}
	return u, nil
}

func (o *Onboarding) prompt(ctx context.Context, sess *Session, state model.State, photos int, problem string) error {
	text, kb := view.OnboardingPrompt(state, photos, problem)
	return o.screens.ShowScreen(ctx, sess.UserID, sess, state, text, kb)
}
