package repository

import (
	"context"

	"github.com/and161185/lumen/internal/model"
)

// UserRepository provides access to user profiles.
type UserRepository interface {
	// Get loads a user by id; errs.ErrNotFound if absent.
	Get(ctx context.Context, userID int64) (model.User, error)
	// Save upserts the full profile keyed by user id.
	Save(ctx context.Context, u model.User) error
	// ListCompleted returns users that finished onboarding.
	ListCompleted(ctx context.Context) ([]model.User, error)
}

// PreferenceRepository stores like/skip reactions.
type PreferenceRepository interface {
	// Add appends a reaction.
	Add(ctx context.Context, p model.Preference) error
	// ListFrom returns all reactions made by a user.
	ListFrom(ctx context.Context, userID int64) ([]model.Preference, error)
	// Liked reports whether from has liked to.
	Liked(ctx context.Context, from, to int64) (bool, error)
}
