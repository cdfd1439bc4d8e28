// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDialogScreen indicates the generic screen path was invoked while the session is in
	// DIALOG state; dialog screens are rendered only through RenderDialogScreen.
	ErrDialogScreen = errors.New("dialog screen must be rendered via RenderDialogScreen")

	// ErrNotParticipant indicates the user is not one of the dialog's two participants.
	ErrNotParticipant = errors.New("not a dialog participant")

	// ErrDialogClosed indicates an operation on a dialog whose status is CLOSED.
	ErrDialogClosed = errors.New("dialog closed")

	// ErrDialogLimit indicates a participant already has the maximum number of open dialogs.
	ErrDialogLimit = errors.New("open dialog limit reached")

	// ErrEditLimit indicates the profile was edited less than model.ProfileEditCooldown ago.
	ErrEditLimit = errors.New("profile edit limit")

	// ErrLeaseHeld indicates an advisory lease is currently held by another holder.
	ErrLeaseHeld = errors.New("lease held")

	// ErrValidation indicates rejected user input.
	ErrValidation = errors.New("validation")
)
