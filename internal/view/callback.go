// Package view renders screen texts and inline keyboards and encodes button payloads.
package view

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/and161185/lumen/internal/errs"
)

// Action is the kind of a button press.
type Action string

const (
	ActionDialogs          Action = "go:dialogs"
	ActionRecNext          Action = "rec:next"
	ActionProfile          Action = "profile:view"
	ActionFinishOnboarding Action = "onboarding:finish"
	ActionEditProfile      Action = "profile:edit"
	ActionEditField        Action = "profile:set"    // profile:set:<field>
	ActionPartnerProfile   Action = "dialog_profile" // dialog_profile:<id>
	ActionOpenDialog       Action = "dialog"         // dialog:<id>, from the dialogs list
	ActionOpenNotification Action = "open"           // open:<id>, from a notification message
	ActionCloseDialog      Action = "dialog_close"   // dialog_close:<id>
	ActionLike             Action = "rec:like"       // rec:like:<user id>
	ActionSkip             Action = "rec:skip"       // rec:skip:<user id>
)

// Editable profile fields.
const (
	FieldName  = "name"
	FieldAge   = "age"
	FieldCity  = "city"
	FieldAbout = "about"
	FieldPhoto = "photo"
)

var profileFields = []string{FieldName, FieldAge, FieldCity, FieldAbout, FieldPhoto}

// Callback is a decoded button payload.
type Callback struct {
	Action   Action
	DialogID string
	UserID   int64
	Field    string
}

// String encodes c into callback data.
func (c Callback) String() string {
	switch c.Action {
	case ActionOpenDialog, ActionOpenNotification, ActionCloseDialog, ActionPartnerProfile:
		return string(c.Action) + ":" + c.DialogID
	case ActionEditField:
		return string(c.Action) + ":" + c.Field
	case ActionLike, ActionSkip:
		return string(c.Action) + ":" + strconv.FormatInt(c.UserID, 10)
	default:
		return string(c.Action)
	}
}

// ParseCallback decodes button data produced by Callback.String.
func ParseCallback(data string) (Callback, error) {
	switch Action(data) {
	case ActionDialogs, ActionRecNext, ActionProfile, ActionFinishOnboarding, ActionEditProfile:
		return Callback{Action: Action(data)}, nil
	}

	if rest, ok := strings.CutPrefix(data, string(ActionEditField)+":"); ok {
		for _, f := range profileFields {
			if rest == f {
				return Callback{Action: ActionEditField, Field: f}, nil
			}
		}
		return Callback{}, fmt.Errorf("%w: callback %q", errs.ErrValidation, data)
	}

	for _, a := range []Action{ActionLike, ActionSkip} {
		if rest, ok := strings.CutPrefix(data, string(a)+":"); ok {
			id, err := strconv.ParseInt(rest, 10, 64)
			if err != nil || id == 0 {
				return Callback{}, fmt.Errorf("%w: callback %q", errs.ErrValidation, data)
			}
			return Callback{Action: a, UserID: id}, nil
		}
	}

	for _, a := range []Action{ActionCloseDialog, ActionPartnerProfile, ActionOpenDialog, ActionOpenNotification} {
		if rest, ok := strings.CutPrefix(data, string(a)+":"); ok {
			if rest == "" {
				return Callback{}, fmt.Errorf("%w: callback %q", errs.ErrValidation, data)
			}
			return Callback{Action: a, DialogID: rest}, nil
		}
	}
	return Callback{}, fmt.Errorf("%w: unknown callback %q", errs.ErrValidation, data)
}

// OpenDialog builds the payload of a dialogs-list button.
func OpenDialog(dialogID string) string {
	return Callback{Action: ActionOpenDialog, DialogID: dialogID}.String()
}

// OpenFromNotification builds the payload of a notification button.
func OpenFromNotification(dialogID string) string {
	return Callback{Action: ActionOpenNotification, DialogID: dialogID}.String()
}

// CloseDialog builds the payload of the close button of a dialog screen.
func CloseDialog(dialogID string) string {
	return Callback{Action: ActionCloseDialog, DialogID: dialogID}.String()
}

// Like builds the payload of a like button.
func Like(userID int64) string {
	return Callback{Action: ActionLike, UserID: userID}.String()
}

// Skip builds the payload of a skip button.
func Skip(userID int64) string {
	return Callback{Action: ActionSkip, UserID: userID}.String()
}

// PartnerProfile builds the payload of the counterpart's profile button on a dialog screen.
func PartnerProfile(dialogID string) string {
	return Callback{Action: ActionPartnerProfile, DialogID: dialogID}.String()
}

// EditField builds the payload of a profile field button.
func EditField(field string) string {
	return Callback{Action: ActionEditField, Field: field}.String()
}
