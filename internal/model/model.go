// Package model defines domain entities used by services and repositories.
package model

import (
	"time"
)

// State is the screen state a user is currently in.
type State string

// Screen states. A new user starts at StateOnboardingName; there is no terminal state.
const (
	StateOnboardingName       State = "ONBOARDING_NAME"
	StateOnboardingAge        State = "ONBOARDING_AGE"
	StateOnboardingCity       State = "ONBOARDING_CITY"
	StateOnboardingAbout      State = "ONBOARDING_ABOUT"
	StateOnboardingPhotoMain  State = "ONBOARDING_PHOTO_MAIN"
	StateOnboardingPhotoExtra State = "ONBOARDING_PHOTO_EXTRA"

	StateDialogs        State = "DIALOGS"
	StateRecommendation State = "RECOMMENDATION"
	StateDialog         State = "DIALOG"
	StateEmpty          State = "EMPTY"
	StateIdle           State = "IDLE"

	// Profile editing: the user is asked for a new value of one field.
	StateEditName  State = "EDIT_NAME"
	StateEditAge   State = "EDIT_AGE"
	StateEditCity  State = "EDIT_CITY"
	StateEditAbout State = "EDIT_ABOUT"
	StateEditPhoto State = "EDIT_PHOTO"
)

// IsOnboarding reports whether s is one of the questionnaire steps.
func (s State) IsOnboarding() bool {
	switch s {
	case StateOnboardingName, StateOnboardingAge, StateOnboardingCity,
		StateOnboardingAbout, StateOnboardingPhotoMain, StateOnboardingPhotoExtra:
		return true
	}
	return false
}

// IsEditing reports whether s waits for a new profile value.
func (s State) IsEditing() bool {
	switch s {
	case StateEditName, StateEditAge, StateEditCity, StateEditAbout, StateEditPhoto:
		return true
	}
	return false
}

// MessageHandle identifies a message delivered by the transport. Zero means "none".
type MessageHandle int

// Presence is the durable record of which screen a user is on.
type Presence struct {
	UserID          int64
	State           State
	CurrentDialogID string        // empty outside a dialog
	MainMessage     MessageHandle // the single live on-screen message, 0 if none
	UpdatedAt       time.Time     // zero if never written
}

// DialogMeta holds per-participant open/notify timestamps of one dialog.
// Slot 1 is the dialog's first participant, slot 2 the second. Zero time means "never".
type DialogMeta struct {
	DialogID       string
	U1LastOpenAt   time.Time
	U2LastOpenAt   time.Time
	U1LastNotifyAt time.Time
	U2LastNotifyAt time.Time
}

// LastOpen returns the last-open time of the participant in slot (1 or 2).
func (m DialogMeta) LastOpen(slot int) time.Time {
	if slot == 1 {
		return m.U1LastOpenAt
	}
	return m.U2LastOpenAt
}

// LastNotify returns the last-notify time of the participant in slot (1 or 2).
func (m DialogMeta) LastNotify(slot int) time.Time {
	if slot == 1 {
		return m.U1LastNotifyAt
	}
	return m.U2LastNotifyAt
}

// SetLastOpen stamps the last-open time for slot.
func (m *DialogMeta) SetLastOpen(slot int, t time.Time) {
	if slot == 1 {
		m.U1LastOpenAt = t
		return
	}
	m.U2LastOpenAt = t
}

// SetLastNotify stamps the last-notify time for slot.
func (m *DialogMeta) SetLastNotify(slot int, t time.Time) {
	if slot == 1 {
		m.U1LastNotifyAt = t
		return
	}
	m.U2LastNotifyAt = t
}

// DialogStatus is the lifecycle status of a dialog.
type DialogStatus string

const (
	DialogOpen   DialogStatus = "OPEN"
	DialogClosed DialogStatus = "CLOSED"
)

// MaxOpenDialogs is how many open dialogs a user may have at once.
const MaxOpenDialogs = 3

// Dialog is a conversation between exactly two participants; ordering is fixed at creation.
type Dialog struct {
	ID        string
	U1        int64
	U2        int64
	CreatedAt time.Time
	Status    DialogStatus
}

// Slot returns 1 or 2 for a participant, 0 if userID is not in the dialog.
func (d Dialog) Slot(userID int64) int {
	switch userID {
	case d.U1:
		return 1
	case d.U2:
		return 2
	}
	return 0
}

// Other returns the counterpart of userID and the counterpart's slot.
func (d Dialog) Other(userID int64) (int64, int, bool) {
	switch d.Slot(userID) {
	case 1:
		return d.U2, 2, true
	case 2:
		return d.U1, 1, true
	}
	return 0, 0, false
}

// MaxPhotos is the photo limit of a profile (main photo included).
const MaxPhotos = 3

// ProfileEditCooldown is the minimum interval between two profile edits.
const ProfileEditCooldown = 24 * time.Hour

// User is a profile, possibly still being filled in by onboarding.
type User struct {
	ID                  int64
	CreatedAt           time.Time
	Username            string
	Name                string
	Age                 int
	City                string
	About               string
	PhotoMain           string   // transport file id
	Photos              []string // all photo file ids, main first
	OnboardingCompleted bool
	ProfileEditedAt     time.Time // zero if never edited after onboarding
}

// PreferenceAction is a reaction to a recommendation.
type PreferenceAction string

const (
	ActionLike PreferenceAction = "like"
	ActionSkip PreferenceAction = "skip"
)

// Preference records that From reacted to To.
type Preference struct {
	From      int64
	To        int64
	Action    PreferenceAction
	CreatedAt time.Time
}

// Message is a single dialog message. Messages are append-only.
type Message struct {
	DialogID  string
	SenderID  int64
	Text      string
	CreatedAt time.Time
}

// Button is an inline button carrying a callback payload.
type Button struct {
	Text string
	Data string
}

// Keyboard is a grid of inline buttons; nil means no keyboard.
type Keyboard [][]Button

// EventKind classifies an inbound transport event.
type EventKind string

const (
	EventText    EventKind = "text"
	EventButton  EventKind = "button"
	EventPhoto   EventKind = "photo"
	EventCommand EventKind = "command"
)

// Event is an inbound user action handed over by the transport.
type Event struct {
	UserID     int64
	Username   string
	Kind       EventKind
	Payload    string        // text, callback data, photo file id or command name
	Message    MessageHandle // inbound message (text/photo) or the message the button belongs to
	CallbackID string        // set for EventButton
}
