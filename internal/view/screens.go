package view

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/and161185/lumen/internal/model"
)

// MaxTextLen is the longest text a single screen may carry.
const MaxTextLen = 4096

// MaxCaptionLen is the longest caption of a photo screen.
const MaxCaptionLen = 1024

var backRow = []model.Button{{Text: "« Dialogs", Data: string(ActionDialogs)}}

// OnboardingPrompt renders the question of an onboarding step. problem, if set,
// is shown above the question after a rejected answer.
func OnboardingPrompt(state model.State, photos int, problem string) (string, model.Keyboard) {
	var q string
	var kb model.Keyboard
	switch state {
	case model.StateOnboardingName:
		q = "What's your name?"
	case model.StateOnboardingAge:
		q = "How old are you?"
	case model.StateOnboardingCity:
		q = "Which city are you in?"
	case model.StateOnboardingAbout:
		q = "Tell a little about yourself."
	case model.StateOnboardingPhotoMain:
		q = "Send your main photo."
	case model.StateOnboardingPhotoExtra:
		q = fmt.Sprintf("Photos: %d/%d. Send another one or finish.", photos, model.MaxPhotos)
		kb = model.Keyboard{{{Text: "Finish", Data: string(ActionFinishOnboarding)}}}
	default:
		q = "Let's continue."
	}
	if problem != "" {
		q = problem + "\n\n" + q
	}
	return q, kb
}

// DialogEntry is one line of the dialogs list.
type DialogEntry struct {
	DialogID string
	Title    string
}

// DialogsList renders the dialogs screen with up to model.MaxOpenDialogs entries.
func DialogsList(entries []DialogEntry) (string, model.Keyboard) {
	var b strings.Builder
	fmt.Fprintf(&b, "Your dialogs: %d/%d", len(entries), model.MaxOpenDialogs)
	if len(entries) == 0 {
		b.WriteString("\n\nNo dialogs yet. Find someone to talk to.")
	}

	kb := make(model.Keyboard, 0, len(entries)+2)
	for _, e := range entries {
		kb = append(kb, []model.Button{{Text: "💬 " + e.Title, Data: OpenDialog(e.DialogID)}})
	}
	if len(entries) < model.MaxOpenDialogs {
		kb = append(kb, []model.Button{{Text: "Find someone", Data: string(ActionRecNext)}})
	}
	kb = append(kb, []model.Button{{Text: "My profile", Data: string(ActionProfile)}})
	return b.String(), kb
}

func profileText(u model.User) string {
	var b strings.Builder
	b.WriteString(u.Name)
	if u.Age > 0 {
		b.WriteString(", " + strconv.Itoa(u.Age))
	}
	if u.City != "" {
		b.WriteString("\n📍 " + u.City)
	}
	if u.About != "" {
		b.WriteString("\n\n" + u.About)
	}
	if n := len(u.Photos); n > 0 {
		fmt.Fprintf(&b, "\n\n📷 %d", n)
	}
	return b.String()
}

// Recommendation renders a candidate profile with like/skip buttons.
func Recommendation(u model.User) (string, model.Keyboard) {
	return profileText(u), model.Keyboard{
		{{Text: "❤️ Like", Data: Like(u.ID)}, {Text: "Skip", Data: Skip(u.ID)}},
		backRow,
	}
}

// Empty renders the screen shown when no candidate is available.
func Empty() (string, model.Keyboard) {
	return "No one new right now. Try again later.", model.Keyboard{
		{{Text: "Try again", Data: string(ActionRecNext)}},
		backRow,
	}
}

// Profile renders the user's own profile. notice, if set, is shown above it.
func Profile(u model.User, notice string) (string, model.Keyboard) {
	text := "Your profile\n\n" + profileText(u)
	if notice != "" {
		text = notice + "\n\n" + text
	}
	return text, model.Keyboard{
		{{Text: "✏️ Edit", Data: string(ActionEditProfile)}},
		backRow,
	}
}

// EditMenu renders the choice of the profile field to change.
func EditMenu() (string, model.Keyboard) {
	return "What do you want to change?", model.Keyboard{
		{{Text: "Name", Data: EditField(FieldName)}, {Text: "Age", Data: EditField(FieldAge)}},
		{{Text: "City", Data: EditField(FieldCity)}, {Text: "About", Data: EditField(FieldAbout)}},
		{{Text: "Main photo", Data: EditField(FieldPhoto)}},
		{{Text: "« Profile", Data: string(ActionProfile)}},
	}
}

// EditPrompt asks for the new value of the field edited in state.
func EditPrompt(state model.State, problem string) (string, model.Keyboard) {
	var q string
	switch state {
	case model.StateEditName:
		q = "Type your new name."
	case model.StateEditAge:
		q = "Type your age."
	case model.StateEditCity:
		q = "Type your city."
	case model.StateEditAbout:
		q = "Tell a little about yourself."
	case model.StateEditPhoto:
		q = "Send a new main photo."
	default:
		q = "Type the new value."
	}
	if problem != "" {
		q = problem + "\n\n" + q
	}
	return q, model.Keyboard{{{Text: "Cancel", Data: string(ActionProfile)}}}
}

// PartnerCard renders the counterpart's profile opened from a dialog screen.
func PartnerCard(dialogID string, u model.User) (string, model.Keyboard) {
	return profileText(u), model.Keyboard{
		{{Text: "« Back to dialog", Data: OpenDialog(dialogID)}},
		backRow,
	}
}

// Caption cuts text to MaxCaptionLen bytes without splitting a UTF-8 sequence.
func Caption(text string) string {
	if len(text) <= MaxCaptionLen {
		return text
	}
	cut := MaxCaptionLen
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}

// Dialog renders a dialog screen for viewerID. Older messages are dropped when the
// text would not fit into MaxTextLen.
func Dialog(dialogID, title string, viewerID int64, msgs []model.Message) (string, model.Keyboard) {
	header := "Dialog with " + title + "\n\n"
	footer := "\n\nType a message to send it."

	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		who := title
		if m.SenderID == viewerID {
			who = "You"
		}
		lines = append(lines, who+": "+m.Text)
	}

	body := "No messages yet. Say hello!"
	for len(lines) > 0 {
		body = strings.Join(lines, "\n")
		if len(header)+len(body)+len(footer) <= MaxTextLen {
			break
		}
		lines = lines[1:]
	}
	text := header + body + footer
	if len(text) > MaxTextLen {
		text = text[:MaxTextLen]
	}

	return text, model.Keyboard{
		{{Text: "👤 Profile", Data: PartnerProfile(dialogID)}, {Text: "Close dialog", Data: CloseDialog(dialogID)}},
		backRow,
	}
}

// Notification renders the out-of-band message about new activity in a dialog.
func Notification(dialogID, title string) (string, model.Keyboard) {
	return "New message from " + title, model.Keyboard{
		{{Text: "Open dialog", Data: OpenFromNotification(dialogID)}},
	}
}

// DialogClosed is shown when a dialog can no longer be opened.
const DialogClosed = "This dialog is closed."

// DialogLimit is shown when a new dialog would exceed the open dialog limit.
const DialogLimit = "You already have the maximum number of open dialogs."

// EditLimit is shown when the profile was edited less than model.ProfileEditCooldown ago.
const EditLimit = "You can edit your profile once a day."

// Title returns a display name for a user.
func Title(u model.User) string {
	switch {
	case u.Name != "":
		return u.Name
	case u.Username != "":
		return "@" + u.Username
	default:
		return "user " + strconv.FormatInt(u.ID, 10)
	}
}
