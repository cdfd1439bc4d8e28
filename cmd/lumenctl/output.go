package main

import (
	"time"

	"github.com/and161185/lumen/internal/model"
)

type presenceJSON struct {
	UserID      int64  `json:"user_id"`
	State       string `json:"state"`
	DialogID    string `json:"dialog_id,omitempty"`
	MainMessage int    `json:"main_message,omitempty"`
	UpdatedAt   string `json:"updated_at"`
}

type metaJSON struct {
	DialogID     string `json:"dialog_id"`
	U1LastOpen   string `json:"u1_last_open"`
	U2LastOpen   string `json:"u2_last_open"`
	U1LastNotify string `json:"u1_last_notify"`
	U2LastNotify string `json:"u2_last_notify"`
}

type dialogJSON struct {
	ID        string `json:"id"`
	U1        int64  `json:"u1"`
	U2        int64  `json:"u2"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

type explainJSON struct {
	Decision   string        `json:"decision"`
	At         string        `json:"at"`
	TargetID   int64         `json:"target_id,omitempty"`
	TargetSlot int           `json:"target_slot,omitempty"`
	Meta       *metaJSON     `json:"meta,omitempty"`
	Presence   *presenceJSON `json:"presence,omitempty"`
}

// stamp renders t as RFC 3339 in UTC, or "never" for the zero time.
func stamp(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.UTC().Format(time.RFC3339)
}

func presenceView(p model.Presence) presenceJSON {
	return presenceJSON{
		UserID:      p.UserID,
		State:       string(p.State),
		DialogID:    p.CurrentDialogID,
		MainMessage: int(p.MainMessage),
		UpdatedAt:   stamp(p.UpdatedAt),
	}
}

func metaView(m model.DialogMeta) metaJSON {
	return metaJSON{
		DialogID:     m.DialogID,
		U1LastOpen:   stamp(m.U1LastOpenAt),
		U2LastOpen:   stamp(m.U2LastOpenAt),
		U1LastNotify: stamp(m.U1LastNotifyAt),
		U2LastNotify: stamp(m.U2LastNotifyAt),
	}
}
