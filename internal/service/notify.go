package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/lumen/internal/errs"
	"github.com/and161185/lumen/internal/lease"
	"github.com/and161185/lumen/internal/model"
	"github.com/and161185/lumen/internal/repository"
	"github.com/and161185/lumen/internal/transport"
	"github.com/and161185/lumen/internal/view"
)

// Throttling windows used when ThrottleConfig leaves a field at zero.
const (
	DefaultActiveWindow      = 20 * time.Second
	DefaultNotifyCooldown    = 60 * time.Second
	DefaultPresenceFreshness = 60 * time.Second
)

// ThrottleConfig holds the notification windows.
type ThrottleConfig struct {
	ActiveWindow      time.Duration
	NotifyCooldown    time.Duration
	PresenceFreshness time.Duration
}

func (c ThrottleConfig) withDefaults() ThrottleConfig {
	if c.ActiveWindow <= 0 {
		c.ActiveWindow = DefaultActiveWindow
	}
	if c.NotifyCooldown <= 0 {
		c.NotifyCooldown = DefaultNotifyCooldown
	}
	if c.PresenceFreshness <= 0 {
		c.PresenceFreshness = DefaultPresenceFreshness
	}
	return c
}

// Decision is the outcome of a throttling evaluation.
type Decision int

const (
	// DecisionUnresolved: participants could not be resolved; nothing happens.
	DecisionUnresolved Decision = iota
	// DecisionActive: the target opened the dialog within the active window.
	DecisionActive
	// DecisionCooldown: the target was notified within the cooldown.
	DecisionCooldown
	// DecisionRefresh: the target is looking at the dialog; their screen is re-rendered.
	DecisionRefresh
	// DecisionNotify: a notification is sent and last_notify is stamped.
	DecisionNotify
)

func (d Decision) String() string {
	switch d {
	case DecisionUnresolved:
		return "unresolved"
	case DecisionActive:
		return "active"
	case DecisionCooldown:
		return "cooldown"
	case DecisionRefresh:
		return "refresh"
	case DecisionNotify:
		return "notify"
	}
	return fmt.Sprintf("Decision(%d)", int(d))
}

// Assessment is a decision together with the facts it was made from.
type Assessment struct {
	Decision   Decision
	Dialog     model.Dialog
	TargetID   int64
	TargetSlot int
	Meta       model.DialogMeta
	Presence   model.Presence // loaded only when timestamps allowed a refresh or notify
	At         time.Time
}

// Throttler decides how the non-acting participant learns about new dialog activity.
type Throttler struct {
	dialogs  repository.DialogRepository
	meta     repository.DialogMetaRepository
	presence repository.PresenceRepository
	users    repository.UserRepository
	screens  *ScreenController
	tr       transport.Transport
	locker   *lease.Locker
	cfg      ThrottleConfig
	now      func() time.Time
	log      *zap.Logger
}

// NewThrottler wires the throttler. locker may be nil.
func NewThrottler(
	dialogs repository.DialogRepository,
	meta repository.DialogMetaRepository,
	presence repository.PresenceRepository,
	users repository.UserRepository,
	screens *ScreenController,
	tr transport.Transport,
	locker *lease.Locker,
	cfg ThrottleConfig,
	log *zap.Logger,
) *Throttler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Throttler{
		dialogs:  dialogs,
		meta:     meta,
		presence: presence,
		users:    users,
		screens:  screens,
		tr:       tr,
		locker:   locker,
		cfg:      cfg.withDefaults(),
		now:      time.Now,
		log:      log,
	}
}

// Config returns the effective windows.
func (t *Throttler) Config() ThrottleConfig { return t.cfg }

// within reports whether ts is set and no older than window at now.
func within(now, ts time.Time, window time.Duration) bool {
	return !ts.IsZero() && now.Sub(ts) <= window
}

// Evaluate computes the decision for a message from actingUserID without side effects.
func (t *Throttler) Evaluate(ctx context.Context, dialogID string, actingUserID int64) (Assessment, error) {
	a := Assessment{Decision: DecisionUnresolved, At: t.now()}

	d, err := t.dialogs.Get(ctx, dialogID)
	if errors.Is(err, errs.ErrNotFound) {
		return a, nil
	}
	if err != nil {
		return a, fmt.Errorf("resolve dialog: %w", err)
	}
	a.Dialog = d
	target, slot, ok := d.Other(actingUserID)
	if !ok {
		return a, nil
	}
	a.TargetID, a.TargetSlot = target, slot

	if a.Meta, err = t.meta.Get(ctx, dialogID); err != nil {
		return a, fmt.Errorf("load dialog meta: %w", err)
	}

	switch {
	case within(a.At, a.Meta.LastOpen(slot), t.cfg.ActiveWindow):
		a.Decision = DecisionActive
		return a, nil
	case within(a.At, a.Meta.LastNotify(slot), t.cfg.NotifyCooldown):
		a.Decision = DecisionCooldown
		return a, nil
	}

	if a.Presence, err = t.presence.Get(ctx, target); err != nil {
		return a, fmt.Errorf("load target presence: %w", err)
	}
	if a.Presence.State == model.StateDialog &&
		a.Presence.CurrentDialogID == dialogID &&
		within(a.At, a.Presence.UpdatedAt, t.cfg.PresenceFreshness) {
		a.Decision = DecisionRefresh
	} else {
		a.Decision = DecisionNotify
	}
	return a, nil
}

// ConsiderNotifying is called after a message from actingUserID was stored in dialogID.
// It either does nothing, silently refreshes the target's open dialog screen, or sends
// a notification and stamps the target's last_notify.
func (t *Throttler) ConsiderNotifying(ctx context.Context, dialogID string, actingUserID int64) (Decision, error) {
	unlock := acquire(ctx, t.locker, t.log, lease.DialogKeyPrefix+dialogID)
	defer unlock()

	a, err := t.Evaluate(ctx, dialogID, actingUserID)
	if err != nil {
		return DecisionUnresolved, err
	}
	log := t.log.With(zap.String("dialog_id", dialogID), zap.Int64("target", a.TargetID), zap.Stringer("decision", a.Decision))

	switch a.Decision {
	case DecisionUnresolved:
		log.Warn("dialog participants unresolved", zap.Int64("acting", actingUserID))
	case DecisionActive, DecisionCooldown:
		log.Debug("notification suppressed")
	case DecisionRefresh:
		if err := t.screens.RenderDialogScreen(ctx, a.TargetID, dialogID, nil); err != nil {
			return a.Decision, fmt.Errorf("silent refresh: %w", err)
		}
		log.Debug("dialog screen refreshed")
	case DecisionNotify:
		if err := t.notify(ctx, a, actingUserID); err != nil {
			return a.Decision, err
		}
		log.Info("notification sent")
	}
	return a.Decision, nil
}

func (t *Throttler) notify(ctx context.Context, a Assessment, actingUserID int64) error {
	sender, err := t.users.Get(ctx, actingUserID)
	if err != nil {
		sender = model.User{ID: actingUserID}
	}
	text, kb := view.Notification(a.Dialog.ID, view.Title(sender))
	if _, err := t.tr.SendMessage(ctx, a.TargetID, text, kb); err != nil {
		return fmt.Errorf("send notification: %w", err)
	}

	// re-read so concurrent last_open stamps are not overwritten with the stale copy
	meta, err := t.meta.Get(ctx, a.Dialog.ID)
	if err != nil {
		return fmt.Errorf("stamp last_notify: %w", err)
	}
	meta.DialogID = a.Dialog.ID
	meta.SetLastNotify(a.TargetSlot, a.At)
	if err := t.meta.Upsert(ctx, meta); err != nil {
		return fmt.Errorf("stamp last_notify: %w", err)
	}
	return nil
}
