package bot

import (
	"context"
	"sync"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/and161185/lumen/internal/model"
	"github.com/and161185/lumen/internal/repository/memory"
	"github.com/and161185/lumen/internal/repository/tables"
	"github.com/and161185/lumen/internal/service"
)

type fakeTransport struct {
	mu       sync.Mutex
	next     model.MessageHandle
	texts    map[model.MessageHandle]string
	kbs      map[model.MessageHandle]model.Keyboard
	owner    map[model.MessageHandle]int64
	photos   map[model.MessageHandle]string
	deleted  []model.MessageHandle
	answered []string
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		next:   1000,
		texts:  map[model.MessageHandle]string{},
		kbs:    map[model.MessageHandle]model.Keyboard{},
		owner:  map[model.MessageHandle]int64{},
		photos: map[model.MessageHandle]string{},
	}
}

func (f *fakeTransport) SendMessage(_ context.Context, userID int64, text string, kb model.Keyboard) (model.MessageHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	f.texts[f.next], f.kbs[f.next], f.owner[f.next] = text, kb, userID
	return f.next, nil
}

func (f *fakeTransport) SendPhoto(ctx context.Context, userID int64, fileID, caption string, kb model.Keyboard) (model.MessageHandle, error) {
	h, _ := f.SendMessage(ctx, userID, caption, kb)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.photos[h] = fileID
	return h, nil
}

func (f *fakeTransport) DeleteMessage(_ context.Context, _ int64, h model.MessageHandle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.texts, h)
	f.deleted = append(f.deleted, h)
	return nil
}

func (f *fakeTransport) AnswerCallback(_ context.Context, _ string, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answered = append(f.answered, text)
	return nil
}

// visible returns the texts of the user's undeleted messages.
func (f *fakeTransport) visible(userID int64) []model.MessageHandle {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.MessageHandle
	for h := range f.texts {
		if f.owner[h] == userID {
			out = append(out, h)
		}
	}
	return out
}

func (f *fakeTransport) text(h model.MessageHandle) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.texts[h]
}

type harness struct {
	tr       *fakeTransport
	presence *tables.PresenceRepo
	users    *tables.UserRepo
	dialogs  *tables.DialogRepo
	disp     *Dispatcher
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	log := zaptest.NewLogger(t)
	store := memory.NewRowStore()
	h := &harness{
		tr:       newFakeTransport(),
		presence: tables.NewPresenceRepo(store),
		users:    tables.NewUserRepo(store),
		dialogs:  tables.NewDialogRepo(store),
	}
	meta := tables.NewDialogMetaRepo(store)
	messages := tables.NewMessageRepo(store)
	prefs := tables.NewPreferenceRepo(store)

	screens := service.NewScreenController(h.presence, h.tr, service.NewDialogRenderer(h.dialogs, messages, h.users), nil, log)
	throttler := service.NewThrottler(h.dialogs, meta, h.presence, h.users, screens, h.tr, nil, service.ThrottleConfig{}, log)
	dialogs := service.NewDialogs(h.dialogs, messages, meta, h.users, screens, throttler, log)
	matching := service.NewMatching(h.users, prefs, h.dialogs, screens, dialogs, log)
	onboarding := service.NewOnboarding(h.users, screens, dialogs, log)
	h.disp = NewDispatcher(screens, onboarding, matching, dialogs, h.tr, log)
	return h
}

func (h *harness) send(t *testing.T, ev model.Event) {
	t.Helper()
	if err := h.disp.Handle(context.Background(), ev); err != nil {
		t.Fatalf("handle %s %q: %v", ev.Kind, ev.Payload, err)
	}
}

func (h *harness) screen(t *testing.T, userID int64) (model.Presence, string, model.Keyboard) {
	t.Helper()
	p, err := h.presence.Get(context.Background(), userID)
	if err != nil {
		t.Fatalf("presence: %v", err)
	}
	h.tr.mu.Lock()
	defer h.tr.mu.Unlock()
	return p, h.tr.texts[p.MainMessage], h.tr.kbs[p.MainMessage]
}
