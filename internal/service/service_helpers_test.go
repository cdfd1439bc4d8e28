package service

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/and161185/lumen/internal/model"
	"github.com/and161185/lumen/internal/repository/memory"
	"github.com/and161185/lumen/internal/repository/tables"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type sentMsg struct {
	userID int64
	handle model.MessageHandle
	text   string
	photo  string
	kb     model.Keyboard
}

// fakeTransport tracks which messages are still visible to each user.
type fakeTransport struct {
	mu        sync.Mutex
	next      model.MessageHandle
	live      map[int64]map[model.MessageHandle]bool
	sent      []sentMsg
	deleted   []model.MessageHandle
	sendErr   error
	deleteErr error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{next: 100, live: map[int64]map[model.MessageHandle]bool{}}
}

func (f *fakeTransport) SendMessage(_ context.Context, userID int64, text string, kb model.Keyboard) (model.MessageHandle, error) {
	return f.send(sentMsg{userID: userID, text: text, kb: kb})
}

func (f *fakeTransport) SendPhoto(_ context.Context, userID int64, fileID, caption string, kb model.Keyboard) (model.MessageHandle, error) {
	return f.send(sentMsg{userID: userID, text: caption, photo: fileID, kb: kb})
}

func (f *fakeTransport) send(m sentMsg) (model.MessageHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return 0, f.sendErr
	}
	f.next++
	if f.live[m.userID] == nil {
		f.live[m.userID] = map[model.MessageHandle]bool{}
	}
	f.live[m.userID][f.next] = true
	m.handle = f.next
	f.sent = append(f.sent, m)
	return f.next, nil
}

func (f *fakeTransport) DeleteMessage(_ context.Context, userID int64, h model.MessageHandle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.live[userID], h)
	f.deleted = append(f.deleted, h)
	return nil
}

func (f *fakeTransport) AnswerCallback(context.Context, string, string) error { return nil }

func (f *fakeTransport) liveCount(userID int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.live[userID])
}

func (f *fakeTransport) sentTo(userID int64) []sentMsg {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sentMsg
	for _, m := range f.sent {
		if m.userID == userID {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeTransport) last() sentMsg {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent[len(f.sent)-1]
}

type env struct {
	store    *memory.RowStore
	presence *tables.PresenceRepo
	meta     *tables.DialogMetaRepo
	dialogs  *tables.DialogRepo
	messages *tables.MessageRepo
	users    *tables.UserRepo
	prefs    *tables.PreferenceRepo
	tr       *fakeTransport

	screens    *ScreenController
	throttler  *Throttler
	dialogSvc  *Dialogs
	matching   *Matching
	onboarding *Onboarding

	now time.Time
	ids int
}

func newEnv(t *testing.T) *env {
	t.Helper()
	log := zaptest.NewLogger(t)
	store := memory.NewRowStore()
	e := &env{
		store:    store,
		presence: tables.NewPresenceRepo(store),
		meta:     tables.NewDialogMetaRepo(store),
		dialogs:  tables.NewDialogRepo(store),
		messages: tables.NewMessageRepo(store),
		users:    tables.NewUserRepo(store),
		prefs:    tables.NewPreferenceRepo(store),
		tr:       newFakeTransport(),
		now:      t0,
	}
	clock := func() time.Time { return e.now }

	renderer := NewDialogRenderer(e.dialogs, e.messages, e.users)
	e.screens = NewScreenController(e.presence, e.tr, renderer, nil, log)
	e.screens.now = clock
	e.throttler = NewThrottler(e.dialogs, e.meta, e.presence, e.users, e.screens, e.tr, nil, ThrottleConfig{}, log)
	e.throttler.now = clock
	e.dialogSvc = NewDialogs(e.dialogs, e.messages, e.meta, e.users, e.screens, e.throttler, log)
	e.dialogSvc.now = clock
	e.matching = NewMatching(e.users, e.prefs, e.dialogs, e.screens, e.dialogSvc, log)
	e.matching.now = clock
	e.matching.newID = func() string {
		e.ids++
		return "d" + strconv.Itoa(e.ids)
	}
	e.onboarding = NewOnboarding(e.users, e.screens, e.dialogSvc, log)
	e.onboarding.now = clock
	return e
}

func (e *env) advance(d time.Duration) { e.now = e.now.Add(d) }

func (e *env) addUser(t *testing.T, id int64, name string) {
	t.Helper()
	u := model.User{ID: id, CreatedAt: t0, Name: name, Age: 30, City: "Riga", PhotoMain: "p", Photos: []string{"p"}, OnboardingCompleted: true}
	if err := e.users.Save(context.Background(), u); err != nil {
		t.Fatalf("save user: %v", err)
	}
}

func (e *env) addDialog(t *testing.T, id string, u1, u2 int64) {
	t.Helper()
	d := model.Dialog{ID: id, U1: u1, U2: u2, CreatedAt: t0, Status: model.DialogOpen}
	if err := e.dialogs.Create(context.Background(), d); err != nil {
		t.Fatalf("create dialog: %v", err)
	}
}

func (e *env) setMeta(t *testing.T, m model.DialogMeta) {
	t.Helper()
	if err := e.meta.Upsert(context.Background(), m); err != nil {
		t.Fatalf("upsert meta: %v", err)
	}
}
