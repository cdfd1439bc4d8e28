package tables

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/and161185/lumen/internal/errs"
	"github.com/and161185/lumen/internal/model"
	"github.com/and161185/lumen/internal/repository"
	"github.com/and161185/lumen/internal/repository/memory"
)

type failingStore struct{ err error }

func (f failingStore) QueryRows(context.Context, string) ([]repository.Row, error) { return nil, f.err }
func (f failingStore) AppendRow(context.Context, string, []string) error           { return f.err }
func (f failingStore) UpdateRow(context.Context, string, int, []string) error      { return f.err }

// countingStore counts table reads.
type countingStore struct {
	repository.RowStore
	queries int
}

func (c *countingStore) QueryRows(ctx context.Context, table string) ([]repository.Row, error) {
	c.queries++
	return c.RowStore.QueryRows(ctx, table)
}

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func TestPresence_MissingDefaults(t *testing.T) {
	r := NewPresenceRepo(memory.NewRowStore())

	p, err := r.Get(context.Background(), 42)
	require.NoError(t, err)
	require.Equal(t, int64(42), p.UserID)
	require.Equal(t, model.StateIdle, p.State)
	require.Empty(t, p.CurrentDialogID)
	require.Zero(t, p.MainMessage)
	require.True(t, p.UpdatedAt.IsZero())
}

func TestPresence_SetGet_FullReplace(t *testing.T) {
	ctx := context.Background()
	store := memory.NewRowStore()
	r := NewPresenceRepo(store)

	require.NoError(t, r.Set(ctx, 7, model.StateDialog, "d1", 100, t0))
	require.NoError(t, r.Set(ctx, 8, model.StateDialogs, "", 5, t0))
	require.NoError(t, r.Set(ctx, 7, model.StateDialogs, "", 101, t0.Add(time.Second)))

	p, err := r.Get(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, model.StateDialogs, p.State)
	require.Empty(t, p.CurrentDialogID)
	require.Equal(t, model.MessageHandle(101), p.MainMessage)
	require.True(t, p.UpdatedAt.Equal(t0.Add(time.Second)))
	require.Equal(t, 2, store.Len(repository.TablePresence))
}

func TestPresence_DuplicateRows_LastWins(t *testing.T) {
	ctx := context.Background()
	store := memory.NewRowStore()
	require.NoError(t, store.AppendRow(ctx, repository.TablePresence, []string{"7", "IDLE", "", "1", ""}))
	require.NoError(t, store.AppendRow(ctx, repository.TablePresence, []string{"7", "DIALOGS", "", "2", ""}))
	r := NewPresenceRepo(store)

	p, err := r.Get(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, model.MessageHandle(2), p.MainMessage)

	require.NoError(t, r.Set(ctx, 7, model.StateEmpty, "", 3, t0))
	rows, _ := store.QueryRows(ctx, repository.TablePresence)
	require.Equal(t, "1", rows[0].Cells[3])
	require.Equal(t, "3", rows[1].Cells[3])
}

func TestPresence_StoreErrorPropagates(t *testing.T) {
	boom := errors.New("quota exceeded")
	r := NewPresenceRepo(failingStore{err: boom})

	_, err := r.Get(context.Background(), 1)
	require.ErrorIs(t, err, boom)
	require.ErrorIs(t, r.Set(context.Background(), 1, model.StateIdle, "", 0, t0), boom)
}

func TestDialogMeta_MissingDefaults(t *testing.T) {
	r := NewDialogMetaRepo(memory.NewRowStore())

	m, err := r.Get(context.Background(), "unknown")
	require.NoError(t, err)
	require.Equal(t, model.DialogMeta{DialogID: "unknown"}, m)
}

func TestDialogMeta_UpsertIdempotent(t *testing.T) {
	ctx := context.Background()
	store := memory.NewRowStore()
	r := NewDialogMetaRepo(store)

	first := model.DialogMeta{DialogID: "d1", U1LastOpenAt: t0}
	second := model.DialogMeta{DialogID: "d1", U2LastNotifyAt: t0.Add(time.Minute)}
	require.NoError(t, r.Upsert(ctx, first))
	require.NoError(t, r.Upsert(ctx, second))

	require.Equal(t, 1, store.Len(repository.TableDialogMeta))
	got, err := r.Get(ctx, "d1")
	require.NoError(t, err)
	require.True(t, got.U1LastOpenAt.IsZero())
	require.True(t, got.U2LastNotifyAt.Equal(t0.Add(time.Minute)))
}

func TestDialogMeta_UpsertEmptyID(t *testing.T) {
	r := NewDialogMetaRepo(memory.NewRowStore())
	require.Error(t, r.Upsert(context.Background(), model.DialogMeta{}))
}

func TestDialogs_CreateGetListStatus(t *testing.T) {
	ctx := context.Background()
	r := NewDialogRepo(memory.NewRowStore())

	_, err := r.Get(ctx, "d1")
	require.ErrorIs(t, err, errs.ErrNotFound)

	require.NoError(t, r.Create(ctx, model.Dialog{ID: "d1", U1: 1, U2: 2, CreatedAt: t0, Status: model.DialogOpen}))
	require.NoError(t, r.Create(ctx, model.Dialog{ID: "d2", U1: 3, U2: 1, CreatedAt: t0, Status: model.DialogOpen}))
	require.NoError(t, r.Create(ctx, model.Dialog{ID: "d3", U1: 3, U2: 4, CreatedAt: t0, Status: model.DialogOpen}))

	d, err := r.Get(ctx, "d1")
	require.NoError(t, err)
	require.Equal(t, int64(2), d.U2)
	require.True(t, d.CreatedAt.Equal(t0))

	list, err := r.ListByUser(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "d2", list[1].ID)

	require.NoError(t, r.SetStatus(ctx, "d2", model.DialogClosed))
	d, _ = r.Get(ctx, "d2")
	require.Equal(t, model.DialogClosed, d.Status)

	require.ErrorIs(t, r.SetStatus(ctx, "nope", model.DialogClosed), errs.ErrNotFound)
}

func TestDialogs_OpenCounts(t *testing.T) {
	ctx := context.Background()
	store := &countingStore{RowStore: memory.NewRowStore()}
	r := NewDialogRepo(store)

	require.NoError(t, r.Create(ctx, model.Dialog{ID: "d1", U1: 1, U2: 2, CreatedAt: t0, Status: model.DialogOpen}))
	require.NoError(t, r.Create(ctx, model.Dialog{ID: "d2", U1: 1, U2: 3, CreatedAt: t0, Status: model.DialogOpen}))
	require.NoError(t, r.Create(ctx, model.Dialog{ID: "d3", U1: 2, U2: 3, CreatedAt: t0, Status: model.DialogClosed}))
	// a later duplicate of d2 closes it
	require.NoError(t, r.Create(ctx, model.Dialog{ID: "d2", U1: 1, U2: 3, CreatedAt: t0, Status: model.DialogClosed}))

	store.queries = 0
	counts, err := r.OpenCounts(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, store.queries)
	require.Equal(t, map[int64]int{1: 1, 2: 1}, counts)

	_, err = NewDialogRepo(failingStore{err: errors.New("quota")}).OpenCounts(ctx)
	require.Error(t, err)
}

func TestDialogs_MalformedRowIsMissing(t *testing.T) {
	ctx := context.Background()
	store := memory.NewRowStore()
	require.NoError(t, store.AppendRow(ctx, repository.TableDialogs, []string{"d1", "abc", "2"}))
	r := NewDialogRepo(store)

	_, err := r.Get(ctx, "d1")
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestUsers_SaveGetListCompleted(t *testing.T) {
	ctx := context.Background()
	r := NewUserRepo(memory.NewRowStore())

	_, err := r.Get(ctx, 1)
	require.ErrorIs(t, err, errs.ErrNotFound)

	draft := model.User{ID: 1, CreatedAt: t0, Name: "Ann"}
	require.NoError(t, r.Save(ctx, draft))
	require.NoError(t, r.Save(ctx, model.User{ID: 2, Name: "Bob", Age: 30, OnboardingCompleted: true}))

	list, err := r.ListCompleted(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, int64(2), list[0].ID)

	draft.Age = 25
	draft.Photos = []string{"p1", "p2"}
	draft.PhotoMain = "p1"
	draft.OnboardingCompleted = true
	draft.ProfileEditedAt = t0.Add(time.Hour)
	require.NoError(t, r.Save(ctx, draft))

	u, err := r.Get(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 25, u.Age)
	require.Equal(t, []string{"p1", "p2"}, u.Photos)
	require.True(t, u.OnboardingCompleted)
	require.True(t, u.ProfileEditedAt.Equal(t0.Add(time.Hour)))

	bob, err := r.Get(ctx, 2)
	require.NoError(t, err)
	require.True(t, bob.ProfileEditedAt.IsZero())

	list, err = r.ListCompleted(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
}

func TestPreferences_Liked(t *testing.T) {
	ctx := context.Background()
	r := NewPreferenceRepo(memory.NewRowStore())

	require.NoError(t, r.Add(ctx, model.Preference{From: 1, To: 2, Action: model.ActionSkip, CreatedAt: t0}))
	ok, err := r.Liked(ctx, 1, 2)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, r.Add(ctx, model.Preference{From: 1, To: 2, Action: model.ActionLike, CreatedAt: t0}))
	ok, err = r.Liked(ctx, 1, 2)
	require.NoError(t, err)
	require.True(t, ok)

	prefs, err := r.ListFrom(ctx, 1)
	require.NoError(t, err)
	require.Len(t, prefs, 2)
}

func TestMessages_ListRecent(t *testing.T) {
	ctx := context.Background()
	r := NewMessageRepo(memory.NewRowStore())

	for i, txt := range []string{"a", "b", "c"} {
		require.NoError(t, r.Append(ctx, model.Message{DialogID: "d1", SenderID: 1, Text: txt, CreatedAt: t0.Add(time.Duration(i) * time.Second)}))
	}
	require.NoError(t, r.Append(ctx, model.Message{DialogID: "d2", SenderID: 2, Text: "other"}))

	msgs, err := r.ListRecent(ctx, "d1", 2)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Equal(t, "b", msgs[0].Text)
	require.Equal(t, "c", msgs[1].Text)
}
