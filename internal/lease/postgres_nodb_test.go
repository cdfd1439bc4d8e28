package lease

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

/************ fake pgx ************/
type fakeRow struct{ scan func(dest ...any) error }

func (r fakeRow) Scan(dest ...any) error { return r.scan(dest...) }

type fakePool struct {
	qrErr   error
	lastTTL any

	lastExecSQL  string
	lastExecArgs []any
	execErr      error
}

func (f *fakePool) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.lastExecSQL = sql
	f.lastExecArgs = args
	return pgconn.CommandTag{}, f.execErr
}

func (f *fakePool) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if !strings.Contains(sql, "RETURNING token") {
		return fakeRow{scan: func(dest ...any) error { return errors.New("unexpected query") }}
	}
	f.lastTTL = args[2]
	return fakeRow{scan: func(dest ...any) error {
		if f.qrErr != nil {
			return f.qrErr
		}
		*(dest[0].(*string)) = args[1].(string)
		return nil
	}}
}

func TestPG_TryAcquire_Free(t *testing.T) {
	fp := &fakePool{}
	l := NewPGWithQuerier(fp)

	tok, ok, err := l.TryAcquire(context.Background(), "user:1", 5*time.Second)
	if err != nil || !ok || tok == "" {
		t.Fatalf("acquire free: tok=%q ok=%v err=%v", tok, ok, err)
	}
	if fp.lastTTL != 5*time.Second {
		t.Fatalf("ttl not passed through: %v", fp.lastTTL)
	}
}

func TestPG_TryAcquire_Held(t *testing.T) {
	fp := &fakePool{qrErr: pgx.ErrNoRows}
	l := NewPGWithQuerier(fp)

	tok, ok, err := l.TryAcquire(context.Background(), "user:1", time.Second)
	if err != nil || ok || tok != "" {
		t.Fatalf("acquire held: tok=%q ok=%v err=%v", tok, ok, err)
	}
}

func TestPG_TryAcquire_DBError_Propagates(t *testing.T) {
	fp := &fakePool{qrErr: errors.New("db boom")}
	l := NewPGWithQuerier(fp)

	if _, ok, err := l.TryAcquire(context.Background(), "user:1", time.Second); err == nil || ok {
		t.Fatalf("want error propagate, got ok=%v err=%v", ok, err)
	}
}

func TestPG_Release(t *testing.T) {
	fp := &fakePool{}
	l := NewPGWithQuerier(fp)

	if err := l.Release(context.Background(), "dialog:d1", "tok"); err != nil {
		t.Fatalf("release err: %v", err)
	}
	if !strings.Contains(fp.lastExecSQL, "DELETE FROM leases") {
		t.Fatalf("unexpected exec: %s", fp.lastExecSQL)
	}
	if fp.lastExecArgs[0] != "dialog:d1" || fp.lastExecArgs[1] != "tok" {
		t.Fatalf("unexpected args: %v", fp.lastExecArgs)
	}

	fp.execErr = errors.New("exec fail")
	if err := l.Release(context.Background(), "dialog:d1", "tok"); err == nil {
		t.Fatalf("want exec error")
	}
}
