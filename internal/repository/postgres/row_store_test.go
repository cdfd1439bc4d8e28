package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/and161185/lumen/internal/errs"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"
)

func newDB(t *testing.T) (*DB, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return &DB{Pool: mock}, mock
}

func TestRowStore_QueryRows(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	s := NewRowStore(db)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT idx, cells FROM sheet_rows WHERE tbl=\$1 ORDER BY idx ASC`).
		WithArgs("presence").
		WillReturnRows(pgxmock.NewRows([]string{"idx", "cells"}).
			AddRow(0, []string{"1", "IDLE"}).
			AddRow(1, []string{"2", "DIALOG", "d1"}))

	rows, err := s.QueryRows(ctx, "presence")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, 1, rows[1].Index)
	require.Equal(t, []string{"2", "DIALOG", "d1"}, rows[1].Cells)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRowStore_QueryRows_Error(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	s := NewRowStore(db)

	mock.ExpectQuery(`SELECT idx, cells FROM sheet_rows`).
		WithArgs("presence").
		WillReturnError(errors.New("conn reset"))

	_, err := s.QueryRows(context.Background(), "presence")
	require.Error(t, err)
}

func TestRowStore_AppendRow_RetriesOnIndexRace(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	s := NewRowStore(db)
	cells := []string{"d1", "", "", "", ""}

	mock.ExpectExec(`INSERT INTO sheet_rows \(tbl, idx, cells\)`).
		WithArgs("dialog_meta", cells).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectExec(`INSERT INTO sheet_rows \(tbl, idx, cells\)`).
		WithArgs("dialog_meta", cells).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.AppendRow(context.Background(), "dialog_meta", cells))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRowStore_AppendRow_GivesUp(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	s := NewRowStore(db)
	cells := []string{"x"}

	for i := 0; i < appendAttempts; i++ {
		mock.ExpectExec(`INSERT INTO sheet_rows`).
			WithArgs("t", cells).
			WillReturnError(&pgconn.PgError{Code: "23505"})
	}
	require.Error(t, s.AppendRow(context.Background(), "t", cells))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRowStore_UpdateRow(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	s := NewRowStore(db)
	ctx := context.Background()
	cells := []string{"1", "DIALOGS"}

	mock.ExpectExec(`UPDATE sheet_rows SET cells=\$3 WHERE tbl=\$1 AND idx=\$2`).
		WithArgs("presence", 4, cells).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, s.UpdateRow(ctx, "presence", 4, cells))

	mock.ExpectExec(`UPDATE sheet_rows SET cells=\$3 WHERE tbl=\$1 AND idx=\$2`).
		WithArgs("presence", 9, cells).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	err := s.UpdateRow(ctx, "presence", 9, cells)
	require.ErrorIs(t, err, errs.ErrNotFound)
}
