package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	database, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	return database, mock
}

func TestWithTx_CommitsOnSuccess(t *testing.T) {
	database, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO posts`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`UPDATE files`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := WithTx(context.Background(), database, func(ctx context.Context, tx DBTX) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO posts (title) VALUES ($1)`, "hi"); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `UPDATE files SET post_id = $1`, 1)
		return err
	})

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_RollsBackWhenLaterStatementFails(t *testing.T) {
	database, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO posts`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`UPDATE files`).WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err := WithTx(context.Background(), database, func(ctx context.Context, tx DBTX) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO posts (title) VALUES ($1)`, "hi"); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `UPDATE files SET post_id = $1`, 1)
		return err
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_RollsBackOnPanic(t *testing.T) {
	database, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectRollback()

	assert.Panics(t, func() {
		_ = WithTx(context.Background(), database, func(ctx context.Context, tx DBTX) error {
			panic("kaput")
		})
	})
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_BeginFailure(t *testing.T) {
	database, mock := newMock(t)
	mock.ExpectBegin().WillReturnError(errors.New("pool exhausted"))

	called := false
	err := WithTx(context.Background(), database, func(ctx context.Context, tx DBTX) error {
		called = true
		return nil
	})

	require.Error(t, err)
	assert.False(t, called)
	assert.Contains(t, err.Error(), "begin tx")
}

func TestWithTx_CommitFailure(t *testing.T) {
	database, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(errors.New("serialization failure"))

	err := WithTx(context.Background(), database, func(ctx context.Context, tx DBTX) error { return nil })

	require.Error(t, err)
	assert.Contains(t, err.Error(), "commit tx")
}

func TestUniqueViolation(t *testing.T) {
	wrapped := fmt.Errorf("insert user: %w", &pgconn.PgError{Code: "23505", ConstraintName: "users_email_active_uidx"})

	name, ok := UniqueViolation(wrapped)
	assert.True(t, ok)
	assert.Equal(t, "users_email_active_uidx", name)

	_, ok = UniqueViolation(&pgconn.PgError{Code: "23503"})
	assert.False(t, ok)

	_, ok = UniqueViolation(errors.New("plain"))
	assert.False(t, ok)
}

func TestRunMigrations_UsesEmbeddedDir(t *testing.T) {
	database, _ := newMock(t)

	orig := gooseUpContext
	t.Cleanup(func() { gooseUpContext = orig })

	var gotDir string
	gooseUpContext = func(ctx context.Context, database *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		gotDir = dir
		return nil
	}

	require.NoError(t, RunMigrations(context.Background(), database))
	assert.Equal(t, "migrations", gotDir)
}

func TestRunMigrations_WrapsError(t *testing.T) {
	database, _ := newMock(t)

	orig := gooseUpContext
	t.Cleanup(func() { gooseUpContext = orig })
	gooseUpContext = func(ctx context.Context, database *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return errors.New("syntax error")
	}

	err := RunMigrations(context.Background(), database)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "apply migrations")
}

func TestMigrations_AreGooseAnnotated(t *testing.T) {
	entries, err := fs.ReadDir(migrationFiles, "migrations")
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	for _, entry := range entries {
		body, err := fs.ReadFile(migrationFiles, "migrations/"+entry.Name())
		require.NoError(t, err)
		assert.True(t, strings.Contains(string(body), "-- +goose Up"), entry.Name())
		assert.True(t, strings.Contains(string(body), "-- +goose Down"), entry.Name())
	}
}

func TestMigrations_ActiveUniqueIndexes(t *testing.T) {
	body, err := fs.ReadFile(migrationFiles, "migrations/00001_init.sql")
	require.NoError(t, err)

	assert.Contains(t, string(body), "users_email_active_uidx ON users (email) WHERE deleted_at IS NULL")
	assert.Contains(t, string(body), "users_nickname_active_uidx ON users (nickname) WHERE deleted_at IS NULL")
}
