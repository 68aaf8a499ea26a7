package dbx

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

var errEmailTaken = errors.New("email taken")

func openUsers(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", "file:"+t.Name()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.Exec(`CREATE TABLE users (id INTEGER PRIMARY KEY, email TEXT NOT NULL UNIQUE, password TEXT NOT NULL)`)
	require.NoError(t, err)
	return db
}

// signup mirrors the identity transaction: re-check the email, then insert.
func signup(ctx context.Context, tx DBTX, email string) error {
	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE email = ?)`, email).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return errEmailTaken
	}
	_, err := tx.ExecContext(ctx, `INSERT INTO users (email, password) VALUES (?, ?)`, email, "$2a$04$hash")
	return err
}

func countUsers(t *testing.T, db *sql.DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&n))
	return n
}

func TestWithTx_SignupCommits(t *testing.T) {
	db := openUsers(t)
	ctx := context.Background()

	require.NoError(t, WithTx(ctx, db, nil, func(ctx context.Context, tx DBTX) error {
		return signup(ctx, tx, "alice@example.com")
	}))
	assert.Equal(t, 1, countUsers(t, db))
}

func TestWithTx_DuplicateSignupRollsBack(t *testing.T) {
	db := openUsers(t)
	ctx := context.Background()

	require.NoError(t, WithTx(ctx, db, nil, func(ctx context.Context, tx DBTX) error {
		return signup(ctx, tx, "alice@example.com")
	}))

	err := WithTx(ctx, db, nil, func(ctx context.Context, tx DBTX) error {
		if err := signup(ctx, tx, "bob@example.com"); err != nil {
			return err
		}
		return signup(ctx, tx, "alice@example.com")
	})
	require.ErrorIs(t, err, errEmailTaken)
	assert.Equal(t, 1, countUsers(t, db), "bob must not survive the rollback")
}

func TestWithTx_PanicRollsBack(t *testing.T) {
	db := openUsers(t)

	assert.PanicsWithValue(t, "hash failed", func() {
		_ = WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
			require.NoError(t, signup(ctx, tx, "carol@example.com"))
			panic("hash failed")
		})
	})
	assert.Equal(t, 0, countUsers(t, db))
}

func TestWithTx_BeginFails(t *testing.T) {
	db := openUsers(t)
	require.NoError(t, db.Close())

	called := false
	err := WithTx(context.Background(), db, SignupTxOptions, func(ctx context.Context, tx DBTX) error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.False(t, called)
}

func TestIsUniqueViolation(t *testing.T) {
	dup := &pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"}

	assert.True(t, IsUniqueViolation(dup))
	assert.True(t, IsUniqueViolation(fmt.Errorf("insert identity: %w", dup)))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "40001"}))
	assert.False(t, IsUniqueViolation(errEmailTaken))
	assert.False(t, IsUniqueViolation(nil))
}

func TestSignupTxOptions(t *testing.T) {
	assert.Equal(t, sql.LevelReadCommitted, SignupTxOptions.Isolation)
	assert.False(t, SignupTxOptions.ReadOnly)
}
