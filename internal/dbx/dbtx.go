// Package dbx holds the database plumbing the identity repositories share.
package dbx

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

// DBTX is satisfied by both *sql.DB and *sql.Tx, so a repository can be bound
// to either a pool or a running transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SignupTxOptions is used for the check-then-insert of a new identity. The
// unique index on email decides concurrent signups, so read committed is
// enough and a lost race surfaces as a unique violation rather than a
// serialization failure.
var SignupTxOptions = &sql.TxOptions{Isolation: sql.LevelReadCommitted}

// WithTx runs fn inside a transaction. It commits when fn returns nil and
// rolls back on an error or a panic; the panic is re-raised.
//
//	err := dbx.WithTx(ctx, db, dbx.SignupTxOptions, func(ctx context.Context, tx dbx.DBTX) error {
//	    repo := identities.NewPostgresRepository(tx)
//	    // ExistsByEmail, then Save
//	})
func WithTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(ctx context.Context, tx DBTX) error) (err error) {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	return fn(ctx, tx)
}

// IsUniqueViolation reports whether err carries a postgres unique_violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
