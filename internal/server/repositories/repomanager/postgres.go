// Package repomanager provides a concrete RepositoryManager for PostgreSQL,
// wiring together repository constructors and database migrations (via goose).
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/docauth/internal/dbx"
	"github.com/dmitrijs2005/docauth/internal/server/migrations"
	"github.com/dmitrijs2005/docauth/internal/server/repositories/identities"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// PostgresRepositoryManager vends PostgreSQL-backed repository implementations
// and exposes a schema migration hook.
type PostgresRepositoryManager struct{}

// Identities returns an identities.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Identities(db dbx.DBTX) identities.Repository {
	return identities.NewPostgresRepository(db)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against the provided database connection.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	if err := gooseUpContext(ctx, db, "."); err != nil {
		return err
	}
	return nil
}

// NewPostgresRepositoryManager constructs a PostgreSQL-backed RepositoryManager.
func NewPostgresRepositoryManager() RepositoryManager {
	return &PostgresRepositoryManager{}
}

// SQLTransactor opens a database transaction per InTx call.
type SQLTransactor struct {
	db *sql.DB
	m  RepositoryManager
}

func NewSQLTransactor(db *sql.DB, m RepositoryManager) *SQLTransactor {
	return &SQLTransactor{db: db, m: m}
}

func (t *SQLTransactor) InTx(ctx context.Context, fn func(ctx context.Context, repo identities.Repository) error) error {
	return dbx.WithTx(ctx, t.db, dbx.SignupTxOptions, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(ctx, t.m.Identities(tx))
	})
}
