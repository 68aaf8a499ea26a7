package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/docauth/internal/dbx"
	"github.com/dmitrijs2005/docauth/internal/server/repositories/identities"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Identities(db dbx.DBTX) identities.Repository
}

// Transactor runs fn against an identities.Repository bound to one unit of work.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context, repo identities.Repository) error) error
}

// DirectTransactor hands fn the wrapped repository as is. It suits stores whose
// single operations are already atomic, such as identities.MemoryRepository.
type DirectTransactor struct {
	Repo identities.Repository
}

func (d DirectTransactor) InTx(ctx context.Context, fn func(ctx context.Context, repo identities.Repository) error) error {
	return fn(ctx, d.Repo)
}
