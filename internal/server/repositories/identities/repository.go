// Package identities persists accounts. The store is authoritative on email
// uniqueness: implementations report a duplicate as common.ErrorAlreadyExists.
package identities

import (
	"context"
	"time"

	"github.com/dmitrijs2005/docauth/internal/server/models"
)

type Repository interface {
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	// FindByEmail returns common.ErrorNotFound when no identity matches.
	FindByEmail(ctx context.Context, email string) (*models.Identity, error)
	// Save inserts identities without an ID, assigning one, and updates the rest.
	Save(ctx context.Context, identity *models.Identity) (*models.Identity, error)
	// UpdateLastLogin touches only the last-login column, leaving flags that
	// may have changed since the identity was read untouched.
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
}
