package identities

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/docauth/internal/common"
	"github.com/dmitrijs2005/docauth/internal/server/models"
	"github.com/google/uuid"
)

// MemoryRepository keeps identities in process memory. It is used when no
// database DSN is configured and in tests.
type MemoryRepository struct {
	mu      sync.RWMutex
	byEmail map[string]*models.Identity
	emails  map[string]string // id -> email
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byEmail: make(map[string]*models.Identity),
		emails:  make(map[string]string),
	}
}

func (r *MemoryRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byEmail[email]
	return ok, nil
}

func (r *MemoryRepository) FindByEmail(ctx context.Context, email string) (*models.Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byEmail[email]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *u
	return &c, nil
}

func (r *MemoryRepository) Save(ctx context.Context, u *models.Identity) (*models.Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if u.ID == "" {
		if _, ok := r.byEmail[u.Email]; ok {
			return nil, fmt.Errorf("%w: %s", common.ErrorAlreadyExists, u.Email)
		}
		u.ID = uuid.NewString()
	} else {
		prev, ok := r.emails[u.ID]
		if !ok {
			return nil, common.ErrorNotFound
		}
		if other, taken := r.byEmail[u.Email]; taken && other.ID != u.ID {
			return nil, fmt.Errorf("%w: %s", common.ErrorAlreadyExists, u.Email)
		}
		delete(r.byEmail, prev)
	}

	c := *u
	r.byEmail[u.Email] = &c
	r.emails[u.ID] = u.Email
	return u, nil
}

func (r *MemoryRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	email, ok := r.emails[id]
	if !ok {
		return common.ErrorNotFound
	}
	r.byEmail[email].LastLogin = &at
	return nil
}
