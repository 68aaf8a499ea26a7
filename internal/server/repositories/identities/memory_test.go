package identities

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/docauth/internal/common"
	"github.com/dmitrijs2005/docauth/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRepository_SaveAssignsStableID(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()

	u, err := r.Save(ctx, &models.Identity{Email: "a@x.com", PasswordHash: "h", Role: models.RoleUser})
	require.NoError(t, err)
	require.NotEmpty(t, u.ID)
	id := u.ID

	u.Verified = true
	u2, err := r.Save(ctx, u)
	require.NoError(t, err)
	assert.Equal(t, id, u2.ID)

	got, err := r.FindByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.True(t, got.Verified)
}

func TestMemoryRepository_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()
	_, err := r.Save(ctx, &models.Identity{Email: "a@x.com"})
	require.NoError(t, err)

	got, err := r.FindByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	got.Verified = true

	again, err := r.FindByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.False(t, again.Verified)
}

func TestMemoryRepository_ExistsAndNotFound(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()

	ok, err := r.ExistsByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = r.FindByEmail(ctx, "a@x.com")
	assert.True(t, errors.Is(err, common.ErrorNotFound))

	_, err = r.Save(ctx, &models.Identity{Email: "a@x.com"})
	require.NoError(t, err)

	ok, err = r.ExistsByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryRepository_UniqueEmail(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()

	_, err := r.Save(ctx, &models.Identity{Email: "a@x.com"})
	require.NoError(t, err)
	_, err = r.Save(ctx, &models.Identity{Email: "a@x.com"})
	assert.ErrorIs(t, err, common.ErrorAlreadyExists)

	b, err := r.Save(ctx, &models.Identity{Email: "b@x.com"})
	require.NoError(t, err)
	b.Email = "a@x.com"
	_, err = r.Save(ctx, b)
	assert.ErrorIs(t, err, common.ErrorAlreadyExists)
}

func TestMemoryRepository_UpdateUnknownID(t *testing.T) {
	_, err := NewMemoryRepository().Save(context.Background(), &models.Identity{ID: "nope", Email: "a@x.com"})
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestMemoryRepository_EmailChangeMovesKey(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()
	u, err := r.Save(ctx, &models.Identity{Email: "old@x.com"})
	require.NoError(t, err)

	u.Email = "new@x.com"
	_, err = r.Save(ctx, u)
	require.NoError(t, err)

	ok, err := r.ExistsByEmail(ctx, "old@x.com")
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = r.ExistsByEmail(ctx, "new@x.com")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryRepository_ConcurrentSignupsOneWinner(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := r.Save(ctx, &models.Identity{Email: "race@x.com", FirstName: fmt.Sprint(i)})
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestMemoryRepository_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := NewMemoryRepository()

	_, err := r.ExistsByEmail(ctx, "a@x.com")
	assert.ErrorIs(t, err, context.Canceled)
	_, err = r.FindByEmail(ctx, "a@x.com")
	assert.ErrorIs(t, err, context.Canceled)
	_, err = r.Save(ctx, &models.Identity{Email: "a@x.com"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemoryRepository_UpdateLastLoginKeepsOtherFields(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()
	u, err := r.Save(ctx, &models.Identity{Email: "a@x.com", Verified: true})
	require.NoError(t, err)

	stale, err := r.FindByEmail(ctx, "a@x.com")
	require.NoError(t, err)

	u.Ban.IsBanned = true
	_, err = r.Save(ctx, u)
	require.NoError(t, err)

	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, r.UpdateLastLogin(ctx, stale.ID, at))

	got, err := r.FindByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	require.NotNil(t, got.LastLogin)
	assert.Equal(t, at, *got.LastLogin)
	assert.True(t, got.Ban.IsBanned)

	assert.ErrorIs(t, r.UpdateLastLogin(ctx, "missing", at), common.ErrorNotFound)
}
