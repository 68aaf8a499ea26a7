package identities

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/docauth/internal/common"
	"github.com/dmitrijs2005/docauth/internal/dbx"
	"github.com/dmitrijs2005/docauth/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, email).Scan(&exists); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (*models.Identity, error) {
	query :=
		`SELECT id, email, password, first_name, last_name, role, is_verified, is_active,
		        is_banned, banned_until, ban_reason, is_2fa_enabled, date_joined, last_login
		 FROM users
		 WHERE email = $1
		 `

	var (
		u                              models.Identity
		firstName, lastName, banReason sql.NullString
		role                           string
		bannedUntil, lastLogin         sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, email).Scan(
		&u.ID, &u.Email, &u.PasswordHash, &firstName, &lastName, &role, &u.Verified, &u.Active,
		&u.Ban.IsBanned, &bannedUntil, &banReason, &u.TwoFactorEnabled, &u.DateJoined, &lastLogin,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	u.FirstName = firstName.String
	u.LastName = lastName.String
	u.Ban.Reason = banReason.String
	if u.Role, err = models.ParseRole(role); err != nil {
		u.Role = models.RoleUser
	}
	if bannedUntil.Valid {
		t := bannedUntil.Time
		u.Ban.BannedUntil = &t
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLogin = &t
	}
	return &u, nil
}

func (r *PostgresRepository) Save(ctx context.Context, u *models.Identity) (*models.Identity, error) {
	if u.ID == "" {
		return r.insert(ctx, u)
	}
	return r.update(ctx, u)
}

func (r *PostgresRepository) insert(ctx context.Context, u *models.Identity) (*models.Identity, error) {
	query :=
		`INSERT INTO users (email, password, first_name, last_name, role, is_verified, is_active,
		                    is_banned, banned_until, ban_reason, is_2fa_enabled, date_joined, last_login)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 RETURNING id
		 `

	err := r.db.QueryRowContext(ctx, query,
		u.Email, u.PasswordHash, nullString(u.FirstName), nullString(u.LastName), string(u.Role),
		u.Verified, u.Active, u.Ban.IsBanned, u.Ban.BannedUntil, nullString(u.Ban.Reason),
		u.TwoFactorEnabled, u.DateJoined, u.LastLogin,
	).Scan(&u.ID)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", common.ErrorAlreadyExists, u.Email)
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return u, nil
}

func (r *PostgresRepository) update(ctx context.Context, u *models.Identity) (*models.Identity, error) {
	query :=
		`UPDATE users SET email = $2, password = $3, first_name = $4, last_name = $5, role = $6,
		                  is_verified = $7, is_active = $8, is_banned = $9, banned_until = $10,
		                  ban_reason = $11, is_2fa_enabled = $12, last_login = $13
		 WHERE id = $1
		 `

	res, err := r.db.ExecContext(ctx, query,
		u.ID, u.Email, u.PasswordHash, nullString(u.FirstName), nullString(u.LastName), string(u.Role),
		u.Verified, u.Active, u.Ban.IsBanned, u.Ban.BannedUntil, nullString(u.Ban.Reason),
		u.TwoFactorEnabled, u.LastLogin,
	)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", common.ErrorAlreadyExists, u.Email)
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return nil, common.ErrorNotFound
	}
	return u, nil
}

func (r *PostgresRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE users SET last_login = $2 WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
