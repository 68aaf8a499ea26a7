// Package models defines server-side data models persisted in the database.
package models

import (
	"fmt"
	"time"
)

// Role is the authorization level of an identity.
type Role string

const (
	RoleUser       Role = "USER"
	RoleAdmin      Role = "ADMIN"
	RoleSuperAdmin Role = "SUPER_ADMIN"
)

// ParseRole maps the stored column value onto a Role.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleUser, RoleAdmin, RoleSuperAdmin:
		return r, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// BanState describes an administrative ban.
type BanState struct {
	IsBanned    bool
	BannedUntil *time.Time
	Reason      string
}

// Identity is an authenticatable account keyed by email.
type Identity struct {
	ID               string
	Email            string
	PasswordHash     string
	FirstName        string
	LastName         string
	Verified         bool
	Active           bool
	Role             Role
	Ban              BanState
	TwoFactorEnabled bool
	DateJoined       time.Time
	LastLogin        *time.Time
}

// IsCurrentlyBanned reports whether the ban applies at now. IsBanned is an
// unconditional lock; BannedUntil only bans while it lies in the future.
func (i *Identity) IsCurrentlyBanned(now time.Time) bool {
	if i.Ban.IsBanned {
		return true
	}
	return i.Ban.BannedUntil != nil && i.Ban.BannedUntil.After(now)
}

// CanAuthenticate reports whether the account may be issued tokens at now.
func (i *Identity) CanAuthenticate(now time.Time) bool {
	return i.Active && !i.IsCurrentlyBanned(now)
}
