package models

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleLandlord Role = "landlord"
	RoleTenant   Role = "tenant"
	RoleAdmin    Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleLandlord, RoleTenant, RoleAdmin:
		return true
	}
	return false
}

// User is a login identity. Tenants (the person records a landlord manages)
// are separate; see Tenant.UserID for the durable link between the two.
type User struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Email        *string   `json:"email,omitempty"`
	Phone        string    `json:"phone"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// RefreshToken is the single live rotating credential of a user.
// Token holds the raw value only on the way out of GenerateRefreshToken;
// the repository stores its hash.
type RefreshToken struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"userId"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
	// RotatedAt is set once the token has been exchanged; the row is kept
	// until expiry only to recognise replays.
	RotatedAt *time.Time `json:"rotatedAt,omitempty"`
}

func (rt *RefreshToken) IsExpired() bool {
	return time.Now().After(rt.ExpiresAt)
}

func (rt *RefreshToken) IsRotated() bool {
	return rt.RotatedAt != nil
}

// PasswordReset is a single-use reset token, stored hashed.
type PasswordReset struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}
