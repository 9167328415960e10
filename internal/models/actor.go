package models

import "github.com/google/uuid"

// Actor is the authenticated caller a service acts on behalf of.
type Actor struct {
	UserID uuid.UUID
	Role   Role
}

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }
