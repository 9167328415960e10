package dtos

import (
	"time"

	"github.com/google/uuid"
)

type CreateTenantRequest struct {
	PropertyID uuid.UUID  `json:"propertyId" validate:"required"`
	RoomID     *uuid.UUID `json:"roomId" validate:"required"`
	UserID     *uuid.UUID `json:"userId,omitempty"`
	Name       string     `json:"name" validate:"required,min=1,max=100"`
	Email      *string    `json:"email,omitempty" validate:"omitempty,email"`
	Phone      string     `json:"phone" validate:"required"`
	NationalID string     `json:"nationalId" validate:"required,min=1,max=50"`
	LeaseStart time.Time  `json:"leaseStart" validate:"required"`
	LeaseEnd   time.Time  `json:"leaseEnd" validate:"required,gtfield=LeaseStart"`
	Status     string     `json:"status,omitempty" validate:"omitempty,oneof=active inactive pending"`
	Notes      string     `json:"notes,omitempty" validate:"max=2000"`
}

// UpdateTenantRequest changes only the fields present. A RoomID different
// from the tenant's current room moves the tenant.
type UpdateTenantRequest struct {
	Name       *string    `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	Email      *string    `json:"email,omitempty" validate:"omitempty,email"`
	Phone      *string    `json:"phone,omitempty"`
	NationalID *string    `json:"nationalId,omitempty" validate:"omitempty,min=1,max=50"`
	RoomID     *uuid.UUID `json:"roomId,omitempty"`
	LeaseStart *time.Time `json:"leaseStart,omitempty"`
	LeaseEnd   *time.Time `json:"leaseEnd,omitempty"`
	Status     *string    `json:"status,omitempty" validate:"omitempty,oneof=active inactive pending"`
	Notes      *string    `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

type DeleteAllTenantsResponse struct {
	Deleted int64 `json:"deleted"`
}
