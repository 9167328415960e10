package models

import (
	"time"

	"github.com/google/uuid"
)

type TenantStatus string

const (
	TenantStatusActive   TenantStatus = "active"
	TenantStatusInactive TenantStatus = "inactive"
	TenantStatusPending  TenantStatus = "pending"
)

// Tenant is the person record a landlord manages. UserID is the durable link
// to a login identity, set only when the tenant was created for that user.
type Tenant struct {
	ID         uuid.UUID    `json:"id"`
	LandlordID uuid.UUID    `json:"landlordId"`
	UserID     *uuid.UUID   `json:"userId,omitempty"`
	Name       string       `json:"name"`
	Email      *string      `json:"email,omitempty"`
	Phone      string       `json:"phone"`
	NationalID string       `json:"nationalId"`
	PropertyID uuid.UUID    `json:"propertyId"`
	RoomID     *uuid.UUID   `json:"roomId,omitempty"`
	LeaseStart time.Time    `json:"leaseStart"`
	LeaseEnd   time.Time    `json:"leaseEnd"`
	Status     TenantStatus `json:"status"`
	Notes      string       `json:"notes,omitempty"`
	CreatedAt  time.Time    `json:"createdAt"`
	UpdatedAt  time.Time    `json:"updatedAt"`
}

// Lease records one tenancy period of a tenant in a room.
type Lease struct {
	ID         uuid.UUID    `json:"id"`
	TenantID   uuid.UUID    `json:"tenantId"`
	PropertyID uuid.UUID    `json:"propertyId"`
	RoomID     *uuid.UUID   `json:"roomId,omitempty"`
	LeaseStart time.Time    `json:"leaseStart"`
	LeaseEnd   time.Time    `json:"leaseEnd"`
	Status     TenantStatus `json:"status"`
	Notes      string       `json:"notes,omitempty"`
	CreatedAt  time.Time    `json:"createdAt"`
	UpdatedAt  time.Time    `json:"updatedAt"`
}
