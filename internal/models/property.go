package models

import (
	"time"

	"github.com/google/uuid"
)

// Property is owned by exactly one landlord and composes its floors and rooms.
type Property struct {
	Versioned
	ID         uuid.UUID `json:"id"`
	LandlordID uuid.UUID `json:"landlordId"`
	Name       string    `json:"name"`
	Address    string    `json:"address"`
	RentAmount int64     `json:"rentAmount"`
	Floors     []*Floor  `json:"floors"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func (p *Property) GetID() string { return p.ID.String() }

// Floor represents a level within a property. Rooms keep their insertion order.
type Floor struct {
	ID         uuid.UUID `json:"id"`
	PropertyID uuid.UUID `json:"propertyId"`
	Number     int       `json:"number"`
	Rooms      []*Room   `json:"rooms"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Room is the leasable unit. IsOccupied is true iff TenantID is set.
type Room struct {
	ID         uuid.UUID  `json:"id"`
	PropertyID uuid.UUID  `json:"propertyId"`
	FloorID    uuid.UUID  `json:"floorId"`
	Label      string     `json:"label"`
	RentAmount int64      `json:"rentAmount"`
	IsOccupied bool       `json:"isOccupied"`
	TenantID   *uuid.UUID `json:"tenantId,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// FindRoom locates a room by id across all floors.
func (p *Property) FindRoom(roomID uuid.UUID) *Room {
	for _, f := range p.Floors {
		for _, r := range f.Rooms {
			if r.ID == roomID {
				return r
			}
		}
	}
	return nil
}

// FindFloor returns the floor with the given id, or nil.
func (p *Property) FindFloor(floorID uuid.UUID) *Floor {
	for _, f := range p.Floors {
		if f.ID == floorID {
			return f
		}
	}
	return nil
}

// OccupiedRooms counts rooms currently bound to a tenant.
func (p *Property) OccupiedRooms() int {
	n := 0
	for _, f := range p.Floors {
		for _, r := range f.Rooms {
			if r.IsOccupied {
				n++
			}
		}
	}
	return n
}

func (p *Property) IsOwnedBy(userID uuid.UUID) bool {
	return p.LandlordID == userID
}
