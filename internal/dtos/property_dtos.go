package dtos

import "github.com/google/uuid"

type RoomInput struct {
	Label      string `json:"label" validate:"required,min=1,max=50"`
	RentAmount *int64 `json:"rentAmount,omitempty" validate:"omitempty,gte=0"`
}

type FloorInput struct {
	Number int         `json:"number" validate:"gte=0"`
	Rooms  []RoomInput `json:"rooms" validate:"dive"`
}

type CreatePropertyRequest struct {
	Name       string       `json:"name" validate:"required,min=1,max=200"`
	Address    string       `json:"address" validate:"required,min=1,max=500"`
	RentAmount int64        `json:"rentAmount" validate:"gte=0"`
	Floors     []FloorInput `json:"floors" validate:"dive"`
}

type UpdatePropertyRequest struct {
	Name       *string `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Address    *string `json:"address,omitempty" validate:"omitempty,min=1,max=500"`
	RentAmount *int64  `json:"rentAmount,omitempty" validate:"omitempty,gte=0"`
}

type AddFloorRequest struct {
	Number int `json:"number" validate:"gte=0"`
}

type AddRoomRequest struct {
	Label      string `json:"label" validate:"required,min=1,max=50"`
	RentAmount *int64 `json:"rentAmount,omitempty" validate:"omitempty,gte=0"`
}

type UpdateRoomRequest struct {
	Label      *string `json:"label,omitempty" validate:"omitempty,min=1,max=50"`
	RentAmount *int64  `json:"rentAmount,omitempty" validate:"omitempty,gte=0"`
}

type AssignTenantRequest struct {
	TenantID uuid.UUID `json:"tenantId" validate:"required"`
	RoomID   uuid.UUID `json:"roomId" validate:"required"`
}
