package dtos

import "github.com/google/uuid"

type SendGroupMessageRequest struct {
	PropertyID uuid.UUID `json:"propertyId" validate:"required"`
	Content    string    `json:"content" validate:"required,min=1,max=4000"`
}

type SendDirectMessageRequest struct {
	RecipientID uuid.UUID `json:"recipientId" validate:"required"`
	Content     string    `json:"content" validate:"required,min=1,max=4000"`
}

type CreateComplaintRequest struct {
	PropertyID  uuid.UUID `json:"propertyId" validate:"required"`
	Title       string    `json:"title" validate:"required,min=1,max=200"`
	Description string    `json:"description" validate:"required,min=1,max=4000"`
}

type UpdateComplaintStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=open in_progress resolved closed"`
}

type SendSMSRequest struct {
	Phone   string `json:"phone" validate:"required"`
	Message string `json:"message" validate:"required,min=1,max=1600"`
}
