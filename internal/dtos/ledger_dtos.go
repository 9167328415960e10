package dtos

import (
	"time"

	"github.com/google/uuid"
)

// ----------------------
// Bills
// ----------------------

// CreateBillRequest names the debtor either by tenant record or by user.
type CreateBillRequest struct {
	TenantID     *uuid.UUID `json:"tenantId,omitempty" validate:"required_without=TenantUserID"`
	TenantUserID *uuid.UUID `json:"tenantUserId,omitempty"`
	PropertyID   uuid.UUID  `json:"propertyId" validate:"required"`
	RoomID       *uuid.UUID `json:"roomId,omitempty"`
	Type         string     `json:"type" validate:"required,oneof=rent utilities maintenance other"`
	Description  string     `json:"description,omitempty" validate:"max=1000"`
	Amount       int64      `json:"amount" validate:"gt=0"`
	DueDate      time.Time  `json:"dueDate" validate:"required"`
}

type UpdateBillRequest struct {
	Type        *string    `json:"type,omitempty" validate:"omitempty,oneof=rent utilities maintenance other"`
	Description *string    `json:"description,omitempty" validate:"omitempty,max=1000"`
	Amount      *int64     `json:"amount,omitempty" validate:"omitempty,gt=0"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	// Status may only be "cancelled", or a non-cancelled value to lift a
	// cancellation; the stored status is always re-derived.
	Status *string `json:"status,omitempty" validate:"omitempty,oneof=pending paid overdue cancelled"`
}

// BillPaymentRequest is the body of POST /bills/{id}/payments.
type BillPaymentRequest struct {
	Amount         int64  `json:"amount" validate:"gt=0"`
	Method         string `json:"method" validate:"required,oneof=cash bank_transfer mobile_money card other"`
	Notes          string `json:"notes,omitempty" validate:"max=1000"`
	IdempotencyKey string `json:"idempotencyKey,omitempty" validate:"max=128"`
}

// ----------------------
// Payments
// ----------------------

type CreatePaymentRequest struct {
	BillID uuid.UUID `json:"billId" validate:"required"`
	BillPaymentRequest
}

type UpdatePaymentStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending completed failed refunded"`
}

type STKPushRequest struct {
	Phone            string     `json:"phone" validate:"required"`
	Amount           int64      `json:"amount" validate:"gt=0"`
	BillID           *uuid.UUID `json:"billId,omitempty"`
	AccountReference string     `json:"accountReference,omitempty" validate:"max=12"`
	Description      string     `json:"description,omitempty" validate:"max=13"`
}
