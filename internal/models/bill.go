package models

import (
	"time"

	"github.com/google/uuid"
)

type BillType string

const (
	BillTypeRent        BillType = "rent"
	BillTypeUtilities   BillType = "utilities"
	BillTypeMaintenance BillType = "maintenance"
	BillTypeOther       BillType = "other"
)

type BillStatus string

const (
	BillStatusPending   BillStatus = "pending"
	BillStatusPaid      BillStatus = "paid"
	BillStatusOverdue   BillStatus = "overdue"
	BillStatusCancelled BillStatus = "cancelled"
)

func (s BillStatus) Valid() bool {
	switch s {
	case BillStatusPending, BillStatusPaid, BillStatusOverdue, BillStatusCancelled:
		return true
	}
	return false
}

type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "cash"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodMobileMoney  PaymentMethod = "mobile_money"
	PaymentMethodCard         PaymentMethod = "card"
	PaymentMethodOther        PaymentMethod = "other"
)

// PaymentEntry is one append-only line of a bill's payment history.
type PaymentEntry struct {
	Amount    int64         `json:"amount"`
	Date      time.Time     `json:"date"`
	Method    PaymentMethod `json:"method"`
	Reference string        `json:"reference"`
	Notes     string        `json:"notes,omitempty"`
}

// Bill is an amount owed by a tenant against a property (and optionally a room).
// Amounts are minor currency units.
type Bill struct {
	Versioned
	ID             uuid.UUID      `json:"id"`
	TenantUserID   *uuid.UUID     `json:"tenantUserId,omitempty"`
	TenantID       *uuid.UUID     `json:"tenantId,omitempty"`
	PropertyID     uuid.UUID      `json:"propertyId"`
	RoomID         *uuid.UUID     `json:"roomId,omitempty"`
	CreatedBy      uuid.UUID      `json:"createdBy"`
	Type           BillType       `json:"type"`
	Description    string         `json:"description,omitempty"`
	Amount         int64          `json:"amount"`
	DueDate        time.Time      `json:"dueDate"`
	Status         BillStatus     `json:"status"`
	PaymentHistory []PaymentEntry `json:"paymentHistory"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

func (b *Bill) GetID() string { return b.ID.String() }

// DeriveBillStatus is the single source of truth for a bill's status.
// A cancelled bill stays cancelled; otherwise the bill is paid once the
// history covers the amount, overdue once now is past the due date, and
// pending before that.
func DeriveBillStatus(amount int64, dueDate time.Time, history []PaymentEntry, current BillStatus, now time.Time) BillStatus {
	if current == BillStatusCancelled {
		return BillStatusCancelled
	}
	if SumPayments(history) >= amount {
		return BillStatusPaid
	}
	if now.After(dueDate) {
		return BillStatusOverdue
	}
	return BillStatusPending
}

func SumPayments(history []PaymentEntry) int64 {
	var total int64
	for _, e := range history {
		total += e.Amount
	}
	return total
}

// AmountPaid is the sum of the payment history.
func (b *Bill) AmountPaid() int64 { return SumPayments(b.PaymentHistory) }

// Balance is what is still owed, never negative.
func (b *Bill) Balance() int64 {
	if rem := b.Amount - b.AmountPaid(); rem > 0 {
		return rem
	}
	return 0
}

// Recompute re-derives Status and reports whether it changed.
func (b *Bill) Recompute(now time.Time) bool {
	next := DeriveBillStatus(b.Amount, b.DueDate, b.PaymentHistory, b.Status, now)
	if next == b.Status {
		return false
	}
	b.Status = next
	return true
}

// AppendPayment adds an entry to the history and then re-derives the status,
// so the status always reflects the entry just added.
func (b *Bill) AppendPayment(e PaymentEntry, now time.Time) {
	b.PaymentHistory = append(b.PaymentHistory, e)
	b.Recompute(now)
}

// HasReference reports whether the history already mirrors the payment with
// the given reference.
func (b *Bill) HasReference(ref string) bool {
	for _, e := range b.PaymentHistory {
		if e.Reference == ref {
			return true
		}
	}
	return false
}

// IsVisibleTo is true for the bill's tenant and its creator.
func (b *Bill) IsVisibleTo(userID uuid.UUID) bool {
	if b.CreatedBy == userID {
		return true
	}
	return b.TenantUserID != nil && *b.TenantUserID == userID
}
