package models

import (
	"time"

	"github.com/google/uuid"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusRefunded:
		return true
	}
	return false
}

// Payment is a standalone record of one payment event against a bill.
// Its reference is mirrored into the bill's payment history.
type Payment struct {
	Versioned
	ID                uuid.UUID     `json:"id"`
	BillID            uuid.UUID     `json:"billId"`
	Amount            int64         `json:"amount"`
	Method            PaymentMethod `json:"method"`
	Status            PaymentStatus `json:"status"`
	Reference         string        `json:"reference"`
	TransactionID     *string       `json:"transactionId,omitempty"`
	CheckoutRequestID *string       `json:"checkoutRequestId,omitempty"`
	IdempotencyKey    *string       `json:"idempotencyKey,omitempty"`
	PaymentDate       time.Time     `json:"paymentDate"`
	Notes             string        `json:"notes,omitempty"`
	CreatedBy         uuid.UUID     `json:"createdBy"`
	CreatedAt         time.Time     `json:"createdAt"`
	UpdatedAt         time.Time     `json:"updatedAt"`
}

func (p *Payment) GetID() string { return p.ID.String() }

// NewPaymentReference builds the globally unique PAY-<uuid> reference.
func NewPaymentReference() string {
	return "PAY-" + uuid.NewString()
}

// PaymentStats aggregates payment amounts by status.
type PaymentStats struct {
	Total     int64 `json:"total"`
	Pending   int64 `json:"pending"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Refunded  int64 `json:"refunded"`
}

// BillStatusStat is one row of the per-status bill aggregation.
type BillStatusStat struct {
	Status      BillStatus `json:"status"`
	Count       int64      `json:"count"`
	TotalAmount int64      `json:"totalAmount"`
}

// Add folds one status group into the totals.
func (s *PaymentStats) Add(status PaymentStatus, amount int64) {
	s.Total += amount
	switch status {
	case PaymentStatusPending:
		s.Pending += amount
	case PaymentStatusCompleted:
		s.Completed += amount
	case PaymentStatusFailed:
		s.Failed += amount
	case PaymentStatusRefunded:
		s.Refunded += amount
	}
}
