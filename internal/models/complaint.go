package models

import (
	"time"

	"github.com/google/uuid"
)

type ComplaintStatus string

const (
	ComplaintStatusOpen       ComplaintStatus = "open"
	ComplaintStatusInProgress ComplaintStatus = "in_progress"
	ComplaintStatusResolved   ComplaintStatus = "resolved"
	ComplaintStatusClosed     ComplaintStatus = "closed"
)

// Complaint is authored by a tenant user about a property; its landlord
// moves it through the status values.
type Complaint struct {
	ID          uuid.UUID       `json:"id"`
	PropertyID  uuid.UUID       `json:"propertyId"`
	LandlordID  uuid.UUID       `json:"landlordId"`
	AuthorID    uuid.UUID       `json:"authorId"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Status      ComplaintStatus `json:"status"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}
