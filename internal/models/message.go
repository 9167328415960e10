package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Message is stored in the document store. Group messages carry a
// PropertyID; direct messages carry a RecipientID. Only IsRead ever changes.
type Message struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SenderID    string             `bson:"sender_id" json:"senderId"`
	SenderName  string             `bson:"sender_name" json:"senderName"`
	SenderPhone string             `bson:"sender_phone,omitempty" json:"senderPhone,omitempty"`
	RecipientID string             `bson:"recipient_id,omitempty" json:"recipientId,omitempty"`
	PropertyID  string             `bson:"property_id,omitempty" json:"propertyId,omitempty"`
	IsGroup     bool               `bson:"is_group" json:"isGroup"`
	Content     string             `bson:"content" json:"content"`
	IsRead      bool               `bson:"is_read" json:"isRead"`
	CreatedAt   time.Time          `bson:"created_at" json:"createdAt"`
}
