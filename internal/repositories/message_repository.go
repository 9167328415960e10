package repositories

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Ndunguuu01/kodipay/internal/models"
)

const (
	messagesCollection = "messages"
	maxMessagePage     = 200
)

// MessageRepository persists group and direct messages in Mongo.
type MessageRepository interface {
	EnsureIndexes(ctx context.Context) error

	Create(ctx context.Context, m *models.Message) error
	GetByID(ctx context.Context, id string) (*models.Message, error)

	// ListForUser returns messages the user sent or received, newest first.
	ListForUser(ctx context.Context, userID string) ([]*models.Message, error)
	// ListGroup returns a property's group thread, oldest first.
	ListGroup(ctx context.Context, propertyID string) ([]*models.Message, error)
	// ListDirect returns the conversation between two users, oldest first.
	ListDirect(ctx context.Context, userA, userB string) ([]*models.Message, error)

	MarkRead(ctx context.Context, id string) error
}

type mongoMessageRepo struct {
	col *mongo.Collection
}

func NewMessageRepository(db *mongo.Database) MessageRepository {
	return &mongoMessageRepo{col: db.Collection(messagesCollection)}
}

func (r *mongoMessageRepo) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "property_id", Value: 1},
				{Key: "created_at", Value: 1},
			},
			Options: options.Index().SetName("idx_property_created"),
		},
		{
			Keys: bson.D{
				{Key: "sender_id", Value: 1},
				{Key: "recipient_id", Value: 1},
				{Key: "created_at", Value: 1},
			},
			Options: options.Index().SetName("idx_pair_created"),
		},
	}
	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}

func (r *mongoMessageRepo) Create(ctx context.Context, m *models.Message) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	res, err := r.col.InsertOne(ctx, m)
	if err != nil {
		return err
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		m.ID = oid
	}
	return nil
}

func (r *mongoMessageRepo) GetByID(ctx context.Context, id string) (*models.Message, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil
	}
	var m models.Message
	err = r.col.FindOne(ctx, bson.M{"_id": oid}).Decode(&m)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *mongoMessageRepo) ListForUser(ctx context.Context, userID string) ([]*models.Message, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"sender_id": userID},
		bson.M{"recipient_id": userID},
	}}
	return r.find(ctx, filter, -1)
}

func (r *mongoMessageRepo) ListGroup(ctx context.Context, propertyID string) ([]*models.Message, error) {
	return r.find(ctx, bson.M{"is_group": true, "property_id": propertyID}, 1)
}

func (r *mongoMessageRepo) ListDirect(ctx context.Context, userA, userB string) ([]*models.Message, error) {
	filter := bson.M{
		"is_group": false,
		"$or": bson.A{
			bson.M{"sender_id": userA, "recipient_id": userB},
			bson.M{"sender_id": userB, "recipient_id": userA},
		},
	}
	return r.find(ctx, filter, 1)
}

func (r *mongoMessageRepo) find(ctx context.Context, filter bson.M, order int) ([]*models.Message, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: order}}).
		SetLimit(maxMessagePage)

	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []*models.Message{}
	for cur.Next(ctx) {
		var m models.Message
		if err := cur.Decode(&m); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	return out, cur.Err()
}

func (r *mongoMessageRepo) MarkRead(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return mongo.ErrNoDocuments
	}
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{"is_read": true}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}
