package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"chatbot-api/internal/domain"
	"chatbot-api/internal/infra/db"
)

// Mongo implements the conversation and feedback repositories on MongoDB.
type Mongo struct {
	conversations *mongo.Collection
	feedbacks     *mongo.Collection
}

var (
	_ domain.ConversationRepo = (*Mongo)(nil)
	_ domain.FeedbackRepo     = (*Mongo)(nil)
)

// NewMongo creates the repository adapter over the given database.
func NewMongo(database *mongo.Database) *Mongo {
	return &Mongo{
		conversations: database.Collection(db.ConversationsCollection),
		feedbacks:     database.Collection(db.FeedbacksCollection),
	}
}

// GetByUserID returns the user's conversation or domain.ErrNotFound.
func (m *Mongo) GetByUserID(ctx context.Context, userID string) (domain.Conversation, error) {
	var conv domain.Conversation
	err := m.conversations.FindOne(ctx, bson.M{"user_id": userID}).Decode(&conv)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Conversation{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Conversation{}, fmt.Errorf("find conversation: %w", err)
	}
	return conv, nil
}

// Create inserts a new conversation document.
func (m *Mongo) Create(ctx context.Context, conv domain.Conversation) error {
	if _, err := m.conversations.InsertOne(ctx, conv); err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}
	return nil
}

// Update overwrites the whole conversation document keyed by user_id.
// Concurrent writers for the same user race here; the later write wins.
func (m *Mongo) Update(ctx context.Context, conv domain.Conversation) error {
	_, err := m.conversations.UpdateOne(ctx,
		bson.M{"user_id": conv.UserID},
		bson.M{"$set": conv},
	)
	if err != nil {
		return fmt.Errorf("update conversation: %w", err)
	}
	return nil
}

// GetByUniqueID returns the feedback for a derived key or domain.ErrNotFound.
func (m *Mongo) GetByUniqueID(ctx context.Context, uniqueID string) (domain.Feedback, error) {
	var fb domain.Feedback
	err := m.feedbacks.FindOne(ctx, bson.M{"unique_id": uniqueID}).Decode(&fb)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Feedback{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Feedback{}, fmt.Errorf("find feedback: %w", err)
	}
	return fb, nil
}

// Insert stores a new feedback document and returns its generated id.
// A concurrent insert for the same unique_id surfaces as
// domain.ErrDuplicateFeedback via the unique index.
func (m *Mongo) Insert(ctx context.Context, fb domain.Feedback) (string, error) {
	res, err := m.feedbacks.InsertOne(ctx, fb)
	if mongo.IsDuplicateKeyError(err) {
		return "", domain.ErrDuplicateFeedback
	}
	if err != nil {
		return "", fmt.Errorf("insert feedback: %w", err)
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		return oid.Hex(), nil
	}
	return fmt.Sprintf("%v", res.InsertedID), nil
}

// UpdateByUniqueID sets the feedback text and timestamp in place.
// domain.ErrFeedbackUpdateFailed is returned when nothing was modified.
func (m *Mongo) UpdateByUniqueID(ctx context.Context, uniqueID, text string, ts time.Time) error {
	res, err := m.feedbacks.UpdateOne(ctx,
		bson.M{"unique_id": uniqueID},
		bson.M{"$set": bson.M{"feedback": text, "timestamp": ts}},
	)
	if err != nil {
		return fmt.Errorf("update feedback: %w", err)
	}
	if res.ModifiedCount == 0 {
		return domain.ErrFeedbackUpdateFailed
	}
	return nil
}
