package db

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names used by the service.
const (
	ConversationsCollection = "conversations"
	FeedbacksCollection     = "feedbacks"
)

// Connect opens a Mongo client and verifies the connection.
func Connect(uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return client, nil
}

// EnsureIndexes creates the unique index on feedbacks.unique_id. The index
// backs the at-most-one-feedback-per-response invariant; concurrent inserts
// for the same key surface as a duplicate key error.
func EnsureIndexes(ctx context.Context, database *mongo.Database) error {
	_, err := database.Collection(FeedbacksCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "unique_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}
