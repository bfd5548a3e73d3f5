package domain

import (
	"context"
	"time"
)

// ConversationRepo manages per-user conversation documents.
type ConversationRepo interface {
	GetByUserID(ctx context.Context, userID string) (Conversation, error)
	Create(ctx context.Context, conv Conversation) error
	Update(ctx context.Context, conv Conversation) error
}

// FeedbackRepo manages feedback documents keyed by unique_id.
type FeedbackRepo interface {
	GetByUniqueID(ctx context.Context, uniqueID string) (Feedback, error)
	Insert(ctx context.Context, fb Feedback) (string, error)
	UpdateByUniqueID(ctx context.Context, uniqueID, text string, ts time.Time) error
}

// Generator produces a full reply for a prompt, reassembled from the
// upstream token stream.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ChatEvent is emitted after a chat exchange has been persisted.
type ChatEvent struct {
	UserID       string    `json:"user_id"`
	ResponseID   string    `json:"response_id"`
	MessageChars int       `json:"message_chars"`
	ReplyChars   int       `json:"reply_chars"`
	Timestamp    time.Time `json:"ts"`
}

// FeedbackEvent is emitted after feedback has been recorded.
type FeedbackEvent struct {
	UserID     string    `json:"user_id"`
	ResponseID string    `json:"response_id"`
	Created    bool      `json:"created"`
	Timestamp  time.Time `json:"ts"`
}

// EventPublisher delivers events to interested consumers, best effort.
type EventPublisher interface {
	PublishChat(ctx context.Context, ev ChatEvent) error
	PublishFeedback(ctx context.Context, ev FeedbackEvent) error
}

// Cache is a simple TTL byte store in front of the conversation collection.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}
