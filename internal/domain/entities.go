package domain

import "time"

// Message roles as stored in the conversation history.
const (
	RoleUser = "user"
	RoleBot  = "bot"
)

// Message is one entry in a conversation history.
type Message struct {
	Role       string    `bson:"role" json:"role"`
	Text       string    `bson:"text" json:"text"`
	ResponseID string    `bson:"response_id,omitempty" json:"response_id,omitempty"`
	Timestamp  time.Time `bson:"timestamp" json:"timestamp"`
}

// Conversation is the per-user message history, one document per user.
type Conversation struct {
	UserID    string    `bson:"user_id" json:"user_id"`
	Messages  []Message `bson:"messages" json:"messages"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// NewConversation creates an empty conversation for the user.
func NewConversation(userID string, now time.Time) Conversation {
	return Conversation{UserID: userID, Messages: []Message{}, CreatedAt: now, UpdatedAt: now}
}

// AppendUser adds a user message to the in-memory history.
func (c *Conversation) AppendUser(text string, now time.Time) {
	c.Messages = append(c.Messages, Message{Role: RoleUser, Text: text, Timestamp: now})
}

// AppendBot adds a bot reply with its response id and bumps updated_at.
func (c *Conversation) AppendBot(text, responseID string, now time.Time) {
	c.Messages = append(c.Messages, Message{Role: RoleBot, Text: text, ResponseID: responseID, Timestamp: now})
	c.UpdatedAt = now
}

// Reply is the result of one chat exchange.
type Reply struct {
	Text       string
	ResponseID string
}

// Feedback is a user's verdict on one bot reply, at most one per (user, response).
type Feedback struct {
	UniqueID   string    `bson:"unique_id" json:"unique_id"`
	UserID     string    `bson:"user_id" json:"user_id"`
	ResponseID string    `bson:"response_id" json:"response_id"`
	Feedback   string    `bson:"feedback" json:"feedback"`
	Timestamp  time.Time `bson:"timestamp" json:"timestamp"`
}

// FeedbackKey derives the natural key for a (user, response) pair.
// The stored unique_id is always recomputed from the pair, never taken
// from the client.
func FeedbackKey(userID, responseID string) string {
	return userID + "_" + responseID
}
