package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"chatbot-api/internal/domain"
)

// Routing keys for published events.
const (
	chatRoutingKey     = "chat.completed"
	feedbackRoutingKey = "feedback.recorded"
)

// RabbitPublisher emits service events to a topic exchange.
type RabbitPublisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
	mu       sync.Mutex
}

var _ domain.EventPublisher = (*RabbitPublisher)(nil)

// NewRabbitPublisher dials the broker and declares the exchange.
func NewRabbitPublisher(url, exchange string) (*RabbitPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &RabbitPublisher{conn: conn, ch: ch, exchange: exchange}, nil
}

// PublishChat emits a chat.completed event.
func (p *RabbitPublisher) PublishChat(ctx context.Context, ev domain.ChatEvent) error {
	return p.publish(ctx, chatRoutingKey, ev)
}

// PublishFeedback emits a feedback.recorded event.
func (p *RabbitPublisher) PublishFeedback(ctx context.Context, ev domain.FeedbackEvent) error {
	return p.publish(ctx, feedbackRoutingKey, ev)
}

func (p *RabbitPublisher) publish(ctx context.Context, key string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	// amqp channels are not safe for concurrent publishing.
	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.ch.PublishWithContext(ctx, p.exchange, key, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", key, err)
	}
	return nil
}

// Close releases the channel and connection.
func (p *RabbitPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ch.Close(); err != nil {
		_ = p.conn.Close()
		return err
	}
	return p.conn.Close()
}

// NoopPublisher is used when no broker is configured.
type NoopPublisher struct{}

var _ domain.EventPublisher = NoopPublisher{}

// PublishChat does nothing.
func (NoopPublisher) PublishChat(context.Context, domain.ChatEvent) error { return nil }

// PublishFeedback does nothing.
func (NoopPublisher) PublishFeedback(context.Context, domain.FeedbackEvent) error { return nil }
