package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"chatbot-api/internal/domain"
	"chatbot-api/internal/infra/metrics"
)

// Service orchestrates one chat exchange: load history, call the model,
// persist the extended conversation.
type Service struct {
	conversations domain.ConversationRepo
	generator     domain.Generator
	events        domain.EventPublisher
	cache         domain.Cache
	cacheTTL      time.Duration
	log           zerolog.Logger
	now           func() time.Time
}

// NewService creates the chat service. cache may be nil.
func NewService(conversations domain.ConversationRepo, generator domain.Generator, events domain.EventPublisher, cache domain.Cache, cacheTTL time.Duration, logger zerolog.Logger) *Service {
	return &Service{
		conversations: conversations,
		generator:     generator,
		events:        events,
		cache:         cache,
		cacheTTL:      cacheTTL,
		log:           logger,
		now:           time.Now,
	}
}

// Respond runs one exchange for (userID, message) and returns the reply.
// On an upstream failure nothing is persisted.
func (s *Service) Respond(ctx context.Context, userID, message string) (domain.Reply, error) {
	if userID == "" || message == "" {
		return domain.Reply{}, fmt.Errorf("%w: user_id and message are required", domain.ErrInvalidInput)
	}

	start := s.now()
	conv, err := s.loadOrCreate(ctx, userID)
	if err != nil {
		metrics.ChatRequestsTotal.WithLabelValues("store_error").Inc()
		return domain.Reply{}, err
	}

	conv.AppendUser(message, s.now().UTC())
	prompt := BuildContext(conv.Messages)
	s.log.Debug().Str("user_id", userID).Int("messages", len(conv.Messages)).Msg("chat: built context")

	replyText, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		metrics.ChatRequestsTotal.WithLabelValues("upstream_error").Inc()
		return domain.Reply{}, err
	}

	responseID := uuid.NewString()
	conv.AppendBot(replyText, responseID, s.now().UTC())

	// Full-document overwrite keyed by user_id. Two concurrent exchanges for
	// the same user can race here and the later write wins.
	if err := s.conversations.Update(ctx, conv); err != nil {
		metrics.ChatRequestsTotal.WithLabelValues("store_error").Inc()
		return domain.Reply{}, fmt.Errorf("persist conversation: %w", err)
	}

	s.refreshCache(ctx, conv)
	if err := s.events.PublishChat(ctx, domain.ChatEvent{
		UserID:       userID,
		ResponseID:   responseID,
		MessageChars: len(message),
		ReplyChars:   len(replyText),
		Timestamp:    s.now().UTC(),
	}); err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Msg("chat: event publish failed")
	}

	metrics.ChatRequestsTotal.WithLabelValues("ok").Inc()
	metrics.ChatExchangeSeconds.Observe(time.Since(start).Seconds())
	return domain.Reply{Text: replyText, ResponseID: responseID}, nil
}

// loadOrCreate fetches the user's conversation, creating an empty one on the
// first message. Read-then-create is not atomic; a concurrent first message
// may insert twice, mirroring the full-document race above.
func (s *Service) loadOrCreate(ctx context.Context, userID string) (domain.Conversation, error) {
	if conv, ok := s.cachedConversation(ctx, userID); ok {
		return conv, nil
	}

	conv, err := s.conversations.GetByUserID(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		conv = domain.NewConversation(userID, s.now().UTC())
		if err := s.conversations.Create(ctx, conv); err != nil {
			return domain.Conversation{}, fmt.Errorf("create conversation: %w", err)
		}
		return conv, nil
	}
	if err != nil {
		return domain.Conversation{}, fmt.Errorf("load conversation: %w", err)
	}
	return conv, nil
}

func (s *Service) cacheKey(userID string) string {
	return "conversation:" + userID
}

func (s *Service) cachedConversation(ctx context.Context, userID string) (domain.Conversation, bool) {
	if s.cache == nil {
		return domain.Conversation{}, false
	}
	raw, err := s.cache.Get(ctx, s.cacheKey(userID))
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.log.Warn().Err(err).Str("user_id", userID).Msg("chat: cache read failed")
		}
		return domain.Conversation{}, false
	}
	var conv domain.Conversation
	if err := json.Unmarshal(raw, &conv); err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Msg("chat: dropping unreadable cache entry")
		_ = s.cache.Del(ctx, s.cacheKey(userID))
		return domain.Conversation{}, false
	}
	return conv, true
}

func (s *Service) refreshCache(ctx context.Context, conv domain.Conversation) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(conv)
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", conv.UserID).Msg("chat: cache marshal failed")
		return
	}
	if err := s.cache.Set(ctx, s.cacheKey(conv.UserID), raw, s.cacheTTL); err != nil {
		s.log.Warn().Err(err).Str("user_id", conv.UserID).Msg("chat: cache write failed")
	}
}
