package feedback

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"chatbot-api/internal/domain"
	"chatbot-api/internal/infra/metrics"
)

// Result reports what a Record call did.
type Result struct {
	Created    bool
	FeedbackID string
}

// Service records user feedback, at most one document per (user, response).
type Service struct {
	feedbacks domain.FeedbackRepo
	events    domain.EventPublisher
	log       zerolog.Logger
	now       func() time.Time
}

// NewService creates the feedback service.
func NewService(feedbacks domain.FeedbackRepo, events domain.EventPublisher, logger zerolog.Logger) *Service {
	return &Service{feedbacks: feedbacks, events: events, log: logger, now: time.Now}
}

// Record upserts feedback for one bot reply. The unique_id is always derived
// from (userID, responseID); a client-supplied key is never trusted.
func (s *Service) Record(ctx context.Context, userID, responseID, text string) (Result, error) {
	if userID == "" || responseID == "" {
		return Result{}, fmt.Errorf("%w: user_id and response_id are required", domain.ErrInvalidInput)
	}
	uniqueID := domain.FeedbackKey(userID, responseID)
	now := s.now().UTC()

	_, err := s.feedbacks.GetByUniqueID(ctx, uniqueID)
	switch {
	case err == nil:
		if err := s.feedbacks.UpdateByUniqueID(ctx, uniqueID, text, now); err != nil {
			metrics.FeedbackUpsertsTotal.WithLabelValues("update_failed").Inc()
			return Result{}, err
		}
		metrics.FeedbackUpsertsTotal.WithLabelValues("updated").Inc()
		s.publish(ctx, userID, responseID, false, now)
		return Result{Created: false}, nil

	case errors.Is(err, domain.ErrNotFound):
		id, err := s.feedbacks.Insert(ctx, domain.Feedback{
			UniqueID:   uniqueID,
			UserID:     userID,
			ResponseID: responseID,
			Feedback:   text,
			Timestamp:  now,
		})
		if err != nil {
			if errors.Is(err, domain.ErrDuplicateFeedback) {
				metrics.FeedbackUpsertsTotal.WithLabelValues("conflict").Inc()
			} else {
				metrics.FeedbackUpsertsTotal.WithLabelValues("insert_failed").Inc()
			}
			return Result{}, err
		}
		metrics.FeedbackUpsertsTotal.WithLabelValues("created").Inc()
		s.publish(ctx, userID, responseID, true, now)
		return Result{Created: true, FeedbackID: id}, nil

	default:
		return Result{}, fmt.Errorf("lookup feedback: %w", err)
	}
}

func (s *Service) publish(ctx context.Context, userID, responseID string, created bool, now time.Time) {
	err := s.events.PublishFeedback(ctx, domain.FeedbackEvent{
		UserID:     userID,
		ResponseID: responseID,
		Created:    created,
		Timestamp:  now,
	})
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Msg("feedback: event publish failed")
	}
}
