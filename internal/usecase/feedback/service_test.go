package feedback

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"chatbot-api/internal/domain"
)

type stubFeedbackRepo struct {
	stored    map[string]domain.Feedback
	insertErr error
	updateErr error
}

func newStubFeedbackRepo() *stubFeedbackRepo {
	return &stubFeedbackRepo{stored: make(map[string]domain.Feedback)}
}

func (s *stubFeedbackRepo) GetByUniqueID(_ context.Context, uniqueID string) (domain.Feedback, error) {
	fb, ok := s.stored[uniqueID]
	if !ok {
		return domain.Feedback{}, domain.ErrNotFound
	}
	return fb, nil
}

func (s *stubFeedbackRepo) Insert(_ context.Context, fb domain.Feedback) (string, error) {
	if s.insertErr != nil {
		return "", s.insertErr
	}
	s.stored[fb.UniqueID] = fb
	return "656e6f7567682062797465732101", nil
}

func (s *stubFeedbackRepo) UpdateByUniqueID(_ context.Context, uniqueID, text string, ts time.Time) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	fb := s.stored[uniqueID]
	fb.Feedback = text
	fb.Timestamp = ts
	s.stored[uniqueID] = fb
	return nil
}

type stubPublisher struct {
	events []domain.FeedbackEvent
}

func (p *stubPublisher) PublishChat(context.Context, domain.ChatEvent) error { return nil }

func (p *stubPublisher) PublishFeedback(_ context.Context, ev domain.FeedbackEvent) error {
	p.events = append(p.events, ev)
	return nil
}

func TestRecordCreatesThenUpdates(t *testing.T) {
	repo := newStubFeedbackRepo()
	pub := &stubPublisher{}
	svc := NewService(repo, pub, zerolog.Nop())

	result, err := svc.Record(context.Background(), "u1", "r1", "good")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !result.Created || result.FeedbackID == "" {
		t.Fatalf("expected creation with id, got %+v", result)
	}
	fb, ok := repo.stored["u1_r1"]
	if !ok {
		t.Fatal("expected record under derived key u1_r1")
	}
	if fb.Feedback != "good" {
		t.Fatalf("expected feedback good, got %q", fb.Feedback)
	}

	result, err = svc.Record(context.Background(), "u1", "r1", "bad")
	if err != nil {
		t.Fatalf("expected no error on update, got %v", err)
	}
	if result.Created {
		t.Fatal("expected update, not creation")
	}
	if len(repo.stored) != 1 {
		t.Fatalf("expected single record, got %d", len(repo.stored))
	}
	if repo.stored["u1_r1"].Feedback != "bad" {
		t.Fatalf("expected feedback overwritten to bad, got %q", repo.stored["u1_r1"].Feedback)
	}
	if len(pub.events) != 2 || !pub.events[0].Created || pub.events[1].Created {
		t.Fatalf("unexpected events: %+v", pub.events)
	}
}

func TestRecordConcurrentInsertConflict(t *testing.T) {
	repo := newStubFeedbackRepo()
	repo.insertErr = domain.ErrDuplicateFeedback
	svc := NewService(repo, &stubPublisher{}, zerolog.Nop())

	_, err := svc.Record(context.Background(), "u1", "r1", "good")
	if !errors.Is(err, domain.ErrDuplicateFeedback) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
}

func TestRecordUpdateMiss(t *testing.T) {
	repo := newStubFeedbackRepo()
	repo.stored["u1_r1"] = domain.Feedback{UniqueID: "u1_r1"}
	repo.updateErr = domain.ErrFeedbackUpdateFailed
	svc := NewService(repo, &stubPublisher{}, zerolog.Nop())

	_, err := svc.Record(context.Background(), "u1", "r1", "meh")
	if !errors.Is(err, domain.ErrFeedbackUpdateFailed) {
		t.Fatalf("expected update failure, got %v", err)
	}
}

func TestRecordRejectsEmptyKeys(t *testing.T) {
	svc := NewService(newStubFeedbackRepo(), &stubPublisher{}, zerolog.Nop())

	for _, tc := range [][2]string{{"", "r1"}, {"u1", ""}} {
		if _, err := svc.Record(context.Background(), tc[0], tc[1], "x"); !errors.Is(err, domain.ErrInvalidInput) {
			t.Fatalf("expected invalid input for %v, got %v", tc, err)
		}
	}
}
