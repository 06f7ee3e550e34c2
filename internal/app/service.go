package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/newsletter/internal/adapter/metrics"
	"github.com/pscheid92/newsletter/internal/domain"
)

// Service is the application layer between the HTTP handlers and the repository.
type Service struct {
	subscriptions domain.SubscriptionRepository
	clock         clockwork.Clock
	metrics       *metrics.SubscriptionMetrics
}

// NewService creates the application service. m may be nil.
func NewService(subscriptions domain.SubscriptionRepository, clock clockwork.Clock, m *metrics.SubscriptionMetrics) *Service {
	return &Service{
		subscriptions: subscriptions,
		clock:         clock,
		metrics:       m,
	}
}

// Subscribe stores one subscription for an already validated form. It is not
// idempotent: submitting the same form twice stores two rows.
func (s *Service) Subscribe(ctx context.Context, form domain.SubscriptionForm) (*domain.Subscription, error) {
	sub := &domain.Subscription{
		ID:           uuid.New(),
		Email:        form.Email,
		Name:         form.Name,
		SubscribedAt: s.clock.Now().UTC(),
	}

	if err := s.subscriptions.Insert(ctx, sub); err != nil {
		s.metrics.Record(metrics.ResultFailed)
		return nil, fmt.Errorf("%w: %w", domain.ErrSubscriptionNotStored, err)
	}

	s.metrics.Record(metrics.ResultStored)
	slog.InfoContext(ctx, "New subscriber saved", "subscriber_id", sub.ID.String())
	return sub, nil
}
