package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pscheid92/newsletter/internal/domain"
)

const insertSubscription = `
INSERT INTO subscriptions (id, email, name, subscribed_at)
VALUES ($1, $2, $3, $4)`

// SubscriptionRepo stores subscriptions through the shared pool. It holds a
// pooled connection only for the duration of a single statement.
type SubscriptionRepo struct {
	pool *pgxpool.Pool
}

var _ domain.SubscriptionRepository = (*SubscriptionRepo)(nil)

func NewSubscriptionRepo(pool *pgxpool.Pool) *SubscriptionRepo {
	return &SubscriptionRepo{pool: pool}
}

func (r *SubscriptionRepo) Insert(ctx context.Context, sub *domain.Subscription) error {
	if _, err := r.pool.Exec(ctx, insertSubscription, sub.ID, sub.Email, sub.Name, sub.SubscribedAt); err != nil {
		return fmt.Errorf("failed to insert subscription: %w", err)
	}
	return nil
}
