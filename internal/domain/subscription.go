package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SubscriptionForm is the decoded body of a subscribe request. Both fields were
// present on the wire; either may be empty and the email format is not checked.
type SubscriptionForm struct {
	Email string
	Name  string
}

type Subscription struct {
	ID           uuid.UUID
	Email        string
	Name         string
	SubscribedAt time.Time
}

// SubscriptionRepository persists subscriptions. Insert is a single statement;
// duplicates of the same email are stored as separate rows.
type SubscriptionRepository interface {
	Insert(ctx context.Context, sub *Subscription) error
}
