package domain

import "errors"

var ErrSubscriptionNotStored = errors.New("subscription not stored")
