package bus

import "errors"

var (
	ErrClosed               = errors.New("subscription closed")
	ErrSubscriptionNotFound = errors.New("subscription not found")
)
