package notification

import (
	"context"
	"time"
)

// Method delivers a message over one channel. Implementations must be safe for concurrent use
// and report failures as *DeliveryError.
type Method interface {
	ID() string
	Send(ctx context.Context, message string) error
}

// Ledger remembers which methods already delivered a keyed dispatch.
type Ledger interface {
	Delivered(ctx context.Context, key, methodID string) (bool, error)
	Record(ctx context.Context, key, methodID string) error
}

type Reporter interface {
	Report(ctx context.Context, r *Result) error
}

type Clock interface {
	Now() time.Time
}
