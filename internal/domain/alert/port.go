package alert

import (
	"context"
	"time"
)

// Backend is a concrete document store. Connection-level failures must wrap ErrStoreUnavailable.
type Backend interface {
	Connect(ctx context.Context) error
	Ping(ctx context.Context) error
	// Fetch returns up to limit unprocessed documents of source, oldest first.
	Fetch(ctx context.Context, source string, limit int) ([]Alert, error)
	// MarkProcessed is idempotent: marking an already processed document is a no-op.
	MarkProcessed(ctx context.Context, ref Ref, at time.Time) error
	Close() error
}
