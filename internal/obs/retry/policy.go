package retry

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

func Exponential(name string, attempts int, base, max time.Duration, retryable func(error) bool, log *zap.Logger) Policy {
	return Policy{
		Name:      name,
		Attempts:  attempts,
		Backoff:   ExpoJitter{Base: base, Max: max, Jitter: 0.2},
		Retryable: retryable,
		OnAttempt: func(i int, err error) {
			if log != nil {
				log.Warn("attempt failed", zap.String("op", name), zap.Int("attempt", i+1), zap.Error(err))
			}
		},
		OnExhaust: func(err error) {
			if log != nil && !errors.Is(err, context.Canceled) {
				log.Error("retries exhausted", zap.String("op", name), zap.Error(err))
			}
		},
	}
}
