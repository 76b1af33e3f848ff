package redis

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/NordCoder/alert-notifier/internal/domain/notification"
	"github.com/redis/go-redis/v9"
)

var _ notification.Ledger = (*Ledger)(nil)

type client interface {
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Close() error
}

type Ledger struct {
	rdb    client
	ttl    time.Duration
	prefix string
}

func NewLedger(ctx context.Context, redisURL string, ttl time.Duration) (*Ledger, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 2 * time.Second
	opts.WriteTimeout = 2 * time.Second
	opts.MaxRetries = 3
	opts.MinRetryBackoff = 100 * time.Millisecond
	opts.MaxRetryBackoff = time.Second
	if opts.TLSConfig == nil && strings.HasPrefix(redisURL, "rediss://") {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return newLedger(rdb, ttl), nil
}

func newLedger(c client, ttl time.Duration) *Ledger {
	return &Ledger{rdb: c, ttl: ttl, prefix: "alert-notifier:delivered:"}
}

func (l *Ledger) key(key, methodID string) string {
	return l.prefix + key + ":" + methodID
}

func (l *Ledger) Delivered(ctx context.Context, key, methodID string) (bool, error) {
	n, err := l.rdb.Exists(ctx, l.key(key, methodID)).Result()
	if err != nil {
		return false, fmt.Errorf("ledger exists: %w", err)
	}
	return n > 0, nil
}

func (l *Ledger) Record(ctx context.Context, key, methodID string) error {
	stamp := time.Now().UTC().Format(time.RFC3339)
	if err := l.rdb.Set(ctx, l.key(key, methodID), stamp, l.ttl).Err(); err != nil {
		return fmt.Errorf("ledger set: %w", err)
	}
	return nil
}

func (l *Ledger) Close() error { return l.rdb.Close() }
