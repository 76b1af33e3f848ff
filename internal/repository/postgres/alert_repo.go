package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/NordCoder/alert-notifier/internal/domain/alert"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

var _ alert.Backend = (*AlertBackend)(nil)

type AlertBackend struct {
	cfg Config
	log *zap.Logger

	mu sync.RWMutex
	db *DB
}

func NewAlertBackend(cfg Config) *AlertBackend {
	return &AlertBackend{
		cfg: cfg,
		log: zap.L().With(zap.String("component", "postgres.alerts")),
	}
}

func (b *AlertBackend) WithLogger(l *zap.Logger) *AlertBackend {
	if l != nil {
		b.log = l.With(zap.String("component", "postgres.alerts"))
	}
	return b
}

const (
	qAlertsUnprocessed = `
SELECT id, source, processed, ts, message
FROM alerts
WHERE source = $1 AND processed = FALSE
ORDER BY ts ASC, id ASC
LIMIT $2;
`
	qAlertMarkProcessed = `
UPDATE alerts
SET processed = TRUE, processed_at = $3
WHERE source = $1 AND id = $2 AND processed = FALSE;
`
	qAlertExists = `
SELECT 1 FROM alerts WHERE source = $1 AND id = $2;
`
)

func (b *AlertBackend) Connect(ctx context.Context) error {
	db, err := New(ctx, b.cfg)
	if err != nil {
		return alert.Unavailable(err)
	}
	b.mu.Lock()
	old := b.db
	b.db = db
	b.mu.Unlock()
	if old != nil {
		old.Close()
	}
	b.log.Info("postgres connected")
	return nil
}

func (b *AlertBackend) handle() (*DB, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.db == nil {
		return nil, alert.Unavailable(errors.New("postgres: not connected"))
	}
	return b.db, nil
}

func (b *AlertBackend) Ping(ctx context.Context) error {
	db, err := b.handle()
	if err != nil {
		return err
	}
	return storeErr(db.Ping(ctx))
}

func (b *AlertBackend) Fetch(ctx context.Context, source string, limit int) ([]alert.Alert, error) {
	db, err := b.handle()
	if err != nil {
		return nil, err
	}
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	rows, err := db.Pool.Query(ctx, qAlertsUnprocessed, source, limit)
	if err != nil {
		return nil, storeErr(fmt.Errorf("query alerts: %w", err))
	}
	defer rows.Close()

	out := make([]alert.Alert, 0, limit)
	for rows.Next() {
		var a alert.Alert
		if err := rows.Scan(&a.ID, &a.Source, &a.Processed, &a.Timestamp, &a.Message); err != nil {
			return nil, storeErr(fmt.Errorf("scan alert: %w", err))
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(fmt.Errorf("rows: %w", err))
	}
	return out, nil
}

func (b *AlertBackend) MarkProcessed(ctx context.Context, ref alert.Ref, at time.Time) error {
	db, err := b.handle()
	if err != nil {
		return err
	}
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	tag, err := db.Pool.Exec(ctx, qAlertMarkProcessed, ref.Source, ref.ID, at.UTC())
	if err != nil {
		return storeErr(fmt.Errorf("mark processed: %w", err))
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var one int
	err = db.Pool.QueryRow(ctx, qAlertExists, ref.Source, ref.ID).Scan(&one)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return fmt.Errorf("mark processed %s: %w", ref, alert.ErrNotFound)
	case err != nil:
		return storeErr(fmt.Errorf("check alert: %w", err))
	}
	b.log.Debug("alert already processed", zap.String("source", ref.Source), zap.String("doc_id", ref.ID))
	return nil
}

func (b *AlertBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.db != nil {
		b.db.Close()
		b.db = nil
	}
	return nil
}
