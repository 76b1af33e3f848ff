package postgres

import (
	"context"
	"errors"

	"github.com/NordCoder/alert-notifier/internal/domain/alert"
	"github.com/jackc/pgx/v5/pgconn"
)

// storeErr flags transport-level failures as unavailability. Errors reported by the
// server itself (syntax, constraints) are returned unchanged.
func storeErr(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return alert.Unavailable(err)
}
