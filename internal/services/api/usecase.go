package api

import (
	"context"
	"strings"

	"github.com/NordCoder/alert-notifier/internal/domain/notification"
	"github.com/NordCoder/alert-notifier/internal/services/dispatcher"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type Notifier interface {
	Notify(ctx context.Context, notificatorID, message string) (*notification.Result, error)
}

type Usecase struct {
	D *dispatcher.Dispatcher
}

func NewUC(d *dispatcher.Dispatcher) *Usecase { return &Usecase{D: d} }

// Notify dispatches without a dedup key: every trigger is a new notification.
func (u *Usecase) Notify(ctx context.Context, notificatorID, message string) (*notification.Result, error) {
	ctx, span := otel.Tracer("api.uc").Start(ctx, "api.notify", trace.WithAttributes(
		attribute.String("notificator.id", notificatorID),
		attribute.Int("message.len", len(message)),
	))
	defer span.End()

	res, err := u.D.Dispatch(ctx, strings.TrimSpace(notificatorID), message)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Bool("dispatch.success", res.Success))
	return res, nil
}
