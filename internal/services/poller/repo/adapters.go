package repo

import (
	"context"

	"github.com/NordCoder/alert-notifier/internal/domain/notification"
	"github.com/NordCoder/alert-notifier/internal/services/dispatcher"
)

type Dispatcher struct{ D *dispatcher.Dispatcher }

type Reports struct{ R notification.Reporter }

func (a Dispatcher) Dispatch(ctx context.Context, notificatorID, message, key string) (*notification.Result, error) {
	return a.D.Dispatch(ctx, notificatorID, message, dispatcher.WithKey(key))
}

func (a Reports) Report(ctx context.Context, res *notification.Result) error {
	if a.R == nil {
		return nil
	}
	return a.R.Report(ctx, res)
}
