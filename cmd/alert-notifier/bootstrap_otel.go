package main

import (
	"context"

	config "github.com/NordCoder/alert-notifier/internal/config/alert-notifier"
	"github.com/NordCoder/alert-notifier/internal/obs"
	"go.uber.org/zap"
)

// initOTel never fails startup: without an exporter spans are simply dropped.
func initOTel(ctx context.Context, cfg *config.Config, logger *zap.Logger) func(context.Context) error {
	closer, err := obs.SetupOTel(ctx, cfg.OTEL.AsOTELConfig(cfg.App))
	if err != nil {
		logger.Warn("otel init", zap.Error(err))
		return func(context.Context) error { return nil }
	}
	return closer.Shutdown
}
