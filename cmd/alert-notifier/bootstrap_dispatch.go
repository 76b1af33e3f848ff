package main

import (
	"context"

	config "github.com/NordCoder/alert-notifier/internal/config/alert-notifier"
	"github.com/NordCoder/alert-notifier/internal/repository/kafka"
	"github.com/NordCoder/alert-notifier/internal/repository/redis"
	"github.com/NordCoder/alert-notifier/internal/services/dispatcher"
	"go.uber.org/zap"
)

func initDispatcher(cfg *config.Config, l *zap.Logger) (*dispatcher.Dispatcher, error) {
	reg, err := dispatcher.NewRegistry(cfg.MethodConfigs(), cfg.NotificatorConfigs(),
		dispatcher.NewBuilder(dispatcher.NewDeps(cfg.Channels, l)))
	if err != nil {
		return nil, err
	}
	l.Info("notificators loaded", zap.Strings("notificators", reg.Notificators()))

	r := cfg.Dispatcher.Retry
	return dispatcher.New(reg, dispatcher.Config{
		Attempts:      r.Attempts,
		Base:          r.Base,
		Max:           r.Max,
		MethodTimeout: cfg.Dispatcher.MethodTimeout,
	}, l), nil
}

// initLedger returns nil when disabled or unreachable; dispatches then go without dedup.
func initLedger(ctx context.Context, cfg *config.Config, l *zap.Logger) *redis.Ledger {
	if !cfg.Ledger.Enable {
		return nil
	}
	led, err := redis.NewLedger(ctx, cfg.Ledger.RedisURL, cfg.Ledger.TTL)
	if err != nil {
		l.Warn("delivery ledger disabled", zap.Error(err))
		return nil
	}
	l.Info("delivery ledger enabled", zap.Duration("ttl", cfg.Ledger.TTL))
	return led
}

func initReports(ctx context.Context, cfg *config.Config, l *zap.Logger) *kafka.Producer {
	if !cfg.Reports.Enable {
		return nil
	}
	p := kafka.BootstrapProducer(ctx, cfg.Reports.Brokers, cfg.Reports.Topic, l)
	l.Info("dispatch reports enabled",
		zap.Strings("brokers", cfg.Reports.Brokers),
		zap.String("topic", cfg.Reports.Topic),
	)
	return p
}
