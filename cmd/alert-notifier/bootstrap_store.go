package main

import (
	"fmt"

	config "github.com/NordCoder/alert-notifier/internal/config/alert-notifier"
	"github.com/NordCoder/alert-notifier/internal/domain/alert"
	"github.com/NordCoder/alert-notifier/internal/repository/elastic"
	pg "github.com/NordCoder/alert-notifier/internal/repository/postgres"
	"github.com/NordCoder/alert-notifier/internal/services/poller"
	"go.uber.org/zap"
)

func initBackend(cfg *config.Config, l *zap.Logger) (alert.Backend, error) {
	switch cfg.Store.Driver {
	case config.DriverElasticsearch:
		es := cfg.Store.Elastic
		return elastic.New(elastic.Config{
			Addresses:   es.Addresses,
			Username:    es.Username,
			Password:    es.Password,
			VerifyCerts: es.VerifyCerts,
			CACert:      es.CACert,
			Timeout:     es.Timeout,
		}).WithLogger(l), nil
	case config.DriverPostgres:
		return pg.NewAlertBackend(cfg.Store.Postgres).WithLogger(l), nil
	default:
		return nil, fmt.Errorf("%w: unknown store driver %q", config.ErrInvalid, cfg.Store.Driver)
	}
}

// initStore does not connect; the poller owns connecting and reconnecting.
func initStore(cfg *config.Config, l *zap.Logger) (*poller.Store, error) {
	b, err := initBackend(cfg, l)
	if err != nil {
		return nil, err
	}
	return poller.NewStore(b, cfg.Store.Backoff.AsExpoJitter(), l), nil
}

func targets(cfg *config.Config) []poller.Target {
	out := make([]poller.Target, 0, len(cfg.Poller.Sources))
	for _, s := range cfg.Poller.Sources {
		n := s.NotificatorID
		if n == "" {
			n = cfg.Poller.DefaultNotificator
		}
		out = append(out, poller.Target{Source: s.Name, NotificatorID: n, WithHeader: s.WithHeader})
	}
	return out
}
