package main

import (
	config "github.com/NordCoder/alert-notifier/internal/config/alert-notifier"
	"github.com/NordCoder/alert-notifier/internal/obs"
	"go.uber.org/zap"
)

func initLogger(cfg *config.Config) (*zap.Logger, error) {
	l, err := obs.NewLogger(cfg.Log.AsLoggerConfig(cfg.App))
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(l)
	return l, nil
}
