package main

import (
	"errors"
	"net/http"

	config "github.com/NordCoder/alert-notifier/internal/config/alert-notifier"
	"github.com/NordCoder/alert-notifier/internal/services/api"
	"github.com/NordCoder/alert-notifier/internal/services/dispatcher"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func buildAPIServer(cfg *config.Config, d *dispatcher.Dispatcher, l *zap.Logger) *http.Server {
	if cfg.App.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	ctrl := api.NewController(api.NewUC(d), l)
	return api.NewServer(api.Config{
		Addr:         cfg.API.Addr,
		TokenHash:    cfg.API.TokenHash,
		ReadTimeout:  cfg.API.ReadTimeout,
		WriteTimeout: cfg.API.WriteTimeout,
	}, ctrl, l)
}

func serveHTTP(srv *http.Server, l *zap.Logger) error {
	l.Info("api listening", zap.String("addr", srv.Addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
