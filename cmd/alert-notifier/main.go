package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	config "github.com/NordCoder/alert-notifier/internal/config/alert-notifier"
	"github.com/NordCoder/alert-notifier/internal/domain/notification"
	"github.com/NordCoder/alert-notifier/internal/obs"
	"github.com/NordCoder/alert-notifier/internal/repository/kafka"
	"github.com/NordCoder/alert-notifier/internal/services/poller"
	"github.com/NordCoder/alert-notifier/internal/services/poller/repo"
	"go.uber.org/zap"
)

func configPath() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return "config/alert-notifier.yaml"
}

func main() {
	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath())
	if err != nil {
		log.Fatal(err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	// logger
	l, err := initLogger(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = l.Sync() }()
	l.Info("starting alert-notifier",
		zap.String("env", cfg.App.Env),
		zap.String("ver", cfg.App.Version),
		zap.String("store", cfg.Store.Driver),
		zap.Duration("interval", cfg.Poller.Interval),
	)

	// otel
	otelShutdown := initOTel(rootCtx, cfg, l)
	defer func() { _ = otelShutdown(context.Background()) }()

	// dispatch
	disp, err := initDispatcher(cfg, l)
	if err != nil {
		l.Fatal("notificators", zap.Error(err))
	}
	if led := initLedger(rootCtx, cfg, l); led != nil {
		defer func() { _ = led.Close() }()
		disp = disp.WithLedger(led)
	}
	var reports notification.Reporter
	if p := initReports(rootCtx, cfg, l); p != nil {
		defer func() { _ = p.Close() }()
		reports = repo.Reports{R: kafka.NewReports(p)}
	}

	// store
	store, err := initStore(cfg, l)
	if err != nil {
		l.Fatal("store", zap.Error(err))
	}

	uc := &poller.Usecase{
		Store:      store,
		Dispatch:   repo.Dispatcher{D: disp},
		Reports:    reports,
		Log:        l,
		Targets:    targets(cfg),
		BatchSize:  cfg.Poller.BatchSize,
		Workers:    cfg.Poller.Workers,
		DocTimeout: cfg.Poller.DocumentTimeout,
	}
	runner := poller.NewRunner(l, uc, cfg.Poller.Interval)

	// metrics
	ms := obs.BootstrapMetricsServer(cfg.Server.MetricsAddr, obs.Probes{
		Health: store.Ping,
		Ready: func() error {
			if s := runner.State(); s != poller.Polling {
				return errors.New("poller " + s.String())
			}
			return nil
		},
	}, l)

	// start
	errCh := make(chan error, 2)
	pollDone := make(chan struct{})
	go func() {
		defer close(pollDone)
		errCh <- runner.Run(rootCtx)
	}()

	var apiSrv *http.Server
	if cfg.API.Enable {
		apiSrv = buildAPIServer(cfg, disp, l)
		go func() { errCh <- serveHTTP(apiSrv, l) }()
	}

	// main loop
	select {
	case <-rootCtx.Done():
		l.Info("shutdown signal")
	case runErr := <-errCh:
		if runErr != nil {
			l.Error("component stopped", zap.Error(runErr))
		}
		stop()
	}

	shCtx, cancel := context.WithTimeout(context.Background(), cfg.API.GracefulTimeout+cfg.Poller.DocumentTimeout)
	defer cancel()
	if apiSrv != nil {
		if err := apiSrv.Shutdown(shCtx); err != nil {
			l.Warn("api shutdown", zap.Error(err))
		}
	}
	select {
	case <-pollDone:
	case <-shCtx.Done():
		l.Warn("poller did not stop in time")
	}
	_ = ms.Shutdown(shCtx)
	l.Info("bye")
}

