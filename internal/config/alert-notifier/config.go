package alert_notifier_config

import (
	"time"

	"github.com/NordCoder/alert-notifier/internal/domain/notification"
	"github.com/NordCoder/alert-notifier/internal/obs"
	"github.com/NordCoder/alert-notifier/internal/obs/retry"
	pg "github.com/NordCoder/alert-notifier/internal/repository/postgres"
)

type App struct {
	Name    string `mapstructure:"name"`
	Env     string `mapstructure:"env"`
	Version string `mapstructure:"version"`
}

type Log struct {
	Level      string `mapstructure:"level"`
	Pretty     bool   `mapstructure:"pretty"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

func (lc *Log) AsLoggerConfig(app App) obs.LogConfig {
	return obs.LogConfig{
		Level:      lc.Level,
		Pretty:     lc.Pretty,
		App:        app.Name,
		Env:        app.Env,
		Ver:        app.Version,
		File:       lc.File,
		MaxSizeMB:  lc.MaxSizeMB,
		MaxBackups: lc.MaxBackups,
		MaxAgeDays: lc.MaxAgeDays,
	}
}

type OTEL struct {
	Enable       bool    `mapstructure:"enable"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	ServiceName  string  `mapstructure:"service_name"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
}

func (oc *OTEL) AsOTELConfig(app App) *obs.OTELConfig {
	return &obs.OTELConfig{
		Enable:         oc.Enable,
		Endpoint:       oc.OTLPEndpoint,
		ServiceName:    oc.ServiceName,
		ServiceVersion: app.Version,
		Environment:    app.Env,
		SampleRatio:    oc.SampleRatio,
	}
}

type Backoff struct {
	Base   time.Duration `mapstructure:"base"`
	Max    time.Duration `mapstructure:"max"`
	Jitter float64       `mapstructure:"jitter"`
}

func (b Backoff) AsExpoJitter() retry.ExpoJitter {
	return retry.ExpoJitter{Base: b.Base, Max: b.Max, Jitter: b.Jitter}
}

type Elastic struct {
	Addresses   []string      `mapstructure:"addresses"`
	Username    string        `mapstructure:"username"`
	Password    string        `mapstructure:"password"`
	VerifyCerts bool          `mapstructure:"verify_certs"`
	CACert      string        `mapstructure:"ca_cert"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

const (
	DriverElasticsearch = "elasticsearch"
	DriverPostgres      = "postgres"
)

type Store struct {
	Driver   string    `mapstructure:"driver"`
	Elastic  Elastic   `mapstructure:"elasticsearch"`
	Postgres pg.Config `mapstructure:"postgres"`
	Backoff  Backoff   `mapstructure:"backoff"`
}

type Source struct {
	Name          string `mapstructure:"name"`
	NotificatorID string `mapstructure:"notificator_id"`
	WithHeader    bool   `mapstructure:"with_header"`
}

type Poller struct {
	Interval           time.Duration `mapstructure:"interval"`
	BatchSize          int           `mapstructure:"batch_size"`
	Workers            int           `mapstructure:"workers"`
	DocumentTimeout    time.Duration `mapstructure:"document_timeout"`
	DefaultNotificator string        `mapstructure:"default_notificator"`
	Sources            []Source      `mapstructure:"sources"`
}

type Retry struct {
	Attempts int           `mapstructure:"attempts"`
	Base     time.Duration `mapstructure:"base"`
	Max      time.Duration `mapstructure:"max"`
}

type Dispatcher struct {
	Retry         Retry         `mapstructure:"retry"`
	MethodTimeout time.Duration `mapstructure:"method_timeout"`
}

type SMTP struct {
	Host       string        `mapstructure:"host"`
	Port       int           `mapstructure:"port"`
	From       string        `mapstructure:"from"`
	User       string        `mapstructure:"user"`
	Password   string        `mapstructure:"password"`
	UseTLS     bool          `mapstructure:"use_tls"`
	SkipVerify bool          `mapstructure:"skip_verify"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type Discord struct {
	BotToken string `mapstructure:"bot_token"`
}

type Telegram struct {
	BotToken string `mapstructure:"bot_token"`
	APIURL   string `mapstructure:"api_url"`
}

type Channels struct {
	HTTPTimeout time.Duration `mapstructure:"http_timeout"`
	SMTP        SMTP          `mapstructure:"smtp"`
	Discord     Discord       `mapstructure:"discord"`
	Telegram    Telegram      `mapstructure:"telegram"`
}

type Method struct {
	ID     string         `mapstructure:"id"`
	Type   string         `mapstructure:"type"`
	Config map[string]any `mapstructure:"config"`
}

type Notificator struct {
	ID      string   `mapstructure:"id"`
	Methods []string `mapstructure:"notification_methods"`
}

type Ledger struct {
	Enable   bool          `mapstructure:"enable"`
	RedisURL string        `mapstructure:"redis_url"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type Reports struct {
	Enable  bool     `mapstructure:"enable"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type API struct {
	Enable          bool          `mapstructure:"enable"`
	Addr            string        `mapstructure:"addr"`
	TokenHash       string        `mapstructure:"token_hash"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	GracefulTimeout time.Duration `mapstructure:"graceful_timeout"`
}

type Server struct {
	MetricsAddr string `mapstructure:"metrics_addr"`
}

type Config struct {
	App          App           `mapstructure:"app"`
	Log          Log           `mapstructure:"log"`
	OTEL         OTEL          `mapstructure:"otel"`
	Server       Server        `mapstructure:"server"`
	Store        Store         `mapstructure:"store"`
	Poller       Poller        `mapstructure:"poller"`
	Dispatcher   Dispatcher    `mapstructure:"dispatcher"`
	Channels     Channels      `mapstructure:"channels"`
	Methods      []Method      `mapstructure:"notification_methods"`
	Notificators []Notificator `mapstructure:"notificators"`
	Ledger       Ledger        `mapstructure:"ledger"`
	Reports      Reports       `mapstructure:"reports"`
	API          API           `mapstructure:"api"`
}

func (c *Config) MethodConfigs() []notification.MethodConfig {
	out := make([]notification.MethodConfig, 0, len(c.Methods))
	for _, m := range c.Methods {
		out = append(out, notification.MethodConfig{
			ID:     m.ID,
			Type:   notification.MethodType(m.Type),
			Config: m.Config,
		})
	}
	return out
}

func (c *Config) NotificatorConfigs() []notification.NotificatorConfig {
	out := make([]notification.NotificatorConfig, 0, len(c.Notificators))
	for _, n := range c.Notificators {
		out = append(out, notification.NotificatorConfig{ID: n.ID, Methods: n.Methods})
	}
	return out
}
