package alert_notifier_config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/NordCoder/alert-notifier/internal/domain/notification"
	"golang.org/x/crypto/bcrypt"
)

var ErrInvalid = fmt.Errorf("%w: invalid configuration", notification.ErrConfig)

// Validate checks everything that can be checked without touching the network.
// Method definitions themselves are validated when the registry is built.
func (c *Config) Validate() error {
	var problems []error
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Errorf(format, args...))
	}

	switch c.Store.Driver {
	case DriverElasticsearch:
		if len(c.Store.Elastic.Addresses) == 0 {
			add("store.elasticsearch.addresses is empty")
		}
	case DriverPostgres:
		if c.Store.Postgres.DSN == "" {
			add("store.postgres.dsn is empty")
		}
	default:
		add("store.driver %q is not one of %s, %s", c.Store.Driver, DriverElasticsearch, DriverPostgres)
	}
	if c.Store.Backoff.Base <= 0 {
		add("store.backoff.base must be positive")
	}

	if c.Poller.Interval <= 0 {
		add("poller.interval must be positive")
	}
	if c.Poller.BatchSize <= 0 {
		add("poller.batch_size must be positive")
	}
	if c.Poller.Workers <= 0 {
		add("poller.workers must be positive")
	}
	if c.Poller.DocumentTimeout <= 0 {
		add("poller.document_timeout must be positive")
	}
	if c.Dispatcher.Retry.Attempts <= 0 {
		add("dispatcher.retry.attempts must be positive")
	}
	// telegram sends only stop on the http timeout once the request is out.
	if mt, ht := c.Dispatcher.MethodTimeout, c.Channels.HTTPTimeout; mt > 0 && ht > mt {
		add("channels.http_timeout %s exceeds dispatcher.method_timeout %s", ht, mt)
	}

	notificators := make(map[string]struct{}, len(c.Notificators))
	for _, n := range c.Notificators {
		notificators[n.ID] = struct{}{}
	}
	if d := c.Poller.DefaultNotificator; d != "" {
		if _, ok := notificators[d]; !ok {
			add("poller.default_notificator %q is not defined", d)
		}
	}
	if len(c.Poller.Sources) == 0 {
		add("poller.sources is empty")
	}
	sources := make(map[string]struct{}, len(c.Poller.Sources))
	for i, s := range c.Poller.Sources {
		if s.Name == "" {
			add("poller.sources[%d].name is empty", i)
			continue
		}
		if _, dup := sources[s.Name]; dup {
			add("poller.sources: duplicate source %q", s.Name)
		}
		sources[s.Name] = struct{}{}
		switch {
		case s.NotificatorID == "" && c.Poller.DefaultNotificator == "":
			add("poller.sources[%s]: no notificator_id and no poller.default_notificator", s.Name)
		case s.NotificatorID != "":
			if _, ok := notificators[s.NotificatorID]; !ok {
				add("poller.sources[%s]: notificator %q is not defined", s.Name, s.NotificatorID)
			}
		}
	}

	for _, m := range c.Methods {
		switch strings.ToLower(m.Type) {
		case strings.ToLower(string(notification.TypeEmailSMTP)):
			if c.Channels.SMTP.Host == "" || c.Channels.SMTP.Port <= 0 {
				add("method %s: channels.smtp.host and port are required", m.ID)
			}
			if c.Channels.SMTP.From == "" && c.Channels.SMTP.User == "" {
				add("method %s: channels.smtp.from or user is required", m.ID)
			}
		case strings.ToLower(string(notification.TypeDiscordBot)):
			if c.Channels.Discord.BotToken == "" {
				add("method %s: channels.discord.bot_token is required", m.ID)
			}
		case strings.ToLower(string(notification.TypeTelegramBot)):
			if c.Channels.Telegram.BotToken == "" {
				add("method %s: channels.telegram.bot_token is required", m.ID)
			}
		}
	}

	if c.Ledger.Enable && c.Ledger.RedisURL == "" {
		add("ledger.redis_url is required when the ledger is enabled")
	}
	if c.Reports.Enable && (len(c.Reports.Brokers) == 0 || c.Reports.Topic == "") {
		add("reports.brokers and reports.topic are required when reports are enabled")
	}
	if c.API.Enable {
		if c.API.Addr == "" {
			add("api.addr is empty")
		}
		if c.API.TokenHash != "" {
			if _, err := bcrypt.Cost([]byte(c.API.TokenHash)); err != nil {
				add("api.token_hash is not a bcrypt hash: %v", err)
			}
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(problems...))
	}
	return nil
}

func (s SMTP) Sender() string {
	if s.From != "" {
		return s.From
	}
	return s.User
}
