package dispatcher

import (
	"fmt"
	"net/http"
	"strings"
	"sync"

	config "github.com/NordCoder/alert-notifier/internal/config/alert-notifier"
	"github.com/NordCoder/alert-notifier/internal/domain/notification"
	"github.com/NordCoder/alert-notifier/internal/methods"
	"github.com/NordCoder/alert-notifier/internal/methods/discord"
	"github.com/NordCoder/alert-notifier/internal/methods/smtp"
	"github.com/NordCoder/alert-notifier/internal/methods/telegram"
	"github.com/NordCoder/alert-notifier/internal/methods/webhook"
	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
	tele "gopkg.in/telebot.v4"
)

// Deps are the channel clients shared between methods of the same type. Clients are
// created on first use so unused channels need no credentials.
type Deps struct {
	Channels config.Channels
	Log      *zap.Logger

	httpOnce sync.Once
	http     *http.Client

	smtpOnce sync.Once
	smtp     *smtp.Relay

	discordOnce sync.Once
	discord     *discordgo.Session
	discordErr  error

	telegramOnce sync.Once
	telegram     *tele.Bot
	telegramErr  error
}

func NewDeps(ch config.Channels, log *zap.Logger) *Deps {
	return &Deps{Channels: ch, Log: log}
}

func (d *Deps) httpClient() *http.Client {
	d.httpOnce.Do(func() {
		d.http = methods.NewHTTPClient(d.Channels.HTTPTimeout)
	})
	return d.http
}

func (d *Deps) smtpRelay() *smtp.Relay {
	d.smtpOnce.Do(func() {
		d.smtp = smtp.NewRelay(d.Channels.SMTP).WithLogger(d.Log)
	})
	return d.smtp
}

func (d *Deps) discordSession() (*discordgo.Session, error) {
	d.discordOnce.Do(func() {
		d.discord, d.discordErr = discord.NewSession(d.Channels.Discord.BotToken, d.httpClient())
	})
	return d.discord, d.discordErr
}

func (d *Deps) telegramBot() (*tele.Bot, error) {
	d.telegramOnce.Do(func() {
		d.telegram, d.telegramErr = telegram.NewClient(d.Channels.Telegram.BotToken, d.Channels.Telegram.APIURL, d.httpClient())
	})
	return d.telegram, d.telegramErr
}

type factory func(id string, raw map[string]any, d *Deps) (notification.Method, methods.Common, error)

var factories = map[notification.MethodType]factory{
	notification.TypeEmailSMTP: func(id string, raw map[string]any, d *Deps) (notification.Method, methods.Common, error) {
		var cfg smtp.Config
		if err := methods.Decode(raw, &cfg); err != nil {
			return nil, methods.Common{}, err
		}
		m, err := smtp.New(id, d.smtpRelay(), cfg)
		return m, cfg.Common, err
	},
	notification.TypeDiscordWebhook: func(id string, raw map[string]any, d *Deps) (notification.Method, methods.Common, error) {
		var cfg discord.WebhookConfig
		if err := methods.Decode(raw, &cfg); err != nil {
			return nil, methods.Common{}, err
		}
		m, err := discord.NewWebhook(id, d.httpClient(), cfg)
		return m, cfg.Common, err
	},
	notification.TypeDiscordBot: func(id string, raw map[string]any, d *Deps) (notification.Method, methods.Common, error) {
		var cfg discord.BotConfig
		if err := methods.Decode(raw, &cfg); err != nil {
			return nil, methods.Common{}, err
		}
		s, err := d.discordSession()
		if err != nil {
			return nil, cfg.Common, fmt.Errorf("%w: discord session: %w", notification.ErrInvalidMethod, err)
		}
		m, err := discord.NewBot(id, s, cfg)
		return m, cfg.Common, err
	},
	notification.TypeTelegramBot: func(id string, raw map[string]any, d *Deps) (notification.Method, methods.Common, error) {
		var cfg telegram.Config
		if err := methods.Decode(raw, &cfg); err != nil {
			return nil, methods.Common{}, err
		}
		b, err := d.telegramBot()
		if err != nil {
			return nil, cfg.Common, fmt.Errorf("%w: telegram client: %w", notification.ErrInvalidMethod, err)
		}
		m, err := telegram.New(id, b, cfg)
		return m, cfg.Common, err
	},
	notification.TypeWebhook: func(id string, raw map[string]any, d *Deps) (notification.Method, methods.Common, error) {
		var cfg webhook.Config
		if err := methods.Decode(raw, &cfg); err != nil {
			return nil, methods.Common{}, err
		}
		m, err := webhook.New(id, d.httpClient(), cfg)
		return m, cfg.Common, err
	},
}

func lookup(t notification.MethodType) (factory, bool) {
	if f, ok := factories[t]; ok {
		return f, true
	}
	for known, f := range factories {
		if strings.EqualFold(string(known), string(t)) {
			return f, true
		}
	}
	return nil, false
}

func NewBuilder(d *Deps) Builder {
	return func(mc notification.MethodConfig) (notification.Method, error) {
		f, ok := lookup(mc.Type)
		if !ok {
			return nil, fmt.Errorf("%w %q", notification.ErrUnknownMethodType, mc.Type)
		}
		raw := mc.Config
		if raw == nil {
			raw = map[string]any{}
		}
		m, common, err := f(mc.ID, raw, d)
		if err != nil {
			return nil, err
		}
		return methods.Limit(m, common), nil
	}
}
