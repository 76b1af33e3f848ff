package discord

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/NordCoder/alert-notifier/internal/methods"
	"github.com/bwmarrin/discordgo"
)

const (
	DefaultTitle = "🔔 Elastic Alert Notification"

	embedColor       = 0xFF5733
	embedDescription = 4096
	messageContent   = 2000
)

type WebhookConfig struct {
	methods.Common `mapstructure:",squash"`
	WebhookURL     string `mapstructure:"webhook_url"`
	Title          string `mapstructure:"title"`
}

type Webhook struct {
	id     string
	url    string
	title  string
	client *http.Client
	now    func() time.Time
}

func NewWebhook(id string, client *http.Client, cfg WebhookConfig) (*Webhook, error) {
	u, err := url.Parse(cfg.WebhookURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, methods.Invalid(id, "webhook_url %q is not an absolute URL", cfg.WebhookURL)
	}
	title := cfg.Title
	if title == "" {
		title = DefaultTitle
	}
	return &Webhook{id: id, url: cfg.WebhookURL, title: title, client: client, now: time.Now}, nil
}

func (w *Webhook) ID() string { return w.id }

func (w *Webhook) Send(ctx context.Context, message string) error {
	return methods.PostJSON(ctx, w.client, w.url, w.payload(message))
}

func (w *Webhook) payload(message string) *discordgo.WebhookParams {
	now := w.now()
	return &discordgo.WebhookParams{
		Embeds: []*discordgo.MessageEmbed{{
			Title:       w.title,
			Description: methods.Truncate(message, embedDescription, "…"),
			Color:       embedColor,
			Timestamp:   now.Format(time.RFC3339),
			Footer: &discordgo.MessageEmbedFooter{
				Text: "Notification ID: " + w.id + " • " + now.Format("2006-01-02 15:04:05"),
			},
			Fields: []*discordgo.MessageEmbedField{
				{Name: "⚠️ Alert Status", Value: "Active", Inline: true},
				{Name: "📊 Source", Value: "Elasticsearch", Inline: true},
			},
		}},
	}
}
