package discord

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/NordCoder/alert-notifier/internal/domain/notification"
	"github.com/NordCoder/alert-notifier/internal/methods"
	"github.com/bwmarrin/discordgo"
)

type BotConfig struct {
	methods.Common `mapstructure:",squash"`
	ChannelID      string `mapstructure:"channel_id"`
}

// NewSession prepares a REST-only session. No gateway connection is opened.
func NewSession(token string, client *http.Client) (*discordgo.Session, error) {
	s, err := discordgo.New("Bot " + strings.TrimPrefix(token, "Bot "))
	if err != nil {
		return nil, err
	}
	if client != nil {
		s.Client = client
	}
	s.ShouldRetryOnRateLimit = false
	return s, nil
}

type Bot struct {
	id        string
	channelID string
	session   *discordgo.Session
}

func NewBot(id string, session *discordgo.Session, cfg BotConfig) (*Bot, error) {
	if _, err := strconv.ParseUint(cfg.ChannelID, 10, 64); err != nil {
		return nil, methods.Invalid(id, "channel_id %q is not a snowflake", cfg.ChannelID)
	}
	return &Bot{id: id, channelID: cfg.ChannelID, session: session}, nil
}

func (b *Bot) ID() string { return b.id }

func (b *Bot) Send(ctx context.Context, message string) error {
	content := methods.Truncate(message, messageContent, "…")
	_, err := b.session.ChannelMessageSend(b.channelID, content, discordgo.WithContext(ctx))
	if err == nil {
		return nil
	}
	var rest *discordgo.RESTError
	if errors.As(err, &rest) && rest.Response != nil {
		return methods.StatusFailure(rest.Response.StatusCode, string(rest.ResponseBody))
	}
	var limited *discordgo.RateLimitError
	if errors.As(err, &limited) {
		return notification.Rejected(err, true)
	}
	if errors.Is(err, discordgo.ErrUnauthorized) {
		return notification.AuthError(err)
	}
	return notification.Classify(err)
}
