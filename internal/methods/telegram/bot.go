package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"

	"github.com/NordCoder/alert-notifier/internal/domain/notification"
	"github.com/NordCoder/alert-notifier/internal/methods"
	tele "gopkg.in/telebot.v4"
)

const messageText = 4096

type Config struct {
	methods.Common `mapstructure:",squash"`
	ChatID         int64 `mapstructure:"chat_id"`
}

// NewClient builds an offline bot: it only calls the Bot API on Send.
func NewClient(token, apiURL string, client *http.Client) (*tele.Bot, error) {
	return tele.NewBot(tele.Settings{
		URL:     apiURL,
		Token:   token,
		Client:  client,
		Offline: true,
	})
}

type Bot struct {
	id   string
	chat *tele.Chat
	bot  *tele.Bot
}

func New(id string, bot *tele.Bot, cfg Config) (*Bot, error) {
	if cfg.ChatID == 0 {
		return nil, methods.Invalid(id, "chat_id is required")
	}
	return &Bot{id: id, chat: &tele.Chat{ID: cfg.ChatID}, bot: bot}, nil
}

func (b *Bot) ID() string { return b.id }

// Send honours ctx only before the request starts; the bot client's timeout bounds the call.
func (b *Bot) Send(ctx context.Context, message string) error {
	if err := ctx.Err(); err != nil {
		return notification.Classify(err)
	}
	_, err := b.bot.Send(b.chat, methods.Truncate(message, messageText, "…"))
	if err != nil {
		return classify(err)
	}
	return nil
}

var codeSuffix = regexp.MustCompile(`\((\d{3})\)\s*$`)

func classify(err error) error {
	var apiErr *tele.Error
	if errors.As(err, &apiErr) && apiErr.Code != 0 {
		return methods.StatusFailure(apiErr.Code, apiErr.Description)
	}
	if m := codeSuffix.FindStringSubmatch(err.Error()); m != nil {
		code, _ := strconv.Atoi(m[1])
		return methods.StatusFailure(code, err.Error())
	}
	de := notification.Classify(err)
	if de.Reason == notification.ReasonRemoteRejected {
		return notification.Rejected(fmt.Errorf("telegram: %w", err), false)
	}
	return de
}
