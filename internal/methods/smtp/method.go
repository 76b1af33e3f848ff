package smtp

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/NordCoder/alert-notifier/internal/domain/notification"
	"github.com/NordCoder/alert-notifier/internal/methods"
	"github.com/emersion/go-message/mail"
)

const (
	DefaultSubjectPrefix = "[Notification]"
	subjectRunes         = 50
)

type Config struct {
	methods.Common `mapstructure:",squash"`
	ToEmails       []string `mapstructure:"to_emails"`
	SubjectPrefix  string   `mapstructure:"subject_prefix"`
}

type Method struct {
	id     string
	relay  *Relay
	to     []string
	prefix string
	now    func() time.Time
}

func New(id string, relay *Relay, cfg Config) (*Method, error) {
	if len(cfg.ToEmails) == 0 {
		return nil, methods.Invalid(id, "to_emails is empty")
	}
	for _, addr := range cfg.ToEmails {
		if _, err := mail.ParseAddress(addr); err != nil {
			return nil, methods.Invalid(id, "bad recipient %q: %v", addr, err)
		}
	}
	prefix := cfg.SubjectPrefix
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &Method{id: id, relay: relay, to: cfg.ToEmails, prefix: prefix, now: time.Now}, nil
}

func (m *Method) ID() string { return m.id }

func (m *Method) Send(ctx context.Context, message string) error {
	msg, err := buildMessage(m.relay.From(), m.to, Subject(m.prefix, message), message, m.now())
	if err != nil {
		return notification.Rejected(fmt.Errorf("compose email: %w", err), false)
	}
	return m.relay.Deliver(ctx, m.to, msg)
}

// Subject is the prefix followed by the message flattened to one line. Messages longer
// than 50 runes are cut at 50 and marked with "...".
func Subject(prefix, message string) string {
	line := strings.Join(strings.Fields(message), " ")
	if utf8.RuneCountInString(line) > subjectRunes {
		line = string([]rune(line)[:subjectRunes]) + "..."
	}
	return strings.TrimSpace(prefix + " " + line)
}

func buildMessage(from string, to []string, subject, body string, at time.Time) ([]byte, error) {
	var h mail.Header
	h.SetDate(at)
	h.SetSubject(subject)
	h.SetAddressList("From", []*mail.Address{{Address: from}})
	rcpts := make([]*mail.Address, 0, len(to))
	for _, addr := range to {
		rcpts = append(rcpts, &mail.Address{Address: addr})
	}
	h.SetAddressList("To", rcpts)
	if err := h.GenerateMessageID(); err != nil {
		return nil, err
	}
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, err
	}
	if _, err := io.WriteString(w, body); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
