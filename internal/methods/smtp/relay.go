package smtp

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"net/textproto"
	"strconv"
	"time"

	config "github.com/NordCoder/alert-notifier/internal/config/alert-notifier"
	"github.com/NordCoder/alert-notifier/internal/domain/notification"
	"go.uber.org/zap"
)

type Relay struct {
	addr    string
	host    string
	auth    smtp.Auth
	useTLS  bool
	tlsCfg  *tls.Config
	timeout time.Duration
	from    string

	log *zap.Logger
}

func NewRelay(cfg config.SMTP) *Relay {
	var auth smtp.Auth
	if cfg.User != "" || cfg.Password != "" {
		auth = smtp.PlainAuth("", cfg.User, cfg.Password, cfg.Host)
	}
	return &Relay{
		addr:    net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		host:    cfg.Host,
		auth:    auth,
		useTLS:  cfg.UseTLS,
		tlsCfg:  &tls.Config{ServerName: cfg.Host, InsecureSkipVerify: cfg.SkipVerify},
		timeout: cfg.Timeout,
		from:    cfg.Sender(),
		log:     zap.L().With(zap.String("component", "smtp.relay")),
	}
}

func (r *Relay) WithLogger(l *zap.Logger) *Relay {
	if l == nil {
		return r
	}
	cp := *r
	cp.log = l.With(zap.String("component", "smtp.relay"))
	return &cp
}

func (r *Relay) From() string { return r.from }

func (r *Relay) Deliver(ctx context.Context, to []string, msg []byte) error {
	start := time.Now()
	log := r.log.With(
		zap.String("smtp_addr", r.addr),
		zap.Bool("tls", r.useTLS),
		zap.Int("recipients", len(to)),
	)

	conn, err := r.dial(ctx)
	if err != nil {
		log.Warn("smtp dial failed", zap.Error(err))
		return notification.Classify(err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else if r.timeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(r.timeout))
	}

	c, err := smtp.NewClient(conn, r.host)
	if err != nil {
		_ = conn.Close()
		log.Warn("smtp handshake failed", zap.Error(err))
		return classify(err)
	}
	defer func() { _ = c.Close() }()

	if !r.useTLS {
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err := c.StartTLS(r.tlsCfg); err != nil {
				log.Warn("smtp STARTTLS failed", zap.Error(err))
				return classify(err)
			}
		}
	}
	if r.auth != nil {
		if ok, _ := c.Extension("AUTH"); ok {
			if err := c.Auth(r.auth); err != nil {
				log.Warn("smtp auth failed", zap.Error(err))
				return notification.AuthError(err)
			}
		}
	}
	if err := c.Mail(r.from); err != nil {
		log.Warn("smtp MAIL FROM failed", zap.Error(err))
		return classify(err)
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			log.Warn("smtp RCPT TO failed", zap.String("rcpt", rcpt), zap.Error(err))
			return classify(err)
		}
	}
	w, err := c.Data()
	if err != nil {
		log.Warn("smtp DATA failed", zap.Error(err))
		return classify(err)
	}
	if _, err := w.Write(msg); err != nil {
		log.Warn("smtp write failed", zap.Error(err))
		return classify(err)
	}
	if err := w.Close(); err != nil {
		log.Warn("smtp close failed", zap.Error(err))
		return classify(err)
	}
	_ = c.Quit()
	log.Info("email sent", zap.Duration("elapsed", time.Since(start)))
	return nil
}

func (r *Relay) dial(ctx context.Context) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: r.timeout}
	if r.useTLS {
		td := &tls.Dialer{NetDialer: dialer, Config: r.tlsCfg}
		return td.DialContext(ctx, "tcp", r.addr)
	}
	return dialer.DialContext(ctx, "tcp", r.addr)
}

// classify maps SMTP reply codes: 530/534/535 are credential problems, other 4xx are
// transient, other 5xx are permanent.
func classify(err error) error {
	var tpErr *textproto.Error
	if errors.As(err, &tpErr) {
		switch {
		case tpErr.Code == 530 || tpErr.Code == 534 || tpErr.Code == 535:
			return notification.AuthError(err)
		case tpErr.Code >= 400 && tpErr.Code < 500:
			return notification.Rejected(err, true)
		default:
			return notification.Rejected(fmt.Errorf("smtp: %w", err), false)
		}
	}
	return notification.Classify(err)
}
