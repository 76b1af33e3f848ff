package notification

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"
)

// ErrConfig is the root of every configuration error. Config errors are fatal at startup.
var ErrConfig = errors.New("config error")

var (
	ErrUnknownNotificator = fmt.Errorf("%w: unknown notificator", ErrConfig)
	ErrUnknownMethod      = fmt.Errorf("%w: unknown notification method", ErrConfig)
	ErrUnknownMethodType  = fmt.Errorf("%w: unknown notification method type", ErrConfig)
	ErrInvalidMethod      = fmt.Errorf("%w: invalid notification method config", ErrConfig)
)

type MethodType string

const (
	TypeEmailSMTP      MethodType = "emailSMTP"
	TypeDiscordWebhook MethodType = "discordWebhook"
	TypeDiscordBot     MethodType = "discordBot"
	TypeTelegramBot    MethodType = "telegramBot"
	TypeWebhook        MethodType = "webhook"
)

type MethodConfig struct {
	ID     string
	Type   MethodType
	Config map[string]any
}

type NotificatorConfig struct {
	ID      string
	Methods []string
}

type Reason string

const (
	ReasonAuth           Reason = "auth_error"
	ReasonUnreachable    Reason = "unreachable"
	ReasonRemoteRejected Reason = "remote_rejected"
	ReasonTimeout        Reason = "timeout"
)

type DeliveryError struct {
	Reason    Reason
	Retryable bool
	Err       error
}

func (e *DeliveryError) Error() string {
	if e.Err == nil {
		return string(e.Reason)
	}
	return string(e.Reason) + ": " + e.Err.Error()
}

func (e *DeliveryError) Unwrap() error { return e.Err }

func AuthError(err error) *DeliveryError {
	return &DeliveryError{Reason: ReasonAuth, Err: err}
}

func Unreachable(err error) *DeliveryError {
	return &DeliveryError{Reason: ReasonUnreachable, Retryable: true, Err: err}
}

func Timeout(err error) *DeliveryError {
	return &DeliveryError{Reason: ReasonTimeout, Retryable: true, Err: err}
}

func Rejected(err error, retryable bool) *DeliveryError {
	return &DeliveryError{Reason: ReasonRemoteRejected, Retryable: retryable, Err: err}
}

// Classify maps an arbitrary send error onto a DeliveryError.
func Classify(err error) *DeliveryError {
	if err == nil {
		return nil
	}
	var de *DeliveryError
	if errors.As(err, &de) {
		return de
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout(err)
	}
	if errors.Is(err, context.Canceled) {
		return &DeliveryError{Reason: ReasonTimeout, Err: err}
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return Timeout(err)
	}
	var oe *net.OpError
	if errors.As(err, &oe) {
		return Unreachable(err)
	}
	var ue *url.Error
	if errors.As(err, &ue) {
		return Unreachable(err)
	}
	return Rejected(err, false)
}

type Outcome struct {
	MethodID  string `json:"method_id"`
	Delivered bool   `json:"delivered"`
	Skipped   bool   `json:"skipped,omitempty"`
	Reason    Reason `json:"reason,omitempty"`
	Error     string `json:"error,omitempty"`
	Attempts  int    `json:"attempts"`
}

// Result has exactly one outcome per method of the notificator, in configured order.
type Result struct {
	ID            string        `json:"id"`
	NotificatorID string        `json:"notificator_id"`
	Key           string        `json:"key,omitempty"`
	Outcomes      []Outcome     `json:"outcomes"`
	Success       bool          `json:"success"`
	StartedAt     time.Time     `json:"started_at"`
	Duration      time.Duration `json:"duration"`
}

func (r *Result) Failed() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if !o.Delivered {
			out = append(out, o)
		}
	}
	return out
}

// Summary is the human readable status returned by the trigger API.
func (r *Result) Summary() string {
	failed := r.Failed()
	if len(failed) == 0 {
		return fmt.Sprintf("Notification sent successfully via %d method(s)", len(r.Outcomes))
	}
	parts := make([]string, 0, len(failed))
	for _, o := range failed {
		parts = append(parts, o.MethodID+" ("+string(o.Reason)+")")
	}
	return fmt.Sprintf("Notification failed for %d of %d method(s): %s",
		len(failed), len(r.Outcomes), strings.Join(parts, ", "))
}
