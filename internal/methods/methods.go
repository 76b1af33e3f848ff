// Package methods holds what the channel implementations share: config decoding,
// HTTP status classification, truncation and rate limiting.
package methods

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/NordCoder/alert-notifier/internal/domain/notification"
	"github.com/go-viper/mapstructure/v2"
	"golang.org/x/time/rate"
)

type Common struct {
	RatePerSec float64 `mapstructure:"rate_per_sec"`
	Burst      int     `mapstructure:"burst"`
}

func Decode(raw map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		TagName:          "mapstructure",
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(raw); err != nil {
		return fmt.Errorf("%w: %w", notification.ErrInvalidMethod, err)
	}
	return nil
}

func Invalid(id, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", notification.ErrInvalidMethod, id, fmt.Sprintf(format, args...))
}

// Truncate shortens s to at most limit runes, ending with ellipsis when cut.
func Truncate(s string, limit int, ellipsis string) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	keep := limit - utf8.RuneCountInString(ellipsis)
	if keep < 0 {
		keep = 0
	}
	runes := []rune(s)
	return string(runes[:keep]) + ellipsis
}

type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("http status %d", e.Code)
	}
	return fmt.Sprintf("http status %d: %s", e.Code, e.Body)
}

// StatusFailure classifies an HTTP status code. 2xx yields nil.
func StatusFailure(code int, body string) error {
	if code >= 200 && code < 300 {
		return nil
	}
	err := &StatusError{Code: code, Body: strings.TrimSpace(body)}
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return notification.AuthError(err)
	case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
		return notification.Timeout(err)
	case code == http.StatusTooManyRequests || code >= 500:
		return notification.Rejected(err, true)
	default:
		return notification.Rejected(err, false)
	}
}

func PostJSON(ctx context.Context, client *http.Client, url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return notification.Rejected(fmt.Errorf("marshal payload: %w", err), false)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return notification.Rejected(fmt.Errorf("build request: %w", err), false)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return notification.Classify(err)
	}
	defer resp.Body.Close()

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	_, _ = io.Copy(io.Discard, resp.Body)
	return StatusFailure(resp.StatusCode, string(snippet))
}

type limited struct {
	notification.Method
	lim *rate.Limiter
}

// Limit wraps m with a token bucket. A non-positive rate returns m unchanged.
func Limit(m notification.Method, c Common) notification.Method {
	if c.RatePerSec <= 0 {
		return m
	}
	burst := c.Burst
	if burst <= 0 {
		burst = 1
	}
	return &limited{Method: m, lim: rate.NewLimiter(rate.Limit(c.RatePerSec), burst)}
}

func (l *limited) Send(ctx context.Context, message string) error {
	if err := l.lim.Wait(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return notification.Classify(err)
		}
		return notification.Timeout(fmt.Errorf("rate limit: %w", err))
	}
	return l.Method.Send(ctx, message)
}
