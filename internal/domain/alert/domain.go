package alert

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrStoreUnavailable = errors.New("alert store unavailable")
	ErrNotFound         = errors.New("alert not found")
)

type Alert struct {
	ID          string    `json:"id"`
	Source      string    `json:"source"`
	Processed   bool      `json:"processed"`
	Timestamp   time.Time `json:"timestamp"`
	Message     string    `json:"message"`
	ProcessedAt time.Time `json:"processed_at,omitempty"`
}

type Ref struct {
	Source string
	ID     string
}

func (r Ref) String() string { return r.Source + "/" + r.ID }

func (a *Alert) Ref() Ref { return Ref{Source: a.Source, ID: a.ID} }

// Header renders the prefix prepended to messages of sources configured with a header.
func (a *Alert) Header() string {
	return fmt.Sprintf("**Alert from index: %s**\n**Time:** %s\n\n", a.Source, a.Timestamp.UTC().Format(time.RFC3339))
}

func Unavailable(err error) error {
	if err == nil || errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}

// Dedup drops repeated ids, keeping the first occurrence and the input order.
func Dedup(in []Alert) []Alert {
	if len(in) < 2 {
		return in
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]Alert, 0, len(in))
	for _, a := range in {
		if _, ok := seen[a.ID]; ok {
			continue
		}
		seen[a.ID] = struct{}{}
		out = append(out, a)
	}
	return out
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// ParseTimestamp accepts ISO-8601 strings with or without a zone. Zoneless values are UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("parse timestamp %q: unsupported format", s)
}
