package kafka

import (
	"context"
	"time"

	"github.com/NordCoder/alert-notifier/internal/domain/notification"
)

var _ notification.Reporter = (*Reports)(nil)

type publisher interface {
	PublishJSON(ctx context.Context, key []byte, v any) error
}

// Reports publishes dispatch results for audit. Messages are keyed by the dispatch key so
// all attempts for one document land on one partition.
type Reports struct {
	p publisher
}

func NewReports(p *Producer) *Reports { return &Reports{p: p} }

type reportMessage struct {
	*notification.Result
	DurationMS int64     `json:"duration_ms"`
	ReportedAt time.Time `json:"reported_at"`
}

func newReportMessage(r *notification.Result, at time.Time) reportMessage {
	return reportMessage{Result: r, DurationMS: r.Duration.Milliseconds(), ReportedAt: at.UTC()}
}

func (r *Reports) Report(ctx context.Context, res *notification.Result) error {
	key := res.Key
	if key == "" {
		key = res.ID
	}
	return r.p.PublishJSON(ctx, []byte(key), newReportMessage(res, time.Now()))
}
