package dispatcher

import (
	"context"
	"fmt"
	"time"

	"github.com/NordCoder/alert-notifier/internal/domain/notification"
	"github.com/NordCoder/alert-notifier/internal/obs"
	"github.com/NordCoder/alert-notifier/internal/obs/retry"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var (
	mDispatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatcher_dispatches_total", Help: "Dispatches by notificator and result.",
	}, []string{"notificator", "result"})
	mDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatcher_method_outcomes_total", Help: "Method outcomes by method and reason.",
	}, []string{"method", "outcome"})
	mDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "dispatcher_dispatch_duration_seconds", Help: "Time to run every method of a notificator.",
		Buckets: prometheus.DefBuckets,
	}, []string{"notificator"})
)

// unknownNotificator labels ids outside the registry so callers cannot grow the series set.
const unknownNotificator = "unknown"

type Config struct {
	Attempts      int
	Base          time.Duration
	Max           time.Duration
	MethodTimeout time.Duration
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// Dispatcher runs every method of a notificator and aggregates the outcomes.
// Success requires every method to deliver.
type Dispatcher struct {
	reg    *Registry
	cfg    Config
	ledger notification.Ledger
	clock  notification.Clock
	log    *zap.Logger
}

func New(reg *Registry, cfg Config, log *zap.Logger) *Dispatcher {
	if cfg.Attempts <= 0 {
		cfg.Attempts = 1
	}
	if log == nil {
		log = zap.L()
	}
	return &Dispatcher{
		reg:   reg,
		cfg:   cfg,
		clock: systemClock{},
		log:   log.With(zap.String("component", "dispatcher")),
	}
}

func (d *Dispatcher) WithLedger(l notification.Ledger) *Dispatcher {
	cp := *d
	cp.ledger = l
	return &cp
}

func (d *Dispatcher) WithClock(c notification.Clock) *Dispatcher {
	cp := *d
	cp.clock = c
	return &cp
}

type options struct {
	key string
}

type Option func(*options)

func WithKey(key string) Option {
	return func(o *options) { o.key = key }
}

// Dispatch returns an error only when the notificator cannot be resolved.
func (d *Dispatcher) Dispatch(ctx context.Context, notificatorID, message string, opts ...Option) (*notification.Result, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if !d.reg.Has(notificatorID) {
		mDispatches.WithLabelValues(unknownNotificator, "config_error").Inc()
		return nil, fmt.Errorf("%w %q", notification.ErrUnknownNotificator, notificatorID)
	}
	list, _ := d.reg.Resolve(notificatorID)

	tr := otel.Tracer("dispatcher")
	ctx, span := tr.Start(ctx, "dispatcher.dispatch", trace.WithAttributes(
		attribute.String("notificator.id", notificatorID),
		attribute.Int("notificator.methods", len(list)),
	))
	defer span.End()

	res := &notification.Result{
		ID:            uuid.NewString(),
		NotificatorID: notificatorID,
		Key:           o.key,
		Outcomes:      make([]notification.Outcome, 0, len(list)),
		StartedAt:     d.clock.Now(),
	}
	start := time.Now()

	success := true
	for _, m := range list {
		out := d.invoke(ctx, m, message, o.key)
		if !out.Delivered {
			success = false
		}
		res.Outcomes = append(res.Outcomes, out)
	}
	res.Success = success
	res.Duration = time.Since(start)

	result := "success"
	if !success {
		result = "failed"
		span.SetStatus(codes.Error, res.Summary())
	}
	mDispatches.WithLabelValues(notificatorID, result).Inc()
	mDuration.WithLabelValues(notificatorID).Observe(res.Duration.Seconds())
	span.SetAttributes(attribute.Bool("dispatch.success", success))
	return res, nil
}

func (d *Dispatcher) invoke(ctx context.Context, m notification.Method, message, key string) notification.Outcome {
	out := notification.Outcome{MethodID: m.ID()}
	log := obs.WithTrace(ctx, d.log).With(zap.String("method_id", out.MethodID))

	if key != "" && d.ledger != nil {
		done, err := d.ledger.Delivered(ctx, key, out.MethodID)
		if err != nil {
			log.Warn("ledger lookup failed", zap.String("key", key), zap.Error(err))
		} else if done {
			out.Delivered, out.Skipped = true, true
			mDeliveries.WithLabelValues(out.MethodID, "skipped").Inc()
			log.Debug("already delivered, skipping", zap.String("key", key))
			return out
		}
	}

	policy := retry.Exponential("method_"+out.MethodID, d.cfg.Attempts, d.cfg.Base, d.cfg.Max,
		func(err error) bool { return notification.Classify(err).Retryable }, log)
	err := retry.Do(ctx, func() error {
		out.Attempts++
		return d.send(ctx, m, message)
	}, policy)

	if err != nil {
		de := notification.Classify(err)
		out.Reason, out.Error = de.Reason, de.Error()
		mDeliveries.WithLabelValues(out.MethodID, string(de.Reason)).Inc()
		log.Warn("delivery failed",
			zap.String("reason", string(de.Reason)),
			zap.Int("attempts", out.Attempts),
			zap.Error(err))
		return out
	}

	out.Delivered = true
	mDeliveries.WithLabelValues(out.MethodID, "delivered").Inc()
	log.Info("delivered", zap.Int("attempts", out.Attempts))

	if key != "" && d.ledger != nil {
		if err := d.ledger.Record(ctx, key, out.MethodID); err != nil {
			log.Warn("ledger record failed", zap.String("key", key), zap.Error(err))
		}
	}
	return out
}

// send bounds a single attempt and turns a panicking method into a failed outcome.
func (d *Dispatcher) send(ctx context.Context, m notification.Method, message string) (err error) {
	if d.cfg.MethodTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.MethodTimeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			err = notification.Rejected(fmt.Errorf("method panicked: %v", r), false)
		}
	}()
	return m.Send(ctx, message)
}
