package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/NordCoder/alert-notifier/internal/domain/alert"
	"github.com/NordCoder/alert-notifier/internal/domain/notification"
	"github.com/NordCoder/alert-notifier/internal/obs"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type Dispatcher interface {
	Dispatch(ctx context.Context, notificatorID, message, key string) (*notification.Result, error)
}

type Target struct {
	Source        string
	NotificatorID string
	WithHeader    bool
}

type CycleStats struct {
	Fetched    int
	Delivered  int
	Failed     int
	MarkErrors int
}

func (s *CycleStats) add(o CycleStats) {
	s.Fetched += o.Fetched
	s.Delivered += o.Delivered
	s.Failed += o.Failed
	s.MarkErrors += o.MarkErrors
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

type Usecase struct {
	Store    *Store
	Dispatch Dispatcher
	Reports  notification.Reporter
	Clock    notification.Clock
	Log      *zap.Logger

	Targets    []Target
	BatchSize  int
	Workers    int
	DocTimeout time.Duration
}

func (u *Usecase) clock() notification.Clock {
	if u.Clock == nil {
		return systemClock{}
	}
	return u.Clock
}

func (u *Usecase) log() *zap.Logger {
	if u.Log == nil {
		return zap.L()
	}
	return u.Log
}

// Cycle polls every target once. It stops early on shutdown or when the store
// becomes unavailable; the latter is returned as an error wrapping alert.ErrStoreUnavailable.
func (u *Usecase) Cycle(ctx context.Context) (CycleStats, error) {
	limit := u.BatchSize
	if limit <= 0 {
		limit = 100
	}

	tr := otel.Tracer("poller.uc")
	ctx, span := tr.Start(ctx, "poller.cycle", trace.WithAttributes(
		attribute.Int("batch.limit", limit),
		attribute.Int("targets", len(u.Targets)),
	))
	defer span.End()

	var total CycleStats
	for _, t := range u.Targets {
		if ctx.Err() != nil {
			break
		}
		st, err := u.poll(ctx, t, limit)
		total.add(st)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "store unavailable")
			return total, err
		}
	}

	span.SetAttributes(
		attribute.Int("batch.fetched", total.Fetched),
		attribute.Int("batch.delivered", total.Delivered),
		attribute.Int("batch.failed", total.Failed),
	)
	return total, nil
}

func (u *Usecase) poll(ctx context.Context, t Target, limit int) (CycleStats, error) {
	log := obs.WithTrace(ctx, u.log()).With(zap.String("source", t.Source))

	docs, err := u.Store.Fetch(ctx, t.Source, limit)
	if err != nil {
		if errors.Is(err, alert.ErrStoreUnavailable) {
			return CycleStats{}, fmt.Errorf("fetch %s: %w", t.Source, err)
		}
		if ctx.Err() == nil {
			log.Warn("fetch failed", zap.Error(err))
		}
		return CycleStats{}, nil
	}
	st := CycleStats{Fetched: len(docs)}
	if len(docs) == 0 {
		return st, nil
	}
	log.Debug("fetched", zap.Int("count", len(docs)))

	if u.Workers <= 1 {
		for i := range docs {
			if ctx.Err() != nil {
				break
			}
			o, err := u.handle(ctx, t, docs[i])
			st.add(o)
			if err != nil {
				return st, err
			}
		}
		return st, nil
	}

	var (
		mu    sync.Mutex
		g     errgroup.Group
		abort = make(chan struct{})
		once  sync.Once
	)
	g.SetLimit(u.Workers)
loop:
	for i := range docs {
		select {
		case <-ctx.Done():
			break loop
		case <-abort:
			break loop
		default:
		}
		a := docs[i]
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return nil
			case <-abort:
				return nil
			default:
			}
			o, err := u.handle(ctx, t, a)
			mu.Lock()
			st.add(o)
			mu.Unlock()
			if err != nil {
				once.Do(func() { close(abort) })
			}
			return err
		})
	}
	err = g.Wait()
	return st, err
}

// handle dispatches one alert and marks it processed on success. Once started,
// it runs to completion under its own deadline even if ctx is cancelled.
func (u *Usecase) handle(parent context.Context, t Target, a alert.Alert) (CycleStats, error) {
	ctx := context.WithoutCancel(parent)
	if u.DocTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, u.DocTimeout)
		defer cancel()
	}

	ref := a.Ref()
	ctx, span := otel.Tracer("poller.uc").Start(ctx, "poller.document", trace.WithAttributes(
		attribute.String("alert.source", ref.Source),
		attribute.String("alert.id", ref.ID),
		attribute.String("notificator.id", t.NotificatorID),
	))
	defer span.End()
	log := obs.WithTrace(ctx, u.log()).With(zap.String("source", ref.Source), zap.String("doc_id", ref.ID))

	msg := a.Message
	if t.WithHeader {
		msg = a.Header() + msg
	}

	res, err := u.Dispatch.Dispatch(ctx, t.NotificatorID, msg, ref.String())
	if err != nil {
		span.RecordError(err)
		log.Error("dispatch rejected", zap.String("notificator_id", t.NotificatorID), zap.Error(err))
		return CycleStats{Failed: 1}, nil
	}
	if u.Reports != nil {
		if rerr := u.Reports.Report(ctx, res); rerr != nil {
			log.Warn("report publish failed", zap.String("dispatch_id", res.ID), zap.Error(rerr))
		}
	}
	if !res.Success {
		span.SetStatus(codes.Error, res.Summary())
		log.Warn("dispatch failed, alert left unprocessed", zap.String("summary", res.Summary()))
		return CycleStats{Failed: 1}, nil
	}

	if err := u.Store.MarkProcessed(ctx, ref, u.clock().Now()); err != nil {
		span.RecordError(err)
		log.Warn("mark processed failed", zap.Error(err))
		if errors.Is(err, alert.ErrStoreUnavailable) {
			return CycleStats{Delivered: 1, MarkErrors: 1}, fmt.Errorf("mark %s: %w", ref, err)
		}
		return CycleStats{Delivered: 1, MarkErrors: 1}, nil
	}
	log.Info("alert delivered", zap.String("summary", res.Summary()))
	return CycleStats{Delivered: 1}, nil
}
