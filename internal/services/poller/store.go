package poller

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/NordCoder/alert-notifier/internal/domain/alert"
	"github.com/NordCoder/alert-notifier/internal/obs/retry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

type ConnState int32

const (
	Disconnected ConnState = iota
	Connected
)

func (s ConnState) String() string {
	if s == Connected {
		return "connected"
	}
	return "disconnected"
}

var (
	mConnects = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "store_connect_attempts_total", Help: "Store connect attempts by result.",
	}, []string{"result"})
	mConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "store_connected", Help: "1 when the document store is connected.",
	})
)

// Store wraps a backend with a Connected/Disconnected state machine.
// Any connection-level error from the backend flips it to Disconnected;
// only Ensure moves it back. Ensure and NextBackoff belong to the polling loop.
type Store struct {
	b       alert.Backend
	backoff retry.Backoff
	log     *zap.Logger

	state    atomic.Int32
	failures int
}

func NewStore(b alert.Backend, backoff retry.Backoff, log *zap.Logger) *Store {
	if log == nil {
		log = zap.L()
	}
	return &Store{b: b, backoff: backoff, log: log.With(zap.String("component", "store"))}
}

func (s *Store) State() ConnState { return ConnState(s.state.Load()) }

func (s *Store) setState(st ConnState) {
	s.state.Store(int32(st))
	if st == Connected {
		mConnected.Set(1)
	} else {
		mConnected.Set(0)
	}
}

// Ensure pings a connected store and (re)connects a disconnected one.
func (s *Store) Ensure(ctx context.Context) error {
	if s.State() == Connected {
		err := s.b.Ping(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.log.Warn("store ping failed, reconnecting", zap.Error(err))
		s.setState(Disconnected)
	}

	if err := s.b.Connect(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.failures++
		mConnects.WithLabelValues("error").Inc()
		return alert.Unavailable(fmt.Errorf("connect: %w", err))
	}
	s.failures = 0
	mConnects.WithLabelValues("ok").Inc()
	s.setState(Connected)
	return nil
}

func (s *Store) NextBackoff() time.Duration {
	if s.backoff == nil {
		return time.Second
	}
	n := s.failures - 1
	if n < 0 {
		n = 0
	}
	return s.backoff.Next(n)
}

func (s *Store) observe(err error) error {
	if errors.Is(err, alert.ErrStoreUnavailable) && s.State() == Connected {
		s.log.Warn("store connection lost", zap.Error(err))
		s.setState(Disconnected)
	}
	return err
}

func (s *Store) Fetch(ctx context.Context, source string, limit int) ([]alert.Alert, error) {
	if s.State() != Connected {
		return nil, alert.Unavailable(errors.New("store disconnected"))
	}
	docs, err := s.b.Fetch(ctx, source, limit)
	if err != nil {
		return nil, s.observe(err)
	}
	return alert.Dedup(docs), nil
}

func (s *Store) MarkProcessed(ctx context.Context, ref alert.Ref, at time.Time) error {
	if s.State() != Connected {
		return alert.Unavailable(errors.New("store disconnected"))
	}
	return s.observe(s.b.MarkProcessed(ctx, ref, at))
}

func (s *Store) Ping(ctx context.Context) error {
	if s.State() != Connected {
		return alert.Unavailable(errors.New("store disconnected"))
	}
	return s.b.Ping(ctx)
}

func (s *Store) Close() error {
	s.setState(Disconnected)
	return s.b.Close()
}
