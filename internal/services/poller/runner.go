package poller

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/NordCoder/alert-notifier/internal/domain/alert"
	"github.com/NordCoder/alert-notifier/internal/obs/retry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

type State int32

const (
	Stopped State = iota
	Connecting
	Polling
	ShuttingDown
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Polling:
		return "polling"
	case ShuttingDown:
		return "shutting_down"
	default:
		return "stopped"
	}
}

var (
	mCycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "poller_cycles_total", Help: "Poll cycles by result.",
	}, []string{"result"})
	mFetched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "poller_alerts_fetched_total", Help: "Unprocessed alerts fetched from the store.",
	})
	mDelivered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "poller_alerts_delivered_total", Help: "Alerts delivered to every method.",
	})
	mFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "poller_alerts_failed_total", Help: "Alerts left unprocessed after a failed dispatch.",
	})
	mMarkErr = promauto.NewCounter(prometheus.CounterOpts{
		Name: "poller_mark_errors_total", Help: "Delivered alerts that could not be marked processed.",
	})
	mCycleDur = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "poller_cycle_duration_seconds", Help: "Poll cycle duration.",
		Buckets: prometheus.DefBuckets,
	})
	mState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "poller_state", Help: "0 stopped, 1 connecting, 2 polling, 3 shutting down.",
	})
)

type Runner struct {
	Log      *zap.Logger
	UC       *Usecase
	Interval time.Duration

	state atomic.Int32
}

func NewRunner(log *zap.Logger, uc *Usecase, interval time.Duration) *Runner {
	if log == nil {
		log = zap.L()
	}
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Runner{Log: log.With(zap.String("component", "poller")), UC: uc, Interval: interval}
}

func (r *Runner) State() State { return State(r.state.Load()) }

func (r *Runner) setState(s State) {
	if State(r.state.Swap(int32(s))) != s {
		mState.Set(float64(s))
		r.Log.Debug("state", zap.Stringer("state", s))
	}
}

// Run polls until ctx is done. A cycle already in progress finishes its current
// alert; the store is closed before Run returns.
func (r *Runner) Run(ctx context.Context) error {
	r.setState(Connecting)
	defer func() {
		r.setState(ShuttingDown)
		if err := r.UC.Store.Close(); err != nil {
			r.Log.Warn("store close", zap.Error(err))
		}
		r.setState(Stopped)
		r.Log.Info("poller stopped")
	}()

	for ctx.Err() == nil {
		start := time.Now()

		if err := r.UC.Store.Ensure(ctx); err != nil {
			if ctx.Err() != nil {
				break
			}
			r.setState(Connecting)
			mCycles.WithLabelValues("connect_error").Inc()
			wait := r.UC.Store.NextBackoff()
			r.Log.Warn("store unavailable", zap.Duration("retry_in", wait), zap.Error(err))
			if retry.Sleep(ctx, wait) != nil {
				break
			}
			continue
		}
		r.setState(Polling)

		stats, err := r.UC.Cycle(ctx)
		r.observe(stats, err, time.Since(start))
		if err != nil && errors.Is(err, alert.ErrStoreUnavailable) {
			r.setState(Connecting)
			wait := r.UC.Store.NextBackoff()
			r.Log.Warn("store lost during cycle", zap.Duration("retry_in", wait), zap.Error(err))
			if retry.Sleep(ctx, wait) != nil {
				break
			}
			continue
		}

		if retry.Sleep(ctx, r.Interval-time.Since(start)) != nil {
			break
		}
	}
	return nil
}

func (r *Runner) observe(st CycleStats, err error, took time.Duration) {
	mCycleDur.Observe(took.Seconds())
	mFetched.Add(float64(st.Fetched))
	mDelivered.Add(float64(st.Delivered))
	mFailed.Add(float64(st.Failed))
	mMarkErr.Add(float64(st.MarkErrors))

	result := "ok"
	if err != nil {
		result = "store_error"
	}
	mCycles.WithLabelValues(result).Inc()

	if st.Fetched > 0 {
		r.Log.Info("cycle done",
			zap.Int("fetched", st.Fetched),
			zap.Int("delivered", st.Delivered),
			zap.Int("failed", st.Failed),
			zap.Int("mark_errors", st.MarkErrors),
			zap.Duration("took", took),
		)
	}
}
