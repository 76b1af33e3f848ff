package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/NordCoder/alert-notifier/internal/domain/notification"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var fastRetry = Config{Attempts: 3, Base: time.Millisecond, Max: 5 * time.Millisecond}

func newTestDispatcher(t *testing.T, cfg Config, ms ...notification.Method) *Dispatcher {
	t.Helper()
	ids := make([]string, 0, len(ms))
	for _, m := range ms {
		ids = append(ids, m.ID())
	}
	reg, err := NewRegistry(defs(ids...), []notification.NotificatorConfig{
		{ID: "multi_channel", Methods: ids},
	}, staticBuilder(ms...))
	require.NoError(t, err)
	return New(reg, cfg, zap.NewNop())
}

func TestDispatchAllDelivered(t *testing.T) {
	email, discord := newMockMethod("email"), newMockMethod("discord")
	email.On("Send", mock.Anything, "disk full").Return(nil).Once()
	discord.On("Send", mock.Anything, "disk full").Return(nil).Once()

	res, err := newTestDispatcher(t, fastRetry, email, discord).Dispatch(context.Background(), "multi_channel", "disk full")
	require.NoError(t, err)
	assert.True(t, res.Success)
	require.Len(t, res.Outcomes, 2)
	assert.Equal(t, "email", res.Outcomes[0].MethodID)
	assert.Equal(t, "discord", res.Outcomes[1].MethodID)
	assert.Equal(t, 1, res.Outcomes[0].Attempts)
	assert.NotEmpty(t, res.ID)
	email.AssertExpectations(t)
	discord.AssertExpectations(t)
}

func TestDispatchPartialFailureIsFailure(t *testing.T) {
	email, discord := newMockMethod("email"), newMockMethod("discord")
	email.On("Send", mock.Anything, "m").Return(nil).Once()
	discord.On("Send", mock.Anything, "m").Return(notification.Unreachable(errors.New("dial tcp: refused")))

	res, err := newTestDispatcher(t, fastRetry, email, discord).Dispatch(context.Background(), "multi_channel", "m")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.True(t, res.Outcomes[0].Delivered)
	assert.False(t, res.Outcomes[1].Delivered)
	assert.Equal(t, notification.ReasonUnreachable, res.Outcomes[1].Reason)
	assert.Equal(t, 3, res.Outcomes[1].Attempts)
	discord.AssertNumberOfCalls(t, "Send", 3)
}

func TestDispatchRetriesTransientFailures(t *testing.T) {
	m := newMockMethod("webhook")
	m.On("Send", mock.Anything, "m").Return(notification.Rejected(errors.New("429"), true)).Twice()
	m.On("Send", mock.Anything, "m").Return(nil).Once()

	res, err := newTestDispatcher(t, fastRetry, m).Dispatch(context.Background(), "multi_channel", "m")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 3, res.Outcomes[0].Attempts)
}

func TestDispatchDoesNotRetryAuthErrors(t *testing.T) {
	m := newMockMethod("email")
	m.On("Send", mock.Anything, "m").Return(notification.AuthError(errors.New("535")))

	res, err := newTestDispatcher(t, fastRetry, m).Dispatch(context.Background(), "multi_channel", "m")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, notification.ReasonAuth, res.Outcomes[0].Reason)
	assert.Equal(t, 1, res.Outcomes[0].Attempts)
	assert.Contains(t, res.Summary(), "email (auth_error)")
}

func TestDispatchUnknownNotificator(t *testing.T) {
	m := newMockMethod("email")
	_, err := newTestDispatcher(t, fastRetry, m).Dispatch(context.Background(), "ghost", "m")
	assert.ErrorIs(t, err, notification.ErrUnknownNotificator)
	m.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestDispatchUnknownNotificatorKeepsSeriesBounded(t *testing.T) {
	d := newTestDispatcher(t, fastRetry, newMockMethod("email"))
	_, _ = d.Dispatch(context.Background(), "warmup", "m")
	before := testutil.CollectAndCount(mDispatches)

	for i := 0; i < 200; i++ {
		_, err := d.Dispatch(context.Background(), fmt.Sprintf("caller-%d", i), "m")
		require.ErrorIs(t, err, notification.ErrUnknownNotificator)
	}
	assert.Equal(t, before, testutil.CollectAndCount(mDispatches))
	assert.Equal(t, 0.0, testutil.ToFloat64(mDispatches.WithLabelValues("caller-7", "config_error")))
}

type fixedClock time.Time

func (c fixedClock) Now() time.Time { return time.Time(c) }

func TestDispatchStampsResultWithClock(t *testing.T) {
	m := newMockMethod("email")
	m.On("Send", mock.Anything, "m").Return(nil).Once()
	at := time.Date(2026, 1, 14, 10, 31, 0, 0, time.UTC)

	res, err := newTestDispatcher(t, fastRetry, m).WithClock(fixedClock(at)).Dispatch(context.Background(), "multi_channel", "m")
	require.NoError(t, err)
	assert.Equal(t, at, res.StartedAt)
}

func TestDispatchLedgerSkipsDeliveredMethods(t *testing.T) {
	email, discord := newMockMethod("email"), newMockMethod("discord")
	discord.On("Send", mock.Anything, "m").Return(nil).Once()

	ledger := newMemLedger()
	require.NoError(t, ledger.Record(context.Background(), "alerts/d1", "email"))

	d := newTestDispatcher(t, fastRetry, email, discord).WithLedger(ledger)
	res, err := d.Dispatch(context.Background(), "multi_channel", "m", WithKey("alerts/d1"))
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.True(t, res.Outcomes[0].Skipped)
	assert.False(t, res.Outcomes[1].Skipped)
	assert.Equal(t, "alerts/d1", res.Key)
	email.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)

	done, err := ledger.Delivered(context.Background(), "alerts/d1", "discord")
	require.NoError(t, err)
	assert.True(t, done)
}

func TestDispatchLedgerFailureFailsOpen(t *testing.T) {
	m := newMockMethod("email")
	m.On("Send", mock.Anything, "m").Return(nil).Once()

	ledger := newMemLedger()
	ledger.err = errors.New("redis down")

	res, err := newTestDispatcher(t, fastRetry, m).WithLedger(ledger).Dispatch(context.Background(), "multi_channel", "m", WithKey("k"))
	require.NoError(t, err)
	assert.True(t, res.Success)
	m.AssertExpectations(t)
}

type panickyMethod struct{}

func (panickyMethod) ID() string { return "panicky" }
func (panickyMethod) Send(context.Context, string) error { panic("nil map") }

func TestDispatchRecoversFromPanickingMethod(t *testing.T) {
	res, err := newTestDispatcher(t, fastRetry, panickyMethod{}).Dispatch(context.Background(), "multi_channel", "m")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, notification.ReasonRemoteRejected, res.Outcomes[0].Reason)
	assert.Contains(t, res.Outcomes[0].Error, "method panicked")
}

type slowMethod struct{}

func (slowMethod) ID() string { return "slow" }
func (slowMethod) Send(ctx context.Context, _ string) error {
	<-ctx.Done()
	return notification.Classify(ctx.Err())
}

func TestDispatchMethodTimeout(t *testing.T) {
	cfg := Config{Attempts: 1, MethodTimeout: 20 * time.Millisecond}
	res, err := newTestDispatcher(t, cfg, slowMethod{}).Dispatch(context.Background(), "multi_channel", "m")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, notification.ReasonTimeout, res.Outcomes[0].Reason)
}
