package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockClient struct{ mock.Mock }

func (m *mockClient) Exists(ctx context.Context, keys ...string) *redis.IntCmd {
	args := m.Called(ctx, keys)
	cmd := redis.NewIntCmd(ctx)
	if err := args.Error(1); err != nil {
		cmd.SetErr(err)
	} else {
		cmd.SetVal(args.Get(0).(int64))
	}
	return cmd
}

func (m *mockClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	args := m.Called(ctx, key, value, expiration)
	cmd := redis.NewStatusCmd(ctx)
	if err := args.Error(0); err != nil {
		cmd.SetErr(err)
	} else {
		cmd.SetVal("OK")
	}
	return cmd
}

func (m *mockClient) Close() error { return nil }

func TestLedgerDelivered(t *testing.T) {
	c := &mockClient{}
	l := newLedger(c, time.Hour)
	ctx := context.Background()

	c.On("Exists", ctx, []string{"alert-notifier:delivered:alerts/d1:email"}).Return(int64(1), nil).Once()
	c.On("Exists", ctx, []string{"alert-notifier:delivered:alerts/d1:discord"}).Return(int64(0), nil).Once()

	done, err := l.Delivered(ctx, "alerts/d1", "email")
	require.NoError(t, err)
	assert.True(t, done)

	done, err = l.Delivered(ctx, "alerts/d1", "discord")
	require.NoError(t, err)
	assert.False(t, done)
	c.AssertExpectations(t)
}

func TestLedgerRecordUsesTTL(t *testing.T) {
	c := &mockClient{}
	l := newLedger(c, 24*time.Hour)
	ctx := context.Background()

	c.On("Set", ctx, "alert-notifier:delivered:alerts/d1:email", mock.AnythingOfType("string"), 24*time.Hour).Return(nil).Once()
	require.NoError(t, l.Record(ctx, "alerts/d1", "email"))
	c.AssertExpectations(t)
}

func TestLedgerErrors(t *testing.T) {
	c := &mockClient{}
	l := newLedger(c, time.Hour)
	ctx := context.Background()
	boom := errors.New("connection refused")

	c.On("Exists", ctx, mock.Anything).Return(int64(0), boom)
	c.On("Set", ctx, mock.Anything, mock.Anything, mock.Anything).Return(boom)

	_, err := l.Delivered(ctx, "k", "m")
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, l.Record(ctx, "k", "m"), boom)
}

func TestNewLedgerRejectsBadURL(t *testing.T) {
	_, err := NewLedger(context.Background(), "http://not-redis", time.Hour)
	assert.Error(t, err)
}
