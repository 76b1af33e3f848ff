package dispatcher

import (
	"context"
	"sync"

	"github.com/NordCoder/alert-notifier/internal/domain/notification"
	"github.com/stretchr/testify/mock"
)

type mockMethod struct {
	mock.Mock
	id string
}

func newMockMethod(id string) *mockMethod { return &mockMethod{id: id} }

func (m *mockMethod) ID() string { return m.id }

func (m *mockMethod) Send(ctx context.Context, message string) error {
	return m.Called(ctx, message).Error(0)
}

// memLedger is an in-memory notification.Ledger.
type memLedger struct {
	mu   sync.Mutex
	done map[string]bool
	err  error
}

func newMemLedger() *memLedger { return &memLedger{done: map[string]bool{}} }

func (l *memLedger) Delivered(_ context.Context, key, methodID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return false, l.err
	}
	return l.done[key+"|"+methodID], nil
}

func (l *memLedger) Record(_ context.Context, key, methodID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	l.done[key+"|"+methodID] = true
	return nil
}

// staticBuilder hands out pre-built methods by id.
func staticBuilder(ms ...notification.Method) Builder {
	byID := make(map[string]notification.Method, len(ms))
	for _, m := range ms {
		byID[m.ID()] = m
	}
	return func(mc notification.MethodConfig) (notification.Method, error) {
		m, ok := byID[mc.ID]
		if !ok {
			return nil, notification.ErrUnknownMethodType
		}
		return m, nil
	}
}

func defs(ids ...string) []notification.MethodConfig {
	out := make([]notification.MethodConfig, 0, len(ids))
	for _, id := range ids {
		out = append(out, notification.MethodConfig{ID: id, Type: notification.TypeWebhook})
	}
	return out
}
