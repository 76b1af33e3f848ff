package poller

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/NordCoder/alert-notifier/internal/domain/alert"
	"github.com/NordCoder/alert-notifier/internal/domain/notification"
	"github.com/NordCoder/alert-notifier/internal/services/dispatcher"
	"github.com/NordCoder/alert-notifier/internal/services/poller/repo"
)

// memBackend is an in-memory alert.Backend with switchable failures.
type memBackend struct {
	mu          sync.Mutex
	docs        map[string][]*alert.Alert
	connectErrs int
	down        bool
	connects    int
	marks       int
	closed      bool
}

func newMemBackend() *memBackend { return &memBackend{docs: map[string][]*alert.Alert{}} }

func (b *memBackend) add(source, id, ts, msg string) {
	t, _ := time.Parse(time.RFC3339, ts)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.docs[source] = append(b.docs[source], &alert.Alert{ID: id, Source: source, Timestamp: t, Message: msg})
}

func (b *memBackend) get(source, id string) alert.Alert {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, a := range b.docs[source] {
		if a.ID == id {
			return *a
		}
	}
	return alert.Alert{}
}

func (b *memBackend) setDown(v bool) {
	b.mu.Lock()
	b.down = v
	b.mu.Unlock()
}

func (b *memBackend) Connect(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connects++
	if b.connectErrs > 0 {
		b.connectErrs--
		return alert.Unavailable(errors.New("connection refused"))
	}
	b.down, b.closed = false, false
	return nil
}

func (b *memBackend) Ping(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.down {
		return alert.Unavailable(errors.New("ping timeout"))
	}
	return nil
}

func (b *memBackend) Fetch(_ context.Context, source string, limit int) ([]alert.Alert, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.down {
		return nil, alert.Unavailable(errors.New("connection reset"))
	}
	var out []alert.Alert
	for _, a := range b.docs[source] {
		if !a.Processed {
			out = append(out, *a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (b *memBackend) MarkProcessed(_ context.Context, ref alert.Ref, at time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.down {
		return alert.Unavailable(errors.New("connection reset"))
	}
	for _, a := range b.docs[ref.Source] {
		if a.ID != ref.ID {
			continue
		}
		b.marks++
		if !a.Processed {
			a.Processed, a.ProcessedAt = true, at
		}
		return nil
	}
	return alert.ErrNotFound
}

func (b *memBackend) Close() error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	return nil
}

// stubMethod records every message and fails with err when set.
type stubMethod struct {
	id string

	mu     sync.Mutex
	sent   []string
	err    error
	onSend func(message string)
}

func (m *stubMethod) ID() string { return m.id }

func (m *stubMethod) Send(_ context.Context, message string) error {
	if m.onSend != nil {
		m.onSend(message)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, message)
	return m.err
}

func (m *stubMethod) setErr(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

func (m *stubMethod) messages() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.sent...)
}

type recReporter struct {
	mu  sync.Mutex
	got []*notification.Result
}

func (r *recReporter) Report(_ context.Context, res *notification.Result) error {
	r.mu.Lock()
	r.got = append(r.got, res)
	r.mu.Unlock()
	return nil
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

var clockAt = time.Date(2026, 1, 14, 10, 31, 0, 0, time.UTC)

// newDispatch wires methods into a real dispatcher with one notificator per entry of nots.
func newDispatch(nots map[string][]string, ms ...*stubMethod) repo.Dispatcher {
	defs := make([]notification.MethodConfig, 0, len(ms))
	byID := make(map[string]notification.Method, len(ms))
	for _, m := range ms {
		defs = append(defs, notification.MethodConfig{ID: m.id, Type: notification.TypeWebhook})
		byID[m.id] = m
	}
	var ncs []notification.NotificatorConfig
	for id, list := range nots {
		ncs = append(ncs, notification.NotificatorConfig{ID: id, Methods: list})
	}
	reg, err := dispatcher.NewRegistry(defs, ncs, func(mc notification.MethodConfig) (notification.Method, error) {
		return byID[mc.ID], nil
	})
	if err != nil {
		panic(err)
	}
	d := dispatcher.New(reg, dispatcher.Config{Attempts: 2, Base: time.Millisecond, Max: time.Millisecond}, nil)
	return repo.Dispatcher{D: d}
}

func newUsecase(b *memBackend, d Dispatcher, targets ...Target) *Usecase {
	return &Usecase{
		Store:      NewStore(b, nil, nil),
		Dispatch:   d,
		Clock:      fixedClock{clockAt},
		Targets:    targets,
		BatchSize:  100,
		Workers:    1,
		DocTimeout: 5 * time.Second,
	}
}
