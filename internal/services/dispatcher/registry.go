package dispatcher

import (
	"errors"
	"fmt"
	"sort"

	"github.com/NordCoder/alert-notifier/internal/domain/notification"
)

type Builder func(notification.MethodConfig) (notification.Method, error)

// Registry maps notificator ids to their ordered methods. It is read-only after NewRegistry.
type Registry struct {
	methods      map[string]notification.Method
	notificators map[string][]notification.Method
}

// NewRegistry builds every defined method and resolves every notificator. All problems
// are reported together, each wrapping notification.ErrConfig.
func NewRegistry(methods []notification.MethodConfig, notificators []notification.NotificatorConfig, build Builder) (*Registry, error) {
	r := &Registry{
		methods:      make(map[string]notification.Method, len(methods)),
		notificators: make(map[string][]notification.Method, len(notificators)),
	}
	var problems []error

	for _, mc := range methods {
		if mc.ID == "" {
			problems = append(problems, fmt.Errorf("%w: method with empty id", notification.ErrInvalidMethod))
			continue
		}
		if _, dup := r.methods[mc.ID]; dup {
			problems = append(problems, fmt.Errorf("%w: duplicate method id %q", notification.ErrInvalidMethod, mc.ID))
			continue
		}
		m, err := build(mc)
		if err != nil {
			problems = append(problems, fmt.Errorf("method %s: %w", mc.ID, err))
			continue
		}
		r.methods[mc.ID] = m
	}

	for _, nc := range notificators {
		if _, dup := r.notificators[nc.ID]; dup || nc.ID == "" {
			problems = append(problems, fmt.Errorf("%w: duplicate or empty notificator id %q", notification.ErrConfig, nc.ID))
			continue
		}
		if len(nc.Methods) == 0 {
			problems = append(problems, fmt.Errorf("%w: notificator %s has no methods", notification.ErrConfig, nc.ID))
			continue
		}
		seen := make(map[string]struct{}, len(nc.Methods))
		list := make([]notification.Method, 0, len(nc.Methods))
		ok := true
		for _, id := range nc.Methods {
			if _, dup := seen[id]; dup {
				problems = append(problems, fmt.Errorf("%w: notificator %s lists method %s twice", notification.ErrConfig, nc.ID, id))
				ok = false
				continue
			}
			seen[id] = struct{}{}
			m, found := r.methods[id]
			if !found {
				problems = append(problems, fmt.Errorf("notificator %s: %w %q", nc.ID, notification.ErrUnknownMethod, id))
				ok = false
				continue
			}
			list = append(list, m)
		}
		if ok {
			r.notificators[nc.ID] = list
		}
	}

	if len(problems) > 0 {
		return nil, errors.Join(problems...)
	}
	return r, nil
}

func (r *Registry) Resolve(id string) ([]notification.Method, error) {
	list, ok := r.notificators[id]
	if !ok {
		return nil, fmt.Errorf("%w %q", notification.ErrUnknownNotificator, id)
	}
	return list, nil
}

func (r *Registry) Has(id string) bool {
	_, ok := r.notificators[id]
	return ok
}

func (r *Registry) Notificators() []string {
	ids := make([]string, 0, len(r.notificators))
	for id := range r.notificators {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
