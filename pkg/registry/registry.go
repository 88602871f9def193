// Package registry maps action names to actions. Names are resolved when a pipeline is
// built, never while it runs.
package registry

import (
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/askiada/go-pipeline-services/pkg/pipeline"
)

var (
	ErrNotFound          = errors.New("unknown action")
	ErrAlreadyRegistered = errors.New("action already registered")
	ErrInvalid           = errors.New("invalid registration")
)

// Registry is a set of named actions. It is safe for concurrent use.
type Registry[C any] struct {
	mu      sync.RWMutex
	actions map[string]pipeline.Action[C]
}

func New[C any]() *Registry[C] {
	return &Registry[C]{actions: make(map[string]pipeline.Action[C])}
}

// Register adds action under name. A name can only be registered once.
func (r *Registry[C]) Register(name string, action pipeline.Action[C]) error {
	if name == "" {
		return errors.Wrap(ErrInvalid, "name must be set")
	}

	if action == nil {
		return errors.Wrapf(ErrInvalid, "action %s must be set", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.actions[name]; ok {
		return errors.Wrap(ErrAlreadyRegistered, name)
	}

	r.actions[name] = action

	return nil
}

// RegisterUnary registers a pure transform.
func (r *Registry[C]) RegisterUnary(name string, fn func(in C) C) error {
	if fn == nil {
		return errors.Wrapf(ErrInvalid, "action %s must be set", name)
	}

	return r.Register(name, pipeline.Func[C](fn))
}

// RegisterStep registers a control-aware transform.
func (r *Registry[C]) RegisterStep(name string, fn pipeline.StepFunc[C]) error {
	if fn == nil {
		return errors.Wrapf(ErrInvalid, "action %s must be set", name)
	}

	return r.Register(name, fn)
}

func (r *Registry[C]) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.actions[name]

	return ok
}

// Resolve returns the action registered under name.
func (r *Registry[C]) Resolve(name string) (pipeline.Action[C], error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	action, ok := r.actions[name]
	if !ok {
		return nil, errors.Wrap(ErrNotFound, name)
	}

	return action, nil
}

// ResolveAll resolves every name, in order.
func (r *Registry[C]) ResolveAll(names ...string) ([]pipeline.Action[C], error) {
	actions := make([]pipeline.Action[C], 0, len(names))

	for _, name := range names {
		action, err := r.Resolve(name)
		if err != nil {
			return nil, err
		}

		actions = append(actions, action)
	}

	return actions, nil
}

// Names returns the registered names in alphabetical order.
func (r *Registry[C]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.actions))
	for name := range r.actions {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}
