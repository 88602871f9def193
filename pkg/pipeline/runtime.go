package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/askiada/go-pipeline-services/pkg/pipeline/model"
)

// Runtime applies actions as soon as they are added. It is meant for interactive use where
// the pipeline is discovered while it runs. Once short-circuited, new actions are still
// recorded but no longer applied.
type Runtime[C any] struct {
	onError             ErrorHandler[C]
	current             C
	control             *StepControl
	name                string
	pre                 []registeredStep[C]
	main                []registeredStep[C]
	post                []registeredStep[C]
	mu                  sync.Mutex
	shortCircuitOnError bool
	ended               bool
}

// RuntimeOption configures a Runtime pipeline.
type RuntimeOption[C any] func(r *Runtime[C])

// RuntimeShortCircuitOnError sets whether an action error ends the pipeline. Defaults to true.
func RuntimeShortCircuitOnError[C any](enabled bool) RuntimeOption[C] {
	return func(r *Runtime[C]) {
		r.shortCircuitOnError = enabled
	}
}

// RuntimeOnError sets the handler called with every action error.
func RuntimeOnError[C any](handler ErrorHandler[C]) RuntimeOption[C] {
	return func(r *Runtime[C]) {
		r.onError = handler
	}
}

// NewRuntime returns a runtime pipeline holding initial.
func NewRuntime[C any](name string, initial C, opts ...RuntimeOption[C]) *Runtime[C] {
	r := &Runtime[C]{
		name:                name,
		current:             initial,
		control:             newStepControl(name),
		shortCircuitOnError: true,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// AddPre records a pre action and applies it to the current value.
func (r *Runtime[C]) AddPre(ctx context.Context, action Action[C], opts ...StepOption) (C, error) {
	return r.add(ctx, model.PhasePre, action, opts)
}

// AddMain records a main action and applies it to the current value.
func (r *Runtime[C]) AddMain(ctx context.Context, action Action[C], opts ...StepOption) (C, error) {
	return r.add(ctx, model.PhaseMain, action, opts)
}

// AddPost records a post action and applies it to the current value.
func (r *Runtime[C]) AddPost(ctx context.Context, action Action[C], opts ...StepOption) (C, error) {
	return r.add(ctx, model.PhasePost, action, opts)
}

func (r *Runtime[C]) add(ctx context.Context, phase model.Phase, action Action[C], opts []StepOption) (C, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if action == nil {
		return r.current, ErrNilAction
	}

	steps := r.section(phase)
	cfg := newStepConfig(opts)
	step := registeredStep[C]{
		action: action,
		info:   model.StepInfo{Phase: phase, Index: len(*steps), Name: cfg.name, Label: cfg.label},
	}
	*steps = append(*steps, step)

	if r.ended {
		return r.current, nil
	}

	r.control.beginStep(step.info)

	start := time.Now()
	out := invoke(ctx, action, r.current, r.control)
	r.control.recordTiming(time.Since(start), out.Kind() != KindFail)

	switch out.Kind() {
	case KindShortCircuit:
		r.control.ShortCircuit()
		r.current = out.Value()
	case KindJump:
		err := errors.Wrapf(ErrJumpOutsidePhase, "jump to %q in runtime pipeline", out.Label())
		r.control.fail(err)

		return r.end(), err
	case KindFail:
		var stepErr StepError
		if r.shortCircuitOnError {
			stepErr = r.control.fail(out.Err())
		} else {
			stepErr = r.control.recordError(out.Err())
		}

		if r.onError != nil {
			r.current = r.onError(r.current, stepErr)
		}

		if r.shortCircuitOnError {
			return r.end(), stepErr
		}
	default:
		r.current = out.Value()
	}

	if r.control.IsShortCircuited() {
		return r.end(), nil
	}

	return r.current, nil
}

func (r *Runtime[C]) end() C {
	r.ended = true
	return r.current
}

func (r *Runtime[C]) section(phase model.Phase) *[]registeredStep[C] {
	switch phase {
	case model.PhasePre:
		return &r.pre
	case model.PhasePost:
		return &r.post
	default:
		return &r.main
	}
}

// Value returns the current value.
func (r *Runtime[C]) Value() C {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.current
}

// Ended reports whether the pipeline has been short-circuited.
func (r *Runtime[C]) Ended() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.ended
}

func (r *Runtime[C]) Errors() []StepError {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.control.Errors()
}

func (r *Runtime[C]) Timings() []StepTiming {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.control.Timings()
}

// Reset sets the current value, clears the ended flag and the recorded errors and timings.
// Recorded actions are kept.
func (r *Runtime[C]) Reset(value C) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.current = value
	r.ended = false
	r.control.reset()
}

// Freeze returns a pipeline running the recorded actions in the same order.
func (r *Runtime[C]) Freeze() (*Pipeline[C], error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	builder := NewBuilder[C](r.name).
		ShortCircuitOnError(r.shortCircuitOnError).
		OnError(r.onError)

	for _, step := range r.pre {
		builder.Pre(step.action, StepName(step.info.Name), StepLabel(step.info.Label))
	}

	for _, step := range r.main {
		builder.Main(step.action, StepName(step.info.Name), StepLabel(step.info.Label))
	}

	for _, step := range r.post {
		builder.Post(step.action, StepName(step.info.Name), StepLabel(step.info.Label))
	}

	p, err := builder.Build()
	if err != nil {
		return nil, errors.Wrap(err, "unable to freeze runtime pipeline")
	}

	return p, nil
}
