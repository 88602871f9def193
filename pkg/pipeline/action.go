package pipeline

import (
	"context"

	"github.com/pkg/errors"
)

// Action is a unit of work applied to the context value of a run.
type Action[C any] interface {
	Apply(ctx context.Context, in C, control *StepControl) Outcome[C]
}

// Func is a pure transform that cannot fail.
type Func[C any] func(in C) C

func (fn Func[C]) Apply(_ context.Context, in C, _ *StepControl) Outcome[C] {
	return Continue(fn(in))
}

// TryFunc is a transform that may fail.
type TryFunc[C any] func(ctx context.Context, in C) (C, error)

func (fn TryFunc[C]) Apply(ctx context.Context, in C, _ *StepControl) Outcome[C] {
	out, err := fn(ctx, in)
	if err != nil {
		return Fail[C](err)
	}

	return Continue(out)
}

// StepFunc is a control-aware transform. It can short-circuit the run with
// control.ShortCircuit() and record errors without failing.
type StepFunc[C any] func(ctx context.Context, in C, control *StepControl) (C, error)

func (fn StepFunc[C]) Apply(ctx context.Context, in C, control *StepControl) Outcome[C] {
	out, err := fn(ctx, in, control)
	if err != nil {
		return Fail[C](err)
	}

	return Continue(out)
}

// OutcomeFunc returns the outcome directly, it is the only shape able to jump.
type OutcomeFunc[C any] func(ctx context.Context, in C, control *StepControl) Outcome[C]

func (fn OutcomeFunc[C]) Apply(ctx context.Context, in C, control *StepControl) Outcome[C] {
	return fn(ctx, in, control)
}

// invoke applies the action and turns a panic into a failed outcome.
func invoke[C any](ctx context.Context, action Action[C], in C, control *StepControl) (out Outcome[C]) {
	defer func() {
		if r := recover(); r != nil {
			out = Fail[C](errors.Wrapf(ErrActionPanic, "%v", r))
		}
	}()

	return action.Apply(ctx, in, control)
}

var (
	_ Action[int] = Func[int](nil)
	_ Action[int] = TryFunc[int](nil)
	_ Action[int] = StepFunc[int](nil)
	_ Action[int] = OutcomeFunc[int](nil)
)
