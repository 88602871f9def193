package pipeline

import (
	"context"
	"time"
)

// IgnoreErrors returns an action that leaves the value unchanged when action fails.
func IgnoreErrors[C any](action Action[C]) Action[C] {
	return OutcomeFunc[C](func(ctx context.Context, in C, control *StepControl) Outcome[C] {
		out := invoke(ctx, action, in, control)
		if out.Kind() == KindFail {
			return Continue(in)
		}

		return out
	})
}

// WithFallback returns an action that replaces a failure of action with the value returned
// by fallback.
func WithFallback[C any](action Action[C], fallback func(in C, err error) C) Action[C] {
	return OutcomeFunc[C](func(ctx context.Context, in C, control *StepControl) Outcome[C] {
		out := invoke(ctx, action, in, control)
		if out.Kind() == KindFail {
			return Continue(fallback(in, out.Err()))
		}

		return out
	})
}

// Tap returns an action that calls fn and passes the value through.
func Tap[C any](fn func(ctx context.Context, in C)) Action[C] {
	return OutcomeFunc[C](func(ctx context.Context, in C, _ *StepControl) Outcome[C] {
		fn(ctx, in)
		return Continue(in)
	})
}

// JumpIf returns an action that jumps to label after delay when pred holds.
func JumpIf[C any](label string, pred func(in C) bool, delay time.Duration) Action[C] {
	return OutcomeFunc[C](func(_ context.Context, in C, _ *StepControl) Outcome[C] {
		if pred(in) {
			return JumpAfter(in, label, delay)
		}

		return Continue(in)
	})
}

// ShortCircuitIf returns an action that short-circuits the run when pred holds.
func ShortCircuitIf[C any](pred func(in C) bool) Action[C] {
	return OutcomeFunc[C](func(_ context.Context, in C, _ *StepControl) Outcome[C] {
		if pred(in) {
			return ShortCircuit(in)
		}

		return Continue(in)
	})
}
