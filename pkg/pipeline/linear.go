package pipeline

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/askiada/go-pipeline-services/pkg/pipeline/model"
)

// LinearOption configures a Linear pipeline.
type LinearOption[C any] func(l *Linear[C])

// LinearShortCircuitOnError sets whether an action error stops the run. Defaults to true.
func LinearShortCircuitOnError[C any](enabled bool) LinearOption[C] {
	return func(l *Linear[C]) {
		l.shortCircuitOnError = enabled
	}
}

// OnErrorReturn sets the value returned instead of the error that stopped the run.
func OnErrorReturn[C any](fallback func(err error) C) LinearOption[C] {
	return func(l *Linear[C]) {
		l.onErrorReturn = fallback
	}
}

// LinearInstrumentation sets the instrumentation notified of every run.
func LinearInstrumentation[C any](instr model.Instrumentation) LinearOption[C] {
	return func(l *Linear[C]) {
		if instr != nil {
			l.instr = instr
		}
	}
}

// Linear is a single ordered list of actions, without phases, labels or jumps.
// Then is not safe to call while the pipeline runs.
type Linear[C any] struct {
	instr               model.Instrumentation
	onErrorReturn       func(err error) C
	name                string
	steps               []registeredStep[C]
	shortCircuitOnError bool
}

// NewLinear returns an empty linear pipeline.
func NewLinear[C any](name string, opts ...LinearOption[C]) *Linear[C] {
	l := &Linear[C]{
		name:                name,
		instr:               model.NoopInstrumentation{},
		shortCircuitOnError: true,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Then appends an action. A nil action is ignored.
func (l *Linear[C]) Then(action Action[C], opts ...StepOption) *Linear[C] {
	if action == nil {
		return l
	}

	cfg := newStepConfig(opts)
	l.steps = append(l.steps, registeredStep[C]{
		action: action,
		info:   model.StepInfo{Phase: model.PhaseMain, Index: len(l.steps), Name: cfg.name},
	})

	return l
}

func (l *Linear[C]) Len() int {
	return len(l.steps)
}

// Execute runs every action in order and returns everything the run produced.
func (l *Linear[C]) Execute(ctx context.Context, in C) Result[C] {
	control := newStepControl(l.name)
	control.recorder = l.instr.BeginRun(ctx, model.RunInfo{Pipeline: l.name, RunID: control.runID, StartedAt: control.runStart})

	cur := in

loop:
	for i := range l.steps {
		step := &l.steps[i]
		control.beginStep(step.info)

		start := time.Now()
		out := invoke(ctx, step.action, cur, control)
		control.recordTiming(time.Since(start), out.Kind() != KindFail)

		switch out.Kind() {
		case KindShortCircuit:
			control.ShortCircuit()
			cur = out.Value()

			break loop
		case KindJump:
			control.fail(errors.Wrapf(ErrJumpOutsidePhase, "jump to %q in linear pipeline", out.Label()))
			break loop
		case KindFail:
			if l.shortCircuitOnError {
				control.fail(out.Err())
				break loop
			}

			control.recordError(out.Err())
		default:
			cur = out.Value()
			if control.IsShortCircuited() {
				break loop
			}
		}
	}

	elapsed := time.Since(control.runStart)
	control.recorder.EndRun(model.RunSummary{
		Pipeline:       l.name,
		RunID:          control.runID,
		ShortCircuited: control.shortCircuited,
		Errors:         len(control.errs),
		Elapsed:        elapsed,
		Err:            control.fatal,
	})

	return newResult(control, cur, elapsed)
}

// Run runs every action in order. When an error stops the run, Run returns the value of the
// OnErrorReturn fallback if one is set, the error otherwise.
func (l *Linear[C]) Run(ctx context.Context, in C) (C, error) {
	res := l.Execute(ctx, in)

	err := res.Err()
	if err != nil && l.onErrorReturn != nil {
		return l.onErrorReturn(err), nil
	}

	return res.Context, err
}
