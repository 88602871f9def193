package pipeline

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/askiada/go-pipeline-services/pkg/pipeline/model"
)

// Pipeline runs pre, main and post actions over a context value. A pipeline holds no run
// state and can be executed concurrently.
type Pipeline[C any] struct {
	onError             ErrorHandler[C]
	instr               model.Instrumentation
	logger              *zap.Logger
	labels              map[string]int
	name                string
	pre                 []registeredStep[C]
	main                []registeredStep[C]
	post                []registeredStep[C]
	beforeEach          []Hook[C]
	afterEach           []Hook[C]
	maxJumps            int
	shortCircuitOnError bool
}

func (p *Pipeline[C]) Name() string {
	return p.name
}

func (p *Pipeline[C]) ShortCircuitOnError() bool {
	return p.shortCircuitOnError
}

func (p *Pipeline[C]) MaxJumps() int {
	return p.maxJumps
}

// Steps returns the steps of the pipeline, pre first and post last.
func (p *Pipeline[C]) Steps() []model.StepInfo {
	out := make([]model.StepInfo, 0, len(p.pre)+len(p.main)+len(p.post))
	for _, steps := range [][]registeredStep[C]{p.pre, p.main, p.post} {
		for _, step := range steps {
			out = append(out, step.info)
		}
	}

	return out
}

// Execute runs the pipeline and returns everything the run produced.
func (p *Pipeline[C]) Execute(ctx context.Context, in C) Result[C] {
	return p.execute(ctx, in, 0, "")
}

// ExecuteFrom runs the pipeline, starting the main phase at the action labeled label.
// Pre and post actions run as usual.
func (p *Pipeline[C]) ExecuteFrom(ctx context.Context, in C, label string) (Result[C], error) {
	start, ok := p.labels[label]
	if !ok {
		return Result[C]{Context: in, Pipeline: p.name}, errors.Wrapf(ErrUnknownLabel, "start label %q", label)
	}

	return p.execute(ctx, in, start, label), nil
}

// Run runs the pipeline and returns the final value along with the error that stopped the
// run. Errors swallowed because of the short-circuit policy are not returned.
func (p *Pipeline[C]) Run(ctx context.Context, in C) (C, error) {
	res := p.Execute(ctx, in)
	return res.Context, res.Err()
}

func (p *Pipeline[C]) execute(ctx context.Context, in C, start int, startLabel string) Result[C] {
	control := newStepControl(p.name)
	control.recorder = p.instr.BeginRun(ctx, model.RunInfo{
		Pipeline:   p.name,
		RunID:      control.runID,
		StartLabel: startLabel,
		StartedAt:  control.runStart,
	})

	cur := p.runPhase(ctx, control, p.pre, in)
	if control.IsShortCircuited() {
		p.logger.Debug("main phase skipped", zap.String("pipeline", p.name), zap.Stringer("run_id", control.runID))
	} else {
		cur = p.runMain(ctx, control, cur, start)
	}

	cur = p.runPhase(ctx, control, p.post, cur)

	elapsed := time.Since(control.runStart)
	control.recorder.EndRun(model.RunSummary{
		Pipeline:       p.name,
		RunID:          control.runID,
		ShortCircuited: control.shortCircuited,
		Errors:         len(control.errs),
		Jumps:          len(control.jumps),
		Elapsed:        elapsed,
		Err:            control.fatal,
	})

	return newResult(control, cur, elapsed)
}

// runPhase runs pre or post actions. A short-circuit only marks the run, the remaining
// actions of the phase still run.
func (p *Pipeline[C]) runPhase(ctx context.Context, control *StepControl, steps []registeredStep[C], cur C) C {
	for i := range steps {
		step := &steps[i]
		out := p.apply(ctx, control, step, cur)

		switch out.Kind() {
		case KindShortCircuit:
			control.ShortCircuit()
			cur = out.Value()
		case KindJump:
			control.fail(errors.Wrapf(ErrJumpOutsidePhase, "jump to %q from %s phase", out.Label(), step.info.Phase))
			return cur
		case KindFail:
			var stop bool

			cur, stop = p.handleFailure(control, cur, out.Err())
			if stop {
				return cur
			}
		default:
			cur = out.Value()
		}
	}

	return cur
}

func (p *Pipeline[C]) apply(ctx context.Context, control *StepControl, step *registeredStep[C], cur C) Outcome[C] {
	control.beginStep(step.info)

	start := time.Now()
	out := invoke(ctx, step.action, cur, control)
	control.recordTiming(time.Since(start), out.Kind() != KindFail)

	return out
}

// handleFailure records err and reports whether the phase must stop.
func (p *Pipeline[C]) handleFailure(control *StepControl, cur C, err error) (C, bool) {
	var stepErr StepError

	if p.shortCircuitOnError {
		stepErr = control.fail(err)
		p.logger.Debug("short-circuit on error",
			zap.String("pipeline", p.name),
			zap.String("step", stepErr.Step.DisplayName()),
			zap.Error(err),
		)
	} else {
		stepErr = control.recordError(err)
	}

	if p.onError != nil {
		cur = p.onError(cur, stepErr)
	}

	return cur, p.shortCircuitOnError
}
