package pipeline

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/askiada/go-pipeline-services/pkg/pipeline/model"
)

// indexLabels checks labels are unique across all phases and returns the index of every
// main label. Only main actions can be jumped to.
func indexLabels[C any](pre, main, post []registeredStep[C]) (map[string]int, error) {
	seen := make(map[string]model.StepInfo)
	labels := make(map[string]int)

	for _, steps := range [][]registeredStep[C]{pre, main, post} {
		for _, step := range steps {
			label := step.info.Label
			if label == "" {
				continue
			}

			if first, ok := seen[label]; ok {
				return nil, errors.Wrapf(ErrDuplicateLabel, "%q used by %s and %s", label, first.DisplayName(), step.info.DisplayName())
			}

			seen[label] = step.info

			if step.info.Phase == model.PhaseMain {
				labels[label] = step.info.Index
			}
		}
	}

	return labels, nil
}

// runMain runs main actions from index start. Jumps move the cursor to the labeled action,
// every other outcome moves it forward or stops the phase.
func (p *Pipeline[C]) runMain(ctx context.Context, control *StepControl, cur C, start int) C {
	jumps := 0

	for i := start; i < len(p.main); {
		step := &p.main[i]

		cur = p.runHooks(ctx, p.beforeEach, cur, step.info)
		out := p.apply(ctx, control, step, cur)

		switch out.Kind() {
		case KindShortCircuit:
			control.ShortCircuit()
			return out.Value()
		case KindFail:
			var stop bool

			cur, stop = p.handleFailure(control, cur, out.Err())
			if stop || control.IsShortCircuited() {
				return cur
			}

			i++
		case KindJump:
			if control.IsShortCircuited() {
				return out.Value()
			}

			target, err := p.jump(ctx, control, out, &jumps)
			if err != nil {
				control.fail(err)
				return cur
			}

			cur = out.Value()
			i = target
		default:
			cur = out.Value()
			if control.IsShortCircuited() {
				return cur
			}

			cur = p.runHooks(ctx, p.afterEach, cur, step.info)
			i++
		}
	}

	return cur
}

// jump resolves the target of out, enforces the jump ceiling and waits for the delay.
func (p *Pipeline[C]) jump(ctx context.Context, control *StepControl, out Outcome[C], jumps *int) (int, error) {
	label := out.Label()

	target, ok := p.labels[label]
	if !ok {
		return 0, errors.Wrapf(ErrUnknownLabel, "jump to %q", label)
	}

	*jumps++
	if *jumps > p.maxJumps {
		return 0, errors.Wrapf(ErrMaxJumpsExceeded, "jump to %q: limit is %d", label, p.maxJumps)
	}

	control.recordJump(p.main[target].info, label, out.Delay())
	p.logger.Debug("jump",
		zap.String("pipeline", p.name),
		zap.String("from", control.StepName()),
		zap.String("to", label),
		zap.Duration("delay", out.Delay()),
	)

	err := sleep(ctx, out.Delay())
	if err != nil {
		return 0, errors.Wrapf(err, "jump to %q interrupted", label)
	}

	return target, nil
}

func (p *Pipeline[C]) runHooks(ctx context.Context, hooks []Hook[C], cur C, step model.StepInfo) C {
	for _, hook := range hooks {
		cur = hook(ctx, cur, step)
	}

	return cur
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
