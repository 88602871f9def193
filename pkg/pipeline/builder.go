package pipeline

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/askiada/go-pipeline-services/pkg/pipeline/model"
)

// Builder assembles a Pipeline. A builder is not safe for concurrent use, the pipeline it
// builds is.
type Builder[C any] struct {
	onError             ErrorHandler[C]
	instr               model.Instrumentation
	logger              *zap.Logger
	name                string
	pre                 []registeredStep[C]
	main                []registeredStep[C]
	post                []registeredStep[C]
	beforeEach          []Hook[C]
	afterEach           []Hook[C]
	errs                []error
	maxJumps            int
	shortCircuitOnError bool
}

// NewBuilder returns a builder for a pipeline called name. Errors short-circuit the run by
// default.
func NewBuilder[C any](name string) *Builder[C] {
	return &Builder[C]{
		name:                name,
		instr:               model.NoopInstrumentation{},
		logger:              zap.NewNop(),
		maxJumps:            DefaultMaxJumps,
		shortCircuitOnError: true,
	}
}

// ShortCircuitOnError sets whether an action error stops the current phase.
func (b *Builder[C]) ShortCircuitOnError(enabled bool) *Builder[C] {
	b.shortCircuitOnError = enabled
	return b
}

// OnError sets the handler called with every action error.
func (b *Builder[C]) OnError(handler ErrorHandler[C]) *Builder[C] {
	b.onError = handler
	return b
}

// Instrumentation sets the instrumentation notified of every run.
func (b *Builder[C]) Instrumentation(instr model.Instrumentation) *Builder[C] {
	if instr == nil {
		instr = model.NoopInstrumentation{}
	}

	b.instr = instr

	return b
}

func (b *Builder[C]) Logger(logger *zap.Logger) *Builder[C] {
	if logger == nil {
		logger = zap.NewNop()
	}

	b.logger = logger

	return b
}

// MaxJumps sets how many jumps a run may take. Zero forbids jumps.
func (b *Builder[C]) MaxJumps(n int) *Builder[C] {
	b.maxJumps = n
	return b
}

// BeforeEach adds a hook that runs before every main action, including after a jump.
func (b *Builder[C]) BeforeEach(hook Hook[C]) *Builder[C] {
	if hook != nil {
		b.beforeEach = append(b.beforeEach, hook)
	}

	return b
}

// AfterEach adds a hook that runs after every main action that continued normally.
func (b *Builder[C]) AfterEach(hook Hook[C]) *Builder[C] {
	if hook != nil {
		b.afterEach = append(b.afterEach, hook)
	}

	return b
}

func (b *Builder[C]) Pre(action Action[C], opts ...StepOption) *Builder[C] {
	b.pre = b.add(model.PhasePre, b.pre, action, opts)
	return b
}

func (b *Builder[C]) Main(action Action[C], opts ...StepOption) *Builder[C] {
	b.main = b.add(model.PhaseMain, b.main, action, opts)
	return b
}

func (b *Builder[C]) Post(action Action[C], opts ...StepOption) *Builder[C] {
	b.post = b.add(model.PhasePost, b.post, action, opts)
	return b
}

func (b *Builder[C]) add(phase model.Phase, steps []registeredStep[C], action Action[C], opts []StepOption) []registeredStep[C] {
	cfg := newStepConfig(opts)
	info := model.StepInfo{Phase: phase, Index: len(steps), Name: cfg.name, Label: cfg.label}

	if action == nil {
		b.errs = append(b.errs, errors.Wrapf(ErrNilAction, "step %s", info.DisplayName()))
	}

	return append(steps, registeredStep[C]{action: action, info: info})
}

// Build validates the configuration and returns an immutable pipeline.
func (b *Builder[C]) Build() (*Pipeline[C], error) {
	if b.name == "" {
		return nil, ErrEmptyName
	}

	if len(b.errs) > 0 {
		return nil, errors.Wrapf(b.errs[0], "unable to build pipeline %s", b.name)
	}

	if b.maxJumps < 0 {
		return nil, errors.Wrapf(ErrInvalidMaxJumps, "unable to build pipeline %s: got %d", b.name, b.maxJumps)
	}

	labels, err := indexLabels(b.pre, b.main, b.post)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to build pipeline %s", b.name)
	}

	return &Pipeline[C]{
		onError:             b.onError,
		instr:               b.instr,
		logger:              b.logger,
		labels:              labels,
		name:                b.name,
		pre:                 append([]registeredStep[C](nil), b.pre...),
		main:                append([]registeredStep[C](nil), b.main...),
		post:                append([]registeredStep[C](nil), b.post...),
		beforeEach:          append([]Hook[C](nil), b.beforeEach...),
		afterEach:           append([]Hook[C](nil), b.afterEach...),
		maxJumps:            b.maxJumps,
		shortCircuitOnError: b.shortCircuitOnError,
	}, nil
}
