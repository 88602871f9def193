// Package provider hands pipelines to concurrent runs. A provider shares one pipeline, lends
// pipelines from a bounded pool or builds a new pipeline for every run.
package provider

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/askiada/go-pipeline-services/pkg/pipeline"
)

var (
	ErrNilPipeline     = errors.New("pipeline must be set")
	ErrNilFactory      = errors.New("factory must be set")
	ErrInvalidPoolSize = errors.New("pool size must be >= 0")
	ErrInvalidLimit    = errors.New("limit must be >= 1")
)

// Mode is the way a provider hands pipelines to runs.
type Mode string

const (
	ModeShared Mode = "shared"
	ModePooled Mode = "pooled"
	ModePerRun Mode = "per-run"
)

func (m Mode) String() string {
	return string(m)
}

// ParseMode parses the name of a mode.
func ParseMode(s string) (Mode, error) {
	switch mode := Mode(s); mode {
	case ModeShared, ModePooled, ModePerRun:
		return mode, nil
	default:
		return "", errors.Errorf("unknown provider mode %q", s)
	}
}

// Option configures a provider.
type Option func(o *options)

type options struct {
	logger *zap.Logger
}

// WithLogger sets the logger used to report pipeline creation failures.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func newOptions(opts []Option) options {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	return o
}

// Provider runs inputs on pipelines according to its mode.
type Provider[C any] struct {
	shared  *pipeline.Pipeline[C]
	pool    *Pool[C]
	factory Factory[C]
	logger  *zap.Logger
	mode    Mode
}

// NewShared returns a provider running every input on p.
func NewShared[C any](p *pipeline.Pipeline[C], opts ...Option) (*Provider[C], error) {
	if p == nil {
		return nil, ErrNilPipeline
	}

	o := newOptions(opts)

	return &Provider[C]{shared: p, logger: o.logger, mode: ModeShared}, nil
}

// NewSharedFromFactory builds a single pipeline with factory and shares it.
func NewSharedFromFactory[C any](factory Factory[C], opts ...Option) (*Provider[C], error) {
	if factory == nil {
		return nil, ErrNilFactory
	}

	p, err := factory()
	if err != nil {
		return nil, errors.Wrap(err, "unable to create shared pipeline")
	}

	return NewShared(p, opts...)
}

// NewPooled returns a provider lending pipelines from a pool of size pipelines.
// Zero uses DefaultPoolMax.
func NewPooled[C any](factory Factory[C], size int, opts ...Option) (*Provider[C], error) {
	pool, err := NewPool(factory, size)
	if err != nil {
		return nil, err
	}

	o := newOptions(opts)

	return &Provider[C]{pool: pool, factory: factory, logger: o.logger, mode: ModePooled}, nil
}

// NewPerRun returns a provider building a new pipeline for every run.
func NewPerRun[C any](factory Factory[C], opts ...Option) (*Provider[C], error) {
	if factory == nil {
		return nil, ErrNilFactory
	}

	o := newOptions(opts)

	return &Provider[C]{factory: factory, logger: o.logger, mode: ModePerRun}, nil
}

// New returns a provider of the given mode. size is only used by pooled providers.
func New[C any](mode Mode, factory Factory[C], size int, opts ...Option) (*Provider[C], error) {
	switch mode {
	case ModeShared:
		return NewSharedFromFactory(factory, opts...)
	case ModePooled:
		return NewPooled(factory, size, opts...)
	case ModePerRun:
		return NewPerRun(factory, opts...)
	default:
		return nil, errors.Errorf("unknown provider mode %q", mode)
	}
}

func (p *Provider[C]) Mode() Mode {
	return p.mode
}

// Pool returns the pool of a pooled provider, nil otherwise.
func (p *Provider[C]) Pool() *Pool[C] {
	return p.pool
}

// Execute runs in on a pipeline. The error is only set when no pipeline could be obtained,
// the outcome of the run is in the result.
func (p *Provider[C]) Execute(ctx context.Context, in C) (pipeline.Result[C], error) {
	switch p.mode {
	case ModePooled:
		pl, err := p.pool.Borrow(ctx)
		if err != nil {
			p.logger.Warn("unable to borrow pipeline", zap.Error(err))
			return pipeline.Result[C]{Context: in}, err
		}
		defer p.pool.Release(pl)

		return pl.Execute(ctx, in), nil
	case ModePerRun:
		pl, err := p.factory()
		if err == nil && pl == nil {
			err = ErrNilPipeline
		}

		if err != nil {
			p.logger.Warn("unable to create pipeline", zap.Error(err))
			return pipeline.Result[C]{Context: in}, errors.Wrap(err, "unable to create pipeline")
		}

		return pl.Execute(ctx, in), nil
	default:
		return p.shared.Execute(ctx, in), nil
	}
}

// Run runs in on a pipeline and returns the final value and the error that stopped the run.
func (p *Provider[C]) Run(ctx context.Context, in C) (C, error) {
	res, err := p.Execute(ctx, in)
	if err != nil {
		return in, err
	}

	return res.Context, res.Err()
}

// ExecuteAll runs every input with at most limit concurrent runs. Results keep the order of
// inputs. It stops at the first input for which no pipeline could be obtained.
func (p *Provider[C]) ExecuteAll(ctx context.Context, inputs []C, limit int) ([]pipeline.Result[C], error) {
	if limit < 1 {
		return nil, errors.Wrapf(ErrInvalidLimit, "got %d", limit)
	}

	results := make([]pipeline.Result[C], len(inputs))

	grp, ctx := errgroup.WithContext(ctx)
	grp.SetLimit(limit)

	for i, in := range inputs {
		i, in := i, in
		grp.Go(func() error {
			res, err := p.Execute(ctx, in)
			if err != nil {
				return errors.Wrapf(err, "input %d", i)
			}

			results[i] = res

			return nil
		})
	}

	err := grp.Wait()
	if err != nil {
		return nil, err
	}

	return results, nil
}
