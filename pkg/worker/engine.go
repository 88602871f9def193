// Package worker runs pipelines in the background, one item at a time, in publish order.
package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/askiada/go-pipeline-services/pkg/pipeline"
)

var (
	ErrEngineStopped   = errors.New("engine is stopped")
	ErrInvalidCapacity = errors.New("capacity must be >= 1")
	ErrNilRunner       = errors.New("runner must be set")
)

// Runner executes a pipeline run. provider.Provider implements it.
type Runner[C any] interface {
	Execute(ctx context.Context, in C) (pipeline.Result[C], error)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc[C any] func(ctx context.Context, in C) (pipeline.Result[C], error)

func (fn RunnerFunc[C]) Execute(ctx context.Context, in C) (pipeline.Result[C], error) {
	return fn(ctx, in)
}

// PipelineRunner runs every item on p.
func PipelineRunner[C any](p *pipeline.Pipeline[C]) Runner[C] {
	return RunnerFunc[C](func(ctx context.Context, in C) (pipeline.Result[C], error) {
		return p.Execute(ctx, in), nil
	})
}

// Item is a published value.
type Item[C any] struct {
	PublishedAt time.Time
	Value       C
	ID          uuid.UUID
}

// ResultHandler receives the result of every processed item. err is set when the runner
// could not run the item.
type ResultHandler[C any] func(ctx context.Context, item Item[C], res pipeline.Result[C], err error)

// Option configures an engine.
type Option[C any] func(e *Engine[C])

// WithResultHandler sets the handler called after every item.
func WithResultHandler[C any](handler ResultHandler[C]) Option[C] {
	return func(e *Engine[C]) {
		e.handler = handler
	}
}

func WithLogger[C any](logger *zap.Logger) Option[C] {
	return func(e *Engine[C]) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithContext sets the context items are run with. Cancelling it does not stop the engine.
func WithContext[C any](ctx context.Context) Option[C] {
	return func(e *Engine[C]) {
		e.ctx = ctx
	}
}

// Engine owns a bounded queue and a single goroutine running queued items.
type Engine[C any] struct {
	ctx       context.Context //nolint:containedctx
	runner    Runner[C]
	handler   ResultHandler[C]
	logger    *zap.Logger
	queue     chan Item[C]
	done      chan struct{}
	stopped   chan struct{}
	name      string
	stopOnce  sync.Once
	processed atomic.Int64
	failed    atomic.Int64
}

// New starts an engine queueing up to capacity items.
func New[C any](name string, capacity int, runner Runner[C], opts ...Option[C]) (*Engine[C], error) {
	if capacity < 1 {
		return nil, errors.Wrapf(ErrInvalidCapacity, "got %d", capacity)
	}

	if runner == nil {
		return nil, ErrNilRunner
	}

	e := &Engine[C]{
		ctx:     context.Background(),
		runner:  runner,
		logger:  zap.NewNop(),
		queue:   make(chan Item[C], capacity),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
		name:    name,
	}

	for _, opt := range opts {
		opt(e)
	}

	e.logger = e.logger.With(zap.String("engine", name))

	go e.loop()

	return e, nil
}

// Publish queues value. It blocks while the queue is full, until the engine is stopped or
// ctx is done. Values are never dropped.
func (e *Engine[C]) Publish(ctx context.Context, value C) error {
	select {
	case <-e.done:
		return ErrEngineStopped
	default:
	}

	item := Item[C]{ID: uuid.New(), Value: value, PublishedAt: time.Now()}

	select {
	case e.queue <- item:
		return nil
	case <-e.done:
		return ErrEngineStopped
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "unable to publish")
	}
}

// Shutdown stops the engine once the item being processed is done. Queued items are
// abandoned. It waits until the worker goroutine exits or ctx is done.
func (e *Engine[C]) Shutdown(ctx context.Context) error {
	e.stopOnce.Do(func() {
		close(e.done)
	})

	select {
	case <-e.stopped:
		e.logger.Info("engine stopped",
			zap.Int64("processed", e.processed.Load()),
			zap.Int64("failed", e.failed.Load()),
			zap.Int("abandoned", len(e.queue)),
		)

		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "unable to wait for the engine to stop")
	}
}

func (e *Engine[C]) Name() string {
	return e.name
}

// Len returns the number of queued items.
func (e *Engine[C]) Len() int {
	return len(e.queue)
}

func (e *Engine[C]) Cap() int {
	return cap(e.queue)
}

// Processed returns how many items were handled, failed and panicking ones included.
func (e *Engine[C]) Processed() int64 {
	return e.processed.Load()
}

// Failed returns how many items ended with an error.
func (e *Engine[C]) Failed() int64 {
	return e.failed.Load()
}

func (e *Engine[C]) loop() {
	defer close(e.stopped)

	for {
		select {
		case <-e.done:
			return
		case item := <-e.queue:
			select {
			case <-e.done:
				return
			default:
			}

			e.process(item)
		}
	}
}

// process runs one item. An item counts as processed once its handler returned, failed
// items included.
func (e *Engine[C]) process(item Item[C]) {
	defer e.processed.Add(1)
	defer func() {
		if r := recover(); r != nil {
			e.failed.Add(1)
			e.logger.Error("item panicked", zap.Stringer("item_id", item.ID), zap.Any("panic", r))
		}
	}()

	res, err := e.runner.Execute(e.ctx, item.Value)

	switch {
	case err != nil:
		e.failed.Add(1)
		e.logger.Warn("unable to run item", zap.Stringer("item_id", item.ID), zap.Error(err))
	case res.Err() != nil:
		e.failed.Add(1)
		e.logger.Debug("item failed", zap.Stringer("item_id", item.ID), zap.Error(res.Err()))
	}

	if e.handler != nil {
		e.handler(e.ctx, item, res, err)
	}
}
