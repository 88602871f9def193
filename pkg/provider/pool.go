package provider

import (
	"context"
	"runtime"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/semaphore"

	"github.com/askiada/go-pipeline-services/pkg/pipeline"
)

const maxDefaultPool = 256

// DefaultPoolMax returns eight pipelines per CPU, between 1 and 256.
func DefaultPoolMax() int {
	return min(max(runtime.NumCPU()*8, 1), maxDefaultPool)
}

// Factory builds a new pipeline.
type Factory[C any] func() (*pipeline.Pipeline[C], error)

// Pool lends pipelines to one run at a time. It creates them lazily, up to max, and blocks
// borrowers once max pipelines are out.
type Pool[C any] struct {
	factory     Factory[C]
	sem         *semaphore.Weighted
	idle        []*pipeline.Pipeline[C]
	borrowed    map[*pipeline.Pipeline[C]]struct{}
	mu          sync.Mutex
	max         int
	created     int
	outstanding int
}

// NewPool returns an empty pool holding up to size pipelines. Zero uses DefaultPoolMax.
func NewPool[C any](factory Factory[C], size int) (*Pool[C], error) {
	if factory == nil {
		return nil, ErrNilFactory
	}

	if size < 0 {
		return nil, errors.Wrapf(ErrInvalidPoolSize, "got %d", size)
	}

	if size == 0 {
		size = DefaultPoolMax()
	}

	return &Pool[C]{
		factory:  factory,
		sem:      semaphore.NewWeighted(int64(size)),
		borrowed: make(map[*pipeline.Pipeline[C]]struct{}),
		max:      size,
	}, nil
}

// Borrow returns an idle pipeline or creates one. It blocks while max pipelines are out,
// until ctx is done.
func (p *Pool[C]) Borrow(ctx context.Context) (*pipeline.Pipeline[C], error) {
	err := p.sem.Acquire(ctx, 1)
	if err != nil {
		return nil, errors.Wrap(err, "unable to borrow pipeline")
	}

	p.mu.Lock()

	if n := len(p.idle); n > 0 {
		pl := p.idle[n-1]
		p.idle = p.idle[:n-1]
		p.borrowed[pl] = struct{}{}
		p.outstanding++
		p.mu.Unlock()

		return pl, nil
	}

	p.created++
	p.outstanding++
	p.mu.Unlock()

	pl, err := p.factory()
	if err == nil && pl == nil {
		err = ErrNilPipeline
	}

	if err != nil {
		p.mu.Lock()
		p.created--
		p.outstanding--
		p.mu.Unlock()
		p.sem.Release(1)

		return nil, errors.Wrap(err, "unable to create pipeline")
	}

	p.mu.Lock()
	p.borrowed[pl] = struct{}{}
	p.mu.Unlock()

	return pl, nil
}

// Release gives back a borrowed pipeline and reports whether it was out. Releasing nil, a
// pipeline released already or one that does not come from the pool is a no-op.
func (p *Pool[C]) Release(pl *pipeline.Pipeline[C]) bool {
	p.mu.Lock()

	if _, ok := p.borrowed[pl]; !ok {
		p.mu.Unlock()
		return false
	}

	delete(p.borrowed, pl)
	p.idle = append(p.idle, pl)
	p.outstanding--
	p.mu.Unlock()

	p.sem.Release(1)

	return true
}

func (p *Pool[C]) Max() int {
	return p.max
}

// Created returns how many pipelines the pool built.
func (p *Pool[C]) Created() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.created
}

// Outstanding returns how many pipelines are borrowed.
func (p *Pool[C]) Outstanding() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.outstanding
}

// Idle returns how many pipelines are waiting to be borrowed.
func (p *Pool[C]) Idle() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.idle)
}
