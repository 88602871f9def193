package worker_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/go-pipeline-services/pkg/pipeline"
	"github.com/askiada/go-pipeline-services/pkg/provider"
	"github.com/askiada/go-pipeline-services/pkg/worker"
)

var _ worker.Runner[int] = (*provider.Provider[int])(nil)

type collector struct {
	mu     sync.Mutex
	values []int
	errs   []error
}

func (c *collector) handle(_ context.Context, _ worker.Item[int], res pipeline.Result[int], err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.values = append(c.values, res.Context)
	c.errs = append(c.errs, err)
}

func (c *collector) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.values)
}

func (c *collector) errors() []error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]error(nil), c.errs...)
}

func (c *collector) all() []int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]int(nil), c.values...)
}

// gatedRunner blocks every run until a value is sent on gate.
func gatedRunner(started chan<- int, gate <-chan struct{}) worker.Runner[int] {
	return worker.RunnerFunc[int](func(_ context.Context, in int) (pipeline.Result[int], error) {
		started <- in
		<-gate

		return pipeline.Result[int]{Context: in}, nil
	})
}

func shutdown(t *testing.T, e interface{ Shutdown(context.Context) error }) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, e.Shutdown(ctx))
}

func TestNewErrors(t *testing.T) {
	t.Parallel()

	_, err := worker.New[int]("w", 0, worker.RunnerFunc[int](nil))
	assert.ErrorIs(t, err, worker.ErrInvalidCapacity)

	_, err = worker.New[int]("w", 1, nil)
	assert.ErrorIs(t, err, worker.ErrNilRunner)
}

func TestEngineProcessesInOrder(t *testing.T) {
	t.Parallel()

	p, err := pipeline.NewBuilder[int]("double").
		Main(pipeline.Func[int](func(in int) int { return in * 2 })).
		Build()
	require.NoError(t, err)

	col := &collector{}
	e, err := worker.New("w", 4, worker.PipelineRunner(p), worker.WithResultHandler(col.handle))
	require.NoError(t, err)
	assert.Equal(t, "w", e.Name())
	assert.Equal(t, 4, e.Cap())

	want := []int{}

	for i := 0; i < 100; i++ {
		require.NoError(t, e.Publish(context.Background(), i))
		want = append(want, i*2)
	}

	require.Eventually(t, func() bool { return e.Processed() == 100 }, time.Second, time.Millisecond)
	assert.Equal(t, want, col.all())
	assert.Zero(t, e.Failed())

	shutdown(t, e)
}

func TestEnginePublishBlocksWhenFull(t *testing.T) {
	t.Parallel()

	started := make(chan int, 10)
	gate := make(chan struct{})
	col := &collector{}

	e, err := worker.New("w", 1, gatedRunner(started, gate), worker.WithResultHandler(col.handle))
	require.NoError(t, err)

	require.NoError(t, e.Publish(context.Background(), 1))
	assert.Equal(t, 1, <-started)
	require.NoError(t, e.Publish(context.Background(), 2))
	assert.Equal(t, 1, e.Len())

	published := make(chan error, 1)
	go func() {
		published <- e.Publish(context.Background(), 3)
	}()

	select {
	case <-published:
		t.Fatal("publish should block while the queue is full")
	case <-time.After(30 * time.Millisecond):
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, e.Publish(ctx, 4), context.Canceled)

	gate <- struct{}{}
	require.NoError(t, <-published)

	gate <- struct{}{}
	gate <- struct{}{}

	require.Eventually(t, func() bool { return col.len() == 3 }, time.Second, time.Millisecond)
	assert.Equal(t, []int{1, 2, 3}, col.all())

	shutdown(t, e)
}

func TestEngineShutdown(t *testing.T) {
	t.Parallel()

	started := make(chan int, 10)
	gate := make(chan struct{})
	col := &collector{}

	e, err := worker.New("w", 5, gatedRunner(started, gate), worker.WithResultHandler(col.handle))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, e.Publish(context.Background(), i))
	}

	assert.Equal(t, 0, <-started)

	stopped := make(chan error, 1)
	go func() {
		stopped <- e.Shutdown(context.Background())
	}()

	select {
	case <-stopped:
		t.Fatal("shutdown should wait for the current item")
	case <-time.After(30 * time.Millisecond):
	}

	assert.ErrorIs(t, e.Publish(context.Background(), 10), worker.ErrEngineStopped)

	close(gate)
	require.NoError(t, <-stopped)

	assert.Equal(t, []int{0}, col.all())
	assert.Equal(t, int64(1), e.Processed())

	shutdown(t, e)
	assert.ErrorIs(t, e.Publish(context.Background(), 11), worker.ErrEngineStopped)
}

func TestEngineShutdownTimeout(t *testing.T) {
	t.Parallel()

	started := make(chan int, 1)
	gate := make(chan struct{})

	e, err := worker.New("w", 1, gatedRunner(started, gate))
	require.NoError(t, err)
	require.NoError(t, e.Publish(context.Background(), 1))
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, e.Shutdown(ctx), context.DeadlineExceeded)

	close(gate)
	shutdown(t, e)
}

func TestEngineFailures(t *testing.T) {
	t.Parallel()

	col := &collector{}
	calls := 0
	runner := worker.RunnerFunc[int](func(_ context.Context, in int) (pipeline.Result[int], error) {
		calls++

		switch calls {
		case 1:
			return pipeline.Result[int]{Context: in}, assert.AnError
		case 2:
			panic("boom")
		default:
			return pipeline.Result[int]{Context: in}, nil
		}
	})

	e, err := worker.New("w", 3, runner, worker.WithResultHandler(col.handle))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, e.Publish(context.Background(), i))
	}

	require.Eventually(t, func() bool { return e.Processed() == 3 }, time.Second, time.Millisecond)
	assert.Equal(t, []int{0, 2}, col.all())
	assert.Equal(t, []error{assert.AnError, nil}, col.errors())
	assert.Equal(t, int64(2), e.Failed())

	shutdown(t, e)
}

func TestEngineWithProvider(t *testing.T) {
	t.Parallel()

	prv, err := provider.NewPooled(func() (*pipeline.Pipeline[int], error) {
		return pipeline.NewBuilder[int]("inc").
			Main(pipeline.TryFunc[int](func(_ context.Context, in int) (int, error) {
				if in < 0 {
					return in, assert.AnError
				}

				return in + 1, nil
			})).
			Build()
	}, 2)
	require.NoError(t, err)

	col := &collector{}
	e, err := worker.New[int]("w", 2, prv, worker.WithResultHandler(col.handle), worker.WithContext[int](context.Background()))
	require.NoError(t, err)

	require.NoError(t, e.Publish(context.Background(), 1))
	require.NoError(t, e.Publish(context.Background(), -1))

	require.Eventually(t, func() bool { return col.len() == 2 }, time.Second, time.Millisecond)
	assert.Equal(t, []int{2, -1}, col.all())
	assert.Equal(t, int64(1), e.Failed())

	shutdown(t, e)
}
