package kafkasource_test

import (
	"context"
	"io"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/go-pipeline-services/pkg/pipeline"
	"github.com/askiada/go-pipeline-services/pkg/source/kafkasource"
	"github.com/askiada/go-pipeline-services/pkg/worker"
)

// mockReader serves queued messages, then io.EOF once closed.
type mockReader struct {
	messages  chan kafka.Message
	fetchErrs chan error
	mu        sync.Mutex
	committed []int64
	closed    bool
}

func newMockReader(values ...string) *mockReader {
	mr := &mockReader{
		messages:  make(chan kafka.Message, len(values)),
		fetchErrs: make(chan error, 1),
	}

	for i, value := range values {
		mr.messages <- kafka.Message{Topic: "lines", Offset: int64(i), Value: []byte(value)}
	}

	close(mr.messages)

	return mr
}

func (mr *mockReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case err := <-mr.fetchErrs:
		return kafka.Message{}, err
	default:
	}

	select {
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	case msg, ok := <-mr.messages:
		if !ok {
			return kafka.Message{}, io.EOF
		}

		return msg, nil
	}
}

func (mr *mockReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	mr.mu.Lock()
	defer mr.mu.Unlock()

	for _, msg := range msgs {
		mr.committed = append(mr.committed, msg.Offset)
	}

	return nil
}

func (mr *mockReader) Close() error {
	mr.mu.Lock()
	defer mr.mu.Unlock()

	mr.closed = true

	return nil
}

func (mr *mockReader) commits() []int64 {
	mr.mu.Lock()
	defer mr.mu.Unlock()

	return append([]int64(nil), mr.committed...)
}

type slicePublisher struct {
	err    error
	values []int
}

func (p *slicePublisher) Publish(_ context.Context, value int) error {
	if p.err != nil {
		return p.err
	}

	p.values = append(p.values, value)

	return nil
}

func atoi(msg kafka.Message) (int, error) {
	n, err := strconv.Atoi(string(msg.Value))

	return n, errors.Wrap(err, "not a number")
}

func TestNewErrors(t *testing.T) {
	t.Parallel()

	pub := &slicePublisher{}

	_, err := kafkasource.New[int](nil, pub, atoi)
	assert.ErrorIs(t, err, kafkasource.ErrNilReader)

	_, err = kafkasource.New[int](newMockReader(), nil, atoi)
	assert.ErrorIs(t, err, kafkasource.ErrNilPublisher)

	_, err = kafkasource.New[int](newMockReader(), pub, nil)
	assert.ErrorIs(t, err, kafkasource.ErrNilDecoder)

	_, err = kafkasource.NewReader(kafkasource.Config{Topic: "lines"})
	assert.Error(t, err)
}

func TestRun(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		values        []string
		wantPublished []int
		wantCommits   []int64
		wantSkipped   int64
	}{
		"all valid": {
			values:        []string{"1", "2", "3"},
			wantPublished: []int{1, 2, 3},
			wantCommits:   []int64{0, 1, 2},
		},
		"undecodable messages are committed": {
			values:        []string{"1", "x", "3"},
			wantPublished: []int{1, 3},
			wantCommits:   []int64{0, 1, 2},
			wantSkipped:   1,
		},
		"empty topic": {},
	}

	for name, tc := range tcs {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			reader := newMockReader(tc.values...)
			pub := &slicePublisher{}

			src, err := kafkasource.New[int](reader, pub, atoi)
			require.NoError(t, err)

			require.NoError(t, src.Run(context.Background()))
			assert.Equal(t, tc.wantPublished, pub.values)
			assert.Equal(t, tc.wantCommits, reader.commits())
			assert.Equal(t, int64(len(tc.wantPublished)), src.Published())
			assert.Equal(t, tc.wantSkipped, src.Skipped())

			require.NoError(t, src.Close())
			assert.True(t, reader.closed)
		})
	}
}

func TestRunRetriesFetchErrors(t *testing.T) {
	t.Parallel()

	reader := newMockReader("7")
	reader.fetchErrs <- assert.AnError

	pub := &slicePublisher{}

	src, err := kafkasource.New[int](reader, pub, atoi, kafkasource.WithRetryDelay[int](time.Millisecond))
	require.NoError(t, err)

	require.NoError(t, src.Run(context.Background()))
	assert.Equal(t, []int{7}, pub.values)
}

func TestRunCancelledWhileWaitingToRetry(t *testing.T) {
	t.Parallel()

	reader := newMockReader("7")
	reader.fetchErrs <- assert.AnError

	pub := &slicePublisher{}

	src, err := kafkasource.New[int](reader, pub, atoi, kafkasource.WithRetryDelay[int](time.Hour))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)

	go func() {
		done <- src.Run(ctx)
	}()

	require.Eventually(t, func() bool { return len(reader.fetchErrs) == 0 }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("run did not stop while waiting to retry")
	}

	assert.Empty(t, pub.values)
}

func TestRunPublishError(t *testing.T) {
	t.Parallel()

	reader := newMockReader("1", "2")
	pub := &slicePublisher{err: assert.AnError}

	src, err := kafkasource.New[int](reader, pub, atoi)
	require.NoError(t, err)

	err = src.Run(context.Background())
	require.ErrorIs(t, err, assert.AnError)
	assert.Empty(t, reader.commits())
}

func TestRunStopsWithEngine(t *testing.T) {
	t.Parallel()

	var (
		mu  sync.Mutex
		got []int
	)

	engine, err := worker.New[int]("numbers", 4, worker.RunnerFunc[int](func(_ context.Context, in int) (pipeline.Result[int], error) {
		return pipeline.Result[int]{Context: in * 10}, nil
	}), worker.WithResultHandler(func(_ context.Context, _ worker.Item[int], res pipeline.Result[int], _ error) {
		mu.Lock()
		defer mu.Unlock()

		got = append(got, res.Context)
	}))
	require.NoError(t, err)

	reader := newMockReader("1", "2", "3")

	src, err := kafkasource.New[int](reader, engine, atoi)
	require.NoError(t, err)
	require.NoError(t, src.Run(context.Background()))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()

		return len(got) == 3
	}, time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, engine.Shutdown(ctx))

	stopped := newMockReader("4")
	src, err = kafkasource.New[int](stopped, engine, atoi)
	require.NoError(t, err)
	require.NoError(t, src.Run(context.Background()))
	assert.Empty(t, stopped.commits())
	assert.Equal(t, []int{10, 20, 30}, got)
}

func TestRunCancelled(t *testing.T) {
	t.Parallel()

	reader := &mockReader{messages: make(chan kafka.Message), fetchErrs: make(chan error, 1)}
	src, err := kafkasource.New[int](reader, &slicePublisher{}, atoi)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() {
		done <- src.Run(ctx)
	}()

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("run did not stop")
	}
}
