package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/askiada/go-pipeline-services/internal/config"
	"github.com/askiada/go-pipeline-services/pkg/pipeline"
	"github.com/askiada/go-pipeline-services/pkg/pipeline/model"
	"github.com/askiada/go-pipeline-services/pkg/registry"
	"github.com/askiada/go-pipeline-services/pkg/worker"
)

type linesPublisher struct {
	lines []string
}

func (p *linesPublisher) Publish(_ context.Context, value string) error {
	p.lines = append(p.lines, value)
	return nil
}

func defaultConfig(t *testing.T, env map[string]string) config.Config {
	t.Helper()

	cfg, err := config.FromLookup(func(key string) (string, bool) {
		value, ok := env[key]
		return value, ok
	})
	require.NoError(t, err)

	return cfg
}

func TestPublishLines(t *testing.T) {
	t.Parallel()

	pub := &linesPublisher{}
	require.NoError(t, publishLines(context.Background(), strings.NewReader("a\n b \n\nc"), pub))
	assert.Equal(t, []string{"a", " b ", "", "c"}, pub.lines)
}

func TestNewFactory(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig(t, nil)

	factory, err := newFactory(cfg, model.NoopInstrumentation{}, zap.NewNop())
	require.NoError(t, err)

	p, err := factory()
	require.NoError(t, err)
	assert.Equal(t, "text-clean", p.Name())

	names := make([]string, 0, len(p.Steps()))
	for _, step := range p.Steps() {
		names = append(names, step.Name)
	}

	assert.Equal(t, []string{"strip", "normalize_whitespace", "to_lower", "report"}, names)

	got, err := p.Run(context.Background(), "  Hello \t WORLD ")
	require.NoError(t, err)
	assert.Equal(t, "hello world", got)
}

func TestNewFactoryWithRemote(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_, _ = io.WriteString(w, "<"+string(body)+">")
	}))
	t.Cleanup(srv.Close)

	cfg := defaultConfig(t, map[string]string{
		"PIPELINE_STEPS":      "strip",
		"PIPELINE_REMOTE_URL": srv.URL,
		"PIPELINE_REMOTE_RPS": "100",
	})

	factory, err := newFactory(cfg, model.NoopInstrumentation{}, zap.NewNop())
	require.NoError(t, err)

	p, err := factory()
	require.NoError(t, err)

	got, err := p.Run(context.Background(), " hi ")
	require.NoError(t, err)
	assert.Equal(t, "<hi>", got)
}

func TestNewFactoryUnknownStep(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig(t, map[string]string{"PIPELINE_STEPS": "strip,shout"})

	_, err := newFactory(cfg, model.NoopInstrumentation{}, zap.NewNop())
	assert.ErrorIs(t, err, registry.ErrNotFound)
}

func TestDrainWaitsForFailedItems(t *testing.T) {
	t.Parallel()

	p, err := pipeline.NewBuilder[string]("drain").
		Main(pipeline.TryFunc[string](func(_ context.Context, in string) (string, error) {
			time.Sleep(5 * time.Millisecond)

			if in == "bad" {
				return in, assert.AnError
			}

			return in, nil
		})).
		Build()
	require.NoError(t, err)

	runner := worker.RunnerFunc[string](func(ctx context.Context, in string) (pipeline.Result[string], error) {
		if in == "boom" {
			panic("boom")
		}

		return p.Execute(ctx, in), nil
	})

	var (
		mu   sync.Mutex
		seen []string
	)

	engine, err := worker.New[string]("drain", 8, runner,
		worker.WithResultHandler(func(_ context.Context, _ worker.Item[string], res pipeline.Result[string], _ error) {
			mu.Lock()
			defer mu.Unlock()

			seen = append(seen, res.Context)
		}),
	)
	require.NoError(t, err)

	inputs := []string{"bad", "boom", "bad", "ok", "ok"}
	for _, in := range inputs {
		require.NoError(t, engine.Publish(context.Background(), in))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	drain(ctx, engine, int64(len(inputs)))
	require.NoError(t, engine.Shutdown(ctx))

	assert.Equal(t, int64(len(inputs)), engine.Processed())
	assert.Equal(t, int64(3), engine.Failed())

	mu.Lock()
	defer mu.Unlock()

	assert.Equal(t, []string{"bad", "bad", "ok", "ok"}, seen)
}

func TestResultHandler(t *testing.T) {
	t.Parallel()

	p, err := pipeline.NewBuilder[string]("handler").
		Main(pipeline.TryFunc[string](func(_ context.Context, in string) (string, error) {
			if in == "bad" {
				return in, assert.AnError
			}

			return strings.ToUpper(in), nil
		})).
		Build()
	require.NoError(t, err)

	core, logs := observer.New(zapcore.DebugLevel)

	var out bytes.Buffer

	handle := resultHandler(&out, nil, zap.New(core))

	ok := p.Execute(context.Background(), "ok")
	handle(context.Background(), worker.Item[string]{Value: "ok"}, ok, nil)

	bad := p.Execute(context.Background(), "bad")
	handle(context.Background(), worker.Item[string]{Value: "bad"}, bad, nil)

	handle(context.Background(), worker.Item[string]{Value: "lost"}, pipeline.Result[string]{Context: "lost"}, assert.AnError)

	assert.Equal(t, "OK\n", out.String())

	failed := logs.FilterMessage("run failed").All()
	require.Len(t, failed, 1)
	assert.Equal(t, bad.RunID.String(), failed[0].ContextMap()["run_id"])
	assert.Equal(t, 1, logs.FilterMessage("item failed").Len())
}
