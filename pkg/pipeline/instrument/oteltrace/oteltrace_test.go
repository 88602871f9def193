package oteltrace_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/askiada/go-pipeline-services/pkg/pipeline"
	"github.com/askiada/go-pipeline-services/pkg/pipeline/instrument/oteltrace"
)

func TestInstrumentation(t *testing.T) {
	t.Parallel()

	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	p, err := pipeline.NewBuilder[int]("traced").
		Instrumentation(oteltrace.New(oteltrace.WithTracerProvider(provider))).
		Main(pipeline.Func[int](func(in int) int { return in + 1 }), pipeline.StepLabel("inc")).
		Main(pipeline.JumpIf[int]("inc", func(in int) bool { return in < 2 }, 0)).
		Post(pipeline.TryFunc[int](func(_ context.Context, in int) (int, error) { return in, assert.AnError })).
		Build()
	require.NoError(t, err)

	_, err = p.Run(context.Background(), 0)
	require.Error(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 6)

	run := spans[len(spans)-1]
	assert.Equal(t, "pipeline.run", run.Name())
	assert.Equal(t, codes.Error, run.Status().Code)

	events := map[string]int{}
	for _, event := range run.Events() {
		events[event.Name]++
	}

	assert.Equal(t, map[string]int{"pipeline.jump": 1, "exception": 2}, events)

	for _, span := range spans[:len(spans)-1] {
		assert.Equal(t, "pipeline.step", span.Name())
		assert.Equal(t, run.SpanContext().SpanID(), span.Parent().SpanID())
	}

	assert.Equal(t, codes.Error, spans[len(spans)-2].Status().Code)
	assert.Equal(t, codes.Ok, spans[0].Status().Code)
}
