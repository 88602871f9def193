// Package oteltrace traces pipeline runs with OpenTelemetry. Every run is a span and every
// action a child span of the run.
package oteltrace

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/askiada/go-pipeline-services/pkg/pipeline/model"
)

const tracerName = "github.com/askiada/go-pipeline-services/pkg/pipeline"

// Instrumentation starts spans from a tracer.
type Instrumentation struct {
	tracer trace.Tracer
}

// Option configures the instrumentation.
type Option func(i *Instrumentation)

// WithTracerProvider sets the provider of the tracer. The global provider is used otherwise.
func WithTracerProvider(provider trace.TracerProvider) Option {
	return func(i *Instrumentation) {
		i.tracer = provider.Tracer(tracerName)
	}
}

func New(opts ...Option) *Instrumentation {
	instr := &Instrumentation{tracer: otel.Tracer(tracerName)}
	for _, opt := range opts {
		opt(instr)
	}

	return instr
}

func (i *Instrumentation) BeginRun(ctx context.Context, info model.RunInfo) model.RunRecorder {
	ctx, span := i.tracer.Start(ctx, "pipeline.run",
		trace.WithTimestamp(info.StartedAt),
		trace.WithAttributes(
			attribute.String("pipeline.name", info.Pipeline),
			attribute.String("pipeline.run_id", info.RunID.String()),
		),
	)

	if info.StartLabel != "" {
		span.SetAttributes(attribute.String("pipeline.start_label", info.StartLabel))
	}

	return &recorder{tracer: i.tracer, ctx: ctx, run: span}
}

type recorder struct {
	tracer trace.Tracer
	ctx    context.Context //nolint:containedctx
	run    trace.Span
	step   trace.Span
}

func (r *recorder) BeginStep(step model.StepInfo) {
	_, r.step = r.tracer.Start(r.ctx, "pipeline.step", trace.WithAttributes(
		attribute.String("pipeline.phase", step.Phase.String()),
		attribute.Int("pipeline.step.index", step.Index),
		attribute.String("pipeline.step.name", step.DisplayName()),
	))
}

func (r *recorder) RecordTiming(_ model.StepInfo, elapsed time.Duration, success bool) {
	if r.step == nil {
		return
	}

	r.step.SetAttributes(attribute.Int64("pipeline.step.elapsed_us", elapsed.Microseconds()))

	if success {
		r.step.SetStatus(codes.Ok, "")
	} else {
		r.step.SetStatus(codes.Error, "action failed")
	}

	r.step.End()
}

func (r *recorder) RecordError(step model.StepInfo, err error) {
	r.run.RecordError(err, trace.WithAttributes(attribute.String("pipeline.step.name", step.DisplayName())))
}

func (r *recorder) RecordJump(from, to model.StepInfo, delay time.Duration) {
	r.run.AddEvent("pipeline.jump", trace.WithAttributes(
		attribute.String("pipeline.jump.from", from.DisplayName()),
		attribute.String("pipeline.jump.to", to.DisplayName()),
		attribute.Int64("pipeline.jump.delay_ms", delay.Milliseconds()),
	))
}

func (r *recorder) EndRun(summary model.RunSummary) {
	r.run.SetAttributes(
		attribute.Bool("pipeline.short_circuited", summary.ShortCircuited),
		attribute.Int("pipeline.errors", summary.Errors),
		attribute.Int("pipeline.jumps", summary.Jumps),
	)

	if summary.Err != nil {
		r.run.RecordError(summary.Err)
		r.run.SetStatus(codes.Error, "pipeline run failed")
	} else {
		r.run.SetStatus(codes.Ok, "pipeline run completed")
	}

	r.run.End()
}

var _ model.Instrumentation = (*Instrumentation)(nil)
