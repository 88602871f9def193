// Package prom exports pipeline runs as Prometheus metrics.
package prom

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/askiada/go-pipeline-services/pkg/pipeline/model"
)

const (
	outcomeCompleted      = "completed"
	outcomeShortCircuited = "short_circuited"
	outcomeFailed         = "failed"
)

// Instrumentation records run and step metrics.
type Instrumentation struct {
	runs         *prometheus.CounterVec
	runDuration  *prometheus.HistogramVec
	stepDuration *prometheus.HistogramVec
	stepErrors   *prometheus.CounterVec
	jumps        *prometheus.CounterVec
}

// New creates the metrics under namespace and registers them on reg.
func New(reg prometheus.Registerer, namespace string) (*Instrumentation, error) {
	instr := &Instrumentation{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_runs_total",
			Help:      "Number of pipeline runs by outcome.",
		}, []string{"pipeline", "outcome"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_run_duration_seconds",
			Help:      "Duration of pipeline runs, pre to post.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"pipeline"}),
		stepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_step_duration_seconds",
			Help:      "Duration of pipeline actions.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"pipeline", "phase", "step", "success"}),
		stepErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_step_errors_total",
			Help:      "Number of errors recorded by pipeline actions.",
		}, []string{"pipeline", "phase", "step"}),
		jumps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_jumps_total",
			Help:      "Number of jumps taken between pipeline actions.",
		}, []string{"pipeline", "from", "to"}),
	}

	for _, collector := range []prometheus.Collector{instr.runs, instr.runDuration, instr.stepDuration, instr.stepErrors, instr.jumps} {
		err := reg.Register(collector)
		if err != nil {
			return nil, errors.Wrap(err, "unable to register pipeline metrics")
		}
	}

	return instr, nil
}

func (i *Instrumentation) BeginRun(_ context.Context, info model.RunInfo) model.RunRecorder {
	return &recorder{Instrumentation: i, pipeline: info.Pipeline}
}

type recorder struct {
	*Instrumentation
	pipeline string
}

func (r *recorder) BeginStep(model.StepInfo) {}

func (r *recorder) RecordTiming(step model.StepInfo, elapsed time.Duration, success bool) {
	label := "false"
	if success {
		label = "true"
	}

	r.stepDuration.WithLabelValues(r.pipeline, step.Phase.String(), step.DisplayName(), label).Observe(elapsed.Seconds())
}

func (r *recorder) RecordError(step model.StepInfo, _ error) {
	r.stepErrors.WithLabelValues(r.pipeline, step.Phase.String(), step.DisplayName()).Inc()
}

func (r *recorder) RecordJump(from, to model.StepInfo, _ time.Duration) {
	r.jumps.WithLabelValues(r.pipeline, from.DisplayName(), to.DisplayName()).Inc()
}

func (r *recorder) EndRun(summary model.RunSummary) {
	outcome := outcomeCompleted

	switch {
	case summary.Err != nil:
		outcome = outcomeFailed
	case summary.ShortCircuited:
		outcome = outcomeShortCircuited
	}

	r.runs.WithLabelValues(r.pipeline, outcome).Inc()
	r.runDuration.WithLabelValues(r.pipeline).Observe(summary.Elapsed.Seconds())
}

var _ model.Instrumentation = (*Instrumentation)(nil)

// Runs returns the run counter, labeled by pipeline and outcome.
func (i *Instrumentation) Runs() *prometheus.CounterVec {
	return i.runs
}

// StepErrors returns the step error counter, labeled by pipeline, phase and step.
func (i *Instrumentation) StepErrors() *prometheus.CounterVec {
	return i.stepErrors
}

// Jumps returns the jump counter, labeled by pipeline, source and target step.
func (i *Instrumentation) Jumps() *prometheus.CounterVec {
	return i.jumps
}
