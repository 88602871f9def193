package measure

import (
	"time"

	"github.com/askiada/go-pipeline-services/pkg/pipeline/model"
)

// Measure aggregates the metrics of every run of a pipeline.
type Measure interface {
	model.Instrumentation
	// AddMetric returns the metric of step, creating it if needed.
	AddMetric(step model.StepInfo) Metric
	GetMetric(name string) Metric
	AllMetrics() map[string]Metric
	// AddJump counts a jump between two steps.
	AddJump(from, to string)
	AllJumps() map[string]map[string]int64
	AddRun(elapsed time.Duration, shortCircuited bool)
	Runs() int64
	ShortCircuits() int64
	AVGRunDuration() time.Duration
}

// Metric aggregates the timings of a single step.
type Metric interface {
	Step() model.StepInfo
	AddDuration(elapsed time.Duration, success bool)
	AddError()
	AVGDuration() time.Duration
	Total() int64
	Failures() int64
	Errors() int64
}
