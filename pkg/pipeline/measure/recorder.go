package measure

import (
	"context"
	"time"

	"github.com/askiada/go-pipeline-services/pkg/pipeline/model"
)

type runRecorder struct {
	Measure
}

// BeginRun returns a recorder feeding the measure.
func (m *DefaultMeasure) BeginRun(_ context.Context, _ model.RunInfo) model.RunRecorder {
	return &runRecorder{m}
}

func (rr *runRecorder) BeginStep(step model.StepInfo) {
	rr.AddMetric(step)
}

func (rr *runRecorder) RecordTiming(step model.StepInfo, elapsed time.Duration, success bool) {
	rr.AddMetric(step).AddDuration(elapsed, success)
}

func (rr *runRecorder) RecordError(step model.StepInfo, _ error) {
	rr.AddMetric(step).AddError()
}

func (rr *runRecorder) RecordJump(from, to model.StepInfo, _ time.Duration) {
	rr.AddJump(from.DisplayName(), to.DisplayName())
}

func (rr *runRecorder) EndRun(summary model.RunSummary) {
	rr.AddRun(summary.Elapsed, summary.ShortCircuited)
}
