package pipeline_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/askiada/go-pipeline-services/pkg/pipeline"
	"github.com/askiada/go-pipeline-services/pkg/pipeline/model"
)

func appendAction(t *testing.T, s string) pipeline.Action[string] {
	t.Helper()

	return pipeline.Func[string](func(in string) string {
		return in + s
	})
}

func failAction(t *testing.T, err error) pipeline.Action[string] {
	t.Helper()

	return pipeline.TryFunc[string](func(_ context.Context, in string) (string, error) {
		return in + "!", err
	})
}

func timingNames[C any](t *testing.T, res pipeline.Result[C]) []string {
	t.Helper()

	var names []string
	for _, timing := range res.Timings {
		names = append(names, timing.Name())
	}

	return names
}

func errorNames[C any](t *testing.T, res pipeline.Result[C]) []string {
	t.Helper()

	var names []string
	for _, stepErr := range res.Errors {
		names = append(names, stepErr.Step.DisplayName())
	}

	return names
}

// eventRecorder is an instrumentation keeping every event as a string.
type eventRecorder struct {
	mu     sync.Mutex
	events []string
}

func (r *eventRecorder) BeginRun(_ context.Context, info model.RunInfo) model.RunRecorder {
	r.add("begin " + info.Pipeline + " " + info.StartLabel)
	return r
}

func (r *eventRecorder) BeginStep(step model.StepInfo) {
	r.add("step " + step.DisplayName())
}

func (r *eventRecorder) RecordTiming(step model.StepInfo, _ time.Duration, success bool) {
	if success {
		r.add("ok " + step.DisplayName())
		return
	}

	r.add("ko " + step.DisplayName())
}

func (r *eventRecorder) RecordError(step model.StepInfo, _ error) {
	r.add("error " + step.DisplayName())
}

func (r *eventRecorder) RecordJump(from, to model.StepInfo, _ time.Duration) {
	r.add("jump " + from.DisplayName() + " " + to.DisplayName())
}

func (r *eventRecorder) EndRun(summary model.RunSummary) {
	state := "done"
	if summary.ShortCircuited {
		state = "short-circuited"
	}

	r.add(strings.TrimSpace("end " + summary.Pipeline + " " + state))
}

func (r *eventRecorder) add(event string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, strings.TrimSpace(event))
}

func (r *eventRecorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]string(nil), r.events...)
}
