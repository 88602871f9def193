package model

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RunInfo describes a run when it starts.
type RunInfo struct {
	Pipeline   string
	RunID      uuid.UUID
	StartLabel string
	StartedAt  time.Time
}

// RunSummary describes a run once post actions are done.
type RunSummary struct {
	Pipeline       string
	RunID          uuid.UUID
	ShortCircuited bool
	Errors         int
	Jumps          int
	Elapsed        time.Duration
	// Err is the error that stopped the run, nil when every error was swallowed.
	Err error
}

// Instrumentation observes pipeline runs.
type Instrumentation interface {
	// BeginRun is called before the first pre action. The returned recorder receives every
	// event of that run and only of that run.
	BeginRun(ctx context.Context, info RunInfo) RunRecorder
}

// RunRecorder receives the events of a single run. Events of a run are delivered
// sequentially from the goroutine executing the run.
type RunRecorder interface {
	// BeginStep runs before an action is applied.
	BeginStep(step StepInfo)
	// RecordTiming runs after an action returned.
	RecordTiming(step StepInfo, elapsed time.Duration, success bool)
	// RecordError runs for every recorded error, fatal or not.
	RecordError(step StepInfo, err error)
	// RecordJump runs once a jump has been resolved, before the delay.
	RecordJump(from StepInfo, to StepInfo, delay time.Duration)
	// EndRun runs after the last post action.
	EndRun(summary RunSummary)
}

// NoopInstrumentation discards every event.
type NoopInstrumentation struct{}

// BeginRun returns a recorder that discards every event.
func (NoopInstrumentation) BeginRun(context.Context, RunInfo) RunRecorder {
	return noopRecorder{}
}

type noopRecorder struct{}

func (noopRecorder) BeginStep(StepInfo) {}
func (noopRecorder) RecordTiming(StepInfo, time.Duration, bool) {}
func (noopRecorder) RecordError(StepInfo, error) {}
func (noopRecorder) RecordJump(StepInfo, StepInfo, time.Duration) {}
func (noopRecorder) EndRun(RunSummary) {}

// Multi fans events out to several instrumentations, in order.
type Multi []Instrumentation

// Combine returns an instrumentation forwarding to all the non nil instrumentations.
func Combine(instrs ...Instrumentation) Instrumentation {
	out := make(Multi, 0, len(instrs))
	for _, instr := range instrs {
		if instr != nil {
			out = append(out, instr)
		}
	}

	switch len(out) {
	case 0:
		return NoopInstrumentation{}
	case 1:
		return out[0]
	default:
		return out
	}
}

// BeginRun starts the run on every instrumentation.
func (m Multi) BeginRun(ctx context.Context, info RunInfo) RunRecorder {
	recs := make(multiRecorder, 0, len(m))
	for _, instr := range m {
		recs = append(recs, instr.BeginRun(ctx, info))
	}

	return recs
}

type multiRecorder []RunRecorder

func (m multiRecorder) BeginStep(step StepInfo) {
	for _, rec := range m {
		rec.BeginStep(step)
	}
}

func (m multiRecorder) RecordTiming(step StepInfo, elapsed time.Duration, success bool) {
	for _, rec := range m {
		rec.RecordTiming(step, elapsed, success)
	}
}

func (m multiRecorder) RecordError(step StepInfo, err error) {
	for _, rec := range m {
		rec.RecordError(step, err)
	}
}

func (m multiRecorder) RecordJump(from, to StepInfo, delay time.Duration) {
	for _, rec := range m {
		rec.RecordJump(from, to, delay)
	}
}

func (m multiRecorder) EndRun(summary RunSummary) {
	for _, rec := range m {
		rec.EndRun(summary)
	}
}

var (
	_ Instrumentation = NoopInstrumentation{}
	_ Instrumentation = Multi{}
)
