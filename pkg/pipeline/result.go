package pipeline

import (
	"time"

	"github.com/google/uuid"
)

// Result is everything a run produced.
type Result[C any] struct {
	Context        C
	fatal          error
	Pipeline       string
	Errors         []StepError
	Timings        []StepTiming
	Jumps          []JumpRecord
	Elapsed        time.Duration
	RunID          uuid.UUID
	ShortCircuited bool
}

func newResult[C any](control *StepControl, value C, elapsed time.Duration) Result[C] {
	return Result[C]{
		Context:        value,
		fatal:          control.fatal,
		Pipeline:       control.pipeline,
		Errors:         control.Errors(),
		Timings:        control.Timings(),
		Jumps:          control.Jumps(),
		Elapsed:        elapsed,
		RunID:          control.runID,
		ShortCircuited: control.shortCircuited,
	}
}

// HasErrors reports whether at least one error was recorded, fatal or not.
func (r Result[C]) HasErrors() bool {
	return len(r.Errors) > 0
}

// Err returns the error that stopped the run, nil when errors were swallowed.
// The returned error is a StepError.
func (r Result[C]) Err() error {
	return r.fatal
}

// Timing returns the total time spent in the steps named name.
func (r Result[C]) Timing(name string) (time.Duration, bool) {
	var (
		total time.Duration
		found bool
	)

	for _, timing := range r.Timings {
		if timing.Name() == name {
			total += timing.Elapsed
			found = true
		}
	}

	return total, found
}
