package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/askiada/go-pipeline-services/pkg/pipeline/model"
)

// StepTiming is the duration of a single action.
type StepTiming struct {
	Step    model.StepInfo
	Elapsed time.Duration
	Success bool
}

// Name returns the display name of the timed step.
func (t StepTiming) Name() string {
	return t.Step.DisplayName()
}

// JumpRecord is a jump taken during a run.
type JumpRecord struct {
	From  model.StepInfo
	To    model.StepInfo
	Label string
	Delay time.Duration
}

// StepControl is the state of a single run. A new one is created for every run and it is
// never shared between runs, actions can use it to inspect the current step, record errors
// and short-circuit the run.
type StepControl struct {
	runStart       time.Time
	recorder       model.RunRecorder
	fatal          error
	pipeline       string
	step           model.StepInfo
	errs           []StepError
	timings        []StepTiming
	jumps          []JumpRecord
	runID          uuid.UUID
	shortCircuited bool
}

var discardRecorder = model.NoopInstrumentation{}.BeginRun(context.Background(), model.RunInfo{})

func newStepControl(pipeline string) *StepControl {
	return &StepControl{
		pipeline: pipeline,
		runID:    uuid.New(),
		runStart: time.Now(),
		recorder: discardRecorder,
	}
}

// ShortCircuit marks the run as short-circuited. The flag cannot be cleared.
func (c *StepControl) ShortCircuit() {
	c.shortCircuited = true
}

// IsShortCircuited reports whether the run has been short-circuited.
func (c *StepControl) IsShortCircuited() bool {
	return c.shortCircuited
}

// RecordError records err against the current step without failing it.
func (c *StepControl) RecordError(err error) {
	if err == nil {
		return
	}

	c.recordError(err)
}

// Errors returns the errors recorded so far, oldest first.
func (c *StepControl) Errors() []StepError {
	return append([]StepError(nil), c.errs...)
}

// Timings returns the timings recorded so far, oldest first.
func (c *StepControl) Timings() []StepTiming {
	return append([]StepTiming(nil), c.timings...)
}

// Jumps returns the jumps taken so far, oldest first.
func (c *StepControl) Jumps() []JumpRecord {
	return append([]JumpRecord(nil), c.jumps...)
}

// Step returns the step being executed.
func (c *StepControl) Step() model.StepInfo {
	return c.step
}

func (c *StepControl) Phase() model.Phase {
	return c.step.Phase
}

func (c *StepControl) Index() int {
	return c.step.Index
}

// StepName returns the display name of the current step.
func (c *StepControl) StepName() string {
	return c.step.DisplayName()
}

func (c *StepControl) Pipeline() string {
	return c.pipeline
}

func (c *StepControl) RunID() uuid.UUID {
	return c.runID
}

func (c *StepControl) RunStart() time.Time {
	return c.runStart
}

// Elapsed returns the time spent since the run started.
func (c *StepControl) Elapsed() time.Duration {
	return time.Since(c.runStart)
}

func (c *StepControl) beginStep(step model.StepInfo) {
	c.step = step
	c.recorder.BeginStep(step)
}

func (c *StepControl) recordTiming(elapsed time.Duration, success bool) {
	c.timings = append(c.timings, StepTiming{Step: c.step, Elapsed: elapsed, Success: success})
	c.recorder.RecordTiming(c.step, elapsed, success)
}

func (c *StepControl) recordError(err error) StepError {
	stepErr := StepError{Pipeline: c.pipeline, Step: c.step, Err: err}
	c.errs = append(c.errs, stepErr)
	c.recorder.RecordError(c.step, err)

	return stepErr
}

func (c *StepControl) recordJump(to model.StepInfo, label string, delay time.Duration) {
	c.jumps = append(c.jumps, JumpRecord{From: c.step, To: to, Label: label, Delay: delay})
	c.recorder.RecordJump(c.step, to, delay)
}

// fail records err as the error that stops the run.
func (c *StepControl) fail(err error) StepError {
	stepErr := c.recordError(err)
	if c.fatal == nil {
		c.fatal = stepErr
	}

	c.shortCircuited = true

	return stepErr
}

func (c *StepControl) reset() {
	c.runID = uuid.New()
	c.runStart = time.Now()
	c.step = model.StepInfo{}
	c.errs = nil
	c.timings = nil
	c.jumps = nil
	c.fatal = nil
	c.shortCircuited = false
}
