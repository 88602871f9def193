// Package report summarises a pipeline run as a JSON document.
package report

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/askiada/go-pipeline-services/pkg/pipeline"
)

// Report is the summary of a run. Latencies are in milliseconds, repeated steps add up.
type Report struct {
	CreatedAt         time.Time          `json:"createdAt"`
	ActionLatencyMs   map[string]float64 `json:"actionLatencyMs"`
	Pipeline          string             `json:"pipeline"`
	Errors            []string           `json:"errors,omitempty"`
	ErrorCount        int                `json:"errorCount"`
	Jumps             int                `json:"jumps"`
	PipelineLatencyMs float64            `json:"pipelineLatencyMs"`
	RunID             uuid.UUID          `json:"runId"`
	ShortCircuited    bool               `json:"shortCircuited"`
}

// FromResult summarises a finished run.
func FromResult[C any](res pipeline.Result[C]) Report {
	return build(res.Pipeline, res.RunID, res.ShortCircuited, res.Errors, res.Timings, len(res.Jumps), res.Elapsed)
}

// FromControl summarises a run that is still going, typically from a post action.
func FromControl(control *pipeline.StepControl) Report {
	return build(control.Pipeline(), control.RunID(), control.IsShortCircuited(), control.Errors(),
		control.Timings(), len(control.Jumps()), control.Elapsed())
}

func build(
	name string,
	runID uuid.UUID,
	shortCircuited bool,
	stepErrs []pipeline.StepError,
	timings []pipeline.StepTiming,
	jumps int,
	elapsed time.Duration,
) Report {
	rep := Report{
		Pipeline:          name,
		RunID:             runID,
		ShortCircuited:    shortCircuited,
		ErrorCount:        len(stepErrs),
		Jumps:             jumps,
		PipelineLatencyMs: millis(elapsed),
		ActionLatencyMs:   make(map[string]float64, len(timings)),
		CreatedAt:         time.Now().UTC(),
	}

	for _, stepErr := range stepErrs {
		rep.Errors = append(rep.Errors, stepErr.Error())
	}

	for _, timing := range timings {
		rep.ActionLatencyMs[timing.Name()] += millis(timing.Elapsed)
	}

	return rep
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// JSON encodes the report.
func (r Report) JSON() ([]byte, error) {
	body, err := json.Marshal(r)
	if err != nil {
		return nil, errors.Wrap(err, "unable to encode report")
	}

	return body, nil
}

func (r Report) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("pipeline", r.Pipeline)
	enc.AddString("runId", r.RunID.String())
	enc.AddBool("shortCircuited", r.ShortCircuited)
	enc.AddInt("errorCount", r.ErrorCount)
	enc.AddInt("jumps", r.Jumps)
	enc.AddFloat64("pipelineLatencyMs", r.PipelineLatencyMs)

	return enc.AddObject("actionLatencyMs", zapcore.ObjectMarshalerFunc(func(enc zapcore.ObjectEncoder) error {
		for name, ms := range r.ActionLatencyMs {
			enc.AddFloat64(name, ms)
		}

		return nil
	}))
}

// LogAction returns an action logging the report of the current run. It is meant to be
// registered as a post action and never fails the run.
func LogAction[C any](logger *zap.Logger) pipeline.Action[C] {
	if logger == nil {
		logger = zap.NewNop()
	}

	return pipeline.StepFunc[C](func(_ context.Context, in C, control *pipeline.StepControl) (C, error) {
		logger.Info("run report", zap.Object("report", FromControl(control)))

		return in, nil
	})
}
