// Package zaplog logs pipeline runs with zap.
package zaplog

import (
	"context"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/askiada/go-pipeline-services/pkg/pipeline/model"
)

// Instrumentation logs run boundaries, errors and jumps. Step events are logged at the
// step level, debug by default.
type Instrumentation struct {
	logger    *zap.Logger
	stepLevel zapcore.Level
}

// Option configures the instrumentation.
type Option func(i *Instrumentation)

// WithStepLevel sets the level of step events.
func WithStepLevel(level zapcore.Level) Option {
	return func(i *Instrumentation) {
		i.stepLevel = level
	}
}

// New returns an instrumentation logging to logger.
func New(logger *zap.Logger, opts ...Option) *Instrumentation {
	if logger == nil {
		logger = zap.NewNop()
	}

	instr := &Instrumentation{
		logger:    logger,
		stepLevel: zapcore.DebugLevel,
	}

	for _, opt := range opts {
		opt(instr)
	}

	return instr
}

func (i *Instrumentation) BeginRun(_ context.Context, info model.RunInfo) model.RunRecorder {
	logger := i.logger.With(zap.String("pipeline", info.Pipeline), zap.Stringer("run_id", info.RunID))

	fields := []zap.Field{}
	if info.StartLabel != "" {
		fields = append(fields, zap.String("start_label", info.StartLabel))
	}

	logger.Debug("run started", fields...)

	return &recorder{logger: logger, stepLevel: i.stepLevel}
}

type recorder struct {
	logger    *zap.Logger
	stepLevel zapcore.Level
}

func (r *recorder) BeginStep(step model.StepInfo) {
	r.logger.Check(r.stepLevel, "step started").Write(zap.String("step", step.DisplayName()))
}

func (r *recorder) RecordTiming(step model.StepInfo, elapsed time.Duration, success bool) {
	r.logger.Check(r.stepLevel, "step finished").Write(
		zap.String("step", step.DisplayName()),
		zap.Duration("elapsed", elapsed),
		zap.Bool("success", success),
	)
}

func (r *recorder) RecordError(step model.StepInfo, err error) {
	r.logger.Warn("step error",
		zap.String("phase", step.Phase.String()),
		zap.String("step", step.DisplayName()),
		zap.Error(err),
	)
}

func (r *recorder) RecordJump(from, to model.StepInfo, delay time.Duration) {
	r.logger.Debug("jump",
		zap.String("from", from.DisplayName()),
		zap.String("to", to.DisplayName()),
		zap.Duration("delay", delay),
	)
}

func (r *recorder) EndRun(summary model.RunSummary) {
	fields := []zap.Field{
		zap.Bool("short_circuited", summary.ShortCircuited),
		zap.Int("errors", summary.Errors),
		zap.Int("jumps", summary.Jumps),
		zap.Duration("elapsed", summary.Elapsed),
	}

	if summary.Err != nil {
		r.logger.Error("run failed", append(fields, zap.Error(summary.Err))...)
		return
	}

	r.logger.Info("run finished", fields...)
}

var _ model.Instrumentation = (*Instrumentation)(nil)
