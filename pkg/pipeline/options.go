package pipeline

import (
	"context"

	"github.com/askiada/go-pipeline-services/pkg/pipeline/model"
)

// DefaultMaxJumps is the number of jumps a run may take before it is stopped.
const DefaultMaxJumps = 1000

type stepConfig struct {
	name  string
	label string
}

// StepOption configures a step when it is added to a pipeline.
type StepOption func(cfg *stepConfig)

// StepName sets the name used in step errors, timings and metrics.
func StepName(name string) StepOption {
	return func(cfg *stepConfig) {
		cfg.name = name
	}
}

// StepLabel sets the label other main actions can jump to. The label is also used as the
// step name when no name is set.
func StepLabel(label string) StepOption {
	return func(cfg *stepConfig) {
		cfg.label = label
	}
}

func newStepConfig(opts []StepOption) stepConfig {
	cfg := stepConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.name == "" {
		cfg.name = cfg.label
	}

	return cfg
}

// ErrorHandler receives the value a failed action was applied to and returns the value the
// run continues with.
type ErrorHandler[C any] func(in C, err StepError) C

// Hook runs around every main action.
type Hook[C any] func(ctx context.Context, in C, step model.StepInfo) C

type registeredStep[C any] struct {
	action Action[C]
	info   model.StepInfo
}
