package pipeline

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/askiada/go-pipeline-services/pkg/pipeline/model"
)

var (
	ErrNilAction         = errors.New("action must be set")
	ErrEmptyName         = errors.New("pipeline name must be set")
	ErrDuplicateLabel    = errors.New("duplicate label")
	ErrUnknownLabel      = errors.New("unknown label")
	ErrMaxJumpsExceeded  = errors.New("max jumps exceeded")
	ErrInvalidMaxJumps   = errors.New("max jumps must be >= 0")
	ErrJumpOutsidePhase  = errors.New("jumps are only allowed in the main phase")
	ErrActionPanic       = errors.New("action panicked")
	ErrUnknownActionFail = errors.New("action failed without an error")
)

// StepError is an error raised while a step was running.
type StepError struct {
	Pipeline string
	Step     model.StepInfo
	Err      error
}

func (e StepError) Error() string {
	return fmt.Sprintf("pipeline %s step %s: %v", e.Pipeline, e.Step.DisplayName(), e.Err)
}

func (e StepError) Unwrap() error {
	return e.Err
}
