package model

import "fmt"

// Phase is the section of a pipeline a step belongs to.
type Phase int

const (
	PhasePre Phase = iota
	PhaseMain
	PhasePost
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhasePre:
		return "pre"
	case PhaseMain:
		return "main"
	case PhasePost:
		return "post"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Prefix returns the prefix used to build step names of the phase.
func (p Phase) Prefix() string {
	switch p {
	case PhasePre:
		return "pre"
	case PhasePost:
		return "post"
	default:
		return "s"
	}
}

// StepInfo describes a step of a pipeline.
type StepInfo struct {
	Phase Phase
	Index int
	Name  string
	Label string
}

// DisplayName returns the name used in errors, timings and metrics.
// Unnamed steps are reported as "pre0", "s1" or "post2"; named steps as "s1:name".
func (s StepInfo) DisplayName() string {
	return FormatStepName(s.Phase, s.Index, s.Name)
}

// FormatStepName builds the display name of a step.
func FormatStepName(phase Phase, index int, name string) string {
	if name == "" {
		return fmt.Sprintf("%s%d", phase.Prefix(), index)
	}

	return fmt.Sprintf("%s%d:%s", phase.Prefix(), index, name)
}

var (
	// StartStep is the virtual step every drawn pipeline starts from.
	StartStep = StepInfo{Phase: PhasePre, Index: -1, Name: "start"}
	// EndStep is the virtual step every drawn pipeline ends on.
	EndStep = StepInfo{Phase: PhasePost, Index: -1, Name: "end"}
)
