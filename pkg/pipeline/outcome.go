package pipeline

import "time"

// Kind tells the engine what to do after an action returned.
type Kind int

const (
	// KindContinue moves to the next action.
	KindContinue Kind = iota
	// KindShortCircuit stops the main phase, post actions still run.
	KindShortCircuit
	// KindJump resumes the main phase at a labeled action.
	KindJump
	// KindFail records an error, the short-circuit policy decides what happens next.
	KindFail
)

func (k Kind) String() string {
	switch k {
	case KindContinue:
		return "continue"
	case KindShortCircuit:
		return "short-circuit"
	case KindJump:
		return "jump"
	case KindFail:
		return "fail"
	default:
		return "unknown"
	}
}

// Outcome is the value returned by an action.
type Outcome[C any] struct {
	value C
	err   error
	label string
	delay time.Duration
	kind  Kind
}

// Continue returns an outcome carrying the new context value.
func Continue[C any](value C) Outcome[C] {
	return Outcome[C]{kind: KindContinue, value: value}
}

// ShortCircuit returns an outcome that ends the main phase with value.
func ShortCircuit[C any](value C) Outcome[C] {
	return Outcome[C]{kind: KindShortCircuit, value: value}
}

// Jump returns an outcome that resumes the main phase at label with value.
func Jump[C any](value C, label string) Outcome[C] {
	return Outcome[C]{kind: KindJump, value: value, label: label}
}

// JumpAfter is like Jump but waits delay before resuming.
func JumpAfter[C any](value C, label string, delay time.Duration) Outcome[C] {
	return Outcome[C]{kind: KindJump, value: value, label: label, delay: delay}
}

// Fail returns a failed outcome. The context value is left as it was before the action.
func Fail[C any](err error) Outcome[C] {
	if err == nil {
		err = ErrUnknownActionFail
	}

	return Outcome[C]{kind: KindFail, err: err}
}

func (o Outcome[C]) Kind() Kind {
	return o.kind
}

func (o Outcome[C]) Value() C {
	return o.value
}

func (o Outcome[C]) Err() error {
	return o.err
}

func (o Outcome[C]) Label() string {
	return o.label
}

func (o Outcome[C]) Delay() time.Duration {
	return o.delay
}
