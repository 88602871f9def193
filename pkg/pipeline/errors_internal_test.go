package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/go-pipeline-services/pkg/pipeline/model"
)

func TestOutcome(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		outcome   Outcome[int]
		wantKind  Kind
		wantValue int
		wantLabel string
		wantDelay time.Duration
		wantErr   error
	}{
		"continue":      {outcome: Continue(1), wantKind: KindContinue, wantValue: 1},
		"short-circuit": {outcome: ShortCircuit(2), wantKind: KindShortCircuit, wantValue: 2},
		"jump":          {outcome: Jump(3, "a"), wantKind: KindJump, wantValue: 3, wantLabel: "a"},
		"jump after":    {outcome: JumpAfter(4, "b", time.Second), wantKind: KindJump, wantValue: 4, wantLabel: "b", wantDelay: time.Second},
		"fail":          {outcome: Fail[int](assert.AnError), wantKind: KindFail, wantErr: assert.AnError},
		"fail nil":      {outcome: Fail[int](nil), wantKind: KindFail, wantErr: ErrUnknownActionFail},
	}

	for name, tc := range tcs {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.wantKind, tc.outcome.Kind())
			assert.Equal(t, tc.wantValue, tc.outcome.Value())
			assert.Equal(t, tc.wantLabel, tc.outcome.Label())
			assert.Equal(t, tc.wantDelay, tc.outcome.Delay())
			assert.Equal(t, tc.wantErr, tc.outcome.Err())
		})
	}
}

func TestKindString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "continue", KindContinue.String())
	assert.Equal(t, "short-circuit", KindShortCircuit.String())
	assert.Equal(t, "jump", KindJump.String())
	assert.Equal(t, "fail", KindFail.String())
	assert.Equal(t, "unknown", Kind(42).String())
}

func TestInvokeRecoversPanic(t *testing.T) {
	t.Parallel()

	out := invoke[int](context.Background(), Func[int](func(int) int { panic("boom") }), 1, newStepControl("p"))
	require.Equal(t, KindFail, out.Kind())
	assert.ErrorIs(t, out.Err(), ErrActionPanic)
}

func TestStepControl(t *testing.T) {
	t.Parallel()

	control := newStepControl("p")
	first := control.RunID()
	step := model.StepInfo{Phase: model.PhaseMain, Index: 1, Name: "x"}

	control.beginStep(step)
	control.recordTiming(time.Millisecond, true)
	control.RecordError(assert.AnError)
	control.recordJump(model.StepInfo{Phase: model.PhaseMain, Index: 0, Label: "a"}, "a", 0)

	assert.Equal(t, step, control.Step())
	assert.Len(t, control.Timings(), 1)
	assert.Len(t, control.Errors(), 1)
	assert.Len(t, control.Jumps(), 1)
	assert.False(t, control.IsShortCircuited())
	assert.Nil(t, control.fatal)

	stepErr := control.fail(assert.AnError)
	control.fail(ErrUnknownLabel)
	assert.True(t, control.IsShortCircuited())
	assert.Equal(t, stepErr, control.fatal)
	assert.Len(t, control.Errors(), 3)

	errs := control.Errors()
	errs[0].Err = nil
	assert.Equal(t, assert.AnError, control.Errors()[0].Err)

	control.reset()
	assert.NotEqual(t, first, control.RunID())
	assert.Empty(t, control.Errors())
	assert.Empty(t, control.Timings())
	assert.Empty(t, control.Jumps())
	assert.False(t, control.IsShortCircuited())
	assert.Nil(t, control.fatal)
	assert.GreaterOrEqual(t, control.Elapsed(), time.Duration(0))
	assert.False(t, control.RunStart().IsZero())
}
