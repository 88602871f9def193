// Package pipeline provides an action pipeline for processing a single context value.
//
// A pipeline is made of three phases. Pre actions run once to prepare the value, main actions
// do the work and post actions always run, even when the run was short-circuited. Every
// action returns an Outcome telling the engine to continue, short-circuit, jump to a labeled
// main action or fail.
//
// Errors are recorded with the phase, index and name of the step that raised them. When the
// pipeline short-circuits on error, the first error stops the current phase and is returned by
// Run; otherwise errors are recorded and the run continues with the next action.
//
// Pipelines are built once with a Builder and hold no run state, so a single pipeline can be
// executed concurrently. All the state of a run lives in a StepControl created for that run.
package pipeline
