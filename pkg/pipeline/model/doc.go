// Package model provides the data structures shared by the pipeline package and its
// instrumentation backends.
// It defines the phases of a run, the description of every step and the contract used to
// observe a run while it executes.
package model
