// Package pipeline implements ordered value-transformation chains for
// feat read and write paths.
//
// A Pipeline is a sequence of named stages executed fail-fast: the first
// stage error aborts the run and is returned to the caller. Stages are
// pure with respect to the pipeline; all configuration is captured at
// construction time, so two pipelines built from the same inputs behave
// identically.
//
// Factories in this package build the standard stages used by feat
// modifiers: unit attachment/conversion, forward and reverse value
// mapping, membership restriction, and range checking. Driver authors
// supply additional stages as plain Funcs.
package pipeline
