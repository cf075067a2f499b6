package pipeline

import (
	"errors"
	"fmt"
)

// Direction indicates which access path a pipeline serves.
type Direction uint8

const (
	// DirectionRead transforms raw device output toward the caller.
	DirectionRead Direction = 0

	// DirectionWrite transforms caller input toward the device.
	DirectionWrite Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionRead:
		return "READ"
	case DirectionWrite:
		return "WRITE"
	default:
		return "UNKNOWN"
	}
}

// Context carries access metadata into stages.
type Context struct {
	// Attr is the attribute name being accessed.
	Attr string

	// Key is the indexed-attribute key, nil for plain attributes.
	Key any

	// Direction of the running pipeline.
	Direction Direction
}

// Func is a single value transformation. It returns the transformed
// value or an error describing why the input was rejected.
type Func func(ctx Context, v any) (any, error)

// Stage is one named transformation within a pipeline.
type Stage struct {
	// Name identifies the stage in errors and logs.
	Name string

	// Apply performs the transformation.
	Apply Func
}

// Pipeline is an ordered stage sequence. The zero value is a valid
// empty pipeline that passes values through unchanged.
type Pipeline struct {
	Direction Direction
	Stages    []Stage
}

// Append returns p extended with the given stage. The receiver is not
// modified.
func (p Pipeline) Append(s Stage) Pipeline {
	stages := make([]Stage, 0, len(p.Stages)+1)
	stages = append(stages, p.Stages...)
	stages = append(stages, s)
	return Pipeline{Direction: p.Direction, Stages: stages}
}

// Reversed returns p with the stage order inverted. Read pipelines are
// built in modifier order and reversed before use, so the stage closest
// to the raw device value runs first.
func (p Pipeline) Reversed() Pipeline {
	stages := make([]Stage, len(p.Stages))
	for i, s := range p.Stages {
		stages[len(p.Stages)-1-i] = s
	}
	return Pipeline{Direction: p.Direction, Stages: stages}
}

// Run executes the stages in order, stopping at the first error.
// Stage errors that do not already identify their stage are wrapped in
// a StageError carrying the stage name.
func (p Pipeline) Run(ctx Context, v any) (any, error) {
	ctx.Direction = p.Direction
	for _, s := range p.Stages {
		out, err := s.Apply(ctx, v)
		if err != nil {
			if StageName(err) == "" {
				err = &StageError{Stage: s.Name, Err: err}
			}
			return nil, err
		}
		v = out
	}
	return v, nil
}

// ValidationError reports a value rejected by a stage.
type ValidationError struct {
	// Stage that rejected the value.
	Stage string

	// Value as presented to the stage.
	Value any

	// Reason describes the rejection.
	Reason string
}

// Error implements error.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("stage %s rejected %v: %s", e.Stage, e.Value, e.Reason)
}

// ConversionError reports a value a stage could not convert.
type ConversionError struct {
	// Stage that failed.
	Stage string

	// Value as presented to the stage.
	Value any

	// Err is the underlying conversion failure.
	Err error
}

// Error implements error.
func (e *ConversionError) Error() string {
	return fmt.Sprintf("stage %s cannot convert %v: %v", e.Stage, e.Value, e.Err)
}

// Unwrap returns the underlying failure.
func (e *ConversionError) Unwrap() error { return e.Err }

// StageError wraps an error from a driver-supplied stage func with the
// stage name.
type StageError struct {
	Stage string
	Err   error
}

// Error implements error.
func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying failure.
func (e *StageError) Unwrap() error { return e.Err }

// StageName extracts the failing stage from a pipeline error, or ""
// if the error does not identify one.
func StageName(err error) string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Stage
	}
	var ce *ConversionError
	if errors.As(err, &ce) {
		return ce.Stage
	}
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}
