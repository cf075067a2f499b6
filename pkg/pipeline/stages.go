package pipeline

import (
	"fmt"
	"math"
	"reflect"
	"sort"

	"github.com/featkit/featkit-go/pkg/quantity"
)

// Stage names used by the standard factories.
const (
	StageUnitRead      = "unit_read"
	StageUnitWrite     = "unit_write"
	StageMapper        = "mapper"
	StageReverseMapper = "reverse_mapper"
	StageMembership    = "membership"
	StageRangeChecker  = "range_checker"
)

// UnitRead builds the read-side unit stage: the raw device value picks
// up the configured unit. Plain numbers are assumed to be magnitudes in
// that unit; quantities are converted to it.
func UnitRead(u quantity.Unit) Stage {
	return Stage{Name: StageUnitRead, Apply: func(ctx Context, v any) (any, error) {
		if q, ok := v.(quantity.Quantity); ok {
			c, err := q.ToUnit(u)
			if err != nil {
				return nil, &ConversionError{Stage: StageUnitRead, Value: v, Err: err}
			}
			return c, nil
		}
		f, ok := toFloat64(v)
		if !ok {
			return nil, &ConversionError{Stage: StageUnitRead, Value: v,
				Err: fmt.Errorf("expected number or quantity, got %T", v)}
		}
		return quantity.Quantity{Value: f, Unit: u}, nil
	}}
}

// UnitWrite builds the write-side unit stage: caller input becomes a
// plain magnitude expressed in the configured unit. Plain numbers are
// assumed to already be in that unit.
func UnitWrite(u quantity.Unit) Stage {
	return Stage{Name: StageUnitWrite, Apply: func(ctx Context, v any) (any, error) {
		if q, ok := v.(quantity.Quantity); ok {
			m, err := q.Magnitude(u)
			if err != nil {
				return nil, &ConversionError{Stage: StageUnitWrite, Value: v, Err: err}
			}
			return m, nil
		}
		f, ok := toFloat64(v)
		if !ok {
			return nil, &ConversionError{Stage: StageUnitWrite, Value: v,
				Err: fmt.Errorf("expected number or quantity, got %T", v)}
		}
		return f, nil
	}}
}

// Mapper builds the write-side values stage: the input must be a key of
// the mapping and is replaced by the mapped device value.
func Mapper(values map[any]any) Stage {
	return Stage{Name: StageMapper, Apply: func(ctx Context, v any) (any, error) {
		if mapped, ok := values[v]; ok {
			return mapped, nil
		}
		return nil, &ValidationError{Stage: StageMapper, Value: v,
			Reason: fmt.Sprintf("not one of %s", keyList(values))}
	}}
}

// ReverseMapper builds the read-side values stage: the raw device value
// is mapped back to its key.
func ReverseMapper(values map[any]any) Stage {
	return Stage{Name: StageReverseMapper, Apply: func(ctx Context, v any) (any, error) {
		for key, mapped := range values {
			if reflect.DeepEqual(mapped, v) {
				return key, nil
			}
		}
		return nil, &ValidationError{Stage: StageReverseMapper, Value: v,
			Reason: "no mapping for raw value"}
	}}
}

// Membership builds the write-side stage for set-like values: the input
// must be a member and passes through unchanged.
func Membership(allowed map[any]struct{}) Stage {
	return Stage{Name: StageMembership, Apply: func(ctx Context, v any) (any, error) {
		if _, ok := allowed[v]; ok {
			return v, nil
		}
		return nil, &ValidationError{Stage: StageMembership, Value: v,
			Reason: "not a permitted value"}
	}}
}

// Range is a numeric limit. Max is inclusive. A non-zero Step restricts
// values to the grid Min + n*Step.
type Range struct {
	Min  float64
	Max  float64
	Step float64
}

// stepTolerance absorbs float rounding when checking the step grid.
const stepTolerance = 1e-9

// Contains reports whether v satisfies the range.
func (r Range) Contains(v float64) bool {
	if v < r.Min || v > r.Max {
		return false
	}
	if r.Step == 0 {
		return true
	}
	n := (v - r.Min) / r.Step
	return math.Abs(n-math.Round(n)) <= stepTolerance
}

// String formats the range for errors.
func (r Range) String() string {
	if r.Step != 0 {
		return fmt.Sprintf("[%g, %g] step %g", r.Min, r.Max, r.Step)
	}
	return fmt.Sprintf("[%g, %g]", r.Min, r.Max)
}

// RangeChecker builds the write-side limits stage. The value passes if
// ANY of the ranges accepts it.
func RangeChecker(ranges []Range) Stage {
	return Stage{Name: StageRangeChecker, Apply: func(ctx Context, v any) (any, error) {
		f, ok := toFloat64(v)
		if !ok {
			if q, isQ := v.(quantity.Quantity); isQ {
				f, ok = q.Value, true
			}
		}
		if !ok {
			return nil, &ValidationError{Stage: StageRangeChecker, Value: v,
				Reason: "not a numeric value"}
		}
		for _, r := range ranges {
			if r.Contains(f) {
				return v, nil
			}
		}
		return nil, &ValidationError{Stage: StageRangeChecker, Value: v,
			Reason: fmt.Sprintf("outside %s", rangeList(ranges))}
	}}
}

func keyList(values map[any]any) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, fmt.Sprint(k))
	}
	sort.Strings(keys)
	return fmt.Sprint(keys)
}

func rangeList(ranges []Range) string {
	if len(ranges) == 1 {
		return ranges[0].String()
	}
	out := ""
	for i, r := range ranges {
		if i > 0 {
			out += " or "
		}
		out += r.String()
	}
	return out
}

// toFloat64 widens any numeric value to float64.
func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
