package feat

import (
	"fmt"
	"sync"

	"github.com/featkit/featkit-go/pkg/pipeline"
	"github.com/featkit/featkit-go/pkg/quantity"
)

// ModifierKey identifies one of the five recognized modifiers. Only
// these keys participate in pipeline rebuilds.
type ModifierKey uint8

const (
	// KeyValues maps or restricts caller values.
	KeyValues ModifierKey = iota

	// KeyUnits sets the attribute unit.
	KeyUnits

	// KeyLimits restricts numeric values to ranges (write side only).
	KeyLimits

	// KeyGetFuncs appends custom read-side transforms.
	KeyGetFuncs

	// KeySetFuncs appends custom write-side transforms.
	KeySetFuncs
)

// modifierNames maps keys to the names proxies dispatch on.
var modifierNames = map[ModifierKey]string{
	KeyValues:   "values",
	KeyUnits:    "units",
	KeyLimits:   "limits",
	KeyGetFuncs: "get_funcs",
	KeySetFuncs: "set_funcs",
}

// String returns the modifier name.
func (k ModifierKey) String() string {
	if n, ok := modifierNames[k]; ok {
		return n
	}
	return "unknown"
}

// ParseModifierKey resolves a modifier name. ok is false for
// unrecognized names.
func ParseModifierKey(name string) (ModifierKey, bool) {
	for k, n := range modifierNames {
		if n == name {
			return k, true
		}
	}
	return 0, false
}

// ValuesSpec is the values modifier: either a mapping from caller
// values to device values, or a plain membership restriction. Exactly
// one of Mapping and Members is set.
type ValuesSpec struct {
	// Mapping maps caller values to raw device values.
	Mapping map[any]any

	// Members restricts caller values without mapping them.
	Members []any
}

// MapValues builds a mapping ValuesSpec.
func MapValues(mapping map[any]any) *ValuesSpec {
	return &ValuesSpec{Mapping: mapping}
}

// RestrictValues builds a membership ValuesSpec.
func RestrictValues(members ...any) *ValuesSpec {
	return &ValuesSpec{Members: members}
}

// memberSet returns the membership set for pipeline construction.
func (v *ValuesSpec) memberSet() map[any]struct{} {
	set := make(map[any]struct{}, len(v.Members))
	for _, m := range v.Members {
		set[m] = struct{}{}
	}
	return set
}

// Modifiers holds the five recognized modifier values for one scope.
// Zero fields mean "unset".
type Modifiers struct {
	Values   *ValuesSpec
	Units    string
	Limits   []pipeline.Range
	GetFuncs []pipeline.Func
	SetFuncs []pipeline.Func
}

// value returns the modifier for key as an untyped value.
func (m Modifiers) value(key ModifierKey) any {
	switch key {
	case KeyValues:
		return m.Values
	case KeyUnits:
		return m.Units
	case KeyLimits:
		return m.Limits
	case KeyGetFuncs:
		return m.GetFuncs
	case KeySetFuncs:
		return m.SetFuncs
	default:
		return nil
	}
}

// assign stores a coerced modifier value.
func (m *Modifiers) assign(key ModifierKey, value any) {
	switch key {
	case KeyValues:
		m.Values, _ = value.(*ValuesSpec)
	case KeyUnits:
		m.Units, _ = value.(string)
	case KeyLimits:
		m.Limits, _ = value.([]pipeline.Range)
	case KeyGetFuncs:
		m.GetFuncs, _ = value.([]pipeline.Func)
	case KeySetFuncs:
		m.SetFuncs, _ = value.([]pipeline.Func)
	}
}

// coerceModifier normalizes the accepted dynamic types for a modifier
// write and validates the result. The returned value is one of the
// Modifiers field types.
func coerceModifier(key ModifierKey, value any) (any, error) {
	switch key {
	case KeyValues:
		switch v := value.(type) {
		case nil:
			return (*ValuesSpec)(nil), nil
		case *ValuesSpec:
			return v, nil
		case map[any]any:
			return MapValues(v), nil
		case map[string]any:
			m := make(map[any]any, len(v))
			for k, mapped := range v {
				m[k] = mapped
			}
			return MapValues(m), nil
		case []any:
			return RestrictValues(v...), nil
		}
		return nil, fmt.Errorf("%w: values must be a mapping or member list, got %T", ErrInvalidModifier, value)

	case KeyUnits:
		s, ok := value.(string)
		if !ok {
			if u, isUnit := value.(quantity.Unit); isUnit {
				return u.String(), nil
			}
			return nil, fmt.Errorf("%w: units must be a unit symbol, got %T", ErrInvalidModifier, value)
		}
		if _, err := quantity.Parse(s); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidModifier, err)
		}
		return s, nil

	case KeyLimits:
		switch v := value.(type) {
		case nil:
			return []pipeline.Range(nil), nil
		case pipeline.Range:
			return []pipeline.Range{v}, nil
		case []pipeline.Range:
			return v, nil
		}
		return nil, fmt.Errorf("%w: limits must be a range or range list, got %T", ErrInvalidModifier, value)

	case KeyGetFuncs, KeySetFuncs:
		switch v := value.(type) {
		case nil:
			return []pipeline.Func(nil), nil
		case pipeline.Func:
			return []pipeline.Func{v}, nil
		case []pipeline.Func:
			return v, nil
		}
		return nil, fmt.Errorf("%w: %s must be a transform func or func list, got %T", ErrInvalidModifier, key, value)

	default:
		return nil, fmt.Errorf("%w: unknown key %d", ErrInvalidModifier, key)
	}
}

// modifierStore holds class-scope modifier defaults and per-instance
// overrides for one descriptor. Override presence is tracked per key so
// an instance overriding only units still falls back to the class
// values mapping.
type modifierStore struct {
	mu        sync.RWMutex
	class     Modifiers
	overrides map[Driver]map[ModifierKey]any
}

func newModifierStore(class Modifiers) *modifierStore {
	return &modifierStore{
		class:     class,
		overrides: make(map[Driver]map[ModifierKey]any),
	}
}

// get returns the effective modifier for the scope: the instance
// override when present, the class default otherwise. A nil instance
// addresses the class scope.
func (s *modifierStore) get(instance Driver, key ModifierKey) any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if instance != nil {
		if ov, ok := s.overrides[instance]; ok {
			if v, ok := ov[key]; ok {
				return v
			}
		}
	}
	return s.class.value(key)
}

// set stores a coerced modifier value in the given scope.
func (s *modifierStore) set(instance Driver, key ModifierKey, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if instance == nil {
		s.class.assign(key, value)
		return
	}
	ov, ok := s.overrides[instance]
	if !ok {
		ov = make(map[ModifierKey]any)
		s.overrides[instance] = ov
	}
	ov[key] = value
}

// effective assembles the full effective modifier set for a scope.
func (s *modifierStore) effective(instance Driver) Modifiers {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m := s.class
	if instance == nil {
		return m
	}
	ov, ok := s.overrides[instance]
	if !ok {
		return m
	}
	for key, v := range ov {
		m.assign(key, v)
	}
	return m
}

// fork copies the class-scope defaults into a fresh store with no
// instance overrides. Used when a subclass registry forks a descriptor.
func (s *modifierStore) fork() *modifierStore {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newModifierStore(s.class)
}
