package quantity

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
)

// Quantity errors.
var (
	ErrUnknownUnit       = errors.New("unknown unit")
	ErrIncompatibleUnits = errors.New("incompatible units")
)

// Unit is a parsed unit symbol: an SI prefix factor applied to a base
// symbol. The zero value is dimensionless.
type Unit struct {
	// Base is the base symbol ("V", "W", "Hz"). Empty for dimensionless.
	Base string

	// Factor is the multiplier relative to the base unit (1e-3 for "mV").
	Factor float64

	// Symbol is the symbol as originally parsed ("mV").
	Symbol string
}

// Base unit symbols recognized by Parse. Instrument-facing electrical and
// physical units; extend with Register if a driver needs more.
var baseSymbols = map[string]struct{}{
	"V": {}, "A": {}, "W": {}, "VA": {}, "var": {},
	"Wh": {}, "VAh": {}, "varh": {}, "J": {},
	"Hz": {}, "s": {}, "m": {}, "g": {}, "K": {},
	"Ohm": {}, "F": {}, "H": {}, "T": {}, "C": {},
	"Pa": {}, "bar": {}, "L": {}, "percent": {},
}

// SI prefixes. "da" must be tried before "d".
var prefixFactors = map[string]float64{
	"Y": 1e24, "Z": 1e21, "E": 1e18, "P": 1e15, "T": 1e12,
	"G": 1e9, "M": 1e6, "k": 1e3, "h": 1e2, "da": 1e1,
	"d": 1e-1, "c": 1e-2, "m": 1e-3, "u": 1e-6, "µ": 1e-6,
	"n": 1e-9, "p": 1e-12, "f": 1e-15, "a": 1e-18,
}

// prefixesByLength holds prefix symbols longest first so "da" wins over "d".
var prefixesByLength = func() []string {
	out := make([]string, 0, len(prefixFactors))
	for p := range prefixFactors {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i]) != len(out[j]) {
			return len(out[i]) > len(out[j])
		}
		return out[i] < out[j]
	})
	return out
}()

// Register adds a base unit symbol. Not safe for concurrent use with
// Parse; call during program initialization.
func Register(base string) {
	baseSymbols[base] = struct{}{}
}

// Parse parses a unit symbol. An exact base symbol match wins over a
// prefix split, so "m" is metres while "mV" is millivolts. The empty
// string parses to the dimensionless unit.
func Parse(symbol string) (Unit, error) {
	if symbol == "" {
		return Unit{Factor: 1}, nil
	}
	if _, ok := baseSymbols[symbol]; ok {
		return Unit{Base: symbol, Factor: 1, Symbol: symbol}, nil
	}
	for _, p := range prefixesByLength {
		if len(symbol) <= len(p) {
			continue
		}
		if symbol[:len(p)] != p {
			continue
		}
		base := symbol[len(p):]
		if _, ok := baseSymbols[base]; ok {
			return Unit{Base: base, Factor: prefixFactors[p], Symbol: symbol}, nil
		}
	}
	return Unit{}, fmt.Errorf("%w: %q", ErrUnknownUnit, symbol)
}

// MustParse is Parse panicking on error. For statically known symbols.
func MustParse(symbol string) Unit {
	u, err := Parse(symbol)
	if err != nil {
		panic(err)
	}
	return u
}

// IsZero returns true for the dimensionless unit.
func (u Unit) IsZero() bool {
	return u.Base == ""
}

// Compatible returns true if values in u can be converted to values in
// other. The dimensionless unit is compatible with everything.
func (u Unit) Compatible(other Unit) bool {
	return u.Base == other.Base || u.IsZero() || other.IsZero()
}

// String returns the unit symbol.
func (u Unit) String() string {
	if u.IsZero() {
		return ""
	}
	return u.Symbol
}

// Quantity is a magnitude with a unit.
type Quantity struct {
	Value float64
	Unit  Unit
}

// New creates a Quantity from a magnitude and a unit symbol.
func New(value float64, symbol string) (Quantity, error) {
	u, err := Parse(symbol)
	if err != nil {
		return Quantity{}, err
	}
	return Quantity{Value: value, Unit: u}, nil
}

// MustNew is New panicking on error.
func MustNew(value float64, symbol string) Quantity {
	q, err := New(value, symbol)
	if err != nil {
		panic(err)
	}
	return q
}

// ToUnit converts q to the target unit. A dimensionless quantity adopts
// the target unit with factor 1.
func (q Quantity) ToUnit(target Unit) (Quantity, error) {
	if !q.Unit.Compatible(target) {
		return Quantity{}, fmt.Errorf("%w: %s -> %s", ErrIncompatibleUnits, q.Unit, target)
	}
	if q.Unit.IsZero() || target.IsZero() {
		return Quantity{Value: q.Value, Unit: target}, nil
	}
	return Quantity{Value: q.Value * q.Unit.Factor / target.Factor, Unit: target}, nil
}

// To converts q to the unit named by symbol.
func (q Quantity) To(symbol string) (Quantity, error) {
	u, err := Parse(symbol)
	if err != nil {
		return Quantity{}, err
	}
	return q.ToUnit(u)
}

// Magnitude returns q's value expressed in the target unit.
func (q Quantity) Magnitude(target Unit) (float64, error) {
	c, err := q.ToUnit(target)
	if err != nil {
		return 0, err
	}
	return c.Value, nil
}

// String formats the quantity as "<value> <unit>".
func (q Quantity) String() string {
	v := strconv.FormatFloat(q.Value, 'g', -1, 64)
	if q.Unit.IsZero() {
		return v
	}
	return v + " " + q.Unit.Symbol
}
