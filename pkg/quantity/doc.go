// Package quantity implements the unit-aware value type used by feat
// unit modifiers.
//
// A Quantity pairs a float64 magnitude with a Unit. Units are an SI
// prefix plus a base symbol ("mV", "kW", "percent"). Two units are
// compatible when they share a base symbol; conversion between
// compatible units is a prefix-factor scaling.
//
// # Parsing
//
// Unit symbols are parsed longest-base-first so that "m" (metre) and
// "mV" (millivolt) both resolve correctly. Unknown symbols fail with
// ErrUnknownUnit rather than guessing.
//
// # Dimensionless values
//
// The zero Unit is dimensionless. A dimensionless Quantity converts to
// any unit with factor 1, which lets raw accessors return plain numbers
// that pick up the feat's configured unit on read.
package quantity
