package accesslog

import (
	"time"

	"github.com/featkit/featkit-go/pkg/capability"
)

// Event records one attribute access.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the access finished (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// InstanceID identifies the owning driver instance.
	InstanceID string `cbor:"2,keyasint"`

	// Attr is the attribute name.
	Attr string `cbor:"3,keyasint"`

	// Key is the indexed-attribute key rendered as a string; empty for
	// plain attributes.
	Key string `cbor:"4,keyasint,omitempty"`

	// Op is the access operation.
	Op capability.Op `cbor:"5,keyasint"`

	// Outcome classifies how the access finished.
	Outcome capability.Outcome `cbor:"6,keyasint"`

	// Duration of the access (lock wait excluded). Stored as nanoseconds.
	Duration time.Duration `cbor:"7,keyasint"`

	// Value is the user-facing value rendered as a string; empty for
	// failed accesses where no value was produced.
	Value string `cbor:"8,keyasint,omitempty"`

	// Stage is the failing pipeline stage, if any.
	Stage string `cbor:"9,keyasint,omitempty"`

	// Error is the failure message, if any.
	Error string `cbor:"10,keyasint,omitempty"`
}
