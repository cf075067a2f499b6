package feat

import "github.com/google/uuid"

// Driver is implemented by owning instances. Instances are compared by
// identity, so driver types are expected to be pointers.
type Driver interface {
	// InstanceID returns a stable identifier for the instance, used in
	// access logs and errors.
	InstanceID() string
}

// Base provides instance identity for driver types. Embed it by value
// and construct with NewBase:
//
//	type FGen struct {
//	    feat.Base
//	    port io.ReadWriter
//	}
//
//	func NewFGen(port io.ReadWriter) *FGen {
//	    return &FGen{Base: feat.NewBase(), port: port}
//	}
type Base struct {
	id string
}

// NewBase creates a Base with a fresh UUID identity.
func NewBase() Base {
	return Base{id: uuid.NewString()}
}

// InstanceID implements Driver.
func (b Base) InstanceID() string {
	return b.id
}
