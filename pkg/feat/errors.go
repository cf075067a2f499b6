package feat

import (
	"errors"
	"fmt"

	"github.com/featkit/featkit-go/pkg/capability"
)

// Feat errors.
var (
	// ErrInvalidKey reports an indexed access with a key outside the
	// configured restriction set.
	ErrInvalidKey = errors.New("invalid key")

	// ErrInvalidModifier reports a proxy write to a name that is not a
	// recognized modifier.
	ErrInvalidModifier = errors.New("invalid modifier")

	// ErrAttributeNotFound reports a proxy read of an unknown member or
	// a registry lookup miss.
	ErrAttributeNotFound = errors.New("attribute not found")

	// ErrReadOnly reports a set on an attribute without a raw setter.
	ErrReadOnly = errors.New("attribute is read-only")

	// ErrWriteOnly reports a get on an attribute without a raw getter.
	ErrWriteOnly = errors.New("attribute is write-only")
)

// AccessError reports a failed get or set: a pipeline stage rejected
// the value or the raw accessor failed.
type AccessError struct {
	// Attr is the attribute name.
	Attr string

	// Instance is the owning instance ID.
	Instance string

	// Key is the indexed-attribute key, nil for plain attributes.
	Key any

	// Op is the failing operation.
	Op capability.Op

	// Stage is the failing pipeline stage, or "raw_getter"/"raw_setter"
	// when the raw accessor failed.
	Stage string

	// Err is the underlying failure.
	Err error
}

// Error implements error.
func (e *AccessError) Error() string {
	target := e.Attr
	if e.Key != nil {
		target = fmt.Sprintf("%s[%v]", e.Attr, e.Key)
	}
	return fmt.Sprintf("%s %s on %s failed at %s: %v", e.Op, target, e.Instance, e.Stage, e.Err)
}

// Unwrap returns the underlying failure.
func (e *AccessError) Unwrap() error { return e.Err }

// Raw accessor stage names used in AccessError.Stage.
const (
	stageRawGetter = "raw_getter"
	stageRawSetter = "raw_setter"
)
