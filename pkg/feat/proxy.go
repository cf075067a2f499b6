package feat

import (
	"fmt"
)

// Proxy is a per-instance facade over a Feat: it grants read/write
// access to the instance-scoped modifiers and read-only access to the
// descriptor's introspection and operations, without the instance
// holding any descriptor state itself.
//
// Proxies are cheap stateless wrappers; create them on demand.
type Proxy struct {
	instance Driver
	feat     *Feat
}

// NewProxy creates a proxy scoping the descriptor to one instance.
func NewProxy(instance Driver, f *Feat) *Proxy {
	return &Proxy{instance: instance, feat: f}
}

// Feat returns the proxied descriptor.
func (p *Proxy) Feat() *Feat { return p.feat }

// Read returns the named member scoped to the instance. Modifier names
// return the effective instance-scoped value; "name" and "readonce"
// return descriptor metadata; "get" and "set" return the operations
// bound to the instance. Anything else fails with ErrAttributeNotFound.
func (p *Proxy) Read(name string) (any, error) {
	if key, ok := ParseModifierKey(name); ok {
		return p.feat.Modifier(p.instance, key), nil
	}

	switch name {
	case "name":
		return p.feat.Name(), nil
	case "readonce":
		return p.feat.ReadOnce(), nil
	case "get":
		return func() (any, error) { return p.feat.Get(p.instance) }, nil
	case "set":
		return func(v any) error { return p.feat.Set(p.instance, v) }, nil
	}

	return nil, fmt.Errorf("%w: cannot get %q in %s: not a feat method, property or modifier",
		ErrAttributeNotFound, name, p.feat.Name())
}

// Write stores an instance-scoped modifier override and triggers the
// descriptor's rebuild for this instance. Only modifier names are
// writable.
func (p *Proxy) Write(name string, value any) error {
	if _, ok := ParseModifierKey(name); !ok {
		return fmt.Errorf("%w: cannot set %q in %s: not a feat modifier",
			ErrInvalidModifier, name, p.feat.Name())
	}
	return p.feat.SetModifierName(p.instance, name, value)
}

// Get reads the attribute on the proxied instance.
func (p *Proxy) Get() (any, error) {
	return p.feat.Get(p.instance)
}

// Set writes the attribute on the proxied instance.
func (p *Proxy) Set(value any) error {
	return p.feat.Set(p.instance, value)
}

// DictProxy is the per-instance facade over a DictFeat.
type DictProxy struct {
	instance Driver
	dict     *DictFeat
}

// NewDictProxy creates a proxy scoping the indexed descriptor to one
// instance.
func NewDictProxy(instance Driver, d *DictFeat) *DictProxy {
	return &DictProxy{instance: instance, dict: d}
}

// DictFeat returns the proxied descriptor.
func (p *DictProxy) DictFeat() *DictFeat { return p.dict }

// Read returns the named member scoped to the instance. In addition to
// the modifier and introspection names of Proxy.Read, "keys" returns
// the key restriction.
func (p *DictProxy) Read(name string) (any, error) {
	if key, ok := ParseModifierKey(name); ok {
		return p.dict.Modifier(p.instance, key), nil
	}

	switch name {
	case "name":
		return p.dict.Name(), nil
	case "keys":
		return p.dict.Keys(), nil
	}

	return nil, fmt.Errorf("%w: cannot get %q in %s: not a dictfeat method, property or modifier",
		ErrAttributeNotFound, name, p.dict.Name())
}

// Write stores an instance-scoped template modifier, propagating to
// the instance's materialized sub-descriptors.
func (p *DictProxy) Write(name string, value any) error {
	if _, ok := ParseModifierKey(name); !ok {
		return fmt.Errorf("%w: cannot set %q in %s: not a dictfeat modifier",
			ErrInvalidModifier, name, p.dict.Name())
	}
	return p.dict.SetModifierName(p.instance, name, value)
}

// Index returns a Proxy over the sub-descriptor for one key, enabling
// per-key, per-instance modifier overrides.
func (p *DictProxy) Index(key any) (*Proxy, error) {
	sub, err := p.dict.Subproperty(p.instance, key)
	if err != nil {
		return nil, err
	}
	return NewProxy(p.instance, sub), nil
}

// Get reads the attribute for one key on the proxied instance.
func (p *DictProxy) Get(key any) (any, error) {
	return p.dict.Get(p.instance, key)
}

// Set writes the attribute for one key on the proxied instance.
func (p *DictProxy) Set(key any, value any) error {
	return p.dict.Set(p.instance, key, value)
}
