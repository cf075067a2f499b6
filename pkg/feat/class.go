package feat

import (
	"fmt"
	"sort"
	"sync"

	"github.com/featkit/featkit-go/pkg/capability"
)

// featEntry is one registry slot: the descriptor plus whether this
// class owns it or inherited it from an ancestor.
type featEntry struct {
	feat  *Feat
	owned bool
}

type dictEntry struct {
	dict  *DictFeat
	owned bool
}

// Class is the per-driver-type attribute registry. A class created
// with a parent starts with the parent's descriptors, flagged
// inherited; entries are never mutated through a subclass without
// forking first, so registries never share mutable state after a fork.
//
// Classes are normally built at package initialization and treated as
// read-only afterward; modifier changes through SetModifier are the
// exception and are safe at runtime.
type Class struct {
	mu sync.RWMutex

	name   string
	parent *Class

	feats map[string]*featEntry
	dicts map[string]*dictEntry

	// locker is shared with the parent so that inherited and owned
	// descriptors of one instance contend for the same instance lock.
	locker capability.Locker
}

// NewClass creates a class registry. A non-nil parent makes this a
// subclass: the parent's descriptors are registered here as inherited.
func NewClass(name string, parent *Class) *Class {
	c := &Class{
		name:  name,
		feats: make(map[string]*featEntry),
		dicts: make(map[string]*dictEntry),
	}
	if parent == nil {
		c.locker = capability.NewInstanceLocker()
		return c
	}

	c.parent = parent
	c.locker = parent.locker

	parent.mu.RLock()
	defer parent.mu.RUnlock()
	for name, e := range parent.feats {
		c.feats[name] = &featEntry{feat: e.feat, owned: false}
	}
	for name, e := range parent.dicts {
		c.dicts[name] = &dictEntry{dict: e.dict, owned: false}
	}
	return c
}

// Name returns the class name.
func (c *Class) Name() string { return c.name }

// Bind registers a descriptor under its name, replacing any inherited
// entry, and performs the initial class-scope pipeline build. It
// returns the descriptor for use in var declarations.
func (c *Class) Bind(f *Feat) *Feat {
	c.mu.Lock()
	c.feats[f.name] = &featEntry{feat: f, owned: true}
	c.mu.Unlock()

	f.bind(c.locker)
	return f
}

// BindDict registers an indexed descriptor under its name.
func (c *Class) BindDict(d *DictFeat) *DictFeat {
	c.mu.Lock()
	c.dicts[d.name] = &dictEntry{dict: d, owned: true}
	c.mu.Unlock()

	d.bind(c.locker)
	return d
}

// Feat returns the registered descriptor for name.
func (c *Class) Feat(name string) (*Feat, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if e, ok := c.feats[name]; ok {
		return e.feat, nil
	}
	return nil, fmt.Errorf("%w: %s has no feat %q", ErrAttributeNotFound, c.name, name)
}

// DictFeat returns the registered indexed descriptor for name.
func (c *Class) DictFeat(name string) (*DictFeat, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if e, ok := c.dicts[name]; ok {
		return e.dict, nil
	}
	return nil, fmt.Errorf("%w: %s has no dictfeat %q", ErrAttributeNotFound, c.name, name)
}

// FeatNames returns the registered attribute names, plain and indexed,
// sorted.
func (c *Class) FeatNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.feats)+len(c.dicts))
	for name := range c.feats {
		names = append(names, name)
	}
	for name := range c.dicts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Owns reports whether the class owns the named descriptor (as opposed
// to inheriting it).
func (c *Class) Owns(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if e, ok := c.feats[name]; ok {
		return e.owned
	}
	if e, ok := c.dicts[name]; ok {
		return e.owned
	}
	return false
}

// SetModifier sets a class-scope modifier on the named descriptor.
// When the entry is inherited the descriptor is forked first, so the
// parent class keeps its original behavior.
func (c *Class) SetModifier(attrName string, key ModifierKey, value any) error {
	c.mu.Lock()
	if e, ok := c.feats[attrName]; ok {
		if !e.owned {
			forked := e.feat.fork()
			c.feats[attrName] = &featEntry{feat: forked, owned: true}
			c.mu.Unlock()
			forked.bind(c.locker)
			return forked.SetModifier(nil, key, value)
		}
		c.mu.Unlock()
		return e.feat.SetModifier(nil, key, value)
	}
	if e, ok := c.dicts[attrName]; ok {
		if !e.owned {
			forked := e.dict.fork()
			c.dicts[attrName] = &dictEntry{dict: forked, owned: true}
			c.mu.Unlock()
			forked.bind(c.locker)
			return forked.SetModifier(nil, key, value)
		}
		c.mu.Unlock()
		return e.dict.SetModifier(nil, key, value)
	}
	c.mu.Unlock()
	return fmt.Errorf("%w: %s has no attribute %q", ErrAttributeNotFound, c.name, attrName)
}

// SetModifierName is SetModifier dispatching on the modifier name.
func (c *Class) SetModifierName(attrName, modifier string, value any) error {
	key, ok := ParseModifierKey(modifier)
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidModifier, modifier)
	}
	return c.SetModifier(attrName, key, value)
}
