package feat

import (
	"fmt"
	"sync"

	"github.com/featkit/featkit-go/pkg/accesslog"
	"github.com/featkit/featkit-go/pkg/capability"
)

// RawIndexedGetter reads the device-native value for one key.
type RawIndexedGetter func(instance Driver, key any) (any, error)

// RawIndexedSetter writes the device-native value for one key.
type RawIndexedSetter func(instance Driver, key any, value any) error

// WithKeys restricts the valid keys of a DictFeat. Access with any
// other key fails with ErrInvalidKey before touching hardware.
func WithKeys(keys ...any) Option {
	return func(o *options) { o.keys = keys }
}

// subKey identifies one materialized sub-descriptor.
type subKey struct {
	instance Driver
	key      any
}

// DictFeat is an indexed attribute descriptor: one logical attribute
// addressed by a key. Sub-descriptors are materialized lazily per
// (instance, key) and share this descriptor's modifiers as their
// template; modifier changes propagate to every sub-descriptor already
// materialized in the affected scope.
type DictFeat struct {
	mu sync.RWMutex

	name     string
	fget     RawIndexedGetter
	fset     RawIndexedSetter
	readOnce bool

	// keys is the restriction list in declaration order; keySet is the
	// lookup form. Both nil means unrestricted.
	keys   []any
	keySet map[any]struct{}

	store *modifierStore
	subs  map[subKey]*Feat

	locker   capability.Locker
	observer *capability.Subscribers
	stats    capability.Stats
	logger   accesslog.Logger
}

// NewDict creates an indexed attribute descriptor. Either accessor may
// be nil. The descriptor is inert until bound with Class.BindDict.
func NewDict(name string, fget RawIndexedGetter, fset RawIndexedSetter, opts ...Option) *DictFeat {
	o := options{
		stats:  &capability.Recorder{},
		logger: accesslog.NoopLogger{},
	}
	for _, opt := range opts {
		opt(&o)
	}

	d := &DictFeat{
		name:     name,
		fget:     fget,
		fset:     fset,
		readOnce: o.readOnce,
		store:    newModifierStore(o.modifiers),
		subs:     make(map[subKey]*Feat),
		observer: &capability.Subscribers{},
		stats:    o.stats,
		logger:   o.logger,
	}
	if o.keys != nil {
		d.keys = o.keys
		d.keySet = make(map[any]struct{}, len(o.keys))
		for _, k := range o.keys {
			d.keySet[k] = struct{}{}
		}
	}
	return d
}

// Name returns the attribute name.
func (d *DictFeat) Name() string { return d.name }

// Keys returns the key restriction in declaration order, nil when the
// descriptor accepts any key.
func (d *DictFeat) Keys() []any { return d.keys }

// Stats returns the statistics sink shared by all sub-descriptors.
func (d *DictFeat) Stats() capability.Stats { return d.stats }

// Subscribe registers a change subscriber notified for every key. The
// returned token removes the subscriber via Unsubscribe.
func (d *DictFeat) Subscribe(sub capability.Subscriber) capability.Subscription {
	return d.observer.Subscribe(sub)
}

// Unsubscribe removes a change subscriber.
func (d *DictFeat) Unsubscribe(id capability.Subscription) {
	d.observer.Unsubscribe(id)
}

// bind attaches the descriptor to a class.
func (d *DictFeat) bind(locker capability.Locker) {
	d.mu.Lock()
	d.locker = locker
	d.mu.Unlock()
}

// Subproperty returns the sub-descriptor for (instance, key),
// materializing it on first access. The sub-descriptor's raw accessors
// are the indexed accessors with the key bound, and its class-scope
// modifiers are seeded from this descriptor's effective modifiers for
// the instance.
func (d *DictFeat) Subproperty(instance Driver, key any) (*Feat, error) {
	if d.keySet != nil {
		if _, ok := d.keySet[key]; !ok {
			return nil, fmt.Errorf("%w: %v is not a key of %s", ErrInvalidKey, key, d.name)
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	sk := subKey{instance: instance, key: key}
	if sub, ok := d.subs[sk]; ok {
		return sub, nil
	}

	var fget RawGetter
	if d.fget != nil {
		fget = func(inst Driver) (any, error) { return d.fget(inst, key) }
	}
	var fset RawSetter
	if d.fset != nil {
		fset = func(inst Driver, value any) error { return d.fset(inst, key, value) }
	}

	sub := &Feat{
		name:      d.name,
		fget:      fget,
		fset:      fset,
		readOnce:  d.readOnce,
		key:       key,
		store:     newModifierStore(d.store.effective(instance)),
		instPipes: make(map[Driver]pipePair),
		cache:     capability.NewValueCache(),
		observer:  d.observer,
		stats:     d.stats,
		logger:    d.logger,
		locker:    d.locker,
	}
	sub.Rebuild(nil)

	d.subs[sk] = sub
	return sub, nil
}

// Get reads the attribute for one key.
func (d *DictFeat) Get(instance Driver, key any) (any, error) {
	sub, err := d.Subproperty(instance, key)
	if err != nil {
		return nil, err
	}
	return sub.Get(instance)
}

// Set writes the attribute for one key.
func (d *DictFeat) Set(instance Driver, key any, value any) error {
	sub, err := d.Subproperty(instance, key)
	if err != nil {
		return err
	}
	return sub.Set(instance, value)
}

// Modifier returns the effective template modifier for the scope.
func (d *DictFeat) Modifier(instance Driver, key ModifierKey) any {
	return d.store.get(instance, key)
}

// SetModifier stores a modifier in the given scope and propagates it
// to every sub-descriptor already materialized for that scope, in
// addition to updating the template used for future materializations.
// Class-scope changes reach every sub-descriptor; instance-scope
// changes reach that instance's sub-descriptors as instance overrides.
func (d *DictFeat) SetModifier(instance Driver, key ModifierKey, value any) error {
	coerced, err := coerceModifier(key, value)
	if err != nil {
		return err
	}
	d.store.set(instance, key, coerced)

	d.mu.RLock()
	targets := make([]*Feat, 0, len(d.subs))
	for sk, sub := range d.subs {
		if instance == nil || sk.instance == instance {
			targets = append(targets, sub)
		}
	}
	d.mu.RUnlock()

	for _, sub := range targets {
		sub.store.set(instance, key, coerced)
		sub.Rebuild(instance)
	}
	return nil
}

// SetModifierName is SetModifier dispatching on the modifier name.
func (d *DictFeat) SetModifierName(instance Driver, name string, value any) error {
	key, ok := ParseModifierKey(name)
	if !ok {
		return fmt.Errorf("%w: %q is not a modifier of %s", ErrInvalidModifier, name, d.name)
	}
	return d.SetModifier(instance, key, value)
}

// fork clones the descriptor for a subclass registry. Materialized
// sub-descriptors are not shared; the subclass starts empty.
func (d *DictFeat) fork() *DictFeat {
	return &DictFeat{
		name:     d.name,
		fget:     d.fget,
		fset:     d.fset,
		readOnce: d.readOnce,
		keys:     d.keys,
		keySet:   d.keySet,
		store:    d.store.fork(),
		subs:     make(map[subKey]*Feat),
		observer: &capability.Subscribers{},
		stats:    d.stats,
		logger:   d.logger,
	}
}
