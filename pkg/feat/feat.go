package feat

import (
	"fmt"
	"math"
	"reflect"
	"sync"
	"time"

	"github.com/featkit/featkit-go/pkg/accesslog"
	"github.com/featkit/featkit-go/pkg/capability"
	"github.com/featkit/featkit-go/pkg/pipeline"
	"github.com/featkit/featkit-go/pkg/quantity"
)

// RawGetter reads the device-native value. Supplied by the driver
// author; runs inside the instance lock.
type RawGetter func(instance Driver) (any, error)

// RawSetter writes the device-native value. Supplied by the driver
// author; runs inside the instance lock.
type RawSetter func(instance Driver, value any) error

// pipePair holds the built pipelines for one scope. The read pipeline
// is stored already reversed and ready to run.
type pipePair struct {
	read  pipeline.Pipeline
	write pipeline.Pipeline
}

// Feat is an attribute descriptor: it binds a name and a pair of raw
// accessors to an owning class and runs every access through the
// capability stack and the modifier-derived pipelines.
//
// A Feat is created once at class-definition time and lives as long as
// the owning class. All methods are safe for concurrent use.
type Feat struct {
	mu sync.RWMutex

	name     string
	fget     RawGetter
	fset     RawSetter
	readOnce bool

	// key is the bound index for DictFeat sub-descriptors, nil otherwise.
	key any

	store *modifierStore

	classPipes pipePair
	instPipes  map[Driver]pipePair

	locker   capability.Locker
	cache    capability.Cache
	observer *capability.Subscribers
	stats    capability.Stats
	logger   accesslog.Logger
}

// Option configures a Feat or DictFeat at construction time.
type Option func(*options)

type options struct {
	modifiers Modifiers
	readOnce  bool
	stats     capability.Stats
	logger    accesslog.Logger
	keys      []any
}

// WithValues sets the class-level values modifier.
func WithValues(v *ValuesSpec) Option {
	return func(o *options) { o.modifiers.Values = v }
}

// WithUnits sets the class-level units modifier. The symbol must parse;
// invalid symbols panic, as this runs at class-definition time.
func WithUnits(symbol string) Option {
	quantity.MustParse(symbol)
	return func(o *options) { o.modifiers.Units = symbol }
}

// WithLimits sets the class-level limits modifier. With multiple
// ranges a value is accepted if any range matches.
func WithLimits(ranges ...pipeline.Range) Option {
	return func(o *options) { o.modifiers.Limits = ranges }
}

// WithGetFuncs appends custom read-side transforms. Nil entries are
// skipped during pipeline construction.
func WithGetFuncs(funcs ...pipeline.Func) Option {
	return func(o *options) { o.modifiers.GetFuncs = funcs }
}

// WithSetFuncs appends custom write-side transforms.
func WithSetFuncs(funcs ...pipeline.Func) Option {
	return func(o *options) { o.modifiers.SetFuncs = funcs }
}

// WithReadOnce marks the attribute cache-forever: the raw getter runs
// at most once per scope and later gets return the cached value.
func WithReadOnce() Option {
	return func(o *options) { o.readOnce = true }
}

// WithStats sets the statistics sink. Defaults to an in-memory Recorder.
func WithStats(s capability.Stats) Option {
	return func(o *options) { o.stats = s }
}

// WithLogger sets the access logger. Defaults to NoopLogger.
func WithLogger(l accesslog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// New creates an attribute descriptor. Either accessor may be nil for
// a write-only or read-only attribute. The descriptor is inert until
// bound to a class with Class.Bind.
func New(name string, fget RawGetter, fset RawSetter, opts ...Option) *Feat {
	o := options{
		stats:  &capability.Recorder{},
		logger: accesslog.NoopLogger{},
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &Feat{
		name:      name,
		fget:      fget,
		fset:      fset,
		readOnce:  o.readOnce,
		store:     newModifierStore(o.modifiers),
		instPipes: make(map[Driver]pipePair),
		cache:     capability.NewValueCache(),
		observer:  &capability.Subscribers{},
		stats:     o.stats,
		logger:    o.logger,
	}
}

// Name returns the attribute name.
func (f *Feat) Name() string { return f.name }

// ReadOnce reports whether the attribute caches forever.
func (f *Feat) ReadOnce() bool { return f.readOnce }

// Key returns the bound index key for DictFeat sub-descriptors, nil
// for plain attributes.
func (f *Feat) Key() any { return f.key }

// Stats returns the statistics sink.
func (f *Feat) Stats() capability.Stats { return f.stats }

// Subscribe registers a change subscriber. Subscribers are notified
// after the cached value changed through a get or set. The returned
// token removes the subscriber via Unsubscribe.
func (f *Feat) Subscribe(sub capability.Subscriber) capability.Subscription {
	return f.observer.Subscribe(sub)
}

// Unsubscribe removes a change subscriber.
func (f *Feat) Unsubscribe(id capability.Subscription) {
	f.observer.Unsubscribe(id)
}

// bind attaches the descriptor to a class: it adopts the class locker
// and establishes the class-scope pipelines.
func (f *Feat) bind(locker capability.Locker) {
	f.mu.Lock()
	f.locker = locker
	f.mu.Unlock()
	f.Rebuild(nil)
}

// Rebuild recomputes the read and write pipelines for the given scope
// (nil = class scope) from the effective modifiers. The construction
// order is fixed: units, values, limits, then custom funcs; the read
// pipeline runs in reverse construction order so the stage closest to
// the raw device value runs first.
func (f *Feat) Rebuild(instance Driver) {
	m := f.store.effective(instance)

	read := pipeline.Pipeline{Direction: pipeline.DirectionRead}
	write := pipeline.Pipeline{Direction: pipeline.DirectionWrite}

	if m.Units != "" {
		u := quantity.MustParse(m.Units) // validated on the way in
		read = read.Append(pipeline.UnitRead(u))
		write = write.Append(pipeline.UnitWrite(u))
	}
	if m.Values != nil {
		if m.Values.Mapping != nil {
			read = read.Append(pipeline.ReverseMapper(m.Values.Mapping))
			write = write.Append(pipeline.Mapper(m.Values.Mapping))
		} else {
			write = write.Append(pipeline.Membership(m.Values.memberSet()))
		}
	}
	if len(m.Limits) > 0 {
		write = write.Append(pipeline.RangeChecker(m.Limits))
	}
	for i, fn := range m.GetFuncs {
		if fn == nil {
			continue
		}
		read = read.Append(pipeline.Stage{Name: fmt.Sprintf("get_func_%d", i), Apply: fn})
	}
	for i, fn := range m.SetFuncs {
		if fn == nil {
			continue
		}
		write = write.Append(pipeline.Stage{Name: fmt.Sprintf("set_func_%d", i), Apply: fn})
	}

	pair := pipePair{read: read.Reversed(), write: write}

	f.mu.Lock()
	defer f.mu.Unlock()
	if instance == nil {
		f.classPipes = pair
	} else {
		f.instPipes[instance] = pair
	}
}

// pipes returns the pipelines for an instance, falling back to the
// class scope when the instance has no overrides.
func (f *Feat) pipes(instance Driver) pipePair {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if p, ok := f.instPipes[instance]; ok {
		return p
	}
	return f.classPipes
}

// Modifier returns the effective modifier value for the scope.
func (f *Feat) Modifier(instance Driver, key ModifierKey) any {
	return f.store.get(instance, key)
}

// SetModifier stores a modifier value in the given scope (nil instance
// = class scope) and rebuilds that scope's pipelines.
func (f *Feat) SetModifier(instance Driver, key ModifierKey, value any) error {
	coerced, err := coerceModifier(key, value)
	if err != nil {
		return err
	}
	f.store.set(instance, key, coerced)
	f.Rebuild(instance)
	return nil
}

// SetModifierName is SetModifier dispatching on the modifier name.
// Unrecognized names fail with ErrInvalidModifier and cause no rebuild.
func (f *Feat) SetModifierName(instance Driver, name string, value any) error {
	key, ok := ParseModifierKey(name)
	if !ok {
		return fmt.Errorf("%w: %q is not a modifier of %s", ErrInvalidModifier, name, f.name)
	}
	return f.SetModifier(instance, key, value)
}

// scope builds the capability scope for an instance.
func (f *Feat) scope(instance Driver) capability.Scope {
	return capability.Scope{Instance: instance, Attr: f.name, Key: f.key}
}

// Get reads the attribute through the capability stack: instance lock,
// read-once cache, raw getter, read pipeline, cache update, change
// notification, statistics, and access log.
func (f *Feat) Get(instance Driver) (any, error) {
	if f.fget == nil {
		return nil, fmt.Errorf("%w: %s has no getter", ErrWriteOnly, f.name)
	}

	f.locker.Acquire(instance)
	defer f.locker.Release(instance)

	scope := f.scope(instance)
	start := time.Now()

	if f.readOnce {
		if v, ok := f.cache.Get(scope); ok {
			f.report(instance, scope, capability.OpGet, start, capability.OutcomeOK, v, nil)
			return v, nil
		}
	}

	raw, err := f.fget(instance)
	if err != nil {
		return nil, f.fail(instance, scope, capability.OpGet, start, stageRawGetter, err)
	}

	v, err := f.pipes(instance).read.Run(f.pipeCtx(), raw)
	if err != nil {
		return nil, f.fail(instance, scope, capability.OpGet, start, pipeline.StageName(err), err)
	}

	f.commit(scope, v)
	f.report(instance, scope, capability.OpGet, start, capability.OutcomeOK, v, nil)
	return v, nil
}

// Set writes the attribute through the capability stack: instance
// lock, redundant-set suppression, write pipeline, raw setter, cache
// update, change notification, statistics, and access log.
//
// A failed set leaves the cached value unchanged and emits no change
// notification.
func (f *Feat) Set(instance Driver, value any) error {
	if f.fset == nil {
		return fmt.Errorf("%w: %s has no setter", ErrReadOnly, f.name)
	}

	f.locker.Acquire(instance)
	defer f.locker.Release(instance)

	scope := f.scope(instance)
	start := time.Now()

	if cached, ok := f.cache.Get(scope); ok && sameValue(cached, value) {
		f.report(instance, scope, capability.OpSet, start, capability.OutcomeSkipped, value, nil)
		return nil
	}

	raw, err := f.pipes(instance).write.Run(f.pipeCtx(), value)
	if err != nil {
		return f.fail(instance, scope, capability.OpSet, start, pipeline.StageName(err), err)
	}

	if err := f.fset(instance, raw); err != nil {
		return f.fail(instance, scope, capability.OpSet, start, stageRawSetter, err)
	}

	f.commit(scope, value)
	f.report(instance, scope, capability.OpSet, start, capability.OutcomeOK, value, nil)
	return nil
}

// InvalidateCache drops the cached value for an instance, forcing the
// next get to touch hardware even for read-once attributes.
func (f *Feat) InvalidateCache(instance Driver) {
	f.cache.Invalidate(f.scope(instance))
}

// pipeCtx builds the pipeline context for this descriptor.
func (f *Feat) pipeCtx() pipeline.Context {
	return pipeline.Context{Attr: f.name, Key: f.key}
}

// commit stores the user-facing value and notifies subscribers if it
// changed.
func (f *Feat) commit(scope capability.Scope, value any) {
	old, had := f.cache.Get(scope)
	f.cache.Put(scope, value)
	if !had || !sameValue(old, value) {
		var prev any
		if had {
			prev = old
		}
		f.observer.Notify(scope, prev, value)
	}
}

// fail records and wraps an access failure.
func (f *Feat) fail(instance Driver, scope capability.Scope, op capability.Op, start time.Time, stage string, err error) error {
	accessErr := &AccessError{
		Attr:     f.name,
		Instance: instance.InstanceID(),
		Key:      f.key,
		Op:       op,
		Stage:    stage,
		Err:      err,
	}
	f.report(instance, scope, op, start, capability.OutcomeFailed, nil, accessErr)
	return accessErr
}

// report records statistics and logs the access.
func (f *Feat) report(instance Driver, scope capability.Scope, op capability.Op, start time.Time, outcome capability.Outcome, value any, accessErr *AccessError) {
	duration := time.Since(start)
	f.stats.Record(scope, op, duration, outcome)

	event := accesslog.Event{
		Timestamp:  time.Now(),
		InstanceID: instance.InstanceID(),
		Attr:       f.name,
		Op:         op,
		Outcome:    outcome,
		Duration:   duration,
	}
	if f.key != nil {
		event.Key = fmt.Sprint(f.key)
	}
	if outcome != capability.OutcomeFailed && value != nil {
		event.Value = fmt.Sprint(value)
	}
	if accessErr != nil {
		event.Stage = accessErr.Stage
		event.Error = accessErr.Err.Error()
	}
	f.logger.Log(event)
}

// fork clones the descriptor for a subclass registry: the raw
// accessors, configuration, and class-scope modifiers are copied;
// caches, subscribers, and instance overrides are not shared.
func (f *Feat) fork() *Feat {
	return &Feat{
		name:      f.name,
		fget:      f.fget,
		fset:      f.fset,
		readOnce:  f.readOnce,
		key:       f.key,
		store:     f.store.fork(),
		instPipes: make(map[Driver]pipePair),
		cache:     capability.NewValueCache(),
		observer:  &capability.Subscribers{},
		stats:     f.stats,
		logger:    f.logger,
	}
}

// sameTolerance bounds the relative magnitude difference under which
// two quantities count as the same physical value.
const sameTolerance = 1e-9

// sameValue compares user-facing values for suppression and change
// notification. Quantities with compatible units are compared by
// magnitude, so 1.5 V equals 1500 mV; everything else falls back to
// DeepEqual, which keeps non-comparable values safe.
func sameValue(a, b any) bool {
	qa, aok := a.(quantity.Quantity)
	qb, bok := b.(quantity.Quantity)
	if aok && bok {
		m, err := qb.Magnitude(qa.Unit)
		if err != nil {
			return false
		}
		scale := math.Max(math.Abs(qa.Value), 1)
		return math.Abs(qa.Value-m) <= sameTolerance*scale
	}
	return reflect.DeepEqual(a, b)
}
