package capability

import (
	"sync"
	"time"
)

// Scope identifies one attribute value on one owning instance.
type Scope struct {
	// Instance is the owning driver instance. Nil means class scope.
	Instance any

	// Attr is the attribute name.
	Attr string

	// Key is the indexed-attribute key, nil for plain attributes.
	Key any
}

// Op identifies the access operation.
type Op uint8

const (
	// OpGet reads the attribute.
	OpGet Op = 0

	// OpSet writes the attribute.
	OpSet Op = 1
)

// String returns the operation name.
func (o Op) String() string {
	switch o {
	case OpGet:
		return "GET"
	case OpSet:
		return "SET"
	default:
		return "UNKNOWN"
	}
}

// Outcome classifies a finished access.
type Outcome uint8

const (
	// OutcomeOK means the access completed.
	OutcomeOK Outcome = 0

	// OutcomeSkipped means a redundant set was suppressed.
	OutcomeSkipped Outcome = 1

	// OutcomeFailed means a pipeline stage or raw accessor failed.
	OutcomeFailed Outcome = 2
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "OK"
	case OutcomeSkipped:
		return "SKIPPED"
	case OutcomeFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Locker serializes access per owning instance.
type Locker interface {
	// Acquire blocks until the instance lock is held.
	Acquire(instance any)

	// Release releases the instance lock.
	Release(instance any)
}

// Cache stores the last known user-facing value per scope.
type Cache interface {
	// Get returns the cached value and whether one exists.
	Get(scope Scope) (any, bool)

	// Put stores a value.
	Put(scope Scope, value any)

	// Invalidate removes a cached value.
	Invalidate(scope Scope)
}

// Observer is notified after a cached value changed.
type Observer interface {
	// Notify reports a value change. old is nil when no previous value
	// was cached.
	Notify(scope Scope, old, new any)
}

// Stats records access timing and outcomes.
type Stats interface {
	// Record one finished access.
	Record(scope Scope, op Op, duration time.Duration, outcome Outcome)
}

// InstanceLocker is a Locker handing out one mutex per instance.
// Mutexes live as long as the locker; instances are keyed by identity.
type InstanceLocker struct {
	mu    sync.Mutex
	locks map[any]*sync.Mutex
}

// NewInstanceLocker creates an empty InstanceLocker.
func NewInstanceLocker() *InstanceLocker {
	return &InstanceLocker{locks: make(map[any]*sync.Mutex)}
}

func (l *InstanceLocker) lockFor(instance any) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[instance]
	if !ok {
		m = &sync.Mutex{}
		l.locks[instance] = m
	}
	return m
}

// Acquire implements Locker.
func (l *InstanceLocker) Acquire(instance any) {
	l.lockFor(instance).Lock()
}

// Release implements Locker.
func (l *InstanceLocker) Release(instance any) {
	l.lockFor(instance).Unlock()
}

// ValueCache is an in-memory Cache. The zero value is not usable; use
// NewValueCache.
type ValueCache struct {
	mu     sync.RWMutex
	values map[Scope]any
}

// NewValueCache creates an empty ValueCache.
func NewValueCache() *ValueCache {
	return &ValueCache{values: make(map[Scope]any)}
}

// Get implements Cache.
func (c *ValueCache) Get(scope Scope) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[scope]
	return v, ok
}

// Put implements Cache.
func (c *ValueCache) Put(scope Scope, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[scope] = value
}

// Invalidate implements Cache.
func (c *ValueCache) Invalidate(scope Scope) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.values, scope)
}

// Subscriber receives change notifications.
type Subscriber interface {
	// OnValueChanged is called after a cached value changed.
	OnValueChanged(scope Scope, old, new any)
}

// SubscriberFunc adapts a function to the Subscriber interface.
type SubscriberFunc func(scope Scope, old, new any)

// OnValueChanged implements Subscriber.
func (f SubscriberFunc) OnValueChanged(scope Scope, old, new any) {
	f(scope, old, new)
}

// Subscription identifies one registered subscriber for removal.
type Subscription uint64

// Subscribers is an Observer fanning out to registered subscribers.
// Subscribers are keyed by token rather than identity, so uncomparable
// subscriber types such as SubscriberFunc work. The zero value is
// usable.
type Subscribers struct {
	mu     sync.RWMutex
	nextID Subscription
	subs   map[Subscription]Subscriber
}

// Subscribe adds a subscriber and returns the token that removes it.
func (s *Subscribers) Subscribe(sub Subscriber) Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subs == nil {
		s.subs = make(map[Subscription]Subscriber)
	}
	s.nextID++
	s.subs[s.nextID] = sub
	return s.nextID
}

// Unsubscribe removes the subscriber registered under id. Unknown ids
// are ignored.
func (s *Subscribers) Unsubscribe(id Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, id)
}

// Notify implements Observer. Subscribers are called synchronously on
// the accessing goroutine, in no particular order.
func (s *Subscribers) Notify(scope Scope, old, new any) {
	s.mu.RLock()
	subs := make([]Subscriber, 0, len(s.subs))
	for _, sub := range s.subs {
		subs = append(subs, sub)
	}
	s.mu.RUnlock()

	for _, sub := range subs {
		sub.OnValueChanged(scope, old, new)
	}
}

// NoopStats discards all records. Usable as a zero value.
type NoopStats struct{}

// Record implements Stats.
func (NoopStats) Record(Scope, Op, time.Duration, Outcome) {}

// NoopObserver discards all notifications. Usable as a zero value.
type NoopObserver struct{}

// Notify implements Observer.
func (NoopObserver) Notify(Scope, any, any) {}

// Compile-time interface satisfaction checks.
var (
	_ Locker   = (*InstanceLocker)(nil)
	_ Cache    = (*ValueCache)(nil)
	_ Observer = (*Subscribers)(nil)
	_ Observer = NoopObserver{}
	_ Stats    = NoopStats{}
)
