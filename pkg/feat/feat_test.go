package feat

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/featkit/featkit-go/pkg/capability"
	"github.com/featkit/featkit-go/pkg/pipeline"
	"github.com/featkit/featkit-go/pkg/quantity"
)

// testDriver simulates a device with named raw registers.
type testDriver struct {
	Base
	raw      map[string]any
	getCalls map[string]int
	setCalls map[string]int
	failGet  error
	failSet  error
}

func newTestDriver() *testDriver {
	return &testDriver{
		Base:     NewBase(),
		raw:      make(map[string]any),
		getCalls: make(map[string]int),
		setCalls: make(map[string]int),
	}
}

func rawGetter(register string) RawGetter {
	return func(inst Driver) (any, error) {
		d := inst.(*testDriver)
		d.getCalls[register]++
		if d.failGet != nil {
			return nil, d.failGet
		}
		return d.raw[register], nil
	}
}

func rawSetter(register string) RawSetter {
	return func(inst Driver, value any) error {
		d := inst.(*testDriver)
		d.setCalls[register]++
		if d.failSet != nil {
			return d.failSet
		}
		d.raw[register] = value
		return nil
	}
}

// newBoundFeat builds a descriptor bound to a fresh single-class
// registry.
func newBoundFeat(t *testing.T, register string, opts ...Option) *Feat {
	t.Helper()
	class := NewClass("TestDriver", nil)
	return class.Bind(New(register, rawGetter(register), rawSetter(register), opts...))
}

func stageNames(p pipeline.Pipeline) []string {
	names := make([]string, len(p.Stages))
	for i, s := range p.Stages {
		names[i] = s.Name
	}
	return names
}

func TestRebuildDeterminism(t *testing.T) {
	f := newBoundFeat(t, "mode",
		WithUnits("mV"),
		WithValues(MapValues(map[any]any{"low": 1.0, "high": 2.0})),
		WithLimits(pipeline.Range{Min: 0, Max: 10}),
		WithSetFuncs(func(ctx pipeline.Context, v any) (any, error) { return v, nil }),
	)

	firstRead := stageNames(f.classPipes.read)
	firstWrite := stageNames(f.classPipes.write)

	f.Rebuild(nil)

	if fmt.Sprint(stageNames(f.classPipes.read)) != fmt.Sprint(firstRead) {
		t.Errorf("read stage order changed across rebuilds: %v vs %v", stageNames(f.classPipes.read), firstRead)
	}
	if fmt.Sprint(stageNames(f.classPipes.write)) != fmt.Sprint(firstWrite) {
		t.Errorf("write stage order changed across rebuilds: %v vs %v", stageNames(f.classPipes.write), firstWrite)
	}

	// Construction order: units, values, limits, custom funcs; read
	// pipeline reversed.
	wantWrite := fmt.Sprint([]string{
		pipeline.StageUnitWrite, pipeline.StageMapper, pipeline.StageRangeChecker, "set_func_0",
	})
	if fmt.Sprint(firstWrite) != wantWrite {
		t.Errorf("unexpected write stage order: %v", firstWrite)
	}
	wantRead := fmt.Sprint([]string{pipeline.StageReverseMapper, pipeline.StageUnitRead})
	if fmt.Sprint(firstRead) != wantRead {
		t.Errorf("unexpected read stage order: %v", firstRead)
	}
}

func TestUnitsInverse(t *testing.T) {
	f := newBoundFeat(t, "voltage", WithUnits("mV"))
	inst := newTestDriver()

	if err := f.Set(inst, quantity.MustNew(1.5, "V")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	rawV, ok := inst.raw["voltage"].(float64)
	if !ok || math.Abs(rawV-1500) > 1e-9 {
		t.Fatalf("expected raw 1500, got %v", inst.raw["voltage"])
	}

	got, err := f.Get(inst)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	back, err := got.(quantity.Quantity).To("V")
	if err != nil {
		t.Fatalf("conversion failed: %v", err)
	}
	if math.Abs(back.Value-1.5) > 1e-9 {
		t.Errorf("read back %v, want 1.5 V", back)
	}
}

func TestValuesRoundTrip(t *testing.T) {
	f := newBoundFeat(t, "gain", WithValues(MapValues(map[any]any{"low": 1, "high": 2})))
	inst := newTestDriver()

	if err := f.Set(inst, "low"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if inst.raw["gain"] != 1 {
		t.Errorf("expected raw setter to receive 1, got %v", inst.raw["gain"])
	}

	inst.raw["gain"] = 2
	got, err := f.Get(inst)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != "high" {
		t.Errorf("expected high, got %v", got)
	}
}

func TestRangeEnforcement(t *testing.T) {
	f := newBoundFeat(t, "level", WithLimits(pipeline.Range{Min: 0, Max: 10}))
	inst := newTestDriver()

	err := f.Set(inst, 11)
	if err == nil {
		t.Fatal("expected out-of-range set to fail")
	}
	var accessErr *AccessError
	if !errors.As(err, &accessErr) {
		t.Fatalf("expected AccessError, got %T", err)
	}
	if accessErr.Stage != pipeline.StageRangeChecker {
		t.Errorf("expected failing stage %s, got %s", pipeline.StageRangeChecker, accessErr.Stage)
	}
	var ve *pipeline.ValidationError
	if !errors.As(err, &ve) {
		t.Error("expected ValidationError in chain")
	}
	if inst.setCalls["level"] != 0 {
		t.Errorf("raw setter invoked %d times for rejected value", inst.setCalls["level"])
	}

	if err := f.Set(inst, 10); err != nil {
		t.Fatalf("boundary set failed: %v", err)
	}
	if inst.setCalls["level"] != 1 {
		t.Errorf("expected 1 raw set, got %d", inst.setCalls["level"])
	}
}

func TestUnnecessarySetSuppression(t *testing.T) {
	f := newBoundFeat(t, "freq")
	inst := newTestDriver()

	notifications := 0
	f.Subscribe(capability.SubscriberFunc(func(scope capability.Scope, old, new any) {
		notifications++
	}))

	if err := f.Set(inst, 50); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := f.Set(inst, 50); err != nil {
		t.Fatalf("repeat Set failed: %v", err)
	}

	if inst.setCalls["freq"] != 1 {
		t.Errorf("expected 1 raw set, got %d", inst.setCalls["freq"])
	}
	if notifications != 1 {
		t.Errorf("expected 1 notification, got %d", notifications)
	}

	rec := f.Stats().(*capability.Recorder)
	if got := rec.Get(capability.OpSet, capability.OutcomeSkipped).Count; got != 1 {
		t.Errorf("expected 1 skipped set in stats, got %d", got)
	}
}

func TestUnitEquivalentSetSuppressed(t *testing.T) {
	f := newBoundFeat(t, "voltage", WithUnits("mV"))
	inst := newTestDriver()

	notifications := 0
	f.Subscribe(capability.SubscriberFunc(func(scope capability.Scope, old, new any) {
		notifications++
	}))

	if err := f.Set(inst, quantity.MustNew(1.5, "V")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	// The read caches the value in the attribute unit (1500 mV).
	if _, err := f.Get(inst); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	// Same physical value in a different unit: suppressed.
	if err := f.Set(inst, quantity.MustNew(1.5, "V")); err != nil {
		t.Fatalf("repeat Set failed: %v", err)
	}

	if inst.setCalls["voltage"] != 1 {
		t.Errorf("expected 1 raw set, got %d", inst.setCalls["voltage"])
	}
	if notifications != 1 {
		t.Errorf("expected 1 notification, got %d", notifications)
	}

	rec := f.Stats().(*capability.Recorder)
	if got := rec.Get(capability.OpSet, capability.OutcomeSkipped).Count; got != 1 {
		t.Errorf("expected 1 skipped set in stats, got %d", got)
	}

	// A genuinely different magnitude still writes and notifies.
	if err := f.Set(inst, quantity.MustNew(2, "V")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if inst.setCalls["voltage"] != 2 {
		t.Errorf("expected changed value to reach hardware, got %d raw sets", inst.setCalls["voltage"])
	}
	if notifications != 2 {
		t.Errorf("expected 2 notifications, got %d", notifications)
	}
}

func TestUnsubscribe(t *testing.T) {
	f := newBoundFeat(t, "gain")
	inst := newTestDriver()

	notifications := 0
	id := f.Subscribe(capability.SubscriberFunc(func(scope capability.Scope, old, new any) {
		notifications++
	}))

	if err := f.Set(inst, 1); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	f.Unsubscribe(id)
	if err := f.Set(inst, 2); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if notifications != 1 {
		t.Errorf("expected no notification after unsubscribe, got %d", notifications)
	}
}

func TestReadOnce(t *testing.T) {
	f := newBoundFeat(t, "serial", WithReadOnce())
	inst := newTestDriver()
	inst.raw["serial"] = "SN-1234"

	for i := 0; i < 3; i++ {
		got, err := f.Get(inst)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got != "SN-1234" {
			t.Errorf("expected SN-1234, got %v", got)
		}
	}
	if inst.getCalls["serial"] != 1 {
		t.Errorf("expected 1 raw get, got %d", inst.getCalls["serial"])
	}

	f.InvalidateCache(inst)
	if _, err := f.Get(inst); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if inst.getCalls["serial"] != 2 {
		t.Errorf("expected raw get after invalidation, got %d calls", inst.getCalls["serial"])
	}
}

func TestFailedSetLeavesCache(t *testing.T) {
	f := newBoundFeat(t, "span")
	inst := newTestDriver()

	notifications := 0
	f.Subscribe(capability.SubscriberFunc(func(scope capability.Scope, old, new any) {
		notifications++
	}))

	if err := f.Set(inst, 1); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	inst.failSet = errors.New("bus timeout")
	err := f.Set(inst, 2)
	if err == nil {
		t.Fatal("expected raw setter failure to surface")
	}
	var accessErr *AccessError
	if !errors.As(err, &accessErr) || accessErr.Stage != "raw_setter" {
		t.Errorf("expected AccessError at raw_setter, got %v", err)
	}

	// Cache keeps the old value: retrying the old value is suppressed.
	inst.failSet = nil
	if err := f.Set(inst, 1); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if inst.setCalls["span"] != 2 {
		t.Errorf("expected suppressed retry of cached value, got %d raw sets", inst.setCalls["span"])
	}
	if notifications != 1 {
		t.Errorf("expected no notification from failed set, got %d", notifications)
	}

	rec := f.Stats().(*capability.Recorder)
	if got := rec.Get(capability.OpSet, capability.OutcomeFailed).Count; got != 1 {
		t.Errorf("expected failed set recorded in stats, got %d", got)
	}
}

func TestCustomFuncs(t *testing.T) {
	double := pipeline.Func(func(ctx pipeline.Context, v any) (any, error) {
		return v.(int) * 2, nil
	})

	f := newBoundFeat(t, "count",
		WithGetFuncs(nil, double), // nil entries are skipped
		WithSetFuncs(double),
	)
	inst := newTestDriver()

	if err := f.Set(inst, 3); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if inst.raw["count"] != 6 {
		t.Errorf("expected set func applied, raw = %v", inst.raw["count"])
	}

	inst.raw["count"] = 5
	got, err := f.Get(inst)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != 10 {
		t.Errorf("expected get func applied, got %v", got)
	}
}

func TestMembershipValues(t *testing.T) {
	f := newBoundFeat(t, "coupling", WithValues(RestrictValues("AC", "DC")))
	inst := newTestDriver()

	if err := f.Set(inst, "AC"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if inst.raw["coupling"] != "AC" {
		t.Errorf("membership values must pass through, raw = %v", inst.raw["coupling"])
	}

	if err := f.Set(inst, "GND"); err == nil {
		t.Error("expected non-member value to fail")
	}
}

func TestAccessorPresence(t *testing.T) {
	class := NewClass("TestDriver", nil)
	readOnly := class.Bind(New("temp", rawGetter("temp"), nil))
	writeOnly := class.Bind(New("trigger", nil, rawSetter("trigger")))
	inst := newTestDriver()

	if err := readOnly.Set(inst, 1); !errors.Is(err, ErrReadOnly) {
		t.Errorf("expected ErrReadOnly, got %v", err)
	}
	if _, err := writeOnly.Get(inst); !errors.Is(err, ErrWriteOnly) {
		t.Errorf("expected ErrWriteOnly, got %v", err)
	}
}

func TestInstanceOverrideIsolation(t *testing.T) {
	f := newBoundFeat(t, "voltage", WithUnits("mV"))
	instA := newTestDriver()
	instB := newTestDriver()

	// Override instance A to volts; B keeps the class default.
	if err := f.SetModifier(instA, KeyUnits, "V"); err != nil {
		t.Fatalf("SetModifier failed: %v", err)
	}

	if err := f.Set(instA, 2); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := f.Set(instB, 2); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	gotA, err := f.Get(instA)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	gotB, err := f.Get(instB)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if unit := gotA.(quantity.Quantity).Unit.Symbol; unit != "V" {
		t.Errorf("instance A expected V, got %s", unit)
	}
	if unit := gotB.(quantity.Quantity).Unit.Symbol; unit != "mV" {
		t.Errorf("instance B expected class default mV, got %s", unit)
	}
}

func TestSetModifierName(t *testing.T) {
	f := newBoundFeat(t, "voltage")
	inst := newTestDriver()

	if err := f.SetModifierName(inst, "units", "mV"); err != nil {
		t.Fatalf("SetModifierName failed: %v", err)
	}
	if err := f.SetModifierName(inst, "read_funcs", nil); !errors.Is(err, ErrInvalidModifier) {
		t.Errorf("expected ErrInvalidModifier for unknown name, got %v", err)
	}
	if err := f.SetModifierName(inst, "units", "bogus"); !errors.Is(err, ErrInvalidModifier) {
		t.Errorf("expected ErrInvalidModifier for bad unit, got %v", err)
	}
}

func TestGetFailureRecorded(t *testing.T) {
	f := newBoundFeat(t, "temp")
	inst := newTestDriver()
	inst.failGet = errors.New("sensor offline")

	_, err := f.Get(inst)
	var accessErr *AccessError
	if !errors.As(err, &accessErr) || accessErr.Stage != "raw_getter" {
		t.Fatalf("expected AccessError at raw_getter, got %v", err)
	}

	rec := f.Stats().(*capability.Recorder)
	if got := rec.Get(capability.OpGet, capability.OutcomeFailed).Count; got != 1 {
		t.Errorf("expected failed get recorded, got %d", got)
	}
}
