package main

import (
	"fmt"

	"github.com/featkit/featkit-go/pkg/accesslog"
	"github.com/featkit/featkit-go/pkg/capability"
	"github.com/featkit/featkit-go/pkg/feat"
	"github.com/featkit/featkit-go/pkg/pipeline"
)

// FGen simulates a two-channel function generator. Raw accessors
// operate on device-native magnitudes (millivolts, hertz, enum codes);
// the feat layer handles units, mapping, and limits.
type FGen struct {
	feat.Base

	registers  map[string]any
	amplitudes map[any]any
}

// NewFGen creates a simulated generator with power-on defaults.
func NewFGen() *FGen {
	return &FGen{
		Base: feat.NewBase(),
		registers: map[string]any{
			"voltage":   0.0,
			"frequency": 1000.0,
			"waveform":  0,
			"coupling":  "DC",
			"serial":    "FG-2026-0042",
		},
		amplitudes: map[any]any{1: 100.0, 2: 100.0},
	}
}

func registerGetter(register string) feat.RawGetter {
	return func(inst feat.Driver) (any, error) {
		return inst.(*FGen).registers[register], nil
	}
}

func registerSetter(register string) feat.RawSetter {
	return func(inst feat.Driver, value any) error {
		inst.(*FGen).registers[register] = value
		return nil
	}
}

func amplitudeGetter(inst feat.Driver, key any) (any, error) {
	g := inst.(*FGen)
	v, ok := g.amplitudes[key]
	if !ok {
		return nil, fmt.Errorf("channel %v not fitted", key)
	}
	return v, nil
}

func amplitudeSetter(inst feat.Driver, key any, value any) error {
	inst.(*FGen).amplitudes[key] = value
	return nil
}

// buildClass declares the generator's attribute class with the given
// ambient stack.
func buildClass(logger accesslog.Logger, stats capability.Stats) *feat.Class {
	class := feat.NewClass("FGen", nil)
	ambient := []feat.Option{feat.WithLogger(logger), feat.WithStats(stats)}

	class.Bind(feat.New("voltage", registerGetter("voltage"), registerSetter("voltage"),
		append(ambient,
			feat.WithUnits("mV"),
			feat.WithLimits(pipeline.Range{Min: 0, Max: 5000, Step: 0.5}),
		)...))

	class.Bind(feat.New("frequency", registerGetter("frequency"), registerSetter("frequency"),
		append(ambient,
			feat.WithUnits("Hz"),
			feat.WithLimits(pipeline.Range{Min: 0.1, Max: 5e6}),
		)...))

	class.Bind(feat.New("waveform", registerGetter("waveform"), registerSetter("waveform"),
		append(ambient,
			feat.WithValues(feat.MapValues(map[any]any{"sine": 0, "square": 1, "triangle": 2})),
		)...))

	class.Bind(feat.New("coupling", registerGetter("coupling"), registerSetter("coupling"),
		append(ambient,
			feat.WithValues(feat.RestrictValues("AC", "DC")),
		)...))

	class.Bind(feat.New("serial", registerGetter("serial"), nil,
		append(ambient, feat.WithReadOnce())...))

	class.BindDict(feat.NewDict("amplitude", amplitudeGetter, amplitudeSetter,
		append(ambient,
			feat.WithKeys(1, 2),
			feat.WithUnits("mV"),
			feat.WithLimits(pipeline.Range{Min: 0, Max: 2000}),
		)...))

	return class
}
