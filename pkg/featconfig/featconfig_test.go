package featconfig

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/featkit/featkit-go/pkg/feat"
)

// simDriver is a minimal driver for apply tests.
type simDriver struct {
	feat.Base
	raw map[string]any
}

func newSimDriver() *simDriver {
	return &simDriver{Base: feat.NewBase(), raw: make(map[string]any)}
}

func bindClass() *feat.Class {
	class := feat.NewClass("Sim", nil)
	for _, name := range []string{"voltage", "waveform", "coupling"} {
		register := name
		class.Bind(feat.New(register,
			func(inst feat.Driver) (any, error) { return inst.(*simDriver).raw[register], nil },
			func(inst feat.Driver, v any) error { inst.(*simDriver).raw[register] = v; return nil },
		))
	}
	return class
}

const sampleConfig = `
attributes:
  voltage:
    units: mV
    limits:
      - {min: 0, max: 5000, step: 0.5}
  waveform:
    values:
      sine: 0
      square: 1
  coupling:
    allowed: [AC, DC]
`

func TestParse(t *testing.T) {
	doc, err := Parse(strings.NewReader(sampleConfig))
	require.NoError(t, err)

	require.Len(t, doc.Attributes, 3)
	assert.Equal(t, "mV", doc.Attributes["voltage"].Units)
	require.Len(t, doc.Attributes["voltage"].Limits, 1)
	assert.Equal(t, 5000.0, doc.Attributes["voltage"].Limits[0].Max)
	assert.Equal(t, 1, doc.Attributes["waveform"].Values["square"])
	assert.Equal(t, []any{"AC", "DC"}, doc.Attributes["coupling"].Allowed)
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := Parse(strings.NewReader("attributes:\n  voltage:\n    unit: mV\n"))
	require.Error(t, err, "typo'd field must not be dropped silently")
}

func TestParseEmpty(t *testing.T) {
	doc, err := Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, doc.Attributes)
}

func TestApply(t *testing.T) {
	doc, err := Parse(strings.NewReader(sampleConfig))
	require.NoError(t, err)

	class := bindClass()
	require.NoError(t, doc.Apply(class))
	inst := newSimDriver()

	voltage, err := class.Feat("voltage")
	require.NoError(t, err)
	assert.Equal(t, "mV", voltage.Modifier(nil, feat.KeyUnits))
	assert.Error(t, voltage.Set(inst, 6000), "limit from config not enforced")
	assert.NoError(t, voltage.Set(inst, 4999.5))

	waveform, err := class.Feat("waveform")
	require.NoError(t, err)
	require.NoError(t, waveform.Set(inst, "square"))
	assert.Equal(t, 1, inst.raw["waveform"])

	coupling, err := class.Feat("coupling")
	require.NoError(t, err)
	assert.NoError(t, coupling.Set(inst, "AC"))
	assert.Error(t, coupling.Set(inst, "GND"))
}

func TestApplyUnknownAttribute(t *testing.T) {
	doc, err := Parse(strings.NewReader("attributes:\n  phase:\n    units: Hz\n"))
	require.NoError(t, err)

	err = doc.Apply(bindClass())
	require.ErrorIs(t, err, feat.ErrAttributeNotFound)
	assert.Contains(t, err.Error(), "phase")
}

func TestApplyExclusiveValues(t *testing.T) {
	doc := &Document{Attributes: map[string]Attribute{
		"waveform": {Values: map[string]any{"sine": 0}, Allowed: []any{"sine"}},
	}}
	err := doc.Apply(bindClass())
	require.ErrorIs(t, err, feat.ErrInvalidModifier)
}

func TestApplySubclassIsolation(t *testing.T) {
	parent := bindClass()
	child := feat.NewClass("DeepSim", parent)

	doc, err := Parse(strings.NewReader("attributes:\n  voltage:\n    units: V\n"))
	require.NoError(t, err)
	require.NoError(t, doc.Apply(child))

	parentVoltage, err := parent.Feat("voltage")
	require.NoError(t, err)
	assert.Equal(t, "", parentVoltage.Modifier(nil, feat.KeyUnits), "config applied to subclass leaked into parent")

	childVoltage, err := child.Feat("voltage")
	require.NoError(t, err)
	assert.Equal(t, "V", childVoltage.Modifier(nil, feat.KeyUnits))
}
