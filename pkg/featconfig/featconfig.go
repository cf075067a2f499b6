// Package featconfig loads per-attribute modifier defaults from YAML
// and applies them onto a feat class registry.
//
// The document shape is one block per attribute name:
//
//	attributes:
//	  voltage:
//	    units: mV
//	    limits:
//	      - {min: 0, max: 5000, step: 0.5}
//	  waveform:
//	    values:
//	      sine: 0
//	      square: 1
//	  coupling:
//	    allowed: [AC, DC]
//
// Applying a document sets class-scope modifiers, so it participates in
// the registry's copy-on-write forking: applying onto a subclass never
// changes the parent class.
package featconfig

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/featkit/featkit-go/pkg/feat"
	"github.com/featkit/featkit-go/pkg/pipeline"
)

// Document is a parsed modifier-defaults file.
type Document struct {
	// Attributes maps attribute names to their modifier defaults.
	Attributes map[string]Attribute `yaml:"attributes"`
}

// Attribute holds the loadable modifiers for one attribute. Custom
// get/set funcs are code, not configuration, and cannot be loaded.
type Attribute struct {
	// Values maps caller values to raw device values.
	Values map[string]any `yaml:"values"`

	// Allowed restricts caller values without mapping them. Mutually
	// exclusive with Values.
	Allowed []any `yaml:"allowed"`

	// Units is the attribute unit symbol.
	Units string `yaml:"units"`

	// Limits are the accepted ranges; a value passes if any matches.
	Limits []Limit `yaml:"limits"`
}

// Limit is one accepted range.
type Limit struct {
	Min  float64 `yaml:"min"`
	Max  float64 `yaml:"max"`
	Step float64 `yaml:"step"`
}

// Parse reads a modifier-defaults document. Unknown fields are
// rejected so typos surface instead of silently dropping modifiers.
func Parse(r io.Reader) (*Document, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return &Document{}, nil
		}
		return nil, fmt.Errorf("parsing feat config: %w", err)
	}
	return &doc, nil
}

// ParseFile reads a modifier-defaults document from a file.
func ParseFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Apply sets the document's modifiers as class-scope defaults on the
// class. Attributes are applied in name order so errors are
// deterministic; the first error aborts and is returned with the
// offending attribute named.
func (d *Document) Apply(class *feat.Class) error {
	names := make([]string, 0, len(d.Attributes))
	for name := range d.Attributes {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := applyAttribute(class, name, d.Attributes[name]); err != nil {
			return fmt.Errorf("attribute %q: %w", name, err)
		}
	}
	return nil
}

func applyAttribute(class *feat.Class, name string, a Attribute) error {
	if len(a.Values) > 0 && len(a.Allowed) > 0 {
		return fmt.Errorf("%w: values and allowed are mutually exclusive", feat.ErrInvalidModifier)
	}

	if len(a.Values) > 0 {
		if err := class.SetModifier(name, feat.KeyValues, a.Values); err != nil {
			return err
		}
	}
	if len(a.Allowed) > 0 {
		if err := class.SetModifier(name, feat.KeyValues, feat.RestrictValues(a.Allowed...)); err != nil {
			return err
		}
	}
	if a.Units != "" {
		if err := class.SetModifier(name, feat.KeyUnits, a.Units); err != nil {
			return err
		}
	}
	if len(a.Limits) > 0 {
		ranges := make([]pipeline.Range, len(a.Limits))
		for i, l := range a.Limits {
			ranges[i] = pipeline.Range{Min: l.Min, Max: l.Max, Step: l.Step}
		}
		if err := class.SetModifier(name, feat.KeyLimits, ranges); err != nil {
			return err
		}
	}
	return nil
}
