// Package feat implements the attribute descriptor framework for
// instrument and device drivers.
//
// A Feat binds a named, typed attribute to a pair of raw accessor
// functions supplied by the driver author. Values crossing the
// attribute flow through a pipeline rebuilt from five modifiers
// (values, units, limits, get_funcs, set_funcs), and every access runs
// inside a fixed capability stack: instance lock, redundant-set
// suppression, read-once caching, transformation, change notification,
// statistics, and access logging.
//
// A DictFeat is the indexed variant: one logical attribute addressed by
// a key (per-channel settings and the like), materializing one Feat per
// (instance, key) pair on first access.
//
// # Declaring attributes
//
// Driver authors declare a class and bind descriptors to it, typically
// at package initialization:
//
//	var fgenClass = feat.NewClass("FunctionGenerator", nil)
//
//	var voltage = fgenClass.Bind(feat.New("voltage",
//	    func(inst feat.Driver) (any, error) { return inst.(*FGen).readVoltage() },
//	    func(inst feat.Driver, v any) error { return inst.(*FGen).writeVoltage(v) },
//	    feat.WithUnits("mV"),
//	    feat.WithLimits(pipeline.Range{Min: 0, Max: 5000}),
//	))
//
// Instances access the attribute through the descriptor:
//
//	q, err := voltage.Get(inst)
//	err = voltage.Set(inst, quantity.MustNew(1.5, "V"))
//
// Per-instance modifier overrides go through a Proxy, leaving the
// class-level defaults untouched:
//
//	feat.NewProxy(inst, voltage).Write("units", "V")
//
// # Subclassing
//
// A class created with a parent inherits the parent's descriptors.
// Registries never share mutable entries: changing a modifier through
// the subclass forks the descriptor first, so the parent's behavior is
// unaffected.
package feat
