package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/featkit/featkit-go/pkg/capability"
	"github.com/featkit/featkit-go/pkg/feat"
	"github.com/featkit/featkit-go/pkg/pipeline"
)

// repl drives the interactive command loop against one simulated
// instance.
type repl struct {
	class    *feat.Class
	instance *FGen
	rl       *readline.Instance
}

func newREPL(class *feat.Class, instance *FGen) (*repl, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "featsim> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	r := &repl{class: class, instance: instance, rl: rl}

	// Echo value changes above the prompt.
	onChange := capability.SubscriberFunc(func(scope capability.Scope, old, new any) {
		if scope.Key != nil {
			fmt.Fprintf(rl.Stdout(), "* %s[%v]: %v -> %v\n", scope.Attr, scope.Key, old, new)
			return
		}
		fmt.Fprintf(rl.Stdout(), "* %s: %v -> %v\n", scope.Attr, old, new)
	})
	for _, name := range class.FeatNames() {
		if f, err := class.Feat(name); err == nil {
			f.Subscribe(onChange)
			continue
		}
		if d, err := class.DictFeat(name); err == nil {
			d.Subscribe(onChange)
		}
	}

	return r, nil
}

// Run starts the command loop. It returns when the user exits.
func (r *repl) Run() {
	defer r.rl.Close()

	r.printHelp()

	for {
		line, err := r.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(r.rl.Stdout(), "Exiting...")
			return
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		parts := strings.Fields(input)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "help", "?":
			r.printHelp()

		case "list", "l":
			r.cmdList()

		case "get", "g":
			r.cmdGet(args)

		case "set", "s":
			r.cmdSet(args)

		case "keys":
			r.cmdKeys(args)

		case "mods", "m":
			r.cmdMods(args)

		case "setmod":
			r.cmdSetMod(args)

		case "stats":
			r.cmdStats(args)

		case "quit", "exit", "q":
			fmt.Fprintln(r.rl.Stdout(), "Exiting...")
			return

		default:
			fmt.Fprintf(r.rl.Stdout(), "Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}
}

func (r *repl) printHelp() {
	fmt.Fprintln(r.rl.Stdout(), `
FeatSim Commands:
  Access:
    list                       - List attributes
    get <attr> [key]           - Read an attribute (key for indexed attributes)
    set <attr> [key] <value>   - Write an attribute
    keys <attr>                - Show the allowed keys of an indexed attribute

  Modifiers:
    mods <attr>                - Show the effective modifiers of an attribute
    setmod <attr> <mod> <val>  - Override a modifier on this instance
                                 mods: values, units, limits
                                 units: a symbol, e.g. mV
                                 limits: min:max or min:max:step

  Diagnostics:
    stats <attr>               - Show access statistics

  General:
    help                       - Show this help
    quit                       - Exit`)
}

func (r *repl) cmdList() {
	w := r.rl.Stdout()
	for _, name := range r.class.FeatNames() {
		if f, err := r.class.Feat(name); err == nil {
			tags := make([]string, 0, 2)
			if f.ReadOnce() {
				tags = append(tags, "read-once")
			}
			fmt.Fprintf(w, "  %-12s%s\n", name, strings.Join(tags, " "))
			continue
		}
		if d, err := r.class.DictFeat(name); err == nil {
			fmt.Fprintf(w, "  %-12sindexed, keys %v\n", name, d.Keys())
		}
	}
}

func (r *repl) cmdGet(args []string) {
	w := r.rl.Stdout()
	if len(args) < 1 {
		fmt.Fprintln(w, "Usage: get <attr> [key]")
		return
	}
	name := args[0]

	if f, err := r.class.Feat(name); err == nil {
		value, err := f.Get(r.instance)
		if err != nil {
			fmt.Fprintf(w, "Error: %v\n", err)
			return
		}
		fmt.Fprintf(w, "%s = %v\n", name, value)
		return
	}

	d, err := r.class.DictFeat(name)
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return
	}
	if len(args) < 2 {
		// Read every allowed key.
		for _, key := range d.Keys() {
			value, err := d.Get(r.instance, key)
			if err != nil {
				fmt.Fprintf(w, "%s[%v]: %v\n", name, key, err)
				continue
			}
			fmt.Fprintf(w, "%s[%v] = %v\n", name, key, value)
		}
		return
	}
	key := parseValue(args[1])
	value, err := d.Get(r.instance, key)
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(w, "%s[%v] = %v\n", name, key, value)
}

func (r *repl) cmdSet(args []string) {
	w := r.rl.Stdout()
	if len(args) < 2 {
		fmt.Fprintln(w, "Usage: set <attr> [key] <value>")
		return
	}
	name := args[0]

	if f, err := r.class.Feat(name); err == nil {
		if err := f.Set(r.instance, parseValue(args[1])); err != nil {
			fmt.Fprintf(w, "Error: %v\n", err)
		}
		return
	}

	d, err := r.class.DictFeat(name)
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return
	}
	if len(args) < 3 {
		fmt.Fprintf(w, "Usage: set %s <key> <value>\n", name)
		return
	}
	if err := d.Set(r.instance, parseValue(args[1]), parseValue(args[2])); err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
	}
}

func (r *repl) cmdKeys(args []string) {
	w := r.rl.Stdout()
	if len(args) < 1 {
		fmt.Fprintln(w, "Usage: keys <attr>")
		return
	}
	d, err := r.class.DictFeat(args[0])
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return
	}
	keys := d.Keys()
	if keys == nil {
		fmt.Fprintln(w, "any key")
		return
	}
	fmt.Fprintf(w, "%v\n", keys)
}

func (r *repl) cmdMods(args []string) {
	w := r.rl.Stdout()
	if len(args) < 1 {
		fmt.Fprintln(w, "Usage: mods <attr>")
		return
	}
	name := args[0]

	modifier := func(key feat.ModifierKey) any {
		if f, err := r.class.Feat(name); err == nil {
			return f.Modifier(r.instance, key)
		}
		if d, err := r.class.DictFeat(name); err == nil {
			return d.Modifier(r.instance, key)
		}
		return nil
	}
	if _, err := r.class.Feat(name); err != nil {
		if _, err := r.class.DictFeat(name); err != nil {
			fmt.Fprintf(w, "Error: %v\n", err)
			return
		}
	}

	if v, ok := modifier(feat.KeyValues).(*feat.ValuesSpec); ok && v != nil {
		if v.Mapping != nil {
			fmt.Fprintf(w, "  values: %v\n", v.Mapping)
		} else {
			fmt.Fprintf(w, "  values: %v\n", v.Members)
		}
	}
	if units, ok := modifier(feat.KeyUnits).(string); ok && units != "" {
		fmt.Fprintf(w, "  units:  %s\n", units)
	}
	if limits, ok := modifier(feat.KeyLimits).([]pipeline.Range); ok {
		for _, lim := range limits {
			if lim.Step > 0 {
				fmt.Fprintf(w, "  limits: [%v, %v] step %v\n", lim.Min, lim.Max, lim.Step)
			} else {
				fmt.Fprintf(w, "  limits: [%v, %v]\n", lim.Min, lim.Max)
			}
		}
	}
}

func (r *repl) cmdSetMod(args []string) {
	w := r.rl.Stdout()
	if len(args) < 3 {
		fmt.Fprintln(w, "Usage: setmod <attr> <modifier> <value>")
		return
	}
	name, modifier := args[0], args[1]

	value, err := parseModifierValue(modifier, args[2])
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return
	}

	if f, ferr := r.class.Feat(name); ferr == nil {
		err = f.SetModifierName(r.instance, modifier, value)
	} else if d, derr := r.class.DictFeat(name); derr == nil {
		err = d.SetModifierName(r.instance, modifier, value)
	} else {
		err = derr
	}
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
	}
}

func (r *repl) cmdStats(args []string) {
	w := r.rl.Stdout()
	if len(args) < 1 {
		fmt.Fprintln(w, "Usage: stats <attr>")
		return
	}
	name := args[0]

	var stats capability.Stats
	if f, err := r.class.Feat(name); err == nil {
		stats = f.Stats()
	} else if d, err := r.class.DictFeat(name); err == nil {
		stats = d.Stats()
	} else {
		fmt.Fprintf(w, "Error: %v\n", err)
		return
	}

	rec := findRecorder(stats)
	if rec == nil {
		fmt.Fprintln(w, "no in-memory statistics for this attribute")
		return
	}
	printSnapshot(w, rec.Snapshot())
}

func findRecorder(stats capability.Stats) *capability.Recorder {
	switch s := stats.(type) {
	case *capability.Recorder:
		return s
	case capability.MultiStats:
		for _, inner := range s {
			if rec := findRecorder(inner); rec != nil {
				return rec
			}
		}
	}
	return nil
}

func printSnapshot(w io.Writer, snapshot map[string]capability.Stat) {
	if len(snapshot) == 0 {
		fmt.Fprintln(w, "no accesses recorded")
		return
	}
	keys := make([]string, 0, len(snapshot))
	for k := range snapshot {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		s := snapshot[k]
		fmt.Fprintf(w, "  %-12s count=%d mean=%v min=%v max=%v\n", k, s.Count, s.Mean(), s.Min, s.Max)
	}
}

// parseValue interprets a command argument as an int, a float, or a
// plain string, in that order.
func parseValue(arg string) any {
	if n, err := strconv.Atoi(arg); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(arg, 64); err == nil {
		return f
	}
	return arg
}

// parseModifierValue converts a setmod argument into the dynamic type
// the modifier expects. Limits use min:max or min:max:step.
func parseModifierValue(modifier, arg string) (any, error) {
	switch modifier {
	case "units":
		return arg, nil
	case "limits":
		parts := strings.Split(arg, ":")
		if len(parts) != 2 && len(parts) != 3 {
			return nil, fmt.Errorf("limits want min:max or min:max:step, got %q", arg)
		}
		var rng pipeline.Range
		var err error
		if rng.Min, err = strconv.ParseFloat(parts[0], 64); err != nil {
			return nil, fmt.Errorf("bad min %q: %w", parts[0], err)
		}
		if rng.Max, err = strconv.ParseFloat(parts[1], 64); err != nil {
			return nil, fmt.Errorf("bad max %q: %w", parts[1], err)
		}
		if len(parts) == 3 {
			if rng.Step, err = strconv.ParseFloat(parts[2], 64); err != nil {
				return nil, fmt.Errorf("bad step %q: %w", parts[2], err)
			}
		}
		return rng, nil
	case "values":
		members := make([]any, 0, 4)
		for _, m := range strings.Split(arg, ",") {
			members = append(members, parseValue(m))
		}
		return feat.RestrictValues(members...), nil
	default:
		return nil, fmt.Errorf("unknown modifier %q", modifier)
	}
}
