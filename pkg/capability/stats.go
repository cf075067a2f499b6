package capability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Stat aggregates the accesses recorded for one (op, outcome) pair.
type Stat struct {
	Count int64
	Total time.Duration
	Min   time.Duration
	Max   time.Duration
}

// Mean returns the mean duration, or zero when nothing was recorded.
func (s Stat) Mean() time.Duration {
	if s.Count == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Count)
}

type statKey struct {
	op      Op
	outcome Outcome
}

// Recorder is an in-memory Stats implementation aggregating per
// (op, outcome). The zero value is usable.
type Recorder struct {
	mu    sync.Mutex
	stats map[statKey]Stat
}

// Record implements Stats.
func (r *Recorder) Record(scope Scope, op Op, duration time.Duration, outcome Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stats == nil {
		r.stats = make(map[statKey]Stat)
	}
	k := statKey{op: op, outcome: outcome}
	s := r.stats[k]
	if s.Count == 0 || duration < s.Min {
		s.Min = duration
	}
	if duration > s.Max {
		s.Max = duration
	}
	s.Count++
	s.Total += duration
	r.stats[k] = s
}

// Get returns the aggregate for one (op, outcome) pair.
func (r *Recorder) Get(op Op, outcome Outcome) Stat {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats[statKey{op: op, outcome: outcome}]
}

// Snapshot returns a copy of all aggregates keyed by "OP/OUTCOME".
func (r *Recorder) Snapshot() map[string]Stat {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]Stat, len(r.stats))
	for k, s := range r.stats {
		out[k.op.String()+"/"+k.outcome.String()] = s
	}
	return out
}

// PromStats exports access statistics as Prometheus metrics.
type PromStats struct {
	accesses *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewPromStats registers the metric vectors with the given registerer
// and returns the sink. Pass prometheus.DefaultRegisterer for the
// process-global registry.
func NewPromStats(reg prometheus.Registerer) *PromStats {
	factory := promauto.With(reg)
	return &PromStats{
		accesses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "featkit",
				Name:      "attribute_accesses_total",
				Help:      "Total attribute get/set operations by outcome",
			},
			[]string{"attr", "op", "outcome"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "featkit",
				Name:      "attribute_access_duration_seconds",
				Help:      "Attribute access duration in seconds",
				Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1, 5},
			},
			[]string{"attr", "op"},
		),
	}
}

// Record implements Stats.
func (p *PromStats) Record(scope Scope, op Op, duration time.Duration, outcome Outcome) {
	p.accesses.WithLabelValues(scope.Attr, op.String(), outcome.String()).Inc()
	p.duration.WithLabelValues(scope.Attr, op.String()).Observe(duration.Seconds())
}

// MultiStats fans records out to several sinks.
type MultiStats []Stats

// Record implements Stats.
func (m MultiStats) Record(scope Scope, op Op, duration time.Duration, outcome Outcome) {
	for _, s := range m {
		s.Record(scope, op, duration, outcome)
	}
}

// Compile-time interface satisfaction checks.
var (
	_ Stats = (*Recorder)(nil)
	_ Stats = (*PromStats)(nil)
	_ Stats = MultiStats(nil)
)
