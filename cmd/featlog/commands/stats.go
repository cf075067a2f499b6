package commands

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/featkit/featkit-go/pkg/accesslog"
	"github.com/featkit/featkit-go/pkg/capability"
)

// Stats holds aggregate statistics about a log file.
type Stats struct {
	TotalEvents     int
	EventsByOp      map[capability.Op]int
	EventsByOutcome map[capability.Outcome]int
	Attributes      map[string]*AttrStats
	Failures        int
	TimeRange       struct {
		Start time.Time
		End   time.Time
	}
}

// AttrStats holds statistics for a single attribute.
type AttrStats struct {
	Events        int
	Failures      int
	TotalDuration time.Duration
	FirstSeen     time.Time
	LastSeen      time.Time
}

// RunStats analyzes the log file and prints statistics.
func RunStats(path string, w io.Writer) error {
	reader, err := accesslog.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	stats := &Stats{
		EventsByOp:      make(map[capability.Op]int),
		EventsByOutcome: make(map[capability.Outcome]int),
		Attributes:      make(map[string]*AttrStats),
	}

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}

		stats.TotalEvents++
		stats.EventsByOp[event.Op]++
		stats.EventsByOutcome[event.Outcome]++

		if stats.TimeRange.Start.IsZero() || event.Timestamp.Before(stats.TimeRange.Start) {
			stats.TimeRange.Start = event.Timestamp
		}
		if event.Timestamp.After(stats.TimeRange.End) {
			stats.TimeRange.End = event.Timestamp
		}

		attr, ok := stats.Attributes[event.Attr]
		if !ok {
			attr = &AttrStats{
				FirstSeen: event.Timestamp,
				LastSeen:  event.Timestamp,
			}
			stats.Attributes[event.Attr] = attr
		}
		attr.Events++
		attr.TotalDuration += event.Duration
		if event.Timestamp.After(attr.LastSeen) {
			attr.LastSeen = event.Timestamp
		}

		if event.Outcome == capability.OutcomeFailed {
			stats.Failures++
			attr.Failures++
		}
	}

	printStats(w, stats)
	return nil
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== Attribute Access Log Statistics ===")
	fmt.Fprintln(w)

	if stats.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n",
			stats.TimeRange.Start.Format(time.RFC3339),
			stats.TimeRange.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", stats.TimeRange.End.Sub(stats.TimeRange.Start).Round(time.Second))
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Total Events: %d\n", stats.TotalEvents)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Operation:")
	for _, op := range []capability.Op{capability.OpGet, capability.OpSet} {
		if count := stats.EventsByOp[op]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", op.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Outcome:")
	for _, outcome := range []capability.Outcome{capability.OutcomeOK, capability.OutcomeSkipped, capability.OutcomeFailed} {
		if count := stats.EventsByOutcome[outcome]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", outcome.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Attributes: %d\n", len(stats.Attributes))
	if len(stats.Attributes) > 0 {
		names := make([]string, 0, len(stats.Attributes))
		for name := range stats.Attributes {
			names = append(names, name)
		}
		sort.Strings(names)

		fmt.Fprintln(w, "")
		for _, name := range names {
			as := stats.Attributes[name]
			mean := as.TotalDuration / time.Duration(as.Events)
			fmt.Fprintf(w, "  %s: %d events, mean %s\n", name, as.Events, formatDuration(mean))
			if as.Failures > 0 {
				fmt.Fprintf(w, "    Failures: %d\n", as.Failures)
			}
		}
	}

	if stats.Failures > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Failures: %d\n", stats.Failures)
	}
}
