// Package commands implements the featlog CLI commands.
package commands

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/featkit/featkit-go/pkg/accesslog"
	"github.com/featkit/featkit-go/pkg/capability"
)

// ViewFilter specifies criteria for filtering events in the view command.
type ViewFilter struct {
	Attr    string
	Op      *capability.Op
	Outcome *capability.Outcome
}

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event accesslog.Event) {
	ts := event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z")

	attr := event.Attr
	if event.Key != "" {
		attr = fmt.Sprintf("%s[%s]", event.Attr, event.Key)
	}

	instID := shortenInstanceID(event.InstanceID)
	fmt.Fprintf(w, "%s [inst:%s] %-3s %-8s %s (%s)\n",
		ts, instID, event.Op.String(), event.Outcome.String(), attr, formatDuration(event.Duration))

	if event.Value != "" {
		fmt.Fprintf(w, "  Value: %s\n", event.Value)
	}
	if event.Stage != "" {
		fmt.Fprintf(w, "  Stage: %s\n", event.Stage)
	}
	if event.Error != "" {
		fmt.Fprintf(w, "  Error: %s\n", event.Error)
	}

	fmt.Fprintln(w)
}

// shortenInstanceID returns the first 8 characters of the instance ID.
func shortenInstanceID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

// formatDuration formats a duration for display.
func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%.3fus", float64(d.Nanoseconds())/1000)
	}
	if d < time.Second {
		return fmt.Sprintf("%.3fms", float64(d.Microseconds())/1000)
	}
	return fmt.Sprintf("%.3fs", d.Seconds())
}

// ParseOpFlag parses an operation string from a command-line flag
// (case-insensitive).
func ParseOpFlag(s string) (capability.Op, error) {
	switch strings.ToLower(s) {
	case "get":
		return capability.OpGet, nil
	case "set":
		return capability.OpSet, nil
	default:
		return 0, fmt.Errorf("invalid op: %s (must be get or set)", s)
	}
}

// ParseOutcomeFlag parses an outcome string from a command-line flag
// (case-insensitive).
func ParseOutcomeFlag(s string) (capability.Outcome, error) {
	switch strings.ToLower(s) {
	case "ok":
		return capability.OutcomeOK, nil
	case "skipped":
		return capability.OutcomeSkipped, nil
	case "failed":
		return capability.OutcomeFailed, nil
	default:
		return 0, fmt.Errorf("invalid outcome: %s (must be ok, skipped, or failed)", s)
	}
}

// RunView executes the view command.
func RunView(path string, filter ViewFilter, output io.Writer) error {
	reader, err := accesslog.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}

		if filter.Attr != "" && event.Attr != filter.Attr {
			continue
		}
		if filter.Op != nil && event.Op != *filter.Op {
			continue
		}
		if filter.Outcome != nil && event.Outcome != *filter.Outcome {
			continue
		}

		formatEvent(output, event)
	}

	return nil
}
