package commands

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/featkit/featkit-go/pkg/accesslog"
)

// RunExport exports the log file to the specified format.
func RunExport(path, format, output string) error {
	reader, err := accesslog.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	var w io.Writer = os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	switch format {
	case "jsonl":
		return exportJSONL(reader, w)
	case "csv":
		return exportCSV(reader, w)
	default:
		return fmt.Errorf("unknown format: %s (supported: jsonl, csv)", format)
	}
}

// exportEvent is the JSON shape of one exported access event.
type exportEvent struct {
	Timestamp  string `json:"timestamp"`
	InstanceID string `json:"instance_id"`
	Attr       string `json:"attr"`
	Key        string `json:"key,omitempty"`
	Op         string `json:"op"`
	Outcome    string `json:"outcome"`
	DurationNS int64  `json:"duration_ns"`
	Value      string `json:"value,omitempty"`
	Stage      string `json:"stage,omitempty"`
	Error      string `json:"error,omitempty"`
}

func toExportEvent(event accesslog.Event) exportEvent {
	return exportEvent{
		Timestamp:  event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z"),
		InstanceID: event.InstanceID,
		Attr:       event.Attr,
		Key:        event.Key,
		Op:         event.Op.String(),
		Outcome:    event.Outcome.String(),
		DurationNS: event.Duration.Nanoseconds(),
		Value:      event.Value,
		Stage:      event.Stage,
		Error:      event.Error,
	}
}

func exportJSONL(reader *accesslog.Reader, w io.Writer) error {
	encoder := json.NewEncoder(w)
	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		if err := encoder.Encode(toExportEvent(event)); err != nil {
			return fmt.Errorf("failed to encode event: %w", err)
		}
	}
	return nil
}

func exportCSV(reader *accesslog.Reader, w io.Writer) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	header := []string{"timestamp", "instance_id", "attr", "key", "op", "outcome", "duration_ns", "value", "stage", "error"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}

		row := []string{
			event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z"),
			event.InstanceID,
			event.Attr,
			event.Key,
			event.Op.String(),
			event.Outcome.String(),
			strconv.FormatInt(event.Duration.Nanoseconds(), 10),
			event.Value,
			event.Stage,
			event.Error,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	return nil
}
