package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/featkit/featkit-go/pkg/accesslog"
)

// FilterOptions specifies filtering criteria for the filter command.
type FilterOptions struct {
	Output     string
	InstanceID string
	Attr       string
	Key        string
	Op         string
	Outcome    string
	TimeStart  string
	TimeEnd    string
}

// RunFilter filters the log file and writes matching events to a new file.
func RunFilter(path string, opts FilterOptions) error {
	filter := accesslog.Filter{
		InstanceID: opts.InstanceID,
		Attr:       opts.Attr,
		Key:        opts.Key,
	}

	if opts.TimeStart != "" {
		t, err := time.Parse(time.RFC3339, opts.TimeStart)
		if err != nil {
			return fmt.Errorf("invalid time-start format: %w", err)
		}
		filter.TimeStart = &t
	}

	if opts.TimeEnd != "" {
		t, err := time.Parse(time.RFC3339, opts.TimeEnd)
		if err != nil {
			return fmt.Errorf("invalid time-end format: %w", err)
		}
		filter.TimeEnd = &t
	}

	if opts.Op != "" {
		op, err := ParseOpFlag(opts.Op)
		if err != nil {
			return err
		}
		filter.Op = &op
	}

	if opts.Outcome != "" {
		outcome, err := ParseOutcomeFlag(opts.Outcome)
		if err != nil {
			return err
		}
		filter.Outcome = &outcome
	}

	reader, err := accesslog.NewFilteredReader(path, filter)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	logger, err := accesslog.NewFileLogger(opts.Output)
	if err != nil {
		return fmt.Errorf("failed to create output logger: %w", err)
	}
	defer logger.Close()

	count := 0
	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}

		logger.Log(event)
		count++
	}

	fmt.Printf("Filtered %d events to %s\n", count, opts.Output)
	return nil
}
