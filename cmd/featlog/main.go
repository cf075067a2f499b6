// Command featlog is a tool for viewing and analyzing attribute access
// log files.
//
// Log files are created by the access logging infrastructure, for
// example when running featsim with the -log flag.
//
// Usage:
//
//	featlog <command> [flags] <file.flog>
//
// Commands:
//
//	view     View log file in human-readable format
//	export   Export log file to JSON or CSV format
//	filter   Filter log file and write to new file
//	stats    Show statistics about the log file
//
// Examples:
//
//	# View all events
//	featlog view access.flog
//
//	# View only failed sets
//	featlog view --op set --outcome failed access.flog
//
//	# Export to JSONL
//	featlog export --format jsonl access.flog
//
//	# Filter by attribute and save to new file
//	featlog filter --attr voltage -o voltage.flog access.flog
//
//	# Show statistics
//	featlog stats access.flog
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/featkit/featkit-go/cmd/featlog/commands"
)

const usage = `featlog - Attribute Access Log Analyzer

Usage:
  featlog <command> [flags] <file.flog>

Commands:
  view     View log file in human-readable format
  export   Export log file to JSON or CSV format
  filter   Filter log file and write to new file
  stats    Show statistics about the log file

Use "featlog <command> -help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "view":
		runView(args)
	case "export":
		runExport(args)
	case "filter":
		runFilter(args)
	case "stats":
		runStats(args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}

func runView(args []string) {
	fs := flag.NewFlagSet("view", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `featlog view - View log file in human-readable format

Usage:
  featlog view [flags] <file.flog>

Flags:
`)
		fs.PrintDefaults()
	}

	attr := fs.String("attr", "", "Filter by attribute name")
	op := fs.String("op", "", "Filter by operation (get, set)")
	outcome := fs.String("outcome", "", "Filter by outcome (ok, skipped, failed)")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: log file path required")
		fs.Usage()
		os.Exit(1)
	}

	path := fs.Arg(0)

	var filter commands.ViewFilter
	filter.Attr = *attr

	if *op != "" {
		o, err := commands.ParseOpFlag(*op)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		filter.Op = &o
	}

	if *outcome != "" {
		o, err := commands.ParseOutcomeFlag(*outcome)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		filter.Outcome = &o
	}

	if err := commands.RunView(path, filter, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runExport(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `featlog export - Export log file to JSON or CSV format

Usage:
  featlog export [flags] <file.flog>

Flags:
`)
		fs.PrintDefaults()
	}

	format := fs.String("format", "jsonl", "Output format (jsonl, csv)")
	output := fs.String("o", "", "Output file (default: stdout)")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: log file path required")
		fs.Usage()
		os.Exit(1)
	}

	path := fs.Arg(0)

	if err := commands.RunExport(path, *format, *output); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runFilter(args []string) {
	fs := flag.NewFlagSet("filter", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `featlog filter - Filter log file and write to new file

Usage:
  featlog filter [flags] <file.flog>

Flags:
`)
		fs.PrintDefaults()
	}

	output := fs.String("o", "", "Output file (required)")
	instanceID := fs.String("instance-id", "", "Filter by instance ID")
	attr := fs.String("attr", "", "Filter by attribute name")
	key := fs.String("key", "", "Filter by indexed-attribute key")
	op := fs.String("op", "", "Filter by operation (get, set)")
	outcome := fs.String("outcome", "", "Filter by outcome (ok, skipped, failed)")
	timeStart := fs.String("time-start", "", "Filter by start time (RFC3339)")
	timeEnd := fs.String("time-end", "", "Filter by end time (RFC3339)")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: log file path required")
		fs.Usage()
		os.Exit(1)
	}

	if *output == "" {
		fmt.Fprintln(os.Stderr, "Error: output file (-o) required")
		fs.Usage()
		os.Exit(1)
	}

	path := fs.Arg(0)

	opts := commands.FilterOptions{
		Output:     *output,
		InstanceID: *instanceID,
		Attr:       *attr,
		Key:        *key,
		Op:         *op,
		Outcome:    *outcome,
		TimeStart:  *timeStart,
		TimeEnd:    *timeEnd,
	}

	if err := commands.RunFilter(path, opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runStats(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `featlog stats - Show statistics about the log file

Usage:
  featlog stats <file.flog>

`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: log file path required")
		fs.Usage()
		os.Exit(1)
	}

	path := fs.Arg(0)

	if err := commands.RunStats(path, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
