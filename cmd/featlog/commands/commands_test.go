package commands

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/featkit/featkit-go/pkg/accesslog"
	"github.com/featkit/featkit-go/pkg/capability"
)

// createTestLogFile writes the events to a log file in a temp dir and
// returns its path.
func createTestLogFile(t *testing.T, events []accesslog.Event) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.flog")
	logger, err := accesslog.NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	for _, event := range events {
		logger.Log(event)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	return path
}

func testEvents(ts time.Time) []accesslog.Event {
	return []accesslog.Event{
		{
			Timestamp:  ts,
			InstanceID: "inst-aaaa-bbbb",
			Attr:       "voltage",
			Op:         capability.OpSet,
			Outcome:    capability.OutcomeOK,
			Duration:   25 * time.Microsecond,
			Value:      "1.5",
		},
		{
			Timestamp:  ts.Add(time.Second),
			InstanceID: "inst-aaaa-bbbb",
			Attr:       "voltage",
			Op:         capability.OpGet,
			Outcome:    capability.OutcomeOK,
			Duration:   12 * time.Microsecond,
			Value:      "1.5",
		},
		{
			Timestamp:  ts.Add(2 * time.Second),
			InstanceID: "inst-aaaa-bbbb",
			Attr:       "amplitude",
			Key:        "1",
			Op:         capability.OpSet,
			Outcome:    capability.OutcomeFailed,
			Duration:   8 * time.Microsecond,
			Stage:      "range_checker",
			Error:      "value 9000 outside allowed ranges",
		},
		{
			Timestamp:  ts.Add(3 * time.Second),
			InstanceID: "inst-cccc-dddd",
			Attr:       "waveform",
			Op:         capability.OpSet,
			Outcome:    capability.OutcomeSkipped,
			Duration:   3 * time.Microsecond,
			Value:      "sine",
		},
	}
}

func TestViewFormatsEvents(t *testing.T) {
	ts := time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)
	path := createTestLogFile(t, testEvents(ts))

	var buf bytes.Buffer
	if err := RunView(path, ViewFilter{}, &buf); err != nil {
		t.Fatalf("RunView failed: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "voltage") {
		t.Error("expected voltage in output")
	}
	if !strings.Contains(output, "amplitude[1]") {
		t.Error("expected indexed attribute form amplitude[1] in output")
	}
	if !strings.Contains(output, "Stage: range_checker") {
		t.Error("expected failing stage in output")
	}
	if !strings.Contains(output, "inst:inst-aaa") {
		t.Error("expected shortened instance ID in output")
	}
}

func TestViewFiltersByOpAndOutcome(t *testing.T) {
	ts := time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)
	path := createTestLogFile(t, testEvents(ts))

	op := capability.OpSet
	outcome := capability.OutcomeFailed

	var buf bytes.Buffer
	if err := RunView(path, ViewFilter{Op: &op, Outcome: &outcome}, &buf); err != nil {
		t.Fatalf("RunView failed: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "amplitude[1]") {
		t.Error("expected failed set in output")
	}
	if strings.Contains(output, "voltage") {
		t.Error("expected successful accesses to be filtered out")
	}
}

func TestViewFiltersByAttr(t *testing.T) {
	ts := time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)
	path := createTestLogFile(t, testEvents(ts))

	var buf bytes.Buffer
	if err := RunView(path, ViewFilter{Attr: "waveform"}, &buf); err != nil {
		t.Fatalf("RunView failed: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "waveform") {
		t.Error("expected waveform in output")
	}
	if strings.Contains(output, "voltage") {
		t.Error("expected other attributes to be filtered out")
	}
}

func TestParseOpFlag(t *testing.T) {
	op, err := ParseOpFlag("GET")
	if err != nil {
		t.Fatalf("ParseOpFlag failed: %v", err)
	}
	if op != capability.OpGet {
		t.Errorf("expected OpGet, got %v", op)
	}

	if _, err := ParseOpFlag("bogus"); err == nil {
		t.Error("expected error for invalid op")
	}
}

func TestParseOutcomeFlag(t *testing.T) {
	outcome, err := ParseOutcomeFlag("skipped")
	if err != nil {
		t.Fatalf("ParseOutcomeFlag failed: %v", err)
	}
	if outcome != capability.OutcomeSkipped {
		t.Errorf("expected OutcomeSkipped, got %v", outcome)
	}

	if _, err := ParseOutcomeFlag("bogus"); err == nil {
		t.Error("expected error for invalid outcome")
	}
}

func TestExportJSONL(t *testing.T) {
	ts := time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)
	path := createTestLogFile(t, testEvents(ts))

	out := filepath.Join(t.TempDir(), "out.jsonl")
	if err := RunExport(path, "jsonl", out); err != nil {
		t.Fatalf("RunExport failed: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 JSONL lines, got %d", len(lines))
	}

	var first exportEvent
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("failed to decode first line: %v", err)
	}
	if first.Attr != "voltage" || first.Op != "SET" || first.Outcome != "OK" {
		t.Errorf("unexpected first event: %+v", first)
	}
}

func TestExportCSV(t *testing.T) {
	ts := time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)
	path := createTestLogFile(t, testEvents(ts))

	out := filepath.Join(t.TempDir(), "out.csv")
	if err := RunExport(path, "csv", out); err != nil {
		t.Fatalf("RunExport failed: %v", err)
	}

	f, err := os.Open(out)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("failed to parse CSV: %v", err)
	}
	if len(records) != 5 {
		t.Fatalf("expected header plus 4 rows, got %d records", len(records))
	}
	if records[0][0] != "timestamp" {
		t.Errorf("unexpected header: %v", records[0])
	}
	if records[3][2] != "amplitude" || records[3][3] != "1" {
		t.Errorf("unexpected indexed row: %v", records[3])
	}
}

func TestExportUnknownFormat(t *testing.T) {
	ts := time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)
	path := createTestLogFile(t, testEvents(ts))

	if err := RunExport(path, "xml", ""); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestFilterWritesMatchingEvents(t *testing.T) {
	ts := time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)
	path := createTestLogFile(t, testEvents(ts))

	out := filepath.Join(t.TempDir(), "filtered.flog")
	opts := FilterOptions{Output: out, Attr: "voltage"}
	if err := RunFilter(path, opts); err != nil {
		t.Fatalf("RunFilter failed: %v", err)
	}

	reader, err := accesslog.NewReader(out)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer reader.Close()

	count := 0
	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		if event.Attr != "voltage" {
			t.Errorf("unexpected attribute %q in filtered file", event.Attr)
		}
		count++
	}
	if count != 2 {
		t.Errorf("expected 2 filtered events, got %d", count)
	}
}

func TestFilterByTimeRange(t *testing.T) {
	ts := time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)
	path := createTestLogFile(t, testEvents(ts))

	out := filepath.Join(t.TempDir(), "filtered.flog")
	opts := FilterOptions{
		Output:    out,
		TimeStart: ts.Add(time.Second).Format(time.RFC3339),
		TimeEnd:   ts.Add(3 * time.Second).Format(time.RFC3339),
	}
	if err := RunFilter(path, opts); err != nil {
		t.Fatalf("RunFilter failed: %v", err)
	}

	reader, err := accesslog.NewReader(out)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer reader.Close()

	count := 0
	for {
		_, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		count++
	}
	if count != 2 {
		t.Errorf("expected 2 events in time window, got %d", count)
	}
}

func TestFilterRejectsBadTime(t *testing.T) {
	ts := time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)
	path := createTestLogFile(t, testEvents(ts))

	opts := FilterOptions{Output: filepath.Join(t.TempDir(), "out.flog"), TimeStart: "yesterday"}
	if err := RunFilter(path, opts); err == nil {
		t.Error("expected error for invalid time-start")
	}
}

func TestStatsOutput(t *testing.T) {
	ts := time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)
	path := createTestLogFile(t, testEvents(ts))

	var buf bytes.Buffer
	if err := RunStats(path, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "Total Events: 4") {
		t.Error("expected total event count in output")
	}
	if !strings.Contains(output, "GET:") || !strings.Contains(output, "SET:") {
		t.Error("expected per-operation counts in output")
	}
	if !strings.Contains(output, "SKIPPED:") {
		t.Error("expected skipped count in output")
	}
	if !strings.Contains(output, "Failures: 1") {
		t.Error("expected failure count in output")
	}
	if !strings.Contains(output, "voltage: 2 events") {
		t.Error("expected per-attribute summary in output")
	}
}

func TestStatsEmptyFile(t *testing.T) {
	path := createTestLogFile(t, nil)

	var buf bytes.Buffer
	if err := RunStats(path, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}
	if !strings.Contains(buf.String(), "Total Events: 0") {
		t.Error("expected zero total for empty file")
	}
}
