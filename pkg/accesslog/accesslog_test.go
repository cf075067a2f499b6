package accesslog

import (
	"bytes"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/featkit/featkit-go/pkg/capability"
)

func sampleEvent() Event {
	return Event{
		Timestamp:  time.Now(),
		InstanceID: "fgen-01",
		Attr:       "voltage",
		Op:         capability.OpSet,
		Outcome:    capability.OutcomeOK,
		Duration:   3 * time.Millisecond,
		Value:      "1.5 V",
	}
}

func TestEncodeDecodeEvent(t *testing.T) {
	ev := sampleEvent()

	data, err := EncodeEvent(ev)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}

	got, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}

	if got.InstanceID != ev.InstanceID || got.Attr != ev.Attr {
		t.Errorf("identity fields lost: %+v", got)
	}
	if got.Op != capability.OpSet || got.Outcome != capability.OutcomeOK {
		t.Errorf("op/outcome lost: %+v", got)
	}
	if got.Duration != ev.Duration {
		t.Errorf("expected duration %v, got %v", ev.Duration, got.Duration)
	}
	if !got.Timestamp.Equal(ev.Timestamp) {
		t.Errorf("timestamp drifted: %v vs %v", got.Timestamp, ev.Timestamp)
	}
}

func TestEncodeSanitizesEvent(t *testing.T) {
	ev := sampleEvent()
	ev.Error = strings.Repeat("x", 4096)
	ev.Duration = -time.Second

	data, err := EncodeEvent(ev)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}
	got, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}

	if len(got.Error) != maxFieldLen+len("...") {
		t.Errorf("expected error truncated to %d bytes plus marker, got %d", maxFieldLen, len(got.Error))
	}
	if !strings.HasSuffix(got.Error, "...") {
		t.Errorf("expected truncation marker, got %q", got.Error[len(got.Error)-8:])
	}
	if got.Duration != 0 {
		t.Errorf("expected negative duration clamped to zero, got %v", got.Duration)
	}

	// Short fields pass through untouched.
	if got.Value != ev.Value {
		t.Errorf("value altered: %q vs %q", got.Value, ev.Value)
	}
}

func TestFileLoggerRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "access.flog")

	l, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}

	first := sampleEvent()
	second := sampleEvent()
	second.Attr = "frequency"
	second.Outcome = capability.OutcomeFailed
	second.Stage = "range_checker"
	second.Error = "out of range: " + strings.Repeat("9", 1024)

	l.Log(first)
	l.Log(second)
	if err := l.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// Log after Close is silently ignored.
	l.Log(sampleEvent())

	r, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer r.Close()

	var events []Event
	for {
		ev, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		events = append(events, ev)
	}

	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[1].Stage != "range_checker" {
		t.Errorf("expected failing stage preserved, got %q", events[1].Stage)
	}
	if len(events[1].Error) > maxFieldLen+len("...") {
		t.Errorf("expected error truncated before hitting disk, got %d bytes", len(events[1].Error))
	}
}

func TestFilteredReader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "access.flog")

	l, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	ok := sampleEvent()
	failed := sampleEvent()
	failed.Outcome = capability.OutcomeFailed
	l.Log(ok)
	l.Log(failed)
	l.Log(ok)
	if err := l.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	want := capability.OutcomeFailed
	r, err := NewFilteredReader(path, Filter{Outcome: &want})
	if err != nil {
		t.Fatalf("NewFilteredReader failed: %v", err)
	}
	defer r.Close()

	count := 0
	for {
		_, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		count++
	}
	if count != 1 {
		t.Errorf("expected 1 failed event, got %d", count)
	}
}

func TestSlogAdapter(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	adapter := NewSlogAdapter(logger)

	adapter.Log(sampleEvent())
	out := buf.String()
	if !strings.Contains(out, "attr=voltage") || !strings.Contains(out, "op=SET") {
		t.Errorf("event fields missing from slog output: %s", out)
	}

	buf.Reset()
	failed := sampleEvent()
	failed.Outcome = capability.OutcomeFailed
	failed.Error = "boom"
	adapter.Log(failed)
	if !strings.Contains(buf.String(), "level=WARN") {
		t.Errorf("expected failures at warn level: %s", buf.String())
	}
}

func TestMultiLogger(t *testing.T) {
	var a, b recording
	m := NewMultiLogger(&a, &b)
	m.Log(sampleEvent())

	if len(a.events) != 1 || len(b.events) != 1 {
		t.Errorf("expected fan-out to both loggers, got %d and %d", len(a.events), len(b.events))
	}
}

// recording is a test Logger capturing events.
type recording struct {
	events []Event
}

func (r *recording) Log(event Event) {
	r.events = append(r.events, event)
}
