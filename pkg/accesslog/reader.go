package accesslog

import (
	"io"
	"os"
	"time"

	"github.com/featkit/featkit-go/pkg/capability"
	"github.com/fxamacker/cbor/v2"
)

// Filter specifies criteria for filtering access events.
// Empty/nil fields match all events for that criterion.
type Filter struct {
	// InstanceID filters by exact instance ID match.
	InstanceID string

	// Attr filters by attribute name.
	Attr string

	// Key filters by indexed-attribute key.
	Key string

	// Op filters by operation.
	Op *capability.Op

	// Outcome filters by outcome.
	Outcome *capability.Outcome

	// TimeStart filters events at or after this time.
	TimeStart *time.Time

	// TimeEnd filters events before this time.
	TimeEnd *time.Time
}

// matches returns true if the event matches all filter criteria.
func (f *Filter) matches(event Event) bool {
	if f.InstanceID != "" && event.InstanceID != f.InstanceID {
		return false
	}
	if f.Attr != "" && event.Attr != f.Attr {
		return false
	}
	if f.Key != "" && event.Key != f.Key {
		return false
	}
	if f.Op != nil && event.Op != *f.Op {
		return false
	}
	if f.Outcome != nil && event.Outcome != *f.Outcome {
		return false
	}
	if f.TimeStart != nil && event.Timestamp.Before(*f.TimeStart) {
		return false
	}
	if f.TimeEnd != nil && !event.Timestamp.Before(*f.TimeEnd) {
		return false
	}
	return true
}

// Reader reads access events from a CBOR-encoded log file.
// It provides an iterator interface for streaming large files.
type Reader struct {
	file    *os.File
	decoder *cbor.Decoder
	filter  Filter
}

// NewReader creates a Reader that reads all events from the specified log file.
func NewReader(path string) (*Reader, error) {
	return NewFilteredReader(path, Filter{})
}

// NewFilteredReader creates a Reader that reads events matching the filter.
func NewFilteredReader(path string, filter Filter) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &Reader{
		file:    f,
		decoder: NewDecoder(f),
		filter:  filter,
	}, nil
}

// Next returns the next event that matches the filter.
// Returns io.EOF when no more events are available.
func (r *Reader) Next() (Event, error) {
	for {
		var event Event
		if err := r.decoder.Decode(&event); err != nil {
			if err == io.EOF {
				return Event{}, io.EOF
			}
			return Event{}, err
		}

		if r.filter.matches(event) {
			return event, nil
		}
		// Event doesn't match filter, continue to next
	}
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	return r.file.Close()
}
