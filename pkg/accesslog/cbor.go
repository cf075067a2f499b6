package accesslog

import (
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// maxFieldLen caps the rendered Value and Error strings in an encoded
// event. Driver errors can embed whole response payloads; an access log
// wants the head of the message, not the payload.
const maxFieldLen = 256

var (
	eventEncMode = mustEncMode()
	eventDecMode = mustDecMode()
)

// mustEncMode builds the encoder mode for access events: canonical map
// ordering so identical events encode to identical bytes, and
// RFC3339Nano timestamps so sub-millisecond accesses stay ordered.
func mustEncMode() cbor.EncMode {
	em, err := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeRFC3339Nano,
	}.EncMode()
	if err != nil {
		panic(fmt.Sprintf("access log CBOR encoder mode: %v", err))
	}
	return em
}

// mustDecMode builds the decoder mode. Reading is lenient: logs written
// by newer versions may carry fields this version does not know about.
func mustDecMode() cbor.DecMode {
	dm, err := cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyQuiet,
		IndefLength:       cbor.IndefLengthAllowed,
		ExtraReturnErrors: cbor.ExtraDecErrorNone,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("access log CBOR decoder mode: %v", err))
	}
	return dm
}

// sanitizeEvent bounds an event before it is written. Value and Error
// are truncated to maxFieldLen, and a negative duration (clock stepped
// backwards mid-access) is clamped to zero rather than persisted.
func sanitizeEvent(event Event) Event {
	event.Value = truncate(event.Value)
	event.Error = truncate(event.Error)
	if event.Duration < 0 {
		event.Duration = 0
	}
	return event
}

func truncate(s string) string {
	if len(s) <= maxFieldLen {
		return s
	}
	return s[:maxFieldLen] + "..."
}

// EncodeEvent encodes a sanitized Event to CBOR bytes. Integer map keys
// keep the per-access overhead small.
func EncodeEvent(event Event) ([]byte, error) {
	return eventEncMode.Marshal(sanitizeEvent(event))
}

// DecodeEvent decodes CBOR bytes into an Event.
func DecodeEvent(data []byte) (Event, error) {
	var event Event
	if err := eventDecMode.Unmarshal(data, &event); err != nil {
		return Event{}, err
	}
	return event, nil
}

// NewEncoder returns a streaming encoder for access events. Callers are
// expected to sanitize events themselves; FileLogger does.
func NewEncoder(w io.Writer) *cbor.Encoder {
	return eventEncMode.NewEncoder(w)
}

// NewDecoder returns a streaming decoder for access events.
func NewDecoder(r io.Reader) *cbor.Decoder {
	return eventDecMode.NewDecoder(r)
}
