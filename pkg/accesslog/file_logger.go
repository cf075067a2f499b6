package accesslog

import (
	"errors"
	"os"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

// FileLogger appends access events to a CBOR file. Log never fails:
// an encode or write error must not disrupt the attribute access that
// triggered it. The first error is kept and returned from Close so it
// does not vanish entirely.
type FileLogger struct {
	mu       sync.Mutex
	file     *os.File
	encoder  *cbor.Encoder
	writeErr error
	closed   bool
}

// NewFileLogger opens path for appending, creating it with mode 0644
// if needed. Existing events are preserved.
func NewFileLogger(path string) (*FileLogger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	return &FileLogger{
		file:    f,
		encoder: NewEncoder(f),
	}, nil
}

// Log sanitizes and appends one event. Safe for concurrent use; calls
// after Close are ignored.
func (l *FileLogger) Log(event Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}
	if err := l.encoder.Encode(sanitizeEvent(event)); err != nil && l.writeErr == nil {
		l.writeErr = err
	}
}

// Close closes the log file and reports any write error swallowed by
// Log. Subsequent calls return nil.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	return errors.Join(l.writeErr, l.file.Close())
}

var _ Logger = (*FileLogger)(nil)
