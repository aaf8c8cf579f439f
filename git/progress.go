package git

import (
	"bytes"
	"strings"
	"sync"
)

// ProgressWriter turns the remote's sideband progress stream into whole lines.
// Git redraws progress in place with carriage returns; every redraw becomes
// one line handed to the sink, prefixed with "[git] ".
type ProgressWriter struct {
	mu   sync.Mutex
	sink func(string)
	buf  bytes.Buffer
	last string
}

// NewProgressWriter returns a ProgressWriter forwarding lines to sink.
// A nil sink discards everything.
func NewProgressWriter(sink func(string)) *ProgressWriter {
	return &ProgressWriter{sink: sink}
}

// Write implements io.Writer. It never fails.
func (w *ProgressWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, b := range p {
		if b == '\r' || b == '\n' {
			w.emit()
			continue
		}
		w.buf.WriteByte(b)
	}
	return len(p), nil
}

// Flush forwards any partial line still buffered.
func (w *ProgressWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.emit()
}

func (w *ProgressWriter) emit() {
	line := strings.TrimSpace(w.buf.String())
	w.buf.Reset()

	// identical redraws carry no new information
	if line == "" || line == w.last {
		return
	}
	w.last = line

	if w.sink != nil {
		w.sink("[git] " + line)
	}
}
