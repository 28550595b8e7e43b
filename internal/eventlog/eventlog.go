// Package eventlog appends published capture events to an NDJSON file.
// The registry forwards events here when a log file is configured; the
// core itself stays persistence-free.
package eventlog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/intercept/backend/internal/capture"
)

type Writer struct {
	mu  sync.Mutex
	f   *os.File
	enc *json.Encoder
}

// Open creates (or appends to) the NDJSON log at path, creating parent
// directories as needed.
func Open(path string) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating event log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening event log: %w", err)
	}
	return &Writer{f: f, enc: json.NewEncoder(f)}, nil
}

// Record appends one event as a JSON line. Encode errors are swallowed
// after close; event logging must never take the capture path down.
func (w *Writer) Record(ev capture.Event) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return
	}
	w.enc.Encode(ev)
}

func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return nil
	}
	err := w.f.Close()
	w.f = nil
	w.enc = nil
	return err
}
