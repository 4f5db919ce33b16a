// Package rejects records input lines that were dropped during an import so
// they can be inspected or re-imported later.
package rejects

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
)

// Reasons used by the importer.
const (
	ReasonParseError      = "parse_error"
	ReasonMissingEntityID = "missing_entity_id"
)

// Rejected is one dropped input line.
type Rejected struct {
	Reason string
	Line   int    // 1-based physical line number in the input
	Raw    string // the line as read, before splitting
	Err    error  // optional cause
}

// Sink receives rejected lines. Implementations must be safe to call from the
// goroutine that drives the importer; they need not be concurrency-safe.
type Sink interface {
	Reject(r Rejected) error
	Close() error
}

// Nop discards everything.
type Nop struct{}

func (Nop) Reject(Rejected) error { return nil }
func (Nop) Close() error          { return nil }

// CSVHeader is the first row written by a CSV sink.
var CSVHeader = []string{"reason", "line_number", "run_id", "error", "raw_line"}

// CSV writes rejected lines to a CSV file and counts them per reason.
type CSV struct {
	mu      sync.Mutex
	f       *os.File
	w       *csv.Writer
	runID   string
	reasons map[string]int
}

// NewCSV creates (or truncates) path, creating parent directories as needed,
// and writes the CSVHeader row.
func NewCSV(path, runID string) (*CSV, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("rejects: create dir %s: %w", filepath.Dir(path), err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("rejects: create %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(CSVHeader); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("rejects: write header: %w", err)
	}
	return &CSV{f: f, w: w, runID: runID, reasons: make(map[string]int)}, nil
}

// Reject appends one row.
func (s *CSV) Reject(r Rejected) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reasons[r.Reason]++
	msg := ""
	if r.Err != nil {
		msg = r.Err.Error()
	}
	return s.w.Write([]string{r.Reason, strconv.Itoa(r.Line), s.runID, msg, r.Raw})
}

// Counts returns a copy of the per-reason counters.
func (s *CSV) Counts() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]int, len(s.reasons))
	for k, v := range s.reasons {
		out[k] = v
	}
	return out
}

// Close flushes buffered rows and closes the file.
func (s *CSV) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.w.Flush()
	werr := s.w.Error()
	cerr := s.f.Close()
	if werr != nil {
		return fmt.Errorf("rejects: flush: %w", werr)
	}
	return cerr
}
