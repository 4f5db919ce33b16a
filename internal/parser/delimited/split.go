package delimited

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrMultipleRecords reports a line that holds more than one CSV record, i.e.
// it contains a newline outside of a quoted field.
var ErrMultipleRecords = errors.New("line contains more than one record")

// ParseError describes a line that cannot be split with the chosen delimiter.
type ParseError struct {
	// Column is the 1-based position where parsing failed, or 0 if unknown.
	Column int
	// Err is the underlying cause (csv.ErrQuote, csv.ErrBareQuote, ...).
	Err error
}

func (e *ParseError) Error() string {
	if e.Column > 0 {
		return fmt.Sprintf("parse error at column %d: %v", e.Column, e.Err)
	}
	return fmt.Sprintf("parse error: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Options tunes Split. The zero value gives strict RFC 4180 behavior.
type Options struct {
	// LazyQuotes accepts a quote inside an unquoted field and a non-doubled
	// quote inside a quoted field instead of failing the line. Comma only.
	LazyQuotes bool
}

// Split parses one line into its fields using d. It never trims whitespace.
// The empty line yields a single empty field.
func Split(line string, d Delimiter) ([]string, error) {
	return SplitWith(line, d, Options{})
}

// SplitWith is Split with explicit Options.
func SplitWith(line string, d Delimiter, opt Options) ([]string, error) {
	switch d {
	case Comma:
		return splitCSV(line, opt)
	case Tab:
		return strings.Split(line, "\t"), nil
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedDelimiter, d)
	}
}

// splitCSV runs encoding/csv over a single record. The reader is configured
// for variable width and no trimming; a second record in the same line is an
// error because the caller asked for exactly one.
func splitCSV(line string, opt Options) ([]string, error) {
	if line == "" {
		return []string{""}, nil
	}

	cr := csv.NewReader(strings.NewReader(line))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = opt.LazyQuotes

	rec, err := cr.Read()
	if err == io.EOF {
		// Only line terminators; csv.Reader skips empty lines.
		return []string{""}, nil
	}
	if err != nil {
		return nil, toParseError(err)
	}

	if _, err := cr.Read(); err != io.EOF {
		if err != nil {
			return nil, toParseError(err)
		}
		return nil, &ParseError{Err: ErrMultipleRecords}
	}
	return rec, nil
}

func toParseError(err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return &ParseError{Column: pe.Column, Err: pe.Err}
	}
	return &ParseError{Err: err}
}
