// Package delimited splits single lines of comma- or tab-separated text into
// fields.
//
// Two delimiters are supported and nothing else:
//
//   - Comma: RFC 4180 CSV. Fields may be double-quoted; a quoted field may
//     contain the delimiter and newlines, and "" inside it stands for one
//     literal quote. Unquoted whitespace is preserved verbatim.
//   - Tab: a strict split on '\t'. Quotes carry no meaning and are kept as-is.
//
// The package is line oriented: Split parses exactly one record. LineReader
// produces those lines from a stream and can optionally join physical lines
// that belong to a quoted multi-line CSV field.
package delimited

import (
	"errors"
	"fmt"
	"strings"
)

// Delimiter selects the field separator and the quoting rules that go with it.
type Delimiter int

const (
	// Comma selects CSV parsing with RFC 4180 quoting. It is the default.
	Comma Delimiter = iota
	// Tab selects a plain split on the tab character.
	Tab
)

// ErrUnsupportedDelimiter is returned by ParseDelimiter for any value other
// than the comma or tab forms.
var ErrUnsupportedDelimiter = errors.New("unsupported delimiter")

// ParseDelimiter maps a configured delimiter value to a Delimiter.
//
// Accepted values are the names COMMA and TAB (case-insensitive) and the
// literal characters "," and "\t". The empty string selects Comma.
func ParseDelimiter(s string) (Delimiter, error) {
	switch s {
	case "", ",":
		return Comma, nil
	case "\t":
		return Tab, nil
	}
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "COMMA":
		return Comma, nil
	case "TAB", `\T`:
		return Tab, nil
	}
	return Comma, fmt.Errorf("%w %q: valid options are COMMA (',') and TAB ('\\t')", ErrUnsupportedDelimiter, s)
}

// Rune returns the separator character.
func (d Delimiter) Rune() rune {
	if d == Tab {
		return '\t'
	}
	return ','
}

// String returns the configuration name of d.
func (d Delimiter) String() string {
	switch d {
	case Comma:
		return "COMMA"
	case Tab:
		return "TAB"
	default:
		return fmt.Sprintf("Delimiter(%d)", int(d))
	}
}
