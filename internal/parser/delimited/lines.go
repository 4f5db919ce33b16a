package delimited

import (
	"bufio"
	"io"
	"strings"
)

// DefaultMaxRecordLines bounds how many physical lines one logical record may
// span when multi-line records are enabled.
const DefaultMaxRecordLines = 1000

// LineReaderOptions configures NewLineReader.
type LineReaderOptions struct {
	// Delimiter decides whether quotes can span lines. Only Comma can.
	Delimiter Delimiter

	// MultilineRecords joins physical lines while a quoted CSV field is still
	// open, so that a field with an embedded newline reaches Split as one
	// line. When false every physical line is its own record.
	MultilineRecords bool

	// MaxRecordLines caps the join. When the cap is hit the accumulated text
	// is returned as-is and will normally fail to split. Zero means
	// DefaultMaxRecordLines.
	MaxRecordLines int
}

// LineReader yields logical lines from a text stream in file order, with
// their line terminators removed.
type LineReader struct {
	br   *bufio.Reader
	opt  LineReaderOptions
	line int // physical lines consumed so far
	eof  bool
}

// NewLineReader returns a LineReader over r.
func NewLineReader(r io.Reader, opt LineReaderOptions) *LineReader {
	if opt.MaxRecordLines <= 0 {
		opt.MaxRecordLines = DefaultMaxRecordLines
	}
	return &LineReader{br: bufio.NewReaderSize(r, 64*1024), opt: opt}
}

// Next returns the next logical line and the 1-based physical line number it
// starts on. It returns io.EOF once the input is exhausted. A final line
// without a trailing newline is still returned.
func (lr *LineReader) Next() (string, int, error) {
	first, err := lr.physical()
	if err != nil {
		return "", 0, err
	}
	start := lr.line

	if !lr.opt.MultilineRecords || lr.opt.Delimiter != Comma || !openQuote(first) {
		return first, start, nil
	}

	var sb strings.Builder
	sb.WriteString(first)
	quotes := strings.Count(first, `"`)
	for n := 1; quotes%2 == 1 && n < lr.opt.MaxRecordLines; n++ {
		next, err := lr.physical()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", 0, err
		}
		sb.WriteByte('\n')
		sb.WriteString(next)
		quotes += strings.Count(next, `"`)
	}
	return sb.String(), start, nil
}

// Line reports the number of physical lines consumed so far.
func (lr *LineReader) Line() int { return lr.line }

func (lr *LineReader) physical() (string, error) {
	if lr.eof {
		return "", io.EOF
	}
	s, err := lr.br.ReadString('\n')
	if err == io.EOF {
		lr.eof = true
		if s == "" {
			return "", io.EOF
		}
	} else if err != nil {
		return "", err
	}
	lr.line++
	s = strings.TrimSuffix(s, "\n")
	s = strings.TrimSuffix(s, "\r")
	return s, nil
}

// openQuote reports whether s ends inside a quoted field. Escaped quotes come
// in pairs, so an odd number of quote characters means one is still open.
func openQuote(s string) bool {
	return strings.Count(s, `"`)%2 == 1
}
