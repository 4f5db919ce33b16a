// Package importer turns delimited text lines into wide-column cells.
//
// An Importer resolves the header once, either from configuration or from
// the first non-empty input line, and then projects every following line
// onto the destination columns named by a descriptor. It does no I/O of its
// own: a driver feeds it lines and hands the returned cells to storage.
//
// Per-line problems never stop a run. A line that cannot be split is
// dropped and, when a rejects.Sink is configured, recorded there. A row that
// ends before a destination field's position simply omits that field.
// Problems that would make every row wrong (bad delimiter, unparseable
// header, a descriptor field missing from the header) are returned as errors
// and must end the run.
package importer

import (
	"errors"
	"fmt"
	"log/slog"

	"bulkimport/internal/descriptor"
	"bulkimport/internal/parser/delimited"
	"bulkimport/internal/rejects"
	"bulkimport/pkg/records"

	multierror "github.com/hashicorp/go-multierror"
)

// DefaultWarnLimit is the number of per-line warnings logged before further
// ones are only counted.
const DefaultWarnLimit = 100

// ErrShortEntityRow is returned by Project when the row ends before the
// entity id field.
var ErrShortEntityRow = errors.New("row too short to contain the entity id field")

var errHeaderResolved = errors.New("importer: header already resolved")

// state of the header machine. It only ever moves awaitingHeader -> ready.
type state int

const (
	awaitingHeader state = iota
	ready
)

func (s state) String() string {
	if s == ready {
		return "ready"
	}
	return "awaiting_header"
}

// Config configures an Importer.
type Config struct {
	// Job names the run in logs.
	Job string

	// Delimiter is the raw configured value ("COMMA", "TAB", ",", "\t").
	// Empty means COMMA.
	Delimiter string

	// HeaderRow is an explicit header row. Nil means the first non-empty
	// input line is the header.
	HeaderRow *string

	// LazyQuotes relaxes CSV quote handling (bare quotes are accepted).
	LazyQuotes bool

	// KeepBlankLines passes empty data lines to the splitter instead of
	// skipping them. Blank lines before the header are always skipped.
	KeepBlankLines bool

	Descriptor descriptor.Descriptor

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Rejects receives dropped lines. Nil discards them.
	Rejects rejects.Sink

	// WarnLimit caps logged per-line warnings. Zero means DefaultWarnLimit,
	// negative means unlimited.
	WarnLimit int
}

// Stats counts what the Importer has seen so far.
type Stats struct {
	Lines           int64 // lines passed to Produce, header included
	Blank           int64
	Imported        int64
	ParseErrors     int64
	MissingEntityID int64
	ShortFields     int64 // skipped destination fields across all rows
	Cells           int64
}

// Dropped is the number of data lines that produced no cells.
func (s Stats) Dropped() int64 { return s.ParseErrors + s.MissingEntityID }

// Importer is single-threaded; callers must serialise calls to Produce.
type Importer struct {
	job       string
	delim     delimited.Delimiter
	opt       delimited.Options
	keepBlank bool
	entity    string
	dests     []descriptor.FieldSpec
	sources   []string
	log       *slog.Logger
	rejects   rejects.Sink
	warnLimit int

	st     state
	header HeaderMap

	line   int
	stats  Stats
	warned int
}

// New validates cfg and returns an Importer. With an explicit header row the
// header is resolved and checked against the descriptor here; otherwise the
// Importer waits for the first non-empty line.
func New(cfg Config) (*Importer, error) {
	d, err := delimited.ParseDelimiter(cfg.Delimiter)
	if err != nil {
		return nil, &ConfigurationError{Option: "delimiter", Value: cfg.Delimiter, Err: err}
	}
	if err := cfg.Descriptor.Validate(); err != nil {
		return nil, &ConfigurationError{Option: "descriptor", Value: cfg.Descriptor.Table, Err: err}
	}

	im := &Importer{
		job:       cfg.Job,
		delim:     d,
		opt:       delimited.Options{LazyQuotes: cfg.LazyQuotes},
		keepBlank: cfg.KeepBlankLines,
		entity:    cfg.Descriptor.EntityIDSource,
		dests:     cfg.Descriptor.FieldSpecs(),
		sources:   cfg.Descriptor.Sources(),
		log:       cfg.Logger,
		rejects:   cfg.Rejects,
		warnLimit: cfg.WarnLimit,
	}
	if im.log == nil {
		im.log = slog.Default()
	}
	if im.rejects == nil {
		im.rejects = rejects.Nop{}
	}
	if im.warnLimit == 0 {
		im.warnLimit = DefaultWarnLimit
	}

	h, ok, err := ResolveHeader(cfg.HeaderRow, d, im.opt)
	if err != nil {
		return nil, err
	}
	if ok {
		if err := im.setHeader(h, "config"); err != nil {
			return nil, err
		}
	}
	return im, nil
}

// Produce processes the next input line, numbering lines itself.
func (im *Importer) Produce(line string) ([]records.Cell, error) {
	return im.ProduceAt(im.line+1, line)
}

// ProduceAt processes one input line whose 1-based physical line number is
// lineNo. It returns the cells for a data row, nothing for the header or a
// dropped line, and an error only when the run must stop.
func (im *Importer) ProduceAt(lineNo int, line string) ([]records.Cell, error) {
	im.line = lineNo
	im.stats.Lines++

	if line == "" && (im.st == awaitingHeader || !im.keepBlank) {
		im.stats.Blank++
		return nil, nil
	}

	if im.st == awaitingHeader {
		h, err := headerFromLine(line, lineNo, im.delim, im.opt)
		if err != nil {
			im.log.Error("header row could not be parsed", "line", lineNo, "error", err)
			return nil, err
		}
		return nil, im.setHeader(h, "input")
	}

	row, err := delimited.SplitWith(line, im.delim, im.opt)
	if err != nil {
		im.stats.ParseErrors++
		im.warn("dropping unparseable line", "line", lineNo, "error", err)
		return nil, im.reject(rejects.ReasonParseError, lineNo, line, err)
	}

	cells, short, err := Project(row, im.header, im.dests, im.entity)
	if errors.Is(err, ErrShortEntityRow) {
		im.stats.MissingEntityID++
		im.warn("dropping row without entity id",
			"line", lineNo, "field", im.entity, "position", short[0].Index, "fields", len(row))
		return nil, im.reject(rejects.ReasonMissingEntityID, lineNo, line, err)
	}
	if err != nil {
		return nil, err
	}
	for _, s := range short {
		im.stats.ShortFields++
		im.warn("row too short, skipping field",
			"line", lineNo, "field", s.Source, "position", s.Index, "fields", s.RowLen)
	}
	im.stats.Imported++
	im.stats.Cells += int64(len(cells))
	return cells, nil
}

// Header returns the resolved header; ok is false until it is resolved.
func (im *Importer) Header() (HeaderMap, bool) {
	return im.header, im.st == ready
}

// Stats returns a snapshot of the counters.
func (im *Importer) Stats() Stats { return im.stats }

// setHeader performs the one awaitingHeader -> ready transition.
func (im *Importer) setHeader(h HeaderMap, from string) error {
	if im.st == ready {
		return errHeaderResolved
	}

	var result *multierror.Error
	for _, src := range im.sources {
		if h.Has(src) {
			continue
		}
		role := "entity id"
		if src != im.entity {
			role = "column"
		}
		result = multierror.Append(result, &MissingFieldError{Field: src, Role: role})
	}
	if err := result.ErrorOrNil(); err != nil {
		im.log.Error("header is missing descriptor fields",
			"header", h.String(), "line", im.line, "error", err)
		return fmt.Errorf("resolve header: %w", err)
	}

	for _, d := range h.Duplicates() {
		im.log.Warn("duplicate header name, first occurrence wins",
			"name", d.Name, "ignored_position", d.Index, "used_position", d.KeptPos)
	}

	im.header = h
	im.st = ready
	im.log.Info("header resolved",
		"job", im.job, "source", from, "fields", h.Len(), "state", im.st.String())
	return nil
}

func (im *Importer) reject(reason string, lineNo int, raw string, cause error) error {
	if err := im.rejects.Reject(rejects.Rejected{Reason: reason, Line: lineNo, Raw: raw, Err: cause}); err != nil {
		return fmt.Errorf("record rejected line %d: %w", lineNo, err)
	}
	return nil
}

func (im *Importer) warn(msg string, args ...any) {
	im.warned++
	switch {
	case im.warnLimit < 0 || im.warned <= im.warnLimit:
		im.log.Warn(msg, args...)
	case im.warned == im.warnLimit+1:
		im.log.Warn("warning limit reached, further row warnings are only counted", "limit", im.warnLimit)
	}
}
