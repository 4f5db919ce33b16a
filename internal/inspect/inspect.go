// Package inspect samples the start of a delimited input and proposes a
// starter descriptor for it: the header names, how often each column is
// filled, and a normalized qualifier per column.
package inspect

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"
	"unicode/utf8"

	"bulkimport/internal/descriptor"
	"bulkimport/internal/importer"
	"bulkimport/internal/parser/delimited"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultSampleRows is used when Options.SampleRows is not positive.
const DefaultSampleRows = 1000

// maxQualifierLen bounds generated qualifiers; most SQL backends index the
// key columns and MySQL caps those at 191 characters.
const maxQualifierLen = 63

// Options controls sampling.
type Options struct {
	Delimiter  delimited.Delimiter
	HeaderRow  *string // nil means the first non-empty line
	LazyQuotes bool
	SampleRows int
}

// Column describes one header position.
type Column struct {
	Name      string
	Position  int
	Qualifier string // normalized, unique within the result
	Filled    int    // sampled rows with a non-empty value here
	Short     int    // sampled rows that ended before this position
	MaxWidth  int    // longest value in runes
	Example   string // first non-empty value
	Duplicate bool   // an earlier position has the same name
}

// Result is the outcome of Sample.
type Result struct {
	Header      importer.HeaderMap
	Columns     []Column
	Rows        int // data rows sampled
	ParseErrors int
}

// Sample reads up to opt.SampleRows data rows from r.
func Sample(ctx context.Context, r io.Reader, opt Options) (Result, error) {
	limit := opt.SampleRows
	if limit <= 0 {
		limit = DefaultSampleRows
	}
	sopt := delimited.Options{LazyQuotes: opt.LazyQuotes}

	var res Result
	h, ok, err := importer.ResolveHeader(opt.HeaderRow, opt.Delimiter, sopt)
	if err != nil {
		return res, err
	}

	lr := delimited.NewLineReader(r, delimited.LineReaderOptions{Delimiter: opt.Delimiter})
	for res.Rows+res.ParseErrors < limit {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		line, lineNo, err := lr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return res, fmt.Errorf("inspect: read line %d: %w", lr.Line()+1, err)
		}
		if line == "" {
			continue
		}

		if !ok {
			first := strings.TrimPrefix(line, "\ufeff")
			if h, ok, err = importer.ResolveHeader(&first, opt.Delimiter, sopt); err != nil {
				var he *importer.HeaderError
				if errors.As(err, &he) {
					he.Line = lineNo
				}
				return res, err
			}
			res.Columns = columns(h)
			continue
		}
		if res.Columns == nil {
			res.Columns = columns(h)
		}

		row, err := delimited.SplitWith(line, opt.Delimiter, sopt)
		if err != nil {
			res.ParseErrors++
			continue
		}
		res.Rows++
		for i := range res.Columns {
			c := &res.Columns[i]
			if c.Position >= len(row) {
				c.Short++
				continue
			}
			v := row[c.Position]
			if v == "" {
				continue
			}
			c.Filled++
			if c.Example == "" {
				c.Example = v
			}
			c.MaxWidth = max(c.MaxWidth, utf8.RuneCountInString(v))
		}
	}
	if ok && res.Columns == nil {
		res.Columns = columns(h)
	}
	res.Header = h
	return res, nil
}

func columns(h importer.HeaderMap) []Column {
	names := h.Names()
	cols := make([]Column, len(names))
	used := make(map[string]bool, len(names))
	for i, name := range names {
		kept, _ := h.Index(name)
		q := NormalizeName(name)
		for n, base := 2, q; used[q]; n++ {
			q = fmt.Sprintf("%s_%d", base, n)
		}
		used[q] = true
		cols[i] = Column{Name: name, Position: i, Qualifier: q, Duplicate: kept != i}
	}
	return cols
}

// Descriptor proposes a descriptor that maps every distinct header name into
// family. entity names the entity id field; empty picks the first column.
func (r Result) Descriptor(table, family, entity string) (descriptor.Descriptor, error) {
	if len(r.Columns) == 0 {
		return descriptor.Descriptor{}, errors.New("inspect: no header found")
	}
	if entity == "" {
		entity = r.Columns[0].Name
	}
	if !r.Header.Has(entity) {
		return descriptor.Descriptor{}, fmt.Errorf("inspect: entity id field %q is not in the header", entity)
	}

	f := descriptor.Family{Name: family}
	for _, c := range r.Columns {
		if c.Duplicate || c.Name == entity {
			continue
		}
		f.Columns = append(f.Columns, descriptor.ColumnMapping{Name: c.Qualifier, Source: c.Name})
	}
	d := descriptor.Descriptor{Table: table, EntityIDSource: entity, Families: []descriptor.Family{f}}
	return d, d.Validate()
}

// NormalizeName lowercases s, strips accents, and collapses everything that
// is not a letter or digit into single underscores.
func NormalizeName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	ascii, _, _ := transform.String(t, s)

	var b strings.Builder
	underscore := false
	for _, r := range ascii {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			underscore = false
		case r == '_' || r == ' ' || r == '-' || r == '.' || r == '/':
			if !underscore {
				b.WriteByte('_')
				underscore = true
			}
		}
	}
	name := strings.Trim(b.String(), "_")
	if len(name) > maxQualifierLen {
		name = strings.TrimRight(name[:maxQualifierLen], "_")
	}
	if name == "" {
		return "col"
	}
	return name
}
