package importer

import (
	"strings"

	"bulkimport/internal/parser/delimited"
)

const utf8BOM = "\ufeff"

// HeaderMap maps header field names to their zero-based positions. It is
// immutable once built; copies share the same underlying data.
//
// When a name occurs more than once the first occurrence wins. Later
// occurrences are kept in Duplicates so callers can warn about them.
type HeaderMap struct {
	names []string
	index map[string]int
	dups  []Duplicate
}

// Duplicate is a repeated header name that lost to an earlier position.
type Duplicate struct {
	Name    string
	Index   int // ignored position
	KeptPos int // position that Index resolves to
}

// NewHeaderMap builds a HeaderMap from the fields of a header row.
func NewHeaderMap(fields []string) HeaderMap {
	h := HeaderMap{
		names: append([]string(nil), fields...),
		index: make(map[string]int, len(fields)),
	}
	for i, name := range fields {
		if kept, ok := h.index[name]; ok {
			h.dups = append(h.dups, Duplicate{Name: name, Index: i, KeptPos: kept})
			continue
		}
		h.index[name] = i
	}
	return h
}

// Index returns the position of name, or a *MissingFieldError.
func (h HeaderMap) Index(name string) (int, error) {
	i, ok := h.index[name]
	if !ok {
		return 0, &MissingFieldError{Field: name}
	}
	return i, nil
}

// Has reports whether name is in the header.
func (h HeaderMap) Has(name string) bool {
	_, ok := h.index[name]
	return ok
}

// Len is the number of fields in the header row, duplicates included.
func (h HeaderMap) Len() int { return len(h.names) }

// Names returns the header row as given.
func (h HeaderMap) Names() []string { return append([]string(nil), h.names...) }

// Duplicates lists repeated names that were ignored.
func (h HeaderMap) Duplicates() []Duplicate { return append([]Duplicate(nil), h.dups...) }

// String renders the header row joined by commas, for logs.
func (h HeaderMap) String() string { return strings.Join(h.names, ",") }

// ResolveHeader builds the HeaderMap from an explicitly configured header
// row. It returns ok=false when explicit is nil, meaning the header has to be
// taken from the first input line instead.
func ResolveHeader(explicit *string, d delimited.Delimiter, opt delimited.Options) (HeaderMap, bool, error) {
	if explicit == nil {
		return HeaderMap{}, false, nil
	}
	fields, err := delimited.SplitWith(*explicit, d, opt)
	if err != nil {
		return HeaderMap{}, false, &HeaderError{Raw: *explicit, Err: err}
	}
	return NewHeaderMap(fields), true, nil
}

// headerFromLine splits an input line into a HeaderMap, dropping a leading
// byte order mark from the first name.
func headerFromLine(line string, lineNo int, d delimited.Delimiter, opt delimited.Options) (HeaderMap, error) {
	fields, err := delimited.SplitWith(line, d, opt)
	if err != nil {
		return HeaderMap{}, &HeaderError{Line: lineNo, Raw: line, Err: err}
	}
	if len(fields) > 0 {
		fields[0] = strings.TrimPrefix(fields[0], utf8BOM)
	}
	return NewHeaderMap(fields), nil
}
