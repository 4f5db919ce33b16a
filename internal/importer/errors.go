package importer

import (
	"fmt"
)

// ConfigurationError is a fatal setup problem, such as an unsupported
// delimiter. It is raised before any line is processed.
type ConfigurationError struct {
	Option string // configuration key, e.g. "delimiter"
	Value  string
	Err    error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s=%q: %v", e.Option, e.Value, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// MissingFieldError reports a field name that the descriptor needs but the
// resolved header does not contain. It is fatal: without the entity id field
// no row has an identity, and a missing column source would silently drop a
// whole destination column.
type MissingFieldError struct {
	Field string
	// Role says what the field was needed for ("entity id", "column info:n").
	Role string
}

func (e *MissingFieldError) Error() string {
	if e.Role == "" {
		return fmt.Sprintf("field %q not found in header", e.Field)
	}
	return fmt.Sprintf("%s field %q not found in header", e.Role, e.Field)
}

// HeaderError is returned when the header row itself cannot be split. Every
// later row depends on it, so it is fatal whether the header came from
// configuration or from the first input line.
type HeaderError struct {
	Line int // 0 when the header came from configuration
	Raw  string
	Err  error
}

func (e *HeaderError) Error() string {
	if e.Line == 0 {
		return fmt.Sprintf("unable to parse configured header row %q: %v", e.Raw, e.Err)
	}
	return fmt.Sprintf("unable to parse header row at line %d %q: %v", e.Line, e.Raw, e.Err)
}

func (e *HeaderError) Unwrap() error { return e.Err }

// ShortField records a destination field that was skipped because the row
// ended before the field's position. It is a warning, not an error.
type ShortField struct {
	Source string
	Index  int // header position of Source
	RowLen int // number of fields the row actually had
}
