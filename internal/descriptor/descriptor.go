// Package descriptor describes where imported fields go: which input field
// identifies a row and which input field feeds each destination column.
//
// A Descriptor is read-only once loaded. It can be embedded in a pipeline
// config (the "descriptor" block) or kept in its own JSON file:
//
//	{
//	  "table": "people",
//	  "entity_id_source": "id",
//	  "families": [
//	    { "name": "info", "columns": [
//	        { "name": "n", "source": "name" },
//	        { "name": "a", "source": "age" } ] }
//	  ]
//	}
package descriptor

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	multierror "github.com/hashicorp/go-multierror"
)

// Column names a destination column of the wide-column table.
type Column struct {
	Family    string
	Qualifier string
}

// String returns "family:qualifier".
func (c Column) String() string { return c.Family + ":" + c.Qualifier }

// FieldSpec maps one input field to one destination column.
type FieldSpec struct {
	Column Column
	// Source is the input field name, resolved through the header.
	Source string
}

// Descriptor is the destination-column configuration of an import.
type Descriptor struct {
	// Table is the logical destination table. Backends may use it as a
	// default table or collection name.
	Table string `json:"table" yaml:"table" mapstructure:"table"`

	// EntityIDSource is the input field whose value becomes the row key.
	EntityIDSource string `json:"entity_id_source" yaml:"entity_id_source" mapstructure:"entity_id_source"`

	// Families lists the destination column families in output order.
	Families []Family `json:"families" yaml:"families" mapstructure:"families"`
}

// Family groups destination columns.
type Family struct {
	Name    string          `json:"name" yaml:"name" mapstructure:"name"`
	Columns []ColumnMapping `json:"columns" yaml:"columns" mapstructure:"columns"`
}

// ColumnMapping names a qualifier and the input field that feeds it.
type ColumnMapping struct {
	Name   string `json:"name" yaml:"name" mapstructure:"name"`
	Source string `json:"source" yaml:"source" mapstructure:"source"`
}

// FieldSpecs flattens the families into FieldSpecs, in declaration order.
func (d Descriptor) FieldSpecs() []FieldSpec {
	var out []FieldSpec
	for _, f := range d.Families {
		for _, c := range f.Columns {
			out = append(out, FieldSpec{
				Column: Column{Family: f.Name, Qualifier: c.Name},
				Source: c.Source,
			})
		}
	}
	return out
}

// Sources returns the distinct input field names the descriptor reads,
// entity id first.
func (d Descriptor) Sources() []string {
	seen := map[string]struct{}{}
	var out []string
	add := func(s string) {
		if _, ok := seen[s]; ok {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	add(d.EntityIDSource)
	for _, fs := range d.FieldSpecs() {
		add(fs.Source)
	}
	return out
}

// ErrInvalid is wrapped by every error returned from Validate.
var ErrInvalid = errors.New("invalid descriptor")

// Validate checks the descriptor for structural problems: a missing entity id
// source, empty names, and columns declared twice. All problems are reported.
func (d Descriptor) Validate() error {
	var result *multierror.Error

	if strings.TrimSpace(d.EntityIDSource) == "" {
		result = multierror.Append(result, fmt.Errorf("%w: entity_id_source must not be empty", ErrInvalid))
	}
	if len(d.Families) == 0 {
		result = multierror.Append(result, fmt.Errorf("%w: at least one family is required", ErrInvalid))
	}

	seen := map[Column]struct{}{}
	for i, f := range d.Families {
		if strings.TrimSpace(f.Name) == "" {
			result = multierror.Append(result, fmt.Errorf("%w: families[%d].name must not be empty", ErrInvalid, i))
		}
		if len(f.Columns) == 0 {
			result = multierror.Append(result, fmt.Errorf("%w: family %q has no columns", ErrInvalid, f.Name))
		}
		for j, c := range f.Columns {
			if strings.TrimSpace(c.Name) == "" {
				result = multierror.Append(result, fmt.Errorf("%w: families[%d].columns[%d].name must not be empty", ErrInvalid, i, j))
			}
			if strings.TrimSpace(c.Source) == "" {
				result = multierror.Append(result, fmt.Errorf("%w: column %s:%s has no source", ErrInvalid, f.Name, c.Name))
			}
			col := Column{Family: f.Name, Qualifier: c.Name}
			if _, dup := seen[col]; dup {
				result = multierror.Append(result, fmt.Errorf("%w: column %s declared more than once", ErrInvalid, col))
			}
			seen[col] = struct{}{}
		}
	}
	return result.ErrorOrNil()
}

// Load reads a JSON descriptor file and validates it.
func Load(path string) (Descriptor, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Descriptor{}, fmt.Errorf("read descriptor: %w", err)
	}
	var d Descriptor
	if err := json.Unmarshal(b, &d); err != nil {
		return Descriptor{}, fmt.Errorf("decode descriptor %s: %w", path, err)
	}
	if err := d.Validate(); err != nil {
		return Descriptor{}, err
	}
	return d, nil
}
