package importer

import (
	"bulkimport/internal/descriptor"
	"bulkimport/pkg/records"
)

// EntityKey returns the row key: the value at the header position of
// entityField. A field absent from the header is a *MissingFieldError. A row
// too short to hold the field returns ok=false.
func EntityKey(row []string, h HeaderMap, entityField string) (key string, ok bool, err error) {
	i, err := h.Index(entityField)
	if err != nil {
		return "", false, &MissingFieldError{Field: entityField, Role: "entity id"}
	}
	if i >= len(row) {
		return "", false, nil
	}
	return row[i], true, nil
}

// Project turns one parsed row into cells, one per destination whose source
// position falls inside the row. Destinations past the end of the row are
// returned as ShortFields and produce no cell.
//
// A row too short to hold the entity field yields ErrShortEntityRow and a
// single ShortField describing the entity position.
func Project(row []string, h HeaderMap, dests []descriptor.FieldSpec, entityField string) ([]records.Cell, []ShortField, error) {
	key, ok, err := EntityKey(row, h, entityField)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		i, _ := h.Index(entityField)
		return nil, []ShortField{{Source: entityField, Index: i, RowLen: len(row)}}, ErrShortEntityRow
	}

	cells := make([]records.Cell, 0, len(dests))
	var short []ShortField
	for _, fs := range dests {
		i, err := h.Index(fs.Source)
		if err != nil {
			return nil, nil, &MissingFieldError{Field: fs.Source, Role: "column " + fs.Column.String()}
		}
		if i >= len(row) {
			short = append(short, ShortField{Source: fs.Source, Index: i, RowLen: len(row)})
			continue
		}
		cells = append(cells, records.Cell{
			EntityID:  key,
			Family:    fs.Column.Family,
			Qualifier: fs.Column.Qualifier,
			Value:     row[i],
		})
	}
	return cells, short, nil
}
