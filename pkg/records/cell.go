// Package records holds the small value types that flow between the importer
// and the storage backends.
package records

// Cell is a single write request against a wide-column table: the value of
// one (family, qualifier) column in the row identified by EntityID.
type Cell struct {
	EntityID  string
	Family    string
	Qualifier string
	Value     string
}

// Key identifies the cell position a write targets. Two cells with the same
// Key overwrite each other; the later write wins.
type Key struct {
	EntityID  string
	Family    string
	Qualifier string
}

// Key returns the position of c.
func (c Cell) Key() Key {
	return Key{EntityID: c.EntityID, Family: c.Family, Qualifier: c.Qualifier}
}

// Column returns "family:qualifier", the conventional display form.
func (c Cell) Column() string { return c.Family + ":" + c.Qualifier }
