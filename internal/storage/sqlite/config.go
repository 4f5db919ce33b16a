// Package sqlite implements a SQLite-backed storage.Repository.
package sqlite

// Config holds SQLite repository configuration derived from storage.Config.
type Config struct {
	// DSN is a SQLite connection string or file path, e.g.:
	//   "file:cells.db?cache=shared"
	//   "cells.db" (interpreted by the driver)
	DSN string

	// Table is the cell table, e.g. "people_cells". Qualified names such
	// as "main.people_cells" are passed through.
	Table string
}
