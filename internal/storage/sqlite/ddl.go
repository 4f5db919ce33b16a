package sqlite

import "fmt"

// CreateTableSQL returns idempotent DDL for the cell table.
func CreateTableSQL(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  entity_id TEXT NOT NULL,
  family    TEXT NOT NULL,
  qualifier TEXT NOT NULL,
  value     TEXT NOT NULL,
  PRIMARY KEY (entity_id, family, qualifier)
) WITHOUT ROWID;`, table)
}
