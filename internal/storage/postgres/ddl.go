package postgres

import "fmt"

// CreateTableSQL returns idempotent DDL for the cell table.
func CreateTableSQL(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  "entity_id" text NOT NULL,
  "family"    text NOT NULL,
  "qualifier" text NOT NULL,
  "value"     text NOT NULL,
  PRIMARY KEY ("entity_id", "family", "qualifier")
);`, pgFQN(table))
}
