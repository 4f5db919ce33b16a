package mssql

import (
	"fmt"
	"strings"
)

// CreateTableSQL returns idempotent DDL for the cell table. Key columns are
// NVARCHAR(128) so the clustered primary key stays under the index size limit.
func CreateTableSQL(table string) string {
	// OBJECT_ID takes the unquoted name; embedded quotes are doubled.
	lit := strings.ReplaceAll(table, "'", "''")
	return fmt.Sprintf(`IF OBJECT_ID(N'%s', N'U') IS NULL
CREATE TABLE %s (
  [entity_id] NVARCHAR(128) NOT NULL,
  [family]    NVARCHAR(128) NOT NULL,
  [qualifier] NVARCHAR(128) NOT NULL,
  [value]     NVARCHAR(MAX) NOT NULL,
  PRIMARY KEY ([entity_id], [family], [qualifier])
);`, lit, msFQN(table))
}
