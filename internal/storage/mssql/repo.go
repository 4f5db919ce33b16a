// Package mssql implements a Microsoft SQL Server repository using the
// go-mssqldb bulk copy API. Each batch is bulk-copied into a session temp
// table (#stage) and then MERGEd into the cell table.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"bulkimport/pkg/records"

	mssql "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/msdsn"
)

// Config holds MSSQL repository configuration.
type Config struct {
	DSN   string
	Table string
}

const stageTable = "#bulkimport_stage"

// Repository is an MSSQL-backed implementation of storage.Repository.
type Repository struct {
	db  *sql.DB
	cfg Config
}

// NewRepository constructs a Repository and returns a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	// Validate DSN early to fail fast on obvious mistakes.
	if _, err := msdsn.Parse(cfg.DSN); err != nil {
		return nil, nil, fmt.Errorf("mssql dsn: %w", err)
	}
	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("sql.Open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping: %w", err)
	}
	close := func() { _ = db.Close() }
	return &Repository{db: db, cfg: cfg}, close, nil
}

// mergeSQL upserts the staged cells into table.
func mergeSQL(table string) string {
	return fmt.Sprintf(`MERGE %s WITH (HOLDLOCK) AS T
USING %s AS S
   ON T.[entity_id] = S.[entity_id] AND T.[family] = S.[family] AND T.[qualifier] = S.[qualifier]
WHEN MATCHED THEN UPDATE SET T.[value] = S.[value]
WHEN NOT MATCHED THEN INSERT ([entity_id], [family], [qualifier], [value])
     VALUES (S.[entity_id], S.[family], S.[qualifier], S.[value]);`, msFQN(table), stageTable)
}

// WriteCells stages cells with a bulk copy and merges them into the target
// table inside one transaction. On error the returned count is 0.
func (r *Repository) WriteCells(ctx context.Context, cells []records.Cell) (int64, error) {
	if len(cells) == 0 {
		return 0, nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	rollback := func() { _ = tx.Rollback() }

	create := fmt.Sprintf(`IF OBJECT_ID('tempdb..%[1]s') IS NOT NULL DROP TABLE %[1]s;
CREATE TABLE %[1]s (
  [entity_id] NVARCHAR(128) NOT NULL,
  [family]    NVARCHAR(128) NOT NULL,
  [qualifier] NVARCHAR(128) NOT NULL,
  [value]     NVARCHAR(MAX) NOT NULL
);`, stageTable)
	if _, err := tx.ExecContext(ctx, create); err != nil {
		rollback()
		return 0, fmt.Errorf("create stage: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, mssql.CopyIn(stageTable, mssql.BulkOptions{}, "entity_id", "family", "qualifier", "value"))
	if err != nil {
		rollback()
		return 0, fmt.Errorf("prepare bulk: %w", err)
	}
	for i, c := range cells {
		if _, err := stmt.ExecContext(ctx, c.EntityID, c.Family, c.Qualifier, c.Value); err != nil {
			_ = stmt.Close()
			rollback()
			return 0, fmt.Errorf("bulk cell %d: %w", i, err)
		}
	}
	_, err = stmt.ExecContext(ctx)
	if cerr := stmt.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		rollback()
		return 0, fmt.Errorf("bulk finalize: %w", err)
	}

	if _, err := tx.ExecContext(ctx, mergeSQL(r.cfg.Table)); err != nil {
		rollback()
		return 0, fmt.Errorf("merge: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DROP TABLE "+stageTable); err != nil {
		rollback()
		return 0, fmt.Errorf("drop stage: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return int64(len(cells)), nil
}

// Exec executes a SQL statement against the pool.
func (r *Repository) Exec(ctx context.Context, sqlText string) error {
	_, err := r.db.ExecContext(ctx, sqlText)
	return err
}

// msIdent safely quotes a SQL Server identifier using [brackets], escaping ].
func msIdent(id string) string { return `[` + strings.ReplaceAll(id, `]`, `]]`) + `]` }

// msFQN quotes a possibly schema-qualified name like "dbo.people_cells" to
// "[dbo].[people_cells]". If no dot is present, returns a single quoted ident.
func msFQN(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = msIdent(p)
	}
	return strings.Join(parts, ".")
}
