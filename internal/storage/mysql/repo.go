// Package mysql implements a MySQL repository on database/sql with the
// go-sql-driver/mysql driver. Cells are written with multi-row
// INSERT ... ON DUPLICATE KEY UPDATE statements inside one transaction.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"bulkimport/pkg/records"

	"github.com/go-sql-driver/mysql"
)

// Config holds MySQL repository configuration.
type Config struct {
	DSN   string // go-sql-driver DSN, e.g. "user:pass@tcp(db:3306)/imports"
	Table string
}

// maxCellsPerStatement keeps a statement under MySQL's 65535 placeholder limit.
const maxCellsPerStatement = 65535 / 4

// Repository is a MySQL-backed implementation of storage.Repository.
type Repository struct {
	db  *sql.DB
	cfg Config
}

// NewRepository constructs a Repository and returns a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if _, err := mysql.ParseDSN(cfg.DSN); err != nil {
		return nil, nil, fmt.Errorf("mysql dsn: %w", err)
	}
	db, err := sql.Open("mysql", cfg.DSN)
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

// upsertSQL returns a statement that upserts n cells.
func upsertSQL(table string, n int) string {
	var sb strings.Builder
	sb.WriteString("INSERT INTO ")
	sb.WriteString(myFQN(table))
	sb.WriteString(" (`entity_id`, `family`, `qualifier`, `value`) VALUES ")
	for i := 0; i < n; i++ {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(?, ?, ?, ?)")
	}
	sb.WriteString(" ON DUPLICATE KEY UPDATE `value` = VALUES(`value`)")
	return sb.String()
}

// WriteCells upserts cells in one transaction. On error the returned count is 0.
func (r *Repository) WriteCells(ctx context.Context, cells []records.Cell) (int64, error) {
	if len(cells) == 0 {
		return 0, nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}

	for start := 0; start < len(cells); start += maxCellsPerStatement {
		end := min(start+maxCellsPerStatement, len(cells))
		chunk := cells[start:end]
		args := make([]any, 0, len(chunk)*4)
		for _, c := range chunk {
			args = append(args, c.EntityID, c.Family, c.Qualifier, c.Value)
		}
		if _, err := tx.ExecContext(ctx, upsertSQL(r.cfg.Table, len(chunk)), args...); err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("upsert: %w", err)
		}
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

// myIdent backtick-quotes a MySQL identifier, doubling embedded backticks.
func myIdent(id string) string { return "`" + strings.ReplaceAll(id, "`", "``") + "`" }

// myFQN quotes a possibly database-qualified name like "imports.people_cells".
func myFQN(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = myIdent(p)
	}
	return strings.Join(parts, ".")
}
