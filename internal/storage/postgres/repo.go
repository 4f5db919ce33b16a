// Package postgres implements a Postgres repository using pgx v5. Each batch
// is COPYed into a transaction-scoped temporary table and then upserted into
// the cell table with INSERT ... ON CONFLICT.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"bulkimport/pkg/records"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Config holds Postgres repository configuration.
type Config struct {
	DSN   string // connection string for pgxpool
	Table string // possibly schema-qualified cell table, e.g. "public.people_cells"
}

// cellColumns is the column order used for COPY and INSERT.
var cellColumns = []string{"entity_id", "family", "qualifier", "value"}

// Repository is a Postgres-backed implementation of storage.Repository.
type Repository struct {
	pool *pgxpool.Pool
	cfg  Config
}

// NewRepository constructs a Repository and returns a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("pgxpool: %w", err)
	}
	close := func() { pool.Close() }
	return &Repository{pool: pool, cfg: cfg}, close, nil
}

// stageName returns the temp table name used for table.
func stageName(table string) string {
	return "stage_" + strings.ReplaceAll(table, ".", "_")
}

// upsertSQL moves staged cells into the target table.
func upsertSQL(table, stage string) string {
	cols := strings.Join(mapIdent(cellColumns), ", ")
	return fmt.Sprintf(
		"INSERT INTO %s (%s) SELECT %s FROM %s "+
			`ON CONFLICT ("entity_id", "family", "qualifier") DO UPDATE SET "value" = EXCLUDED."value"`,
		pgFQN(table), cols, cols, pgIdent(stage),
	)
}

// WriteCells upserts cells. The batch is applied atomically: on error nothing
// is committed and the returned count is 0.
func (r *Repository) WriteCells(ctx context.Context, cells []records.Cell) (int64, error) {
	if len(cells) == 0 {
		return 0, nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	stage := stageName(r.cfg.Table)
	create := fmt.Sprintf(
		"CREATE TEMP TABLE %s (entity_id text, family text, qualifier text, value text) ON COMMIT DROP",
		pgIdent(stage),
	)
	if _, err := tx.Exec(ctx, create); err != nil {
		return 0, fmt.Errorf("create temp: %w", err)
	}

	if _, err := tx.CopyFrom(ctx, pgx.Identifier{stage}, cellColumns, pgx.CopyFromSlice(len(cells), func(i int) ([]any, error) {
		c := cells[i]
		return []any{c.EntityID, c.Family, c.Qualifier, c.Value}, nil
	})); err != nil {
		return 0, fmt.Errorf("copy into temp: %w", pgDetail(err))
	}

	if _, err := tx.Exec(ctx, upsertSQL(r.cfg.Table, stage)); err != nil {
		return 0, fmt.Errorf("upsert: %w", pgDetail(err))
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return int64(len(cells)), nil
}

// pgDetail folds the server-side detail of a *pgconn.PgError into the error
// text while keeping the original error in the chain.
func pgDetail(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Detail != "" {
		return fmt.Errorf("%s (%s): %w", pgErr.Detail, pgErr.SQLState(), err)
	}
	return err
}

// pgIdent safely quotes a single identifier segment for Postgres.
func pgIdent(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }

// pgFQN quotes a possibly schema-qualified name like "public.people_cells" to
// "public"."people_cells". Empty segments are ignored.
func pgFQN(name string) string {
	parts := strings.Split(name, ".")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		out = append(out, pgIdent(p))
	}
	return strings.Join(out, ".")
}

// mapIdent maps a list of column names to their quoted forms.
func mapIdent(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = pgIdent(c)
	}
	return out
}

// Exec implements storage.Repository.Exec for Postgres.
func (r *Repository) Exec(ctx context.Context, sql string) error {
	_, err := r.pool.Exec(ctx, sql)
	return err
}
