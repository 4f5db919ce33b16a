package mssql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"strings"
	"sync"
	"testing"

	"bulkimport/pkg/records"
)

// TestMsIdent verifies that msIdent brackets SQL Server identifiers and
// escapes closing brackets.
func TestMsIdent(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"simple", "[simple]"},
		{"dbo", "[dbo]"},
		{"brack]et", "[brack]]et]"},
		{`weird]]name`, `[weird]]]]name]`},
	}
	for _, tc := range cases {
		if got := msIdent(tc.in); got != tc.want {
			t.Fatalf("msIdent(%q) = %q; want %q", tc.in, got, tc.want)
		}
	}
}

// TestMsFQN verifies that msFQN quotes each segment of a qualified name.
func TestMsFQN(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"table", "[table]"},
		{"dbo.table", "[dbo].[table]"},
		{"sales.q4.table", "[sales].[q4].[table]"},
	}
	for _, tc := range cases {
		if got := msFQN(tc.in); got != tc.want {
			t.Fatalf("msFQN(%q) = %q; want %q", tc.in, got, tc.want)
		}
	}
}

func TestMergeSQL(t *testing.T) {
	t.Parallel()

	got := mergeSQL("dbo.people_cells")
	for _, want := range []string{
		"MERGE [dbo].[people_cells] WITH (HOLDLOCK) AS T",
		"USING " + stageTable + " AS S",
		"T.[entity_id] = S.[entity_id] AND T.[family] = S.[family] AND T.[qualifier] = S.[qualifier]",
		"WHEN MATCHED THEN UPDATE SET T.[value] = S.[value]",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("mergeSQL missing %q:\n%s", want, got)
		}
	}
}

func TestCreateTableSQL(t *testing.T) {
	t.Parallel()

	got := CreateTableSQL("dbo.o'brien_cells")
	if !strings.Contains(got, "OBJECT_ID(N'dbo.o''brien_cells', N'U') IS NULL") {
		t.Fatalf("unexpected existence check:\n%s", got)
	}
	if !strings.Contains(got, "CREATE TABLE [dbo].[o'brien_cells]") {
		t.Fatalf("unexpected table name:\n%s", got)
	}
	if !strings.Contains(got, "PRIMARY KEY ([entity_id], [family], [qualifier])") {
		t.Fatalf("missing primary key:\n%s", got)
	}
}

func TestNewRepository_BadDSN(t *testing.T) {
	t.Parallel()

	_, _, err := NewRepository(context.Background(), Config{DSN: "sqlserver://%zz"})
	if err == nil {
		t.Fatal("NewRepository() error = nil, want DSN error")
	}
}

// TestWriteCellsEmpty verifies an empty batch never touches the database.
func TestWriteCellsEmpty(t *testing.T) {
	t.Parallel()

	r := &Repository{}
	n, err := r.WriteCells(context.Background(), nil)
	if err != nil || n != 0 {
		t.Fatalf("WriteCells(nil) = %d, %v; want 0, nil", n, err)
	}
}

// --- Tests ---

// TestExecPropagatesError verifies that Exec forwards errors from the underlying
// *sql.DB.ExecContext call when the driver returns an error.
func TestExecPropagatesError(t *testing.T) {
	t.Parallel()

	r := &Repository{db: openErrDB(t), cfg: Config{Table: "dbo.t"}}

	err := r.Exec(context.Background(), "SELECT 1")
	if err == nil {
		t.Fatalf("Exec() error = nil, want non-nil")
	}
	if !strings.Contains(err.Error(), "exec failed") {
		t.Fatalf("Exec() error = %q, want it to contain %q", err.Error(), "exec failed")
	}
}

// TestWriteCellsBeginTxError verifies that WriteCells surfaces errors from
// db.BeginTx before any bulk-copy logic runs.
func TestWriteCellsBeginTxError(t *testing.T) {
	t.Parallel()

	r := &Repository{db: openErrDB(t), cfg: Config{Table: "dbo.t"}}

	n, err := r.WriteCells(context.Background(), []records.Cell{
		{EntityID: "1", Family: "info", Qualifier: "n", Value: "alice"},
	})
	if err == nil {
		t.Fatalf("WriteCells() error = nil, want non-nil when BeginTx fails")
	}
	if n != 0 {
		t.Fatalf("WriteCells() = %d, want 0 on error", n)
	}
	if !strings.Contains(err.Error(), "begin tx:") {
		t.Fatalf("WriteCells() error = %q, want it wrapped with 'begin tx:'", err.Error())
	}
}

// --- Test driver plumbing for exercising Exec and CopyFrom without a real DB --

type errDriver struct{}

type errConn struct{}

type errTx struct{}

func (d *errDriver) Open(name string) (driver.Conn, error) {
	return &errConn{}, nil
}

// Prepare is not expected to be called in our tests; if it is, fail loudly.
func (c *errConn) Prepare(query string) (driver.Stmt, error) {
	return nil, errors.New("unexpected Prepare call")
}

func (c *errConn) Close() error { return nil }

// Begin is required by driver.Conn; database/sql calls BeginTx when available.
func (c *errConn) Begin() (driver.Tx, error) {
	return nil, errors.New("begin (legacy) should not be called")
}

// BeginTx implements driver.ConnBeginTx and always fails, to exercise the
// error path in Repository.WriteCells.
func (c *errConn) BeginTx(ctx context.Context, opts driver.TxOptions) (driver.Tx, error) {
	return nil, errors.New("begin failed")
}

// ExecContext implements driver.ExecerContext and always fails, to exercise
// the error path in Repository.Exec.
func (c *errConn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	return nil, errors.New("exec failed")
}

// We don't expect queries in these tests.
func (c *errConn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	return nil, errors.New("unexpected QueryContext call")
}

func (t *errTx) Commit() error   { return nil }
func (t *errTx) Rollback() error { return nil }

var (
	testDriverOnce sync.Once
	testDriverName = "mssql_test_err"
)

// openErrDB registers and opens a test driver that fails BeginTx and ExecContext.
func openErrDB(t *testing.T) *sql.DB {
	t.Helper()

	testDriverOnce.Do(func() {
		sql.Register(testDriverName, &errDriver{})
	})
	db, err := sql.Open(testDriverName, "")
	if err != nil {
		t.Fatalf("sql.Open(%q) error = %v", testDriverName, err)
	}
	return db
}

// --- Tests ---

// TestExecPropagatesError verifies that Exec forwards errors from the underlying
// *sql.DB.ExecContext call when the driver returns an error.
func TestExecPropagatesError(t *testing.T) {
	t.Parallel()

	db := openErrDB(t)
	r := &Repository{
		db:  db,
		cfg: Config{Table: "dbo.t"},
	}

	ctx := context.Background()
	err := r.Exec(ctx, "SELECT 1")
	if err == nil {
		t.Fatalf("Exec() error = nil, want non-nil")
	}

	// Ensure the error is the one produced by our test driver.
	if !strings.Contains(err.Error(), "exec failed") {
		t.Fatalf("Exec() error = %q, want it to contain %q", err.Error(), "exec failed")
	}
}

// TestCopyFromBeginTxError verifies that CopyFrom surfaces errors from
// db.BeginTx before any bulk-copy logic runs.
func TestCopyFromBeginTxError(t *testing.T) {
	t.Parallel()

	db := openErrDB(t)
	r := &Repository{
		db:  db,
		cfg: Config{Table: "dbo.t"},
	}

	ctx := context.Background()
	columns := []string{"id", "name"}
	rows := [][]any{
		{1, "alice"},
		{2, "bob"},
	}

	n, err := r.CopyFrom(ctx, columns, rows)
	if err == nil {
		t.Fatalf("CopyFrom() error = nil, want non-nil when BeginTx fails")
	}
	if n != 0 {
		t.Fatalf("CopyFrom() rows = %d, want 0 on error", n)
	}
	if !strings.Contains(err.Error(), "begin tx:") {
		t.Fatalf("CopyFrom() error = %q, want it wrapped with 'begin tx:'", err.Error())
	}
}
