// Package mysql contains tests for helper utilities used by the MySQL adapter.
package mysql

import (
	"context"
	"strings"
	"testing"

	"bulkimport/internal/storage"
)

// TestMyIdent verifies that myIdent correctly backtick-quotes identifiers and
// escapes backticks by doubling them.
func TestMyIdent(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"simple", "`simple`"},
		{"hr", "`hr`"},
		{"tick`name", "`tick``name`"},
		{"weird``x", "`weird````x`"},
	}
	for _, tc := range cases {
		if got := myIdent(tc.in); got != tc.want {
			t.Fatalf("myIdent(%q) = %q; want %q", tc.in, got, tc.want)
		}
	}
}

// TestMyFQN verifies that myFQN correctly quotes schema-qualified names using
// backtick-quoted identifier segments.
func TestMyFQN(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"table", "`table`"},
		{"hr.table", "`hr`.`table`"},
		{"sales.q4.table", "`sales`.`q4`.`table`"},
	}
	for _, tc := range cases {
		if got := myFQN(tc.in); got != tc.want {
			t.Fatalf("myFQN(%q) = %q; want %q", tc.in, got, tc.want)
		}
	}
}

func TestUpsertSQL(t *testing.T) {
	got := upsertSQL("imports.people_cells", 2)
	want := "INSERT INTO `imports`.`people_cells` (`entity_id`, `family`, `qualifier`, `value`) " +
		"VALUES (?, ?, ?, ?), (?, ?, ?, ?) ON DUPLICATE KEY UPDATE `value` = VALUES(`value`)"
	if got != want {
		t.Fatalf("upsertSQL =\n%s\nwant\n%s", got, want)
	}
	if n := strings.Count(upsertSQL("t", maxCellsPerStatement), "?"); n > 65535 {
		t.Fatalf("placeholders = %d, exceeds MySQL limit", n)
	}
}

func TestCreateTableSQL(t *testing.T) {
	got := CreateTableSQL("people_cells")
	if !strings.HasPrefix(got, "CREATE TABLE IF NOT EXISTS `people_cells`") {
		t.Fatalf("unexpected DDL:\n%s", got)
	}
	if !strings.Contains(got, "PRIMARY KEY (`entity_id`, `family`, `qualifier`)") {
		t.Fatalf("missing primary key:\n%s", got)
	}
}

func TestNewRepository_BadDSN(t *testing.T) {
	_, _, err := NewRepository(context.Background(), Config{DSN: "no-at-sign-or-slash"})
	if err == nil || !strings.Contains(err.Error(), "mysql dsn:") {
		t.Fatalf("NewRepository() error = %v, want mysql dsn error", err)
	}
}

func TestMySQLRegistrationUsesNewRepositoryHook(t *testing.T) {
	orig := newRepository
	defer func() { newRepository = orig }()

	var gotCfg Config
	closed := false
	newRepository = func(ctx context.Context, cfg Config) (*Repository, func(), error) {
		gotCfg = cfg
		return &Repository{}, func() { closed = true }, nil
	}

	repo, err := storage.New(context.Background(), storage.Config{Kind: "mysql", DSN: "u@tcp(db)/x", Table: "people_cells"})
	if err != nil {
		t.Fatalf("storage.New() error = %v", err)
	}
	if gotCfg.Table != "people_cells" || gotCfg.DSN != "u@tcp(db)/x" {
		t.Fatalf("hook cfg = %+v", gotCfg)
	}
	repo.Close()
	if !closed {
		t.Fatal("Close() did not invoke closeFn")
	}
}
