// Package parquetfile implements an append-only Parquet cell log. Every batch is
// flushed as one row group; cells carry a sequence number so readers resolve
// repeated keys to the last write (see ReadLatest).
package parquetfile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"bulkimport/pkg/records"

	"github.com/parquet-go/parquet-go"
)

// Row is the on-disk layout of one cell write.
type Row struct {
	Seq       int64  `parquet:"seq"`
	EntityID  string `parquet:"entity_id"`
	Family    string `parquet:"family"`
	Qualifier string `parquet:"qualifier"`
	Value     string `parquet:"value"`
}

// Config holds Parquet repository configuration.
type Config struct {
	Path string // output file; created or truncated on open
}

// Repository writes cells to a single Parquet file. It is safe for
// concurrent use.
type Repository struct {
	mu  sync.Mutex
	f   *os.File
	w   *parquet.GenericWriter[Row]
	seq int64
}

// NewRepository creates the output file and returns a Repository plus a Close
// function that finalizes the file footer.
func NewRepository(_ context.Context, cfg Config) (*Repository, func(), error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, nil, fmt.Errorf("parquet: path must not be empty")
	}
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("parquet: mkdir: %w", err)
		}
	}
	f, err := os.Create(cfg.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("parquet: create: %w", err)
	}
	r := &Repository{f: f, w: parquet.NewGenericWriter[Row](f)}
	return r, func() { _ = r.close() }, nil
}

// WriteCells appends cells as one row group.
func (r *Repository) WriteCells(ctx context.Context, cells []records.Cell) (int64, error) {
	if len(cells) == 0 {
		return 0, nil
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.w == nil {
		return 0, fmt.Errorf("parquet: repository closed")
	}

	rows := make([]Row, len(cells))
	for i, c := range cells {
		r.seq++
		rows[i] = Row{Seq: r.seq, EntityID: c.EntityID, Family: c.Family, Qualifier: c.Qualifier, Value: c.Value}
	}
	n, err := r.w.Write(rows)
	if err != nil {
		return 0, fmt.Errorf("parquet: write: %w", err)
	}
	if err := r.w.Flush(); err != nil {
		return 0, fmt.Errorf("parquet: flush: %w", err)
	}
	return int64(n), nil
}

// Exec accepts only the empty statement; the file schema is fixed.
func (r *Repository) Exec(_ context.Context, stmt string) error {
	if strings.TrimSpace(stmt) == "" {
		return nil
	}
	return fmt.Errorf("parquet: Exec does not run statements")
}

// Finish writes the file footer and closes the file. The file is only
// readable once Finish has succeeded. Later calls return nil.
func (r *Repository) Finish() error { return r.close() }

func (r *Repository) close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.w == nil {
		return nil
	}
	werr := r.w.Close()
	ferr := r.f.Close()
	r.w = nil
	if werr != nil {
		werr = fmt.Errorf("parquet: write footer: %w", werr)
	}
	if ferr != nil {
		ferr = fmt.Errorf("parquet: close: %w", ferr)
	}
	return errors.Join(werr, ferr)
}

// ReadLatest reads a cell log and returns the last value written per key.
func ReadLatest(path string) (map[records.Key]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	pr := parquet.NewGenericReader[Row](f)
	defer pr.Close()

	out := make(map[records.Key]string)
	seqs := make(map[records.Key]int64)
	buf := make([]Row, 1024)
	for {
		n, err := pr.Read(buf)
		for _, row := range buf[:n] {
			k := records.Key{EntityID: row.EntityID, Family: row.Family, Qualifier: row.Qualifier}
			if row.Seq >= seqs[k] {
				seqs[k] = row.Seq
				out[k] = row.Value
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return nil, err
		}
		if n == 0 {
			return out, nil
		}
	}
}
