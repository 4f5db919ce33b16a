// Package storage contains storage-agnostic contracts and utilities.
//
// Every backend persists the same shape: one row per cell keyed by
// (entity_id, family, qualifier), with last-write-wins upsert semantics.
// Backends register a Factory at init time so callers only depend on this
// package.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"bulkimport/pkg/records"
)

// Repository is the write side of a cell store.
type Repository interface {
	// WriteCells upserts cells and returns the number written. A cell whose
	// key already exists replaces the stored value.
	WriteCells(ctx context.Context, cells []records.Cell) (int64, error)
	// Exec runs a backend statement such as DDL.
	Exec(ctx context.Context, stmt string) error
	Close()
}

// Finisher is implemented by repositories whose output is incomplete until
// finalized, such as a file that needs a footer. Finish is called once after
// the last successful write; Close is still called afterwards.
type Finisher interface {
	Finish() error
}

// Config selects and parameterizes a backend.
type Config struct {
	Kind  string
	DSN   string
	Table string
}

// Factory opens a Repository for cfg.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	regMu     sync.RWMutex
	factories = map[string]Factory{}
)

// Register registers (or replaces) the factory for kind.
func Register(kind string, f Factory) {
	regMu.Lock()
	defer regMu.Unlock()
	factories[kind] = f
}

// New opens a Repository using the factory registered for cfg.Kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	regMu.RLock()
	f, ok := factories[cfg.Kind]
	regMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}

// ListKinds returns the registered kinds in sorted order. The slice is a copy.
func ListKinds() []string {
	regMu.RLock()
	defer regMu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
