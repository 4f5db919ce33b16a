// Package memory provides an in-process cell store. It backs the "memory"
// storage kind, used for dry runs and tests.
//
// Stores are shared by name: every storage.New call with the same DSN gets the
// same Store, so a caller can inspect what a run wrote through Lookup.
package memory

import (
	"context"
	"sort"
	"sync"

	"bulkimport/internal/config"
	"bulkimport/internal/descriptor"
	"bulkimport/internal/storage"
	"bulkimport/pkg/records"
)

// Store holds rows as entity id -> column -> value.
type Store struct {
	mu   sync.RWMutex
	rows map[string]map[descriptor.Column]string
}

var (
	storesMu sync.Mutex
	stores   = map[string]*Store{}
)

var _ storage.Repository = (*Store)(nil)

func init() {
	storage.Register("memory", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		return Lookup(cfg.DSN), nil
	})
	storage.RegisterDDL("memory", func(context.Context, storage.Repository, config.Pipeline) error {
		return nil
	})
}

// New returns an empty, unnamed Store.
func New() *Store { return &Store{rows: make(map[string]map[descriptor.Column]string)} }

// Lookup returns the Store registered under name, creating it on first use.
func Lookup(name string) *Store {
	storesMu.Lock()
	defer storesMu.Unlock()
	s, ok := stores[name]
	if !ok {
		s = New()
		stores[name] = s
	}
	return s
}

// Drop forgets the Store registered under name.
func Drop(name string) {
	storesMu.Lock()
	delete(stores, name)
	storesMu.Unlock()
}

// WriteCells implements storage.Repository.
func (s *Store) WriteCells(ctx context.Context, cells []records.Cell) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range cells {
		row, ok := s.rows[c.EntityID]
		if !ok {
			row = make(map[descriptor.Column]string)
			s.rows[c.EntityID] = row
		}
		row[descriptor.Column{Family: c.Family, Qualifier: c.Qualifier}] = c.Value
	}
	return int64(len(cells)), nil
}

// Exec is a no-op; the store has no schema.
func (s *Store) Exec(context.Context, string) error { return nil }

// Close is a no-op so a named Store outlives the repository handle.
func (s *Store) Close() {}

// Get returns the value at (entityID, family, qualifier).
func (s *Store) Get(entityID, family, qualifier string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.rows[entityID][descriptor.Column{Family: family, Qualifier: qualifier}]
	return v, ok
}

// Row returns a copy of the columns stored for entityID.
func (s *Store) Row(entityID string) map[descriptor.Column]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.rows[entityID]
	if !ok {
		return nil
	}
	out := make(map[descriptor.Column]string, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}

// Entities returns the stored entity ids in sorted order.
func (s *Store) Entities() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.rows))
	for id := range s.rows {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of stored cells.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, row := range s.rows {
		n += len(row)
	}
	return n
}
