package storage

import "github.com/zeebo/xxh3"

// Partition maps an entity id onto one of n loaders. All cells of an entity
// land on the same loader, so concurrent loaders never race on one row and
// per-entity write order is kept.
func Partition(entityID string, n int) int {
	if n <= 1 {
		return 0
	}
	return int(xxh3.HashString(entityID) % uint64(n))
}
