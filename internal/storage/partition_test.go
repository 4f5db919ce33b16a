package storage

import (
	"strconv"
	"testing"
)

func TestPartition_StableAndInRange(t *testing.T) {
	t.Parallel()

	const n = 4
	seen := make(map[int]bool)
	for i := 0; i < 1000; i++ {
		id := strconv.Itoa(i)
		p := Partition(id, n)
		if p < 0 || p >= n {
			t.Fatalf("Partition(%q,%d)=%d out of range", id, n, p)
		}
		if Partition(id, n) != p {
			t.Fatalf("Partition(%q) not stable", id)
		}
		seen[p] = true
	}
	if len(seen) != n {
		t.Fatalf("1000 ids used %d of %d partitions", len(seen), n)
	}
}

func TestPartition_SingleLoader(t *testing.T) {
	t.Parallel()

	for _, n := range []int{-1, 0, 1} {
		if got := Partition("anything", n); got != 0 {
			t.Fatalf("Partition(n=%d)=%d, want 0", n, got)
		}
	}
}
