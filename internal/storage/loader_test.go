package storage

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"bulkimport/pkg/records"
)

func cell(id, q, v string) records.Cell {
	return records.Cell{EntityID: id, Family: "f", Qualifier: q, Value: v}
}

// TestLoadBatches_Basic verifies cells are grouped into batches and write is
// called with the expected counts.
func TestLoadBatches_Basic(t *testing.T) {
	t.Parallel()

	in := make(chan records.Cell, 8)
	for i := 0; i < 7; i++ {
		in <- cell(string(rune('a'+i)), "q", "x")
	}
	close(in)

	var calls int32
	write := func(_ context.Context, cells []records.Cell) (int64, error) {
		atomic.AddInt32(&calls, 1)
		return int64(len(cells)), nil
	}

	total, err := LoadBatches(context.Background(), "test", in, 3, write)
	if err != nil {
		t.Fatalf("LoadBatches error: %v", err)
	}
	if total != 7 {
		t.Fatalf("total cells %d, want 7", total)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("write calls %d, want 3 (3+3+1)", got)
	}
}

// TestLoadBatches_DedupeLastWins checks a repeated key inside one batch is
// replaced in place by the later cell.
func TestLoadBatches_DedupeLastWins(t *testing.T) {
	t.Parallel()

	in := make(chan records.Cell, 4)
	in <- cell("1", "name", "old")
	in <- cell("2", "name", "bob")
	in <- cell("1", "name", "new")
	in <- cell("1", "age", "30")
	close(in)

	var got [][]records.Cell
	write := func(_ context.Context, cells []records.Cell) (int64, error) {
		got = append(got, append([]records.Cell(nil), cells...))
		return int64(len(cells)), nil
	}

	total, err := LoadBatches(context.Background(), "test", in, 10, write)
	if err != nil {
		t.Fatalf("LoadBatches error: %v", err)
	}
	if total != 3 || len(got) != 1 {
		t.Fatalf("total=%d batches=%d, want 3 cells in 1 batch", total, len(got))
	}
	want := []records.Cell{cell("1", "name", "new"), cell("2", "name", "bob"), cell("1", "age", "30")}
	for i := range want {
		if got[0][i] != want[i] {
			t.Fatalf("batch[%d]=%+v, want %+v", i, got[0][i], want[i])
		}
	}
}

// TestLoadBatches_ErrorPropagation ensures the first write error is propagated
// and processing stops after that batch.
func TestLoadBatches_ErrorPropagation(t *testing.T) {
	t.Parallel()

	in := make(chan records.Cell, 5)
	for i := 0; i < 5; i++ {
		in <- cell(string(rune('a'+i)), "q", "v")
	}
	close(in)

	wantErr := errors.New("write failed")
	var batches int
	write := func(_ context.Context, cells []records.Cell) (int64, error) {
		batches++
		if batches == 2 {
			return 0, wantErr
		}
		return int64(len(cells)), nil
	}

	total, err := LoadBatches(context.Background(), "test", in, 2, write)
	if !errors.Is(err, wantErr) {
		t.Fatalf("want error %v, got %v", wantErr, err)
	}
	if total != 2 {
		t.Fatalf("total cells %d, want 2", total)
	}
	if batches != 2 {
		t.Fatalf("write calls %d, want 2", batches)
	}
}

// TestLoadBatches_ContextCancel checks the loader exits on context cancellation.
func TestLoadBatches_ContextCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	in := make(chan records.Cell, 1)
	in <- cell("1", "q", "v")

	write := func(ctx context.Context, cells []records.Cell) (int64, error) {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(2 * time.Second):
			return int64(len(cells)), nil
		}
	}

	errCh := make(chan error, 1)
	go func() {
		_, err := LoadBatches(ctx, "test", in, 2, write)
		errCh <- err
	}()

	cancel()
	close(in)

	select {
	case err := <-errCh:
		if err == nil {
			t.Fatal("expected cancellation error, got nil")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("LoadBatches did not return after context cancel")
	}
}

func TestLoadBatches_BadArgs(t *testing.T) {
	t.Parallel()

	in := make(chan records.Cell)
	if _, err := LoadBatches(context.Background(), "test", in, 0, func(context.Context, []records.Cell) (int64, error) { return 0, nil }); err == nil {
		t.Fatal("batchSize=0: expected error")
	}
	if _, err := LoadBatches(context.Background(), "test", in, 1, nil); err == nil {
		t.Fatal("nil write: expected error")
	}
}
