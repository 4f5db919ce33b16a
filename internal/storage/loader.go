// This file implements a generic, batched loader that drains cells from a
// channel and invokes a provided write function (WriteFn) per batch.
//
// Logging: on every successful flush, a concise progress line is emitted with
// running totals and instantaneous cells/sec since the previous flush.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"bulkimport/internal/metrics"
	"bulkimport/pkg/records"
)

// WriteFn abstracts a backend's bulk write capability; Repository.WriteCells
// satisfies it.
type WriteFn func(ctx context.Context, cells []records.Cell) (int64, error)

// LoadBatches drains cells from 'in', groups them into batches of at most
// 'batchSize' distinct keys, and calls 'write' for each non-empty batch.
//
// A batch never holds two cells with the same key: a later cell replaces the
// earlier one in place, so a backend never sees conflicting writes in one
// statement and the last write still wins.
//
// It returns the total reported by write and the first error encountered.
// Cancellation returns (total, ctx.Err()).
func LoadBatches(
	ctx context.Context,
	job string,
	in <-chan records.Cell,
	batchSize int,
	write WriteFn,
) (int64, error) {
	if batchSize <= 0 {
		return 0, fmt.Errorf("batchSize must be > 0")
	}
	if write == nil {
		return 0, fmt.Errorf("write must not be nil")
	}

	var (
		log         = slog.Default().With("job", job, "component", "loader")
		total       int64
		batches     int64
		batch       = make([]records.Cell, 0, batchSize)
		pos         = make(map[records.Key]int, batchSize)
		start       = time.Now()
		lastFlushTS = start
		lastTotal   int64
	)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := write(ctx, batch)
		total += n

		batch = batch[:0]
		clear(pos)

		if err != nil {
			log.Error("write failed", "written", n, "total", total, "err", err)
			return err
		}

		batches++
		metrics.RecordBatches(job, 1)
		metrics.RecordCells(job, n)

		now := time.Now()
		sinceLast := now.Sub(lastFlushTS)
		cps := float64(0)
		if sinceLast > 0 {
			cps = float64(total-lastTotal) / sinceLast.Seconds()
		}
		log.Debug("batch written",
			"batch", batches,
			"cps", int64(cps),
			"written", n,
			"total", total,
			"elapsed", now.Sub(start).Truncate(time.Millisecond),
			"since_last", sinceLast.Truncate(time.Millisecond),
		)
		lastFlushTS = now
		lastTotal = total
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return total, ctx.Err()

		case c, ok := <-in:
			if !ok {
				if err := flush(); err != nil {
					return total, err
				}
				log.Info("input closed", "batches", batches, "total", total)
				return total, nil
			}
			if i, dup := pos[c.Key()]; dup {
				batch[i] = c
				continue
			}
			pos[c.Key()] = len(batch)
			batch = append(batch, c)
			if len(batch) >= batchSize {
				if err := flush(); err != nil {
					return total, err
				}
			}
		}
	}
}
