// Package metrics records operational metrics for an import run behind a
// small, backend-agnostic interface.
//
// A global backend defaults to a no-op, so instrumented code never has to
// check whether metrics are configured. Concrete systems (Prometheus
// Pushgateway, DogStatsD) live in subpackages and are installed with
// SetBackend by the command that owns the run.
package metrics

import "time"

// Metric names emitted by this package.
const (
	StepTotal           = "bulkimport_step_total"
	StepDurationSeconds = "bulkimport_step_duration_seconds"
	LinesTotal          = "bulkimport_lines_total"
	CellsWrittenTotal   = "bulkimport_cells_written_total"
	BatchesTotal        = "bulkimport_batches_total"
)

// Line kinds used as the "kind" label of LinesTotal.
const (
	KindRead            = "read"
	KindBlank           = "blank"
	KindImported        = "imported"
	KindParseError      = "parse_error"
	KindMissingEntityID = "missing_entity_id"
	KindShortField      = "short_field"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(name string, delta float64, labels Labels)       {}
func (nopBackend) ObserveHistogram(name string, value float64, labels Labels) {}
func (nopBackend) Flush() error                                               { return nil }

var backend Backend = nopBackend{}

// SetBackend installs a concrete backend. Passing nil keeps the existing backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	backend = b
}

// Flush delegates to the current backend.
func Flush() error {
	return backend.Flush()
}

// RecordStep records latency and success/failure of one run step
// (open, header, import, load).
func RecordStep(job, step string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}

	lbls := Labels{
		"job":    job,
		"step":   step,
		"status": status,
	}

	backend.IncCounter(StepTotal, 1, lbls)
	backend.ObserveHistogram(StepDurationSeconds, d.Seconds(), lbls)
}

// RecordLines increments the line counter for the given job and kind.
func RecordLines(job, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(LinesTotal, float64(delta), Labels{
		"job":  job,
		"kind": kind,
	})
}

// RecordCells increments the number of cells written to storage.
func RecordCells(job string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(CellsWrittenTotal, float64(delta), Labels{"job": job})
}

// RecordBatches increments a batch-level counter for the given job.
func RecordBatches(job string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(BatchesTotal, float64(delta), Labels{
		"job": job,
	})
}
