package datadog

import (
	"errors"
	"testing"

	"bulkimport/internal/metrics"
)

type call struct {
	kind  string
	name  string
	value float64
	tags  []string
}

type fakeClient struct {
	calls  []call
	closed int
	err    error
}

func (f *fakeClient) Count(name string, value int64, tags []string, _ float64) error {
	f.calls = append(f.calls, call{"count", name, float64(value), tags})
	return nil
}

func (f *fakeClient) Histogram(name string, value float64, tags []string, _ float64) error {
	f.calls = append(f.calls, call{"histogram", name, value, tags})
	return nil
}

func (f *fakeClient) Close() error {
	f.closed++
	return f.err
}

func TestNewBackend_RequiresAddr(t *testing.T) {
	if _, err := NewBackend(Config{}); err == nil {
		t.Fatal("NewBackend with empty Addr: want error")
	}
}

func TestBackend_ForwardsWithTags(t *testing.T) {
	fc := &fakeClient{}
	b := &Backend{client: fc}

	b.IncCounter(metrics.LinesTotal, 3.9, metrics.Labels{"kind": "imported", "job": "people"})
	b.ObserveHistogram(metrics.StepDurationSeconds, 0.25, metrics.Labels{"step": "load"})

	if len(fc.calls) != 2 {
		t.Fatalf("calls = %d, want 2", len(fc.calls))
	}
	c0 := fc.calls[0]
	if c0.kind != "count" || c0.name != metrics.LinesTotal || c0.value != 3 {
		t.Fatalf("call[0] = %+v", c0)
	}
	if len(c0.tags) != 2 || c0.tags[0] != "job:people" || c0.tags[1] != "kind:imported" {
		t.Fatalf("call[0].tags = %v, want sorted [job:people kind:imported]", c0.tags)
	}
	c1 := fc.calls[1]
	if c1.kind != "histogram" || c1.value != 0.25 || c1.tags[0] != "step:load" {
		t.Fatalf("call[1] = %+v", c1)
	}
}

func TestBackend_Flush(t *testing.T) {
	fc := &fakeClient{err: errors.New("closed twice")}
	b := &Backend{client: fc}
	if err := b.Flush(); err == nil || fc.closed != 1 {
		t.Fatalf("Flush err=%v closed=%d", err, fc.closed)
	}

	var zero Backend
	zero.IncCounter("x", 1, nil)
	if err := zero.Flush(); err != nil {
		t.Fatalf("zero Backend Flush = %v", err)
	}
}

func TestLabelsToTags_Empty(t *testing.T) {
	if got := labelsToTags(nil); got != nil {
		t.Fatalf("labelsToTags(nil) = %v, want nil", got)
	}
}
