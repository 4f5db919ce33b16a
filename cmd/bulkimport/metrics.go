package main

import (
	"fmt"
	"log/slog"
	"strings"

	"bulkimport/internal/config"
	"bulkimport/internal/metrics"
	"bulkimport/internal/metrics/datadog"
	"bulkimport/internal/metrics/prompush"
)

// setupMetrics installs the configured metrics backend and returns a flush
// function for the end of the run. Unknown or disabled backends keep the nop
// backend.
func setupMetrics(spec config.Pipeline, runID string) (func(), error) {
	noop := func() {}
	jobName := spec.Job
	if jobName == "" {
		jobName = "bulkimport"
	}

	var (
		b   metrics.Backend
		err error
	)
	switch name := strings.ToLower(spec.Metrics.Backend); name {
	case "prometheus":
		b, err = prompush.NewBackend(jobName, spec.Metrics.PushgatewayURL)
	case "datadog":
		b, err = datadog.NewBackend(datadog.Config{
			Addr:       spec.Metrics.DatadogAddr,
			Namespace:  "bulkimport.",
			GlobalTags: []string{"job:" + jobName, "run_id:" + runID},
		})
	case "", "none":
		return noop, nil
	default:
		slog.Warn("metrics: unknown backend; metrics disabled", "backend", name)
		return noop, nil
	}
	if err != nil {
		return noop, fmt.Errorf("metrics: %w", err)
	}

	slog.Info("metrics enabled", "backend", spec.Metrics.Backend, "job_name", jobName)
	metrics.SetBackend(b)
	return func() {
		if err := metrics.Flush(); err != nil {
			slog.Error("metrics: flush error", "err", err)
		}
	}, nil
}
