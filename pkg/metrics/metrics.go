// Package metrics provides the Prometheus registry used by the sync.
// All metrics are defined in their respective packages (client, search,
// pagination, flatten, pipeline, runstate) to avoid circular dependencies.
//
// This package documents the available metrics and exports them for
// batch runs, which have no scrape endpoint.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the gatherer paired with Registry.
var Gatherer = prometheus.DefaultGatherer

// WriteTextfile writes all gathered metrics to path in the text exposition
// format, for the node-exporter textfile collector. The file is replaced
// atomically.
func WriteTextfile(path string) error {
	if path == "" {
		return fmt.Errorf("metrics textfile path is empty")
	}
	if err := prometheus.WriteToTextfile(path, Gatherer); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - fever_requests_total{endpoint, status} (Counter): Requests by endpoint and HTTP status
//   - fever_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - fever_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network, decode)
//
// Search Metrics (pkg/search, pkg/pagination):
//   - fever_poll_attempts_total (Counter): Status polls sent
//   - fever_poll_wait_seconds (Histogram): Time from first poll to partition info
//   - fever_poll_timeouts_total (Counter): Searches that exhausted the poll budget
//   - fever_partitions_fetched_total (Counter): Partitions fetched
//
// Flatten Metrics (pkg/flatten):
//   - fever_flatten_skipped_total (Counter): Orders skipped as unprojectable
//
// Run Metrics (pkg/pipeline, pkg/runstate):
//   - fever_sync_runs_total{outcome} (Counter): Runs by outcome (success, empty, failed)
//   - fever_sync_rows_total (Counter): Rows produced
//   - fever_run_lock_conflicts_total (Counter): Runs refused because the search was running
//
// Example Prometheus Queries:
//
//   # Failed runs in the last day
//   increase(fever_sync_runs_total{outcome="failed"}[1d])
//
//   # Server error rate
//   rate(fever_errors_total{class="server"}[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(fever_request_duration_seconds_bucket[5m]))
