package handler

import (
	"fmt"
	"net/http"

	"github.com/dco5/users-service/internal/metrics"
)

// MetricsHandler exposes in-memory metrics.
type MetricsHandler struct {
	snapshotter metrics.Snapshotter
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(snapshotter metrics.Snapshotter) *MetricsHandler {
	return &MetricsHandler{snapshotter: snapshotter}
}

// Metrics returns metrics in Prometheus exposition format.
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.snapshotter == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	snap := h.snapshotter.Snapshot()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	writeMetric(w, "users_created_total %d\n", snap.UsersCreated)
	writeMetric(w, "users_create_rejected_total{reason=\"%s\"} %d\n", metrics.RejectInvalidPayload, snap.UserRejectsInvalidPayload)
	writeMetric(w, "users_create_rejected_total{reason=\"%s\"} %d\n", metrics.RejectDuplicateEmail, snap.UserRejectsDuplicateEmail)
	writeMetric(w, "users_create_rejected_total{reason=\"%s\"} %d\n", metrics.RejectDuplicateUsername, snap.UserRejectsDuplicateUsername)

	writeMetric(w, "users_cache_hits_total %d\n", snap.UserCacheHits)
	writeMetric(w, "users_cache_misses_total %d\n", snap.UserCacheMisses)
	writeMetric(w, "users_lookup_duration_seconds_count %d\n", snap.UserLookupDurationCount)
	writeMetric(w, "users_lookup_duration_seconds_sum %.6f\n", float64(snap.UserLookupDurationTotalNs)/1e9)
}

func writeMetric(w http.ResponseWriter, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
