// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Rejection reasons passed to IncUserCreateRejected.
const (
	RejectInvalidPayload    = "invalid_payload"
	RejectDuplicateEmail    = "duplicate_email"
	RejectDuplicateUsername = "duplicate_username"
)

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// User writes
	IncUserCreated()
	IncUserCreateRejected(reason string)

	// User reads
	IncUserCacheHit()
	IncUserCacheMiss()
	ObserveUserLookupDuration(duration time.Duration)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
