package metrics

import (
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	UsersCreated                 uint64
	UserRejectsInvalidPayload    uint64
	UserRejectsDuplicateEmail    uint64
	UserRejectsDuplicateUsername uint64
	UserCacheHits                uint64
	UserCacheMisses              uint64
	UserLookupDurationCount      uint64
	UserLookupDurationTotalNs    int64
}

// InMemoryRecorder stores metrics in memory.
// The API binary serves it on /metrics; tests read it through Snapshot.
type InMemoryRecorder struct {
	usersCreated                 uint64
	userRejectsInvalidPayload    uint64
	userRejectsDuplicateEmail    uint64
	userRejectsDuplicateUsername uint64
	userCacheHits                uint64
	userCacheMisses              uint64
	userLookupDurationCount      uint64
	userLookupDurationTotalNs    int64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	return Snapshot{
		UsersCreated:                 atomic.LoadUint64(&m.usersCreated),
		UserRejectsInvalidPayload:    atomic.LoadUint64(&m.userRejectsInvalidPayload),
		UserRejectsDuplicateEmail:    atomic.LoadUint64(&m.userRejectsDuplicateEmail),
		UserRejectsDuplicateUsername: atomic.LoadUint64(&m.userRejectsDuplicateUsername),
		UserCacheHits:                atomic.LoadUint64(&m.userCacheHits),
		UserCacheMisses:              atomic.LoadUint64(&m.userCacheMisses),
		UserLookupDurationCount:      atomic.LoadUint64(&m.userLookupDurationCount),
		UserLookupDurationTotalNs:    atomic.LoadInt64(&m.userLookupDurationTotalNs),
	}
}

// IncUserCreated increments the created counter.
func (m *InMemoryRecorder) IncUserCreated() {
	atomic.AddUint64(&m.usersCreated, 1)
}

// IncUserCreateRejected increments the rejection counter for reason.
// Unknown reasons are counted as invalid payloads.
func (m *InMemoryRecorder) IncUserCreateRejected(reason string) {
	switch reason {
	case RejectDuplicateEmail:
		atomic.AddUint64(&m.userRejectsDuplicateEmail, 1)
	case RejectDuplicateUsername:
		atomic.AddUint64(&m.userRejectsDuplicateUsername, 1)
	default:
		atomic.AddUint64(&m.userRejectsInvalidPayload, 1)
	}
}

// IncUserCacheHit increments cache hit counter.
func (m *InMemoryRecorder) IncUserCacheHit() {
	atomic.AddUint64(&m.userCacheHits, 1)
}

// IncUserCacheMiss increments cache miss counter.
func (m *InMemoryRecorder) IncUserCacheMiss() {
	atomic.AddUint64(&m.userCacheMisses, 1)
}

// ObserveUserLookupDuration records single-user lookup duration.
func (m *InMemoryRecorder) ObserveUserLookupDuration(duration time.Duration) {
	atomic.AddUint64(&m.userLookupDurationCount, 1)
	atomic.AddInt64(&m.userLookupDurationTotalNs, duration.Nanoseconds())
}
