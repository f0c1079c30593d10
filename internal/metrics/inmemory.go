package metrics

import (
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
// SubscriptionsFailed is keyed by error kind and HTTPRequests by HTTPRequestKey.
type Snapshot struct {
	SubscriptionsCreated  uint64
	SubscriptionsRejected uint64
	SubscriptionsFailed   map[string]uint64
	InsertDurationCount   uint64
	InsertDurationTotalNs int64
	HTTPRequests          map[string]uint64
}

// InMemoryRecorder stores metrics in memory for tests.
type InMemoryRecorder struct {
	subscriptionsCreated  uint64
	subscriptionsRejected uint64
	insertDurationCount   uint64
	insertDurationTotalNs int64

	mu                  sync.Mutex
	subscriptionsFailed map[string]uint64
	httpRequests        map[string]uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{
		subscriptionsFailed: make(map[string]uint64),
		httpRequests:        make(map[string]uint64),
	}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	failed := make(map[string]uint64, len(m.subscriptionsFailed))
	for k, v := range m.subscriptionsFailed {
		failed[k] = v
	}
	requests := make(map[string]uint64, len(m.httpRequests))
	for k, v := range m.httpRequests {
		requests[k] = v
	}
	m.mu.Unlock()

	return Snapshot{
		SubscriptionsCreated:  atomic.LoadUint64(&m.subscriptionsCreated),
		SubscriptionsRejected: atomic.LoadUint64(&m.subscriptionsRejected),
		SubscriptionsFailed:   failed,
		InsertDurationCount:   atomic.LoadUint64(&m.insertDurationCount),
		InsertDurationTotalNs: atomic.LoadInt64(&m.insertDurationTotalNs),
		HTTPRequests:          requests,
	}
}

// IncSubscriptionCreated increments the created counter.
func (m *InMemoryRecorder) IncSubscriptionCreated() {
	atomic.AddUint64(&m.subscriptionsCreated, 1)
}

// IncSubscriptionRejected increments the rejected counter.
func (m *InMemoryRecorder) IncSubscriptionRejected() {
	atomic.AddUint64(&m.subscriptionsRejected, 1)
}

// IncSubscriptionFailed increments the failure counter for kind.
func (m *InMemoryRecorder) IncSubscriptionFailed(kind string) {
	m.mu.Lock()
	m.subscriptionsFailed[kind]++
	m.mu.Unlock()
}

// ObserveInsertDuration records insert duration.
func (m *InMemoryRecorder) ObserveInsertDuration(duration time.Duration) {
	atomic.AddUint64(&m.insertDurationCount, 1)
	atomic.AddInt64(&m.insertDurationTotalNs, duration.Nanoseconds())
}

// ObserveHTTPRequest counts the request under its method, route and status.
func (m *InMemoryRecorder) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	m.mu.Lock()
	m.httpRequests[HTTPRequestKey(method, route, status)]++
	m.mu.Unlock()
}

// HTTPRequestKey builds the Snapshot.HTTPRequests key.
func HTTPRequestKey(method, route string, status int) string {
	return method + " " + route + " " + strconv.Itoa(status)
}
