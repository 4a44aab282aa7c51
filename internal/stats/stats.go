// Package stats maintains per-endpoint runtime performance counters and the
// derived scores the pool uses to rank endpoints. All mutation goes through
// the synchronized methods on EndpointStats; contention is local to one
// endpoint, never global.
package stats

import (
	"math"
	"sync"
	"time"
)

// latencySmoothing is the EMA factor applied to successful request latencies.
// Higher values weight recent observations more heavily.
const latencySmoothing = 0.3

// EndpointStats tracks request counters and smoothed latency for a single
// endpoint. The zero value is ready to use.
type EndpointStats struct {
	mu sync.Mutex

	activeRequests int64
	totalRequests  int64
	successCount   int64
	failureCount   int64

	// avgLatencyMs is an exponential moving average over successful request
	// latencies. Zero until the first success; failures carry no latency
	// signal and leave it untouched.
	avgLatencyMs float64

	lastRequestAt time.Time
	lastSuccessAt time.Time
	lastFailureAt time.Time
}

// Snapshot is an immutable view of an endpoint's counters plus the derived
// scores, safe to use without holding the stats lock.
type Snapshot struct {
	ActiveRequests int64     `json:"active_requests"`
	TotalRequests  int64     `json:"total_requests"`
	SuccessCount   int64     `json:"success_count"`
	FailureCount   int64     `json:"failure_count"`
	AvgLatencyMs   float64   `json:"avg_latency_ms"`
	SuccessRate    float64   `json:"success_rate"`
	DynamicWeight  float64   `json:"dynamic_weight"`
	LastRequestAt  time.Time `json:"last_request_at"`
	LastSuccessAt  time.Time `json:"last_success_at"`
	LastFailureAt  time.Time `json:"last_failure_at"`
}

// MarkAcquired records that a request has been admitted against this
// endpoint. It must be paired with exactly one MarkReleased.
func (s *EndpointStats) MarkAcquired() {
	s.mu.Lock()
	s.activeRequests++
	s.lastRequestAt = time.Now()
	s.mu.Unlock()
}

// MarkReleased records that an admitted request has finished, on every exit
// path including cancellation. Releasing below zero indicates a pairing bug
// and is clamped rather than propagated.
func (s *EndpointStats) MarkReleased() {
	s.mu.Lock()
	if s.activeRequests > 0 {
		s.activeRequests--
	}
	s.mu.Unlock()
}

// RecordOutcome settles one request. On success the latency feeds the moving
// average; failures only stamp the failure time since a failed request
// carries no usable latency signal.
func (s *EndpointStats) RecordOutcome(success bool, latencyMs float64) {
	now := time.Now()
	s.mu.Lock()
	s.totalRequests++
	if success {
		s.successCount++
		if s.avgLatencyMs == 0 {
			s.avgLatencyMs = latencyMs
		} else {
			s.avgLatencyMs = latencySmoothing*latencyMs + (1-latencySmoothing)*s.avgLatencyMs
		}
		s.lastSuccessAt = now
	} else {
		s.failureCount++
		s.lastFailureAt = now
	}
	s.mu.Unlock()
}

// Reset zeroes all counters. It is only invoked on explicit operator action,
// never as part of normal dispatch.
func (s *EndpointStats) Reset() {
	s.mu.Lock()
	s.activeRequests = 0
	s.totalRequests = 0
	s.successCount = 0
	s.failureCount = 0
	s.avgLatencyMs = 0
	s.lastRequestAt = time.Time{}
	s.lastSuccessAt = time.Time{}
	s.lastFailureAt = time.Time{}
	s.mu.Unlock()
}

// Snapshot returns a consistent copy of the counters with the derived success
// rate and dynamic weight computed under the same lock acquisition.
func (s *EndpointStats) Snapshot() Snapshot {
	s.mu.Lock()
	snap := Snapshot{
		ActiveRequests: s.activeRequests,
		TotalRequests:  s.totalRequests,
		SuccessCount:   s.successCount,
		FailureCount:   s.failureCount,
		AvgLatencyMs:   s.avgLatencyMs,
		LastRequestAt:  s.lastRequestAt,
		LastSuccessAt:  s.lastSuccessAt,
		LastFailureAt:  s.lastFailureAt,
	}
	s.mu.Unlock()
	snap.SuccessRate = successRate(snap.SuccessCount, snap.TotalRequests)
	snap.DynamicWeight = dynamicWeight(snap.AvgLatencyMs, snap.SuccessRate)
	return snap
}

// successRate defaults to 1.0 for an endpoint with no history so that fresh
// endpoints start at full weight.
func successRate(success, total int64) float64 {
	if total == 0 {
		return 1.0
	}
	return float64(success) / float64(total)
}

// dynamicWeight blends a latency-derived speed score with the success rate
// into a [0,1] ranking signal.
func dynamicWeight(avgLatencyMs, successRate float64) float64 {
	speedScore := 1.0
	if avgLatencyMs > 0 {
		speedScore = 1.0 / (1.0 + math.Log(1.0+avgLatencyMs/1000.0))
	}
	w := 0.4*speedScore + 0.6*successRate
	if w < 0 {
		return 0
	}
	if w > 1 {
		return 1
	}
	return w
}
