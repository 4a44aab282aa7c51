// Package pool owns the runtime state for the enabled translation endpoints:
// one concurrency limiter and one stats instance per endpoint, plus the
// selection algorithm that ranks endpoints by composite score on every
// acquisition. A pool is built once from a configuration snapshot and swapped
// wholesale when the configuration changes; in-flight leases always settle
// against the pool instance they were acquired from.
package pool

import (
	"context"
	"sort"
	"sync"

	"github.com/lexiroute/lexiroute/internal/apperr"
	"github.com/lexiroute/lexiroute/internal/config"
	"github.com/lexiroute/lexiroute/internal/stats"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"
)

// ErrNoEndpoints reports that the pool holds no enabled endpoints. This is a
// configuration error, not a transient condition, and is never retried.
var ErrNoEndpoints = apperr.NewConfigError("no enabled endpoints configured")

// endpointState pairs an endpoint's read-only configuration with its owned
// runtime state. Created at pool initialization, discarded with the pool.
type endpointState struct {
	endpoint config.Endpoint
	sem      *semaphore.Weighted
	stats    *stats.EndpointStats
}

// Lease is an acquired admission permit against one endpoint. It must be
// released exactly once, on every exit path including cancellation.
type Lease struct {
	state   *endpointState
	release sync.Once
}

// Endpoint returns the configuration of the endpoint this lease admits to.
func (l *Lease) Endpoint() config.Endpoint { return l.state.endpoint }

// Pool owns the endpoint runtime states and the selection policy.
type Pool struct {
	mu          sync.RWMutex
	states      []*endpointState
	initialized bool
	initGroup   singleflight.Group
}

// New returns an empty, uninitialized pool.
func New() *Pool { return &Pool{} }

// EnsureInitialized builds the runtime state for every enabled endpoint in
// cfg. It is idempotent: the first caller builds, concurrent callers share
// the in-flight build's outcome, and later callers after a failure may retry.
func (p *Pool) EnsureInitialized(cfg *config.Config) error {
	p.mu.RLock()
	ready := p.initialized
	p.mu.RUnlock()
	if ready {
		return nil
	}
	_, err, _ := p.initGroup.Do("init", func() (any, error) {
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.initialized {
			return nil, nil
		}
		enabled := cfg.EnabledEndpoints()
		if len(enabled) == 0 {
			return nil, ErrNoEndpoints
		}
		states := make([]*endpointState, 0, len(enabled))
		for _, ep := range enabled {
			states = append(states, &endpointState{
				endpoint: ep,
				sem:      semaphore.NewWeighted(int64(ep.MaxConcurrency)),
				stats:    &stats.EndpointStats{},
			})
		}
		p.states = states
		p.initialized = true
		log.Debugf("endpoint pool initialized with %d endpoints", len(states))
		return nil, nil
	})
	return err
}

// Initialized reports whether a successful initialization has completed.
func (p *Pool) Initialized() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.initialized
}

// ranked returns the endpoint states ordered by descending composite score.
// Score combines the operator's manual weight with the live dynamic weight;
// ties break toward fewer active requests, then lexicographic ID so identical
// endpoints rank deterministically.
func (p *Pool) ranked() []*endpointState {
	p.mu.RLock()
	states := make([]*endpointState, len(p.states))
	copy(states, p.states)
	p.mu.RUnlock()

	type scored struct {
		state  *endpointState
		score  float64
		active int64
	}
	items := make([]scored, 0, len(states))
	for _, st := range states {
		snap := st.stats.Snapshot()
		items = append(items, scored{
			state:  st,
			score:  float64(st.endpoint.Weight) / 100.0 * snap.DynamicWeight,
			active: snap.ActiveRequests,
		})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].score != items[j].score {
			return items[i].score > items[j].score
		}
		if items[i].active != items[j].active {
			return items[i].active < items[j].active
		}
		return items[i].state.endpoint.ID < items[j].state.endpoint.ID
	})
	out := make([]*endpointState, len(items))
	for i, it := range items {
		out[i] = it.state
	}
	return out
}

// Acquire selects the best currently-available endpoint and takes one
// admission permit from it. It first scans the ranking with non-blocking
// permit attempts so a saturated front-runner falls through to an idle peer;
// only when every endpoint is momentarily full does it block on the
// top-ranked endpoint's permit, bounded by ctx.
func (p *Pool) Acquire(ctx context.Context) (*Lease, error) {
	ranked := p.ranked()
	if len(ranked) == 0 {
		return nil, ErrNoEndpoints
	}
	for _, st := range ranked {
		if st.sem.TryAcquire(1) {
			st.stats.MarkAcquired()
			return &Lease{state: st}, nil
		}
	}
	best := ranked[0]
	if err := best.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	best.stats.MarkAcquired()
	return &Lease{state: best}, nil
}

// Release returns the lease's permit and settles the outcome into the
// endpoint's stats. Safe to call once per lease; duplicate calls are ignored
// so that deferred cleanup cannot double-release.
func (p *Pool) Release(lease *Lease, success bool, latencyMs float64) {
	if lease == nil {
		return
	}
	lease.release.Do(func() {
		lease.state.stats.MarkReleased()
		lease.state.stats.RecordOutcome(success, latencyMs)
		lease.state.sem.Release(1)
	})
}

// EndpointSnapshot pairs an endpoint's identity with a stats snapshot, for
// telemetry queries.
type EndpointSnapshot struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Weight         int            `json:"weight"`
	MaxConcurrency int            `json:"max_concurrency"`
	Stats          stats.Snapshot `json:"stats"`
}

// Snapshots returns a telemetry view of every endpoint in the pool, ordered
// by endpoint ID. This is a query path only; it never mutates state.
func (p *Pool) Snapshots() []EndpointSnapshot {
	p.mu.RLock()
	states := make([]*endpointState, len(p.states))
	copy(states, p.states)
	p.mu.RUnlock()

	out := make([]EndpointSnapshot, 0, len(states))
	for _, st := range states {
		out = append(out, EndpointSnapshot{
			ID:             st.endpoint.ID,
			Name:           st.endpoint.DisplayName(),
			Weight:         st.endpoint.Weight,
			MaxConcurrency: st.endpoint.MaxConcurrency,
			Stats:          st.stats.Snapshot(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ResetStats zeroes the counters of the endpoint with the given ID. Returns
// false when the endpoint is not part of the pool.
func (p *Pool) ResetStats(id string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, st := range p.states {
		if st.endpoint.ID == id {
			st.stats.Reset()
			return true
		}
	}
	return false
}
