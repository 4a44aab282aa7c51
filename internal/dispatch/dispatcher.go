// Package dispatch orchestrates translation requests over the endpoint pool:
// acquire a permit, invoke the provider collaborator, settle the outcome, and
// fail over to another endpoint until the attempt budget runs out.
package dispatch

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lexiroute/lexiroute/internal/apperr"
	"github.com/lexiroute/lexiroute/internal/config"
	"github.com/lexiroute/lexiroute/internal/pool"
	log "github.com/sirupsen/logrus"
)

const (
	// maxAttempts is the dispatch retry budget. Each attempt may target a
	// different endpoint; selection is re-evaluated every time.
	maxAttempts = 5

	// backoffStep scales the linear wait between failed attempts.
	backoffStep = 500 * time.Millisecond
)

// Invoker is the external translation collaborator. Implementations send the
// text to the given endpoint and return the translated text; the dispatcher
// treats the wire protocol as opaque.
type Invoker interface {
	Translate(ctx context.Context, endpoint config.Endpoint, text, systemPrompt string) (string, error)
}

// Record captures one settled dispatch attempt for usage tracking.
type Record struct {
	RequestID  string
	EndpointID string
	Attempt    int
	Success    bool
	LatencyMs  float64
	Error      string
	Timestamp  time.Time
}

// Recorder receives settled attempt records. Implementations must not block
// dispatch and must swallow their own failures.
type Recorder interface {
	RecordDispatch(ctx context.Context, rec Record)
}

// Dispatcher is the public entry point for translating text through the pool.
type Dispatcher struct {
	cfg      *config.Config
	pool     *pool.Pool
	invoker  Invoker
	recorder Recorder
	backoff  time.Duration
}

// New constructs a dispatcher over the given pool and provider collaborator.
func New(cfg *config.Config, p *pool.Pool, invoker Invoker) *Dispatcher {
	return &Dispatcher{cfg: cfg, pool: p, invoker: invoker, backoff: backoffStep}
}

// SetRecorder installs an optional usage recorder. A nil recorder disables
// recording.
func (d *Dispatcher) SetRecorder(r Recorder) { d.recorder = r }

// Pool exposes the dispatcher's pool for telemetry queries.
func (d *Dispatcher) Pool() *pool.Pool { return d.pool }

// Translate routes one text through the endpoint pool. Empty or
// whitespace-only input is returned unchanged without touching any endpoint.
// On exhaustion the returned error wraps the last underlying failure;
// cancellation propagates unwrapped and immediately.
func (d *Dispatcher) Translate(ctx context.Context, text, systemPrompt string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}
	if err := d.pool.EnsureInitialized(d.cfg); err != nil {
		return "", err
	}

	requestID := uuid.NewString()
	entry := log.WithField("request_id", requestID)

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		lease, errAcquire := d.pool.Acquire(ctx)
		if errAcquire != nil {
			if err := ctx.Err(); err != nil {
				return "", err
			}
			// No enabled endpoints is a configuration error, not retried.
			return "", errAcquire
		}
		ep := lease.Endpoint()
		start := time.Now()
		translated, errCall := d.invoker.Translate(ctx, ep, text, systemPrompt)
		latencyMs := float64(time.Since(start)) / float64(time.Millisecond)

		if errCall == nil {
			d.pool.Release(lease, true, latencyMs)
			d.record(ctx, requestID, ep.ID, attempt, true, latencyMs, nil)
			entry.Debugf("endpoint %s translated %d chars in %.0fms (attempt %d)", ep.ID, len(text), latencyMs, attempt)
			return translated, nil
		}

		d.pool.Release(lease, false, latencyMs)
		d.record(ctx, requestID, ep.ID, attempt, false, latencyMs, errCall)
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if errors.Is(errCall, context.Canceled) {
			return "", errCall
		}

		var timedOut *apperr.TimeoutError
		if errors.As(errCall, &timedOut) && timedOut.Attempt == 0 {
			timedOut.Attempt = attempt
		}
		var rateLimited *apperr.RateLimitError
		if errors.As(errCall, &rateLimited) && rateLimited.RetryAfter != nil {
			entry.Warnf("endpoint %s rate limited, provider asks to retry after %s", ep.ID, *rateLimited.RetryAfter)
		}
		entry.Warnf("attempt %d/%d via endpoint %s failed: %v", attempt, maxAttempts, ep.ID, errCall)
		lastErr = errCall

		if attempt < maxAttempts {
			if err := waitBackoff(ctx, time.Duration(attempt)*d.backoff); err != nil {
				return "", err
			}
		}
	}

	err := &apperr.ExhaustedError{Attempts: maxAttempts, Last: lastErr}
	entry.Errorf("translation failed: %v", err)
	return "", err
}

// Snapshots returns the per-endpoint telemetry view of the underlying pool.
func (d *Dispatcher) Snapshots() []pool.EndpointSnapshot {
	return d.pool.Snapshots()
}

func (d *Dispatcher) record(ctx context.Context, requestID, endpointID string, attempt int, success bool, latencyMs float64, errCall error) {
	if d.recorder == nil {
		return
	}
	rec := Record{
		RequestID:  requestID,
		EndpointID: endpointID,
		Attempt:    attempt,
		Success:    success,
		LatencyMs:  latencyMs,
		Timestamp:  time.Now(),
	}
	if errCall != nil {
		rec.Error = errCall.Error()
	}
	d.recorder.RecordDispatch(ctx, rec)
}

// waitBackoff sleeps for the given duration unless ctx is cancelled first.
func waitBackoff(ctx context.Context, wait time.Duration) error {
	if wait <= 0 {
		return nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
