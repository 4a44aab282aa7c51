package middleware

import (
	"context"

	"github.com/lexiroute/lexiroute/internal/dispatch"
)

// DispatchMetricsRecorder forwards settled dispatch attempts into the
// Prometheus counters. It implements dispatch.Recorder.
type DispatchMetricsRecorder struct{}

// RecordDispatch implements dispatch.Recorder.
func (DispatchMetricsRecorder) RecordDispatch(_ context.Context, rec dispatch.Record) {
	ObserveDispatch(rec.EndpointID, rec.Success, rec.LatencyMs/1000.0)
}
