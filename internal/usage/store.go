// Package usage persists one record per settled dispatch attempt to a local
// SQLite database and aggregates them for the dashboard usage endpoint.
// Recording is fire-and-forget: storage failures are logged and never
// propagate into the dispatch path.
package usage

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/lexiroute/lexiroute/internal/dispatch"
	log "github.com/sirupsen/logrus"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS dispatch_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	request_id TEXT NOT NULL,
	endpoint_id TEXT NOT NULL,
	attempt INTEGER NOT NULL,
	success INTEGER NOT NULL,
	latency_ms REAL NOT NULL,
	error TEXT,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_dispatch_log_endpoint ON dispatch_log(endpoint_id);
CREATE INDEX IF NOT EXISTS idx_dispatch_log_created ON dispatch_log(created_at);
`

// Store is a SQLite-backed dispatch log. It implements dispatch.Recorder.
type Store struct {
	mu sync.Mutex
	db *sql.DB
}

// Open creates or opens the usage database at path and ensures the schema.
func Open(path string) (*Store, error) {
	if path == "" {
		path = "lexiroute-usage.db"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RecordDispatch implements dispatch.Recorder. Failures are logged at Warn
// and swallowed.
func (s *Store) RecordDispatch(ctx context.Context, rec dispatch.Record) {
	if s == nil || s.db == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(context.WithoutCancel(ctx),
		`INSERT INTO dispatch_log (request_id, endpoint_id, attempt, success, latency_ms, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.RequestID, rec.EndpointID, rec.Attempt, boolToInt(rec.Success), rec.LatencyMs, rec.Error, rec.Timestamp.UTC())
	if err != nil {
		log.Warnf("usage store: record dispatch: %v", err)
	}
}

// EndpointSummary aggregates the persisted history for one endpoint.
type EndpointSummary struct {
	EndpointID   string  `json:"endpoint_id"`
	Total        int64   `json:"total"`
	Success      int64   `json:"success"`
	Failure      int64   `json:"failure"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
}

// Summary returns per-endpoint aggregates for dispatches recorded since the
// given time. A zero time aggregates the full history.
func (s *Store) Summary(ctx context.Context, since time.Time) ([]EndpointSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT endpoint_id,
		        COUNT(*),
		        SUM(success),
		        COUNT(*) - SUM(success),
		        COALESCE(AVG(CASE WHEN success = 1 THEN latency_ms END), 0)
		 FROM dispatch_log
		 WHERE created_at >= ?
		 GROUP BY endpoint_id
		 ORDER BY endpoint_id`,
		since.UTC())
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []EndpointSummary
	for rows.Next() {
		var item EndpointSummary
		if err := rows.Scan(&item.EndpointID, &item.Total, &item.Success, &item.Failure, &item.AvgLatencyMs); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
