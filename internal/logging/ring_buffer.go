package logging

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// DefaultBufferSize is the default capacity of the log ring buffer.
const DefaultBufferSize = 500

// Entry is one captured log record, shaped for the dashboard log endpoint.
type Entry struct {
	Timestamp time.Time      `json:"timestamp"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// RingBuffer is a fixed-capacity circular store of recent log entries. It
// implements logrus.Hook so the server can expose its own recent logs without
// touching the log files.
type RingBuffer struct {
	mu      sync.RWMutex
	entries []Entry
	head    int
	count   int
}

// NewRingBuffer creates a ring buffer with the given capacity; non-positive
// capacities fall back to DefaultBufferSize.
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = DefaultBufferSize
	}
	return &RingBuffer{entries: make([]Entry, capacity)}
}

// Levels implements logrus.Hook; every level is captured.
func (rb *RingBuffer) Levels() []log.Level { return log.AllLevels }

// Fire implements logrus.Hook.
func (rb *RingBuffer) Fire(entry *log.Entry) error {
	fields := make(map[string]any, len(entry.Data))
	for k, v := range entry.Data {
		fields[k] = v
	}
	rb.mu.Lock()
	rb.entries[rb.head] = Entry{
		Timestamp: entry.Time,
		Level:     entry.Level.String(),
		Message:   entry.Message,
		Fields:    fields,
	}
	rb.head = (rb.head + 1) % len(rb.entries)
	if rb.count < len(rb.entries) {
		rb.count++
	}
	rb.mu.Unlock()
	return nil
}

// Recent returns a copy of up to n entries, oldest first. n <= 0 returns all
// buffered entries.
func (rb *RingBuffer) Recent(n int) []Entry {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	out := make([]Entry, 0, rb.count)
	start := rb.head - rb.count
	for i := 0; i < rb.count; i++ {
		idx := (start + i + len(rb.entries)) % len(rb.entries)
		out = append(out, rb.entries[idx])
	}
	if n > 0 && n < len(out) {
		out = out[len(out)-n:]
	}
	return out
}

// Len returns the number of buffered entries.
func (rb *RingBuffer) Len() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.count
}

// Buffer is the process-wide ring buffer consulted by the dashboard API.
var Buffer = NewRingBuffer(DefaultBufferSize)

var hookOnce sync.Once

func installBufferHook() {
	hookOnce.Do(func() {
		log.AddHook(Buffer)
	})
}
