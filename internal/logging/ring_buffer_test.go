package logging

import (
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fire(t *testing.T, rb *RingBuffer, msg string) {
	t.Helper()
	require.NoError(t, rb.Fire(&log.Entry{
		Time:    time.Now(),
		Level:   log.InfoLevel,
		Message: msg,
		Data:    log.Fields{"request_id": "r-1"},
	}))
}

func TestRingBufferStoresEntries(t *testing.T) {
	rb := NewRingBuffer(4)
	fire(t, rb, "one")
	fire(t, rb, "two")

	entries := rb.Recent(0)
	require.Len(t, entries, 2)
	assert.Equal(t, "one", entries[0].Message)
	assert.Equal(t, "two", entries[1].Message)
	assert.Equal(t, "r-1", entries[1].Fields["request_id"])
	assert.Equal(t, 2, rb.Len())
}

func TestRingBufferWrapsAround(t *testing.T) {
	rb := NewRingBuffer(3)
	for _, msg := range []string{"a", "b", "c", "d", "e"} {
		fire(t, rb, msg)
	}

	entries := rb.Recent(0)
	require.Len(t, entries, 3)
	assert.Equal(t, "c", entries[0].Message, "oldest surviving entry comes first")
	assert.Equal(t, "e", entries[2].Message)
}

func TestRingBufferRecentLimit(t *testing.T) {
	rb := NewRingBuffer(10)
	for _, msg := range []string{"a", "b", "c", "d"} {
		fire(t, rb, msg)
	}

	entries := rb.Recent(2)
	require.Len(t, entries, 2)
	assert.Equal(t, "c", entries[0].Message)
	assert.Equal(t, "d", entries[1].Message)
}

func TestRingBufferDefaultCapacity(t *testing.T) {
	rb := NewRingBuffer(0)
	assert.Equal(t, 0, rb.Len())
	fire(t, rb, "x")
	assert.Equal(t, 1, rb.Len())
}
