/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package logbuffer provides an in-memory ring buffer for capturing logs.
// An unattended station has no operator watching stdout; the control API
// serves the tail of this buffer instead.
package logbuffer

import (
	"encoding/json"
	"io"
	"sync"
	"time"
)

// Entry is a single captured log record.
type Entry struct {
	Timestamp time.Time              `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Component string                 `json:"component,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// Buffer is a thread-safe ring buffer of log entries.
type Buffer struct {
	mu       sync.RWMutex
	entries  []Entry
	capacity int
	head     int
	count    int
}

// New creates a log buffer with the given capacity.
func New(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = 2000
	}
	return &Buffer{
		entries:  make([]Entry, capacity),
		capacity: capacity,
	}
}

// Add appends an entry, evicting the oldest once full.
func (b *Buffer) Add(entry Entry) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries[b.head] = entry
	b.head = (b.head + 1) % b.capacity
	if b.count < b.capacity {
		b.count++
	}
}

// Tail returns up to n newest entries in chronological order. n <= 0 means
// everything currently buffered.
func (b *Buffer) Tail(n int) []Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if n <= 0 || n > b.count {
		n = b.count
	}

	start := 0
	if b.count == b.capacity {
		start = b.head
	}
	start = (start + b.count - n) % b.capacity

	out := make([]Entry, n)
	for i := 0; i < n; i++ {
		out[i] = b.entries[(start+i)%b.capacity]
	}
	return out
}

// Len returns the number of buffered entries.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.count
}

// Writer adapts the buffer to io.Writer so zerolog can feed it JSON lines.
type Writer struct {
	buffer   *Buffer
	fallback io.Writer
}

// NewWriter creates a writer that captures log lines into the buffer. A nil
// fallback discards lines the buffer cannot parse.
func NewWriter(buffer *Buffer, fallback io.Writer) *Writer {
	return &Writer{buffer: buffer, fallback: fallback}
}

// Write implements io.Writer.
func (w *Writer) Write(p []byte) (int, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(p, &raw); err != nil {
		if w.fallback != nil {
			return w.fallback.Write(p)
		}
		return len(p), nil
	}

	entry := Entry{
		Timestamp: time.Now(),
		Fields:    make(map[string]interface{}),
	}
	if lvl, ok := raw["level"].(string); ok {
		entry.Level = lvl
		delete(raw, "level")
	}
	if msg, ok := raw["message"].(string); ok {
		entry.Message = msg
		delete(raw, "message")
	}
	if comp, ok := raw["component"].(string); ok {
		entry.Component = comp
		delete(raw, "component")
	}
	delete(raw, "time")
	for k, v := range raw {
		entry.Fields[k] = v
	}

	w.buffer.Add(entry)
	return len(p), nil
}
