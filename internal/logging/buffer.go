package logging

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Entry is one captured log line
type Entry struct {
	Timestamp time.Time
	Level     zerolog.Level
	Component string
	Message   string
	Error     string
	Raw       string
}

// Buffer is a thread-safe ring buffer of log entries at or above a minimum
// level. It implements zerolog.LevelWriter.
type Buffer struct {
	entries []Entry
	size    int
	head    int
	count   int
	min     zerolog.Level
	mu      sync.RWMutex
}

// NewBuffer creates a buffer holding the last size entries at or above min
func NewBuffer(size int, min zerolog.Level) *Buffer {
	if size < 1 {
		size = 1
	}
	return &Buffer{
		entries: make([]Entry, size),
		size:    size,
		min:     min,
	}
}

// Write implements io.Writer. The level is read from the JSON line.
func (b *Buffer) Write(p []byte) (int, error) {
	var fields struct {
		Level string `json:"level"`
	}
	_ = json.Unmarshal(p, &fields)
	level, err := zerolog.ParseLevel(fields.Level)
	if err != nil {
		level = zerolog.NoLevel
	}
	return b.WriteLevel(level, p)
}

// WriteLevel implements zerolog.LevelWriter
func (b *Buffer) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	if level < b.min || level == zerolog.NoLevel {
		return len(p), nil
	}

	entry := parseEntry(p)
	entry.Level = level
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries[b.head] = entry
	b.head = (b.head + 1) % b.size
	if b.count < b.size {
		b.count++
	}
	return len(p), nil
}

// Entries returns all captured entries in chronological order
func (b *Buffer) Entries() []Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()

	result := make([]Entry, b.count)
	if b.count == 0 {
		return result
	}

	start := 0
	if b.count == b.size {
		start = b.head
	}
	for i := 0; i < b.count; i++ {
		result[i] = b.entries[(start+i)%b.size]
	}
	return result
}

// Clear drops all entries
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.head = 0
	b.count = 0
}

// parseEntry extracts the common fields of a zerolog JSON line
func parseEntry(p []byte) Entry {
	var fields struct {
		Time      time.Time `json:"time"`
		Component string    `json:"component"`
		Message   string    `json:"message"`
		Error     string    `json:"error"`
	}
	entry := Entry{Raw: string(p)}
	if err := json.Unmarshal(p, &fields); err != nil {
		entry.Message = entry.Raw
		return entry
	}
	entry.Timestamp = fields.Time
	entry.Component = fields.Component
	entry.Message = fields.Message
	entry.Error = fields.Error
	return entry
}
