package util

import (
	"strings"
	"sync"
)

const defaultRecentCapacity = 300

// RecentLogs keeps the most recent log lines in memory, newest first.
type RecentLogs struct {
	mu    sync.Mutex
	lines []string
	cap   int
}

// NewRecentLogs allocates a tail buffer holding up to capacity lines.
func NewRecentLogs(capacity int) *RecentLogs {
	if capacity <= 0 {
		capacity = defaultRecentCapacity
	}
	return &RecentLogs{cap: capacity, lines: make([]string, 0, capacity)}
}

// Write implements io.Writer; zerolog hands over one event per call.
func (r *RecentLogs) Write(p []byte) (int, error) {
	line := strings.TrimRight(string(p), "\n")
	if line == "" {
		return len(p), nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.lines) < r.cap {
		r.lines = append(r.lines, "")
	}
	copy(r.lines[1:], r.lines[:len(r.lines)-1])
	r.lines[0] = line
	return len(p), nil
}

// Lines returns up to limit lines, newest first. A non-positive limit returns everything.
func (r *RecentLogs) Lines(limit int) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if limit <= 0 || limit > len(r.lines) {
		limit = len(r.lines)
	}
	out := make([]string, limit)
	copy(out, r.lines[:limit])
	return out
}
