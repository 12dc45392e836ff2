package audit

import (
	"cmp"
	"context"
	"slices"
	"sync"
)

// DefaultMemoryCapacity is the number of events a MemoryLogger retains.
const DefaultMemoryCapacity = 1000

// MemoryLogger keeps the most recent events in a ring. It serves
// deployments without a database.
type MemoryLogger struct {
	mu     sync.RWMutex
	events []Event
	next   int
	full   bool
}

// NewMemoryLogger creates a ring holding up to capacity events.
func NewMemoryLogger(capacity int) *MemoryLogger {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &MemoryLogger{events: make([]Event, capacity)}
}

// Log records an audit event, evicting the oldest when full.
func (m *MemoryLogger) Log(_ context.Context, event Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[m.next] = event
	m.next = (m.next + 1) % len(m.events)
	if m.next == 0 {
		m.full = true
	}
	return nil
}

// snapshot returns retained events newest first.
func (m *MemoryLogger) snapshot() []Event {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := m.next
	if m.full {
		n = len(m.events)
	}
	out := make([]Event, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, m.events[(m.next-i+len(m.events))%len(m.events)])
	}
	return out
}

func (m *MemoryLogger) matching(filter QueryFilter) []Event {
	var out []Event
	for _, e := range m.snapshot() {
		if filter.Match(&e) {
			out = append(out, e)
		}
	}
	return out
}

// Query retrieves audit events matching the filter, newest first.
func (m *MemoryLogger) Query(_ context.Context, filter QueryFilter) ([]Event, error) {
	events := m.matching(filter)
	start := min(max(filter.Offset, 0), len(events))
	end := len(events)
	if filter.Limit > 0 {
		end = min(start+filter.Limit, end)
	}
	return append([]Event{}, events[start:end]...), nil
}

// Count returns the number of events matching the filter.
func (m *MemoryLogger) Count(_ context.Context, filter QueryFilter) (int, error) {
	return len(m.matching(filter)), nil
}

// Breakdown aggregates retained events by one dimension, largest first.
func (m *MemoryLogger) Breakdown(_ context.Context, filter BreakdownFilter) ([]BreakdownEntry, error) {
	if _, err := ParseBreakdownDimension(string(filter.GroupBy)); err != nil {
		return nil, err
	}

	type acc struct {
		count, ok int
		duration  int64
	}
	groups := map[string]*acc{}
	for _, e := range m.matching(QueryFilter{StartTime: filter.StartTime, EndTime: filter.EndTime}) {
		key := e.Dimension(filter.GroupBy)
		a := groups[key]
		if a == nil {
			a = &acc{}
			groups[key] = a
		}
		a.count++
		a.duration += e.DurationMS
		if e.Success {
			a.ok++
		}
	}

	entries := make([]BreakdownEntry, 0, len(groups))
	for dim, a := range groups {
		entries = append(entries, BreakdownEntry{
			Dimension:     dim,
			Count:         a.count,
			SuccessRate:   float64(a.ok) / float64(a.count),
			AvgDurationMS: float64(a.duration) / float64(a.count),
		})
	}
	slices.SortFunc(entries, func(a, b BreakdownEntry) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Dimension, b.Dimension)
	})
	if limit := filter.ClampedLimit(); len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// Close releases resources.
func (*MemoryLogger) Close() error { return nil }

// Verify interface compliance.
var _ Logger = (*MemoryLogger)(nil)
