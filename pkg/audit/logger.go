// Package audit records who searched, read and changed what.
package audit

import (
	"context"
	"fmt"
	"time"
)

// Logger stores and reads the audit trail.
type Logger interface {
	// Log appends one event.
	Log(ctx context.Context, event Event) error

	// Query returns matching events, newest first.
	Query(ctx context.Context, filter QueryFilter) ([]Event, error)

	// Count returns how many events match, ignoring Limit and Offset.
	Count(ctx context.Context, filter QueryFilter) (int, error)

	// Breakdown groups events by one dimension.
	Breakdown(ctx context.Context, filter BreakdownFilter) ([]BreakdownEntry, error)

	// Close stops background work.
	Close() error
}

// Event is one recorded action. Resource is the URI, base URI, uuid or
// username the action applied to.
type Event struct {
	ID           string         `json:"id"`
	Timestamp    time.Time      `json:"timestamp"`
	DurationMS   int64          `json:"duration_ms"`
	RequestID    string         `json:"request_id"`
	Username     string         `json:"username"`
	Action       Action         `json:"action"`
	Resource     string         `json:"resource,omitempty"`
	Parameters   map[string]any `json:"parameters,omitempty"`
	Success      bool           `json:"success"`
	ErrorMessage string         `json:"error_message,omitempty"`
}

// QueryFilter selects events. Zero fields match everything.
type QueryFilter struct {
	ID        string
	StartTime *time.Time
	EndTime   *time.Time
	Username  string
	Action    Action
	Resource  string
	Success   *bool
	Limit     int
	Offset    int
}

// Match reports whether e passes f.
func (f QueryFilter) Match(e *Event) bool {
	switch {
	case f.ID != "" && e.ID != f.ID:
		return false
	case f.StartTime != nil && e.Timestamp.Before(*f.StartTime):
		return false
	case f.EndTime != nil && e.Timestamp.After(*f.EndTime):
		return false
	case f.Username != "" && e.Username != f.Username:
		return false
	case f.Action != "" && e.Action != f.Action:
		return false
	case f.Resource != "" && e.Resource != f.Resource:
		return false
	case f.Success != nil && e.Success != *f.Success:
		return false
	}
	return true
}

// BreakdownDimension is an event field a breakdown can group by.
type BreakdownDimension string

const (
	BreakdownByAction   BreakdownDimension = "action"
	BreakdownByUsername BreakdownDimension = "username"

	// BreakdownByResource groups by the URI, base URI or uuid acted on.
	BreakdownByResource BreakdownDimension = "resource"
)

// ParseBreakdownDimension accepts only the BreakdownBy values.
func ParseBreakdownDimension(s string) (BreakdownDimension, error) {
	switch d := BreakdownDimension(s); d {
	case BreakdownByAction, BreakdownByUsername, BreakdownByResource:
		return d, nil
	default:
		return "", fmt.Errorf("invalid breakdown dimension: %q", s)
	}
}

// MaxBreakdownLimit is the most groups a breakdown returns.
const MaxBreakdownLimit = 100

// BreakdownFilter selects the dimension, window and group count.
type BreakdownFilter struct {
	GroupBy   BreakdownDimension
	Limit     int
	StartTime *time.Time
	EndTime   *time.Time
}

// ClampedLimit returns Limit within [1, MaxBreakdownLimit], defaulting to 10.
func (f BreakdownFilter) ClampedLimit() int {
	switch {
	case f.Limit <= 0:
		return 10
	case f.Limit > MaxBreakdownLimit:
		return MaxBreakdownLimit
	default:
		return f.Limit
	}
}

// BreakdownEntry summarizes the events sharing one dimension value.
type BreakdownEntry struct {
	Dimension     string  `json:"dimension"`
	Count         int     `json:"count"`
	SuccessRate   float64 `json:"success_rate"`
	AvgDurationMS float64 `json:"avg_duration_ms"`
}

// Config is the audit section of the platform config.
type Config struct {
	Enabled       bool `yaml:"enabled"`
	RetentionDays int  `yaml:"retention_days"`
}
