package audit

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEvent(t *testing.T) {
	e := NewEvent(ActionRegisterDataset).
		WithUser("grumpy").
		WithResource("s3://snow-white/af6727bf-29c7-43dd-b42f-a5d7ede28337").
		WithRequestID("req-1").
		WithParameters(map[string]any{"token": "abc", "name": "bad-apples"}).
		WithResult(errors.New("not authorized"), 12)

	assert.Len(t, e.ID, 36)
	assert.False(t, e.Timestamp.IsZero())
	assert.Equal(t, "grumpy", e.Username)
	assert.Equal(t, "req-1", e.RequestID)
	assert.Equal(t, "[REDACTED]", e.Parameters["token"])
	assert.Equal(t, "bad-apples", e.Parameters["name"])
	assert.False(t, e.Success)
	assert.Equal(t, "not authorized", e.ErrorMessage)
	assert.Equal(t, int64(12), e.DurationMS)

	ok := NewEvent(ActionSearch).WithResult(nil, 1)
	assert.True(t, ok.Success)
	assert.Empty(t, ok.ErrorMessage)
	assert.NotEqual(t, e.ID, ok.ID)
}

func TestSanitizeParameters(t *testing.T) {
	assert.Nil(t, SanitizeParameters(nil))
	got := SanitizeParameters(map[string]any{"password": "x", "secret": "y", "base_uri": "s3://a"})
	assert.Equal(t, map[string]any{"password": "[REDACTED]", "secret": "[REDACTED]", "base_uri": "s3://a"}, got)
}

func TestQueryFilterMatch(t *testing.T) {
	now := time.Now()
	before := now.Add(-time.Minute)
	after := now.Add(time.Minute)
	yes, no := true, false
	e := Event{ID: "a", Timestamp: now, Username: "grumpy", Action: ActionSearch, Resource: "s3://snow-white", Success: true}

	tests := []struct {
		name   string
		filter QueryFilter
		want   bool
	}{
		{"empty", QueryFilter{}, true},
		{"id", QueryFilter{ID: "b"}, false},
		{"user", QueryFilter{Username: "grumpy"}, true},
		{"other user", QueryFilter{Username: "sleepy"}, false},
		{"action", QueryFilter{Action: ActionLookup}, false},
		{"resource", QueryFilter{Resource: "s3://snow-white"}, true},
		{"other resource", QueryFilter{Resource: "s3://mr-men"}, false},
		{"window", QueryFilter{StartTime: &before, EndTime: &after}, true},
		{"too early", QueryFilter{StartTime: &after}, false},
		{"too late", QueryFilter{EndTime: &before}, false},
		{"success", QueryFilter{Success: &yes}, true},
		{"failure", QueryFilter{Success: &no}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Match(&e))
		})
	}
}

func TestMemoryLoggerRing(t *testing.T) {
	m := NewMemoryLogger(3)
	ctx := context.Background()
	base := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	for i := range 5 {
		require.NoError(t, m.Log(ctx, Event{ID: fmt.Sprint(i), Timestamp: base.Add(time.Duration(i) * time.Second)}))
	}

	events, err := m.Query(ctx, QueryFilter{})
	require.NoError(t, err)
	ids := make([]string, 0, len(events))
	for _, e := range events {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []string{"4", "3", "2"}, ids, "newest first, oldest evicted")

	page, err := m.Query(ctx, QueryFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "3", page[0].ID)

	past, err := m.Query(ctx, QueryFilter{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, past)

	n, err := m.Count(ctx, QueryFilter{})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.NoError(t, m.Close())
}

func TestMemoryLoggerDefaults(t *testing.T) {
	m := NewMemoryLogger(0)
	assert.Len(t, m.events, DefaultMemoryCapacity)
	events, err := m.Query(context.Background(), QueryFilter{})
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestMemoryLoggerBreakdown(t *testing.T) {
	m := NewMemoryLogger(10)
	ctx := context.Background()
	for _, e := range []Event{
		{Username: "grumpy", Action: ActionSearch, Success: true, DurationMS: 10},
		{Username: "grumpy", Action: ActionSearch, Success: false, DurationMS: 30},
		{Username: "sleepy", Action: ActionSearch, Success: true, DurationMS: 5},
		{Username: "sleepy", Action: ActionLookup, Resource: "af6727bf-29c7-43dd-b42f-a5d7ede28337", Success: true, DurationMS: 5},
	} {
		require.NoError(t, m.Log(ctx, e))
	}

	byUser, err := m.Breakdown(ctx, BreakdownFilter{GroupBy: BreakdownByUsername})
	require.NoError(t, err)
	require.Len(t, byUser, 2)
	assert.Equal(t, BreakdownEntry{Dimension: "grumpy", Count: 2, SuccessRate: 0.5, AvgDurationMS: 20}, byUser[0])

	byAction, err := m.Breakdown(ctx, BreakdownFilter{GroupBy: BreakdownByAction, Limit: 1})
	require.NoError(t, err)
	require.Len(t, byAction, 1)
	assert.Equal(t, "search", byAction[0].Dimension)
	assert.Equal(t, 3, byAction[0].Count)

	byResource, err := m.Breakdown(ctx, BreakdownFilter{GroupBy: BreakdownByResource})
	require.NoError(t, err)
	require.Len(t, byResource, 2)
	assert.Equal(t, BreakdownEntry{Dimension: "", Count: 3, SuccessRate: 2.0 / 3.0, AvgDurationMS: 15}, byResource[0])
	assert.Equal(t, "af6727bf-29c7-43dd-b42f-a5d7ede28337", byResource[1].Dimension)

	_, err = m.Breakdown(ctx, BreakdownFilter{GroupBy: "tag"})
	assert.Error(t, err)
}

func TestClampedLimit(t *testing.T) {
	assert.Equal(t, 10, BreakdownFilter{}.ClampedLimit())
	assert.Equal(t, 5, BreakdownFilter{Limit: 5}.ClampedLimit())
	assert.Equal(t, MaxBreakdownLimit, BreakdownFilter{Limit: 1000}.ClampedLimit())
}
