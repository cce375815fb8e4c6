package ui

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRelativeTime(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		ago  time.Duration
		want string
	}{
		{10 * time.Second, "just now"},
		{5 * time.Minute, "5m ago"},
		{3 * time.Hour, "3h ago"},
		{2 * 24 * time.Hour, "2d ago"},
		{15 * 24 * time.Hour, "2w ago"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RelativeTime(now.Add(-tt.ago), now))
	}
	assert.Empty(t, RelativeTime(time.Time{}, now))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "Fix lo…", Truncate("Fix login bug", 7))
	assert.Equal(t, "…", Truncate("abc", 1))
	assert.Equal(t, "abc", Truncate("abc", 0))
}

func TestLayoutColumns(t *testing.T) {
	l := NewLayout(100, 40)
	left, right := l.ColumnWidths()
	assert.Equal(t, 60, left)
	assert.Equal(t, 40, right)
	assert.Equal(t, 35, l.ContentHeight())
	assert.Zero(t, NewLayout(10, 2).ContentHeight())
}
