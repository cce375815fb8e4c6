package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTierFor(t *testing.T) {
	tests := []struct {
		rate float64
		want Tier
	}{
		{100, TierExcellent},
		{90, TierExcellent},
		{89.9, TierGood},
		{75, TierGood},
		{66.7, TierAverage},
		{60, TierAverage},
		{59.9, TierNeedsImprovement},
		{0, TierNeedsImprovement},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TierFor(tt.rate), "rate %v", tt.rate)
	}
}

func TestCompletionRate(t *testing.T) {
	assert.InDelta(t, 66.67, TeamMemberSummary{Assigned: 12, Completed: 8}.CompletionRate(), 0.01)
	assert.Zero(t, TeamMemberSummary{}.CompletionRate())
	assert.Equal(t, TierNeedsImprovement, TeamMemberSummary{}.Tier())
}

func TestActivityFilterMatches(t *testing.T) {
	now := time.Now()
	a := Activity{
		Action:     ActionComment,
		EntityType: EntityTask,
		EntityName: "Fix login bug",
		ActorName:  "Alice",
		CreatedAt:  now,
	}
	before, after := now.Add(-time.Hour), now.Add(time.Hour)

	assert.True(t, ActivityFilter{}.Matches(a))
	assert.True(t, ActivityFilter{Search: "bug"}.Matches(a))
	assert.True(t, ActivityFilter{Search: "ALICE"}.Matches(a))
	assert.False(t, ActivityFilter{Search: "deploy"}.Matches(a))
	assert.True(t, ActivityFilter{Actions: []ActionKind{ActionComment}}.Matches(a))
	assert.False(t, ActivityFilter{Actions: []ActionKind{ActionCreate}}.Matches(a))
	assert.False(t, ActivityFilter{EntityTypes: []string{EntityProject}}.Matches(a))
	assert.True(t, ActivityFilter{Since: &before, Until: &after}.Matches(a))
	assert.False(t, ActivityFilter{Since: &after}.Matches(a))
}
