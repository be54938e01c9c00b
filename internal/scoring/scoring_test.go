package scoring

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var now = time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)

func TestScorePost_MonotonicDecay(t *testing.T) {
	base := EngagementSnapshot{EntityType: Post, LikeCount: 7, CommentCount: 3, RepostCount: 2}

	prev := math.Inf(1)
	for _, age := range []time.Duration{0, time.Minute, time.Hour, 5 * time.Hour, 48 * time.Hour} {
		s := base
		s.PublishedAt = now.Add(-age)
		score := ScorePost(s, now)
		if age > 0 {
			assert.Less(t, score, prev, "older post must score strictly lower (age %s)", age)
		}
		prev = score
	}
}

func TestScorePost_AgeDelta(t *testing.T) {
	p1 := EngagementSnapshot{EntityID: "p1", LikeCount: 50, CommentCount: 10, PublishedAt: now.Add(-1 * time.Hour)}
	p2 := EngagementSnapshot{EntityID: "p2", LikeCount: 50, CommentCount: 10, PublishedAt: now.Add(-20 * time.Hour)}

	s1, s2 := ScorePost(p1, now), ScorePost(p2, now)
	assert.Greater(t, s1, s2)
	assert.InDelta(t, 1.9, s1-s2, 1e-9)
	assert.InDelta(t, 69.9, s1, 1e-9)
}

func TestScorePost_FutureTimestampClamped(t *testing.T) {
	s := EngagementSnapshot{LikeCount: 10, PublishedAt: now.Add(time.Hour)}
	assert.Equal(t, 10.0, ScorePost(s, now))
}

func TestScoreHashtag(t *testing.T) {
	s := EngagementSnapshot{RecentCount: 10, EngagementSum: 20}
	assert.InDelta(t, 14.0, ScoreHashtag(s, DefaultHashtagWeights()), 1e-9)
	assert.InDelta(t, 30.0, ScoreHashtag(s, HashtagWeights{Recent: 1, Engagement: 1}), 1e-9)
}

func TestScoreUser(t *testing.T) {
	s := EngagementSnapshot{RecentCount: 3, EngagementSum: 40, FollowerDelta: 2}
	assert.InDelta(t, 12.0, ScoreUser(s), 1e-9)
}

func TestEmptySnapshotsScoreZero(t *testing.T) {
	var empty EngagementSnapshot
	assert.Zero(t, ScoreHashtag(empty, DefaultHashtagWeights()))
	assert.Zero(t, ScorePost(empty, now))
	assert.Zero(t, ScoreUser(empty))
	assert.Zero(t, PostEngagement(empty))
}

func TestScoreVelocity(t *testing.T) {
	tests := []struct {
		name    string
		buckets []int
		want    float64
	}{
		{"reverse chronological buckets", []int{5, 3, 1}, -2},
		{"older hours busier", []int{1, 3, 5}, 2},
		{"flat", []int{4, 4, 4, 4}, 0},
		{"single bucket", []int{9}, 0},
		{"empty", nil, 0},
		{"uneven", []int{0, 10}, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, ScoreVelocity(tt.buckets), 1e-9)
		})
	}
}

func TestInterpretVelocity(t *testing.T) {
	assert.Equal(t, "rapidly rising", InterpretVelocity(10))
	assert.Equal(t, "rising", InterpretVelocity(0.5))
	assert.Equal(t, "stable", InterpretVelocity(0))
	assert.Equal(t, "declining", InterpretVelocity(-2))
	assert.Equal(t, "rapidly declining", InterpretVelocity(-10))
}

func TestRank_TieBreakByID(t *testing.T) {
	ranked := Rank([]TrendScore{
		{EntityID: "c", RawScore: 5},
		{EntityID: "b", RawScore: 9},
		{EntityID: "a", RawScore: 5},
	})

	assert.Equal(t, "b", ranked[0].EntityID)
	assert.Equal(t, "a", ranked[1].EntityID)
	assert.Equal(t, "c", ranked[2].EntityID)
	for i, s := range ranked {
		assert.Equal(t, i+1, s.Rank)
	}
}

func TestConversionRates_ZeroParticipants(t *testing.T) {
	rates := ConversionRates([]Variant{
		{Name: "A", Participants: 200, Conversions: 30},
		{Name: "B", Participants: 0, Conversions: 0},
	})

	assert.InDelta(t, 0.15, rates["A"], 1e-9)
	assert.Equal(t, 0.0, rates["B"])
	assert.False(t, math.IsNaN(rates["B"]))
}

func TestGrowthRate(t *testing.T) {
	assert.InDelta(t, 50.0, GrowthRate(10, 15), 1e-9)
	assert.InDelta(t, -100.0, GrowthRate(4, 0), 1e-9)
	assert.Equal(t, 0.0, GrowthRate(0, 25))
}
