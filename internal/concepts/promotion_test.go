package concepts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackMentionStartsAtMentioned(t *testing.T) {
	p := NewConceptPromotionPipeline(DefaultPromotionConfig())

	tier, err := p.TrackMention("Elinor", "mem1", "Elinor walked in", 0.5)
	require.NoError(t, err)
	assert.Equal(t, TierMentioned, tier)
	assert.Equal(t, 1, p.GetMentionCount("Elinor"))
}

func TestTrackMentionPromotesToProvisional(t *testing.T) {
	p := NewConceptPromotionPipeline(DefaultPromotionConfig())

	var tier Tier
	for i := 0; i < 2; i++ {
		var err error
		tier, err = p.TrackMention("Elinor", "mem1", "context", 0.5)
		require.NoError(t, err)
	}

	assert.Equal(t, TierProvisional, tier)
}

func TestTrackMentionPromotesToTracked(t *testing.T) {
	p := NewConceptPromotionPipeline(DefaultPromotionConfig())

	var tier Tier
	for i := 0; i < 5; i++ {
		var err error
		tier, err = p.TrackMention("Elinor", "mem1", "context", 0.9)
		require.NoError(t, err)
	}

	assert.Equal(t, TierTracked, tier)
}

func TestTierNeverDemotes(t *testing.T) {
	p := NewConceptPromotionPipeline(DefaultPromotionConfig())

	for i := 0; i < 5; i++ {
		_, err := p.TrackMention("Elinor", "mem1", "context", 0.9)
		require.NoError(t, err)
	}
	tier, ok := p.GetTier("Elinor")
	require.True(t, ok)
	require.Equal(t, TierTracked, tier)

	tier, err := p.TrackMention("Elinor", "mem2", "context", 0.1)
	require.NoError(t, err)
	assert.Equal(t, TierTracked, tier, "a single low-significance mention must not demote a tracked concept")
}

func TestTrackMentionRejectsEmptyText(t *testing.T) {
	p := NewConceptPromotionPipeline(DefaultPromotionConfig())

	_, err := p.TrackMention("", "mem1", "context", 0.5)
	assert.Error(t, err)
}

func TestGetMentionHistoryPreservesOrder(t *testing.T) {
	p := NewConceptPromotionPipeline(DefaultPromotionConfig())

	_, err := p.TrackMention("Elinor", "mem1", "first", 0.5)
	require.NoError(t, err)
	_, err = p.TrackMention("Elinor", "mem2", "second", 0.6)
	require.NoError(t, err)

	history := p.GetMentionHistory("Elinor")
	require.Len(t, history, 2)
	assert.Equal(t, "first", history[0].Context)
	assert.Equal(t, "second", history[1].Context)
}

func TestGetAllConceptsSortedByText(t *testing.T) {
	p := NewConceptPromotionPipeline(DefaultPromotionConfig())

	_, err := p.TrackMention("Zara", "mem1", "x", 0.5)
	require.NoError(t, err)
	_, err = p.TrackMention("Aldric", "mem1", "x", 0.5)
	require.NoError(t, err)

	all := p.GetAllConcepts()
	require.Len(t, all, 2)
	assert.Equal(t, "Aldric", all[0].Text)
	assert.Equal(t, "Zara", all[1].Text)
}

func TestClearResetsState(t *testing.T) {
	p := NewConceptPromotionPipeline(DefaultPromotionConfig())

	_, err := p.TrackMention("Elinor", "mem1", "context", 0.5)
	require.NoError(t, err)
	p.Clear()

	assert.Equal(t, 0, p.GetMentionCount("Elinor"))
	_, ok := p.GetTier("Elinor")
	assert.False(t, ok)
}
