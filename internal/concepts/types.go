// Package concepts implements Thymos's concept promotion pipeline: pattern
// extraction, significance scoring, mention tracking, tier promotion, and
// alias resolution.
package concepts

import "time"

// Tier is a concept's promotion level. Tiers are monotone non-decreasing
// once a concept crosses a threshold it never demotes automatically.
type Tier int

const (
	TierMentioned Tier = iota
	TierProvisional
	TierTracked
)

func (t Tier) String() string {
	switch t {
	case TierMentioned:
		return "mentioned"
	case TierProvisional:
		return "provisional"
	case TierTracked:
		return "tracked"
	default:
		return "unknown"
	}
}

// Concept is one occurrence of a pattern match in source text.
type Concept struct {
	Text           string
	Type           string
	Context        string
	Significance   float64
	MeetsThreshold bool
}

// Mention records a single sighting of a concept inside a memory.
type Mention struct {
	MemoryID     string
	Timestamp    time.Time
	Context      string
	Significance float64
}

// PromotionStats is the running tally the pipeline keeps per concept.
type PromotionStats struct {
	Tier               Tier
	MentionCount       int
	AvgSignificance    float64
	PeakSignificance   float64
	FirstMention       time.Time
	LastMention        time.Time
	RecentMentionCount int
}

func newInitialStats(significance float64, now time.Time) *PromotionStats {
	return &PromotionStats{
		Tier:               TierMentioned,
		MentionCount:       1,
		AvgSignificance:    significance,
		PeakSignificance:   significance,
		FirstMention:       now,
		LastMention:        now,
		RecentMentionCount: 1,
	}
}

func (s *PromotionStats) recordMention(significance float64, now time.Time) {
	s.MentionCount++
	s.AvgSignificance = (s.AvgSignificance*float64(s.MentionCount-1) + significance) / float64(s.MentionCount)
	if significance > s.PeakSignificance {
		s.PeakSignificance = significance
	}
	s.LastMention = now
	s.RecentMentionCount++
}

// determineTier evaluates the promotion criteria against config. Tracked
// requires peak significance at the full threshold and enough mentions;
// Provisional relaxes the significance bar to 80% of threshold.
func (s *PromotionStats) determineTier(cfg PromotionConfig) Tier {
	if s.PeakSignificance >= cfg.PromotionThreshold && s.MentionCount >= cfg.MinMentionsTracked {
		return TierTracked
	}
	if s.PeakSignificance >= cfg.PromotionThreshold*0.8 && s.MentionCount >= cfg.MinMentionsProvisional {
		return TierProvisional
	}
	return TierMentioned
}
