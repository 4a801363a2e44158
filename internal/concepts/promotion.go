package concepts

import (
	"sort"
	"sync"
	"time"

	"github.com/thymos-run/thymos/internal/thyerrors"
)

// PromotionConfig tunes the thresholds a concept must cross to advance
// tiers.
type PromotionConfig struct {
	PromotionThreshold     float64
	MinMentionsProvisional int
	MinMentionsTracked     int
	UseLLMValidation       bool
	RecencyWindowSecs      int64
}

// DefaultPromotionConfig matches the original pipeline's defaults.
func DefaultPromotionConfig() PromotionConfig {
	return PromotionConfig{
		PromotionThreshold:     0.6,
		MinMentionsProvisional: 2,
		MinMentionsTracked:     5,
		UseLLMValidation:       false,
		RecencyWindowSecs:      86400,
	}
}

// ConceptSummary is a snapshot of one tracked concept's identity and tier,
// returned by GetAllConcepts.
type ConceptSummary struct {
	Text string
	Tier Tier
}

// ConceptPromotionPipeline tracks concept mentions over time and promotes
// concepts between tiers as they accumulate significance and recurrence.
type ConceptPromotionPipeline struct {
	mu             sync.Mutex
	config         PromotionConfig
	concepts       map[string]*PromotionStats
	mentionHistory map[string][]Mention
}

// NewConceptPromotionPipeline constructs an empty pipeline.
func NewConceptPromotionPipeline(config PromotionConfig) *ConceptPromotionPipeline {
	return &ConceptPromotionPipeline{
		config:         config,
		concepts:       make(map[string]*PromotionStats),
		mentionHistory: make(map[string][]Mention),
	}
}

// TrackMention records one sighting of conceptText and returns its tier
// after the mention is applied.
func (p *ConceptPromotionPipeline) TrackMention(conceptText, memoryID, context string, significance float64) (Tier, error) {
	if conceptText == "" {
		return TierMentioned, thyerrors.Newf(thyerrors.KindInvalidArgument, "concept text must not be empty")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	mention := Mention{
		MemoryID:     memoryID,
		Timestamp:    now,
		Context:      context,
		Significance: significance,
	}
	p.mentionHistory[conceptText] = append(p.mentionHistory[conceptText], mention)

	stats, ok := p.concepts[conceptText]
	if !ok {
		stats = newInitialStats(significance, now)
		p.concepts[conceptText] = stats
	} else {
		stats.recordMention(significance, now)
	}

	p.pruneRecent(conceptText, stats, now)

	tier := stats.determineTier(p.config)
	if tier > stats.Tier {
		stats.Tier = tier
	}
	return stats.Tier, nil
}

// pruneRecent recomputes RecentMentionCount from the history within the
// configured recency window.
func (p *ConceptPromotionPipeline) pruneRecent(conceptText string, stats *PromotionStats, now time.Time) {
	window := time.Duration(p.config.RecencyWindowSecs) * time.Second
	if window <= 0 {
		return
	}
	cutoff := now.Add(-window)
	count := 0
	for _, m := range p.mentionHistory[conceptText] {
		if !m.Timestamp.Before(cutoff) {
			count++
		}
	}
	stats.RecentMentionCount = count
}

// GetStats returns a copy of the tracking state for conceptText.
func (p *ConceptPromotionPipeline) GetStats(conceptText string) (PromotionStats, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	stats, ok := p.concepts[conceptText]
	if !ok {
		return PromotionStats{}, false
	}
	return *stats, true
}

// GetTier returns the current tier for conceptText.
func (p *ConceptPromotionPipeline) GetTier(conceptText string) (Tier, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	stats, ok := p.concepts[conceptText]
	if !ok {
		return TierMentioned, false
	}
	return stats.Tier, true
}

// GetMentionCount returns the total number of mentions recorded for
// conceptText, or 0 if it has never been seen.
func (p *ConceptPromotionPipeline) GetMentionCount(conceptText string) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	stats, ok := p.concepts[conceptText]
	if !ok {
		return 0
	}
	return stats.MentionCount
}

// GetMentionHistory returns every mention recorded for conceptText, oldest
// first.
func (p *ConceptPromotionPipeline) GetMentionHistory(conceptText string) []Mention {
	p.mu.Lock()
	defer p.mu.Unlock()

	history := p.mentionHistory[conceptText]
	out := make([]Mention, len(history))
	copy(out, history)
	return out
}

// GetAllConcepts returns every tracked concept and its tier, sorted by
// text for stable output.
func (p *ConceptPromotionPipeline) GetAllConcepts() []ConceptSummary {
	p.mu.Lock()
	defer p.mu.Unlock()

	summaries := make([]ConceptSummary, 0, len(p.concepts))
	for text, stats := range p.concepts {
		summaries = append(summaries, ConceptSummary{Text: text, Tier: stats.Tier})
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Text < summaries[j].Text
	})
	return summaries
}

// Clear resets all tracked concepts and mention history.
func (p *ConceptPromotionPipeline) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.concepts = make(map[string]*PromotionStats)
	p.mentionHistory = make(map[string][]Mention)
}

// PipelineState is the pipeline's full tracked state, serializable so a
// CLI invocation (which holds no state across process boundaries) can
// persist it between calls.
type PipelineState struct {
	Concepts       map[string]PromotionStats `json:"concepts"`
	MentionHistory map[string][]Mention      `json:"mention_history"`
}

// State returns a snapshot of the pipeline's tracked concepts and mention
// history.
func (p *ConceptPromotionPipeline) State() PipelineState {
	p.mu.Lock()
	defer p.mu.Unlock()

	concepts := make(map[string]PromotionStats, len(p.concepts))
	for text, stats := range p.concepts {
		concepts[text] = *stats
	}
	history := make(map[string][]Mention, len(p.mentionHistory))
	for text, mentions := range p.mentionHistory {
		history[text] = append([]Mention(nil), mentions...)
	}
	return PipelineState{Concepts: concepts, MentionHistory: history}
}

// NewConceptPromotionPipelineFromState rebuilds a pipeline from a
// previously exported State, continuing mention tracking where it left
// off.
func NewConceptPromotionPipelineFromState(config PromotionConfig, state PipelineState) *ConceptPromotionPipeline {
	p := NewConceptPromotionPipeline(config)
	for text, stats := range state.Concepts {
		s := stats
		p.concepts[text] = &s
	}
	for text, mentions := range state.MentionHistory {
		p.mentionHistory[text] = append([]Mention(nil), mentions...)
	}
	return p
}
