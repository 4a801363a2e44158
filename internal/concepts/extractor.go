package concepts

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/thymos-run/thymos/internal/thyerrors"
)

// ConceptTypeConfig describes one named family of concepts (e.g.
// "character", "location") and the patterns that detect it.
type ConceptTypeConfig struct {
	Label             string
	Patterns          []string
	BaseSignificance  float64
	Enabled           bool
}

// ExtractionConfig configures a PatternExtractor.
type ExtractionConfig struct {
	ConceptTypes          map[string]ConceptTypeConfig
	SignificanceThreshold float64
	ContextChars          int
}

// DefaultExtractionConfig mirrors the original's narrative-memory defaults:
// characters only, at a 0.5 significance floor.
func DefaultExtractionConfig() ExtractionConfig {
	return ExtractionConfig{
		ConceptTypes: map[string]ConceptTypeConfig{
			"character": {
				Label:            "Character",
				Patterns:         []string{`\b([A-Z][a-z]+(?: [A-Z][a-z]+)?)\b`},
				BaseSignificance: 0.5,
				Enabled:          true,
			},
		},
		SignificanceThreshold: 0.5,
		ContextChars:          50,
	}
}

var (
	regexCacheMu sync.Mutex
	regexCache   = map[string]*regexp.Regexp{}
)

func compilePattern(pattern string) (*regexp.Regexp, error) {
	regexCacheMu.Lock()
	defer regexCacheMu.Unlock()

	if re, ok := regexCache[pattern]; ok {
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, thyerrors.Newf(thyerrors.KindConfiguration, "invalid regex pattern %q: %v", pattern, err)
	}
	regexCache[pattern] = re
	return re, nil
}

// PatternExtractor extracts Concepts from text using regex patterns and a
// significance scoring rule: base significance plus a bonus for early
// position and for longer matched text, clamped to [0,1].
type PatternExtractor struct {
	config ExtractionConfig
}

// NewPatternExtractor validates every enabled pattern compiles before
// returning the extractor.
func NewPatternExtractor(config ExtractionConfig) (*PatternExtractor, error) {
	for _, typeConfig := range config.ConceptTypes {
		if !typeConfig.Enabled {
			continue
		}
		for _, pattern := range typeConfig.Patterns {
			if _, err := compilePattern(pattern); err != nil {
				return nil, err
			}
		}
	}
	return &PatternExtractor{config: config}, nil
}

// Extract returns every concept match above the significance threshold,
// sorted by significance descending, deduplicated per (type, text).
func (p *PatternExtractor) Extract(text string) ([]Concept, error) {
	var concepts []Concept
	seen := make(map[string]struct{})

	for typeID, typeConfig := range p.config.ConceptTypes {
		if !typeConfig.Enabled {
			continue
		}
		for _, pattern := range typeConfig.Patterns {
			re, err := compilePattern(pattern)
			if err != nil {
				return nil, err
			}

			for _, match := range re.FindAllStringSubmatchIndex(text, -1) {
				matchedText := submatchText(text, match)
				if matchedText == "" {
					continue
				}

				key := typeID + "," + matchedText
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}

				start := match[0]
				significance := scoreConcept(typeConfig.BaseSignificance, matchedText, start, len(text))
				if significance < p.config.SignificanceThreshold {
					continue
				}

				concepts = append(concepts, Concept{
					Text:           matchedText,
					Type:           typeID,
					Context:        extractContext(text, start, match[1], p.config.ContextChars),
					Significance:   significance,
					MeetsThreshold: true,
				})
			}
		}
	}

	sort.SliceStable(concepts, func(i, j int) bool {
		return concepts[i].Significance > concepts[j].Significance
	})

	return concepts, nil
}

// submatchText prefers the first capture group, falling back to the whole
// match, mirroring the original's capture-then-fallback rule.
func submatchText(text string, match []int) string {
	if len(match) >= 4 && match[2] >= 0 && match[3] >= 0 {
		return text[match[2]:match[3]]
	}
	if len(match) >= 2 && match[0] >= 0 && match[1] >= 0 {
		return text[match[0]:match[1]]
	}
	return ""
}

func extractContext(text string, start, end, contextChars int) string {
	contextStart := start - contextChars
	if contextStart < 0 {
		contextStart = 0
	}
	contextEnd := end + contextChars
	if contextEnd > len(text) {
		contextEnd = len(text)
	}
	return strings.TrimSpace(text[contextStart:contextEnd])
}

// scoreConcept boosts base significance for early, prominent mentions and
// for longer (more specific) matched text, then clamps to [0,1].
func scoreConcept(base float64, text string, position, totalLength int) float64 {
	score := base

	if totalLength > 0 {
		positionRatio := float64(position) / float64(totalLength)
		switch {
		case positionRatio < 0.25:
			score += 0.15
		case positionRatio < 0.5:
			score += 0.05
		}
	}

	if len(text) > 10 {
		score += 0.1
	}

	return clamp01(score)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// validatePattern reports whether pattern compiles, naming the pattern in
// the returned error. It is unexported and nothing in this package calls it.
func validatePattern(pattern string) error {
	_, err := compilePattern(pattern)
	if err != nil {
		return fmt.Errorf("pattern %q: %w", pattern, err)
	}
	return nil
}
