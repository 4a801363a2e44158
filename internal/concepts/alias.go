package concepts

import (
	"sort"
	"strings"
)

// AliasType classifies how an alias was phrased in source text.
type AliasType int

const (
	AliasTypeAlias AliasType = iota
	AliasTypeEpithet
	AliasTypeTitle
)

func (t AliasType) String() string {
	switch t {
	case AliasTypeAlias:
		return "alias"
	case AliasTypeEpithet:
		return "epithet"
	case AliasTypeTitle:
		return "title"
	default:
		return "unknown"
	}
}

// AliasProvenance records who introduced the alias into the text.
type AliasProvenance int

const (
	AliasProvenanceNarrator AliasProvenance = iota
	AliasProvenanceSelf
	AliasProvenanceOther
)

// Alias is one candidate alternate name extracted for a concept.
type Alias struct {
	Text       string
	Type       AliasType
	Provenance AliasProvenance
	Confidence float64
}

type aliasPattern struct {
	pattern         string
	confidenceBoost float64
	aliasType       AliasType
}

var aliasPatterns = []aliasPattern{
	{
		pattern:         `(?:known as|called|nicknamed|aka)\s+['"]?([^'",.]+)['"]?`,
		confidenceBoost: 0.85,
		aliasType:       AliasTypeAlias,
	},
	{
		pattern:         `(?:I am|I'm)\s+['"]?([^'",.]+)['"]?`,
		confidenceBoost: 0.95,
		aliasType:       AliasTypeAlias,
	},
	{
		pattern:         `(?:the\s+(?:\w+\s+)*\w+(?:,|\s+(?:was|were|is)))`,
		confidenceBoost: 0.65,
		aliasType:       AliasTypeEpithet,
	},
	{
		pattern:         `(?:Dr\.?|Professor|Captain|King|Queen|Lord|Lady|Sir|Dame|Mr\.?|Mrs\.?|Ms\.?)\s+([A-Z][a-z]+)`,
		confidenceBoost: 0.80,
		aliasType:       AliasTypeTitle,
	},
}

// AliasExtractor finds candidate alternate names for a concept in text and
// resolves loosely-written aliases back to a canonical name.
type AliasExtractor struct{}

// NewAliasExtractor returns a ready-to-use extractor; the pattern set is
// fixed and compiled lazily via the shared regex cache.
func NewAliasExtractor() *AliasExtractor {
	return &AliasExtractor{}
}

// ExtractAliases finds every alias candidate for canonicalName in text,
// scores each by confidence, and returns them sorted highest-confidence
// first with duplicate text collapsed.
func (e *AliasExtractor) ExtractAliases(text, canonicalName string) ([]Alias, error) {
	var aliases []Alias

	for _, ap := range aliasPatterns {
		re, err := compilePattern(ap.pattern)
		if err != nil {
			return nil, err
		}

		for _, match := range re.FindAllStringSubmatchIndex(text, -1) {
			aliasText := submatchText(text, match)
			aliasText = strings.TrimSpace(aliasText)
			if aliasText == "" || aliasText == canonicalName {
				continue
			}

			confidence := calculateAliasConfidence(aliasText, canonicalName, ap.confidenceBoost)
			aliases = append(aliases, Alias{
				Text:       aliasText,
				Type:       ap.aliasType,
				Provenance: AliasProvenanceNarrator,
				Confidence: confidence,
			})
		}
	}

	sort.SliceStable(aliases, func(i, j int) bool {
		return aliases[i].Confidence > aliases[j].Confidence
	})
	aliases = dedupAliasesByText(aliases)

	return aliases, nil
}

func dedupAliasesByText(aliases []Alias) []Alias {
	seen := make(map[string]struct{}, len(aliases))
	out := make([]Alias, 0, len(aliases))
	for _, a := range aliases {
		if _, ok := seen[a.Text]; ok {
			continue
		}
		seen[a.Text] = struct{}{}
		out = append(out, a)
	}
	return out
}

// calculateAliasConfidence boosts the pattern's base confidence when the
// alias text is a substring of the canonical name, and when the two are
// similar lengths, then clamps to [0,1].
func calculateAliasConfidence(aliasText, canonicalName string, base float64) float64 {
	confidence := base

	if strings.Contains(strings.ToLower(canonicalName), strings.ToLower(aliasText)) {
		confidence += 0.1
	}

	canonicalLen := len(canonicalName)
	if canonicalLen == 0 {
		canonicalLen = 1
	}
	lengthRatio := float64(len(aliasText)) / float64(canonicalLen)
	if lengthRatio >= 0.3 && lengthRatio <= 3.0 {
		confidence += 0.05
	}

	return clamp01(confidence)
}

// ResolveAlias finds the candidate most similar to aliasText, accepting
// only matches above 60% similarity.
func (e *AliasExtractor) ResolveAlias(aliasText string, candidates []string) (string, float64, bool) {
	var bestMatch string
	var bestSimilarity float64
	found := false

	for _, candidate := range candidates {
		similarity := stringSimilarity(aliasText, candidate)
		if similarity <= 0.6 {
			continue
		}
		if !found || similarity > bestSimilarity {
			bestMatch = candidate
			bestSimilarity = similarity
			found = true
		}
	}

	return bestMatch, bestSimilarity, found
}

// stringSimilarity scores two strings from 1.0 (exact match) down through
// 0.9 (one contains the other) to a character-overlap (Jaccard) ratio.
func stringSimilarity(a, b string) float64 {
	aLower := strings.ToLower(a)
	bLower := strings.ToLower(b)

	if aLower == bLower {
		return 1.0
	}

	if strings.Contains(aLower, bLower) || strings.Contains(bLower, aLower) {
		return 0.9
	}

	aChars := charSet(aLower)
	bChars := charSet(bLower)

	intersection := 0
	for c := range aChars {
		if _, ok := bChars[c]; ok {
			intersection++
		}
	}
	union := len(aChars)
	for c := range bChars {
		if _, ok := aChars[c]; !ok {
			union++
		}
	}
	if union == 0 {
		return 0.0
	}
	return float64(intersection) / float64(union)
}

func charSet(s string) map[rune]struct{} {
	set := make(map[rune]struct{}, len(s))
	for _, r := range s {
		set[r] = struct{}{}
	}
	return set
}
