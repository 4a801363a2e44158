package concepts

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractAliasesFindsEpithet(t *testing.T) {
	e := NewAliasExtractor()

	aliases, err := e.ExtractAliases("Elder Rowan, known as the old badger, lived in peace.", "Elder Rowan")
	require.NoError(t, err)
	require.NotEmpty(t, aliases)

	var foundBadger bool
	for _, a := range aliases {
		if strings.Contains(strings.ToLower(a.Text), "badger") {
			foundBadger = true
		}
	}
	assert.True(t, foundBadger, "expected an epithet mentioning badger")
}

func TestExtractAliasesSkipsCanonicalName(t *testing.T) {
	e := NewAliasExtractor()

	aliases, err := e.ExtractAliases(`She said, "I am Elder Rowan."`, "Elder Rowan")
	require.NoError(t, err)
	for _, a := range aliases {
		assert.NotEqual(t, "Elder Rowan", a.Text)
	}
}

func TestResolveAliasAcceptsStrongMatch(t *testing.T) {
	e := NewAliasExtractor()

	candidates := []string{"Elder Rowan", "Rowan", "The Badger"}
	canonical, confidence, ok := e.ResolveAlias("rowan", candidates)
	require.True(t, ok)
	assert.True(t, canonical == "Elder Rowan" || canonical == "Rowan")
	assert.Greater(t, confidence, 0.6)
}

func TestResolveAliasRejectsWeakMatch(t *testing.T) {
	e := NewAliasExtractor()

	_, _, ok := e.ResolveAlias("xyz123", []string{"Elder Rowan", "The Badger"})
	assert.False(t, ok)
}

func TestStringSimilarityExactMatch(t *testing.T) {
	assert.Equal(t, 1.0, stringSimilarity("test", "test"))
}

func TestStringSimilaritySubstring(t *testing.T) {
	assert.Greater(t, stringSimilarity("test", "tes"), 0.5)
}

func TestStringSimilarityDissimilar(t *testing.T) {
	assert.Less(t, stringSimilarity("abc", "xyz"), 0.5)
}

func TestCalculateAliasConfidenceBoostsSubstring(t *testing.T) {
	conf := calculateAliasConfidence("Rowan", "Elder Rowan", 0.85)
	assert.Greater(t, conf, 0.85)
}

func TestCalculateAliasConfidenceClamped(t *testing.T) {
	conf := calculateAliasConfidence("Badger", "Elder Rowan", 0.65)
	assert.GreaterOrEqual(t, conf, 0.0)
	assert.LessOrEqual(t, conf, 1.0)
}
