package concepts

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubExtractor struct {
	concepts []Concept
}

func (s stubExtractor) Extract(string) ([]Concept, error) {
	return s.concepts, nil
}

type stubLLMProvider struct {
	response json.RawMessage
	err      error
}

func (s stubLLMProvider) GenerateJSON(context.Context, LLMRequest) (json.RawMessage, error) {
	return s.response, s.err
}

func TestLLMConceptExtractorWithoutLLMFallsBackToBase(t *testing.T) {
	base := stubExtractor{concepts: []Concept{
		{Text: "Elinor", Significance: 0.7, MeetsThreshold: true},
	}}
	e := WithoutLLM(base)

	concepts, err := e.Extract(context.Background(), "irrelevant")
	require.NoError(t, err)
	require.Len(t, concepts, 1)
	assert.Equal(t, "Elinor", concepts[0].Text)
}

func TestLLMConceptExtractorValidationDropsInvalid(t *testing.T) {
	base := stubExtractor{concepts: []Concept{
		{Text: "Elinor", Significance: 0.7},
		{Text: "NotAConcept", Significance: 0.6},
	}}
	response := `[{"text":"Elinor","valid":true,"significance":0.9},{"text":"NotAConcept","valid":false,"significance":0.0}]`
	e := NewLLMConceptExtractor(base, stubLLMProvider{response: json.RawMessage(response)}, DefaultLLMExtractionConfig())

	concepts, err := e.Extract(context.Background(), "text")
	require.NoError(t, err)
	require.Len(t, concepts, 1)
	assert.Equal(t, "Elinor", concepts[0].Text)
	assert.Equal(t, 0.9, concepts[0].Significance)
}

func TestLLMConceptExtractorKeepsUnvalidatedWithLowerSignificance(t *testing.T) {
	base := stubExtractor{concepts: []Concept{
		{Text: "Elinor", Significance: 0.8},
	}}
	e := NewLLMConceptExtractor(base, stubLLMProvider{response: json.RawMessage(`[]`)}, DefaultLLMExtractionConfig())

	concepts, err := e.Extract(context.Background(), "text")
	require.NoError(t, err)
	require.Len(t, concepts, 1)
	assert.InDelta(t, 0.56, concepts[0].Significance, 0.001)
}

func TestDeduplicateAndSortKeepsHigherSignificance(t *testing.T) {
	concepts := []Concept{
		{Text: "elinor", Significance: 0.3},
		{Text: "Elinor", Significance: 0.9},
		{Text: "Aldric", Significance: 0.5},
	}
	out := deduplicateAndSort(concepts)
	require.Len(t, out, 2)
	assert.Equal(t, 0.9, out[0].Significance)
}
