package concepts

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/thymos-run/thymos/internal/thyerrors"
)

// LLMMessageRole distinguishes system, user, and assistant turns in a
// chat-style completion request.
type LLMMessageRole int

const (
	LLMRoleSystem LLMMessageRole = iota
	LLMRoleUser
	LLMRoleAssistant
)

// LLMMessage is one turn in an LLMRequest.
type LLMMessage struct {
	Role    LLMMessageRole
	Content string
}

// LLMRequest is a provider-agnostic chat completion request.
type LLMRequest struct {
	Messages    []LLMMessage
	Temperature float32
	MaxTokens   int
}

// LLMProvider is implemented by whatever backs language-model calls; no
// concrete provider ships in this package, callers wire in their own (a
// hosted API client, a local model server, or a test double).
type LLMProvider interface {
	GenerateJSON(ctx context.Context, req LLMRequest) (json.RawMessage, error)
}

// LLMExtractionConfig tunes how an LLMConceptExtractor uses its provider.
type LLMExtractionConfig struct {
	UseLLMValidation bool
	UseLLMExtraction bool
	Temperature      float32
}

// DefaultLLMExtractionConfig enables validation only, the recommended
// balance of cost against precision.
func DefaultLLMExtractionConfig() LLMExtractionConfig {
	return LLMExtractionConfig{
		UseLLMValidation: true,
		UseLLMExtraction: false,
		Temperature:      0.3,
	}
}

// Extractor is implemented by PatternExtractor and any other base (non-LLM)
// concept extractor that LLMConceptExtractor can wrap.
type Extractor interface {
	Extract(text string) ([]Concept, error)
}

// LLMConceptExtractor layers optional LLM validation and extraction on top
// of a base (regex) extractor. With no provider it behaves exactly like
// the base extractor. Its Extract takes a context because, unlike the
// base extractor, it may make a network call.
type LLMConceptExtractor struct {
	base   Extractor
	llm    LLMProvider
	config LLMExtractionConfig
}

// NewLLMConceptExtractor wires a provider in; pass a nil provider to get
// base-extractor-only behavior.
func NewLLMConceptExtractor(base Extractor, llm LLMProvider, config LLMExtractionConfig) *LLMConceptExtractor {
	return &LLMConceptExtractor{base: base, llm: llm, config: config}
}

// WithoutLLM builds an extractor that always falls back to base.
func WithoutLLM(base Extractor) *LLMConceptExtractor {
	return &LLMConceptExtractor{base: base, config: DefaultLLMExtractionConfig()}
}

type validationResult struct {
	Text         string  `json:"text"`
	Valid        bool    `json:"valid"`
	Significance float64 `json:"significance"`
	Reason       string  `json:"reason"`
}

// Extract runs the base extractor, then (if a provider is configured and
// enabled) validates and optionally supplements its output via the LLM,
// and always returns concepts deduplicated case-insensitively and sorted
// by significance descending.
func (e *LLMConceptExtractor) Extract(ctx context.Context, text string) ([]Concept, error) {
	concepts, err := e.base.Extract(text)
	if err != nil {
		return nil, err
	}

	if e.llm != nil {
		if e.config.UseLLMValidation {
			concepts, err = e.validateWithLLM(ctx, concepts, text)
			if err != nil {
				return nil, err
			}
		}
		if e.config.UseLLMExtraction {
			extra, err := e.extractWithLLM(ctx, text)
			if err != nil {
				return nil, err
			}
			concepts = append(concepts, extra...)
		}
	}

	return deduplicateAndSort(concepts), nil
}

func (e *LLMConceptExtractor) validateWithLLM(ctx context.Context, concepts []Concept, text string) ([]Concept, error) {
	if len(concepts) == 0 {
		return concepts, nil
	}

	encoded, err := json.Marshal(concepts)
	if err != nil {
		return nil, thyerrors.Newf(thyerrors.KindInternal, "serialize concepts for validation: %v", err)
	}

	prompt := fmt.Sprintf(
		"You are validating extracted concepts from text. Review each concept and determine if it's a valid entity/concept.\n\nText: %s\nExtracted concepts: %s\n\nFor each concept, return a JSON array with objects containing \"text\", \"valid\", \"significance\", and \"reason\".\nReturn ONLY valid JSON, no markdown formatting.",
		text, string(encoded),
	)

	response, err := e.llm.GenerateJSON(ctx, LLMRequest{
		Messages: []LLMMessage{
			{Role: LLMRoleSystem, Content: "You are a concept validation assistant. Return only valid JSON arrays."},
			{Role: LLMRoleUser, Content: prompt},
		},
		Temperature: e.config.Temperature,
		MaxTokens:   2000,
	})
	if err != nil {
		return nil, thyerrors.Newf(thyerrors.KindTransient, "LLM validation request failed: %v", err).WithWrapped(err)
	}

	var validations []validationResult
	if err := json.Unmarshal(response, &validations); err != nil {
		return nil, thyerrors.Newf(thyerrors.KindInternal, "parse LLM validation response: %v", err)
	}

	byText := make(map[string]validationResult, len(validations))
	for _, v := range validations {
		byText[v.Text] = v
	}

	validated := make([]Concept, 0, len(concepts))
	for _, c := range concepts {
		v, ok := byText[c.Text]
		if !ok {
			c.Significance = clamp01(c.Significance * 0.7)
			c.MeetsThreshold = c.Significance >= 0.5
			validated = append(validated, c)
			continue
		}
		if !v.Valid {
			continue
		}
		c.Significance = clamp01(v.Significance)
		c.MeetsThreshold = c.Significance >= 0.5
		validated = append(validated, c)
	}

	return validated, nil
}

type llmConceptPayload struct {
	Text         string  `json:"text"`
	ConceptType  string  `json:"concept_type"`
	Significance float64 `json:"significance"`
	Context      string  `json:"context"`
}

func (e *LLMConceptExtractor) extractWithLLM(ctx context.Context, text string) ([]Concept, error) {
	prompt := fmt.Sprintf(
		"Extract all important concepts/entities from the following text: characters, locations, organizations, items.\n\nText: %s\n\nReturn a JSON array of concepts, each with \"text\", \"concept_type\", \"significance\", and \"context\".\nReturn ONLY valid JSON, no markdown formatting.",
		text,
	)

	response, err := e.llm.GenerateJSON(ctx, LLMRequest{
		Messages: []LLMMessage{
			{Role: LLMRoleSystem, Content: "You are a concept extraction assistant. Extract entities and concepts from text. Return only valid JSON arrays."},
			{Role: LLMRoleUser, Content: prompt},
		},
		Temperature: e.config.Temperature,
		MaxTokens:   2000,
	})
	if err != nil {
		return nil, thyerrors.Newf(thyerrors.KindTransient, "LLM extraction request failed: %v", err).WithWrapped(err)
	}

	var payloads []llmConceptPayload
	if err := json.Unmarshal(response, &payloads); err != nil {
		return nil, thyerrors.Newf(thyerrors.KindInternal, "parse LLM extraction response: %v", err)
	}

	concepts := make([]Concept, 0, len(payloads))
	for _, p := range payloads {
		significance := clamp01(p.Significance)
		concepts = append(concepts, Concept{
			Text:           p.Text,
			Type:           p.ConceptType,
			Context:        p.Context,
			Significance:   significance,
			MeetsThreshold: significance >= 0.5,
		})
	}
	return concepts, nil
}

// deduplicateAndSort collapses concepts that share case-insensitive text,
// keeping the higher-significance copy, then sorts by significance
// descending.
func deduplicateAndSort(concepts []Concept) []Concept {
	seen := make(map[string]int, len(concepts))
	unique := make([]Concept, 0, len(concepts))

	for _, c := range concepts {
		key := strings.ToLower(c.Text)
		if idx, ok := seen[key]; ok {
			if c.Significance > unique[idx].Significance {
				unique[idx] = c
			}
			continue
		}
		seen[key] = len(unique)
		unique = append(unique, c)
	}

	sort.SliceStable(unique, func(i, j int) bool {
		return unique[i].Significance > unique[j].Significance
	})

	return unique
}
