package commands

import (
	"github.com/spf13/cobra"

	"github.com/thymos-run/thymos/internal/concepts"
	"github.com/thymos-run/thymos/internal/output"
	"github.com/thymos-run/thymos/internal/thyerrors"
)

// NewConceptCmd creates the concept command with subcommands.
func NewConceptCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "concept",
		Short: "Extract, track, and promote concepts mentioned in memory content",
	}

	cmd.AddCommand(newConceptExtractCmd())
	cmd.AddCommand(newConceptTrackCmd())
	cmd.AddCommand(newConceptListCmd())
	cmd.AddCommand(newConceptShowCmd())
	cmd.AddCommand(newConceptAliasCmd())

	return cmd
}

func newConceptExtractCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract candidate concepts from text without tracking them",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, _ := cmd.Flags().GetString("text")

			extractor, err := concepts.NewPatternExtractor(concepts.DefaultExtractionConfig())
			if err != nil {
				return cmdErr(err)
			}
			found, err := extractor.Extract(text)
			if err != nil {
				return cmdErr(err)
			}

			type resp struct {
				Concepts []concepts.Concept `json:"concepts"`
			}
			return output.PrintSuccess(resp{Concepts: found})
		},
	}

	cmd.Flags().StringP("text", "t", "", "Text to extract concepts from (required)")
	_ = cmd.MarkFlagRequired("text")

	return cmd
}

func newConceptTrackCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "track",
		Short: "Extract concepts from text and record a mention for each against a memory",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, _ := cmd.Flags().GetString("text")
			memoryID, _ := cmd.Flags().GetString("memory-id")

			extractor, err := concepts.NewPatternExtractor(concepts.DefaultExtractionConfig())
			if err != nil {
				return cmdErr(err)
			}
			found, err := extractor.Extract(text)
			if err != nil {
				return cmdErr(err)
			}

			pipeline, err := loadConceptPipeline()
			if err != nil {
				return cmdErr(err)
			}

			type trackedConcept struct {
				Text string          `json:"text"`
				Tier concepts.Tier `json:"tier"`
			}
			var tracked []trackedConcept
			for _, c := range found {
				if !c.MeetsThreshold {
					continue
				}
				tier, err := pipeline.TrackMention(c.Text, memoryID, c.Context, c.Significance)
				if err != nil {
					return cmdErr(err)
				}
				tracked = append(tracked, trackedConcept{Text: c.Text, Tier: tier})
			}

			if err := saveConceptPipeline(pipeline); err != nil {
				return cmdErr(err)
			}

			type resp struct {
				MemoryID string           `json:"memory_id"`
				Tracked  []trackedConcept `json:"tracked"`
			}
			return output.PrintSuccess(resp{MemoryID: memoryID, Tracked: tracked})
		},
	}

	cmd.Flags().StringP("text", "t", "", "Text to extract and track concepts from (required)")
	cmd.Flags().String("memory-id", "", "Memory id the mentions are attributed to (required)")
	_ = cmd.MarkFlagRequired("text")
	_ = cmd.MarkFlagRequired("memory-id")

	return cmd
}

func newConceptListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every tracked concept and its tier",
		RunE: func(cmd *cobra.Command, args []string) error {
			pipeline, err := loadConceptPipeline()
			if err != nil {
				return cmdErr(err)
			}

			type resp struct {
				Concepts []concepts.ConceptSummary `json:"concepts"`
			}
			return output.PrintSuccess(resp{Concepts: pipeline.GetAllConcepts()})
		},
	}
}

func newConceptShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show a concept's promotion stats and mention history",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, _ := cmd.Flags().GetString("text")

			pipeline, err := loadConceptPipeline()
			if err != nil {
				return cmdErr(err)
			}

			stats, ok := pipeline.GetStats(text)
			if !ok {
				return cmdErr(thyerrors.NotFound("concept", text))
			}
			history := pipeline.GetMentionHistory(text)

			type resp struct {
				Text     string                    `json:"text"`
				Stats    concepts.PromotionStats `json:"stats"`
				Mentions []concepts.Mention       `json:"mentions"`
			}
			return output.PrintSuccess(resp{Text: text, Stats: stats, Mentions: history})
		},
	}

	cmd.Flags().StringP("text", "t", "", "Concept text (required)")
	_ = cmd.MarkFlagRequired("text")

	return cmd
}

func newConceptAliasCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alias",
		Short: "Extract candidate alternate names for a concept from text",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, _ := cmd.Flags().GetString("text")
			name, _ := cmd.Flags().GetString("name")

			extractor := concepts.NewAliasExtractor()
			aliases, err := extractor.ExtractAliases(text, name)
			if err != nil {
				return cmdErr(err)
			}

			type resp struct {
				Canonical string            `json:"canonical"`
				Aliases   []concepts.Alias `json:"aliases"`
			}
			return output.PrintSuccess(resp{Canonical: name, Aliases: aliases})
		},
	}

	cmd.Flags().StringP("text", "t", "", "Text to scan for aliases (required)")
	cmd.Flags().StringP("name", "n", "", "Canonical concept name (required)")
	_ = cmd.MarkFlagRequired("text")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}
