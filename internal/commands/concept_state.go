package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/thymos-run/thymos/internal/app"
	"github.com/thymos-run/thymos/internal/concepts"
)

// conceptStatePath returns where the promotion pipeline's tracked state is
// persisted between CLI invocations, alongside the configured database.
func conceptStatePath() (string, error) {
	dbPath, err := app.GetDBPath()
	if err != nil {
		return "", err
	}
	return filepath.Join(filepath.Dir(dbPath), "concepts.json"), nil
}

func loadConceptPipeline() (*concepts.ConceptPromotionPipeline, error) {
	cfg := concepts.DefaultPromotionConfig()
	cfg.PromotionThreshold = app.EffectivePromotionThreshold(cfg.PromotionThreshold)
	cfg.MinMentionsProvisional, cfg.MinMentionsTracked, cfg.RecencyWindowSecs = app.EffectivePromotionMentionThresholds(
		cfg.MinMentionsProvisional, cfg.MinMentionsTracked, cfg.RecencyWindowSecs,
	)

	path, err := conceptStatePath()
	if err != nil {
		return nil, err
	}

	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return concepts.NewConceptPromotionPipeline(cfg), nil
		}
		return nil, fmt.Errorf("read concept state: %w", err)
	}

	var state concepts.PipelineState
	if err := json.Unmarshal(b, &state); err != nil {
		return nil, fmt.Errorf("parse concept state: %w", err)
	}
	return concepts.NewConceptPromotionPipelineFromState(cfg, state), nil
}

func saveConceptPipeline(p *concepts.ConceptPromotionPipeline) error {
	path, err := conceptStatePath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create concept state directory: %w", err)
	}
	b, err := json.MarshalIndent(p.State(), "", "  ")
	if err != nil {
		return fmt.Errorf("encode concept state: %w", err)
	}
	return os.WriteFile(path, b, 0o644)
}
