package stage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/forgewise/infrapilot/internal/collab"
	"github.com/forgewise/infrapilot/internal/llm"
	"github.com/forgewise/infrapilot/internal/state"
)

// FixerStage applies a targeted repair: it rewrites the primary artifact
// with a strategy-specific prompt instead of regenerating everything. The
// result is never trusted; the router always sends it back through
// validation.
type FixerStage struct {
	gen collab.TextGenerator
	log *zap.Logger
}

// NewFixer creates the targeted fix stage.
func NewFixer(gen collab.TextGenerator, log *zap.Logger) *FixerStage {
	return &FixerStage{gen: gen, log: log}
}

func (f *FixerStage) Run(ctx context.Context, ps *state.PipelineState) (state.Patch, error) {
	analysis := ps.ErrorAnalysis
	if analysis == nil {
		return state.Patch{}, fmt.Errorf("targeted fixer invoked without an error analysis")
	}

	f.log.Info("applying targeted fix",
		zap.String("session", ps.SessionID),
		zap.String("strategy", analysis.Strategy),
		zap.String("description", analysis.Description))

	resp, err := f.gen.Generate(ctx, fixPrompt(ps, analysis))
	if err != nil {
		return state.Patch{}, fmt.Errorf("generate targeted fix: %w", err)
	}

	artifacts := state.CopyArtifacts(ps.Artifacts)
	artifacts[primaryArtifact] = llm.StripCodeFences(resp)

	return state.Patch{
		Artifacts:          artifacts,
		TargetedFixApplied: state.Bool(true),
		FixStrategy:        state.String(analysis.Strategy),
	}, nil
}
