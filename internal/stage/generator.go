package stage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/forgewise/infrapilot/internal/collab"
	"github.com/forgewise/infrapilot/internal/llm"
	"github.com/forgewise/infrapilot/internal/state"
)

// GeneratorStage produces one artifact per invocation: it pops the head of
// the pending queue, prompts for its content with the full running context,
// and stores the cleaned result under the artifact's name.
type GeneratorStage struct {
	gen collab.TextGenerator
	log *zap.Logger
}

// NewGenerator creates the code generation stage.
func NewGenerator(gen collab.TextGenerator, log *zap.Logger) *GeneratorStage {
	return &GeneratorStage{gen: gen, log: log}
}

func (g *GeneratorStage) Run(ctx context.Context, ps *state.PipelineState) (state.Patch, error) {
	if len(ps.PendingArtifacts) == 0 {
		return state.Patch{}, fmt.Errorf("generator invoked with empty artifact queue")
	}

	spec := ps.PendingArtifacts[0]
	remaining := ps.PendingArtifacts[1:]

	g.log.Info("generating artifact",
		zap.String("session", ps.SessionID),
		zap.String("name", spec.Name),
		zap.Int("done", len(ps.Artifacts)),
		zap.Int("remaining", len(remaining)))

	prompt := generatePrompt(spec.Name, spec.Brief, generateContext(ps, spec.Name, remaining))
	resp, err := g.gen.Generate(ctx, prompt)
	if err != nil {
		return state.Patch{}, fmt.Errorf("generate %s: %w", spec.Name, err)
	}

	code := llm.StripCodeFences(resp)
	artifacts := state.CopyArtifacts(ps.Artifacts)
	artifacts[spec.Name] = code

	return state.Patch{
		Artifacts:        artifacts,
		PendingArtifacts: state.Specs(remaining),
	}, nil
}
