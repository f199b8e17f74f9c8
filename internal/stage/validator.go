package stage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/forgewise/infrapilot/internal/collab"
	"github.com/forgewise/infrapilot/internal/state"
)

// ValidatorStage submits the full artifact set to the validation
// collaborator. On success the artifacts are replaced with the
// collaborator's canonicalized versions, which makes re-validation of an
// already valid set a no-op.
type ValidatorStage struct {
	validator collab.ArtifactValidator
	log       *zap.Logger
}

// NewValidator creates the validation stage.
func NewValidator(validator collab.ArtifactValidator, log *zap.Logger) *ValidatorStage {
	return &ValidatorStage{validator: validator, log: log}
}

func (v *ValidatorStage) Run(ctx context.Context, ps *state.PipelineState) (state.Patch, error) {
	res, err := v.validator.Validate(ctx, ps.Artifacts)
	if err != nil {
		return state.Patch{}, fmt.Errorf("validate artifacts: %w", err)
	}

	patch := state.Patch{
		ValidationReport: state.String(res.Report),
		ValidationPassed: state.Bool(res.Passed),
	}
	if res.Passed {
		v.log.Info("validation passed", zap.String("session", ps.SessionID))
		if res.Formatted != nil {
			patch.Artifacts = res.Formatted
		}
	} else {
		v.log.Warn("validation failed", zap.String("session", ps.SessionID))
	}
	return patch, nil
}
