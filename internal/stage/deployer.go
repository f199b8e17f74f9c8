package stage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/forgewise/infrapilot/internal/collab"
	"github.com/forgewise/infrapilot/internal/state"
)

// deploymentErrorsBanner separates deployment failure text folded into the
// validation report, so replanning sees one combined failure narrative.
const deploymentErrorsBanner = "--- DEPLOYMENT ERRORS ---"

// DeployerStage applies the artifact set through the deployer collaborator.
// A failed apply is re-labeled as a validation failure: the report is folded
// into the validation report and the validation gate is cleared, so recovery
// reuses the single validator-centric retry path.
type DeployerStage struct {
	deployer collab.Deployer
	log      *zap.Logger
}

// NewDeployer creates the deployment stage.
func NewDeployer(deployer collab.Deployer, log *zap.Logger) *DeployerStage {
	return &DeployerStage{deployer: deployer, log: log}
}

func (d *DeployerStage) Run(ctx context.Context, ps *state.PipelineState) (state.Patch, error) {
	// The router only reaches this stage with both gates passed; the guard
	// protects resumed or hand-edited states.
	if !ps.ValidationPassed {
		return state.Patch{
			DeploymentReport: state.String("Skipping deployment because validation failed."),
			DeploymentPassed: state.Bool(false),
		}, nil
	}
	if !ps.SecurityPassed {
		return state.Patch{
			DeploymentReport: state.String("Skipping deployment because security scan failed."),
			DeploymentPassed: state.Bool(false),
		}, nil
	}

	res, err := d.deployer.Apply(ctx, ps.Artifacts)
	if err != nil {
		return state.Patch{}, fmt.Errorf("apply artifacts: %w", err)
	}

	if res.Passed {
		d.log.Info("deployment complete", zap.String("session", ps.SessionID))
		return state.Patch{
			DeploymentReport: state.String(res.Report),
			DeploymentPassed: state.Bool(true),
		}, nil
	}

	d.log.Warn("deployment failed", zap.String("session", ps.SessionID))
	combined := fmt.Sprintf("%s\n\n%s\n%s", ps.ValidationReport, deploymentErrorsBanner, res.Report)
	return state.Patch{
		DeploymentReport: state.String(res.Report),
		DeploymentPassed: state.Bool(false),
		ValidationReport: state.String(combined),
		ValidationPassed: state.Bool(false),
	}, nil
}
