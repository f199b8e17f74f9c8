package stage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/forgewise/infrapilot/internal/collab"
	"github.com/forgewise/infrapilot/internal/state"
)

// CostStage produces a best-effort monthly cost report from the deployer's
// realized resource inventory. It never blocks the pipeline: estimation
// problems degrade to an explicit unavailable report.
type CostStage struct {
	deployer collab.Deployer
	cost     collab.CostEstimator
	log      *zap.Logger
}

// NewCost creates the cost estimation stage.
func NewCost(deployer collab.Deployer, cost collab.CostEstimator, log *zap.Logger) *CostStage {
	return &CostStage{deployer: deployer, cost: cost, log: log}
}

func (c *CostStage) Run(ctx context.Context, ps *state.PipelineState) (state.Patch, error) {
	var report string
	inventory, err := c.deployer.Inventory(ctx)
	if err != nil {
		c.log.Warn("resource inventory unavailable",
			zap.String("session", ps.SessionID), zap.Error(err))
		report = fmt.Sprintf("Cost estimation unavailable: %v", err)
	} else {
		report = c.cost.Estimate(inventory)
	}

	return state.Patch{
		CostReport: state.String(report),
		CostPassed: state.Bool(true),
	}, nil
}
