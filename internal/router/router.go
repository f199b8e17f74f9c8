// Package router holds the pipeline transition table. Routing is a pure
// function of the merged state: no side effects, no collaborator calls.
package router

import (
	"github.com/forgewise/infrapilot/internal/classify"
	"github.com/forgewise/infrapilot/internal/stage"
	"github.com/forgewise/infrapilot/internal/state"
)

// Router decides the next stage after each transition. MaxRetries bounds how
// many times a failed cycle may re-enter the planner; pending human feedback
// grants one additional attempt past the bound.
type Router struct {
	MaxRetries int
}

// New creates a router with the given retry bound.
func New(maxRetries int) *Router {
	return &Router{MaxRetries: maxRetries}
}

// Next maps the current stage and state to the next stage. The table is
// total: every input yields a stage or the terminal sentinel.
func (r *Router) Next(current stage.ID, ps *state.PipelineState) stage.ID {
	switch current {
	case stage.Planner:
		if len(ps.PendingArtifacts) == 0 {
			return stage.Validator
		}
		return stage.Generator

	case stage.Generator:
		if len(ps.PendingArtifacts) > 0 {
			return stage.Generator
		}
		return stage.Validator

	case stage.Validator:
		if ps.ValidationPassed {
			return stage.SecurityScanner
		}
		return stage.ErrorAnalyzer

	case stage.SecurityScanner:
		if ps.SecurityPassed {
			return stage.Deployer
		}
		return stage.ErrorAnalyzer

	case stage.Deployer:
		if ps.DeploymentPassed {
			return stage.CostEstimator
		}
		return stage.ErrorAnalyzer

	case stage.CostEstimator:
		return stage.Terminal

	case stage.ErrorAnalyzer:
		// A skip verdict reopened the security gate; resume where the
		// pipeline left off.
		if ps.FixStrategy == classify.StrategySkip {
			return stage.Deployer
		}
		if ps.NeedsFullRetry {
			return r.retryOrEnd(ps)
		}
		return stage.TargetedFixer

	case stage.TargetedFixer:
		// Never trust a fix; it goes back through every gate.
		return stage.Validator
	}

	return stage.Terminal
}

// retryOrEnd decides whether a failed cycle may re-enter the planner.
func (r *Router) retryOrEnd(ps *state.PipelineState) stage.ID {
	if ps.HumanFeedback != "" || ps.RetryCount < r.MaxRetries {
		return stage.Planner
	}
	return stage.Terminal
}
