// Package stage implements the pipeline stages. Each stage is a pure
// transformation from the current session state to a partial state patch,
// with side effects limited to calls on the injected collaborators.
package stage

import (
	"context"

	"github.com/forgewise/infrapilot/internal/state"
)

// ID names a stage in the routing table.
type ID string

const (
	Planner         ID = "planner"
	Generator       ID = "generator"
	Validator       ID = "validator"
	SecurityScanner ID = "security_scanner"
	Deployer        ID = "deployer"
	CostEstimator   ID = "cost_estimator"
	ErrorAnalyzer   ID = "error_analyzer"
	TargetedFixer   ID = "targeted_fixer"

	// Terminal is the routing sentinel for session end. No stage runs for it.
	Terminal ID = "terminal"
)

// Stage runs one pipeline step against the session state and returns a
// partial patch. Stages never mutate the state directly; the orchestrator
// merges the patch and consults the router.
type Stage interface {
	Run(ctx context.Context, ps *state.PipelineState) (state.Patch, error)
}

// primaryArtifact is where targeted fixes land: resource declarations live
// in the main configuration file, provider wiring in the rest.
const primaryArtifact = "main.tf"

// failingReport returns the most relevant non-passing report and its
// classification source, in validation, security, deployment priority order.
func failingReport(ps *state.PipelineState) (string, string) {
	switch {
	case !ps.ValidationPassed:
		return ps.ValidationReport, "validation"
	case !ps.SecurityPassed:
		return ps.SecurityReport, "security"
	case !ps.DeploymentPassed:
		return ps.DeploymentReport, "deployment"
	}
	return "", ""
}
