// Package collab defines the external collaborator seams the pipeline
// stages talk through. Every collaborator is injected at construction so
// tests can substitute canned implementations.
package collab

import "context"

// TextGenerator produces free-text completions for a prompt.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ValidationResult is the outcome of validating an artifact set.
type ValidationResult struct {
	Passed bool
	Report string
	// Formatted holds the canonicalized artifact contents when validation
	// passed; nil otherwise.
	Formatted map[string]string
}

// ArtifactValidator validates and canonicalizes a full artifact set.
// Semantic failures are reported via Passed/Report; the error return is
// reserved for infrastructure problems (context cancellation, unwritable
// working directory).
type ArtifactValidator interface {
	Validate(ctx context.Context, artifacts map[string]string) (ValidationResult, error)
}

// ScanResult is the outcome of a policy scan.
type ScanResult struct {
	Passed bool
	Report string
}

// PolicyScanner scans an artifact set for policy violations.
type PolicyScanner interface {
	Scan(ctx context.Context, artifacts map[string]string) (ScanResult, error)
}

// ApplyResult is the outcome of a deployment or teardown.
type ApplyResult struct {
	Passed bool
	Report string
}

// Resource is one deployed resource from the deployer's inventory.
type Resource struct {
	Type       string
	Name       string
	Attributes map[string]any
}

// Deployer applies an artifact set, tears it down, and exposes the
// currently realized resource inventory for cost estimation.
type Deployer interface {
	Apply(ctx context.Context, artifacts map[string]string) (ApplyResult, error)
	Destroy(ctx context.Context) (ApplyResult, error)
	Inventory(ctx context.Context) ([]Resource, error)
}

// CostEstimator turns a resource inventory into a cost report. It never
// fails: an empty inventory yields an explicit "unavailable" report.
type CostEstimator interface {
	Estimate(inventory []Resource) string
}

// Set bundles the collaborators a single session runs against.
type Set struct {
	Generator TextGenerator
	Validator ArtifactValidator
	Scanner   PolicyScanner
	Deployer  Deployer
	Cost      CostEstimator
}
