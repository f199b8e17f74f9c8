package stage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/forgewise/infrapilot/internal/collab"
	"github.com/forgewise/infrapilot/internal/llm"
	"github.com/forgewise/infrapilot/internal/state"
)

// PlannerStage turns the request (plus any prior failure report and human
// feedback) into a plan and a fresh artifact queue. It never fails: a
// malformed collaborator response degrades to a fixed two-file fallback so
// the pipeline always has forward progress.
type PlannerStage struct {
	gen        collab.TextGenerator
	rules      string
	maxRetries int
	log        *zap.Logger
}

// NewPlanner creates the planning stage. rules is the security requirements
// text embedded in every planning prompt.
func NewPlanner(gen collab.TextGenerator, rules string, maxRetries int, log *zap.Logger) *PlannerStage {
	return &PlannerStage{gen: gen, rules: rules, maxRetries: maxRetries, log: log}
}

type planResponse struct {
	Plan  string `json:"plan"`
	Files []struct {
		FileName string `json:"file_name"`
		Brief    string `json:"brief"`
	} `json:"files"`
}

func (p *PlannerStage) Run(ctx context.Context, ps *state.PipelineState) (state.Patch, error) {
	retry := ps.RetryCount
	errorContext := ""
	if ps.ValidationReport != "" && !ps.ValidationPassed {
		// Re-entry after a failed cycle consumes one retry.
		retry++
		errorContext = planErrorContext(ps.ValidationReport)
		p.log.Warn("replanning after failure",
			zap.String("session", ps.SessionID),
			zap.Int("retry", retry),
			zap.Int("max_retries", p.maxRetries))
	}

	prompt := planPrompt(ps.Request, errorContext, p.rules, ps.HumanFeedback)

	plan, specs := p.planOrFallback(ctx, ps, prompt)
	p.log.Info("plan created",
		zap.String("session", ps.SessionID),
		zap.Int("artifacts", len(specs)))

	return state.Patch{
		Plan:             state.String(plan),
		PendingArtifacts: state.Specs(specs),
		RetryCount:       state.Int(retry),

		// A planning cycle starts a fresh attempt: feedback is consumed,
		// the previous recovery decision is void, and gate results must be
		// recomputed rather than carried over.
		HumanFeedback:      state.String(""),
		ClearErrorAnalysis: true,
		NeedsFullRetry:     state.Bool(false),
		FixStrategy:        state.String(""),
		TargetedFixApplied: state.Bool(false),
		ValidationPassed:   state.Bool(false),
		SecurityPassed:     state.Bool(false),
		DeploymentPassed:   state.Bool(false),
		CostPassed:         state.Bool(false),
		SecurityWarning:    state.Bool(false),
	}, nil
}

// planOrFallback asks the generator for a plan and degrades to the fallback
// structure when the call fails or the response cannot be used.
func (p *PlannerStage) planOrFallback(ctx context.Context, ps *state.PipelineState, prompt string) (string, []state.ArtifactSpec) {
	resp, err := p.gen.Generate(ctx, prompt)
	if err != nil {
		p.log.Warn("plan generation failed, using fallback",
			zap.String("session", ps.SessionID), zap.Error(err))
		return fallbackPlan(ps.Request)
	}

	var parsed planResponse
	if err := llm.ExtractJSON(resp, &parsed); err != nil {
		p.log.Warn("plan response is not valid JSON, using fallback",
			zap.String("session", ps.SessionID), zap.Error(err))
		return fallbackPlan(ps.Request)
	}
	if parsed.Plan == "" || len(parsed.Files) == 0 {
		p.log.Warn("plan response missing plan or files, using fallback",
			zap.String("session", ps.SessionID))
		return fallbackPlan(ps.Request)
	}

	specs := make([]state.ArtifactSpec, 0, len(parsed.Files))
	for _, f := range parsed.Files {
		if f.FileName == "" {
			continue
		}
		specs = append(specs, state.ArtifactSpec{Name: f.FileName, Brief: f.Brief})
	}
	if len(specs) == 0 {
		return fallbackPlan(ps.Request)
	}
	return parsed.Plan, specs
}

// fallbackPlan is the minimal two-file structure used when the generator
// cannot produce a usable plan.
func fallbackPlan(request string) (string, []state.ArtifactSpec) {
	return "1. Configure AWS provider\n2. Create requested resources with security",
		[]state.ArtifactSpec{
			{
				Name:  "provider.tf",
				Brief: "Standard AWS provider configuration for the 'us-east-1' region.",
			},
			{
				Name:  primaryArtifact,
				Brief: fmt.Sprintf("Create all resources needed for: %s", request),
			},
		}
}
