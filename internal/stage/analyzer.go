package stage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/forgewise/infrapilot/internal/classify"
	"github.com/forgewise/infrapilot/internal/state"
)

// securityIssuesBanner separates security findings folded into the
// validation report when a full retry is forced.
const securityIssuesBanner = "--- SECURITY ISSUES ---"

// AnalyzerStage classifies the most relevant failing report and decides
// between a cheap targeted fix and a full regeneration cycle. A skip verdict
// on a low-severity security finding downgrades the gate to a warning.
type AnalyzerStage struct {
	log *zap.Logger
}

// NewAnalyzer creates the error analysis stage.
func NewAnalyzer(log *zap.Logger) *AnalyzerStage {
	return &AnalyzerStage{log: log}
}

func (a *AnalyzerStage) Run(ctx context.Context, ps *state.PipelineState) (state.Patch, error) {
	report, source := failingReport(ps)
	if report == "" {
		return state.Patch{}, fmt.Errorf("error analyzer invoked with no failing report")
	}

	analysis := classify.Classify(report, classify.Source(source))
	a.log.Info("error classified",
		zap.String("session", ps.SessionID),
		zap.String("source", source),
		zap.String("category", analysis.Category),
		zap.String("strategy", analysis.Strategy))

	patch := state.Patch{
		ErrorAnalysis: analysis,
		FixStrategy:   state.String(analysis.Strategy),
	}

	switch {
	case analysis.Strategy == classify.StrategySkip:
		// Low-severity findings do not block deployment; they surface as a
		// warning on the final report.
		patch.NeedsFullRetry = state.Bool(false)
		patch.SecurityPassed = state.Bool(true)
		patch.SecurityWarning = state.Bool(true)

	case classify.Fixable(analysis.Strategy):
		patch.NeedsFullRetry = state.Bool(false)

	default:
		patch.NeedsFullRetry = state.Bool(true)
		if source == string(classify.SourceSecurity) {
			// Replanning consumes retries off the validation gate; fold the
			// security findings there so the planner sees them and the
			// retry accounting engages.
			combined := fmt.Sprintf("%s\n\n%s\n%s", ps.ValidationReport, securityIssuesBanner, report)
			patch.ValidationReport = state.String(combined)
			patch.ValidationPassed = state.Bool(false)
		}
	}
	return patch, nil
}
