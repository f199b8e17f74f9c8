package stage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/forgewise/infrapilot/internal/collab"
	"github.com/forgewise/infrapilot/internal/config"
	"github.com/forgewise/infrapilot/internal/state"
)

// ScannerStage runs the policy scan over the artifact set. In strict mode
// the gate mirrors the scan result; in advisory mode findings never block,
// they only set the warning flag so the final report stays honest.
type ScannerStage struct {
	scanner collab.PolicyScanner
	mode    string
	log     *zap.Logger
}

// NewScanner creates the security scanning stage. mode is one of the
// config.SecurityMode values.
func NewScanner(scanner collab.PolicyScanner, mode string, log *zap.Logger) *ScannerStage {
	return &ScannerStage{scanner: scanner, mode: mode, log: log}
}

func (s *ScannerStage) Run(ctx context.Context, ps *state.PipelineState) (state.Patch, error) {
	res, err := s.scanner.Scan(ctx, ps.Artifacts)
	if err != nil {
		return state.Patch{}, fmt.Errorf("security scan: %w", err)
	}

	if res.Passed {
		s.log.Info("security scan passed", zap.String("session", ps.SessionID))
		return state.Patch{
			SecurityReport:  state.String(res.Report),
			SecurityPassed:  state.Bool(true),
			SecurityWarning: state.Bool(false),
		}, nil
	}

	if s.mode == config.SecurityModeAdvisory {
		s.log.Warn("security scan found issues, proceeding (advisory mode)",
			zap.String("session", ps.SessionID))
		return state.Patch{
			SecurityReport:  state.String(res.Report),
			SecurityPassed:  state.Bool(true),
			SecurityWarning: state.Bool(true),
		}, nil
	}

	s.log.Warn("security scan failed", zap.String("session", ps.SessionID))
	return state.Patch{
		SecurityReport: state.String(res.Report),
		SecurityPassed: state.Bool(false),
	}, nil
}
