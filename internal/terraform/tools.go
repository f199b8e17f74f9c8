package terraform

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/forgewise/infrapilot/internal/collab"
	"github.com/forgewise/infrapilot/internal/workdir"
)

// Report sentinel strings. The classifier and the stages key off these, so
// they are constants rather than inline literals.
const (
	ReportValidationSuccess = "Validation successful. Code is syntactically correct and well-formed."
	ReportSecuritySuccess   = "Security scan passed. No security issues detected by tfsec."
	ReportApplySuccess      = "Terraform apply successful."
	ReportDestroySuccess    = "Terraform destroy successful. All resources have been removed."
	CostUnavailablePrefix   = "Cost estimation unavailable"
)

// Config holds the external binary settings.
type Config struct {
	Binary         string
	TfsecBinary    string
	Timeout        time.Duration
	PluginCacheDir string
	MinSeverity    string
	Excludes       []string
}

// Tools runs terraform and tfsec against one session's working directory.
// It implements collab.ArtifactValidator, collab.PolicyScanner, and
// collab.Deployer.
type Tools struct {
	runner CommandRunner
	cfg    Config
	dir    *workdir.Dir
	log    *zap.Logger
}

// NewTools creates a Tools bound to a working directory handle.
func NewTools(runner CommandRunner, cfg Config, dir *workdir.Dir, log *zap.Logger) *Tools {
	return &Tools{runner: runner, cfg: cfg, dir: dir, log: log}
}

// Validate writes the artifacts into the working directory, then runs
// terraform init, validate, and fmt. On success the canonicalized file
// contents are read back so the pipeline state carries what terraform fmt
// produced. Re-validating an already-formatted set is a no-op.
func (t *Tools) Validate(ctx context.Context, artifacts map[string]string) (collab.ValidationResult, error) {
	if err := t.dir.WriteArtifacts(artifacts); err != nil {
		return collab.ValidationResult{}, fmt.Errorf("prepare workdir: %w", err)
	}

	steps := [][]string{
		{"init", "-no-color", "-input=false", "-upgrade=false"},
		{"validate", "-no-color"},
		{"fmt", "-recursive"},
	}
	for _, args := range steps {
		out, errOut, code, err := t.runTerraform(ctx, args...)
		if err != nil {
			return collab.ValidationResult{}, err
		}
		if code != 0 {
			return collab.ValidationResult{
				Report: commandFailureReport(t.cfg.Binary, args, out, errOut),
			}, nil
		}
	}

	names := make([]string, 0, len(artifacts))
	for name := range artifacts {
		names = append(names, name)
	}
	sort.Strings(names)
	formatted, err := t.dir.ReadArtifacts(names)
	if err != nil {
		return collab.ValidationResult{}, fmt.Errorf("read formatted files: %w", err)
	}

	return collab.ValidationResult{
		Passed:    true,
		Report:    ReportValidationSuccess,
		Formatted: formatted,
	}, nil
}

// Scan runs tfsec over the working directory prepared by Validate. tfsec
// exits zero when no problems at or above the severity floor are detected.
func (t *Tools) Scan(ctx context.Context, artifacts map[string]string) (collab.ScanResult, error) {
	args := []string{".", "--no-color", "--format", "default"}
	if t.cfg.MinSeverity != "" {
		args = append(args, "--minimum-severity", t.cfg.MinSeverity)
	}
	if len(t.cfg.Excludes) > 0 {
		args = append(args, "--exclude", strings.Join(t.cfg.Excludes, ","))
	}

	runCtx, cancel := t.withTimeout(ctx)
	defer cancel()
	out, errOut, code, err := t.runner.Run(runCtx, t.dir.Path(), nil, t.cfg.TfsecBinary, args...)
	if err != nil {
		return collab.ScanResult{}, err
	}
	if code == 0 {
		return collab.ScanResult{Passed: true, Report: ReportSecuritySuccess}, nil
	}

	var report strings.Builder
	report.WriteString("Security scan detected issues.\n")
	if out != "" {
		fmt.Fprintf(&report, "\ntfsec Report:\n%s", out)
	}
	if errOut != "" {
		fmt.Fprintf(&report, "\nErrors:\n%s", errOut)
	}
	return collab.ScanResult{Report: report.String()}, nil
}

// Apply deploys the validated configuration. It refuses to run before
// Validate has initialized the directory.
func (t *Tools) Apply(ctx context.Context, artifacts map[string]string) (collab.ApplyResult, error) {
	if !t.initialized() {
		return collab.ApplyResult{
			Report: "Error: Terraform not initialized. Validation must be run first.",
		}, nil
	}

	args := []string{"apply", "-auto-approve", "-no-color"}
	out, errOut, code, err := t.runTerraform(ctx, args...)
	if err != nil {
		return collab.ApplyResult{}, err
	}
	if code != 0 {
		return collab.ApplyResult{
			Report: commandFailureReport(t.cfg.Binary, args, out, errOut),
		}, nil
	}
	return collab.ApplyResult{
		Passed: true,
		Report: fmt.Sprintf("%s\n\nOutput:\n%s", ReportApplySuccess, out),
	}, nil
}

// Destroy tears down everything in the session's state file.
func (t *Tools) Destroy(ctx context.Context) (collab.ApplyResult, error) {
	if !t.initialized() {
		return collab.ApplyResult{
			Report: "Error: Terraform not initialized. No resources to destroy.",
		}, nil
	}
	if _, err := os.Stat(t.statePath()); err != nil {
		return collab.ApplyResult{
			Report: "Error: No Terraform state file found. No resources have been deployed.",
		}, nil
	}

	args := []string{"destroy", "-auto-approve", "-no-color"}
	out, errOut, code, err := t.runTerraform(ctx, args...)
	if err != nil {
		return collab.ApplyResult{}, err
	}
	if code != 0 {
		return collab.ApplyResult{
			Report: commandFailureReport(t.cfg.Binary, args, out, errOut),
		}, nil
	}
	return collab.ApplyResult{
		Passed: true,
		Report: fmt.Sprintf("%s\n\nOutput:\n%s", ReportDestroySuccess, out),
	}, nil
}

// Inventory reads the deployed resources out of the session's state file.
// A missing or empty state yields an empty inventory, not an error.
func (t *Tools) Inventory(ctx context.Context) ([]collab.Resource, error) {
	data, err := os.ReadFile(t.statePath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read state file: %w", err)
	}

	var stateFile struct {
		Resources []struct {
			Type      string `json:"type"`
			Name      string `json:"name"`
			Instances []struct {
				Attributes map[string]any `json:"attributes"`
			} `json:"instances"`
		} `json:"resources"`
	}
	if err := json.Unmarshal(data, &stateFile); err != nil {
		return nil, fmt.Errorf("parse state file: %w", err)
	}

	var inventory []collab.Resource
	for _, r := range stateFile.Resources {
		for _, inst := range r.Instances {
			inventory = append(inventory, collab.Resource{
				Type:       r.Type,
				Name:       r.Name,
				Attributes: inst.Attributes,
			})
		}
	}
	return inventory, nil
}

// runTerraform runs one terraform subcommand in the working directory with
// the configured timeout and plugin cache.
func (t *Tools) runTerraform(ctx context.Context, args ...string) (string, string, int, error) {
	runCtx, cancel := t.withTimeout(ctx)
	defer cancel()

	env := []string{
		"TF_PLUGIN_CACHE_DIR=" + t.cfg.PluginCacheDir,
		"TF_PLUGIN_CACHE_MAY_BREAK_DEPENDENCY_LOCK_FILE=true",
	}
	start := time.Now()
	out, errOut, code, err := t.runner.Run(runCtx, t.dir.Path(), env, t.cfg.Binary, args...)
	t.log.Debug("terraform command finished",
		zap.Strings("args", args),
		zap.Int("exit_code", code),
		zap.Duration("elapsed", time.Since(start)),
		zap.Error(err))
	return out, errOut, code, err
}

func (t *Tools) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if t.cfg.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, t.cfg.Timeout)
}

func (t *Tools) initialized() bool {
	_, err := os.Stat(filepath.Join(t.dir.Path(), ".terraform"))
	return err == nil
}

func (t *Tools) statePath() string {
	return filepath.Join(t.dir.Path(), "terraform.tfstate")
}

// commandFailureReport formats a failed command into the report text the
// classifier works from.
func commandFailureReport(binary string, args []string, stdout, stderr string) string {
	return fmt.Sprintf(
		"Terraform command failed.\nCommand: '%s %s'\nStderr: %s\nStdout: %s",
		binary, strings.Join(args, " "), stderr, stdout,
	)
}
