package config

import (
	"fmt"
	"time"
)

// ValidationError represents a single validation issue with a config.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// recognizedSecurityModes is the set of valid scanner gate modes.
var recognizedSecurityModes = map[string]bool{
	SecurityModeStrict:   true,
	SecurityModeAdvisory: true,
}

// Validate checks a Config for structural and semantic errors.
// It returns a slice of all validation errors found (empty if valid).
func Validate(cfg *Config) []ValidationError {
	var errs []ValidationError

	if cfg.Pipeline.MaxRetries < 0 {
		errs = append(errs, ValidationError{
			Field:   "pipeline.max_retries",
			Message: "must be non-negative",
		})
	}
	if !recognizedSecurityModes[cfg.Pipeline.SecurityMode] {
		errs = append(errs, ValidationError{
			Field:   "pipeline.security_mode",
			Message: fmt.Sprintf("unrecognized mode %q (want %q or %q)", cfg.Pipeline.SecurityMode, SecurityModeStrict, SecurityModeAdvisory),
		})
	}
	if cfg.Pipeline.WorkdirRoot == "" {
		errs = append(errs, ValidationError{Field: "pipeline.workdir_root", Message: "is required"})
	}
	if cfg.Pipeline.StateDir == "" {
		errs = append(errs, ValidationError{Field: "pipeline.state_dir", Message: "is required"})
	}

	if cfg.LLM.Model == "" {
		errs = append(errs, ValidationError{Field: "llm.model", Message: "is required"})
	}
	validateDuration(cfg.LLM.Timeout, "llm.timeout", &errs)

	if cfg.Terraform.Binary == "" {
		errs = append(errs, ValidationError{Field: "terraform.binary", Message: "is required"})
	}
	if cfg.Terraform.TfsecBinary == "" {
		errs = append(errs, ValidationError{Field: "terraform.tfsec_binary", Message: "is required"})
	}
	validateDuration(cfg.Terraform.Timeout, "terraform.timeout", &errs)

	return errs
}

// validateDuration checks that a non-empty duration string parses.
func validateDuration(value, field string, errs *[]ValidationError) {
	if value == "" {
		return
	}
	if _, err := time.ParseDuration(value); err != nil {
		*errs = append(*errs, ValidationError{
			Field:   field,
			Message: fmt.Sprintf("invalid duration %q", value),
		})
	}
}

// Duration parses a duration string, returning fallback when the string is
// empty or malformed. Config validation reports malformed values; runtime
// callers just need a usable timeout.
func Duration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}
