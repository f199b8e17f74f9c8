package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "infrapilot.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
pipeline:
  workdir_root: /tmp/wd
  state_dir: /tmp/st
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Pipeline.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want default 3", cfg.Pipeline.MaxRetries)
	}
	if cfg.Pipeline.SecurityMode != SecurityModeStrict {
		t.Errorf("SecurityMode = %q, want default strict", cfg.Pipeline.SecurityMode)
	}
	if cfg.Pipeline.WorkdirRoot != "/tmp/wd" {
		t.Errorf("WorkdirRoot = %q, explicit value overridden", cfg.Pipeline.WorkdirRoot)
	}
	if cfg.Terraform.Binary != "terraform" {
		t.Errorf("Terraform.Binary = %q", cfg.Terraform.Binary)
	}
	if cfg.Terraform.MinSeverity != "HIGH" {
		t.Errorf("MinSeverity = %q", cfg.Terraform.MinSeverity)
	}
	if len(cfg.Terraform.Excludes) != 3 {
		t.Errorf("Excludes = %v, want 3 default exclusions", cfg.Terraform.Excludes)
	}
	if cfg.LLM.Timeout != "2m" {
		t.Errorf("LLM.Timeout = %q", cfg.LLM.Timeout)
	}
}

func TestLoadExplicitValues(t *testing.T) {
	path := writeConfig(t, `
pipeline:
  max_retries: 5
  security_mode: advisory
  workdir_root: /srv/wd
  state_dir: /srv/st
llm:
  model: gpt-4o
  timeout: 30s
terraform:
  min_severity: MEDIUM
  excludes: []
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Pipeline.MaxRetries != 5 {
		t.Errorf("MaxRetries = %d", cfg.Pipeline.MaxRetries)
	}
	if cfg.Pipeline.SecurityMode != SecurityModeAdvisory {
		t.Errorf("SecurityMode = %q", cfg.Pipeline.SecurityMode)
	}
	if cfg.LLM.Model != "gpt-4o" {
		t.Errorf("Model = %q", cfg.LLM.Model)
	}
	if cfg.Terraform.MinSeverity != "MEDIUM" {
		t.Errorf("MinSeverity = %q", cfg.Terraform.MinSeverity)
	}
	if len(cfg.Terraform.Excludes) != 0 {
		t.Errorf("Excludes = %v, want explicit empty list preserved", cfg.Terraform.Excludes)
	}
}

func TestLoadBadYAML(t *testing.T) {
	path := writeConfig(t, "pipeline: [not a map")
	if _, err := Load(path); err == nil {
		t.Fatal("Load succeeded on malformed YAML")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("Load succeeded on missing file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid defaults",
			mutate: func(cfg *Config) {},
		},
		{
			name:    "negative retries",
			mutate:  func(cfg *Config) { cfg.Pipeline.MaxRetries = -1 },
			wantErr: "pipeline.max_retries",
		},
		{
			name:    "bad security mode",
			mutate:  func(cfg *Config) { cfg.Pipeline.SecurityMode = "lenient" },
			wantErr: "pipeline.security_mode",
		},
		{
			name:    "bad llm timeout",
			mutate:  func(cfg *Config) { cfg.LLM.Timeout = "soon" },
			wantErr: "llm.timeout",
		},
		{
			name:    "missing terraform binary",
			mutate:  func(cfg *Config) { cfg.Terraform.Binary = "" },
			wantErr: "terraform.binary",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			applyDefaults(cfg)
			tt.mutate(cfg)

			errs := Validate(cfg)
			if tt.wantErr == "" {
				if len(errs) != 0 {
					t.Fatalf("Validate = %v, want none", errs)
				}
				return
			}
			found := false
			for _, e := range errs {
				if e.Field == tt.wantErr {
					found = true
				}
			}
			if !found {
				t.Fatalf("Validate = %v, want error on %q", errs, tt.wantErr)
			}
		})
	}
}

func TestDuration(t *testing.T) {
	if d := Duration("45s", time.Minute); d != 45*time.Second {
		t.Errorf("Duration(45s) = %v", d)
	}
	if d := Duration("", time.Minute); d != time.Minute {
		t.Errorf("Duration empty = %v, want fallback", d)
	}
	if d := Duration("bogus", time.Minute); d != time.Minute {
		t.Errorf("Duration bogus = %v, want fallback", d)
	}
}
