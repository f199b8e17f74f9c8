package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Load reads and parses a configuration from the given YAML file path,
// then fills in defaults for anything the file leaves unset.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault searches for a config in standard locations and loads the
// first one found. Search order: ./infrapilot.yaml, ~/.infrapilot/config.yaml.
// If none exists, a fully-defaulted config is returned.
func LoadDefault() (*Config, error) {
	candidates := []string{"infrapilot.yaml"}

	home, err := os.UserHomeDir()
	if err == nil {
		candidates = append(candidates, filepath.Join(home, ".infrapilot", "config.yaml"))
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}

	cfg := &Config{}
	applyDefaults(cfg)
	return cfg, nil
}

// applyDefaults fills zero-valued fields with working defaults. The scan
// severity floor and exclusion list mirror what the deployed tfsec policy
// has always been.
func applyDefaults(cfg *Config) {
	if cfg.Pipeline.MaxRetries == 0 {
		cfg.Pipeline.MaxRetries = 3
	}
	if cfg.Pipeline.SecurityMode == "" {
		cfg.Pipeline.SecurityMode = SecurityModeStrict
	}
	if cfg.Pipeline.WorkdirRoot == "" {
		cfg.Pipeline.WorkdirRoot = defaultHomePath("workdirs")
	}
	if cfg.Pipeline.StateDir == "" {
		cfg.Pipeline.StateDir = defaultHomePath("sessions")
	}

	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "gpt-4o-mini"
	}
	if cfg.LLM.APIKeyEnv == "" {
		cfg.LLM.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.LLM.Timeout == "" {
		cfg.LLM.Timeout = "2m"
	}

	if cfg.Terraform.Binary == "" {
		cfg.Terraform.Binary = "terraform"
	}
	if cfg.Terraform.TfsecBinary == "" {
		cfg.Terraform.TfsecBinary = "tfsec"
	}
	if cfg.Terraform.Timeout == "" {
		cfg.Terraform.Timeout = "5m"
	}
	if cfg.Terraform.PluginCacheDir == "" {
		cfg.Terraform.PluginCacheDir = defaultHomePath("plugin-cache")
	}
	if cfg.Terraform.MinSeverity == "" {
		cfg.Terraform.MinSeverity = "HIGH"
	}
	if cfg.Terraform.Excludes == nil {
		cfg.Terraform.Excludes = []string{
			"aws-s3-encryption-customer-key",
			"aws-s3-enable-bucket-logging",
			"aws-ec2-no-public-egress-sgr",
		}
	}

	if cfg.DB.Path == "" {
		cfg.DB.Path = defaultHomePath("infrapilot.db")
	}
}

// defaultHomePath returns ~/.infrapilot/<name>, falling back to a relative
// path when the home directory cannot be resolved.
func defaultHomePath(name string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".infrapilot", name)
	}
	return filepath.Join(home, ".infrapilot", name)
}
