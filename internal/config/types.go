package config

// Config is the top-level configuration structure parsed from YAML.
type Config struct {
	Pipeline  Pipeline  `yaml:"pipeline"`
	LLM       LLM       `yaml:"llm"`
	Terraform Terraform `yaml:"terraform"`
	DB        DB        `yaml:"db"`
}

// Security policy modes for the scanner gate.
const (
	SecurityModeStrict   = "strict"
	SecurityModeAdvisory = "advisory"
)

// Pipeline holds the orchestration policy: retry bound, security gating
// mode, and where session working directories and checkpoints live.
type Pipeline struct {
	MaxRetries   int    `yaml:"max_retries"`
	SecurityMode string `yaml:"security_mode"`
	WorkdirRoot  string `yaml:"workdir_root"`
	StateDir     string `yaml:"state_dir"`
}

// LLM configures the text-generation collaborator.
type LLM struct {
	BaseURL           string `yaml:"base_url"`
	Model             string `yaml:"model"`
	APIKeyEnv         string `yaml:"api_key_env"`
	Timeout           string `yaml:"timeout"`
	SecurityRulesFile string `yaml:"security_rules_file"`
}

// Terraform configures the validate/scan/deploy collaborators.
type Terraform struct {
	Binary         string   `yaml:"binary"`
	TfsecBinary    string   `yaml:"tfsec_binary"`
	Timeout        string   `yaml:"timeout"`
	PluginCacheDir string   `yaml:"plugin_cache_dir"`
	MinSeverity    string   `yaml:"min_severity"`
	Excludes       []string `yaml:"excludes"`
}

// DB configures the SQLite event log.
type DB struct {
	Path string `yaml:"path"`
}
