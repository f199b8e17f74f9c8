package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/forgewise/infrapilot/internal/checkpoint"
	"github.com/forgewise/infrapilot/internal/collab"
	"github.com/forgewise/infrapilot/internal/config"
	"github.com/forgewise/infrapilot/internal/cost"
	"github.com/forgewise/infrapilot/internal/db"
	"github.com/forgewise/infrapilot/internal/llm"
	"github.com/forgewise/infrapilot/internal/orchestrator"
	"github.com/forgewise/infrapilot/internal/stage"
	"github.com/forgewise/infrapilot/internal/terraform"
	"github.com/forgewise/infrapilot/internal/workdir"
)

// app bundles the wired components a command needs.
type app struct {
	cfg   *config.Config
	orch  *orchestrator.Orchestrator
	store *checkpoint.Store
	db    *db.DB
	log   *zap.Logger
}

// newApp loads configuration and wires the full component graph. The
// returned cleanup closes the database and flushes the logger.
func newApp(cmd *cobra.Command) (*app, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if errs := config.Validate(cfg); len(errs) > 0 {
		return nil, nil, fmt.Errorf("invalid config: %v", errs[0])
	}

	verbose, _ := cmd.Flags().GetBool("verbose")
	log, err := newLogger(verbose)
	if err != nil {
		return nil, nil, fmt.Errorf("create logger: %w", err)
	}

	database, err := db.Open(cfg.DB.Path)
	if err != nil {
		log.Sync()
		return nil, nil, err
	}
	if err := database.Migrate(); err != nil {
		database.Close()
		log.Sync()
		return nil, nil, err
	}

	store, err := checkpoint.NewStore(cfg.Pipeline.StateDir)
	if err != nil {
		database.Close()
		log.Sync()
		return nil, nil, err
	}

	workdirs, err := workdir.NewManager(cfg.Pipeline.WorkdirRoot)
	if err != nil {
		database.Close()
		log.Sync()
		return nil, nil, err
	}

	gen, err := llm.New(llm.Config{
		BaseURL:   cfg.LLM.BaseURL,
		Model:     cfg.LLM.Model,
		APIKeyEnv: cfg.LLM.APIKeyEnv,
		Timeout:   config.Duration(cfg.LLM.Timeout, 2*time.Minute),
	}, log)
	if err != nil {
		database.Close()
		log.Sync()
		return nil, nil, err
	}

	factory := &collabFactory{
		workdirs: workdirs,
		cfg:      cfg,
		gen:      gen,
		log:      log,
	}

	rules := stage.LoadSecurityRules(cfg.LLM.SecurityRulesFile)
	orch := orchestrator.New(store, factory, database, cfg, rules, log)

	cleanup := func() {
		database.Close()
		_ = log.Sync()
	}
	return &app{cfg: cfg, orch: orch, store: store, db: database, log: log}, cleanup, nil
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.Load(configPath)
	}
	return config.LoadDefault()
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}

// collabFactory builds the per-session collaborator set: the shared
// generation client plus terraform tooling bound to the session's isolated
// working directory.
type collabFactory struct {
	workdirs *workdir.Manager
	cfg      *config.Config
	gen      collab.TextGenerator
	log      *zap.Logger
}

func (f *collabFactory) ForSession(sessionID string) (collab.Set, func(), error) {
	dir, err := f.workdirs.Acquire(sessionID)
	if err != nil {
		return collab.Set{}, nil, fmt.Errorf("acquire workdir: %w", err)
	}

	tools := terraform.NewTools(&terraform.ExecRunner{}, terraform.Config{
		Binary:         f.cfg.Terraform.Binary,
		TfsecBinary:    f.cfg.Terraform.TfsecBinary,
		Timeout:        config.Duration(f.cfg.Terraform.Timeout, 10*time.Minute),
		PluginCacheDir: f.cfg.Terraform.PluginCacheDir,
		MinSeverity:    f.cfg.Terraform.MinSeverity,
		Excludes:       f.cfg.Terraform.Excludes,
	}, dir, f.log)

	return collab.Set{
		Generator: f.gen,
		Validator: tools,
		Scanner:   tools,
		Deployer:  tools,
		Cost:      cost.NewEstimator(),
	}, dir.Release, nil
}
