// Package orchestrator drives a session through the pipeline: it runs the
// current stage, merges the resulting patch, consults the router, and
// checkpoints the state after every transition.
package orchestrator

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/forgewise/infrapilot/internal/checkpoint"
	"github.com/forgewise/infrapilot/internal/collab"
	"github.com/forgewise/infrapilot/internal/config"
	"github.com/forgewise/infrapilot/internal/router"
	"github.com/forgewise/infrapilot/internal/stage"
	"github.com/forgewise/infrapilot/internal/state"
)

// CollabFactory produces the collaborator set for one session. The release
// function surrenders any per-session resources (working directory lock)
// and must be called when the session's run ends.
type CollabFactory interface {
	ForSession(sessionID string) (collab.Set, func(), error)
}

// EventSink receives one event per stage transition. *db.DB satisfies it.
type EventSink interface {
	LogEvent(sessionID, stage, event, detail string) error
}

// Event is one entry in the live per-stage feed.
type Event struct {
	SessionID string
	Stage     stage.ID
	Status    string
	Detail    string
}

// maxSteps is a hard circuit breaker on transitions per run. The retry
// bound governs semantic failures; this guards against a routing bug
// looping forever.
const maxSteps = 256

// Orchestrator owns session lifecycle: start, resume with feedback,
// teardown, and status inspection.
type Orchestrator struct {
	store    *checkpoint.Store
	collabs  CollabFactory
	sink     EventSink
	cfg      *config.Config
	rules    string
	router   *router.Router
	log      *zap.Logger
	observer func(Event)
}

// New creates an orchestrator. rules is the security requirements text
// embedded in planning prompts.
func New(store *checkpoint.Store, collabs CollabFactory, sink EventSink, cfg *config.Config, rules string, log *zap.Logger) *Orchestrator {
	return &Orchestrator{
		store:   store,
		collabs: collabs,
		sink:    sink,
		cfg:     cfg,
		rules:   rules,
		router:  router.New(cfg.Pipeline.MaxRetries),
		log:     log,
	}
}

// SetObserver registers a callback for the live stage feed (e.g. CLI
// progress output). Pass nil to silence it.
func (o *Orchestrator) SetObserver(fn func(Event)) {
	o.observer = fn
}

// Start runs a fresh session for the request and returns the final state.
func (o *Orchestrator) Start(ctx context.Context, request string) (*state.PipelineState, error) {
	if request == "" {
		return nil, fmt.Errorf("empty request")
	}
	ps := state.New(uuid.NewString(), request)
	if err := o.store.Save(ps); err != nil {
		return nil, fmt.Errorf("checkpoint new session: %w", err)
	}
	_ = o.sink.LogEvent(ps.SessionID, string(stage.Planner), "session_started", request)
	return o.run(ctx, ps)
}

// Resume re-enters an existing session at the planner. A non-empty feedback
// string is attached to the state first, which grants one extra planning
// attempt even when the retry budget is exhausted. Without feedback an
// exhausted failed session is refused, so the retry bound holds across any
// number of resume calls.
func (o *Orchestrator) Resume(ctx context.Context, sessionID, feedback string) (*state.PipelineState, error) {
	ps, err := o.store.Load(sessionID)
	if err != nil {
		return nil, err
	}
	if ps.Status == state.StatusCompleted && feedback == "" {
		return ps, nil
	}
	if feedback == "" && ps.Status == state.StatusFailed && ps.RetryCount >= o.cfg.Pipeline.MaxRetries {
		return ps, fmt.Errorf("session %s exhausted %d retries; supply feedback to grant another attempt", sessionID, ps.RetryCount)
	}
	if feedback != "" {
		state.Merge(ps, state.Patch{HumanFeedback: state.String(feedback)})
	}
	_ = o.sink.LogEvent(ps.SessionID, string(stage.Planner), "session_resumed", feedback)
	return o.run(ctx, ps)
}

// run executes the stage loop from the planner until the router answers
// with the terminal sentinel.
func (o *Orchestrator) run(ctx context.Context, ps *state.PipelineState) (*state.PipelineState, error) {
	set, release, err := o.collabs.ForSession(ps.SessionID)
	if err != nil {
		return nil, fmt.Errorf("collaborators for session %s: %w", ps.SessionID, err)
	}
	defer release()

	stages := o.buildStages(set)
	current := stage.Planner
	ps.Status = state.StatusInProgress
	ps.CurrentStage = string(current)
	if err := o.store.Save(ps); err != nil {
		return nil, fmt.Errorf("checkpoint: %w", err)
	}

	for steps := 0; ; steps++ {
		if steps >= maxSteps {
			return o.finish(ps, fmt.Errorf("session %s exceeded %d transitions", ps.SessionID, maxSteps))
		}

		st, ok := stages[current]
		if !ok {
			return o.finish(ps, fmt.Errorf("no stage registered for %q", current))
		}

		o.emit(Event{SessionID: ps.SessionID, Stage: current, Status: "running"})
		patch, err := st.Run(ctx, ps)
		if err != nil {
			_ = o.sink.LogEvent(ps.SessionID, string(current), "stage_error", err.Error())
			return o.finish(ps, fmt.Errorf("stage %s: %w", current, err))
		}
		state.Merge(ps, patch)

		next := o.router.Next(current, ps)
		ps.CurrentStage = string(next)
		if err := o.store.Save(ps); err != nil {
			return o.finish(ps, fmt.Errorf("checkpoint after %s: %w", current, err))
		}

		detail := stageDetail(current, ps)
		_ = o.sink.LogEvent(ps.SessionID, string(current), "completed", detail)
		o.emit(Event{SessionID: ps.SessionID, Stage: current, Status: "completed", Detail: detail})

		if next == stage.Terminal {
			break
		}
		current = next
	}

	return o.finish(ps, nil)
}

// finish settles the terminal status, checkpoints, and logs the outcome.
// The last failure report stays on the state verbatim for inspection.
func (o *Orchestrator) finish(ps *state.PipelineState, runErr error) (*state.PipelineState, error) {
	if runErr == nil && ps.DeploymentPassed && ps.CostPassed {
		ps.Status = state.StatusCompleted
	} else {
		ps.Status = state.StatusFailed
	}
	ps.CurrentStage = string(stage.Terminal)
	if err := o.store.Save(ps); err != nil {
		o.log.Error("terminal checkpoint failed",
			zap.String("session", ps.SessionID), zap.Error(err))
	}
	_ = o.sink.LogEvent(ps.SessionID, string(stage.Terminal), ps.Status, "")
	o.emit(Event{SessionID: ps.SessionID, Stage: stage.Terminal, Status: ps.Status})

	o.log.Info("session finished",
		zap.String("session", ps.SessionID),
		zap.String("status", ps.Status),
		zap.Int("retries", ps.RetryCount))
	return ps, runErr
}

// buildStages wires the per-session collaborator set into the stage table.
func (o *Orchestrator) buildStages(set collab.Set) map[stage.ID]stage.Stage {
	return map[stage.ID]stage.Stage{
		stage.Planner:         stage.NewPlanner(set.Generator, o.rules, o.cfg.Pipeline.MaxRetries, o.log),
		stage.Generator:       stage.NewGenerator(set.Generator, o.log),
		stage.Validator:       stage.NewValidator(set.Validator, o.log),
		stage.SecurityScanner: stage.NewScanner(set.Scanner, o.cfg.Pipeline.SecurityMode, o.log),
		stage.Deployer:        stage.NewDeployer(set.Deployer, o.log),
		stage.CostEstimator:   stage.NewCost(set.Deployer, set.Cost, o.log),
		stage.ErrorAnalyzer:   stage.NewAnalyzer(o.log),
		stage.TargetedFixer:   stage.NewFixer(set.Generator, o.log),
	}
}

// Destroy tears down the session's deployed resources and records the
// outcome on the state.
func (o *Orchestrator) Destroy(ctx context.Context, sessionID string) (string, error) {
	ps, err := o.store.Load(sessionID)
	if err != nil {
		return "", err
	}

	set, release, err := o.collabs.ForSession(sessionID)
	if err != nil {
		return "", fmt.Errorf("collaborators for session %s: %w", sessionID, err)
	}
	defer release()

	res, err := set.Deployer.Destroy(ctx)
	if err != nil {
		return "", fmt.Errorf("destroy session %s: %w", sessionID, err)
	}

	state.Merge(ps, state.Patch{
		DeploymentReport: state.String(res.Report),
		DeploymentPassed: state.Bool(false),
	})
	if err := o.store.Save(ps); err != nil {
		return res.Report, fmt.Errorf("checkpoint after destroy: %w", err)
	}
	_ = o.sink.LogEvent(sessionID, string(stage.Deployer), "destroyed", "")
	return res.Report, nil
}

// Status returns the checkpointed state for a session.
func (o *Orchestrator) Status(sessionID string) (*state.PipelineState, error) {
	return o.store.Load(sessionID)
}

// Sessions lists checkpointed sessions, optionally filtered by status.
func (o *Orchestrator) Sessions(statusFilter string) ([]state.PipelineState, error) {
	return o.store.List(statusFilter)
}

func (o *Orchestrator) emit(ev Event) {
	if o.observer != nil {
		o.observer(ev)
	}
}

// stageDetail condenses the stage outcome into one event log line.
func stageDetail(id stage.ID, ps *state.PipelineState) string {
	switch id {
	case stage.Planner:
		return fmt.Sprintf("retry=%d artifacts=%d", ps.RetryCount, len(ps.PendingArtifacts))
	case stage.Generator:
		return fmt.Sprintf("generated=%d remaining=%d", len(ps.Artifacts), len(ps.PendingArtifacts))
	case stage.Validator:
		return fmt.Sprintf("passed=%t", ps.ValidationPassed)
	case stage.SecurityScanner:
		return fmt.Sprintf("passed=%t warning=%t", ps.SecurityPassed, ps.SecurityWarning)
	case stage.Deployer:
		return fmt.Sprintf("passed=%t", ps.DeploymentPassed)
	case stage.CostEstimator:
		return "report ready"
	case stage.ErrorAnalyzer:
		if ps.ErrorAnalysis != nil {
			return fmt.Sprintf("category=%s strategy=%s", ps.ErrorAnalysis.Category, ps.ErrorAnalysis.Strategy)
		}
	case stage.TargetedFixer:
		return fmt.Sprintf("strategy=%s", ps.FixStrategy)
	}
	return ""
}
