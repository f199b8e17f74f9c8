package state

import "time"

// Session status values.
const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// ArtifactSpec describes one artifact awaiting generation: its file name and
// the brief the generator works from.
type ArtifactSpec struct {
	Name  string `json:"name"`
	Brief string `json:"brief"`
}

// ErrorAnalysis is the classifier verdict for the most relevant failing
// report. It is valid only until the next planning cycle.
type ErrorAnalysis struct {
	Category    string `json:"category"`
	Strategy    string `json:"strategy"`
	Description string `json:"description"`
	Resource    string `json:"resource,omitempty"`
}

// PipelineState is the full persisted state for a single session. It is
// threaded through every stage and checkpointed after every transition.
type PipelineState struct {
	SessionID string `json:"session_id"`
	Request   string `json:"request"` // immutable after creation

	Plan             string            `json:"plan"`
	PendingArtifacts []ArtifactSpec    `json:"pending_artifacts"`
	Artifacts        map[string]string `json:"artifacts"`

	ValidationReport string `json:"validation_report"`
	SecurityReport   string `json:"security_report"`
	DeploymentReport string `json:"deployment_report"`
	CostReport       string `json:"cost_report"`

	ValidationPassed bool `json:"validation_passed"`
	SecurityPassed   bool `json:"security_passed"`
	DeploymentPassed bool `json:"deployment_passed"`
	CostPassed       bool `json:"cost_passed"`
	SecurityWarning  bool `json:"security_warning"`

	RetryCount    int    `json:"retry_count"`
	HumanFeedback string `json:"human_feedback"`

	ErrorAnalysis      *ErrorAnalysis `json:"error_analysis,omitempty"`
	NeedsFullRetry     bool           `json:"needs_full_retry"`
	FixStrategy        string         `json:"fix_strategy"`
	TargetedFixApplied bool           `json:"targeted_fix_applied"`

	CurrentStage string `json:"current_stage"`
	Status       string `json:"status"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

// New creates a fresh session state.
func New(sessionID, request string) *PipelineState {
	now := time.Now().UTC().Format(time.RFC3339)
	return &PipelineState{
		SessionID: sessionID,
		Request:   request,
		Artifacts: map[string]string{},
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Patch is a partial state update returned by a stage. Nil fields are left
// untouched by Merge; non-nil fields overwrite the corresponding state field
// wholesale (shallow key-wise override).
type Patch struct {
	Plan             *string
	PendingArtifacts *[]ArtifactSpec
	Artifacts        map[string]string

	ValidationReport *string
	SecurityReport   *string
	DeploymentReport *string
	CostReport       *string

	ValidationPassed *bool
	SecurityPassed   *bool
	DeploymentPassed *bool
	CostPassed       *bool
	SecurityWarning  *bool

	RetryCount    *int
	HumanFeedback *string

	ErrorAnalysis      *ErrorAnalysis
	ClearErrorAnalysis bool
	NeedsFullRetry     *bool
	FixStrategy        *string
	TargetedFixApplied *bool
}

// Merge applies a patch to the state in place. This is the only mutation
// path for stage results; stages never write to the state directly.
func Merge(ps *PipelineState, p Patch) {
	if p.Plan != nil {
		ps.Plan = *p.Plan
	}
	if p.PendingArtifacts != nil {
		ps.PendingArtifacts = *p.PendingArtifacts
	}
	if p.Artifacts != nil {
		ps.Artifacts = p.Artifacts
	}
	if p.ValidationReport != nil {
		ps.ValidationReport = *p.ValidationReport
	}
	if p.SecurityReport != nil {
		ps.SecurityReport = *p.SecurityReport
	}
	if p.DeploymentReport != nil {
		ps.DeploymentReport = *p.DeploymentReport
	}
	if p.CostReport != nil {
		ps.CostReport = *p.CostReport
	}
	if p.ValidationPassed != nil {
		ps.ValidationPassed = *p.ValidationPassed
	}
	if p.SecurityPassed != nil {
		ps.SecurityPassed = *p.SecurityPassed
	}
	if p.DeploymentPassed != nil {
		ps.DeploymentPassed = *p.DeploymentPassed
	}
	if p.CostPassed != nil {
		ps.CostPassed = *p.CostPassed
	}
	if p.SecurityWarning != nil {
		ps.SecurityWarning = *p.SecurityWarning
	}
	if p.RetryCount != nil {
		ps.RetryCount = *p.RetryCount
	}
	if p.HumanFeedback != nil {
		ps.HumanFeedback = *p.HumanFeedback
	}
	if p.ErrorAnalysis != nil {
		ps.ErrorAnalysis = p.ErrorAnalysis
	} else if p.ClearErrorAnalysis {
		ps.ErrorAnalysis = nil
	}
	if p.NeedsFullRetry != nil {
		ps.NeedsFullRetry = *p.NeedsFullRetry
	}
	if p.FixStrategy != nil {
		ps.FixStrategy = *p.FixStrategy
	}
	if p.TargetedFixApplied != nil {
		ps.TargetedFixApplied = *p.TargetedFixApplied
	}
	ps.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
}

// String, Bool and Int return pointers for patch construction.
func String(v string) *string { return &v }
func Bool(v bool) *bool       { return &v }
func Int(v int) *int          { return &v }

// Specs returns a pointer to a pending-artifact queue for patch construction.
func Specs(v []ArtifactSpec) *[]ArtifactSpec { return &v }

// CopyArtifacts returns a shallow copy of the artifact map. Stages that
// rewrite artifact content work on a copy so the merge stays the single
// mutation path.
func CopyArtifacts(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
