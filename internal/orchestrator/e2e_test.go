package orchestrator

import (
	"context"
	"strings"
	"testing"

	"github.com/forgewise/infrapilot/internal/collab"
	"github.com/forgewise/infrapilot/internal/state"
)

func TestFullSuccessRun(t *testing.T) {
	gen := &scriptGenerator{}
	deployer := &scriptDeployer{
		results:   []collab.ApplyResult{{Passed: true, Report: "Success! Terraform apply successful."}},
		inventory: []collab.Resource{{Type: "aws_s3_bucket", Name: "data"}},
	}
	factory := &staticFactory{set: passingSet(gen, deployer)}
	sink := &recordSink{}
	o := newTestOrchestrator(t, factory, sink)

	ps, err := o.Start(context.Background(), "create an s3 bucket")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	if ps.Status != state.StatusCompleted {
		t.Errorf("status = %s, want completed", ps.Status)
	}
	if !ps.DeploymentPassed || !ps.CostPassed {
		t.Error("success flags not set")
	}
	if gen.planCalls != 1 {
		t.Errorf("plan calls = %d, want 1", gen.planCalls)
	}
	if gen.genCalls != 2 {
		t.Errorf("generation calls = %d, want one per planned artifact", gen.genCalls)
	}
	if len(ps.PendingArtifacts) != 0 {
		t.Errorf("pending queue = %d, want drained", len(ps.PendingArtifacts))
	}
	if len(ps.Artifacts) != 2 {
		t.Errorf("artifacts = %d, want 2", len(ps.Artifacts))
	}
	if !strings.Contains(ps.CostReport, "monthly cost") {
		t.Errorf("cost report = %q", ps.CostReport)
	}
	if ps.RetryCount != 0 {
		t.Errorf("retry count = %d, want 0", ps.RetryCount)
	}

	// The final state is checkpointed and loadable.
	reloaded, err := o.Status(ps.SessionID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if reloaded.Status != state.StatusCompleted {
		t.Errorf("reloaded status = %s", reloaded.Status)
	}

	// Every stage left a transition event.
	for _, entry := range []string{
		"planner:completed", "generator:completed", "validator:completed",
		"security_scanner:completed", "deployer:completed", "cost_estimator:completed",
		"terminal:completed",
	} {
		if sink.count(entry) == 0 {
			t.Errorf("missing event %q", entry)
		}
	}
}

// Three consecutive validation failures exhaust the retry budget: the
// session ends failed at retry_count == max retries, the last report is
// preserved verbatim, and the planner never gets a fourth re-entry.
func TestRetriesExhaustedTerminates(t *testing.T) {
	gen := &scriptGenerator{}
	set := collab.Set{
		Generator: gen,
		Validator: &scriptValidator{results: []collab.ValidationResult{
			{Passed: false, Report: "Error: something deeply wrong happened"},
		}},
		Scanner:  &scriptScanner{result: collab.ScanResult{Passed: true}},
		Deployer: &scriptDeployer{results: []collab.ApplyResult{{Passed: true}}},
		Cost:     staticCost{},
	}
	factory := &staticFactory{set: set}
	sink := &recordSink{}
	o := newTestOrchestrator(t, factory, sink)

	ps, err := o.Start(context.Background(), "create an s3 bucket")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	if ps.Status != state.StatusFailed {
		t.Errorf("status = %s, want failed", ps.Status)
	}
	if ps.RetryCount != 3 {
		t.Errorf("retry count = %d, want max retries", ps.RetryCount)
	}
	// Initial plan plus exactly three re-entries.
	if gen.planCalls != 4 {
		t.Errorf("plan calls = %d, want 4", gen.planCalls)
	}
	if !strings.Contains(ps.ValidationReport, "something deeply wrong happened") {
		t.Errorf("last failure report not preserved: %q", ps.ValidationReport)
	}
	if len(ps.Artifacts) == 0 {
		t.Error("artifacts of the last attempt must not be discarded")
	}
}

// A fixable deployment failure is repaired by one targeted fix cycle
// without consuming any retry budget.
func TestTargetedFixResolvesWithoutRetry(t *testing.T) {
	gen := &scriptGenerator{}
	deployer := &scriptDeployer{
		results: []collab.ApplyResult{
			{Passed: false, Report: `Error: resource "aws_s3_bucket" "data" already exists`},
			{Passed: true, Report: "Success! Terraform apply successful."},
		},
		inventory: []collab.Resource{{Type: "aws_s3_bucket", Name: "data"}},
	}
	factory := &staticFactory{set: passingSet(gen, deployer)}
	sink := &recordSink{}
	o := newTestOrchestrator(t, factory, sink)

	ps, err := o.Start(context.Background(), "create an s3 bucket")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	if ps.Status != state.StatusCompleted {
		t.Errorf("status = %s, want completed", ps.Status)
	}
	if ps.RetryCount != 0 {
		t.Errorf("retry count = %d, targeted fixes must not consume the budget", ps.RetryCount)
	}
	if gen.fixCalls != 1 {
		t.Errorf("fix calls = %d, want exactly one", gen.fixCalls)
	}
	if gen.planCalls != 1 {
		t.Errorf("plan calls = %d, the planner must not re-enter", gen.planCalls)
	}
	if deployer.applyCalls != 2 {
		t.Errorf("apply calls = %d, want 2", deployer.applyCalls)
	}
	if !ps.TargetedFixApplied {
		t.Error("targeted_fix_applied not set")
	}
	if !strings.Contains(ps.Artifacts["main.tf"], "random_id.suffix.hex") {
		t.Error("main.tf not rewritten by the fix")
	}
}

// A low-severity security finding is downgraded to a warning and deployment
// proceeds with the flag set.
func TestAdvisoryGradeSecurityFindingProceeds(t *testing.T) {
	gen := &scriptGenerator{}
	deployer := &scriptDeployer{
		results: []collab.ApplyResult{{Passed: true, Report: "Success! Terraform apply successful."}},
	}
	set := passingSet(gen, deployer)
	set.Scanner = &scriptScanner{result: collab.ScanResult{
		Passed: false,
		Report: "Result 1: Severity: LOW, bucket logging is disabled",
	}}
	factory := &staticFactory{set: set}
	o := newTestOrchestrator(t, factory, &recordSink{})

	ps, err := o.Start(context.Background(), "create an s3 bucket")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if ps.Status != state.StatusCompleted {
		t.Errorf("status = %s, want completed", ps.Status)
	}
	if !ps.SecurityWarning {
		t.Error("security warning flag not set")
	}
	if ps.RetryCount != 0 {
		t.Errorf("retry count = %d, want 0", ps.RetryCount)
	}
}

// A high-severity security finding forces full replanning cycles until the
// budget runs out.
func TestHighSeveritySecurityExhaustsRetries(t *testing.T) {
	gen := &scriptGenerator{}
	deployer := &scriptDeployer{results: []collab.ApplyResult{{Passed: true}}}
	set := passingSet(gen, deployer)
	set.Scanner = &scriptScanner{result: collab.ScanResult{
		Passed: false,
		Report: "Result 1: Severity: HIGH, bucket is publicly readable",
	}}
	factory := &staticFactory{set: set}
	o := newTestOrchestrator(t, factory, &recordSink{})

	ps, err := o.Start(context.Background(), "create an s3 bucket")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if ps.Status != state.StatusFailed {
		t.Errorf("status = %s, want failed", ps.Status)
	}
	if ps.RetryCount != 3 {
		t.Errorf("retry count = %d, want max retries", ps.RetryCount)
	}
	if deployer.applyCalls != 0 {
		t.Errorf("apply calls = %d, deployment must never run", deployer.applyCalls)
	}
	if !strings.Contains(ps.ValidationReport, "SECURITY ISSUES") {
		t.Error("security findings not folded into the failure narrative")
	}
}

// Resume with feedback grants one extra planning attempt past the
// exhausted budget, and the feedback reaches the planner exactly once.
func TestResumeWithFeedbackGrantsExtraAttempt(t *testing.T) {
	gen := &scriptGenerator{}
	validator := &scriptValidator{results: []collab.ValidationResult{
		{Passed: false, Report: "Error: something deeply wrong happened"},
	}}
	set := collab.Set{
		Generator: gen,
		Validator: validator,
		Scanner:   &scriptScanner{result: collab.ScanResult{Passed: true}},
		Deployer:  &scriptDeployer{results: []collab.ApplyResult{{Passed: true}}},
		Cost:      staticCost{},
	}
	factory := &staticFactory{set: set}
	o := newTestOrchestrator(t, factory, &recordSink{})

	ps, err := o.Start(context.Background(), "create an s3 bucket")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if ps.Status != state.StatusFailed || ps.RetryCount != 3 {
		t.Fatalf("precondition: status=%s retries=%d", ps.Status, ps.RetryCount)
	}
	plansBefore := gen.planCalls

	resumed, err := o.Resume(context.Background(), ps.SessionID, "use encrypted storage")
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}

	if gen.planCalls <= plansBefore {
		t.Error("feedback did not grant a new planning attempt")
	}
	if resumed.HumanFeedback != "" {
		t.Error("feedback not consumed by the planner")
	}
	if resumed.Status != state.StatusFailed {
		t.Errorf("status = %s, want failed after the extra attempt also fails", resumed.Status)
	}
}

// Resuming an exhausted session without feedback is refused: the retry
// count stays at the bound and the planner never gets another attempt.
func TestResumeExhaustedWithoutFeedbackRefused(t *testing.T) {
	gen := &scriptGenerator{}
	set := collab.Set{
		Generator: gen,
		Validator: &scriptValidator{results: []collab.ValidationResult{
			{Passed: false, Report: "Error: something deeply wrong happened"},
		}},
		Scanner:  &scriptScanner{result: collab.ScanResult{Passed: true}},
		Deployer: &scriptDeployer{results: []collab.ApplyResult{{Passed: true}}},
		Cost:     staticCost{},
	}
	factory := &staticFactory{set: set}
	o := newTestOrchestrator(t, factory, &recordSink{})

	ps, err := o.Start(context.Background(), "create an s3 bucket")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if ps.Status != state.StatusFailed || ps.RetryCount != 3 {
		t.Fatalf("precondition: status=%s retries=%d", ps.Status, ps.RetryCount)
	}
	plansBefore := gen.planCalls

	resumed, err := o.Resume(context.Background(), ps.SessionID, "")
	if err == nil {
		t.Fatal("Resume without feedback must refuse an exhausted session")
	}
	if !strings.Contains(err.Error(), "exhausted") {
		t.Errorf("err = %v, want a retries-exhausted explanation", err)
	}
	if resumed == nil || resumed.RetryCount != 3 {
		t.Fatalf("state after refusal: %+v", resumed)
	}
	if gen.planCalls != plansBefore {
		t.Errorf("plan calls went %d -> %d, refusal must not re-enter the planner", plansBefore, gen.planCalls)
	}

	// The checkpoint is untouched too.
	reloaded, err := o.Status(ps.SessionID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if reloaded.RetryCount != 3 || reloaded.Status != state.StatusFailed {
		t.Errorf("checkpoint changed: status=%s retries=%d", reloaded.Status, reloaded.RetryCount)
	}
}

// Resuming a completed session without feedback is a no-op.
func TestResumeCompletedWithoutFeedback(t *testing.T) {
	gen := &scriptGenerator{}
	deployer := &scriptDeployer{
		results: []collab.ApplyResult{{Passed: true, Report: "Success! Terraform apply successful."}},
	}
	factory := &staticFactory{set: passingSet(gen, deployer)}
	o := newTestOrchestrator(t, factory, &recordSink{})

	ps, err := o.Start(context.Background(), "create an s3 bucket")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	plansBefore := gen.planCalls

	resumed, err := o.Resume(context.Background(), ps.SessionID, "")
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if resumed.Status != state.StatusCompleted {
		t.Errorf("status = %s", resumed.Status)
	}
	if gen.planCalls != plansBefore {
		t.Error("completed session without feedback must not re-run")
	}
}

// The artifact key set never shrinks and the pending queue strictly drains
// across a full run.
func TestStateMonotonicityAcrossRun(t *testing.T) {
	gen := &scriptGenerator{}
	deployer := &scriptDeployer{
		results: []collab.ApplyResult{
			{Passed: false, Report: `Error: resource "aws_s3_bucket" "data" already exists`},
			{Passed: true, Report: "Success! Terraform apply successful."},
		},
	}
	factory := &staticFactory{set: passingSet(gen, deployer)}
	o := newTestOrchestrator(t, factory, &recordSink{})

	prevArtifacts := map[string]bool{}
	prevPending := -1
	o.SetObserver(func(ev Event) {
		ps, err := o.Status(ev.SessionID)
		if err != nil {
			return
		}
		for name := range prevArtifacts {
			if _, ok := ps.Artifacts[name]; !ok {
				t.Errorf("artifact %q disappeared at stage %s", name, ev.Stage)
			}
		}
		for name := range ps.Artifacts {
			prevArtifacts[name] = true
		}
		if ev.Stage == "generator" && ev.Status == "completed" {
			if prevPending >= 0 && len(ps.PendingArtifacts) != prevPending-1 {
				t.Errorf("queue went %d -> %d, want strict decrease by one", prevPending, len(ps.PendingArtifacts))
			}
			prevPending = len(ps.PendingArtifacts)
		}
		if ev.Stage == "planner" && ev.Status == "completed" {
			prevPending = len(ps.PendingArtifacts)
		}
	})

	if _, err := o.Start(context.Background(), "create an s3 bucket"); err != nil {
		t.Fatalf("Start: %v", err)
	}
}
