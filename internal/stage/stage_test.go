package stage

import (
	"context"
	"fmt"

	"github.com/forgewise/infrapilot/internal/collab"
)

// fakeGenerator returns queued responses in order, recording prompts.
type fakeGenerator struct {
	responses []string
	err       error
	prompts   []string
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	if len(f.responses) == 0 {
		return "", fmt.Errorf("no responses queued")
	}
	resp := f.responses[0]
	f.responses = f.responses[1:]
	return resp, nil
}

type fakeValidator struct {
	result collab.ValidationResult
	err    error
	calls  int
}

func (f *fakeValidator) Validate(ctx context.Context, artifacts map[string]string) (collab.ValidationResult, error) {
	f.calls++
	return f.result, f.err
}

type fakeScanner struct {
	result collab.ScanResult
	err    error
}

func (f *fakeScanner) Scan(ctx context.Context, artifacts map[string]string) (collab.ScanResult, error) {
	return f.result, f.err
}

type fakeDeployer struct {
	applyResult collab.ApplyResult
	applyErr    error
	applyCalls  int
	inventory   []collab.Resource
	invErr      error
}

func (f *fakeDeployer) Apply(ctx context.Context, artifacts map[string]string) (collab.ApplyResult, error) {
	f.applyCalls++
	return f.applyResult, f.applyErr
}

func (f *fakeDeployer) Destroy(ctx context.Context) (collab.ApplyResult, error) {
	return collab.ApplyResult{Passed: true}, nil
}

func (f *fakeDeployer) Inventory(ctx context.Context) ([]collab.Resource, error) {
	return f.inventory, f.invErr
}

type fakeCost struct {
	report    string
	inventory []collab.Resource
}

func (f *fakeCost) Estimate(inventory []collab.Resource) string {
	f.inventory = inventory
	return f.report
}
