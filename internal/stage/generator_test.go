package stage

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/forgewise/infrapilot/internal/state"
)

func TestGeneratorPopsOneSpec(t *testing.T) {
	gen := &fakeGenerator{responses: []string{`provider "aws" { region = "us-east-1" }`}}
	g := NewGenerator(gen, zap.NewNop())

	ps := state.New("s1", "request")
	ps.PendingArtifacts = []state.ArtifactSpec{
		{Name: "provider.tf", Brief: "Standard AWS provider"},
		{Name: "main.tf", Brief: "aws_s3_bucket 'data'"},
	}

	patch, err := g.Run(context.Background(), ps)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	state.Merge(ps, patch)

	if len(ps.PendingArtifacts) != 1 {
		t.Fatalf("queue length = %d, want 1", len(ps.PendingArtifacts))
	}
	if ps.PendingArtifacts[0].Name != "main.tf" {
		t.Errorf("remaining spec = %s, want main.tf", ps.PendingArtifacts[0].Name)
	}
	if !strings.Contains(ps.Artifacts["provider.tf"], `provider "aws"`) {
		t.Errorf("artifact = %q", ps.Artifacts["provider.tf"])
	}
}

func TestGeneratorStripsCodeFences(t *testing.T) {
	gen := &fakeGenerator{responses: []string{"```hcl\nresource \"aws_s3_bucket\" \"b\" {}\n```"}}
	g := NewGenerator(gen, zap.NewNop())

	ps := state.New("s1", "request")
	ps.PendingArtifacts = []state.ArtifactSpec{{Name: "main.tf", Brief: "bucket"}}

	patch, err := g.Run(context.Background(), ps)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	got := patch.Artifacts["main.tf"]
	if strings.Contains(got, "```") {
		t.Errorf("fences not stripped: %q", got)
	}
	if !strings.Contains(got, `resource "aws_s3_bucket" "b"`) {
		t.Errorf("artifact = %q", got)
	}
}

func TestGeneratorPromptCarriesRunningContext(t *testing.T) {
	gen := &fakeGenerator{responses: []string{"resource {}"}}
	g := NewGenerator(gen, zap.NewNop())

	ps := state.New("s1", "two buckets please")
	ps.Plan = "1. Provider\n2. Buckets"
	ps.Artifacts = map[string]string{
		"provider.tf": `provider "aws" {}` + "\n" + `resource "random_id" "suffix" { byte_length = 4 }`,
	}
	ps.PendingArtifacts = []state.ArtifactSpec{
		{Name: "main.tf", Brief: "the buckets"},
		{Name: "outputs.tf", Brief: "bucket names"},
	}

	if _, err := g.Run(context.Background(), ps); err != nil {
		t.Fatalf("Run: %v", err)
	}

	prompt := gen.prompts[0]
	for _, want := range []string{
		"USER REQUEST: two buckets please",
		"OVERALL PLAN:",
		"ALREADY GENERATED FILES:",
		"random_id.suffix",
		"REMAINING FILES: outputs.tf",
		"CURRENT FILE: main.tf",
		"Brief: the buckets",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestGeneratorPropagatesError(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("rate limited")}
	g := NewGenerator(gen, zap.NewNop())

	ps := state.New("s1", "request")
	ps.PendingArtifacts = []state.ArtifactSpec{{Name: "main.tf", Brief: "bucket"}}

	if _, err := g.Run(context.Background(), ps); err == nil {
		t.Fatal("expected error from failed generation")
	}
}

func TestGeneratorRejectsEmptyQueue(t *testing.T) {
	g := NewGenerator(&fakeGenerator{}, zap.NewNop())
	if _, err := g.Run(context.Background(), state.New("s1", "request")); err == nil {
		t.Fatal("expected error for empty queue")
	}
}
