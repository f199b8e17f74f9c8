package llm

import (
	"strings"
	"testing"
)

type planDoc struct {
	Plan  string `json:"plan"`
	Files []struct {
		FileName string `json:"file_name"`
		Brief    string `json:"brief"`
	} `json:"files"`
}

func TestExtractJSONClean(t *testing.T) {
	var doc planDoc
	err := ExtractJSON(`{"plan": "1. provider", "files": [{"file_name": "provider.tf", "brief": "aws"}]}`, &doc)
	if err != nil {
		t.Fatalf("ExtractJSON: %v", err)
	}
	if doc.Plan != "1. provider" {
		t.Errorf("Plan = %q", doc.Plan)
	}
	if len(doc.Files) != 1 || doc.Files[0].FileName != "provider.tf" {
		t.Errorf("Files = %v", doc.Files)
	}
}

func TestExtractJSONMarkdownWrapped(t *testing.T) {
	response := "Here is the plan you asked for:\n```json\n{\"plan\": \"1. setup\", \"files\": []}\n```\nLet me know if you need changes."
	var doc planDoc
	if err := ExtractJSON(response, &doc); err != nil {
		t.Fatalf("ExtractJSON: %v", err)
	}
	if doc.Plan != "1. setup" {
		t.Errorf("Plan = %q", doc.Plan)
	}
}

func TestExtractJSONNestedBraces(t *testing.T) {
	response := `prefix {"plan": "p", "meta": {"inner": {"deep": 1}}} suffix {"ignored": true}`
	var doc map[string]any
	if err := ExtractJSON(response, &doc); err != nil {
		t.Fatalf("ExtractJSON: %v", err)
	}
	if doc["plan"] != "p" {
		t.Errorf("plan = %v", doc["plan"])
	}
	if _, ok := doc["ignored"]; ok {
		t.Error("picked up second object instead of first")
	}
}

func TestExtractJSONFailures(t *testing.T) {
	var doc planDoc
	if err := ExtractJSON("no json here at all", &doc); err == nil {
		t.Error("want error for response without JSON")
	}
	if err := ExtractJSON("{\"plan\": ", &doc); err == nil {
		t.Error("want error for unbalanced braces")
	}
	if err := ExtractJSON("{\"plan\": bogus}", &doc); err == nil {
		t.Error("want error for invalid JSON body")
	}
}

func TestStripCodeFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "hcl fence",
			in:   "```hcl\nresource \"aws_s3_bucket\" \"b\" {}\n```",
			want: `resource "aws_s3_bucket" "b" {}`,
		},
		{
			name: "terraform fence",
			in:   "```terraform\nprovider \"aws\" {}\n```",
			want: `provider "aws" {}`,
		},
		{
			name: "bare fence with prose",
			in:   "Sure, here you go:\n```\nlocals {}\n```\nanything else?",
			want: "locals {}",
		},
		{
			name: "no fence",
			in:   "  resource \"x\" \"y\" {}  ",
			want: `resource "x" "y" {}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripCodeFences(tt.in); got != tt.want {
				t.Errorf("StripCodeFences = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractResources(t *testing.T) {
	code := `
resource "random_id" "suffix" { byte_length = 4 }
resource "aws_s3_bucket" "data" { bucket = "d-${random_id.suffix.hex}" }
data "aws_vpc" "default" { default = true }
`
	got := ExtractResources(code)
	want := []string{"random_id.suffix", "aws_s3_bucket.data", "data.aws_vpc.default"}
	if len(got) != len(want) {
		t.Fatalf("ExtractResources = %v, want %v", got, want)
	}
	for _, w := range want {
		if !contains(got, w) {
			t.Errorf("missing %q in %v", w, got)
		}
	}
}

func TestExtractResourcesEmpty(t *testing.T) {
	if got := ExtractResources("# nothing declared"); len(got) != 0 {
		t.Errorf("ExtractResources = %v, want none", got)
	}
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

func TestStripCodeFencesPreservesInterpolation(t *testing.T) {
	in := "```hcl\nbucket = \"b-${random_id.suffix.hex}\"\n```"
	got := StripCodeFences(in)
	if !strings.Contains(got, "${random_id.suffix.hex}") {
		t.Errorf("interpolation lost: %q", got)
	}
}
