package stage

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/forgewise/infrapilot/internal/llm"
	"github.com/forgewise/infrapilot/internal/state"
)

// defaultSecurityRules is the embedded fallback when no rules file is
// configured or the configured file cannot be read.
const defaultSecurityRules = `S3: 4 resources - bucket + encryption(AES256) + public_access_block(all true) + versioning(Enabled)
EC2: metadata_options{http_tokens=required}, no public IP, encrypted EBS, security group
DynamoDB: server_side_encryption + point_in_time_recovery
Lambda: IAM role + tracing_config(Active)
RDS: storage_encrypted + not publicly_accessible + backup_retention>=7`

// LoadSecurityRules reads the planner's security rules from path, falling
// back to the embedded rules when the file is absent or unreadable.
func LoadSecurityRules(path string) string {
	if path == "" {
		return defaultSecurityRules
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return defaultSecurityRules
	}
	return string(data)
}

func planPrompt(request, errorContext, rules, feedback string) string {
	var b strings.Builder
	fmt.Fprintf(&b, `Think step-by-step to create a MINIMAL Terraform architecture.

User wants: %s
%s
Reasoning process:
1. What AWS resources are EXPLICITLY requested? (Don't add extras)
2. What security configs are MANDATORY for these resources?
3. What files are needed? (provider.tf always + main.tf)

SECURITY REQUIREMENTS:
%s

KEEP IT SIMPLE:
- NO variables.tf or outputs.tf unless explicitly requested
- NO KMS keys (use AES256)
- NO log buckets (unless asked)
- 3-5 steps max in plan
- Be SPECIFIC in briefs: list each resource type with key attributes

OUTPUT JSON:
{
  "plan": "1. Setup provider\n2. Create [specific resource]\n3. Add [specific security config]",
  "files": [
    {"file_name": "provider.tf", "brief": "Standard AWS provider for region us-east-1"},
    {"file_name": "main.tf", "brief": "Resource-by-resource list with key attributes"}
  ]
}

GOOD brief: "aws_dynamodb_table 'users' hash_key='id':S billing_mode=PAY_PER_REQUEST server_side_encryption enabled=true point_in_time_recovery enabled=true"
BAD brief: "Create DynamoDB table" (too vague!)

CRITICAL: The brief for main.tf MUST list EVERY resource that will be created with their key attributes.`,
		request, errorContext, rules)

	if feedback != "" {
		fmt.Fprintf(&b, "\n\nHuman feedback: %s", feedback)
	}
	return b.String()
}

func planErrorContext(report string) string {
	return fmt.Sprintf(`
PREVIOUS ERRORS TO FIX:
%s

FIX BY: Analyzing the exact error and being more specific in resource briefs.
`, report)
}

func generatePrompt(name, brief, contextSection string) string {
	return fmt.Sprintf(`Generate HCL code for %s. Output ONLY code, NO markdown, NO explanations.

%s
Brief: %s

RULES:
- Follow the brief exactly - it contains all resource names and key attributes
- For provider.tf: Use a standard AWS provider configuration (region us-east-1)
- Use .id for resource references (e.g., aws_s3_bucket.name.id)
- If existing resources are listed above, reference them instead of creating duplicates
- Keep code clean and minimal
- Output pure HCL code only

CRITICAL: Generate unique resource names using random_id.
ALWAYS include this resource at the top of main.tf so names are unique:

resource "random_id" "suffix" {
  byte_length = 4
}

Then use it for ALL resource names that need to be globally or regionally
unique, for example bucket = "my-bucket-${random_id.suffix.hex}" for S3 and
name_prefix = "my-sg-${random_id.suffix.hex}-" for security groups.

A correct provider.tf declares both the aws provider (~> 5.0, region
us-east-1) and the random provider (~> 3.0) in required_providers.

For EC2 instances in the default VPC, look up subnets with
data "aws_vpc" "default" { default = true } and a data "aws_subnets" filter
on vpc-id, then reference subnet_id = tolist(data.aws_subnets.default.ids)[0].
DO NOT use a "default_for_az" filter - it does not exist in the AWS API.

Now, generate the complete and correct HCL code for: %s
`, name, contextSection, brief, name)
}

// generateContext builds the running context handed to the generator for
// each artifact: request, plan, what already exists, and what remains.
func generateContext(ps *state.PipelineState, current string, remaining []state.ArtifactSpec) string {
	if len(ps.Artifacts) == 0 && ps.Plan == "" {
		return ""
	}

	var parts []string
	if ps.Request != "" {
		parts = append(parts, "USER REQUEST: "+ps.Request)
	}
	if ps.Plan != "" {
		parts = append(parts, "\nOVERALL PLAN:\n"+ps.Plan)
	}

	if len(ps.Artifacts) > 0 {
		parts = append(parts, "\nALREADY GENERATED FILES:")
		names := make([]string, 0, len(ps.Artifacts))
		for name := range ps.Artifacts {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			parts = append(parts, "\n* "+name)
			resources := llm.ExtractResources(ps.Artifacts[name])
			if len(resources) > 0 {
				parts = append(parts, "  Resources defined:")
				// Cap per-file listing to keep the prompt bounded.
				if len(resources) > 10 {
					resources = resources[:10]
				}
				for _, res := range resources {
					parts = append(parts, "    - "+res)
				}
			}
		}
	}

	if len(remaining) > 0 {
		names := make([]string, 0, len(remaining))
		for _, spec := range remaining {
			names = append(names, spec.Name)
		}
		parts = append(parts, "\nREMAINING FILES: "+strings.Join(names, ", "))
	}

	parts = append(parts, "\nCURRENT FILE: "+current+"\n")
	return strings.Join(parts, "\n")
}

// fixInstructions maps a recovery strategy to its repair guidance.
var fixInstructions = map[string]string{
	"add_random_suffix": `
SPECIFIC FIX:
The resource '%s' already exists. Add random_id suffix for uniqueness.

Example:
- BEFORE: bucket = "my-bucket"
- AFTER: bucket = "my-bucket-${random_id.suffix.hex}"

Make sure the random_id resource exists at the top. Output the COMPLETE fixed main.tf:
`,
	"add_subnet_group": `
SPECIFIC FIX:
Add the missing subnet group resource (aws_db_subnet_group or aws_elasticache_subnet_group).

Use existing subnets from the VPC (data.aws_subnets.default.ids or create new subnets).
Then update the DB/cache resource to reference it.

Output the COMPLETE fixed main.tf:
`,
	"add_security_group": `
SPECIFIC FIX:
Add the missing security group with appropriate rules.

Consider what the resource needs:
- RDS needs port 5432 (PostgreSQL) or 3306 (MySQL)
- Redis/Memcached needs port 6379/11211
- Web servers need port 80/443

Output the COMPLETE fixed main.tf:
`,
	"fix_reference": `
SPECIFIC FIX:
Fix the invalid resource reference.

Check:
1. Resource exists and is spelled correctly
2. Use correct syntax: resource_type.name.attribute
3. Common attributes: .id (most), .arn (IAM), .name (some)

Output the COMPLETE fixed main.tf:
`,
	"add_iam_role": `
SPECIFIC FIX:
Add the missing IAM role and/or policy.

Include:
1. IAM role with assume_role_policy
2. IAM policy with required permissions
3. IAM role policy attachment

Output the COMPLETE fixed main.tf:
`,
}

func fixPrompt(ps *state.PipelineState, analysis *state.ErrorAnalysis) string {
	report, source := failingReport(ps)

	var ctxParts []string
	if ps.Request != "" {
		ctxParts = append(ctxParts, "USER REQUEST: "+ps.Request)
	}
	if ps.Plan != "" {
		ctxParts = append(ctxParts, "\nPLAN:\n"+ps.Plan)
	}
	ctxParts = append(ctxParts, "\nERROR TYPE: "+source)
	ctxParts = append(ctxParts, "ERROR DETAILS:\n"+report)

	prompt := fmt.Sprintf(`You are fixing a Terraform error. Apply ONLY the specific fix needed.

%s

CURRENT CODE (main.tf):
%s

FIX NEEDED: %s
`, strings.Join(ctxParts, "\n"), ps.Artifacts[primaryArtifact], analysis.Description)

	instr, ok := fixInstructions[analysis.Strategy]
	if !ok {
		return prompt + "\nAnalyze the error and fix it. Output the COMPLETE fixed main.tf:\n"
	}
	if strings.Contains(instr, "%s") {
		instr = fmt.Sprintf(instr, analysis.Resource)
	}
	return prompt + instr
}
