// Package classify turns failure reports into recovery strategies.
//
// Classification is an ordered, first-match-wins rule table over the
// lower-cased report text. It is a heuristic layer: the validate/scan/deploy
// collaborators emit free text, not structured error codes, so keyword
// matching is the only signal available.
package classify

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/forgewise/infrapilot/internal/state"
)

// Source identifies which gate produced the report being classified.
type Source string

const (
	SourceValidation Source = "validation"
	SourceSecurity   Source = "security"
	SourceDeployment Source = "deployment"
)

// Recovery strategies.
const (
	StrategyFullRetry        = "full_retry"
	StrategySkip             = "skip"
	StrategyAddRandomSuffix  = "add_random_suffix"
	StrategyAddSubnetGroup   = "add_subnet_group"
	StrategyAddSecurityGroup = "add_security_group"
	StrategyFixReference     = "fix_reference"
	StrategyAddIAMRole       = "add_iam_role"
)

// Error categories.
const (
	CategorySecurityIssues  = "security_issues"
	CategorySecurityWarning = "security_warning"
	CategoryResourceExists  = "resource_exists"
	CategoryMissingSubnet   = "missing_subnet_group"
	CategoryMissingSecGroup = "missing_security_group"
	CategoryInvalidRef      = "invalid_reference"
	CategoryMissingIAM      = "missing_iam"
	CategoryUnknown         = "unknown"
)

// existenceKeywords signal that something referenced by the configuration
// does not exist or is rejected.
var existenceKeywords = []string{"not found", "does not exist", "missing", "invalid", "required"}

// rule is one entry in the classification table. keywords needs any match;
// every qualifier group then needs any match of its own.
type rule struct {
	category        string
	strategy        string
	description     string
	keywords        []string
	qualifiers      [][]string
	extractResource bool
}

// rules is evaluated in order; the first match wins.
var rules = []rule{
	{
		category:        CategoryResourceExists,
		strategy:        StrategyAddRandomSuffix,
		description:     "Add random_id suffix to %s",
		keywords:        []string{"already exists", "alreadyexists"},
		extractResource: true,
	},
	{
		category:    CategoryMissingSubnet,
		strategy:    StrategyAddSubnetGroup,
		description: "Add missing DB/cache subnet group resource",
		keywords:    []string{"subnet group", "subnet_group", "db_subnet_group_name"},
		qualifiers:  [][]string{existenceKeywords},
	},
	{
		category:    CategoryMissingSecGroup,
		strategy:    StrategyAddSecurityGroup,
		description: "Add missing security group resource",
		keywords:    []string{"security group", "security_group"},
		qualifiers:  [][]string{existenceKeywords},
	},
	{
		category:    CategoryInvalidRef,
		strategy:    StrategyFixReference,
		description: "Fix invalid resource reference",
		keywords:    []string{"reference", "depends on", "no resource"},
	},
	{
		category:    CategoryMissingIAM,
		strategy:    StrategyAddIAMRole,
		description: "Add missing IAM role/policy",
		keywords:    []string{"iam"},
		qualifiers:  [][]string{{"role", "policy"}, existenceKeywords},
	},
}

// resourceDeclPattern matches a Terraform resource declaration quoted in an
// error report, e.g. `resource "aws_s3_bucket" "data"`.
var resourceDeclPattern = regexp.MustCompile(`resource\s+"([^"]+)"\s+"([^"]+)"`)

// severityMarkers in a security report escalate it past the advisory tier.
var severityMarkers = []string{"high", "critical"}

// Classify maps a failure report to a recovery analysis. Security-originated
// reports are gated on severity before the rule table; everything that falls
// through the table is an unknown error requiring full regeneration.
func Classify(report string, source Source) *state.ErrorAnalysis {
	lower := strings.ToLower(report)

	if source == SourceSecurity {
		if containsAny(lower, severityMarkers) {
			return &state.ErrorAnalysis{
				Category:    CategorySecurityIssues,
				Strategy:    StrategyFullRetry,
				Description: "Security scan found high-severity issues; regenerate with stricter briefs",
			}
		}
		return &state.ErrorAnalysis{
			Category:    CategorySecurityWarning,
			Strategy:    StrategySkip,
			Description: "Security scan found only low-severity issues; proceeding with a flagged report",
		}
	}

	for _, r := range rules {
		if !matches(lower, r) {
			continue
		}
		a := &state.ErrorAnalysis{
			Category:    r.category,
			Strategy:    r.strategy,
			Description: r.description,
		}
		if r.extractResource {
			a.Resource = extractResource(report)
			a.Description = fmt.Sprintf(r.description, a.Resource)
		}
		return a
	}

	return &state.ErrorAnalysis{
		Category:    CategoryUnknown,
		Strategy:    StrategyFullRetry,
		Description: "Complex error requiring full regeneration",
	}
}

// Fixable reports whether a strategy has a targeted repair, as opposed to a
// full retry or a non-blocking skip.
func Fixable(strategy string) bool {
	switch strategy {
	case StrategyAddRandomSuffix, StrategyAddSubnetGroup, StrategyAddSecurityGroup,
		StrategyFixReference, StrategyAddIAMRole:
		return true
	}
	return false
}

func matches(lower string, r rule) bool {
	if !containsAny(lower, r.keywords) {
		return false
	}
	for _, group := range r.qualifiers {
		if !containsAny(lower, group) {
			return false
		}
	}
	return true
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// extractResource pulls the type.name pair out of a quoted resource
// declaration in the report, or "unknown" when none is present.
func extractResource(report string) string {
	m := resourceDeclPattern.FindStringSubmatch(report)
	if m == nil {
		return "unknown"
	}
	return m[1] + "." + m[2]
}
