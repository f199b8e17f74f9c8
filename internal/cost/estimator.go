// Package cost estimates monthly operating cost for a deployed resource
// inventory and suggests optimizations. Estimation is best-effort and never
// fails: an empty inventory produces an explicit "unavailable" report.
package cost

import (
	"fmt"
	"strings"

	"github.com/forgewise/infrapilot/internal/collab"
)

// ReportUnavailable is returned when nothing has been deployed.
const ReportUnavailable = "Cost estimation unavailable: No resources have been deployed yet."

// lineItem is one costed resource in the breakdown.
type lineItem struct {
	Service     string
	Resource    string
	MonthlyCost float64
}

// Estimator implements collab.CostEstimator over the static pricing tables.
type Estimator struct{}

// NewEstimator creates an Estimator.
func NewEstimator() *Estimator {
	return &Estimator{}
}

// Estimate produces a formatted monthly cost report for the inventory.
func (e *Estimator) Estimate(inventory []collab.Resource) string {
	if len(inventory) == 0 {
		return ReportUnavailable
	}

	var (
		total       float64
		breakdown   []lineItem
		suggestions []string
	)
	for _, res := range inventory {
		item, ok := estimateResource(res)
		if !ok {
			continue
		}
		total += item.MonthlyCost
		breakdown = append(breakdown, item)
		suggestions = append(suggestions, suggestFor(res, item.MonthlyCost)...)
	}

	if len(breakdown) == 0 {
		return "Cost estimation unavailable: No costed resource types in the deployment."
	}
	return formatReport(total, breakdown, suggestions)
}

// estimateResource prices one resource. Unpriced types report not-ok and are
// skipped rather than guessed at.
func estimateResource(res collab.Resource) (lineItem, bool) {
	switch res.Type {
	case "aws_instance":
		instanceType := stringAttr(res.Attributes, "instance_type", "t3.micro")
		rate, ok := ec2Pricing[instanceType]
		if !ok {
			rate = ec2Pricing["t3.micro"]
		}
		monthly := rate * monthlyHours
		monthly += rootVolumeGB(res.Attributes) * ebsGP2PerGB
		return lineItem{
			Service:     "EC2",
			Resource:    fmt.Sprintf("%s (%s)", instanceType, res.Name),
			MonthlyCost: monthly,
		}, true

	case "aws_s3_bucket":
		// Assume 10GB standard storage with minimal request volume.
		return lineItem{
			Service:     "S3",
			Resource:    fmt.Sprintf("Bucket (%s)", res.Name),
			MonthlyCost: 10 * s3StandardPerGB,
		}, true

	case "aws_dynamodb_table":
		billingMode := stringAttr(res.Attributes, "billing_mode", "PAY_PER_REQUEST")
		var monthly float64
		if billingMode == "PAY_PER_REQUEST" {
			// Assume 1M writes and 5M reads per month.
			monthly = 1*1.25 + 5*0.25
		} else {
			read := numAttr(res.Attributes, "read_capacity", 5)
			write := numAttr(res.Attributes, "write_capacity", 5)
			monthly = (read*0.00013 + write*0.00065) * monthlyHours
		}
		return lineItem{
			Service:     "DynamoDB",
			Resource:    fmt.Sprintf("Table (%s)", res.Name),
			MonthlyCost: monthly,
		}, true

	case "aws_db_instance":
		class := stringAttr(res.Attributes, "instance_class", "db.t3.micro")
		rate, ok := rdsPricing[class]
		if !ok {
			rate = rdsPricing["db.t3.micro"]
		}
		storage := numAttr(res.Attributes, "allocated_storage", 20)
		return lineItem{
			Service:     "RDS",
			Resource:    fmt.Sprintf("%s (%s)", class, res.Name),
			MonthlyCost: rate*monthlyHours + storage*rdsStoragePerGB,
		}, true

	case "aws_lambda_function":
		// Assume 1M requests at 128MB; mostly inside the free tier.
		return lineItem{
			Service:     "Lambda",
			Resource:    fmt.Sprintf("Function (%s)", res.Name),
			MonthlyCost: 0.20,
		}, true

	case "aws_nat_gateway":
		// Hourly charge plus an assumed 100GB of processed data.
		return lineItem{
			Service:     "NAT Gateway",
			Resource:    res.Name,
			MonthlyCost: 0.045*monthlyHours + 100*0.045,
		}, true

	case "aws_lb", "aws_alb":
		return lineItem{
			Service:     "Load Balancer",
			Resource:    res.Name,
			MonthlyCost: 0.0225*monthlyHours + 0.008*monthlyHours,
		}, true

	case "aws_elasticache_cluster":
		nodeType := stringAttr(res.Attributes, "node_type", "cache.t3.micro")
		rate, ok := elasticachePricing[nodeType]
		if !ok {
			rate = elasticachePricing["cache.t3.micro"]
		}
		nodes := numAttr(res.Attributes, "num_cache_nodes", 1)
		return lineItem{
			Service:     "ElastiCache",
			Resource:    fmt.Sprintf("%s x%d", nodeType, int(nodes)),
			MonthlyCost: rate * monthlyHours * nodes,
		}, true
	}

	return lineItem{}, false
}

// suggestFor generates cost optimization suggestions for one resource.
func suggestFor(res collab.Resource, monthly float64) []string {
	var out []string
	switch res.Type {
	case "aws_instance":
		instanceType := stringAttr(res.Attributes, "instance_type", "")
		if strings.HasPrefix(instanceType, "t2.") {
			out = append(out, fmt.Sprintf("Consider upgrading '%s' from T2 to T3 instances for ~10%% cost savings and better performance", res.Name))
		}
		if monthly > 50 {
			out = append(out, fmt.Sprintf("'%s' costs $%.2f/month. Use Reserved Instances for 40-60%% savings on long-term workloads", res.Name, monthly))
		}
	case "aws_dynamodb_table":
		if stringAttr(res.Attributes, "billing_mode", "") == "PAY_PER_REQUEST" && monthly > 10 {
			out = append(out, fmt.Sprintf("Table '%s' uses on-demand pricing. Switch to provisioned capacity if traffic is predictable (50%%+ savings)", res.Name))
		}
	case "aws_db_instance":
		if monthly > 30 {
			out = append(out, fmt.Sprintf("RDS '%s' costs $%.2f/month. Consider Aurora Serverless v2 for variable workloads (up to 90%% savings)", res.Name, monthly))
		}
	case "aws_s3_bucket":
		out = append(out, fmt.Sprintf("Enable S3 Intelligent-Tiering on '%s' to automatically optimize storage costs", res.Name))
	case "aws_nat_gateway":
		out = append(out, fmt.Sprintf("NAT Gateway costs $%.2f/month. Consider VPC endpoints for AWS services to reduce data transfer costs", monthly))
	}
	return out
}

// formatReport renders the breakdown, suggestions, and general guidance.
func formatReport(total float64, breakdown []lineItem, suggestions []string) string {
	var b strings.Builder
	rule := strings.Repeat("=", 60)
	thin := strings.Repeat("-", 60)

	fmt.Fprintf(&b, "ESTIMATED MONTHLY COST: $%.2f\n%s\n\n", total, rule)
	b.WriteString("COST BREAKDOWN:\n")
	b.WriteString(thin + "\n")
	for _, item := range breakdown {
		fmt.Fprintf(&b, "%-15s | %-30s | $%8.2f\n", item.Service, item.Resource, item.MonthlyCost)
	}
	b.WriteString(thin + "\n")
	fmt.Fprintf(&b, "%-15s | %-30s | $%8.2f\n", "TOTAL", "", total)

	if len(suggestions) > 0 {
		fmt.Fprintf(&b, "\n%s\nCOST OPTIMIZATION SUGGESTIONS:\n%s\n", rule, rule)
		for i, s := range suggestions {
			if i >= 8 {
				break
			}
			fmt.Fprintf(&b, "\n%d. %s", i+1, s)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "\n%s\nGENERAL RECOMMENDATIONS:\n%s\n", rule, rule)
	b.WriteString("\n- Set up AWS Budgets to track spending")
	b.WriteString("\n- Enable AWS Cost Anomaly Detection")
	b.WriteString("\n- Use Cost Explorer for detailed analysis")
	b.WriteString("\n- Tag all resources for cost allocation")

	if total > 100 {
		fmt.Fprintf(&b, "\n\nWarning: monthly cost exceeds $100. Review your architecture for optimization opportunities.")
	}
	return b.String()
}

// stringAttr reads a string attribute with a fallback.
func stringAttr(attrs map[string]any, key, fallback string) string {
	if v, ok := attrs[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

// numAttr reads a numeric attribute with a fallback. Terraform state JSON
// decodes numbers as float64.
func numAttr(attrs map[string]any, key string, fallback float64) float64 {
	switch v := attrs[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return fallback
}

// rootVolumeGB extracts the root EBS volume size from an aws_instance's
// attributes, defaulting to 20GB.
func rootVolumeGB(attrs map[string]any) float64 {
	devices, ok := attrs["root_block_device"].([]any)
	if !ok || len(devices) == 0 {
		return 20
	}
	device, ok := devices[0].(map[string]any)
	if !ok {
		return 20
	}
	return numAttr(device, "volume_size", 20)
}
