package cost

// On-demand pricing for us-east-1, conservative estimates as of late 2025.
// These are deliberately static heuristics, not a pricing API: the report is
// informational and never gates the pipeline.

// ec2Pricing maps EC2 instance types to hourly on-demand Linux rates.
var ec2Pricing = map[string]float64{
	"t2.micro": 0.0116, "t2.small": 0.023, "t2.medium": 0.0464,
	"t3.micro": 0.0104, "t3.small": 0.0208, "t3.medium": 0.0416,
	"t3.large": 0.0832, "t3.xlarge": 0.1664,
	"m5.large": 0.096, "m5.xlarge": 0.192, "m5.2xlarge": 0.384,
}

// rdsPricing maps RDS instance classes to hourly rates.
var rdsPricing = map[string]float64{
	"db.t3.micro": 0.017, "db.t3.small": 0.034, "db.t3.medium": 0.068,
	"db.t3.large": 0.136, "db.m5.large": 0.192, "db.m5.xlarge": 0.384,
}

// elasticachePricing maps ElastiCache node types to hourly rates.
var elasticachePricing = map[string]float64{
	"cache.t3.micro": 0.017, "cache.t3.small": 0.034,
	"cache.m5.large": 0.161, "cache.r5.large": 0.201,
}

// Storage rates per GB-month.
const (
	ebsGP2PerGB     = 0.10
	s3StandardPerGB = 0.023
	rdsStoragePerGB = 0.115
)

// monthlyHours is the average number of hours in a month.
const monthlyHours = 730
