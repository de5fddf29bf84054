package volatility

// Risk levels for an out-of-range probability.
const (
	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"
)

// RiskLevel buckets a probability percentage.
func RiskLevel(probabilityPct float64) string {
	switch {
	case probabilityPct < 20:
		return RiskLow
	case probabilityPct < 50:
		return RiskMedium
	default:
		return RiskHigh
	}
}

// Recommendation returns operator guidance for a probability percentage.
func Recommendation(probabilityPct float64) string {
	switch RiskLevel(probabilityPct) {
	case RiskLow:
		return "Low risk - position looks good"
	case RiskMedium:
		return "Medium risk - consider monitoring closely"
	default:
		return "High risk - consider wider range or shorter check interval"
	}
}
