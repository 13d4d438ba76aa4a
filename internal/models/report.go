package models

// SeverityCounts tallies findings by severity for a Report.
type SeverityCounts struct {
	Critical int
	High     int
	Medium   int
	Low      int
	Info     int
}

// Report is the aggregation of findings for one project. At most one
// Report exists per Project.
type Report struct {
	ID              string
	ProjectID       string
	HealthScore     int
	Summary         string
	Recommendations []string
	Counts          SeverityCounts
	DurationSeconds float64
}

// ComputeHealthScore implements the health-score law from spec.md §8:
// HealthScore = max(0, 100 - min(H*10,50) - min(M*3,30) - min(L*1,20)).
func ComputeHealthScore(high, medium, low int) int {
	penalty := min(high*10, 50) + min(medium*3, 30) + min(low, 20)
	score := 100 - penalty
	if score < 0 {
		score = 0
	}
	return score
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
