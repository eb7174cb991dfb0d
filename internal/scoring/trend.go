package scoring

import "math"

// Trend directions.
const (
	TrendIncreasing = "increasing"
	TrendDecreasing = "decreasing"
	TrendStable     = "stable"
)

// Trend describes how one category moved between two snapshots.
type Trend struct {
	Direction     string  `json:"direction"`
	PercentChange float64 `json:"percent_change"`
}

// Analyzer classifies score movement between the current snapshot and the
// most recent prior one.
type Analyzer struct {
	threshold float64 // fractional change above which a trend is not stable
	epsilon   float64 // floor for the denominator
}

// NewAnalyzer returns an Analyzer. threshold <= 0 defaults to 5%,
// epsilon <= 0 defaults to 0.1.
func NewAnalyzer(threshold, epsilon float64) *Analyzer {
	if threshold <= 0 {
		threshold = 0.05
	}
	if epsilon <= 0 {
		epsilon = 0.1
	}
	return &Analyzer{threshold: threshold, epsilon: epsilon}
}

// Attach fills the trend fields on current by comparing it to prior.
// With no prior snapshot every trend is stable with zero change.
func (a *Analyzer) Attach(current, prior *Snapshot) {
	current.Trends = make(map[Category]Trend, len(Categories))

	if prior == nil {
		for _, cat := range Categories {
			current.Trends[cat] = Trend{Direction: TrendStable}
		}
		current.OverallTrend = Trend{Direction: TrendStable}
		return
	}

	for _, cat := range Categories {
		current.Trends[cat] = a.classify(current.Scores[cat], prior.Scores[cat])
	}
	current.OverallTrend = a.classify(current.Overall, prior.Overall)
}

// classify computes percentChange = (current - prior) / max(prior, epsilon)
// and thresholds it symmetrically.
func (a *Analyzer) classify(current, prior float64) Trend {
	change := (current - prior) / math.Max(prior, a.epsilon)

	t := Trend{PercentChange: change}
	switch {
	case change > a.threshold:
		t.Direction = TrendIncreasing
	case change < -a.threshold:
		t.Direction = TrendDecreasing
	default:
		t.Direction = TrendStable
	}
	return t
}
