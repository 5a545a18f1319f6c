package stats

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// ZVal returns the two-tailed Z-value associated with a specific confidence interval.
// The interval is a number from 0 to 100 percent.
func ZVal(confidenceInterval float64) float64 {
	dist := distuv.Normal{
		Mu:    0,
		Sigma: 1,
	}
	area := (1 + (confidenceInterval / 100)) / 2
	return dist.Quantile(area)
}

// ScoreInterval is the Wilson score interval for a match score, counting a
// draw as half a win. It stays inside [0, 1] even for lopsided results.
func ScoreInterval(wins, draws, games int, confidence float64) (float64, float64) {
	if games == 0 {
		return 0, 1
	}
	n := float64(games)
	p := (float64(wins) + 0.5*float64(draws)) / n
	z := ZVal(confidence)
	z2 := z * z
	center := (p + z2/(2*n)) / (1 + z2/n)
	half := z * math.Sqrt(p*(1-p)/n+z2/(4*n*n)) / (1 + z2/n)
	return math.Max(0, center-half), math.Min(1, center+half)
}
