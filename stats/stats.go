// Package stats keeps running statistics over self-play results.
package stats

import "math"

const (
	Epsilon = 1e-6
)

func FuzzyEqual(a, b float64) bool {
	return math.Abs(a-b) < Epsilon
}

// Running accumulates mean and variance in one pass with Welford's
// algorithm. The zero value is ready to use.
type Running struct {
	n    int
	last float64
	min  float64
	max  float64

	mean float64
	m2   float64
}

func (s *Running) Push(val float64) {
	s.last = val
	s.n++
	if s.n == 1 {
		s.mean = val
		s.m2 = 0
		s.min, s.max = val, val
		return
	}
	delta := val - s.mean
	s.mean += delta / float64(s.n)
	s.m2 += delta * (val - s.mean)
	s.min = math.Min(s.min, val)
	s.max = math.Max(s.max, val)
}

func (s *Running) Mean() float64 {
	return s.mean
}

func (s *Running) Variance() float64 {
	if s.n <= 1 {
		return 0.0
	}
	return s.m2 / float64(s.n-1)
}

func (s *Running) Stdev() float64 {
	return math.Sqrt(s.Variance())
}

// StandardError of the mean. Zero before any value is pushed.
func (s *Running) StandardError() float64 {
	if s.n == 0 {
		return 0.0
	}
	return math.Sqrt(s.Variance() / float64(s.n))
}

// Interval is the normal-approximation confidence interval of the mean at
// the given confidence, in percent.
func (s *Running) Interval(confidence float64) (float64, float64) {
	half := ZVal(confidence) * s.StandardError()
	return s.mean - half, s.mean + half
}

func (s *Running) Last() float64 {
	return s.last
}

func (s *Running) Min() float64 {
	return s.min
}

func (s *Running) Max() float64 {
	return s.max
}

func (s *Running) Count() int {
	return s.n
}
