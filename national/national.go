// Package national compares one practice's metric against a population of
// other practices.
package national

import (
	"math"
	"sort"

	"practice-insights/metrics"
	"practice-insights/models"
)

// Direction is the side of the mean a value sits on.
type Direction string

const (
	DirectionAbove Direction = "above"
	DirectionBelow Direction = "below"
	DirectionNone  Direction = "none"
)

// Stats is the location and spread of a distribution.
type Stats struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stdDev"`
}

// Outlier is the result of DetectOutlier. Deviations is |ZScore|.
type Outlier struct {
	IsOutlier  bool      `json:"isOutlier"`
	ZScore     float64   `json:"zScore"`
	Direction  Direction `json:"direction"`
	Deviations float64   `json:"deviations"`
}

// DetectOutlier flags value when its z-score exceeds threshold in absolute
// terms. A non-positive threshold means models.DefaultOutlierThreshold. A
// zero standard deviation never yields an outlier.
func DetectOutlier(value float64, s Stats, threshold float64) Outlier {
	if threshold <= 0 {
		threshold = models.DefaultOutlierThreshold
	}
	if s.StdDev == 0 || math.IsNaN(s.StdDev) {
		return Outlier{Direction: DirectionNone}
	}

	z := (value - s.Mean) / s.StdDev
	out := Outlier{
		IsOutlier:  math.Abs(z) > threshold,
		ZScore:     z,
		Deviations: math.Abs(z),
		Direction:  DirectionNone,
	}
	switch {
	case z > 0:
		out.Direction = DirectionAbove
	case z < 0:
		out.Direction = DirectionBelow
	}
	return out
}

// Distribution summarises the values of one metric across practices.
type Distribution struct {
	Values []float64 `json:"values"`
	Count  int       `json:"count"`
	Mean   float64   `json:"mean"`
	StdDev float64   `json:"stdDev"`
	Min    float64   `json:"min"`
	Max    float64   `json:"max"`
}

// NewDistribution computes mean, population standard deviation and range.
// Values are kept in ascending order.
func NewDistribution(values []float64) Distribution {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	d := Distribution{Values: sorted, Count: len(sorted)}
	if len(sorted) == 0 {
		return d
	}

	sum := 0.0
	for _, v := range sorted {
		sum += v
	}
	d.Mean = sum / float64(len(sorted))

	variance := 0.0
	for _, v := range sorted {
		variance += (v - d.Mean) * (v - d.Mean)
	}
	d.StdDev = math.Sqrt(variance / float64(len(sorted)))
	d.Min = sorted[0]
	d.Max = sorted[len(sorted)-1]
	return d
}

// Stats returns the mean and standard deviation of d.
func (d Distribution) Stats() Stats {
	return Stats{Mean: d.Mean, StdDev: d.StdDev}
}

// Percentile is the share of values strictly below value, on a 0-100
// scale. It is nil for an empty population.
func Percentile(value float64, values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	below := 0
	for _, v := range values {
		if v < value {
			below++
		}
	}
	p := float64(below) / float64(len(values)) * 100
	return &p
}

// Rank is the 1-indexed position of value among values, best first. When
// higherIsBetter the order is descending, otherwise ascending. Ties share
// the better rank.
func Rank(value float64, values []float64, higherIsBetter bool) int {
	better := 0
	for _, v := range values {
		if (higherIsBetter && v > value) || (!higherIsBetter && v < value) {
			better++
		}
	}
	return better + 1
}

// Comparison places one value within a distribution.
type Comparison struct {
	Metric       string       `json:"metric"`
	Value        float64      `json:"value"`
	Distribution Distribution `json:"distribution"`
	Rank         int          `json:"rank"`
	Of           int          `json:"of"` // peers plus the compared value
	Percentile   *float64     `json:"percentile"`
	Outlier      Outlier      `json:"outlier"`
	// Sufficient is false when fewer than two practices are available;
	// spread-based figures are then left at their zero values.
	Sufficient bool `json:"sufficient"`
}

// Compare places value within values for metric.
func Compare(metric string, value float64, values []float64, threshold float64) Comparison {
	def, _ := Lookup(metric)
	dist := NewDistribution(values)
	c := Comparison{
		Metric:       metric,
		Value:        value,
		Distribution: dist,
		Rank:         Rank(value, values, def.HigherIsBetter),
		Of:           len(values) + 1,
		Percentile:   Percentile(value, values),
		Outlier:      Outlier{Direction: DirectionNone},
		Sufficient:   len(values) >= 2,
	}
	if c.Sufficient {
		c.Outlier = DetectOutlier(value, dist.Stats(), threshold)
		if c.Outlier.IsOutlier {
			metrics.OutliersFlaggedTotal.WithLabelValues(string(c.Outlier.Direction)).Inc()
		}
	}
	return c
}
