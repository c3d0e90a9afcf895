// Package forecast projects monthly series forward with an ordinary least
// squares line fitted over the month index.
package forecast

import (
	"math"
	"time"

	"practice-insights/models"
)

// MinPoints is the shortest series a regression is attempted on.
const MinPoints = 3

// stableSlope is the largest absolute slope still classed as stable.
const stableSlope = 0.01

// Trend classifies the direction of a fitted series.
type Trend string

const (
	TrendIncreasing       Trend = "increasing"
	TrendDecreasing       Trend = "decreasing"
	TrendStable           Trend = "stable"
	TrendInsufficientData Trend = "insufficient_data"
)

// Confidence grades a projection by the fit of its regression.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Regression is a least-squares line y = Slope*x + Intercept with x the
// one-based index of each point.
type Regression struct {
	Slope     float64 `json:"slope"`
	Intercept float64 `json:"intercept"`
	R2        float64 `json:"r2"`
}

// Predict returns the fitted value at index x.
func (r Regression) Predict(x float64) float64 {
	return r.Slope*x + r.Intercept
}

// Point is one projected period.
type Point struct {
	PeriodOffset int        `json:"periodOffset"`
	Value        float64    `json:"value"`
	Confidence   Confidence `json:"confidence"`
}

// Forecast is the result of ForecastValues.
type Forecast struct {
	Forecasts     []Point `json:"forecasts"`
	Trend         Trend   `json:"trend"`
	MonthlyChange float64 `json:"monthlyChange"`
	R2            float64 `json:"r2"`
}

// LinearRegression fits series against its index. A series with no
// variance that the line reproduces exactly has R2 = 1.
func LinearRegression(series []float64) Regression {
	n := float64(len(series))
	if n == 0 {
		return Regression{}
	}

	var sumX, sumY, sumXY, sumXX float64
	for i, y := range series {
		x := float64(i + 1)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}

	var slope float64
	if den := n*sumXX - sumX*sumX; den != 0 {
		slope = (n*sumXY - sumX*sumY) / den
	}
	reg := Regression{Slope: slope, Intercept: (sumY - slope*sumX) / n}

	meanY := sumY / n
	var ssTot, ssRes float64
	for i, y := range series {
		ssTot += (y - meanY) * (y - meanY)
		r := y - reg.Predict(float64(i + 1))
		ssRes += r * r
	}
	switch {
	case ssTot == 0 && ssRes == 0:
		reg.R2 = 1
	case ssTot == 0:
		reg.R2 = 0
	default:
		reg.R2 = math.Max(0, 1-ssRes/ssTot)
	}
	return reg
}

// ForecastValues projects periodsAhead points past the end of series.
// Fewer than MinPoints values yield no forecasts and TrendInsufficientData.
// Projected values never go below zero.
func ForecastValues(series []float64, periodsAhead int) Forecast {
	if len(series) < MinPoints {
		return Forecast{Forecasts: []Point{}, Trend: TrendInsufficientData}
	}

	reg := LinearRegression(series)
	conf := confidenceFor(reg.R2)
	points := make([]Point, 0, max(periodsAhead, 0))
	for k := 1; k <= periodsAhead; k++ {
		x := float64(len(series) + k)
		points = append(points, Point{
			PeriodOffset: k,
			Value:        math.Max(0, reg.Predict(x)),
			Confidence:   conf,
		})
	}
	return Forecast{
		Forecasts:     points,
		Trend:         ClassifyTrend(reg.Slope),
		MonthlyChange: reg.Slope,
		R2:            reg.R2,
	}
}

// ClassifyTrend maps a slope to a trend.
func ClassifyTrend(slope float64) Trend {
	switch {
	case math.Abs(slope) <= stableSlope:
		return TrendStable
	case slope > 0:
		return TrendIncreasing
	default:
		return TrendDecreasing
	}
}

func confidenceFor(r2 float64) Confidence {
	switch {
	case r2 >= 0.7:
		return ConfidenceHigh
	case r2 >= 0.4:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// BuildSeries turns a monthly series into chart data: the month labels plus
// periods future labels, actual values padded with nulls, and the fitted
// line over every label. last is the date of the final actual month.
func BuildSeries(metric string, labels []string, last time.Time, values []float64, periods int) models.ForecastSeries {
	if len(values) < MinPoints {
		return models.ForecastSeries{
			Metric: metric,
			Count:  len(values),
			Trend:  string(TrendInsufficientData),
		}
	}

	reg := LinearRegression(values)
	out := models.ForecastSeries{
		Metric:  metric,
		HasData: true,
		Count:   len(values),
		Slope:   reg.Slope,
		R2:      reg.R2,
		Trend:   string(ClassifyTrend(reg.Slope)),
	}

	out.Labels = append(append([]string{}, labels...), models.NextMonthKeys(last, periods)...)
	out.Actual = make([]*float64, len(out.Labels))
	for i := range values {
		v := values[i]
		out.Actual[i] = &v
	}
	out.Projected = make([]float64, len(out.Labels))
	for i := range out.Labels {
		out.Projected[i] = math.Max(0, reg.Predict(float64(i+1)))
	}
	return out
}
