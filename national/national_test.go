package national_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"practice-insights/errors"
	"practice-insights/models"
	"practice-insights/national"
	"practice-insights/share"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectOutlier(t *testing.T) {
	tests := map[string]struct {
		value     float64
		stats     national.Stats
		threshold float64
		outlier   bool
		z         float64
		direction national.Direction
	}{
		"FarAbove":      {value: 100, stats: national.Stats{Mean: 50, StdDev: 10}, threshold: 1.5, outlier: true, z: 5, direction: national.DirectionAbove},
		"FarBelow":      {value: 20, stats: national.Stats{Mean: 50, StdDev: 10}, threshold: 1.5, outlier: true, z: -3, direction: national.DirectionBelow},
		"WithinBand":    {value: 60, stats: national.Stats{Mean: 50, StdDev: 10}, threshold: 1.5, z: 1, direction: national.DirectionAbove},
		"OnThreshold":   {value: 65, stats: national.Stats{Mean: 50, StdDev: 10}, threshold: 1.5, z: 1.5, direction: national.DirectionAbove},
		"DefaultThresh": {value: 66, stats: national.Stats{Mean: 50, StdDev: 10}, outlier: true, z: 1.6, direction: national.DirectionAbove},
		"AtMean":        {value: 50, stats: national.Stats{Mean: 50, StdDev: 10}, threshold: 1.5, direction: national.DirectionNone},
		"NoSpread":      {value: 50, stats: national.Stats{Mean: 50}, threshold: 1.5, direction: national.DirectionNone},
		"NoSpreadAway":  {value: 90, stats: national.Stats{Mean: 50}, threshold: 1.5, direction: national.DirectionNone},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			got := national.DetectOutlier(tt.value, tt.stats, tt.threshold)
			assert.Equal(t, tt.outlier, got.IsOutlier)
			assert.InDelta(t, tt.z, got.ZScore, 1e-9)
			assert.InDelta(t, abs(tt.z), got.Deviations, 1e-9)
			assert.Equal(t, tt.direction, got.Direction)
		})
	}
}

func TestNewDistribution(t *testing.T) {
	d := national.NewDistribution([]float64{4, 2, 8, 6})
	assert.Equal(t, []float64{2, 4, 6, 8}, d.Values)
	assert.Equal(t, 4, d.Count)
	assert.Equal(t, 5.0, d.Mean)
	assert.InDelta(t, 2.2360679775, d.StdDev, 1e-9)
	assert.Equal(t, 2.0, d.Min)
	assert.Equal(t, 8.0, d.Max)

	empty := national.NewDistribution(nil)
	assert.Zero(t, empty.Count)
	assert.Zero(t, empty.StdDev)
}

func TestPercentileAndRank(t *testing.T) {
	values := []float64{10, 20, 20, 30, 40}

	p := national.Percentile(30, values)
	require.NotNil(t, p)
	assert.InDelta(t, 60.0, *p, 1e-9)
	assert.Equal(t, 0.0, *national.Percentile(10, values))
	assert.Nil(t, national.Percentile(10, nil))

	assert.Equal(t, 2, national.Rank(30, values, true))
	assert.Equal(t, 4, national.Rank(30, values, false))
	// Ties share the better rank.
	assert.Equal(t, 3, national.Rank(20, values, true))
	assert.Equal(t, 2, national.Rank(20, values, false))
}

func TestCompare(t *testing.T) {
	c := national.Compare("dnaPct", 9, []float64{3, 4, 5, 4}, 1.5)
	assert.True(t, c.Sufficient)
	assert.Equal(t, 5, c.Rank) // lower is better for DNA
	assert.Equal(t, 5, c.Of)
	assert.True(t, c.Outlier.IsOutlier)
	assert.Equal(t, national.DirectionAbove, c.Outlier.Direction)

	t.Run("SinglePractice", func(t *testing.T) {
		c := national.Compare("utilization", 90, []float64{80}, 1.5)
		assert.False(t, c.Sufficient)
		assert.False(t, c.Outlier.IsOutlier)
		assert.Equal(t, 1, c.Rank)
		assert.Equal(t, 2, c.Of)
		require.NotNil(t, c.Percentile)
		assert.Equal(t, 100.0, *c.Percentile)
	})

	t.Run("RankWithinField", func(t *testing.T) {
		tests := map[string]struct {
			value    float64
			wantRank int
		}{
			"Best":   {value: 50, wantRank: 1},
			"Middle": {value: 25, wantRank: 3},
			"Worst":  {value: 10, wantRank: 4},
		}
		for name, tt := range tests {
			t.Run(name, func(t *testing.T) {
				c := national.Compare("utilization", tt.value, []float64{20, 30, 40}, 1.5)
				assert.Equal(t, tt.wantRank, c.Rank)
				assert.Equal(t, 4, c.Of)
				assert.LessOrEqual(t, c.Rank, c.Of)
			})
		}
	})
}

func TestLookup(t *testing.T) {
	m, ok := national.Lookup("utilization")
	require.True(t, ok)
	assert.True(t, m.HigherIsBetter)

	_, ok = national.Lookup("bogus")
	assert.False(t, ok)
	assert.Contains(t, national.MetricNames(), "gpTriageCapacityPerDayPct")
}

// failingStore wraps a MemoryStore and fails loads for selected ids.
type failingStore struct {
	*share.MemoryStore
	broken map[string]bool
}

func (s failingStore) Load(ctx context.Context, id string) (*share.Payload, error) {
	if s.broken[id] {
		return nil, fmt.Errorf("connection reset")
	}
	return s.MemoryStore.Load(ctx, id)
}

func savePractice(t *testing.T, s share.Store, utilization float64) string {
	t.Helper()
	u := utilization
	id, err := s.Save(context.Background(), &share.Payload{
		ProcessedData: []models.EnrichedMonth{{
			Month:       "Jan-25",
			Date:        time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
			Utilization: &u,
		}},
	})
	require.NoError(t, err)
	return id
}

func TestLoadPractices_PartialFailure(t *testing.T) {
	store := failingStore{MemoryStore: share.NewMemoryStore(time.Hour), broken: map[string]bool{"down": true}}
	a := savePractice(t, store, 80)
	b := savePractice(t, store, 90)

	practices, failures := national.LoadPractices(context.Background(), store, []string{a, "gone", b, "down"}, nil)

	require.Len(t, practices, 2)
	assert.Equal(t, a, practices[0].ShareID)
	assert.Equal(t, b, practices[1].ShareID)

	require.Len(t, failures, 2)
	assert.Equal(t, national.LoadFailure{ShareID: "gone", Status: national.StatusExpired, Error: failures[0].Error}, failures[0])
	assert.Equal(t, national.StatusError, failures[1].Status)
	assert.Equal(t, "connection reset", failures[1].Error)
}

func TestRun(t *testing.T) {
	store := share.NewMemoryStore(time.Hour)
	own := savePractice(t, store, 95)
	ids := []string{own}
	for _, v := range []float64{70, 72, 74, 76} {
		ids = append(ids, savePractice(t, store, v))
	}

	t.Run("FirstPracticeIsSubject", func(t *testing.T) {
		r, err := national.Run(context.Background(), store, national.Request{ShareIDs: ids, Metric: "utilization"}, nil)
		require.NoError(t, err)
		require.NotNil(t, r.Comparison)
		assert.Equal(t, 95.0, r.Comparison.Value)
		assert.Equal(t, 5, r.Comparison.Of)
		assert.Equal(t, 1, r.Comparison.Rank)
		assert.True(t, r.Comparison.Outlier.IsOutlier)
		assert.Len(t, r.Loaded, 5)
		assert.Empty(t, r.Failures)
	})

	t.Run("ExplicitValue", func(t *testing.T) {
		v := 73.0
		r, err := national.Run(context.Background(), store, national.Request{ShareIDs: ids[1:], Metric: "utilization", Value: &v}, nil)
		require.NoError(t, err)
		assert.Equal(t, 3, r.Comparison.Rank)
		assert.False(t, r.Comparison.Outlier.IsOutlier)
	})

	t.Run("AllExpired", func(t *testing.T) {
		r, err := national.Run(context.Background(), store, national.Request{ShareIDs: []string{"x", "y"}, Metric: "utilization"}, nil)
		require.NoError(t, err)
		assert.Nil(t, r.Comparison)
		assert.Len(t, r.Failures, 2)
	})

	t.Run("UnknownMetric", func(t *testing.T) {
		_, err := national.Run(context.Background(), store, national.Request{ShareIDs: ids, Metric: "bogus"}, nil)
		assert.ErrorIs(t, err, errors.ErrNotFound)
	})
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
