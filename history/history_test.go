package history_test

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"practice-insights/history"
	"practice-insights/models"
	"practice-insights/pipeline"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_SchemaName(t *testing.T) {
	tests := map[string]struct {
		schema string
		valid  bool
	}{
		"Plain":      {schema: "practice_insights", valid: true},
		"Trimmed":    {schema: "  reports ", valid: true},
		"Injection":  {schema: "x; DROP TABLE runs", valid: false},
		"LeadDigit":  {schema: "1reports", valid: false},
		"Empty":      {schema: "", valid: false},
		"Underscore": {schema: "_tmp", valid: true},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := history.New(&sql.DB{}, tt.schema)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

// TestSaveRun needs a live database; it runs only when
// PRACTICE_INSIGHTS_TEST_DB_URL is set.
func TestSaveRun(t *testing.T) {
	url := os.Getenv("PRACTICE_INSIGHTS_TEST_DB_URL")
	if url == "" {
		t.Skip("PRACTICE_INSIGHTS_TEST_DB_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store, err := history.Open(ctx, url, "practice_insights_test")
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.EnsureSchema(ctx))

	gp := 0.5
	res := &pipeline.Result{
		RunID:     uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Config:    models.Config{Population: 5600}.WithDefaults(),
		Months: []models.EnrichedMonth{
			{Month: "Jan-25", Date: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), TotalAppts: 100, GPAppts: 60, WorkingDays: 20, GPApptPerDayPct: &gp},
		},
	}
	assert.NoError(t, store.SaveRun(ctx, res))
	// Same id again violates the primary key and rolls back.
	assert.Error(t, store.SaveRun(ctx, res))
}
