package pipeline_test

import (
	stderrors "errors"
	"strings"
	"testing"

	"practice-insights/errors"
	"practice-insights/models"
	"practice-insights/parser"
	"practice-insights/pipeline"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const appointmentsCSV = `Date,Staff,Slot Type,Total Appointments
06/01/2025,Dr Smith,Routine,40
07/01/2025,Nurse Jones,Routine,20
03/02/2025,Dr Smith,Routine,50
04/03/2025,Dr Smith,Routine,60
not a date,Dr Smith,Routine,5
`

func source(name, body string) *parser.Source {
	return &parser.Source{Name: name, Reader: strings.NewReader(body)}
}

func TestProcess_EndToEnd(t *testing.T) {
	in := pipeline.Inputs{
		Appointments: source("appointments.csv", appointmentsCSV),
		DNA:          source("dna.csv", "Staff,Appointment Count\nDr Smith,6\n"),
	}
	res, err := pipeline.Process(in, models.Config{Population: 5600}, zap.NewNop())
	require.NoError(t, err)

	require.Len(t, res.Months, 3)
	for _, m := range res.Months {
		assert.NotNil(t, m.GPApptPerDayPct, m.Month)
	}
	assert.Equal(t, []string{"Jan-25", "Feb-25", "Mar-25"}, []string{res.Months[0].Month, res.Months[1].Month, res.Months[2].Month})
	assert.Equal(t, 1, res.Skipped[parser.KindAppointments])
	assert.NotEmpty(t, res.RunID)

	series, ok := res.Forecasts[pipeline.SeriesTotalAppts]
	require.True(t, ok)
	assert.True(t, series.HasData)
	assert.Len(t, series.Labels, 5)
	assert.Equal(t, []string{"Apr-25", "May-25"}, series.Labels[3:])
	assert.Nil(t, series.Actual[3])
	assert.Len(t, series.Projected, 5)

	// The undated DNA total is spread evenly over Dr Smith's three months.
	var dna float64
	for _, s := range res.Staff {
		if s.StaffName == "Dr Smith" {
			assert.InDelta(t, 2.0, s.DNACount, 1e-9)
			dna += s.DNACount
		}
	}
	assert.InDelta(t, 6.0, dna, 1e-9)

	_, hasCalls := res.Forecasts[pipeline.SeriesInboundCalls]
	assert.False(t, hasCalls)
	assert.Nil(t, res.FollowUp)
	assert.Nil(t, res.Workforce)
}

func TestProcess_OptionalInputs(t *testing.T) {
	in := pipeline.Inputs{
		Appointments: source("appointments.csv", appointmentsCSV),
		Online:       source("online.csv", "Submission started,Type,Outcome\n10/01/2025 09:30,Medical,Resolved without appointment\n"),
		Workforce:    source("workforce.csv", "TOTAL_GP_PTNR_PROV_FTE,TOTAL_NURSES_FTE\n2,1\n"),
		FollowUp: []parser.Source{
			*source("a.csv", "Clinician,Appointment Date,Patient ID\nDr A,01/01/2024,P1\nDr A,05/01/2024,P1\n"),
			*source("b.csv", "Clinician,Appointment Date,Patient ID\nDr B,20/01/2024,P1\nDr A,05/01/2024,P1\n"),
		},
		Telephony: []pipeline.TelephonyText{
			{Name: "jan.pdf", Text: "Period 01 Jan 2025 to 31 Jan 2025\nInbound Received 1,000\nInbound Answered 800\n"},
			{Name: "blank.pdf", Text: "nothing to see"},
		},
	}
	cfg := models.Config{Population: 5600, UseOnline: true, UseTelephony: true}

	res, err := pipeline.Process(in, cfg, nil)
	require.NoError(t, err)

	assert.Len(t, res.Online, 1)
	assert.Equal(t, 1, res.Months[0].OnlineTotal)
	assert.Equal(t, 1, res.Skipped[parser.KindTelephony])
	require.NotNil(t, res.Months[0].InboundCalls)
	assert.Equal(t, 1000.0, *res.Months[0].InboundCalls)

	calls, ok := res.Forecasts[pipeline.SeriesInboundCalls]
	require.True(t, ok)
	assert.False(t, calls.HasData, "one month of call data is not enough to forecast")
	assert.Equal(t, 1, calls.Count)

	require.NotNil(t, res.FollowUp)
	assert.Equal(t, 3, res.FollowUp.Appointments, "duplicate across files removed")
	assert.Equal(t, 2, res.FollowUp.AnyDoctor.Total)
	assert.Equal(t, 1, res.FollowUp.SameGP.Total)

	require.NotNil(t, res.Workforce)
	assert.Equal(t, 3.0, res.Workforce.Totals.TotalWte)
}

func TestProcess_NoForecast(t *testing.T) {
	in := pipeline.Inputs{Appointments: source("appointments.csv", appointmentsCSV)}
	res, err := pipeline.Process(in, models.Config{Population: 5600, ForecastPeriods: models.NoForecast}, nil)
	require.NoError(t, err)

	series := res.Forecasts[pipeline.SeriesTotalAppts]
	assert.True(t, series.HasData)
	assert.Equal(t, []string{"Jan-25", "Feb-25", "Mar-25"}, series.Labels)
	assert.Len(t, series.Projected, 3)
	assert.Equal(t, models.NoForecast, res.Config.ForecastPeriods)
}

func TestProcess_MonthlyWorkforce(t *testing.T) {
	in := pipeline.Inputs{
		Appointments: source("appointments.csv", appointmentsCSV),
		Workforce: source("workforce.csv", "PRAC_CODE,Reporting Month,TOTAL_GP_PTNR_PROV_FTE\n"+
			"A81001,2025-01,4\nA81001,2025-02,4\nA81001,2025-03,4\n"),
	}
	res, err := pipeline.Process(in, models.Config{Population: 5600}, nil)
	require.NoError(t, err)

	require.NotNil(t, res.Workforce)
	assert.Equal(t, "Mar-25", res.Workforce.Month)
	assert.InDelta(t, 4.0, res.Workforce.Totals.TotalWteGP, 1e-9)
	assert.Len(t, res.Workforce.Periods, 3)
}

func TestProcess_ChannelsDisabled(t *testing.T) {
	in := pipeline.Inputs{
		Appointments: source("appointments.csv", appointmentsCSV),
		Online:       source("online.csv", "this is not read"),
		Telephony:    []pipeline.TelephonyText{{Name: "jan.pdf", Text: "01 Jan 2025 Inbound Received 10"}},
	}
	res, err := pipeline.Process(in, models.Config{Population: 5600}, nil)
	require.NoError(t, err)
	assert.Empty(t, res.Online)
	assert.Nil(t, res.Months[0].InboundCalls)
}

func TestProcess_Errors(t *testing.T) {
	t.Run("MissingAppointments", func(t *testing.T) {
		_, err := pipeline.Process(pipeline.Inputs{}, models.Config{}, nil)
		assert.ErrorIs(t, err, errors.ErrMissingAppointments)
	})

	t.Run("NoParseableDates", func(t *testing.T) {
		in := pipeline.Inputs{Appointments: source("a.csv", "Date,Staff,Total Appointments\nsoon,Dr A,3\n")}
		_, err := pipeline.Process(in, models.Config{}, nil)
		assert.ErrorIs(t, err, errors.ErrNoMonths)
	})

	t.Run("ForbiddenColumn", func(t *testing.T) {
		in := pipeline.Inputs{
			Appointments: source("appointments.csv", appointmentsCSV),
			DNA:          source("dna.csv", "Staff,Appointment Count,NHS Number\nDr Smith,1,123\n"),
		}
		_, err := pipeline.Process(in, models.Config{}, nil)

		var herr *errors.HeaderError
		require.True(t, stderrors.As(err, &herr))
		assert.Equal(t, "dna.csv", herr.File)
		assert.Equal(t, "NHS Number", herr.Column)
		assert.ErrorIs(t, err, errors.ErrForbiddenColumn)
	})
}
