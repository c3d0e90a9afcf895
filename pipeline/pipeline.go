// Package pipeline runs one dashboard processing pass: parse the uploaded
// files, aggregate by month, derive KPIs, forecasts, follow-up rates and
// workforce ratios.
package pipeline

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"practice-insights/aggregator"
	"practice-insights/calculator"
	"practice-insights/errors"
	"practice-insights/followup"
	"practice-insights/forecast"
	"practice-insights/metrics"
	"practice-insights/models"
	"practice-insights/parser"
	"practice-insights/workforce"
)

// Forecast series keys.
const (
	SeriesTotalAppts   = "totalAppts"
	SeriesInboundCalls = "inboundCalls"
)

// TelephonyText is the extracted text of one telephony report.
type TelephonyText struct {
	Name string
	Text string
}

// Inputs are the files of one run. Only Appointments is required.
type Inputs struct {
	Appointments *parser.Source
	DNA          *parser.Source
	Unused       *parser.Source
	Online       *parser.Source
	Workforce    *parser.Source
	FollowUp     []parser.Source
	Telephony    []TelephonyText
}

// Result is everything derived from one run. It is built fresh each time.
type Result struct {
	RunID     string                           `json:"runId"`
	CreatedAt time.Time                        `json:"createdAt"`
	Config    models.Config                    `json:"config"`
	Months    []models.EnrichedMonth           `json:"months"`
	Forecasts map[string]models.ForecastSeries `json:"forecasts"`
	FollowUp  *followup.Result                 `json:"followUp,omitempty"`
	Workforce *models.WorkforceSummary         `json:"workforce,omitempty"`

	Online   []models.OnlineRequest       `json:"online,omitempty"`
	Staff    []models.StaffMonthRecord    `json:"staff"`
	Slots    []models.SlotMonthRecord     `json:"slots"`
	Combined []models.CombinedMonthRecord `json:"combined"`

	// Skipped counts unparseable rows per input kind.
	Skipped  map[parser.FileKind]int `json:"skipped"`
	Fallback int                     `json:"fallback"`
	Dropped  int                     `json:"dropped"`
}

// Process runs the whole pipeline. Header problems and a missing
// appointments file are fatal; bad rows are skipped and counted.
func Process(in Inputs, cfg models.Config, log *zap.Logger) (res *Result, err error) {
	if log == nil {
		log = zap.NewNop()
	}
	start := time.Now()
	metrics.ResetRunGauges()
	defer func() {
		metrics.PipelineDurationSeconds.Observe(time.Since(start).Seconds())
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		metrics.PipelineRunsTotal.WithLabelValues(outcome).Inc()
	}()

	if in.Appointments == nil {
		return nil, errors.ErrMissingAppointments
	}
	cfg = cfg.WithDefaults()
	res = &Result{
		RunID:     uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Config:    cfg,
		Forecasts: make(map[string]models.ForecastSeries),
		Skipped:   make(map[parser.FileKind]int),
	}

	agg, err := res.parse(in, cfg, log)
	if err != nil {
		return nil, err
	}

	totals := aggregator.Aggregate(agg, cfg, log)
	if len(totals.Months) == 0 {
		return nil, errors.ErrNoMonths
	}
	res.Staff, res.Slots, res.Combined = totals.Staff, totals.Slots, totals.Combined
	res.Fallback, res.Dropped = totals.Fallback, totals.Dropped

	res.Months = calculator.EnrichMonths(totals.Months, totals.Staff, cfg)
	metrics.MonthsProduced.Set(float64(len(res.Months)))
	res.forecast(cfg)

	if len(in.FollowUp) > 0 {
		rows, err := parser.MergeCSV(parser.KindFollowUp, in.FollowUp)
		if err != nil {
			return nil, err
		}
		appts, skipped := parser.FollowUpAppointments(rows, log)
		res.Skipped[parser.KindFollowUp] += skipped
		res.FollowUp = followup.Compute(appts)
	}

	if in.Workforce != nil {
		rows, err := parser.ReadCSV(in.Workforce.Name, parser.KindWorkforce, in.Workforce.Reader)
		if err != nil {
			return nil, err
		}
		if summary, ok := workforce.SummarisePeriods(workforce.Periods(rows), res.Months, cfg); ok {
			res.Workforce = &summary
		}
	}

	log.Info("processing run complete",
		zap.String("run_id", res.RunID),
		zap.Int("months", len(res.Months)),
		zap.Int("staff_records", len(res.Staff)),
		zap.Int("fallback", res.Fallback),
		zap.Int("dropped", res.Dropped),
		zap.Duration("elapsed", time.Since(start)),
	)
	return res, nil
}

// parse reads every input file into aggregator input. Online and telephony
// inputs are ignored when their channel is disabled.
func (r *Result) parse(in Inputs, cfg models.Config, log *zap.Logger) (aggregator.Input, error) {
	var agg aggregator.Input

	rows, err := parser.ReadCSV(in.Appointments.Name, parser.KindAppointments, in.Appointments.Reader)
	if err != nil {
		return agg, err
	}
	agg.Appointments, r.Skipped[parser.KindAppointments] = parser.AppointmentRows(rows, log)

	if in.DNA != nil {
		rows, err := parser.ReadCSV(in.DNA.Name, parser.KindDNA, in.DNA.Reader)
		if err != nil {
			return agg, err
		}
		agg.DNA, r.Skipped[parser.KindDNA] = parser.DNARows(rows, log)
	}

	if in.Unused != nil {
		rows, err := parser.ReadCSV(in.Unused.Name, parser.KindUnused, in.Unused.Reader)
		if err != nil {
			return agg, err
		}
		agg.Unused, r.Skipped[parser.KindUnused] = parser.UnusedRows(rows, log)
	}

	if cfg.UseOnline && in.Online != nil {
		rows, err := parser.ReadCSV(in.Online.Name, parser.KindOnline, in.Online.Reader)
		if err != nil {
			return agg, err
		}
		agg.Online, r.Skipped[parser.KindOnline] = parser.OnlineRequests(rows, log)
		r.Online = agg.Online
	}

	if cfg.UseTelephony {
		for _, t := range in.Telephony {
			stats, err := parser.ParseTelephony(t.Text)
			if err != nil {
				r.Skipped[parser.KindTelephony]++
				metrics.RowsSkippedTotal.WithLabelValues(string(parser.KindTelephony)).Inc()
				log.Warn("skipping telephony report", zap.String("file", t.Name), zap.Error(err))
				continue
			}
			agg.Telephony = append(agg.Telephony, stats)
		}
	}
	return agg, nil
}

// forecast builds the total appointments series and, with telephony, the
// inbound calls series over the months that carry call data.
func (r *Result) forecast(cfg models.Config) {
	var (
		labels []string
		values []float64
	)
	for _, m := range r.Months {
		labels = append(labels, m.Month)
		values = append(values, float64(m.TotalAppts))
	}
	last := r.Months[len(r.Months)-1].Date
	r.Forecasts[SeriesTotalAppts] = forecast.BuildSeries(SeriesTotalAppts, labels, last, values, cfg.Projections())

	if !cfg.UseTelephony {
		return
	}
	labels, values = nil, nil
	for _, m := range r.Months {
		if m.InboundCalls == nil {
			continue
		}
		labels = append(labels, m.Month)
		values = append(values, *m.InboundCalls)
		last = m.Date
	}
	if len(values) == 0 {
		return
	}
	r.Forecasts[SeriesInboundCalls] = forecast.BuildSeries(SeriesInboundCalls, labels, last, values, cfg.Projections())
}
