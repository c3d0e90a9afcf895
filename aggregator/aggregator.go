// Package aggregator folds parsed rows of one processing run into
// month-keyed totals.
package aggregator

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"practice-insights/allocator"
	"practice-insights/metrics"
	"practice-insights/models"
)

// Input holds the parsed rows of one processing run.
type Input struct {
	Appointments []models.AppointmentRow
	DNA          []models.SlotCountRow
	Unused       []models.SlotCountRow
	Online       []models.OnlineRequest
	Telephony    []models.TelephonyStats
}

// Result holds the totals of one run as chronologically sorted slices.
type Result struct {
	Months   []models.MonthBucket
	Staff    []models.StaffMonthRecord
	Slots    []models.SlotMonthRecord
	Combined []models.CombinedMonthRecord

	// Fallback counts secondary rows attributed to the first month because
	// their own month or staff member was unknown.
	Fallback int
	// Dropped counts secondary rows discarded for the same reason.
	Dropped int
}

type countKind int

const (
	dnaCount countKind = iota
	unusedCount
)

// aggregation owns the maps of a single run. It is never reused.
type aggregation struct {
	cfg models.Config
	log *zap.Logger

	months   map[string]*models.MonthBucket
	staff    map[models.StaffKey]*models.StaffMonthRecord
	slots    map[models.SlotKey]*models.SlotMonthRecord
	combined map[models.CombinedKey]*models.CombinedMonthRecord
	days     map[string]map[string]bool
	known    map[string]bool
	first    string

	fallback int
	dropped  int
}

// Aggregate runs the appointments pass first, so that every later pass sees
// the full set of months and staff members, then the DNA, unused, online
// and telephony passes.
func Aggregate(in Input, cfg models.Config, log *zap.Logger) *Result {
	if log == nil {
		log = zap.NewNop()
	}
	a := &aggregation{
		cfg:      cfg.WithDefaults(),
		log:      log,
		months:   make(map[string]*models.MonthBucket),
		staff:    make(map[models.StaffKey]*models.StaffMonthRecord),
		slots:    make(map[models.SlotKey]*models.SlotMonthRecord),
		combined: make(map[models.CombinedKey]*models.CombinedMonthRecord),
		days:     make(map[string]map[string]bool),
		known:    make(map[string]bool),
	}

	a.addAppointments(in.Appointments)
	a.addSlotCounts(in.DNA, dnaCount)
	a.addSlotCounts(in.Unused, unusedCount)
	a.addOnline(in.Online)
	a.addTelephony(in.Telephony)

	return a.result()
}

func (a *aggregation) addAppointments(rows []models.AppointmentRow) {
	for _, row := range rows {
		if row.Count <= 0 {
			continue
		}
		key := models.MonthKey(row.Date)
		b := a.bucket(key, row.Date)
		b.TotalAppts += row.Count

		if isWeekday(row.Date) {
			if a.days[key] == nil {
				a.days[key] = make(map[string]bool)
			}
			a.days[key][row.Date.Format("2006-01-02")] = true
		}

		a.known[row.StaffName] = true
		a.staffRecord(key, row.StaffName).TotalAppts += row.Count
		a.slotRecord(key, row.SlotType, row.StaffName).TotalAppts += row.Count
		a.combinedRecord(key, row.StaffName, row.SlotType).TotalAppts += row.Count
	}

	var firstDate time.Time
	for key, b := range a.months {
		if a.first == "" || b.Date.Before(firstDate) {
			a.first, firstDate = key, b.Date
		}
	}
}

// addSlotCounts attributes dated rows to their own month and spreads the
// undated remainder with the allocator.
func (a *aggregation) addSlotCounts(rows []models.SlotCountRow, kind countKind) {
	source := "dna"
	if kind == unusedCount {
		source = "unused"
	}

	var (
		totals []allocator.Total
		index  = make(map[models.CombinedKey]int)
	)
	for _, row := range rows {
		if row.Dated {
			month, ok := a.resolve(row.Date, row.StaffName, source)
			if !ok {
				continue
			}
			a.addCount(month, row.StaffName, row.SlotType, float64(row.Count), kind)
			continue
		}

		if !a.known[row.StaffName] && a.cfg.UnknownMonth == models.UnknownMonthDrop {
			a.drop(source, row.StaffName)
			continue
		}
		key := models.CombinedKey{Staff: row.StaffName, SlotType: row.SlotType}
		i, ok := index[key]
		if !ok {
			i = len(totals)
			index[key] = i
			totals = append(totals, allocator.Total{StaffName: row.StaffName, SlotType: row.SlotType})
		}
		totals[i].Amount += float64(row.Count)
	}

	if len(totals) == 0 {
		return
	}
	if len(a.months) == 0 {
		for _, t := range totals {
			a.drop(source, t.StaffName)
		}
		return
	}
	for _, s := range allocator.Allocate(totals, a.activity(), a.cfg.Allocation) {
		a.addCount(s.Month, s.StaffName, s.SlotType, s.Amount, kind)
	}
}

func (a *aggregation) addCount(month, staff, slot string, amount float64, kind countKind) {
	sr := a.staffRecord(month, staff)
	lr := a.slotRecord(month, slot, staff)
	cr := a.combinedRecord(month, staff, slot)
	switch kind {
	case dnaCount:
		sr.DNACount += amount
		lr.DNACount += amount
		cr.DNACount += amount
	case unusedCount:
		sr.UnusedSlots += amount
		lr.UnusedSlots += amount
		cr.UnusedSlots += amount
	}
}

func (a *aggregation) addOnline(requests []models.OnlineRequest) {
	for _, req := range requests {
		month, ok := a.resolve(req.Submitted, "", "online")
		if !ok {
			continue
		}
		b := a.months[month]
		if b.Online == nil {
			b.Online = &models.OnlineBreakdown{
				ByAccessMethod: make(map[string]int),
				BySex:          make(map[string]int),
				ByAgeBand:      make(map[string]int),
			}
		}

		b.OnlineTotal++
		if req.IsMedical() {
			b.OnlineMedical++
			if req.ResolvedWithoutAppointment() {
				b.OnlineClinicalNoAppt++
			}
		} else {
			b.Online.Admin++
		}
		b.Online.ByAccessMethod[orUnknown(req.AccessMethod)]++
		b.Online.BySex[orUnknown(req.Sex)]++
		b.Online.ByAgeBand[AgeBand(req.Age)]++
	}
}

func (a *aggregation) addTelephony(reports []models.TelephonyStats) {
	for _, rep := range reports {
		month, ok := a.resolve(rep.PeriodStart, "", "telephony")
		if !ok {
			continue
		}
		b := a.months[month]
		if b.Telephony == nil {
			t := rep
			b.Telephony = &t
			continue
		}
		merged := MergeTelephony(*b.Telephony, rep)
		b.Telephony = &merged
	}
}

// resolve returns the month key a secondary row is attributed to. Rows
// whose month (or named staff member) never appeared in the appointments
// pass fall back to the first month or are dropped, per configuration.
func (a *aggregation) resolve(date time.Time, staff, source string) (string, bool) {
	key := models.MonthKey(date)
	_, monthKnown := a.months[key]
	staffKnown := staff == "" || a.known[staff]
	if monthKnown && staffKnown {
		return key, true
	}
	if a.cfg.UnknownMonth == models.UnknownMonthDrop || a.first == "" {
		a.drop(source, staff)
		return "", false
	}
	if !monthKnown {
		key = a.first
	}
	a.fallback++
	a.log.Debug("attributing row to first month",
		zap.String("source", source),
		zap.String("month", models.MonthKey(date)),
		zap.String("fallback", key),
	)
	return key, true
}

func (a *aggregation) drop(source, staff string) {
	a.dropped++
	metrics.RowsDroppedTotal.WithLabelValues(source).Inc()
	a.log.Debug("dropping row with unknown month or staff",
		zap.String("source", source),
		zap.String("staff", staff),
	)
}

func (a *aggregation) bucket(key string, date time.Time) *models.MonthBucket {
	b, ok := a.months[key]
	if !ok {
		b = &models.MonthBucket{MonthKey: key, Date: models.FirstOfMonth(date)}
		a.months[key] = b
	}
	return b
}

func (a *aggregation) staffRecord(month, staff string) *models.StaffMonthRecord {
	k := models.StaffKey{Month: month, Staff: staff}
	r, ok := a.staff[k]
	if !ok {
		r = &models.StaffMonthRecord{Month: month, StaffName: staff, IsGP: models.IsGP(staff)}
		a.staff[k] = r
	}
	return r
}

// slotRecord returns the slot record and marks GP activity; the flag is
// only ever set, never cleared.
func (a *aggregation) slotRecord(month, slot, staff string) *models.SlotMonthRecord {
	k := models.SlotKey{Month: month, SlotType: slot}
	r, ok := a.slots[k]
	if !ok {
		r = &models.SlotMonthRecord{Month: month, SlotType: slot}
		a.slots[k] = r
	}
	if models.IsGP(staff) {
		r.HasGPActivity = true
	}
	return r
}

func (a *aggregation) combinedRecord(month, staff, slot string) *models.CombinedMonthRecord {
	k := models.CombinedKey{Month: month, Staff: staff, SlotType: slot}
	r, ok := a.combined[k]
	if !ok {
		r = &models.CombinedMonthRecord{Month: month, StaffName: staff, SlotType: slot, IsGP: models.IsGP(staff)}
		a.combined[k] = r
	}
	return r
}

// activity summarises appointment volume for the allocator.
func (a *aggregation) activity() allocator.Activity {
	act := allocator.Activity{
		Volume:      make(map[string]int, len(a.months)),
		StaffMonths: make(map[string][]string),
	}
	for _, b := range a.sortedBuckets() {
		act.Months = append(act.Months, b.MonthKey)
		act.Volume[b.MonthKey] = b.TotalAppts
	}
	for _, r := range a.sortedStaff() {
		if r.TotalAppts > 0 {
			act.StaffMonths[r.StaffName] = append(act.StaffMonths[r.StaffName], r.Month)
		}
	}
	return act
}

func (a *aggregation) result() *Result {
	res := &Result{
		Months:   a.sortedBuckets(),
		Staff:    a.sortedStaff(),
		Fallback: a.fallback,
		Dropped:  a.dropped,
	}

	res.Slots = make([]models.SlotMonthRecord, 0, len(a.slots))
	for _, r := range a.slots {
		res.Slots = append(res.Slots, *r)
	}
	sort.Slice(res.Slots, func(i, j int) bool {
		if res.Slots[i].Month != res.Slots[j].Month {
			return a.before(res.Slots[i].Month, res.Slots[j].Month)
		}
		return res.Slots[i].SlotType < res.Slots[j].SlotType
	})

	res.Combined = make([]models.CombinedMonthRecord, 0, len(a.combined))
	for _, r := range a.combined {
		res.Combined = append(res.Combined, *r)
	}
	sort.Slice(res.Combined, func(i, j int) bool {
		x, y := res.Combined[i], res.Combined[j]
		if x.Month != y.Month {
			return a.before(x.Month, y.Month)
		}
		if x.StaffName != y.StaffName {
			return x.StaffName < y.StaffName
		}
		return x.SlotType < y.SlotType
	})
	return res
}

func (a *aggregation) sortedBuckets() []models.MonthBucket {
	out := make([]models.MonthBucket, 0, len(a.months))
	for key, b := range a.months {
		m := *b
		m.WorkingDays = len(a.days[key])
		out = append(out, m)
	}
	models.SortBuckets(out)
	return out
}

func (a *aggregation) sortedStaff() []models.StaffMonthRecord {
	out := make([]models.StaffMonthRecord, 0, len(a.staff))
	for _, r := range a.staff {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Month != out[j].Month {
			return a.before(out[i].Month, out[j].Month)
		}
		return out[i].StaffName < out[j].StaffName
	})
	return out
}

// before orders month keys by their bucket date, never lexically.
func (a *aggregation) before(x, y string) bool {
	return a.months[x].Date.Before(a.months[y].Date)
}

func isWeekday(t time.Time) bool {
	d := t.Weekday()
	return d != time.Saturday && d != time.Sunday
}

func orUnknown(v string) string {
	if v == "" {
		return "Unknown"
	}
	return v
}
