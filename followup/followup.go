// Package followup measures how soon patients come back after a GP
// appointment, to any doctor and to the same doctor.
package followup

import (
	"sort"
	"time"

	"practice-insights/calculator"
	"practice-insights/models"
)

// Buckets counts gaps by band. NoReturn is only used by anchor-based
// breakdowns, where an appointment may have no later visit at all.
type Buckets struct {
	Within7    int `json:"within7"`
	Days8to14  int `json:"days8to14"`
	Days15to28 int `json:"days15to28"`
	Over28     int `json:"over28"`
	NoReturn   int `json:"noReturn"`
}

// Rates holds banded gap counts and cumulative percentages over Total.
// Rates are nil when Total is zero.
type Rates struct {
	Total    int      `json:"total"`
	Buckets  Buckets  `json:"buckets"`
	Within7  *float64 `json:"within7"`
	Within14 *float64 `json:"within14"`
	Within28 *float64 `json:"within28"`
}

// ClinicianRates is the breakdown for one "Dr" clinician.
type ClinicianRates struct {
	Clinician    string `json:"clinician"`
	Appointments int    `json:"appointments"`
	// SameGP covers consecutive pairs where this clinician saw the
	// patient both times.
	SameGP Rates `json:"sameGP"`
	// Return treats every appointment as an anchor and asks whether the
	// patient came back to any clinician.
	Return Rates `json:"return"`
}

// MonthRates buckets pairs by the month of their first appointment.
type MonthRates struct {
	Month     string    `json:"month"`
	Date      time.Time `json:"date"`
	AnyDoctor Rates     `json:"anyDoctor"`
	SameGP    Rates     `json:"sameGP"`
}

// Result is the follow-up summary of one set of appointments.
type Result struct {
	Patients     int              `json:"patients"`
	Appointments int              `json:"appointments"`
	AnyDoctor    Rates            `json:"anyDoctor"`
	SameGP       Rates            `json:"sameGP"`
	Clinicians   []ClinicianRates `json:"clinicians"`
	Monthly      []MonthRates     `json:"monthly"`
}

// pair is two consecutive appointments of one patient.
type pair struct {
	prior models.FollowUpAppointment
	next  models.FollowUpAppointment
}

func (p pair) gap() int {
	return GapDays(p.prior.Date, p.next.Date)
}

func (p pair) sameClinician() bool {
	return p.prior.Clinician == p.next.Clinician
}

// Compute runs the follow-up analysis. Input should already be merged and
// deduplicated. Only clinicians with a "Dr" prefix take part in the
// any-doctor and same-GP pairs; anyone may be the target of a return visit
// in the per-clinician breakdown.
func Compute(appts []models.FollowUpAppointment) *Result {
	byPatient := make(map[string][]models.FollowUpAppointment)
	for _, a := range appts {
		byPatient[a.PatientID] = append(byPatient[a.PatientID], a)
	}

	res := &Result{Patients: len(byPatient), Appointments: len(appts)}
	var (
		anyDoctor tally
		sameGP    tally
		clinics   = make(map[string]*clinicianTally)
		months    = make(map[string]*monthTally)
	)

	for _, seq := range byPatient {
		sortAppointments(seq)

		for i, a := range seq {
			if !models.HasDoctorPrefix(a.Clinician) {
				continue
			}
			c := clinicianFor(clinics, a.Clinician)
			c.appointments++
			if i+1 < len(seq) {
				c.ret.add(GapDays(a.Date, seq[i+1].Date))
			} else {
				c.ret.noReturn()
			}
		}

		for _, p := range doctorPairs(seq) {
			gap := p.gap()
			anyDoctor.add(gap)
			m := monthFor(months, p.prior.Date)
			m.anyDoctor.add(gap)
			if p.sameClinician() {
				sameGP.add(gap)
				m.sameGP.add(gap)
				clinicianFor(clinics, p.prior.Clinician).same.add(gap)
			}
		}
	}

	res.AnyDoctor = anyDoctor.rates()
	res.SameGP = sameGP.rates()

	res.Clinicians = make([]ClinicianRates, 0, len(clinics))
	for name, c := range clinics {
		res.Clinicians = append(res.Clinicians, ClinicianRates{
			Clinician:    name,
			Appointments: c.appointments,
			SameGP:       c.same.rates(),
			Return:       c.ret.rates(),
		})
	}
	sort.Slice(res.Clinicians, func(i, j int) bool {
		return res.Clinicians[i].Clinician < res.Clinicians[j].Clinician
	})

	res.Monthly = make([]MonthRates, 0, len(months))
	for key, m := range months {
		res.Monthly = append(res.Monthly, MonthRates{
			Month:     key,
			Date:      m.date,
			AnyDoctor: m.anyDoctor.rates(),
			SameGP:    m.sameGP.rates(),
		})
	}
	sort.Slice(res.Monthly, func(i, j int) bool {
		return res.Monthly[i].Date.Before(res.Monthly[j].Date)
	})
	return res
}

// doctorPairs returns consecutive pairs over a patient's "Dr" appointments.
// seq must be sorted.
func doctorPairs(seq []models.FollowUpAppointment) []pair {
	var (
		out  []pair
		prev *models.FollowUpAppointment
	)
	for i := range seq {
		if !models.HasDoctorPrefix(seq[i].Clinician) {
			continue
		}
		if prev != nil {
			out = append(out, pair{prior: *prev, next: seq[i]})
		}
		prev = &seq[i]
	}
	return out
}

// GapDays is the number of whole calendar days from a to b.
func GapDays(a, b time.Time) int {
	da := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	db := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}

func sortAppointments(seq []models.FollowUpAppointment) {
	sort.SliceStable(seq, func(i, j int) bool {
		if !seq[i].Date.Equal(seq[j].Date) {
			return seq[i].Date.Before(seq[j].Date)
		}
		return seq[i].Clinician < seq[j].Clinician
	})
}

type tally struct {
	total   int
	buckets Buckets
}

func (t *tally) add(gap int) {
	t.total++
	switch {
	case gap <= 7:
		t.buckets.Within7++
	case gap <= 14:
		t.buckets.Days8to14++
	case gap <= 28:
		t.buckets.Days15to28++
	default:
		t.buckets.Over28++
	}
}

func (t *tally) noReturn() {
	t.total++
	t.buckets.NoReturn++
}

func (t tally) rates() Rates {
	b := t.buckets
	total := float64(t.total)
	return Rates{
		Total:    t.total,
		Buckets:  b,
		Within7:  calculator.Percentage(float64(b.Within7), total),
		Within14: calculator.Percentage(float64(b.Within7+b.Days8to14), total),
		Within28: calculator.Percentage(float64(b.Within7+b.Days8to14+b.Days15to28), total),
	}
}

type clinicianTally struct {
	appointments int
	same         tally
	ret          tally
}

func clinicianFor(m map[string]*clinicianTally, name string) *clinicianTally {
	c, ok := m[name]
	if !ok {
		c = &clinicianTally{}
		m[name] = c
	}
	return c
}

type monthTally struct {
	date      time.Time
	anyDoctor tally
	sameGP    tally
}

func monthFor(m map[string]*monthTally, date time.Time) *monthTally {
	key := models.MonthKey(date)
	t, ok := m[key]
	if !ok {
		t = &monthTally{date: models.FirstOfMonth(date)}
		m[key] = t
	}
	return t
}
