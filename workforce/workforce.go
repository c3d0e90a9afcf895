// Package workforce maps role-level FTE and headcount figures into role
// group totals and WTE-normalised ratios.
package workforce

import (
	"sort"
	"strings"
	"time"

	"practice-insights/calculator"
	"practice-insights/models"
	"practice-insights/parser"
)

// Role binds one staff role to its export columns and the role groups it
// counts toward. A role may feed more than one group.
type Role struct {
	Name      string
	FteColumn string
	HcColumn  string
	Groups    []models.RoleGroup
}

var (
	gpClinical = []models.RoleGroup{models.RoleGroupGP, models.RoleGroupClinical}
	clinical   = []models.RoleGroup{models.RoleGroupClinical}
	arrsClin   = []models.RoleGroup{models.RoleGroupARRS, models.RoleGroupClinical}
	arrsOnly   = []models.RoleGroup{models.RoleGroupARRS}
	admin      = []models.RoleGroup{models.RoleGroupNonClinical}
)

// Roles is the static role mapping table.
var Roles = []Role{
	{Name: "GP Partner", FteColumn: "TOTAL_GP_PTNR_PROV_FTE", HcColumn: "TOTAL_GP_PTNR_PROV_HC", Groups: gpClinical},
	{Name: "Salaried GP", FteColumn: "TOTAL_GP_SAL_BY_PRAC_FTE", HcColumn: "TOTAL_GP_SAL_BY_PRAC_HC", Groups: gpClinical},
	{Name: "GP Registrar", FteColumn: "TOTAL_GP_TRN_GR_FTE", HcColumn: "TOTAL_GP_TRN_GR_HC", Groups: gpClinical},
	{Name: "GP Locum", FteColumn: "TOTAL_GP_LOCUM_FTE", HcColumn: "TOTAL_GP_LOCUM_HC", Groups: gpClinical},
	{Name: "Nurse", FteColumn: "TOTAL_NURSES_FTE", HcColumn: "TOTAL_NURSES_HC", Groups: clinical},
	{Name: "Direct Patient Care", FteColumn: "TOTAL_DPC_FTE", HcColumn: "TOTAL_DPC_HC", Groups: clinical},
	{Name: "Clinical Pharmacist", FteColumn: "TOTAL_ARRS_PHARMACIST_FTE", HcColumn: "TOTAL_ARRS_PHARMACIST_HC", Groups: arrsClin},
	{Name: "First Contact Physiotherapist", FteColumn: "TOTAL_ARRS_PHYSIO_FTE", HcColumn: "TOTAL_ARRS_PHYSIO_HC", Groups: arrsClin},
	{Name: "Paramedic", FteColumn: "TOTAL_ARRS_PARAMEDIC_FTE", HcColumn: "TOTAL_ARRS_PARAMEDIC_HC", Groups: arrsClin},
	{Name: "Social Prescriber", FteColumn: "TOTAL_ARRS_SOCIAL_PRESCRIBER_FTE", HcColumn: "TOTAL_ARRS_SOCIAL_PRESCRIBER_HC", Groups: arrsOnly},
	{Name: "Admin", FteColumn: "TOTAL_ADMIN_FTE", HcColumn: "TOTAL_ADMIN_HC", Groups: admin},
}

// Long-format exports carry one role per row under these columns.
const (
	colRole      = "Staff Role"
	colFte       = "FTE"
	colHeadcount = "Headcount"
)

// Columns identifying the practice and reporting month of a row, in order
// of preference.
var (
	practiceColumns = []string{"PRAC_CODE", "Practice Code", "ODS Code"}
	monthColumns    = []string{"Reporting Month", "Month", "Period", "Date"}
)

var monthLayouts = []string{
	"2006-01",
	"Jan-06",
	"Jan 2006",
	"January 2006",
	"01/2006",
}

var rolesByName = func() map[string]Role {
	m := make(map[string]Role, len(Roles))
	for _, r := range Roles {
		m[parser.NormalizeHeader(r.Name)] = r
	}
	return m
}()

// ParseReportingMonth reads a reporting month cell such as "2025-03",
// "Mar-25", "March 2025" or a full date. The result is the first of the
// month.
func ParseReportingMonth(value string) (time.Time, bool) {
	if t, err := parser.ParseDate(value); err == nil {
		return models.FirstOfMonth(t), true
	}
	value = strings.Join(strings.Fields(value), " ")
	for _, layout := range monthLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return models.FirstOfMonth(t), true
		}
	}
	return time.Time{}, false
}

// Periods groups rows by practice and reporting month and aggregates each
// group separately. Rows without a readable month form one undated period
// per practice. Practices keep their order of first appearance and each
// practice's periods are ordered by month, undated first.
func Periods(rows []models.Row) []models.WorkforcePeriod {
	type periodKey struct {
		practice string
		month    time.Time
	}
	var (
		keys   []periodKey
		groups = make(map[periodKey][]models.Row)
		order  = make(map[string]int)
	)
	for _, row := range rows {
		cells := normalized(row)
		k := periodKey{practice: firstCell(cells, practiceColumns)}
		if t, ok := ParseReportingMonth(firstCell(cells, monthColumns)); ok {
			k.month = t
		}
		if _, seen := order[k.practice]; !seen {
			order[k.practice] = len(order)
		}
		if _, seen := groups[k]; !seen {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], row)
	}

	sort.SliceStable(keys, func(i, j int) bool {
		if oi, oj := order[keys[i].practice], order[keys[j].practice]; oi != oj {
			return oi < oj
		}
		return keys[i].month.Before(keys[j].month)
	})

	out := make([]models.WorkforcePeriod, 0, len(keys))
	for _, k := range keys {
		p := models.WorkforcePeriod{Practice: k.practice, Totals: Aggregate(groups[k])}
		if !k.month.IsZero() {
			p.Date = k.month
			p.Month = models.MonthKey(k.month)
		}
		out = append(out, p)
	}
	return out
}

// Select picks the period a run is measured against. Only the first
// practice of the upload is considered: its latest period whose month is
// one of months, or else its latest period.
func Select(periods []models.WorkforcePeriod, months []models.EnrichedMonth) (models.WorkforcePeriod, bool) {
	if len(periods) == 0 {
		return models.WorkforcePeriod{}, false
	}
	inRun := make(map[string]bool, len(months))
	for _, m := range months {
		inRun[m.Month] = true
	}

	practice := periods[0].Practice
	var latest, matched *models.WorkforcePeriod
	for i := range periods {
		p := &periods[i]
		if p.Practice != practice {
			continue
		}
		latest = p
		if p.Month != "" && inRun[p.Month] {
			matched = p
		}
	}
	if matched != nil {
		return *matched, true
	}
	return *latest, true
}

// SummarisePeriods summarises the selected period. When its month is one
// of months, actual volumes come from that month alone; otherwise they are
// the monthly means of the run.
func SummarisePeriods(periods []models.WorkforcePeriod, months []models.EnrichedMonth, cfg models.Config) (models.WorkforceSummary, bool) {
	p, ok := Select(periods, months)
	if !ok {
		return models.WorkforceSummary{}, false
	}
	actual := months
	for _, m := range months {
		if p.Month != "" && m.Month == p.Month {
			actual = []models.EnrichedMonth{m}
			break
		}
	}

	s := Summarise(p.Totals, actual, cfg)
	s.Practice = p.Practice
	s.Month = p.Month
	s.Periods = periods
	return s, true
}

// Aggregate sums the workforce rows of one period into role group totals. Rows may be wide
// (one column per role) or long (a role name with its FTE and headcount).
// Columns are matched case- and punctuation-insensitively. Unknown roles
// are ignored.
func Aggregate(rows []models.Row) models.WorkforceTotals {
	t := models.WorkforceTotals{Roles: make(map[string]float64)}
	hc := make(map[models.RoleGroup]*float64)
	var totalHC *float64

	add := func(role Role, fte float64, hasFte bool, count float64, hasHC bool) {
		if hasFte {
			t.Roles[role.Name] += fte
			t.TotalWte += fte
			for _, g := range role.Groups {
				addWte(&t, g, fte)
			}
		}
		if hasHC {
			totalHC = addPtr(totalHC, count)
			for _, g := range role.Groups {
				hc[g] = addPtr(hc[g], count)
			}
		}
	}

	for _, row := range rows {
		cells := normalized(row)
		if name, ok := cells[parser.NormalizeHeader(colRole)]; ok {
			role, known := rolesByName[parser.NormalizeHeader(name)]
			if !known {
				continue
			}
			fte, hasFte := parser.ParseDecimal(cells[parser.NormalizeHeader(colFte)])
			count, hasHC := parser.ParseDecimal(cells[parser.NormalizeHeader(colHeadcount)])
			add(role, fte, hasFte, count, hasHC)
			continue
		}
		for _, role := range Roles {
			fte, hasFte := parser.ParseDecimal(cells[parser.NormalizeHeader(role.FteColumn)])
			count, hasHC := parser.ParseDecimal(cells[parser.NormalizeHeader(role.HcColumn)])
			add(role, fte, hasFte, count, hasHC)
		}
	}

	t.TotalHeadcount = totalHC
	t.TotalHeadcountGP = hc[models.RoleGroupGP]
	t.TotalHeadcountClinical = hc[models.RoleGroupClinical]
	t.TotalHeadcountNonClinical = hc[models.RoleGroupNonClinical]
	t.TotalHeadcountARRS = hc[models.RoleGroupARRS]
	return t
}

// Summarise derives WTE ratios and the capacity model from workforce totals
// and the enriched months of the same run. Actual volumes are monthly
// means: GP appointments for the GP group, all appointments for the
// clinical group and non-GP appointments for ARRS roles.
func Summarise(t models.WorkforceTotals, months []models.EnrichedMonth, cfg models.Config) models.WorkforceSummary {
	cfg = cfg.WithDefaults()

	var total, gp float64
	for _, m := range months {
		total += float64(m.TotalAppts)
		gp += float64(m.GPAppts)
	}
	if n := float64(len(months)); n > 0 {
		total /= n
		gp /= n
	}

	s := models.WorkforceSummary{
		Totals:               t,
		PatientsPerWte:       calculator.Ratio(cfg.Population, t.TotalWte),
		PatientsPerGPWte:     calculator.Ratio(cfg.Population, t.TotalWteGP),
		AppointmentsPerWte:   calculator.Ratio(total, t.TotalWte),
		AppointmentsPerGPWte: calculator.Ratio(gp, t.TotalWteGP),
	}
	if cfg.Population <= 0 {
		s.PatientsPerWte, s.PatientsPerGPWte = nil, nil
	}

	actual := map[models.RoleGroup]float64{
		models.RoleGroupGP:       gp,
		models.RoleGroupClinical: total,
		models.RoleGroupARRS:     total - gp,
	}
	for _, g := range []models.RoleGroup{models.RoleGroupGP, models.RoleGroupClinical, models.RoleGroupARRS} {
		rate := cfg.AppointmentsPerWtePerDay[g]
		wte := t.Wte(g)
		if rate <= 0 || wte <= 0 {
			continue
		}
		s.Capacity = append(s.Capacity, Capacity(g, wte, actual[g], rate, cfg.WorkingDaysPerMonth))
	}
	return s
}

// Capacity compares actual monthly appointments with wte * rate *
// workingDays. Utilization above 1 is kept and flagged.
func Capacity(group models.RoleGroup, wte, actual, ratePerDay, workingDays float64) models.CapacityUtilization {
	theoretical := wte * ratePerDay * workingDays
	c := models.CapacityUtilization{
		Group:       group,
		Wte:         wte,
		Actual:      actual,
		Theoretical: theoretical,
		Utilization: calculator.Ratio(actual, theoretical),
	}
	c.OverCapacity = c.Utilization != nil && *c.Utilization > 1
	return c
}

func addWte(t *models.WorkforceTotals, g models.RoleGroup, v float64) {
	switch g {
	case models.RoleGroupGP:
		t.TotalWteGP += v
	case models.RoleGroupClinical:
		t.TotalWteClinical += v
	case models.RoleGroupNonClinical:
		t.TotalWteNonClinical += v
	case models.RoleGroupARRS:
		t.TotalWteARRS += v
	}
}

// addPtr adds v to a nullable sum; nil means no contribution yet.
func addPtr(sum *float64, v float64) *float64 {
	if sum == nil {
		return &v
	}
	n := *sum + v
	return &n
}

func firstCell(cells map[string]string, columns []string) string {
	for _, c := range columns {
		if v := strings.TrimSpace(cells[parser.NormalizeHeader(c)]); v != "" {
			return v
		}
	}
	return ""
}

func normalized(row models.Row) map[string]string {
	out := make(map[string]string, len(row))
	for k := range row {
		out[parser.NormalizeHeader(k)] = row.Get(k)
	}
	return out
}
