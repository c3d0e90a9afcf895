package parser

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"practice-insights/metrics"
	"practice-insights/models"
)

// UnspecifiedSlot is the slot type of pivot exports, which carry none.
const UnspecifiedSlot = "Unspecified"

// reservedPivotColumns are the only non-staff columns of a pivot export.
var reservedPivotColumns = map[string]bool{
	ColDate: true,
	ColDay:  true,
}

// AppointmentRows adapts appointment export rows. Long exports carry a Staff
// column with one count per row; pivot exports carry one column per staff
// member and every other column with a positive count is one entry. Rows
// with an unparseable date are skipped and counted.
func AppointmentRows(rows []models.Row, log *zap.Logger) ([]models.AppointmentRow, int) {
	log = nopIfNil(log)
	var (
		out     []models.AppointmentRow
		skipped int
	)
	for i, row := range rows {
		date, err := ParseDate(row.Get(ColDate))
		if err != nil {
			skipped++
			logSkip(log, KindAppointments, i, err)
			continue
		}
		day := row.Get(ColDay)
		if day == "" {
			day = date.Weekday().String()
		}

		if _, long := row[ColStaff]; long {
			count := ParseCount(row.First(ColTotalAppointments, ColAppointmentCount))
			staff := row.Get(ColStaff)
			if count <= 0 || staff == "" {
				continue
			}
			out = append(out, models.AppointmentRow{
				Date:      date,
				DayOfWeek: day,
				StaffName: staff,
				SlotType:  slotOrDefault(row.Get(ColSlotType)),
				Count:     count,
			})
			continue
		}

		for _, col := range sortedColumns(row) {
			if reservedPivotColumns[col] {
				continue
			}
			count := ParseCount(row[col])
			if count <= 0 {
				continue
			}
			out = append(out, models.AppointmentRow{
				Date:      date,
				DayOfWeek: day,
				StaffName: col,
				SlotType:  UnspecifiedSlot,
				Count:     count,
			})
		}
	}
	return out, skipped
}

// DNARows adapts DNA export rows.
func DNARows(rows []models.Row, log *zap.Logger) ([]models.SlotCountRow, int) {
	return slotCountRows(rows, KindDNA, ColAppointmentCount, nopIfNil(log))
}

// UnusedRows adapts unused-slot export rows.
func UnusedRows(rows []models.Row, log *zap.Logger) ([]models.SlotCountRow, int) {
	return slotCountRows(rows, KindUnused, ColUnusedSlots, nopIfNil(log))
}

func slotCountRows(rows []models.Row, kind FileKind, countCol string, log *zap.Logger) ([]models.SlotCountRow, int) {
	var (
		out     []models.SlotCountRow
		skipped int
	)
	for i, row := range rows {
		staff := row.Get(ColStaff)
		if staff == "" {
			skipped++
			logSkip(log, kind, i, fmt.Errorf("empty staff name"))
			continue
		}
		rec := models.SlotCountRow{
			StaffName: staff,
			SlotType:  slotOrDefault(row.Get(ColSlotType)),
			Count:     ParseCount(row.Get(countCol)),
		}
		if raw := row.Get(ColDate); raw != "" {
			date, err := ParseDate(raw)
			if err != nil {
				skipped++
				logSkip(log, kind, i, err)
				continue
			}
			rec.Date = date
			rec.Dated = true
		}
		out = append(out, rec)
	}
	return out, skipped
}

// OnlineRequests adapts online consultation export rows.
func OnlineRequests(rows []models.Row, log *zap.Logger) ([]models.OnlineRequest, int) {
	log = nopIfNil(log)
	var (
		out     []models.OnlineRequest
		skipped int
	)
	for i, row := range rows {
		submitted, err := ParseDate(row.Get(ColSubmissionStarted))
		if err != nil {
			skipped++
			logSkip(log, KindOnline, i, err)
			continue
		}
		age := -1
		if raw := row.Get(ColAge); raw != "" && raw[0] >= '0' && raw[0] <= '9' {
			age = ParseCount(raw)
		}
		out = append(out, models.OnlineRequest{
			Submitted:    submitted,
			Type:         row.Get(ColType),
			Outcome:      row.Get(ColOutcome),
			AccessMethod: row.Get(ColAccessMethod),
			Sex:          row.Get(ColSex),
			Age:          age,
		})
	}
	return out, skipped
}

// FollowUpAppointments adapts merged follow-up export rows into
// (clinician, date, patient) tuples, dropping exact duplicates that appear
// when overlapping exports are merged.
func FollowUpAppointments(rows []models.Row, log *zap.Logger) ([]models.FollowUpAppointment, int) {
	log = nopIfNil(log)
	var (
		out     []models.FollowUpAppointment
		skipped int
	)
	seen := make(map[string]bool, len(rows))
	for i, row := range rows {
		clinician := row.First(ColClinician, ColStaff)
		patient := row.Get(ColPatientID)
		if clinician == "" || patient == "" {
			skipped++
			logSkip(log, KindFollowUp, i, fmt.Errorf("missing clinician or patient id"))
			continue
		}
		date, err := ParseDate(row.First(ColAppointmentDate, ColDate))
		if err != nil {
			skipped++
			logSkip(log, KindFollowUp, i, err)
			continue
		}
		key := clinician + "\x00" + date.Format("2006-01-02") + "\x00" + patient
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, models.FollowUpAppointment{
			Clinician: clinician,
			Date:      date,
			PatientID: patient,
		})
	}
	return out, skipped
}

func slotOrDefault(slot string) string {
	if slot == "" {
		return UnspecifiedSlot
	}
	return slot
}

func sortedColumns(row models.Row) []string {
	cols := make([]string, 0, len(row))
	for k := range row {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

func logSkip(log *zap.Logger, kind FileKind, index int, err error) {
	metrics.RowsSkippedTotal.WithLabelValues(string(kind)).Inc()
	// +2: one for the header line, one for 1-based numbering.
	log.Debug("skipping row",
		zap.String("kind", string(kind)),
		zap.Int("line", index+2),
		zap.String("reason", strings.TrimSpace(err.Error())),
	)
}

func nopIfNil(log *zap.Logger) *zap.Logger {
	if log == nil {
		return zap.NewNop()
	}
	return log
}
