package parser

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"practice-insights/errors"
	"practice-insights/metrics"
	"practice-insights/models"
)

// FileKind identifies which export a CSV file is.
type FileKind string

const (
	KindAppointments FileKind = "appointments"
	KindDNA          FileKind = "dna"
	KindUnused       FileKind = "unused"
	KindOnline       FileKind = "online"
	KindFollowUp     FileKind = "followup"
	KindWorkforce    FileKind = "workforce"
	KindTelephony    FileKind = "telephony"
)

// Canonical column names. Headers are matched case- and
// punctuation-insensitively and renamed to these spellings.
const (
	ColDate              = "Date"
	ColDay               = "Day"
	ColStaff             = "Staff"
	ColSlotType          = "Slot Type"
	ColTotalAppointments = "Total Appointments"
	ColUnusedSlots       = "Unused Slots"
	ColAppointmentCount  = "Appointment Count"
	ColSubmissionStarted = "Submission started"
	ColType              = "Type"
	ColOutcome           = "Outcome"
	ColAccessMethod      = "Access Method"
	ColSex               = "Sex"
	ColAge               = "Age"
	ColClinician         = "Clinician"
	ColAppointmentDate   = "Appointment Date"
	ColPatientID         = "Patient ID"
)

var canonicalColumns = func() map[string]string {
	cols := []string{
		ColDate, ColDay, ColStaff, ColSlotType, ColTotalAppointments,
		ColUnusedSlots, ColAppointmentCount, ColSubmissionStarted,
		ColType, ColOutcome, ColAccessMethod, ColSex, ColAge, ColClinician,
		ColAppointmentDate, ColPatientID,
	}
	m := make(map[string]string, len(cols))
	for _, c := range cols {
		m[NormalizeHeader(c)] = c
	}
	return m
}()

// requiredColumns lists, per file kind, groups of acceptable alternatives;
// each group must be satisfied by at least one header.
var requiredColumns = map[FileKind][][]string{
	KindAppointments: {{ColDate}},
	KindDNA:          {{ColStaff}, {ColAppointmentCount}},
	KindUnused:       {{ColStaff}, {ColUnusedSlots}},
	KindOnline:       {{ColSubmissionStarted}, {ColType}},
	KindFollowUp:     {{ColClinician, ColStaff}, {ColAppointmentDate, ColDate}, {ColPatientID}},
}

// forbiddenColumns must never appear in an upload: the dashboard works on
// pseudonymised or aggregate data only.
var forbiddenColumns = []string{
	"NHS Number",
	"Patient Name",
	"Date of Birth",
	"Postcode",
	"Address",
}

// Source is one named CSV input.
type Source struct {
	Name   string
	Reader io.Reader
}

// ReadCSV reads a CSV file with a header line into rows keyed by header.
// Headers are validated for the given kind before any data row is read.
// Blank lines are ignored; a structurally broken CSV line is fatal.
func ReadCSV(file string, kind FileKind, r io.Reader) ([]models.Row, error) {
	start := time.Now()
	defer func() {
		metrics.ParserDurationSeconds.Observe(time.Since(start).Seconds())
	}()

	header, rows, err := readRows(file, r)
	if err != nil {
		return nil, err
	}
	if err := ValidateHeaders(file, kind, header); err != nil {
		metrics.ParserErrorsTotal.WithLabelValues("header").Inc()
		return nil, err
	}

	metrics.ParserRecordsTotal.WithLabelValues(string(kind)).Add(float64(len(rows)))
	return rows, nil
}

// MergeCSV concatenates the data rows of several files under the header of
// the first one. Every later file must carry the same header.
func MergeCSV(kind FileKind, sources []Source) ([]models.Row, error) {
	var (
		merged []models.Row
		first  []string
	)
	for i, src := range sources {
		header, rows, err := readRows(src.Name, src.Reader)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			if err := ValidateHeaders(src.Name, kind, header); err != nil {
				metrics.ParserErrorsTotal.WithLabelValues("header").Inc()
				return nil, err
			}
			first = header
		} else if col, ok := sameHeader(first, header); !ok {
			metrics.ParserErrorsTotal.WithLabelValues("header").Inc()
			return nil, &errors.HeaderError{File: src.Name, Column: col, Err: errors.ErrHeaderMismatch}
		}
		merged = append(merged, rows...)
	}
	metrics.ParserRecordsTotal.WithLabelValues(string(kind)).Add(float64(len(merged)))
	return merged, nil
}

// ValidateHeaders checks required and forbidden columns for a file kind.
func ValidateHeaders(file string, kind FileKind, header []string) error {
	present := make(map[string]bool, len(header))
	for _, h := range header {
		present[NormalizeHeader(h)] = true
	}

	for _, col := range forbiddenColumns {
		if present[NormalizeHeader(col)] {
			return &errors.HeaderError{File: file, Column: col, Err: errors.ErrForbiddenColumn}
		}
	}

	for _, group := range requiredColumns[kind] {
		found := false
		for _, col := range group {
			if present[NormalizeHeader(col)] {
				found = true
				break
			}
		}
		if !found {
			return &errors.HeaderError{File: file, Column: group[0], Err: errors.ErrMissingColumn}
		}
	}
	return nil
}

func readRows(file string, r io.Reader) ([]string, []models.Row, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil, &errors.HeaderError{File: file, Err: errors.ErrEmptyFile}
	}
	if err != nil {
		return nil, nil, &errors.ParseError{File: file, Line: 1, Err: err}
	}
	header = canonicalHeader(header)

	var rows []models.Row
	lineNum := 1
	for {
		record, err := reader.Read()
		lineNum++
		if err == io.EOF {
			break
		}
		if err != nil {
			metrics.ParserErrorsTotal.WithLabelValues("csv").Inc()
			return nil, nil, &errors.ParseError{
				File:   file,
				Line:   lineNum,
				Record: record,
				Err:    fmt.Errorf("error reading CSV: %w", err),
			}
		}
		if isBlank(record) {
			continue
		}

		row := make(models.Row, len(header))
		for i, h := range header {
			if h == "" || i >= len(record) {
				continue
			}
			row[h] = strings.TrimSpace(record[i])
		}
		rows = append(rows, row)
	}
	return header, rows, nil
}

// canonicalHeader trims header cells, strips a UTF-8 BOM and renames known
// columns to their canonical spelling. Unknown columns (staff names in
// pivot exports, workforce fields) keep their trimmed text.
func canonicalHeader(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if c, ok := canonicalColumns[NormalizeHeader(h)]; ok {
			h = c
		}
		out[i] = h
	}
	return out
}

func sameHeader(a, b []string) (string, bool) {
	if len(a) != len(b) {
		if len(b) > len(a) {
			return b[len(a)], false
		}
		return a[len(b)], false
	}
	for i := range a {
		if NormalizeHeader(a[i]) != NormalizeHeader(b[i]) {
			return b[i], false
		}
	}
	return "", true
}

// NormalizeHeader folds a header for matching: lower case, without spaces,
// underscores or dashes.
func NormalizeHeader(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	value = strings.ReplaceAll(value, " ", "")
	value = strings.ReplaceAll(value, "_", "")
	value = strings.ReplaceAll(value, "-", "")
	return value
}

func isBlank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
