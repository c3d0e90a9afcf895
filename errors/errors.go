package errors

import "fmt"

// ParseError wraps a specific error with context about where it occurred.
type ParseError struct {
	File   string
	Line   int
	Record []string
	Err    error
}

func (e *ParseError) Error() string {
	if e.File == "" {
		return fmt.Sprintf("parse error at line %d: %v (record: %v)", e.Line, e.Err, e.Record)
	}
	return fmt.Sprintf("%s: parse error at line %d: %v (record: %v)", e.File, e.Line, e.Err, e.Record)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// HeaderError reports a header validation failure for one uploaded file.
// It is raised before any data row is read.
type HeaderError struct {
	File   string
	Column string
	Err    error
}

func (e *HeaderError) Error() string {
	return fmt.Sprintf("%s: %v: %q", e.File, e.Err, e.Column)
}

func (e *HeaderError) Unwrap() error {
	return e.Err
}

// Define specific error types for better error handling
var (
	ErrEmptyFile           = fmt.Errorf("empty file")
	ErrMissingColumn       = fmt.Errorf("required column missing")
	ErrForbiddenColumn     = fmt.Errorf("column not allowed: file contains patient-identifiable data")
	ErrHeaderMismatch      = fmt.Errorf("header does not match the first file")
	ErrInvalidDate         = fmt.Errorf("invalid date")
	ErrMissingAppointments = fmt.Errorf("appointments file is required")
	ErrNoMonths            = fmt.Errorf("no appointment rows with a parseable date")
	ErrNoTelephonyData     = fmt.Errorf("no telephony labels found in report text")
	ErrExpired             = fmt.Errorf("share link expired")
	ErrNotFound            = fmt.Errorf("not found")
)
