package credential

import (
	"regexp"
	"time"
)

// dateShape matches YYYY-MM-DD with month 01-12 and day 01-31. Calendar
// validity (no Feb 31) is checked separately by time.Parse.
var dateShape = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])-(0[1-9]|[12][0-9]|3[01])$`)

// field pairs a required argument with its wire name, so validation errors
// report the name the caller used.
type field struct {
	name  string
	value string
}

// validateFields applies the three validation rules in order, each
// short-circuiting on first failure: every field non-empty, the date
// well-formed, the date strictly before now at day granularity.
func validateFields(fields []field, dateValue string, now time.Time) error {
	for _, f := range fields {
		if f.value == "" {
			return &MissingFieldError{Field: f.name}
		}
	}
	return validateDate(dateValue, now)
}

func validateCertificateFields(studentName, dni, program, issueDate, degree, title, institution string, now time.Time) error {
	return validateFields([]field{
		{"studentName", studentName},
		{"dni", dni},
		{"program", program},
		{"issueDate", issueDate},
		{"degree", degree},
		{"title", title},
		{"institution", institution},
	}, issueDate, now)
}

func validateVerificationFields(certificateID, employeeName, requestDate string, now time.Time) error {
	return validateFields([]field{
		{"certificateId", certificateID},
		{"employeeName", employeeName},
		{"requestDate", requestDate},
	}, requestDate, now)
}

// validateDate enforces the YYYY-MM-DD shape and the strictly-before-today
// rule. Both sides are truncated to midnight UTC before comparison.
func validateDate(value string, now time.Time) error {
	if !dateShape.MatchString(value) {
		return ErrBadDateFormat
	}
	d, err := time.Parse("2006-01-02", value)
	if err != nil {
		return ErrBadDateFormat
	}
	today := truncateToDay(now)
	if !d.Before(today) {
		return ErrFutureOrPresentDate
	}
	return nil
}

func truncateToDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
