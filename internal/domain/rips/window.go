package rips

import (
	"strings"
	"time"
)

// DateLayout is the calendar format used for caller input and for every date
// column in the bundle (DD/MM/YYYY).
const DateLayout = "02/01/2006"

// ResolveWindow converts an inclusive local calendar range into the UTC
// half-open window used to query invoices. The upper bound is local midnight
// of the day after end, so the whole end day is included.
func ResolveWindow(start, end string, loc *time.Location) (ExportWindow, error) {
	if loc == nil {
		loc = time.UTC
	}
	startDate, err := parseLocalDate("start_date", start, loc)
	if err != nil {
		return ExportWindow{}, err
	}
	endDate, err := parseLocalDate("end_date", end, loc)
	if err != nil {
		return ExportWindow{}, err
	}
	if endDate.Before(startDate) {
		return ExportWindow{}, &ValidationError{Field: "end_date", Message: "must not be before start_date"}
	}

	return ExportWindow{
		StartDate:  startDate,
		EndDate:    endDate,
		From:       startDate.UTC(),
		To:         endDate.AddDate(0, 0, 1).UTC(),
		StartInput: strings.TrimSpace(start),
		EndInput:   strings.TrimSpace(end),
	}, nil
}

// parseLocalDate returns local midnight of the given date.
func parseLocalDate(field, value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, &ValidationError{Field: field, Message: "is required"}
	}
	t, err := time.ParseInLocation(DateLayout, value, loc)
	if err != nil {
		return time.Time{}, &ValidationError{Field: field, Message: "invalid date " + `"` + value + `", expected DD/MM/YYYY`}
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc), nil
}

// PeriodSuffix is the YYMM suffix of every member file name.
func (w ExportWindow) PeriodSuffix() string {
	return w.StartDate.Format("0601")
}
