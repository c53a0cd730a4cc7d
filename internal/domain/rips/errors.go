package rips

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyResult is informational: the window held nothing to export.
	ErrEmptyResult = errors.New("no invoices found in the selected period")
	// ErrManifestMismatch means a CT count disagrees with its file. It is a
	// programming error and the run must not produce an archive.
	ErrManifestMismatch = errors.New("manifest count does not match file contents")
	// ErrPackaging wraps I/O failures while building or storing the archive.
	ErrPackaging = errors.New("bundle packaging failed")
)

// ValidationError reports malformed caller input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// IsValidation reports whether err is, or wraps, a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
