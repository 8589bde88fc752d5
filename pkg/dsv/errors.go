// Package dsv provides error types for delimited-text parsing.
package dsv

import (
	"errors"
	"fmt"
)

// ErrorCategory groups parse errors by their nature.
type ErrorCategory string

const (
	// CategoryQuotes covers malformed quoting. Recoverable, data-level.
	CategoryQuotes ErrorCategory = "Quotes"
	// CategoryFieldMismatch covers rows whose field count disagrees with the
	// header. Recoverable, header mode only.
	CategoryFieldMismatch ErrorCategory = "FieldMismatch"
	// CategoryDelimiter covers delimiter-detection failures. Recoverable;
	// the parser falls back to the default delimiter.
	CategoryDelimiter ErrorCategory = "Delimiter"
	// CategoryAbort marks a caller-initiated stop. Terminal for the current
	// stream only.
	CategoryAbort ErrorCategory = "Abort"
)

// Parse error codes.
const (
	CodeMissingQuotes         = "MissingQuotes"
	CodeInvalidQuotes         = "InvalidQuotes"
	CodeTooFewFields          = "TooFewFields"
	CodeTooManyFields         = "TooManyFields"
	CodeUndetectableDelimiter = "UndetectableDelimiter"
	CodeParseAbort            = "ParseAbort"
)

// ParseError describes one non-fatal problem found in the data. Parse
// errors are collected on the Result and never interrupt parsing of
// subsequent rows; callers inspect Result.Errors to decide how to react.
//
// Row is the zero-based data row the error belongs to (the header row is
// not counted); Index is the byte offset into the original un-chunked
// input. Either is -1 when not applicable.
type ParseError struct {
	Category ErrorCategory
	Code     string
	Message  string
	Row      int
	Index    int
}

// Error returns a formatted message with position information.
func (e *ParseError) Error() string {
	if e.Row >= 0 {
		return fmt.Sprintf("dsv: %s (%s) on row %d: %s", e.Category, e.Code, e.Row, e.Message)
	}
	return fmt.Sprintf("dsv: %s (%s): %s", e.Category, e.Code, e.Message)
}

// OptionsError represents an invalid configuration. These are programmer
// errors: they surface at construction time, before any data is touched.
type OptionsError struct {
	Field   string
	Message string
}

func (e *OptionsError) Error() string {
	return "dsv: invalid " + e.Field + ": " + e.Message
}

// Sentinel errors for misuse of the streaming control surface.
var (
	// ErrNotPaused is returned by Resume when the parse is not paused.
	ErrNotPaused = errors.New("dsv: parse is not paused")

	// ErrFinished is returned by Feed after the stream has terminated.
	ErrFinished = errors.New("dsv: stream already finished")

	// ErrPaused is returned by Feed while the stream is paused.
	ErrPaused = errors.New("dsv: stream is paused")
)
