// Package dsv provides configurable options for delimited-text parsing.
package dsv

import (
	"strings"
	"unicode/utf8"

	"github.com/shapestone/shape-dsv/internal/assembler"
	"github.com/shapestone/shape-dsv/internal/lexer"
)

// FastMode controls whether the lexer may bypass quote handling.
type FastMode int

const (
	// FastModeAuto bypasses quote handling when the input contains no quote
	// character (default).
	FastModeAuto FastMode = iota
	// FastModeOn always bypasses quote handling.
	FastModeOn
	// FastModeOff always runs the full quote-aware scan.
	FastModeOff
)

// SkipMode controls how empty lines are treated.
type SkipMode int

const (
	// SkipNone keeps empty lines as single-empty-field rows (default).
	SkipNone SkipMode = iota
	// SkipEmpty drops rows whose only field is the empty string.
	SkipEmpty
	// SkipGreedy additionally drops rows that contain only whitespace.
	SkipGreedy
)

// StepFunc is a per-row notification invoked during parsing. The Result is
// scoped to just that row; accumulated data is cleared after each step so
// memory does not grow unbounded in streaming mode. The Handle can be used
// to pause or abort from inside the callback.
type StepFunc func(res *Result, h *Handle)

// Config configures a parse. The zero value parses comma-delimited text
// with RFC 4180 quoting; leave Delimiter or Newline empty to have them
// guessed from the input.
type Config struct {
	// Delimiter is the field separator. May be multi-byte. Empty means
	// guess from a sample of the input.
	Delimiter string

	// Newline is the line terminator: "\n", "\r" or "\r\n". Empty means
	// guess from a sample of the input.
	Newline string

	// QuoteChar opens and closes quoted fields. Default: '"'
	QuoteChar rune

	// EscapeChar marks a quote as data inside a quoted field. Default:
	// same as QuoteChar (doubled-quote escaping).
	EscapeChar rune

	// Comment, when non-empty, drops rows that start with this marker.
	// May be multi-byte. It must not equal the delimiter.
	Comment string

	// Header treats the first row as field names and maps rows to Records.
	// Duplicate names are renamed with the smallest unused numeric suffix.
	Header bool

	// TransformHeader rewrites each header name before de-duplication.
	TransformHeader func(name string, index int) string

	// Transform rewrites each field value before dynamic typing. field is
	// the header name ("" when header mode is off), index the column.
	Transform func(value, field string, index int) string

	// DynamicTyping converts string values to bool/int64/float64/time.Time
	// per field. See Typing.
	DynamicTyping Typing

	// Preview stops parsing after this many data rows when positive.
	Preview int

	// SkipEmptyLines drops empty rows per the chosen mode.
	SkipEmptyLines SkipMode

	// FastMode selects the lexer's scanning strategy.
	FastMode FastMode

	// DelimitersToGuess overrides the candidate set used when Delimiter is
	// empty. Defaults to DefaultDelimitersToGuess.
	DelimitersToGuess []string

	// Step, when set, is invoked once per row; rows are then not
	// accumulated on the final Result.
	Step StepFunc
}

// DefaultConfig returns the default parse configuration: comma delimiter,
// "\n" newline, double-quote quoting, no header, no typing.
func DefaultConfig() Config {
	return Config{
		Delimiter: ",",
		Newline:   "\n",
		QuoteChar: '"',
	}
}

// validQuote reports whether r can serve as a quote or escape character.
func validQuote(r rune) bool {
	return r != '\r' && r != '\n' && utf8.ValidRune(r) && r != utf8.RuneError
}

// Validate checks the configuration for conflicting character assignments.
// Invalid combinations are construction-time errors, not parse-time ones.
func (c Config) Validate() error {
	if c.Delimiter != "" {
		if strings.ContainsAny(c.Delimiter, "\r\n") {
			return &OptionsError{Field: "Delimiter", Message: "must not contain a line break"}
		}
		if c.QuoteChar != 0 && strings.ContainsRune(c.Delimiter, c.QuoteChar) {
			return &OptionsError{Field: "Delimiter", Message: "must not contain the quote character"}
		}
	}
	if c.Newline != "" {
		switch c.Newline {
		case "\n", "\r", "\r\n":
		default:
			return &OptionsError{Field: "Newline", Message: `must be "\n", "\r" or "\r\n"`}
		}
	}
	if c.QuoteChar != 0 && !validQuote(c.QuoteChar) {
		return &OptionsError{Field: "QuoteChar", Message: "invalid quote character"}
	}
	if c.EscapeChar != 0 && !validQuote(c.EscapeChar) {
		return &OptionsError{Field: "EscapeChar", Message: "invalid escape character"}
	}
	if c.Comment != "" {
		if c.Comment == c.Delimiter {
			return &OptionsError{Field: "Comment", Message: "comment marker same as delimiter"}
		}
		quote := c.QuoteChar
		if quote == 0 {
			quote = '"'
		}
		if strings.ContainsRune(c.Comment, quote) {
			return &OptionsError{Field: "Comment", Message: "comment marker contains the quote character"}
		}
	}
	if c.Preview < 0 {
		return &OptionsError{Field: "Preview", Message: "must not be negative"}
	}
	return nil
}

// lexerConfig translates the resolved public options into the lexer's
// configuration. Delimiter and Newline must be resolved (non-empty) first.
func (c Config) lexerConfig() lexer.Config {
	return lexer.Config{
		Delimiter: c.Delimiter,
		Newline:   c.Newline,
		Quote:     c.QuoteChar,
		Escape:    c.EscapeChar,
		Comment:   c.Comment,
		FastMode:  lexer.FastMode(c.FastMode),
	}
}

// assemblerConfig translates the public options into the assembler's
// configuration. The step callback is wired separately by the Handle.
func (c Config) assemblerConfig() assembler.Config {
	return assembler.Config{
		Header:          c.Header,
		TransformHeader: c.TransformHeader,
		SkipEmptyLines:  assembler.SkipMode(c.SkipEmptyLines),
		Preview:         c.Preview,
	}
}
