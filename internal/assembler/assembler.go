// Package assembler groups lexer tokens into rows.
//
// The assembler owns everything row-shaped: header capture and
// de-duplication, field-count validation against the header, the preview
// cap, the per-row step callback, and cooperative abort. It deliberately
// knows nothing about value typing or record mapping; those happen above.
package assembler

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/shapestone/shape-dsv/internal/lexer"
)

// SkipMode controls empty-line handling.
type SkipMode int

const (
	// SkipNone keeps empty lines as single-empty-field rows.
	SkipNone SkipMode = iota
	// SkipEmpty drops rows whose only field is the empty string.
	SkipEmpty
	// SkipGreedy drops rows whose fields are all blank or whitespace.
	SkipGreedy
)

// Error codes reported by the assembler.
const (
	CodeTooFewFields  = "TooFewFields"
	CodeTooManyFields = "TooManyFields"
)

// Error is a row-level problem: either a field-count mismatch detected
// here, or a lexer error attributed to the row it occurred in. Row is the
// zero-based data row index (the header row is not counted); -1 means the
// error could not be tied to a row.
type Error struct {
	Code    string
	Message string
	Row     int
	Index   int
}

// StepFunc receives one finalized row together with the errors that
// accumulated since the previous step. Rows delivered through a step are
// not retained by the assembler, so streaming memory stays bounded.
type StepFunc func(row []string, errs []Error)

// Config configures an Assembler.
type Config struct {
	// Header treats the first assembled row of the stream as field names.
	Header bool
	// TransformHeader rewrites each header name before de-duplication.
	TransformHeader func(name string, index int) string
	// SkipEmptyLines drops empty rows per the chosen mode.
	SkipEmptyLines SkipMode
	// Preview stops after this many data rows when positive.
	Preview int
	// Step, when set, is invoked per row instead of accumulating rows.
	Step StepFunc
}

// Assembler consumes token streams chunk by chunk. One Assembler persists
// for the lifetime of a stream: the header set and row count carry across
// calls to Parse.
type Assembler struct {
	cfg Config

	headers  []string
	renamed  map[string]string
	hasHead  bool
	dataRows int

	aborted   atomic.Bool
	truncated bool
	cursor    int

	rowPool sync.Pool
}

// New creates an Assembler for one stream.
func New(cfg Config) *Assembler {
	return &Assembler{
		cfg: cfg,
		rowPool: sync.Pool{
			New: func() any { return make([]string, 0, 8) },
		},
	}
}

// Headers returns the de-duplicated header set, nil until the header row
// has been assembled.
func (a *Assembler) Headers() []string { return a.headers }

// Renamed maps original header names to their de-duplicated replacements.
// Nil when no renaming happened.
func (a *Assembler) Renamed() map[string]string { return a.renamed }

// Rows returns the number of data rows finalized so far across all chunks.
func (a *Assembler) Rows() int { return a.dataRows }

// Truncated reports whether the preview cap stopped consumption.
func (a *Assembler) Truncated() bool { return a.truncated }

// Aborted reports whether Abort was called.
func (a *Assembler) Aborted() bool { return a.aborted.Load() }

// Cursor is the byte offset one past the last consumed token, relative to
// the chunk most recently given to Parse.
func (a *Assembler) Cursor() int { return a.cursor }

// Abort requests cooperative termination. The flag is checked once per
// token, so the current row may complete but no further tokens are read.
func (a *Assembler) Abort() { a.aborted.Store(true) }

// ResetAbort clears the abort flag so a paused stream can resume.
func (a *Assembler) ResetAbort() { a.aborted.Store(false) }

// Parse walks one chunk's token stream and returns the finalized rows and
// errors. When ignoreLastRow is set, a row still in progress at EOF is
// discarded instead of finalized (the caller expects more chunks and the
// tail may be an incomplete row). Lexer errors are attributed to the row
// within which their input offset falls.
func (a *Assembler) Parse(tokens []lexer.Token, lexErrs []lexer.Error, terminatedByComment, ignoreLastRow bool) ([][]string, []Error) {
	var (
		rows     [][]string
		errs     []Error
		stepErrs []Error
		row      = a.rowPool.Get().([]string)[:0]
		sawField bool
		sawAny   bool
		lexIdx   int
	)
	a.cursor = 0

	// attribute assigns pending lexer errors up to the given input offset
	// to the current data row.
	attribute := func(limit int, sink *[]Error) {
		for lexIdx < len(lexErrs) && lexErrs[lexIdx].Index < limit {
			le := lexErrs[lexIdx]
			*sink = append(*sink, Error{
				Code:    le.Code,
				Message: le.Message,
				Row:     a.dataRows,
				Index:   le.Index,
			})
			lexIdx++
		}
	}

	finalize := func(end int) {
		if !sawField {
			row = append(row, "")
		}
		if a.skippable(row) {
			row = row[:0]
			sawField = false
			sawAny = false
			return
		}
		if a.cfg.Header && !a.hasHead {
			a.captureHeader(row)
			row = row[:0]
			sawField = false
			sawAny = false
			return
		}
		if a.cfg.Header {
			a.validateCount(len(row), &errs, &stepErrs)
		}
		if a.cfg.Step != nil {
			attribute(end, &stepErrs)
			a.cfg.Step(append([]string(nil), row...), stepErrs)
			stepErrs = nil
		} else {
			attribute(end, &errs)
			rows = append(rows, append([]string(nil), row...))
		}
		a.dataRows++
		row = row[:0]
		sawField = false
		sawAny = false
	}

	for _, tok := range tokens {
		if a.aborted.Load() {
			break
		}
		switch tok.Kind {
		case lexer.KindField:
			row = append(row, tok.Value)
			sawField = true
			sawAny = true
		case lexer.KindDelimiter:
			if !sawField {
				row = append(row, "")
			}
			sawField = false
			sawAny = true
		case lexer.KindNewline:
			finalize(tok.Pos + tok.Len)
			a.cursor = tok.Pos + tok.Len
			if a.cfg.Preview > 0 && a.dataRows >= a.cfg.Preview {
				a.truncated = true
			}
		case lexer.KindEOF:
			if sawAny && !ignoreLastRow {
				finalize(tok.Pos)
				a.cursor = tok.Pos
			} else if !sawAny && !terminatedByComment {
				a.cursor = tok.Pos
			}
			// Unattributed trailing errors (e.g. an unterminated quote in a
			// discarded partial row) still surface, tied to the current row.
			if !ignoreLastRow {
				attribute(tok.Pos+1, &errs)
			}
		}
		if a.truncated {
			break
		}
	}

	a.rowPool.Put(row[:0])
	return rows, errs
}

// skippable reports whether a finalized row should be dropped under the
// configured empty-line mode.
func (a *Assembler) skippable(row []string) bool {
	switch a.cfg.SkipEmptyLines {
	case SkipEmpty:
		return len(row) == 1 && row[0] == ""
	case SkipGreedy:
		for _, f := range row {
			for _, c := range f {
				if c != ' ' && c != '\t' {
					return false
				}
			}
		}
		return true
	default:
		return false
	}
}

// captureHeader applies the header transform and de-duplicates names.
// Duplicates get the smallest unused numeric suffix, re-checking the whole
// set so a rename never collides with a name that already exists.
func (a *Assembler) captureHeader(row []string) {
	headers := make([]string, 0, len(row))
	seen := make(map[string]bool, len(row))
	all := make(map[string]bool, len(row))
	for _, name := range row {
		all[name] = true
	}
	for i, name := range row {
		if a.cfg.TransformHeader != nil {
			name = a.cfg.TransformHeader(name, i)
		}
		final := name
		if seen[final] {
			for n := 1; ; n++ {
				candidate := fmt.Sprintf("%s_%d", name, n)
				if !seen[candidate] && !all[candidate] {
					final = candidate
					break
				}
			}
			if a.renamed == nil {
				a.renamed = make(map[string]string)
			}
			a.renamed[name] = final
		}
		seen[final] = true
		all[final] = true
		headers = append(headers, final)
	}
	a.headers = headers
	a.hasHead = true
}

// validateCount compares a data row's field count to the header set.
func (a *Assembler) validateCount(got int, errs, stepErrs *[]Error) {
	want := len(a.headers)
	if got == want {
		return
	}
	e := Error{Row: a.dataRows}
	if got < want {
		e.Code = CodeTooFewFields
		e.Message = fmt.Sprintf("Too few fields: expected %d fields but parsed %d", want, got)
	} else {
		e.Code = CodeTooManyFields
		e.Message = fmt.Sprintf("Too many fields: expected %d fields but parsed %d", want, got)
	}
	if a.cfg.Step != nil {
		*stepErrs = append(*stepErrs, e)
	} else {
		*errs = append(*errs, e)
	}
}
