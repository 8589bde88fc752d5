package dsv

// ParsedExtraKey is the reserved record key holding surplus field values
// when a row has more fields than the header.
const ParsedExtraKey = "__parsed_extra"

// Row is one parsed row. Values are strings before dynamic typing; with
// typing enabled a value may be a string, int64, float64, bool, time.Time
// or nil.
type Row []any

// Record is one parsed row keyed by header names. Columns missing from a
// short row are absent; surplus values are collected under ParsedExtraKey.
type Record map[string]any

// Meta describes how an input was parsed.
type Meta struct {
	// Delimiter actually used, after any guessing.
	Delimiter string
	// Newline actually used, after any guessing.
	Newline string
	// Fields is the de-duplicated header set (header mode only).
	Fields []string
	// RenamedHeaders maps original duplicate names to their replacements.
	// Nil when no renaming happened.
	RenamedHeaders map[string]string
	// Aborted reports a caller-initiated stop.
	Aborted bool
	// Truncated reports that the preview cap stopped parsing early.
	Truncated bool
	// Cursor is the byte offset into the original un-chunked input up to
	// which rows have been consumed.
	Cursor int
	// Finished marks the terminal result of a stream. It is set exactly
	// once per stream, on the last delivered result.
	Finished bool
}

// Result is the outcome of one parse invocation: either the whole input or
// a single chunk. A parse always returns a Result, even for completely
// malformed input; callers inspect Errors to decide how to react.
type Result struct {
	// Rows holds parsed rows when header mode is off.
	Rows []Row
	// Records holds header-keyed rows when header mode is on.
	Records []Record
	// Errors is the append-only non-fatal error log.
	Errors []ParseError
	// Meta describes the parse.
	Meta Meta
}

// Len returns the number of rows carried by the result, regardless of
// header mode.
func (r *Result) Len() int {
	if len(r.Records) > 0 {
		return len(r.Records)
	}
	return len(r.Rows)
}
