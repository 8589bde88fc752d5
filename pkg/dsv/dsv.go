// Package dsv parses delimited text (the CSV family) in dialects that may
// be partially unknown: the delimiter and line ending can be guessed from
// the input, quoting and escaping are configurable, comment rows can be
// skipped, and malformed input never fails a parse — problems are reported
// as values on the result instead.
//
// The package supports whole-input parsing, arbitrarily chunked streaming
// with mid-stream pause/resume, preview row limits, header-keyed records
// with duplicate-header renaming, and dynamic typing of field values.
//
// # Thread Safety
//
// Parse and ParseReader are safe for concurrent use: each call creates its
// own handle with no shared mutable state. A Handle, Streamer or Scanner
// serves one stream and must not receive input from multiple goroutines
// concurrently; the pause/resume/abort controls may be called from other
// goroutines.
//
// # Parsing APIs
//
//   - Parse(input, cfg) — whole input already in memory
//   - ParseReader(r, cfg) — any io.Reader, decoded and streamed internally
//   - NewScanner(r, cfg) — pull-style row iteration over a stream
//   - NewStreamer(cfg) — push-style chunk feeding with callbacks
//   - ParseAsync(ctx, cfg, input, opts) — copy-in/copy-out execution on a
//     separate goroutine
//
// # Example
//
//	cfg := dsv.DefaultConfig()
//	cfg.Header = true
//	res, err := dsv.Parse("name,age\nAlice,30\nBob,25", cfg)
//	if err != nil {
//	    // configuration error
//	}
//	// res.Records[0]["name"] == "Alice"
package dsv

import (
	"context"
	"io"
)

// Parse parses a complete input string and returns the result. The only
// error returned is a configuration error; data-level problems are
// collected in Result.Errors.
//
// Leave cfg.Delimiter or cfg.Newline empty to have them guessed from the
// input.
func Parse(input string, cfg Config) (*Result, error) {
	h, err := NewHandle(cfg)
	if err != nil {
		return nil, err
	}
	return h.Parse(input, 0, false), nil
}

// ParseReader parses delimited text from an io.Reader, streaming it in
// chunks with constant memory per chunk. Gzip and UTF-16 input are decoded
// transparently. All rows are accumulated on the returned result; for
// incremental consumption use NewScanner or NewStreamer with callbacks.
func ParseReader(r io.Reader, cfg Config) (*Result, error) {
	final := &Result{}
	streamer, err := NewStreamer(StreamConfig{
		Config: cfg,
		OnChunk: func(res *Result, _ *Streamer) {
			final.Rows = append(final.Rows, res.Rows...)
			final.Records = append(final.Records, res.Records...)
			final.Errors = append(final.Errors, res.Errors...)
		},
		OnComplete: func(res *Result) {
			final.Meta = res.Meta
		},
	})
	if err != nil {
		return nil, err
	}
	source, err := NewReaderSource(r, streamer)
	if err != nil {
		return nil, err
	}
	if err := source.Run(context.Background()); err != nil {
		return nil, err
	}
	return final, nil
}

// Format returns the format identifier for this parser.
func Format() string {
	return "DSV"
}

// Serializer is the contract for the reverse operation: turning parsed
// rows back into delimited text. Serialization lives outside this package;
// it depends only on the row and header shapes, never on parser internals.
// A Serializer must be a pure function of its inputs.
type Serializer func(rows []Row, headers []string) (string, error)
