package dsv

import (
	"io"
)

// Scanner provides a pull-style streaming interface for reading parsed
// rows one at a time. It is memory-efficient for large inputs: chunks are
// read and parsed on demand, and only the rows of the current chunk are
// buffered.
//
// Example usage:
//
//	file, _ := os.Open("data.csv")
//	defer file.Close()
//
//	cfg := dsv.DefaultConfig()
//	cfg.Header = true
//	scanner, _ := dsv.NewScanner(file, cfg)
//	for scanner.Scan() {
//	    rec := scanner.Record()
//	    fmt.Println(rec["name"])
//	}
//	if err := scanner.Err(); err != nil {
//	    // handle error
//	}
type Scanner struct {
	streamer *Streamer
	reader   io.Reader
	buf      []byte

	rows      []Row
	records   []Record
	errs      []ParseError
	index     int
	sourceEOF bool
	err       error
}

// NewScanner creates a Scanner reading delimited text from r. The reader
// goes through DecodeReader, so gzip and UTF-16 input work transparently.
func NewScanner(r io.Reader, cfg Config) (*Scanner, error) {
	streamer, err := NewStreamer(StreamConfig{Config: cfg})
	if err != nil {
		return nil, err
	}
	decoded, err := DecodeReader(r)
	if err != nil {
		return nil, err
	}
	return &Scanner{
		streamer: streamer,
		reader:   decoded,
		buf:      make([]byte, streamer.cfg.ChunkSize),
		index:    -1,
	}, nil
}

// Scan advances to the next row, reading further chunks from the source as
// needed. It returns false at end of input or on a read error; Err then
// reports the error, nil at clean end of input.
func (s *Scanner) Scan() bool {
	if s.err != nil {
		return false
	}
	s.index++
	for s.index >= s.rowLen() {
		if !s.fill() {
			return false
		}
	}
	return true
}

// rowLen is the number of rows buffered from the current chunk.
func (s *Scanner) rowLen() int {
	if s.streamer.cfg.Header {
		return len(s.records)
	}
	return len(s.rows)
}

// fill parses the next chunk, replacing the row buffer. Returns false when
// no more rows will come.
func (s *Scanner) fill() bool {
	s.rows = nil
	s.records = nil
	s.index = 0
	for {
		if s.sourceEOF || s.streamer.Finished() {
			return false
		}
		n, readErr := io.ReadFull(s.reader, s.buf)
		final := readErr == io.EOF || readErr == io.ErrUnexpectedEOF
		if readErr != nil && !final {
			s.err = readErr
			s.streamer.Abort()
			return false
		}
		if final {
			s.sourceEOF = true
		}
		res, err := s.streamer.Feed(string(s.buf[:n]), final)
		if err != nil {
			return false
		}
		if res == nil {
			continue // line spans chunks; need more input
		}
		s.rows = res.Rows
		s.records = res.Records
		s.errs = append(s.errs, res.Errors...)
		if s.rowLen() > 0 {
			return true
		}
	}
}

// Row returns the current row. Valid only after Scan returned true.
func (s *Scanner) Row() Row {
	if s.index < 0 || s.index >= len(s.rows) {
		return nil
	}
	return s.rows[s.index]
}

// Record returns the current header-keyed record (header mode only).
// Valid only after Scan returned true.
func (s *Scanner) Record() Record {
	if s.index < 0 || s.index >= len(s.records) {
		return nil
	}
	return s.records[s.index]
}

// Headers returns the de-duplicated header set once the header row has
// been read.
func (s *Scanner) Headers() []string {
	return s.streamer.Handle().Headers()
}

// Errors returns the accumulated non-fatal parse errors.
func (s *Scanner) Errors() []ParseError {
	return s.errs
}

// Err returns the read error that stopped scanning, nil at clean end of
// input. Data-level problems are reported via Errors, not here.
func (s *Scanner) Err() error {
	return s.err
}
