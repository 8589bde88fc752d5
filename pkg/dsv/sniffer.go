// Package dsv provides dialect detection for delimited text.
package dsv

import (
	"math"
	"strings"
	"unicode"

	"github.com/shapestone/shape-dsv/internal/assembler"
	"github.com/shapestone/shape-dsv/internal/lexer"
)

// Detection thresholds. These values are kept for compatibility with the
// established behavior of the format family rather than re-derived; change
// them only if every consumer can re-baseline.
const (
	// GuessPreviewRows is how many rows each delimiter candidate parses.
	GuessPreviewRows = 10
	// MinAverageFields is the average field count a candidate must exceed.
	// Guards against false positives on single-column data.
	MinAverageFields = 1.99
	// NewlineSampleLimit caps how much input the newline guess examines.
	NewlineSampleLimit = 1 << 20
)

// DefaultDelimitersToGuess is the candidate set for delimiter detection:
// comma, tab, pipe, semicolon, and the ASCII record and unit separators.
var DefaultDelimitersToGuess = []string{",", "\t", "|", ";", "\x1e", "\x1f"}

// Sniffer guesses the delimiter and line ending of a sample of delimited
// text. Detection is deterministic: the same sample always yields the same
// guess.
type Sniffer struct {
	sample     string
	quote      rune
	comment    string
	skipEmpty  SkipMode
	candidates []string
}

// NewSniffer creates a Sniffer for the given sample. For best results the
// sample should contain at least two or three rows.
func NewSniffer(sample string) *Sniffer {
	return &Sniffer{
		sample:     sample,
		quote:      '"',
		candidates: DefaultDelimitersToGuess,
	}
}

// SetQuote sets the quote character used to blank quoted spans during
// newline detection. Returns the Sniffer for method chaining.
func (s *Sniffer) SetQuote(quote rune) *Sniffer {
	if quote != 0 {
		s.quote = quote
	}
	return s
}

// SetComment sets the comment marker candidates are parsed with.
// Returns the Sniffer for method chaining.
func (s *Sniffer) SetComment(comment string) *Sniffer {
	s.comment = comment
	return s
}

// SetSkipEmptyLines mirrors the parse configuration so the field counts
// seen here match what the parser will see. Returns the Sniffer.
func (s *Sniffer) SetSkipEmptyLines(mode SkipMode) *Sniffer {
	s.skipEmpty = mode
	return s
}

// SetCandidates replaces the delimiter candidate set. Returns the Sniffer.
func (s *Sniffer) SetCandidates(candidates []string) *Sniffer {
	if len(candidates) > 0 {
		s.candidates = candidates
	}
	return s
}

// DetectDelimiter guesses the field delimiter. For each candidate it
// parses up to GuessPreviewRows rows with the fast lexer and scores the
// candidate by field-count instability (the summed change in field count
// between consecutive rows). Candidates whose average field count does not
// exceed MinAverageFields are rejected. The lowest instability wins; ties
// go to the highest average field count. ok is false when no candidate
// qualifies; callers then fall back to a configured default.
func (s *Sniffer) DetectDelimiter() (delimiter string, ok bool) {
	newline := s.DetectNewline()
	bestDelta := math.Inf(1)
	bestAvg := 0.0

	for _, candidate := range s.candidates {
		avg, delta, usable := s.score(candidate, newline)
		if !usable || avg <= MinAverageFields {
			continue
		}
		if delta < bestDelta || (delta == bestDelta && avg > bestAvg) {
			bestDelta = delta
			bestAvg = avg
			delimiter = candidate
			ok = true
		}
	}
	return delimiter, ok
}

// score parses a preview with one candidate delimiter and computes the
// average field count and the instability delta.
func (s *Sniffer) score(candidate, newline string) (avg, delta float64, usable bool) {
	lex, err := lexer.New(lexer.Config{
		Delimiter: candidate,
		Newline:   newline,
		Quote:     s.quote,
		Comment:   s.comment,
		FastMode:  lexer.FastModeOn,
	})
	if err != nil {
		return 0, 0, false
	}
	lex.SetInput(s.sample)
	tokens, _, byComment := lex.Tokenize()

	asm := assembler.New(assembler.Config{
		Preview:        GuessPreviewRows,
		SkipEmptyLines: assembler.SkipMode(s.skipEmpty),
	})
	rows, _ := asm.Parse(tokens, nil, byComment, false)
	if len(rows) == 0 {
		return 0, 0, false
	}

	fields := 0
	prev := -1
	for _, row := range rows {
		n := len(row)
		fields += n
		// Every non-empty row participates in the delta: a single-field row
		// between wider neighbors counts as instability twice, which is what
		// sinks candidates that only match on some rows.
		if prev >= 0 && n > 0 {
			delta += math.Abs(float64(n - prev))
			prev = n
		} else if prev < 0 {
			prev = n
		}
	}
	avg = float64(fields) / float64(len(rows))
	return avg, delta, true
}

// DetectNewline guesses the dominant line-ending convention. At most
// NewlineSampleLimit bytes are examined, with quoted spans blanked first so
// newlines embedded in multi-line quoted fields are not counted. Ties and
// single-line input default to "\n".
func (s *Sniffer) DetectNewline() string {
	sample := s.sample
	if len(sample) > NewlineSampleLimit {
		sample = sample[:NewlineSampleLimit]
	}
	sample = blankQuotedSpans(sample, s.quote)

	byCR := strings.Split(sample, "\r")
	byLF := strings.Split(sample, "\n")

	lfFirst := len(byLF) > 1 && len(byLF[0]) < len(byCR[0])
	if len(byCR) == 1 || lfFirst {
		return "\n"
	}
	crlf := 0
	for _, part := range byCR[1:] {
		if strings.HasPrefix(part, "\n") {
			crlf++
		}
	}
	if crlf*2 >= len(byCR) {
		return "\r\n"
	}
	return "\r"
}

// blankQuotedSpans removes the contents of quoted regions, keeping the rest
// of the text intact for line-ending counting.
func blankQuotedSpans(sample string, quote rune) string {
	var b strings.Builder
	inQuotes := false
	for _, r := range sample {
		if r == quote {
			inQuotes = !inQuotes
			continue
		}
		if !inQuotes {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// LowercaseHeader is a TransformHeader that lowercases header names.
func LowercaseHeader(name string, _ int) string {
	return strings.ToLower(name)
}

// UppercaseHeader is a TransformHeader that uppercases header names.
func UppercaseHeader(name string, _ int) string {
	return strings.ToUpper(name)
}

// SnakeCaseHeader is a TransformHeader that converts header names to
// snake_case: spaces become underscores and upper-case letters start a new
// word ("First Name" and "firstName" both become "first_name").
func SnakeCaseHeader(name string, _ int) string {
	var b strings.Builder
	prevWasSpace := false
	for i, r := range name {
		if r == ' ' {
			if b.Len() > 0 && !prevWasSpace {
				b.WriteRune('_')
			}
			prevWasSpace = true
			continue
		}
		if unicode.IsUpper(r) && i > 0 && !prevWasSpace {
			b.WriteRune('_')
		}
		b.WriteRune(unicode.ToLower(r))
		prevWasSpace = false
	}
	return b.String()
}

// HasHeader applies light heuristics to decide whether the first row of
// the sample looks like a header: header-ish names are non-numeric
// identifiers, data-ish values are numbers, emails or dates.
func (s *Sniffer) HasHeader() bool {
	delim, ok := s.DetectDelimiter()
	if !ok {
		delim = ","
	}
	newline := s.DetectNewline()
	lines := strings.Split(s.sample, newline)
	if len(lines) < 2 {
		return false
	}
	first := strings.Split(lines[0], delim)
	headerish, dataish := 0, 0
	for _, f := range first {
		f = strings.TrimSpace(f)
		if looksLikeHeader(f) {
			headerish++
		}
		if looksLikeData(f) {
			dataish++
		}
	}
	return headerish > dataish
}

func looksLikeHeader(s string) bool {
	if s == "" || looksNumeric(s) {
		return false
	}
	for i, r := range s {
		if unicode.IsLetter(r) || r == '_' {
			continue
		}
		if i > 0 && (unicode.IsDigit(r) || r == ' ' || r == '-') {
			continue
		}
		return false
	}
	return true
}

func looksLikeData(s string) bool {
	if s == "" {
		return false
	}
	if looksNumeric(s) || strings.ContainsRune(s, '@') {
		return true
	}
	return datePattern.MatchString(s)
}

func looksNumeric(s string) bool {
	return intPattern.MatchString(s) || floatPattern.MatchString(s)
}
