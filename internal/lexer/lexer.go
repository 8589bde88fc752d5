package lexer

import (
	"fmt"
	"strings"
)

// FastMode controls whether the split-based scanner may be used.
type FastMode int

const (
	// FastModeAuto uses the fast path when the input contains no quote
	// character, and the full scan otherwise.
	FastModeAuto FastMode = iota
	// FastModeOn always uses the fast path. Quote characters in the input
	// are then treated as ordinary field content.
	FastModeOn
	// FastModeOff always uses the full quote-aware scan.
	FastModeOff
)

// Config configures a Lexer. The zero value is not usable; call New, which
// fills defaults and validates the character assignments once up front.
type Config struct {
	// Delimiter separates fields. May be multi-byte. Default: ","
	Delimiter string
	// Newline terminates rows. Must be "\n", "\r" or "\r\n". Default: "\n"
	Newline string
	// Quote opens and closes a quoted field. Default: '"'
	Quote rune
	// Escape marks a quote as data inside a quoted field. When Escape equals
	// Quote, a doubled quote is the escape form. Default: same as Quote.
	Escape rune
	// Comment, when non-empty, drops any row whose first character starts
	// this marker. May be multi-byte. Default: disabled.
	Comment string
	// FastMode selects the scanning strategy.
	FastMode FastMode
}

func (c Config) withDefaults() Config {
	if c.Delimiter == "" {
		c.Delimiter = ","
	}
	if c.Newline == "" {
		c.Newline = "\n"
	}
	if c.Quote == 0 {
		c.Quote = '"'
	}
	if c.Escape == 0 {
		c.Escape = c.Quote
	}
	return c
}

// validate rejects character assignments that make tokenization ambiguous.
// These are programmer errors and surface at construction, never mid-parse.
func (c Config) validate() error {
	switch c.Newline {
	case "\n", "\r", "\r\n":
	default:
		return fmt.Errorf("lexer: invalid newline %q", c.Newline)
	}
	if c.Delimiter == "" {
		return fmt.Errorf("lexer: empty delimiter")
	}
	if strings.ContainsAny(c.Delimiter, "\r\n") {
		return fmt.Errorf("lexer: delimiter %q contains a line break", c.Delimiter)
	}
	if strings.ContainsRune(c.Delimiter, c.Quote) {
		return fmt.Errorf("lexer: delimiter %q contains the quote character", c.Delimiter)
	}
	if c.Comment != "" {
		if c.Comment == c.Delimiter {
			return fmt.Errorf("lexer: comment marker equals the delimiter")
		}
		if strings.ContainsRune(c.Comment, c.Quote) {
			return fmt.Errorf("lexer: comment marker %q contains the quote character", c.Comment)
		}
	}
	return nil
}

// Lexer tokenizes one buffer of delimited text. A Lexer may be reused for
// successive buffers via SetInput; configuration is fixed at construction.
type Lexer struct {
	cfg   Config
	input string
}

// New builds a Lexer, applying defaults and validating the configuration.
func New(cfg Config) (*Lexer, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Lexer{cfg: cfg}, nil
}

// SetInput replaces the buffer to be tokenized.
func (l *Lexer) SetInput(input string) {
	l.input = input
}

// Tokenize scans the current input and returns the token stream, any
// data-level errors encountered, and whether the input ended inside a
// comment row that had no trailing line terminator. Tokenize never fails:
// malformed input is represented as errors plus best-effort field values.
func (l *Lexer) Tokenize() ([]Token, []Error, bool) {
	if l.useFastPath() {
		return l.tokenizeFast()
	}
	return l.tokenizeFull()
}

func (l *Lexer) useFastPath() bool {
	switch l.cfg.FastMode {
	case FastModeOn:
		return true
	case FastModeOff:
		return false
	default:
		return !strings.ContainsRune(l.input, l.cfg.Quote)
	}
}

// tokenizeFast splits on the line terminator, then on the delimiter. No
// quote handling, no backtracking.
func (l *Lexer) tokenizeFast() ([]Token, []Error, bool) {
	var (
		tokens    []Token
		pos       int
		byComment bool
	)
	lines := strings.Split(l.input, l.cfg.Newline)
	for i, line := range lines {
		lineStart := pos
		pos += len(line)
		hasNewline := i < len(lines)-1
		if l.cfg.Comment != "" && strings.HasPrefix(line, l.cfg.Comment) {
			// Comment rows contribute no tokens, not even the newline.
			if hasNewline {
				pos += len(l.cfg.Newline)
			} else {
				byComment = true
			}
			continue
		}
		fieldPos := lineStart
		for j, field := range strings.Split(line, l.cfg.Delimiter) {
			if j > 0 {
				tokens = append(tokens, Token{
					Kind:  KindDelimiter,
					Value: l.cfg.Delimiter,
					Pos:   fieldPos - len(l.cfg.Delimiter),
					Len:   len(l.cfg.Delimiter),
				})
			}
			if field != "" {
				tokens = append(tokens, Token{Kind: KindField, Value: field, Pos: fieldPos, Len: len(field)})
			}
			fieldPos += len(field) + len(l.cfg.Delimiter)
		}
		if hasNewline {
			tokens = append(tokens, Token{Kind: KindNewline, Value: l.cfg.Newline, Pos: pos, Len: len(l.cfg.Newline)})
			pos += len(l.cfg.Newline)
		}
	}
	tokens = append(tokens, Token{Kind: KindEOF, Pos: len(l.input)})
	return tokens, nil, byComment
}

// tokenizeFull is the quote-aware scan. It walks the input with a cursor,
// dispatching on whether the next field opens with a quote.
func (l *Lexer) tokenizeFull() ([]Token, []Error, bool) {
	var (
		tokens   []Token
		errs     []Error
		cursor   int
		rowStart = true
	)
	input := l.input
	delim := l.cfg.Delimiter
	newline := l.cfg.Newline
	quote := string(l.cfg.Quote)

	for cursor < len(input) {
		if rowStart && l.cfg.Comment != "" && strings.HasPrefix(input[cursor:], l.cfg.Comment) {
			nl := strings.Index(input[cursor:], newline)
			if nl == -1 {
				tokens = append(tokens, Token{Kind: KindEOF, Pos: len(input)})
				return tokens, errs, true
			}
			cursor += nl + len(newline)
			continue
		}
		rowStart = false

		if strings.HasPrefix(input[cursor:], quote) {
			tok, quoteErrs, terminated := l.scanQuoted(cursor)
			tokens = append(tokens, tok)
			errs = append(errs, quoteErrs...)
			cursor = tok.Pos + tok.Len
			if terminated {
				// Unterminated quote: the remainder became the field value.
				break
			}
		} else if field, ok := l.scanUnquoted(cursor); ok {
			tokens = append(tokens, field)
			cursor += field.Len
		}

		// After a field (possibly empty and unemitted) comes a delimiter,
		// a newline, or the end of input.
		switch {
		case cursor >= len(input):
		case strings.HasPrefix(input[cursor:], delim):
			tokens = append(tokens, Token{Kind: KindDelimiter, Value: delim, Pos: cursor, Len: len(delim)})
			cursor += len(delim)
		case strings.HasPrefix(input[cursor:], newline):
			tokens = append(tokens, Token{Kind: KindNewline, Value: newline, Pos: cursor, Len: len(newline)})
			cursor += len(newline)
			rowStart = true
		}
	}
	tokens = append(tokens, Token{Kind: KindEOF, Pos: len(input)})
	return tokens, errs, false
}

// scanUnquoted consumes field content up to the next delimiter or newline.
// Returns ok=false for an empty field (the assembler infers those). A lone
// \r in \r\n-terminated input is not a line ending; it stays in the value,
// the same as on the fast path.
func (l *Lexer) scanUnquoted(start int) (Token, bool) {
	rest := l.input[start:]
	end := len(rest)
	if i := strings.Index(rest, l.cfg.Delimiter); i >= 0 && i < end {
		end = i
	}
	if i := strings.Index(rest, l.cfg.Newline); i >= 0 && i < end {
		end = i
	}
	if end == 0 {
		return Token{}, false
	}
	return Token{Kind: KindField, Value: rest[:end], Pos: start, Len: end}, true
}

// scanQuoted consumes a quoted field starting at the opening quote. It
// returns the field token (Len spans opening quote through closing quote),
// any quote errors, and whether scanning must terminate because no closing
// quote exists.
func (l *Lexer) scanQuoted(start int) (Token, []Error, bool) {
	var (
		value strings.Builder
		errs  []Error
	)
	input := l.input
	quote := l.cfg.Quote
	quoteStr := string(quote)
	escape := l.cfg.Escape
	qlen := len(quoteStr)

	// segStart tracks the beginning of the literal run being accumulated.
	segStart := start + qlen
	search := segStart

	for {
		qi := strings.Index(input[search:], quoteStr)
		if qi == -1 {
			// No closing quote anywhere: take the rest as the value.
			value.WriteString(input[segStart:])
			errs = append(errs, Error{
				Code:    CodeMissingQuotes,
				Message: "Quoted field unterminated",
				Index:   start,
			})
			return Token{Kind: KindField, Value: value.String(), Pos: start, Len: len(input) - start}, errs, true
		}
		qi += search

		if escape == quote {
			// Doubled quote is an escaped quote.
			if strings.HasPrefix(input[qi+qlen:], quoteStr) {
				value.WriteString(input[segStart:qi])
				value.WriteString(quoteStr)
				segStart = qi + 2*qlen
				search = segStart
				continue
			}
		} else if qi > start+qlen && rune(input[qi-1]) == escape {
			// Preceding escape character marks this quote as data.
			value.WriteString(input[segStart : qi-1])
			value.WriteString(quoteStr)
			segStart = qi + qlen
			search = segStart
			continue
		}

		// Candidate closing quote: valid only if, past any run of spaces or
		// tabs, the next characters are the delimiter, the newline, or EOF.
		after := qi + qlen
		ws := after
		for ws < len(input) && (input[ws] == ' ' || input[ws] == '\t') {
			ws++
		}
		if ws == len(input) ||
			strings.HasPrefix(input[ws:], l.cfg.Delimiter) ||
			strings.HasPrefix(input[ws:], l.cfg.Newline) {
			value.WriteString(input[segStart:qi])
			return Token{Kind: KindField, Value: value.String(), Pos: start, Len: ws - start}, errs, false
		}

		errs = append(errs, Error{
			Code:    CodeInvalidQuotes,
			Message: "Trailing quote on quoted field is malformed",
			Index:   qi,
		})
		search = qi + qlen
	}
}
