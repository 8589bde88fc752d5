// Package lexer converts raw delimited text into a flat token stream.
//
// The lexer emits character-level tokens (field content, delimiter, line
// terminator, end of input). It does not group tokens into rows; that is the
// assembler's job. Two scanning strategies are implemented: a fast
// split-based path for input that provably contains no quote character, and
// a full quote-aware scan for everything else.
package lexer

// Kind identifies a token class.
type Kind uint8

const (
	// KindField is field content. Empty fields are never emitted as tokens;
	// the assembler infers them from adjacent delimiters and line boundaries.
	KindField Kind = iota
	// KindDelimiter is one occurrence of the configured field delimiter.
	KindDelimiter
	// KindNewline is one occurrence of the configured line terminator.
	KindNewline
	// KindEOF marks the end of the input. Emitted exactly once, last.
	KindEOF
)

// String returns the token kind name.
func (k Kind) String() string {
	switch k {
	case KindField:
		return "Field"
	case KindDelimiter:
		return "Delimiter"
	case KindNewline:
		return "Newline"
	case KindEOF:
		return "EOF"
	default:
		return "Unknown"
	}
}

// Token is a single lexical unit. Tokens are immutable once emitted.
//
// Pos is the byte offset of the token's first character in the input given
// to SetInput. Len is the number of input bytes the token consumed, which
// for quoted fields includes the surrounding quotes and any escape
// characters, so Len may exceed len(Value).
type Token struct {
	Kind  Kind
	Value string
	Pos   int
	Len   int
}

// Error codes reported by the lexer. These are data-level problems: the
// lexer records them and keeps scanning rather than failing.
const (
	CodeMissingQuotes = "MissingQuotes"
	CodeInvalidQuotes = "InvalidQuotes"
)

// Error describes a malformed region of the input. Index is the byte offset
// where the problem was detected. The assembler later attributes each error
// to a row.
type Error struct {
	Code    string
	Message string
	Index   int
}
