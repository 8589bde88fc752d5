package dsv

import (
	"strconv"
	"sync"

	"github.com/shapestone/shape-dsv/internal/assembler"
	"github.com/shapestone/shape-dsv/internal/lexer"
)

// State is the lifecycle phase of a Handle.
type State int32

const (
	// StateIdle means no parse has started yet.
	StateIdle State = iota
	// StateRunning means a parse is consuming input.
	StateRunning
	// StatePaused means the caller suspended the parse mid-stream.
	StatePaused
	// StateFinished means the stream has been fully consumed.
	StateFinished
	// StateAborted means the caller terminated the stream early.
	StateAborted
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateFinished:
		return "finished"
	case StateAborted:
		return "aborted"
	default:
		return "state(" + strconv.Itoa(int(s)) + ")"
	}
}

// Handle orchestrates one parse: it resolves missing dialect settings via
// the sniffer, drives the lexer and assembler, applies value transforms and
// dynamic typing, maps rows to header-keyed records, and exposes pause,
// resume and abort as a small state machine.
//
// A Handle serves one stream. Chunks of the same stream go through the same
// Handle so the header set, row count and dialect guess persist.
type Handle struct {
	mu    sync.Mutex
	state State

	cfg Config
	asm *assembler.Assembler
	lex *lexer.Lexer

	// Resolved dialect. Empty until configured or guessed.
	delimiter string
	newline   string

	// Current parse bookkeeping.
	input      string
	baseCursor int
	res        *Result

	// Pause bookkeeping.
	pauseRequested bool
	pausedTail     string
	pausedCursor   int

	// Attached chunk coordinator, nil for whole-input parses.
	streamer *Streamer

	typingMemo map[string]bool
}

// NewHandle validates the configuration and creates a Handle.
func NewHandle(cfg Config) (*Handle, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.QuoteChar == 0 {
		cfg.QuoteChar = '"'
	}
	if cfg.EscapeChar == 0 {
		cfg.EscapeChar = cfg.QuoteChar
	}
	h := &Handle{
		cfg:       cfg,
		delimiter: cfg.Delimiter,
		newline:   cfg.Newline,
	}
	asmCfg := cfg.assemblerConfig()
	if cfg.Step != nil {
		asmCfg.Step = h.step
	}
	h.asm = assembler.New(asmCfg)
	if cfg.DynamicTyping.Func != nil {
		h.typingMemo = make(map[string]bool)
	}
	return h, nil
}

// State returns the current lifecycle phase.
func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Parse consumes one input buffer. baseCursor is the byte offset of the
// buffer's first character within the original un-chunked input, so cursor
// values in the result and in errors are absolute. When ignoreLastRow is
// set, an unterminated trailing row is discarded instead of emitted (used
// when more chunks are still coming).
//
// Parse always returns a Result; data-level problems are collected in
// Result.Errors and never fail the call.
func (h *Handle) Parse(input string, baseCursor int, ignoreLastRow bool) *Result {
	h.mu.Lock()
	if h.state == StateIdle || h.state == StatePaused {
		h.state = StateRunning
	}
	h.mu.Unlock()

	h.input = input
	h.baseCursor = baseCursor
	res := &Result{}
	h.res = res

	h.resolveDialect(input, res)

	h.lex.SetInput(input)
	tokens, lexErrs, byComment := h.lex.Tokenize()
	rows, asmErrs := h.asm.Parse(tokens, lexErrs, byComment, ignoreLastRow)

	for _, row := range rows {
		typed := h.typeRow(row)
		if h.cfg.Header {
			res.Records = append(res.Records, h.mapRecord(typed))
		} else {
			res.Rows = append(res.Rows, typed)
		}
	}
	for _, ae := range asmErrs {
		res.Errors = append(res.Errors, h.convertError(ae))
	}

	h.mu.Lock()
	paused := h.pauseRequested
	aborted := h.state == StateAborted
	finished := false
	if paused {
		h.pauseRequested = false
		h.state = StatePaused
		h.pausedCursor = baseCursor + h.asm.Cursor()
		h.pausedTail = input[h.asm.Cursor():]
		h.asm.ResetAbort()
	} else if aborted {
		res.Errors = append(res.Errors, ParseError{
			Category: CategoryAbort,
			Code:     CodeParseAbort,
			Message:  "Parse aborted by caller",
			Row:      -1,
			Index:    baseCursor + h.asm.Cursor(),
		})
	} else if h.streamer == nil {
		h.state = StateFinished
		finished = true
	}
	h.mu.Unlock()

	h.fillMeta(res, aborted)
	res.Meta.Finished = finished
	return res
}

// Pause suspends the parse at the next row boundary. The in-flight
// assembler stops cooperatively; the unconsumed tail of the current input
// is retained for Resume. Safe to call from a Step callback.
func (h *Handle) Pause() {
	h.mu.Lock()
	if h.state == StateRunning {
		h.pauseRequested = true
		h.asm.Abort()
	}
	h.mu.Unlock()
}

// Resume re-parses the tail retained by Pause. When a chunk coordinator is
// attached, Resume first waits for it to confirm it has halted; resuming
// against a coordinator still mid-chunk-dispatch would corrupt cursor
// bookkeeping. Safe to call from a different goroutine than Pause.
func (h *Handle) Resume() (*Result, error) {
	h.mu.Lock()
	if h.state != StatePaused {
		h.mu.Unlock()
		return nil, ErrNotPaused
	}
	tail := h.pausedTail
	cursor := h.pausedCursor
	h.pausedTail = ""
	streamer := h.streamer
	h.mu.Unlock()

	ignoreLast := false
	if streamer != nil {
		streamer.waitHalted()
		ignoreLast = streamer.midStream()
	}
	res := h.Parse(tail, cursor, ignoreLast)
	if streamer != nil {
		streamer.resumed(res, tail)
	}
	return res, nil
}

// Abort terminates the stream. Token consumption stops at the next safe
// point; partial results are still delivered with the aborted flag set.
func (h *Handle) Abort() {
	h.mu.Lock()
	if h.state != StateFinished {
		h.state = StateAborted
		h.asm.Abort()
	}
	h.mu.Unlock()
}

// Headers returns the de-duplicated header set, nil until the header row
// has been parsed.
func (h *Handle) Headers() []string { return h.asm.Headers() }

// attach wires a chunk coordinator to this handle.
func (h *Handle) attach(s *Streamer) {
	h.mu.Lock()
	h.streamer = s
	h.mu.Unlock()
}

// finish moves a streamed handle to its terminal state once the attached
// coordinator has delivered the last chunk.
func (h *Handle) finish() {
	h.mu.Lock()
	if h.state == StateRunning || h.state == StateIdle {
		h.state = StateFinished
	}
	h.mu.Unlock()
}

// resolveDialect fills in the newline and delimiter, guessing from the
// current input where the configuration left them unset. A guess is made
// once per stream and reused for subsequent chunks so results are
// chunk-invariant.
func (h *Handle) resolveDialect(input string, res *Result) {
	if h.newline == "" || h.delimiter == "" {
		sniffer := NewSniffer(input).
			SetQuote(h.cfg.QuoteChar).
			SetComment(h.cfg.Comment).
			SetSkipEmptyLines(h.cfg.SkipEmptyLines).
			SetCandidates(h.cfg.DelimitersToGuess)
		if h.newline == "" {
			h.newline = sniffer.DetectNewline()
		}
		if h.delimiter == "" {
			if guess, ok := sniffer.DetectDelimiter(); ok {
				h.delimiter = guess
			} else {
				// Fall back rather than fail. Setting the delimiter keeps the
				// guess from re-running, so the error is recorded once per
				// stream.
				h.delimiter = ","
				res.Errors = append(res.Errors, ParseError{
					Category: CategoryDelimiter,
					Code:     CodeUndetectableDelimiter,
					Message:  "Unable to auto-detect delimiting character; defaulted to ','",
					Row:      -1,
					Index:    -1,
				})
			}
		}
	}
	if h.lex == nil {
		cfg := h.cfg
		cfg.Delimiter = h.delimiter
		cfg.Newline = h.newline
		lex, err := lexer.New(cfg.lexerConfig())
		if err != nil {
			// Config was validated up front; a guessed delimiter can still
			// collide with the comment marker. Fall back to the default.
			cfg.Delimiter = ","
			h.delimiter = ","
			lex, _ = lexer.New(cfg.lexerConfig())
		}
		h.lex = lex
	}
}

// step adapts the assembler's per-row callback to the public StepFunc:
// typing and record mapping are applied to the single row, and the Result
// handed out is scoped to just that row.
func (h *Handle) step(row []string, errs []assembler.Error) {
	typed := h.typeRow(row)
	res := &Result{}
	if h.cfg.Header {
		res.Records = []Record{h.mapRecord(typed)}
	} else {
		res.Rows = []Row{typed}
	}
	for _, ae := range errs {
		res.Errors = append(res.Errors, h.convertError(ae))
	}
	h.fillMeta(res, false)
	h.cfg.Step(res, h)
}

// typeRow applies the caller transform, then dynamic typing, to one row.
func (h *Handle) typeRow(row []string) Row {
	typed := make(Row, len(row))
	headers := h.asm.Headers()
	for i, v := range row {
		field := ""
		if i < len(headers) {
			field = headers[i]
		}
		if h.cfg.Transform != nil {
			v = h.cfg.Transform(v, field, i)
		}
		if h.shouldType(field, i) {
			typed[i] = typeValue(v)
		} else {
			typed[i] = v
		}
	}
	return typed
}

// shouldType resolves the typing configuration for one field, memoizing
// predicate decisions.
func (h *Handle) shouldType(field string, index int) bool {
	t := h.cfg.DynamicTyping
	if !t.active() {
		return false
	}
	if v, ok := t.Indexes[index]; ok {
		return v
	}
	if v, ok := t.Fields[field]; ok {
		return v
	}
	if t.Func != nil {
		key := field
		if key == "" {
			key = strconv.Itoa(index)
		}
		if v, ok := h.typingMemo[key]; ok {
			return v
		}
		v := t.Func(field)
		h.typingMemo[key] = v
		return v
	}
	return t.All
}

// mapRecord turns a typed row into a header-keyed record. Surplus values
// land under ParsedExtraKey; missing columns are simply absent.
func (h *Handle) mapRecord(row Row) Record {
	headers := h.asm.Headers()
	rec := make(Record, len(headers)+1)
	for i, name := range headers {
		if i < len(row) {
			rec[name] = row[i]
		}
	}
	if len(row) > len(headers) {
		rec[ParsedExtraKey] = []any(row[len(headers):])
	}
	return rec
}

// convertError maps an assembler error into the public taxonomy.
func (h *Handle) convertError(ae assembler.Error) ParseError {
	pe := ParseError{
		Code:    ae.Code,
		Message: ae.Message,
		Row:     ae.Row,
		Index:   -1,
	}
	switch ae.Code {
	case assembler.CodeTooFewFields, assembler.CodeTooManyFields:
		pe.Category = CategoryFieldMismatch
	default:
		pe.Category = CategoryQuotes
		pe.Index = h.baseCursor + ae.Index
	}
	return pe
}

// fillMeta stamps the shared metadata onto a result.
func (h *Handle) fillMeta(res *Result, aborted bool) {
	res.Meta.Delimiter = h.delimiter
	res.Meta.Newline = h.newline
	res.Meta.Fields = h.asm.Headers()
	res.Meta.RenamedHeaders = h.asm.Renamed()
	res.Meta.Aborted = aborted
	res.Meta.Truncated = h.asm.Truncated()
	res.Meta.Cursor = h.baseCursor + h.asm.Cursor()
}
