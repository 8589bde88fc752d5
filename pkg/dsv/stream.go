package dsv

import (
	"sync"
)

// StreamConfig configures a Streamer: the parse configuration plus the
// chunk-level callbacks and sizing.
type StreamConfig struct {
	Config

	// OnChunk is invoked with each chunk-level result, in input order.
	OnChunk func(res *Result, s *Streamer)

	// OnComplete is invoked exactly once, after the last chunk-level result
	// has been delivered: on source exhaustion, preview truncation, or
	// abort. The result carries Meta.Finished = true.
	OnComplete func(res *Result)

	// OnError is invoked for I/O failures of a reader-backed source.
	OnError func(err error)

	// ChunkSize is the read size used by reader-backed sources.
	// Default: DefaultChunkSize.
	ChunkSize int
}

// DefaultChunkSize is the read size for reader-backed chunk sources.
const DefaultChunkSize = 64 * 1024

// Streamer drives a Handle over arbitrarily sized text chunks. Any partial
// trailing row, including a quoted field cut mid-chunk, is withheld and
// prepended to the next chunk, so results match an unchunked parse; a
// monotonic cursor into the original input is maintained throughout.
//
// Chunks are processed strictly sequentially; the Streamer is not safe for
// concurrent Feed calls. Pause, Resume and Abort may be called from other
// goroutines.
type Streamer struct {
	cfg    StreamConfig
	handle *Handle

	mu          sync.Mutex
	cond        *sync.Cond
	pending     string // partial trailing row carried across chunk boundaries
	baseCursor  int
	rowsEmitted int
	finalSeen   bool
	finished    bool
	paused      bool
	halted      bool
	completed   bool
}

// NewStreamer validates the configuration and creates a Streamer with its
// own Handle attached.
func NewStreamer(cfg StreamConfig) (*Streamer, error) {
	handle, err := NewHandle(cfg.Config)
	if err != nil {
		return nil, err
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	s := &Streamer{cfg: cfg, handle: handle, halted: true}
	s.cond = sync.NewCond(&s.mu)
	handle.attach(s)
	return s, nil
}

// Handle returns the attached parse handle.
func (s *Streamer) Handle() *Handle { return s.handle }

// Finished reports whether the stream has terminated, whether because the
// source was exhausted, the preview cap was reached, or the caller aborted.
func (s *Streamer) Finished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finished
}

// Paused reports whether the stream is currently paused.
func (s *Streamer) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// Rows returns the number of data rows emitted so far.
func (s *Streamer) Rows() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rowsEmitted
}

// Feed delivers one chunk of input, in source order. final marks the last
// chunk of the source.
//
// The partial tail withheld from the previous chunk is prepended; unless
// this is the final chunk, the trailing row still in progress is withheld
// again rather than emitted. The cut point comes from the parser's own
// cursor, so a quoted field spanning a chunk boundary (even one containing
// line terminators) is reassembled correctly. A nil result with nil error
// means no complete row has accumulated yet and more input is needed.
func (s *Streamer) Feed(chunk string, final bool) (*Result, error) {
	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		return nil, ErrFinished
	}
	if s.paused {
		s.mu.Unlock()
		return nil, ErrPaused
	}
	s.halted = false
	aggregate := s.pending + chunk
	s.pending = ""
	base := s.baseCursor
	s.mu.Unlock()

	res := s.handle.Parse(aggregate, base, !final)
	consumed := s.handle.asm.Cursor()

	s.mu.Lock()
	if final {
		s.finalSeen = true
	}
	s.rowsEmitted = s.handle.asm.Rows()
	state := s.handle.State()

	if !final && consumed == 0 && res.Len() == 0 && len(res.Errors) == 0 && state != StatePaused {
		// A single logical row spans multiple chunks: hold everything and
		// ask for more input.
		s.pending = aggregate
		s.halted = true
		s.cond.Broadcast()
		s.mu.Unlock()
		return nil, nil
	}

	s.baseCursor = base + consumed
	switch {
	case state == StatePaused:
		// The handle retained the unconsumed tail for Resume.
		s.paused = true
	case state == StateAborted, res.Meta.Truncated, final:
		s.finished = true
	default:
		s.pending = aggregate[consumed:]
	}
	finished := s.finished
	s.halted = true
	s.cond.Broadcast()
	s.mu.Unlock()

	s.deliver(res, finished)
	return res, nil
}

// deliver runs the chunk callback and, on termination, the exactly-once
// completion callback.
func (s *Streamer) deliver(res *Result, finished bool) {
	if s.cfg.OnChunk != nil {
		s.cfg.OnChunk(res, s)
	}
	if !finished {
		return
	}
	s.mu.Lock()
	already := s.completed
	s.completed = true
	s.mu.Unlock()
	if already {
		return
	}
	s.handle.finish()
	res.Meta.Finished = true
	if s.cfg.OnComplete != nil {
		s.cfg.OnComplete(res)
	}
}

// Pause suspends the stream. When called from inside a Step callback the
// in-flight parse stops at the next row boundary; when called between
// chunks the stream simply stops accepting Feed calls until Resume.
func (s *Streamer) Pause() {
	s.mu.Lock()
	betweenChunks := s.halted
	s.paused = true
	s.mu.Unlock()
	if !betweenChunks {
		// Mid-dispatch: stop the in-flight parse at the next row boundary.
		s.handle.Pause()
	}
}

// Resume continues a paused stream: the retained tail is re-parsed and the
// source may feed again. Safe to call from a different goroutine than the
// one that paused; it waits until the coordinator has actually halted.
func (s *Streamer) Resume() (*Result, error) {
	s.mu.Lock()
	if !s.paused {
		s.mu.Unlock()
		return nil, ErrNotPaused
	}
	s.mu.Unlock()
	if s.handle.State() == StatePaused {
		return s.handle.Resume()
	}
	// Paused between chunks; nothing to re-parse.
	s.mu.Lock()
	s.paused = false
	s.cond.Broadcast()
	s.mu.Unlock()
	return nil, nil
}

// Abort terminates the stream early. The completion callback still fires
// exactly once, carrying whatever partial results were delivered along
// with the aborted flag.
func (s *Streamer) Abort() {
	s.handle.Abort()
	s.mu.Lock()
	alreadyFinished := s.finished
	s.finished = true
	s.paused = false
	s.halted = true
	s.cond.Broadcast()
	s.mu.Unlock()
	if !alreadyFinished {
		res := &Result{}
		s.handle.fillMeta(res, true)
		s.deliver(res, true)
	}
}

// waitHalted blocks until the coordinator is no longer mid-chunk-dispatch.
func (s *Streamer) waitHalted() {
	s.mu.Lock()
	for !s.halted {
		s.cond.Wait()
	}
	s.mu.Unlock()
}

// waitWhilePaused blocks a pumping source while the stream is paused.
func (s *Streamer) waitWhilePaused() {
	s.mu.Lock()
	for s.paused && !s.finished {
		s.cond.Wait()
	}
	s.mu.Unlock()
}

// midStream reports whether more chunks are still expected from the
// source, so a resume parse knows to withhold its trailing row.
func (s *Streamer) midStream() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.finalSeen
}

// resumed is the handle's notification that Resume has re-parsed the
// retained tail; the source may continue feeding. parsed is the tail text
// that went through the resume parse.
func (s *Streamer) resumed(res *Result, parsed string) {
	consumed := s.handle.asm.Cursor()
	s.mu.Lock()
	s.rowsEmitted = s.handle.asm.Rows()
	state := s.handle.State()
	// A step callback may have paused again during the resume parse.
	s.paused = state == StatePaused
	if state == StateAborted || res.Meta.Truncated {
		s.finished = true
	}
	// A pause inside the final chunk defers termination to here.
	if s.finalSeen && !s.paused {
		s.finished = true
	}
	s.baseCursor += consumed
	if !s.paused && !s.finished {
		s.pending = parsed[consumed:]
	}
	finished := s.finished
	s.cond.Broadcast()
	s.mu.Unlock()
	s.deliver(res, finished)
}
