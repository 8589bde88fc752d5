package dsv

import (
	"context"
	"log/slog"
	"maps"

	"github.com/google/uuid"
)

// AsyncOptions configures out-of-band execution of a parse.
type AsyncOptions struct {
	// ChunkSize is the segment size the input is streamed in.
	// Default: DefaultChunkSize.
	ChunkSize int
	// Logger receives per-request debug logging. Nil disables logging.
	Logger *slog.Logger
	// Buffer is the result channel capacity. Default: 1.
	Buffer int
}

// ParseAsync executes a parse on its own goroutine with copy-in/copy-out
// semantics: the request owns an independent copy of the configuration, and
// results come back as self-contained messages on the returned channel.
// There is no shared mutable state between the caller and the parse.
//
// The channel carries zero or more chunk-level results followed by exactly
// one terminal result with Meta.Finished set, then closes. Cancelling the
// context aborts the parse; the terminal result still arrives, with the
// aborted flag set. Callers must drain the channel until it closes.
func ParseAsync(ctx context.Context, cfg Config, input string, opts AsyncOptions) (<-chan *Result, error) {
	cfg = cloneConfig(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.Buffer <= 0 {
		opts.Buffer = 1
	}
	if ctx == nil {
		ctx = context.Background()
	}

	requestID := uuid.NewString()
	logger := opts.Logger
	if logger != nil {
		logger = logger.With(slog.String("request_id", requestID))
	}

	out := make(chan *Result, opts.Buffer)
	go func() {
		defer close(out)

		var terminal *Result
		streamer, err := NewStreamer(StreamConfig{
			Config: cfg,
			OnChunk: func(res *Result, s *Streamer) {
				if s.Finished() {
					// The terminal result is forwarded by OnComplete.
					return
				}
				select {
				case out <- res:
				case <-ctx.Done():
				}
			},
			OnComplete: func(res *Result) {
				terminal = res
			},
		})
		if err != nil {
			// Config was validated above; this is unreachable in practice.
			return
		}

		if logger != nil {
			logger.Debug("async parse started", slog.Int("input_bytes", len(input)))
		}
		for off := 0; off < len(input) || off == 0; off += opts.ChunkSize {
			if ctx.Err() != nil {
				streamer.Abort()
				break
			}
			end := off + opts.ChunkSize
			final := end >= len(input)
			if final {
				end = len(input)
			}
			if _, err := streamer.Feed(input[off:end], final); err != nil {
				break
			}
			if streamer.Finished() {
				break
			}
		}

		if terminal == nil {
			// Source loop ended without a terminal result (a pause was never
			// resumed, or the loop broke early); abort so the contract holds.
			streamer.Abort()
		}
		if terminal != nil {
			out <- terminal
		}
		if logger != nil {
			logger.Debug("async parse finished",
				slog.Bool("aborted", terminal != nil && terminal.Meta.Aborted),
				slog.Int("rows", streamer.Rows()))
		}
	}()
	return out, nil
}

// cloneConfig deep-copies the caller's configuration so the async request
// owns a disjoint copy.
func cloneConfig(cfg Config) Config {
	cfg.DelimitersToGuess = append([]string(nil), cfg.DelimitersToGuess...)
	cfg.DynamicTyping.Fields = maps.Clone(cfg.DynamicTyping.Fields)
	cfg.DynamicTyping.Indexes = maps.Clone(cfg.DynamicTyping.Indexes)
	return cfg
}
