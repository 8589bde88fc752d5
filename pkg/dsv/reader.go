package dsv

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// gzipMagic is the two-byte gzip member header.
var gzipMagic = []byte{0x1f, 0x8b}

// DecodeReader wraps a raw byte stream so it yields UTF-8 text: gzip input
// is transparently decompressed (sniffed by magic bytes), UTF-16 input is
// decoded, and a UTF-8 byte-order mark is stripped. Inputs that are already
// plain UTF-8 pass through with only buffering added.
//
// Encoding concerns stay at this boundary; the parsing core only ever sees
// decoded text.
func DecodeReader(r io.Reader) (io.Reader, error) {
	br := bufio.NewReader(r)

	head, err := br.Peek(2)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("dsv: reading stream head: %w", err)
	}
	if bytes.Equal(head, gzipMagic) {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("dsv: opening gzip stream: %w", err)
		}
		br = bufio.NewReader(gz)
	}

	// BOMOverride keeps UTF-8 as-is (minus the BOM) and switches to the
	// right UTF-16 decoder when a UTF-16 BOM is present.
	utf16 := unicode.UTF8.NewDecoder()
	decoder := unicode.BOMOverride(utf16)
	return transform.NewReader(br, decoder), nil
}

// ReaderSource pumps decoded text from an io.Reader into a Streamer in
// fixed-size chunks. It is the reference I/O adapter: it produces correctly
// decoded chunks in source order, ends with a final-chunk signal, and obeys
// the stream's pause/resume by suspending reads.
type ReaderSource struct {
	streamer  *Streamer
	reader    io.Reader
	chunkSize int
}

// NewReaderSource creates a source feeding the given Streamer.
func NewReaderSource(r io.Reader, s *Streamer) (*ReaderSource, error) {
	decoded, err := DecodeReader(r)
	if err != nil {
		return nil, err
	}
	size := s.cfg.ChunkSize
	if size <= 0 {
		size = DefaultChunkSize
	}
	return &ReaderSource{
		streamer:  s,
		reader:    decoded,
		chunkSize: size,
	}, nil
}

// Run reads the source to exhaustion, feeding the streamer one chunk at a
// time. It blocks while the stream is paused, resuming reads once the
// caller resumes the stream, and returns early when the stream finishes
// first (preview truncation or abort). Cancelling the context aborts the
// stream.
//
// Pausing from a Step callback and resuming must happen on another
// goroutine; Run itself is synchronous.
func (rs *ReaderSource) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	stop := context.AfterFunc(ctx, func() {
		rs.streamer.Abort()
	})
	defer stop()

	buf := make([]byte, rs.chunkSize)
	for {
		rs.streamer.waitWhilePaused()
		if rs.streamer.Finished() {
			return ctx.Err()
		}

		n, readErr := io.ReadFull(rs.reader, buf)
		final := readErr == io.EOF || readErr == io.ErrUnexpectedEOF
		if readErr != nil && !final {
			err := fmt.Errorf("dsv: reading chunk: %w", readErr)
			if rs.streamer.cfg.OnError != nil {
				rs.streamer.cfg.OnError(err)
			}
			rs.streamer.Abort()
			return err
		}

		chunk := string(buf[:n])
		for {
			_, err := rs.streamer.Feed(chunk, final)
			if err == ErrPaused {
				// Paused from another goroutine between read and feed;
				// retry this chunk once resumed.
				rs.streamer.waitWhilePaused()
				continue
			}
			if err == ErrFinished {
				return ctx.Err()
			}
			if err != nil {
				return err
			}
			break
		}
		if final || rs.streamer.Finished() {
			return ctx.Err()
		}
	}
}
