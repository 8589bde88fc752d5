package dsv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// collect gathers everything a streamer delivers through its callbacks.
type collect struct {
	rows     []Row
	records  []Record
	errs     []ParseError
	terminal *Result
	chunks   int
}

func newCollectStreamer(t *testing.T, cfg Config) (*Streamer, *collect) {
	t.Helper()
	c := &collect{}
	s, err := NewStreamer(StreamConfig{
		Config: cfg,
		OnChunk: func(res *Result, _ *Streamer) {
			c.chunks++
			c.rows = append(c.rows, res.Rows...)
			c.records = append(c.records, res.Records...)
			c.errs = append(c.errs, res.Errors...)
		},
		OnComplete: func(res *Result) {
			require.Nil(t, c.terminal, "completion must fire exactly once")
			c.terminal = res
		},
	})
	require.NoError(t, err)
	return s, c
}

func TestStreamerSingleChunk(t *testing.T) {
	s, c := newCollectStreamer(t, DefaultConfig())
	res, err := s.Feed("a,b\nc,d", true)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, []Row{{"a", "b"}, {"c", "d"}}, c.rows)
	require.NotNil(t, c.terminal)
	assert.True(t, c.terminal.Meta.Finished)
	assert.True(t, s.Finished())

	_, err = s.Feed("more", true)
	assert.ErrorIs(t, err, ErrFinished)
}

func TestStreamerPartialLineCarryover(t *testing.T) {
	s, c := newCollectStreamer(t, DefaultConfig())

	res, err := s.Feed("a,b\nc,", false)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, []Row{{"a", "b"}}, c.rows, "the split row must be withheld")

	res, err = s.Feed("d\ne,f", true)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, []Row{{"a", "b"}, {"c", "d"}, {"e", "f"}}, c.rows)
	assert.Empty(t, c.errs)
}

func TestStreamerLineSpanningChunks(t *testing.T) {
	s, c := newCollectStreamer(t, DefaultConfig())

	// No line terminator yet: the streamer must hold everything and ask for
	// more input.
	res, err := s.Feed("one,two,th", false)
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.Zero(t, c.chunks)

	res, err = s.Feed("ree", true)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, []Row{{"one", "two", "three"}}, c.rows)
}

func TestStreamerUndetectableDelimiterRecordedOnce(t *testing.T) {
	s, c := newCollectStreamer(t, Config{})

	_, err := s.Feed("alpha\nbeta\n", false)
	require.NoError(t, err)
	_, err = s.Feed("gamma\ndelta\n", true)
	require.NoError(t, err)

	var delimErrs int
	for _, e := range c.errs {
		if e.Category == CategoryDelimiter {
			delimErrs++
		}
	}
	assert.Equal(t, 1, delimErrs, "fallback is recorded once per stream")
	assert.Equal(t, ",", c.terminal.Meta.Delimiter)
	assert.Equal(t, []Row{{"alpha"}, {"beta"}, {"gamma"}, {"delta"}}, c.rows)
}

func TestStreamerChunkInvariance(t *testing.T) {
	input := "name,city\nAlice,Boston\nBob,\"New\nYork\"\nCarol,Oslo\n"
	cfg := DefaultConfig()

	whole, err := Parse(input, cfg)
	require.NoError(t, err)

	// Every split point must be transparent, including ones inside a quoted
	// field that spans the boundary.
	for i := 1; i < len(input)-1; i++ {
		s, c := newCollectStreamer(t, cfg)
		_, err := s.Feed(input[:i], false)
		require.NoError(t, err)
		_, err = s.Feed(input[i:], true)
		require.NoError(t, err)
		assert.Equal(t, whole.Rows, c.rows, "split at byte %d", i)
		assert.Empty(t, c.errs, "split at byte %d", i)
	}
}

func TestStreamerCursorAdvances(t *testing.T) {
	s, _ := newCollectStreamer(t, DefaultConfig())

	res, err := s.Feed("a,b\nc,d\n", false)
	require.NoError(t, err)
	assert.Equal(t, len("a,b\nc,d\n"), res.Meta.Cursor)

	res, err = s.Feed("e,f\n", true)
	require.NoError(t, err)
	assert.Equal(t, len("a,b\nc,d\ne,f\n"), res.Meta.Cursor)
}

func TestStreamerHeaderAcrossChunks(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Header = true
	s, c := newCollectStreamer(t, cfg)

	_, err := s.Feed("name,age\n", false)
	require.NoError(t, err)
	_, err = s.Feed("Alice,30\n", false)
	require.NoError(t, err)
	_, err = s.Feed("Bob,25", true)
	require.NoError(t, err)

	require.Len(t, c.records, 2)
	assert.Equal(t, Record{"name": "Alice", "age": "30"}, c.records[0])
	assert.Equal(t, Record{"name": "Bob", "age": "25"}, c.records[1])
	assert.Equal(t, []string{"name", "age"}, s.Handle().Headers())
}

func TestStreamerPreviewStopsStream(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Preview = 2
	s, c := newCollectStreamer(t, cfg)

	_, err := s.Feed("a\nb\nc\nd\n", false)
	require.NoError(t, err)
	assert.True(t, s.Finished())
	assert.Equal(t, []Row{{"a"}, {"b"}}, c.rows)
	require.NotNil(t, c.terminal)
	assert.True(t, c.terminal.Meta.Truncated)
}

func TestStreamerPauseBetweenChunks(t *testing.T) {
	s, c := newCollectStreamer(t, DefaultConfig())

	_, err := s.Feed("a\n", false)
	require.NoError(t, err)

	s.Pause()
	assert.True(t, s.Paused())
	_, err = s.Feed("b\n", false)
	assert.ErrorIs(t, err, ErrPaused)

	res, err := s.Resume()
	require.NoError(t, err)
	assert.Nil(t, res, "nothing to re-parse when paused between chunks")
	assert.False(t, s.Paused())

	_, err = s.Feed("b\n", true)
	require.NoError(t, err)
	assert.Equal(t, []Row{{"a"}, {"b"}}, c.rows)
}

func TestStreamerPauseMidChunk(t *testing.T) {
	cfg := DefaultConfig()
	var stepped []Row
	cfg.Step = func(res *Result, h *Handle) {
		stepped = append(stepped, res.Rows...)
		if len(stepped) == 1 {
			h.Pause()
		}
	}
	s, c := newCollectStreamer(t, cfg)

	_, err := s.Feed("a\nb\nc\n", true)
	require.NoError(t, err)
	assert.True(t, s.Paused())
	assert.Equal(t, []Row{{"a"}}, stepped)
	assert.Nil(t, c.terminal, "stream must not complete while paused")

	_, err = s.Resume()
	require.NoError(t, err)
	assert.Equal(t, []Row{{"a"}, {"b"}, {"c"}}, stepped)
	assert.True(t, s.Finished())
	require.NotNil(t, c.terminal)
	assert.True(t, c.terminal.Meta.Finished)
}

func TestStreamerAbort(t *testing.T) {
	s, c := newCollectStreamer(t, DefaultConfig())

	_, err := s.Feed("a\nb\n", false)
	require.NoError(t, err)

	s.Abort()
	assert.True(t, s.Finished())
	require.NotNil(t, c.terminal)
	assert.True(t, c.terminal.Meta.Aborted)
	assert.True(t, c.terminal.Meta.Finished)

	_, err = s.Feed("c\n", false)
	assert.ErrorIs(t, err, ErrFinished)
}

func TestStreamerAbortAfterCompleteIsNoop(t *testing.T) {
	s, c := newCollectStreamer(t, DefaultConfig())
	_, err := s.Feed("a\n", true)
	require.NoError(t, err)
	require.NotNil(t, c.terminal)
	assert.False(t, c.terminal.Meta.Aborted)

	// The exactly-once completion contract holds across a late abort; the
	// require.Nil inside the collector would fail on a second delivery.
	s.Abort()
}

func TestStreamerRowsCount(t *testing.T) {
	s, _ := newCollectStreamer(t, DefaultConfig())
	_, err := s.Feed("a\nb\n", false)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Rows())
	_, err = s.Feed("c", true)
	require.NoError(t, err)
	assert.Equal(t, 3, s.Rows())
}
