package dsv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBasic(t *testing.T) {
	res, err := Parse("a,b,c\n1,2,3", DefaultConfig())
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, Row{"a", "b", "c"}, res.Rows[0])
	assert.Equal(t, Row{"1", "2", "3"}, res.Rows[1])
	assert.Empty(t, res.Errors)
	assert.Equal(t, ",", res.Meta.Delimiter)
	assert.Equal(t, "\n", res.Meta.Newline)
	assert.True(t, res.Meta.Finished)
	assert.False(t, res.Meta.Aborted)
}

func TestParseQuotedFields(t *testing.T) {
	res, err := Parse(`a,"b,c",d`, DefaultConfig())
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, Row{"a", "b,c", "d"}, res.Rows[0])
	assert.Empty(t, res.Errors)
}

func TestParseQuotedNewline(t *testing.T) {
	res, err := Parse("\"line1\nline2\",x", DefaultConfig())
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, Row{"line1\nline2", "x"}, res.Rows[0])
}

func TestParseUnterminatedQuote(t *testing.T) {
	res, err := Parse("a,\"bad", DefaultConfig())
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, Row{"a", "bad"}, res.Rows[0])
	require.Len(t, res.Errors, 1)
	assert.Equal(t, CategoryQuotes, res.Errors[0].Category)
	assert.Equal(t, CodeMissingQuotes, res.Errors[0].Code)
}

func TestParseHeaderRecords(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Header = true
	res, err := Parse("name,age\nAlice,30\nBob,25", cfg)
	require.NoError(t, err)
	assert.Empty(t, res.Rows)
	require.Len(t, res.Records, 2)
	assert.Equal(t, Record{"name": "Alice", "age": "30"}, res.Records[0])
	assert.Equal(t, Record{"name": "Bob", "age": "25"}, res.Records[1])
	assert.Equal(t, []string{"name", "age"}, res.Meta.Fields)
}

func TestParseDuplicateHeaders(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Header = true
	res, err := Parse("id,id,id_1\n1,2,3", cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "id_2", "id_1"}, res.Meta.Fields)
	assert.Equal(t, map[string]string{"id": "id_2"}, res.Meta.RenamedHeaders)
	require.Len(t, res.Records, 1)
	assert.Equal(t, Record{"id": "1", "id_2": "2", "id_1": "3"}, res.Records[0])
}

func TestParseFieldMismatch(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Header = true
	res, err := Parse("a,b,c\n1,2\n1,2,3,4", cfg)
	require.NoError(t, err)
	require.Len(t, res.Records, 2)

	// Short row: missing columns are absent.
	assert.Equal(t, Record{"a": "1", "b": "2"}, res.Records[0])
	// Long row: surplus values land under the reserved key.
	assert.Equal(t, Record{"a": "1", "b": "2", "c": "3", ParsedExtraKey: []any{"4"}}, res.Records[1])

	require.Len(t, res.Errors, 2)
	assert.Equal(t, CategoryFieldMismatch, res.Errors[0].Category)
	assert.Equal(t, CodeTooFewFields, res.Errors[0].Code)
	assert.Equal(t, 0, res.Errors[0].Row)
	assert.Equal(t, CodeTooManyFields, res.Errors[1].Code)
	assert.Equal(t, 1, res.Errors[1].Row)
}

func TestParsePreview(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Preview = 2
	res, err := Parse("a\nb\nc\nd\ne", cfg)
	require.NoError(t, err)
	assert.Len(t, res.Rows, 2)
	assert.True(t, res.Meta.Truncated)
}

func TestParseSkipEmptyLines(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SkipEmptyLines = SkipEmpty
	res, err := Parse("a\n\nb\n\n", cfg)
	require.NoError(t, err)
	assert.Equal(t, []Row{{"a"}, {"b"}}, res.Rows)
}

func TestParseComments(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Comment = "#"
	res, err := Parse("# generated file\na,b\n#skip\nc,d", cfg)
	require.NoError(t, err)
	assert.Equal(t, []Row{{"a", "b"}, {"c", "d"}}, res.Rows)
}

func TestParseTransform(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Header = true
	cfg.TransformHeader = func(name string, _ int) string { return " " + name + " " }
	res, err := Parse("x\n1", cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{" x "}, res.Meta.Fields)

	cfg = DefaultConfig()
	cfg.Transform = func(value, _ string, _ int) string { return value + "!" }
	res, err = Parse("a,b", cfg)
	require.NoError(t, err)
	assert.Equal(t, Row{"a!", "b!"}, res.Rows[0])
}

func TestParseGuessesDelimiter(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Delimiter = ""
	res, err := Parse("a\tb\tc\n1\t2\t3", cfg)
	require.NoError(t, err)
	assert.Equal(t, "\t", res.Meta.Delimiter)
	assert.Equal(t, Row{"a", "b", "c"}, res.Rows[0])
}

func TestParseUndetectableDelimiter(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Delimiter = ""
	res, err := Parse("justoneword", cfg)
	require.NoError(t, err)
	assert.Equal(t, ",", res.Meta.Delimiter)
	require.NotEmpty(t, res.Errors)
	assert.Equal(t, CategoryDelimiter, res.Errors[0].Category)
	assert.Equal(t, CodeUndetectableDelimiter, res.Errors[0].Code)
	// The fallback still parses the input.
	assert.Equal(t, []Row{{"justoneword"}}, res.Rows)
}

func TestParseGuessesNewline(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Newline = ""
	res, err := Parse("a,b\r\nc,d\r\n", cfg)
	require.NoError(t, err)
	assert.Equal(t, "\r\n", res.Meta.Newline)
	assert.Equal(t, []Row{{"a", "b"}, {"c", "d"}}, res.Rows)
}

func TestParseCRLFValuesClean(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Newline = "\r\n"
	res, err := Parse("a,b\r\nc,d", cfg)
	require.NoError(t, err)
	for _, row := range res.Rows {
		for _, v := range row {
			assert.NotContains(t, v, "\r")
			assert.NotContains(t, v, "\n")
		}
	}
}

func TestParseEmptyInput(t *testing.T) {
	res, err := Parse("", DefaultConfig())
	require.NoError(t, err)
	assert.Empty(t, res.Rows)
	assert.Empty(t, res.Errors)
	assert.True(t, res.Meta.Finished)
}

func TestParseInvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"delimiter with newline", func(c *Config) { c.Delimiter = ",\n" }, "Delimiter"},
		{"bad newline", func(c *Config) { c.Newline = "xx" }, "Newline"},
		{"comment equals delimiter", func(c *Config) { c.Comment = "," }, "Comment"},
		{"negative preview", func(c *Config) { c.Preview = -1 }, "Preview"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			_, err := Parse("a,b", cfg)
			require.Error(t, err)
			var oe *OptionsError
			require.ErrorAs(t, err, &oe)
			assert.Equal(t, tt.field, oe.Field)
		})
	}
}

func TestParseStepCallback(t *testing.T) {
	cfg := DefaultConfig()
	var stepped []Row
	cfg.Step = func(res *Result, _ *Handle) {
		stepped = append(stepped, res.Rows...)
	}
	res, err := Parse("a\nb\nc", cfg)
	require.NoError(t, err)
	assert.Empty(t, res.Rows, "rows must not accumulate when stepping")
	assert.Equal(t, []Row{{"a"}, {"b"}, {"c"}}, stepped)
}

func TestHandlePauseResume(t *testing.T) {
	cfg := DefaultConfig()
	var stepped []Row
	cfg.Step = func(res *Result, h *Handle) {
		stepped = append(stepped, res.Rows...)
		if len(stepped) == 1 {
			h.Pause()
		}
	}
	h, err := NewHandle(cfg)
	require.NoError(t, err)

	h.Parse("a\nb\nc", 0, false)
	assert.Equal(t, StatePaused, h.State())
	assert.Equal(t, []Row{{"a"}}, stepped)

	res, err := h.Resume()
	require.NoError(t, err)
	assert.Equal(t, StateFinished, h.State())
	assert.Equal(t, []Row{{"a"}, {"b"}, {"c"}}, stepped)
	assert.True(t, res.Meta.Finished)

	_, err = h.Resume()
	assert.ErrorIs(t, err, ErrNotPaused)
}

func TestHandleAbort(t *testing.T) {
	cfg := DefaultConfig()
	var stepped int
	cfg.Step = func(res *Result, h *Handle) {
		stepped++
		if stepped == 2 {
			h.Abort()
		}
	}
	h, err := NewHandle(cfg)
	require.NoError(t, err)
	res := h.Parse("a\nb\nc\nd", 0, false)
	assert.Equal(t, StateAborted, h.State())
	assert.Equal(t, 2, stepped)
	assert.True(t, res.Meta.Aborted)
	require.NotEmpty(t, res.Errors)
	last := res.Errors[len(res.Errors)-1]
	assert.Equal(t, CategoryAbort, last.Category)
	assert.Equal(t, CodeParseAbort, last.Code)
}

func TestResultLen(t *testing.T) {
	res := &Result{Rows: []Row{{"a"}, {"b"}}}
	assert.Equal(t, 2, res.Len())
	res = &Result{Records: []Record{{"x": "1"}}}
	assert.Equal(t, 1, res.Len())
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "DSV", Format())
}
