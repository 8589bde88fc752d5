// Package dsv provides dynamic typing of string field values.
package dsv

import (
	"regexp"
	"strconv"
	"time"
)

// Typing configures dynamic typing: converting string field values to
// booleans, numbers, datetimes or nil based on content. Conversion can be
// enabled globally, per field name or column index, or decided by a
// predicate; the predicate is consulted once per field and memoized.
//
// Precedence per field: Indexes, then Fields, then Func, then All.
type Typing struct {
	// All enables typing for every field.
	All bool
	// Fields enables or disables typing for specific header names.
	Fields map[string]bool
	// Indexes enables or disables typing for specific column indexes.
	Indexes map[int]bool
	// Func decides typing per field name. Memoized per field.
	Func func(field string) bool
}

// active reports whether any typing is configured at all.
func (t Typing) active() bool {
	return t.All || len(t.Fields) > 0 || len(t.Indexes) > 0 || t.Func != nil
}

var (
	intPattern   = regexp.MustCompile(`^[-+]?\d+$`)
	floatPattern = regexp.MustCompile(`^[-+]?(\d+(\.\d*)?|\.\d+)([eE][-+]?\d+)?$`)
	// ISO-8601-like timestamps: date, optional time, optional zone.
	datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}([T ]\d{2}:\d{2}(:\d{2}(\.\d+)?)?(Z|[-+]\d{2}:?\d{2})?)?$`)
)

// time.Parse accepts fractional seconds after the seconds field even when
// the layout omits them, so the list stays short.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// typeValue converts a string to its dynamic type. Values that merely look
// numeric but would lose precision stay strings: integers outside the
// exact int64 range and floats that overflow float64 are not converted.
func typeValue(s string) any {
	switch s {
	case "":
		return nil
	case "true", "TRUE":
		return true
	case "false", "FALSE":
		return false
	}
	if intPattern.MatchString(s) {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return s
		}
		return n
	}
	if floatPattern.MatchString(s) {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return s
		}
		return f
	}
	if datePattern.MatchString(s) {
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t
			}
		}
	}
	return s
}
