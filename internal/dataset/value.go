package dataset

import (
	"strconv"
	"strings"
	"time"
)

// Kind identifies the semantic type held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindText
	KindNumber
	KindDate
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindNumber:
		return "number"
	case KindDate:
		return "date"
	default:
		return "null"
	}
}

// DateLayout is the canonical rendering of date values.
const DateLayout = "2006-01-02"

// Value is a single typed cell.
type Value struct {
	kind Kind
	text string
	num  float64
	date time.Time
}

// Null is the zero Value.
var Null = Value{}

// Text returns a text value. Blank strings become Null.
func Text(s string) Value {
	s = strings.TrimSpace(s)
	if s == "" {
		return Null
	}
	return Value{kind: KindText, text: s}
}

// Number returns a numeric value.
// Negative zero is stored as zero so equal numbers share one rendering.
func Number(f float64) Value {
	if f == 0 {
		f = 0
	}
	return Value{kind: KindNumber, num: f}
}

// Date returns a calendar date value truncated to midnight UTC.
func Date(t time.Time) Value {
	y, m, d := t.Date()
	return Value{kind: KindDate, date: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

func (v Value) Kind() Kind      { return v.kind }
func (v Value) IsNull() bool    { return v.kind == KindNull }
func (v Value) Float() float64  { return v.num }
func (v Value) Time() time.Time { return v.date }

// String renders the value for keys and labels.
func (v Value) String() string {
	switch v.kind {
	case KindText:
		return v.text
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindDate:
		return v.date.Format(DateLayout)
	default:
		return ""
	}
}

// Compare orders values naturally: nulls first, then by kind; numbers
// numerically, dates chronologically and text lexicographically.
func (v Value) Compare(o Value) int {
	if v.kind != o.kind {
		if v.kind < o.kind {
			return -1
		}
		return 1
	}
	switch v.kind {
	case KindText:
		return strings.Compare(v.text, o.text)
	case KindNumber:
		switch {
		case v.num < o.num:
			return -1
		case v.num > o.num:
			return 1
		}
		return 0
	case KindDate:
		return v.date.Compare(o.date)
	default:
		return 0
	}
}

// Equal reports whether both values have the same kind and content.
func (v Value) Equal(o Value) bool { return v.Compare(o) == 0 }

// MarshalText lets values serve as JSON strings in tool outputs.
func (v Value) MarshalText() ([]byte, error) { return []byte(v.String()), nil }

// CompareTuple orders two key tuples element by element.
func CompareTuple(a, b []Value) int {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if c := a[i].Compare(b[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	}
	return 0
}
