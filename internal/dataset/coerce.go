package dataset

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

var dateLayouts = []string{
	DateLayout,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"1/2/06",
	"02-Jan-2006",
	"02jan2006",
}

// Excel serials for 1900-01-01 and 9999-12-31.
const (
	minExcelSerial = 1
	maxExcelSerial = 2958465
)

var (
	groupedPoint = regexp.MustCompile(`^[-+]?\d{1,3}(,\d{3})+(\.\d+)?$`)
	groupedComma = regexp.MustCompile(`^[-+]?\d{1,3}(\.\d{3})+(,\d+)?$`)
	plainComma   = regexp.MustCompile(`^[-+]?\d*,\d+$`)
)

// ParseNumber reads a numeric cell written with a decimal point. Commas are
// accepted only as thousands separators ("1,250.5"); any other comma, as in
// "1,5", makes the cell unreadable. A leading currency sign is stripped.
func ParseNumber(s string) (float64, bool) {
	return parseNumber(s, false)
}

// ParseDecimalComma reads a numeric cell written with a decimal comma, as in
// semicolon-delimited exports: "1,5", "1.250,5". Text without a comma, or
// with comma grouping before a decimal point ("1,250.5"), is read as by
// ParseNumber.
func ParseDecimalComma(s string) (float64, bool) {
	return parseNumber(s, true)
}

func parseNumber(s string, decimalComma bool) (float64, bool) {
	clean := strings.Map(func(r rune) rune {
		switch r {
		case '$', ' ', '\u00a0':
			return -1
		default:
			return r
		}
	}, strings.TrimSpace(s))
	if clean == "" {
		return 0, false
	}
	if strings.ContainsRune(clean, ',') {
		switch {
		case groupedPoint.MatchString(clean) && (!decimalComma || strings.ContainsRune(clean, '.')):
			clean = strings.ReplaceAll(clean, ",", "")
		case decimalComma && (groupedComma.MatchString(clean) || plainComma.MatchString(clean)):
			clean = strings.ReplaceAll(clean, ".", "")
			clean = strings.Replace(clean, ",", ".", 1)
		default:
			return 0, false
		}
	}
	f, err := strconv.ParseFloat(clean, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// ParseDate reads a calendar date from common text layouts or an Excel serial.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, l := range dateLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, true
		}
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return excelSerial(f)
	}
	return time.Time{}, false
}

func excelSerial(f float64) (time.Time, bool) {
	if f < minExcelSerial || f > maxExcelSerial {
		return time.Time{}, false
	}
	t, err := excelize.ExcelDateToTime(f, false)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// coerce converts a raw loader value to the field's type. The returned
// reason is empty unless the failure needs more than the type name.
func coerce(v Value, f Field, decimalComma bool) (Value, string, bool) {
	if v.IsNull() {
		return Null, "", true
	}
	switch f.Type {
	case TypeText:
		return Text(v.String()), "", true
	case TypeNumber:
		var n float64
		switch v.Kind() {
		case KindNumber:
			n = v.Float()
		case KindText:
			p, ok := parseNumber(v.String(), decimalComma)
			if !ok {
				return Null, "", false
			}
			n = p
		default:
			return Null, "", false
		}
		if f.NonNegative && n < 0 {
			return Null, "negative value", false
		}
		return Number(n), "", true
	case TypeDate:
		switch v.Kind() {
		case KindDate:
			return v, "", true
		case KindNumber:
			t, ok := excelSerial(v.Float())
			if !ok {
				return Null, "", false
			}
			return Date(t), "", true
		case KindText:
			t, ok := ParseDate(v.String())
			if !ok {
				return Null, "", false
			}
			return Date(t), "", true
		}
		return Null, "", false
	default:
		return v, "", true
	}
}
