package report

import (
	"github.com/shopspring/decimal"

	"github.com/vinodismyname/mcpreports/internal/dataset"
)

// DisplayPlaces is the fixed precision of real-valued metrics in reports.
const DisplayPlaces = 2

// Round rounds half away from zero at the given decimal places. It is for
// presentation only; aggregation never rounds intermediate values.
// Undefined values are returned unchanged.
func Round(v float64, places int32) float64 {
	if !Defined(v) {
		return v
	}
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

// FormatFixed renders v with exactly places decimals, e.g. "30.00". An
// undefined value renders as an empty string.
func FormatFixed(v float64, places int32) string {
	if !Defined(v) {
		return ""
	}
	return decimal.NewFromFloat(v).StringFixed(places)
}

// DisplayRow is a SummaryRow prepared for presentation.
type DisplayRow struct {
	Key    []string  `json:"key"`
	Values []float64 `json:"values"`
}

// Display returns the rows with keys rendered as text and every metric
// rounded to DisplayPlaces. Counts are integral and unaffected; undefined
// means stay NaN.
func (t *SummaryTable) Display() []DisplayRow {
	out := make([]DisplayRow, len(t.Rows))
	for i, r := range t.Rows {
		vals := make([]float64, len(r.Values))
		for j, v := range r.Values {
			vals[j] = Round(v, DisplayPlaces)
		}
		out[i] = DisplayRow{Key: keyStrings(r.Key), Values: vals}
	}
	return out
}

// Strings renders every row as text cells: keys, then metrics with fixed
// decimals for sums and means and plain integers for counts.
func (t *SummaryTable) Strings() [][]string {
	out := make([][]string, len(t.Rows))
	for i, r := range t.Rows {
		cells := keyStrings(r.Key)
		for j, v := range r.Values {
			cells = append(cells, formatMetric(t.Metrics[j], v))
		}
		out[i] = cells
	}
	return out
}

func formatMetric(m Metric, v float64) string {
	switch m.Kind {
	case KindCount, KindDistinct:
		return FormatFixed(v, 0)
	default:
		return FormatFixed(v, DisplayPlaces)
	}
}

// LabelFunc renders a pivot column key for display.
type LabelFunc func(dataset.Value) string

// DefaultLabel renders dates as 2006-01-02 and other values as-is.
func DefaultLabel(v dataset.Value) string { return v.String() }
