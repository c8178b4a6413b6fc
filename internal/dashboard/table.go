package dashboard

import (
	"github.com/vinodismyname/mcpreports/internal/report"
)

// Table is a rendered report section shared by the workbook and terminal
// exporters. Cells hold string, int or float64 values; Places gives the
// display precision of each column's float cells.
type Table struct {
	Name    string   `json:"name"`
	Headers []string `json:"headers"`
	Places  []int32  `json:"-"`
	Rows    [][]any  `json:"rows"`
}

// Strings renders every cell as text at its column precision.
func (t Table) Strings() [][]string {
	out := make([][]string, len(t.Rows))
	for i, row := range t.Rows {
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = formatCell(v, t.place(j))
		}
		out[i] = cells
	}
	return out
}

func (t Table) place(col int) int32 {
	if col < len(t.Places) {
		return t.Places[col]
	}
	return report.DisplayPlaces
}

func formatCell(v any, places int32) string {
	switch x := v.(type) {
	case string:
		return x
	case int:
		return report.FormatFixed(float64(x), 0)
	case float64:
		return report.FormatFixed(x, places)
	case nil:
		return ""
	}
	return ""
}

// FromSummary converts a summary into a Table. Counts become ints; other
// metrics are rounded to the display precision.
func FromSummary(name string, headers []string, s *report.SummaryTable) Table {
	if headers == nil {
		headers = s.Headers()
	}
	t := Table{Name: name, Headers: headers}
	for range s.Keys {
		t.Places = append(t.Places, 0)
	}
	for _, m := range s.Metrics {
		t.Places = append(t.Places, placesFor(m))
	}
	for _, r := range s.Rows {
		row := make([]any, 0, len(r.Key)+len(r.Values))
		for _, k := range r.Key {
			row = append(row, k.String())
		}
		for j, v := range r.Values {
			row = append(row, metricCell(s.Metrics[j], v))
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// FromPivot converts a pivot into a Table with a trailing TOTAL column.
func FromPivot(name string, p *report.PivotTable, label report.LabelFunc) Table {
	t := Table{Name: name, Headers: append([]string{p.RowKey}, p.Labels(label)...)}
	places := placesFor(p.Metric)
	t.Places = []int32{0}
	for range len(p.Columns) + 1 {
		t.Places = append(t.Places, places)
	}
	for _, r := range p.Rows {
		row := make([]any, 0, len(r.Cells)+2)
		row = append(row, r.Key.String())
		for _, c := range r.Cells {
			row = append(row, metricCell(p.Metric, c))
		}
		row = append(row, metricCell(p.Metric, r.Total))
		t.Rows = append(t.Rows, row)
	}
	return t
}

func placesFor(m report.Metric) int32 {
	if isCount(m) {
		return 0
	}
	return report.DisplayPlaces
}

func isCount(m report.Metric) bool {
	return m.Kind == report.KindCount || m.Kind == report.KindDistinct
}

// metricCell returns nil for an undefined value so it renders blank.
func metricCell(m report.Metric, v float64) any {
	if !report.Defined(v) {
		return nil
	}
	if isCount(m) {
		return int(v)
	}
	return report.Round(v, report.DisplayPlaces)
}
