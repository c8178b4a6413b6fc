package render

import (
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/vinodismyname/mcpreports/internal/dashboard"
	"github.com/vinodismyname/mcpreports/internal/report"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#2196F3"))
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#808080"))
	barStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#8BC34A"))
)

const barWidth = 40

// Table renders t as an aligned text table. Numeric columns are right
// aligned.
func Table(t dashboard.Table) string {
	cells := t.Strings()
	widths := make([]int, len(t.Headers))
	for i, h := range t.Headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range cells {
		for i, c := range row {
			if i < len(widths) {
				widths[i] = max(widths[i], lipgloss.Width(c))
			}
		}
	}
	right := make([]bool, len(t.Headers))
	if len(t.Rows) > 0 {
		for i := range right {
			if i < len(t.Rows[0]) {
				_, text := t.Rows[0][i].(string)
				right[i] = !text
			}
		}
	}

	var sb strings.Builder
	if t.Name != "" {
		sb.WriteString(titleStyle.Render(t.Name))
		sb.WriteString("\n")
	}
	sep := mutedStyle.Render("│")
	line := func(vals []string, style lipgloss.Style) {
		for i := range widths {
			v := ""
			if i < len(vals) {
				v = vals[i]
			}
			s := style.Width(widths[i] + 2)
			if right[i] {
				s = s.Align(lipgloss.Right)
			}
			sb.WriteString(s.Render(v))
			if i < len(widths)-1 {
				sb.WriteString(sep)
			}
		}
		sb.WriteString("\n")
	}
	line(t.Headers, headerStyle)
	rule := make([]string, len(widths))
	for i, w := range widths {
		rule[i] = strings.Repeat("─", w+2)
	}
	sb.WriteString(mutedStyle.Render(strings.Join(rule, "┼")))
	sb.WriteString("\n")
	for _, row := range cells {
		line(row, cellStyle)
	}
	return sb.String()
}

// Bars renders a horizontal bar chart scaled to the largest value.
func Bars(title string, bars []dashboard.Bar) string {
	var sb strings.Builder
	if title != "" {
		sb.WriteString(titleStyle.Render(title))
		sb.WriteString("\n")
	}
	var top float64
	label := 0
	for _, b := range bars {
		top = max(top, b.Value)
		label = max(label, lipgloss.Width(b.Label))
	}
	for _, b := range bars {
		n := 0
		if top > 0 {
			n = int(b.Value / top * barWidth)
		}
		sb.WriteString(lipgloss.NewStyle().Width(label + 1).Render(b.Label))
		sb.WriteString(barStyle.Render(strings.Repeat("█", n)))
		sb.WriteString(" ")
		sb.WriteString(report.FormatFixed(b.Value, 0))
		sb.WriteString("\n")
	}
	return sb.String()
}

// WriteReport prints every section of the report to w.
func WriteReport(w io.Writer, r *dashboard.Report) error {
	sections := []string{Table(r.Totals.Table()), Table(dashboard.PublisherTable(r.Publishers))}
	for _, tab := range r.Tabs {
		sections = append(sections,
			Table(tab.MetricsTable()),
			Table(tab.Table()),
			Bars("Records per publisher, "+tab.Date, tab.Bars),
		)
	}
	if r.Pivot != nil {
		sections = append(sections, Table(dashboard.FromPivot("Pivot", r.Pivot, nil)))
	}
	if r.Monitor != nil {
		for _, t := range r.Monitor.Tables() {
			sections = append(sections, Table(t))
		}
	}
	_, err := io.WriteString(w, strings.Join(sections, "\n"))
	return err
}
