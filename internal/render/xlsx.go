// Package render exports dashboard reports as Excel workbooks and terminal
// tables.
package render

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"github.com/vinodismyname/mcpreports/internal/dashboard"
)

const maxSheetName = 31

// WorkbookSummary describes a written workbook.
type WorkbookSummary struct {
	Path   string   `json:"path"`
	Sheets []string `json:"sheets"`
}

// WriteWorkbook writes the report to path: an overview sheet, the publisher
// overview, one sheet per date with a bar chart of records per publisher,
// the publisher × date pivot and, when present, the monitor sections. The
// file is written to a temporary sibling and renamed into place.
func WriteWorkbook(ctx context.Context, r *dashboard.Report, path string) (*WorkbookSummary, error) {
	log := zerolog.Ctx(ctx)
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	w, err := newSheetWriter(f)
	if err != nil {
		return nil, err
	}

	overview := r.Totals.Table()
	if err := w.table(overview, 1); err != nil {
		return nil, err
	}
	pubs := dashboard.PublisherTable(r.Publishers)
	if err := w.appendTable(overview.Name, pubs, len(overview.Rows)+3); err != nil {
		return nil, err
	}

	for _, tab := range r.Tabs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := w.dateTab(tab); err != nil {
			return nil, fmt.Errorf("render: tab %s: %w", tab.Date, err)
		}
	}
	if r.Pivot != nil {
		if err := w.table(dashboard.FromPivot("Pivot", r.Pivot, nil), 1); err != nil {
			return nil, err
		}
	}
	if r.Monitor != nil {
		for _, t := range r.Monitor.Tables() {
			if err := w.table(t, 1); err != nil {
				return nil, err
			}
		}
	}
	f.SetActiveSheet(0)

	tmp, err := os.CreateTemp(filepath.Dir(path), ".report-*.xlsx")
	if err != nil {
		return nil, err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()
	if err := f.Write(tmp); err != nil {
		_ = tmp.Close()
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		return nil, err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return nil, err
	}
	log.Info().Str("path", path).Int("sheets", len(w.names)).Msg("report workbook written")
	return &WorkbookSummary{Path: path, Sheets: w.names}, nil
}

type sheetWriter struct {
	f      *excelize.File
	names  []string
	used   map[string]struct{}
	header int
	styles map[int32]int
}

func newSheetWriter(f *excelize.File) (*sheetWriter, error) {
	w := &sheetWriter{f: f, used: make(map[string]struct{}), styles: make(map[int32]int)}
	var err error
	w.header, err = f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"DDEBF7"}},
	})
	if err != nil {
		return nil, err
	}
	for _, places := range []int32{0, 1, 2} {
		format := "0"
		if places > 0 {
			format += "." + strings.Repeat("0", int(places))
		}
		id, err := f.NewStyle(&excelize.Style{CustomNumFmt: &format})
		if err != nil {
			return nil, err
		}
		w.styles[places] = id
	}
	return w, nil
}

// sheet creates a sheet with a unique, valid name. The first sheet reuses
// the workbook's default one.
func (w *sheetWriter) sheet(name string) (string, error) {
	name = w.unique(SheetName(name))
	if len(w.names) == 0 {
		if err := w.f.SetSheetName(w.f.GetSheetName(0), name); err != nil {
			return "", err
		}
	} else if _, err := w.f.NewSheet(name); err != nil {
		return "", err
	}
	w.names = append(w.names, name)
	return name, nil
}

func (w *sheetWriter) unique(name string) string {
	base, out := name, name
	for i := 2; ; i++ {
		if _, dup := w.used[strings.ToLower(out)]; !dup {
			break
		}
		suffix := fmt.Sprintf(" (%d)", i)
		out = truncate(base, maxSheetName-len(suffix)) + suffix
	}
	w.used[strings.ToLower(out)] = struct{}{}
	return out
}

// table writes t to a new sheet starting at row.
func (w *sheetWriter) table(t dashboard.Table, row int) error {
	name, err := w.sheet(t.Name)
	if err != nil {
		return err
	}
	if err := w.write(name, t, 1, row); err != nil {
		return err
	}
	return w.f.SetPanes(name, &excelize.Panes{Freeze: true, YSplit: row, TopLeftCell: fmt.Sprintf("A%d", row+1), ActivePane: "bottomLeft"})
}

func (w *sheetWriter) appendTable(sheet string, t dashboard.Table, row int) error {
	return w.write(sheet, t, 1, row)
}

// write places headers at (col,row) and the body below, styling each
// numeric column with its display precision.
func (w *sheetWriter) write(sheet string, t dashboard.Table, col, row int) error {
	start, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	headers := make([]any, len(t.Headers))
	for i, h := range t.Headers {
		headers[i] = h
	}
	if err := w.f.SetSheetRow(sheet, start, &headers); err != nil {
		return err
	}
	end, err := excelize.CoordinatesToCellName(col+len(t.Headers)-1, row)
	if err != nil {
		return err
	}
	if err := w.f.SetCellStyle(sheet, start, end, w.header); err != nil {
		return err
	}
	for i, r := range t.Rows {
		cell, err := excelize.CoordinatesToCellName(col, row+1+i)
		if err != nil {
			return err
		}
		vals := r
		if err := w.f.SetSheetRow(sheet, cell, &vals); err != nil {
			return err
		}
	}
	if len(t.Rows) == 0 {
		return nil
	}
	for j := range t.Headers {
		if j >= len(t.Places) {
			break
		}
		if _, text := t.Rows[0][j].(string); text {
			continue
		}
		top, _ := excelize.CoordinatesToCellName(col+j, row+1)
		bottom, _ := excelize.CoordinatesToCellName(col+j, row+len(t.Rows))
		if err := w.f.SetCellStyle(sheet, top, bottom, w.styles[min(t.Places[j], 2)]); err != nil {
			return err
		}
	}
	first, _ := excelize.ColumnNumberToName(col)
	last, _ := excelize.ColumnNumberToName(col + len(t.Headers) - 1)
	return w.f.SetColWidth(sheet, first, last, 18)
}

// dateTab writes the day metrics, the publisher table and a column chart of
// records per publisher.
func (w *sheetWriter) dateTab(tab dashboard.DateTab) error {
	name, err := w.sheet(tab.Date)
	if err != nil {
		return err
	}
	metrics := tab.MetricsTable()
	if err := w.write(name, metrics, 1, 1); err != nil {
		return err
	}
	body := tab.Table()
	row := len(metrics.Rows) + 3
	if err := w.write(name, body, 1, row); err != nil {
		return err
	}
	if len(tab.Rows) == 0 {
		return nil
	}
	ref := func(col string) string {
		return fmt.Sprintf("'%s'!$%s$%d:$%s$%d", name, col, row+1, col, row+len(tab.Rows))
	}
	return w.f.AddChart(name, "G2", &excelize.Chart{
		Type: excelize.Col,
		Series: []excelize.ChartSeries{{
			Name:       fmt.Sprintf("'%s'!$B$%d", name, row),
			Categories: ref("A"),
			Values:     ref("B"),
		}},
		Title:  []excelize.RichTextRun{{Text: "Records per publisher"}},
		Legend: excelize.ChartLegend{Position: "none"},
	})
}

// SheetName returns a valid Excel sheet name: reserved characters become
// underscores and the result is at most 31 characters.
func SheetName(s string) string {
	s = strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '_'
		}
		return r
	}, strings.TrimSpace(s))
	s = strings.Trim(s, "'")
	if s == "" {
		s = "Sheet"
	}
	return truncate(s, maxSheetName)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
