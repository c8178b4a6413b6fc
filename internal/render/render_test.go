package render

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/vinodismyname/mcpreports/internal/dashboard"
	"github.com/vinodismyname/mcpreports/internal/dataset"
)

func sampleReport(t *testing.T) *dashboard.Report {
	t.Helper()
	tbl := &dataset.Table{Header: []string{"publisher_id", "date", "activity_key", "duration_minutes"}}
	for _, r := range [][]string{
		{"A", "2024-01-01", "k1", "10"},
		{"A", "2024-01-01", "k2", "20"},
		{"B", "2024-01-01", "k3", "5"},
		{"A", "2024-01-02", "k4", "30"},
	} {
		tbl.Rows = append(tbl.Rows, []dataset.Value{
			dataset.Text(r[0]), dataset.Text(r[1]), dataset.Text(r[2]), dataset.Text(r[3]),
		})
	}
	ds, err := dataset.Build(tbl, dataset.DatePublisherSchema)
	require.NoError(t, err)
	r, err := dashboard.Build(ds)
	require.NoError(t, err)
	return r
}

func TestWriteWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.xlsx")
	sum, err := WriteWorkbook(context.Background(), sampleReport(t), path)
	require.NoError(t, err)
	require.Equal(t, path, sum.Path)
	require.Equal(t, []string{"Overview", "2024-01-01", "2024-01-02", "Pivot"}, sum.Sheets)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	require.Equal(t, sum.Sheets, f.GetSheetList())

	raw := excelize.Options{RawCellValue: true}
	get := func(sheet, cell string) string {
		v, err := f.GetCellValue(sheet, cell, raw)
		require.NoError(t, err)
		return v
	}
	require.Equal(t, "Dates", get("Overview", "A2"))
	require.Equal(t, "2", get("Overview", "B2"))
	require.Equal(t, "Publisher", get("Overview", "A6"))
	require.Equal(t, "A", get("Overview", "A7"))
	require.Equal(t, "3", get("Overview", "B7"))

	require.Equal(t, "Total records", get("2024-01-01", "A2"))
	require.Equal(t, "3", get("2024-01-01", "B2"))
	require.Equal(t, "Publisher", get("2024-01-01", "A7"))
	require.Equal(t, "A", get("2024-01-01", "A8"))
	require.Equal(t, "15", get("2024-01-01", "C8"))

	require.Equal(t, "TOTAL", get("Pivot", "D1"))
	require.Equal(t, "3", get("Pivot", "D2"))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1, "temporary file left behind")
}

func TestWriteWorkbook_MissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope", "report.xlsx")
	_, err := WriteWorkbook(context.Background(), sampleReport(t), path)
	require.Error(t, err)
}

func TestSheetName(t *testing.T) {
	require.Equal(t, "a_b_c", SheetName("a/b:c"))
	require.Equal(t, "Sheet", SheetName("  "))
	require.Len(t, []rune(SheetName(strings.Repeat("x", 40))), maxSheetName)
}

func TestSheetWriter_UniqueNames(t *testing.T) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	w, err := newSheetWriter(f)
	require.NoError(t, err)

	for range 3 {
		_, err := w.sheet("Pivot")
		require.NoError(t, err)
	}
	_, err = w.sheet(strings.Repeat("y", 40))
	require.NoError(t, err)
	_, err = w.sheet(strings.Repeat("y", 40))
	require.NoError(t, err)

	require.Equal(t, []string{"Pivot", "Pivot (2)", "Pivot (3)", strings.Repeat("y", 31), strings.Repeat("y", 27) + " (2)"}, w.names)
	require.Equal(t, w.names, f.GetSheetList())
}

func TestTableText(t *testing.T) {
	out := Table(dashboard.Table{
		Name:    "Publishers",
		Headers: []string{"Publisher", "Records"},
		Places:  []int32{0, 0},
		Rows:    [][]any{{"A", 12}, {"Bea", 3}},
	})
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 5)
	require.Contains(t, lines[0], "Publishers")
	require.Contains(t, lines[1], "Publisher")
	require.Contains(t, lines[3], "12")
	require.Contains(t, lines[4], "Bea")
}

func TestWriteReport(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteReport(&buf, sampleReport(t)))
	out := buf.String()
	for _, want := range []string{"Overview", "Publishers", "2024-01-01", "Records per publisher, 2024-01-02", "TOTAL"} {
		require.Contains(t, out, want)
	}
}
