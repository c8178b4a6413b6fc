package report

import (
	"slices"

	"github.com/vinodismyname/mcpreports/internal/dataset"
)

// TotalLabel names the derived row-total column.
const TotalLabel = "TOTAL"

// PivotRow is one row of a pivot: its key, one cell per column and the
// row-wise total of those cells.
type PivotRow struct {
	Key   dataset.Value
	Cells []float64
	Total float64
}

// PivotTable is a dense row × column projection of one metric.
type PivotTable struct {
	RowKey   string
	ColKey   string
	Metric   Metric
	Columns  []dataset.Value
	Rows     []PivotRow
	Excluded int
}

// Pivot builds the dense table of metric over rowKey × colKey. Cells with no
// matching rows are 0 for count, sum and distinct metrics; a mean with an
// empty cell fails with EmptyPartitionError, and a mean cell whose field is
// all null is NaN. TOTAL is the sum of the defined cells in each row. Rows
// are ordered by TOTAL descending then row key ascending; columns by key
// ascending.
func Pivot(ds *dataset.Dataset, rowKey, colKey string, metric Metric, opts ...Option) (*PivotTable, error) {
	// Ordering options do not apply; keep null-key handling and parallelism.
	opts = append(slices.Clone(opts), OrderByKey())
	sum, err := SummarizeBy(ds, []string{rowKey, colKey}, []Metric{metric}, opts...)
	if err != nil {
		return nil, err
	}

	var rowVals, colVals []dataset.Value
	rowSeen := make(map[dataset.Value]struct{})
	colSeen := make(map[dataset.Value]struct{})
	for _, r := range sum.Rows {
		rowVals = appendUnique(rowVals, rowSeen, r.Key[0])
		colVals = appendUnique(colVals, colSeen, r.Key[1])
	}
	slices.SortFunc(rowVals, dataset.Value.Compare)
	slices.SortFunc(colVals, dataset.Value.Compare)

	rowPos := positions(rowVals)
	colPos := positions(colVals)

	rows := make([]PivotRow, len(rowVals))
	filled := make([][]bool, len(rowVals))
	for i, v := range rowVals {
		rows[i] = PivotRow{Key: v, Cells: make([]float64, len(colVals))}
		filled[i] = make([]bool, len(colVals))
	}
	for _, r := range sum.Rows {
		i, j := rowPos[r.Key[0]], colPos[r.Key[1]]
		rows[i].Cells[j] = r.Values[0]
		filled[i][j] = true
	}

	if !metric.zeroFillable() {
		for i := range rows {
			for j := range colVals {
				if !filled[i][j] {
					return nil, &EmptyPartitionError{Metric: metric.Name(), Key: []string{rowVals[i].String(), colVals[j].String()}}
				}
			}
		}
	}

	for i := range rows {
		var total float64
		for _, c := range rows[i].Cells {
			if Defined(c) {
				total += c
			}
		}
		rows[i].Total = total
	}
	slices.SortStableFunc(rows, func(a, b PivotRow) int {
		if a.Total != b.Total {
			if a.Total > b.Total {
				return -1
			}
			return 1
		}
		return a.Key.Compare(b.Key)
	})

	return &PivotTable{
		RowKey:   rowKey,
		ColKey:   colKey,
		Metric:   metric,
		Columns:  colVals,
		Rows:     rows,
		Excluded: sum.Excluded,
	}, nil
}

// Labels renders column headers with fn (DefaultLabel when nil), followed by TOTAL.
func (p *PivotTable) Labels(fn LabelFunc) []string {
	if fn == nil {
		fn = DefaultLabel
	}
	out := make([]string, 0, len(p.Columns)+1)
	for _, c := range p.Columns {
		out = append(out, fn(c))
	}
	return append(out, TotalLabel)
}

// Cell returns the value at (row, col); absent combinations read as 0.
func (p *PivotTable) Cell(row, col dataset.Value) float64 {
	j := slices.IndexFunc(p.Columns, col.Equal)
	if j < 0 {
		return 0
	}
	for _, r := range p.Rows {
		if r.Key.Equal(row) {
			return r.Cells[j]
		}
	}
	return 0
}

// Totals maps each row key to its TOTAL.
func (p *PivotTable) Totals() map[string]float64 {
	out := make(map[string]float64, len(p.Rows))
	for _, r := range p.Rows {
		out[r.Key.String()] = r.Total
	}
	return out
}

func appendUnique(vals []dataset.Value, seen map[dataset.Value]struct{}, v dataset.Value) []dataset.Value {
	if _, ok := seen[v]; ok {
		return vals
	}
	seen[v] = struct{}{}
	return append(vals, v)
}

func positions(vals []dataset.Value) map[dataset.Value]int {
	out := make(map[dataset.Value]int, len(vals))
	for i, v := range vals {
		out[v] = i
	}
	return out
}
