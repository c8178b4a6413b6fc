package dataset

import (
	"fmt"
	"slices"
	"strings"
)

// Table is the raw output of a loader: a header and untyped rows.
// Rows may be shorter than the header; missing cells read as Null.
// DecimalComma marks numeric text written as "1.250,5".
type Table struct {
	Header       []string
	Rows         [][]Value
	DecimalComma bool
}

// Columns returns the header, making Table a Columnar.
func (t *Table) Columns() []string { return t.Header }

// Normalize trims header names, names blank headers column_N, suffixes
// duplicates and applies aliases. An alias is skipped when its canonical
// name is already present so explicit columns always win.
func (t *Table) Normalize(aliases map[string]string) {
	present := make(map[string]struct{}, len(t.Header))
	for i, h := range t.Header {
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("column_%d", i+1)
		}
		t.Header[i] = h
		present[h] = struct{}{}
	}
	for i, h := range t.Header {
		canonical, ok := aliases[strings.ToLower(h)]
		if !ok || canonical == h {
			continue
		}
		if _, taken := present[canonical]; taken {
			continue
		}
		delete(present, h)
		present[canonical] = struct{}{}
		t.Header[i] = canonical
	}
	seen := make(map[string]int, len(t.Header))
	for i, h := range t.Header {
		seen[h]++
		if n := seen[h]; n > 1 {
			t.Header[i] = fmt.Sprintf("%s_%d", h, n)
		}
	}
}

// Dataset is an immutable, schema-checked table. Build is the only
// constructor; every declared column exists and every non-null cell of a
// typed column holds that type.
type Dataset struct {
	columns []string
	index   map[string]int
	types   []Type
	rows    [][]Value
}

// Build validates t against schema and coerces typed columns. It fails
// closed: a missing required column or an unreadable cell rejects the table.
func Build(t *Table, schema Schema) (*Dataset, error) {
	if err := ValidateSchema(t, schema.Required()); err != nil {
		return nil, err
	}

	ds := &Dataset{
		columns: slices.Clone(t.Header),
		index:   make(map[string]int, len(t.Header)),
		types:   make([]Type, len(t.Header)),
		rows:    make([][]Value, 0, len(t.Rows)),
	}
	fields := make([]Field, len(t.Header))
	for i, name := range t.Header {
		ds.index[name] = i
		if f, ok := schema.Lookup(name); ok {
			fields[i] = f
			ds.types[i] = f.Type
		} else {
			fields[i] = Field{Name: name}
		}
	}

	for r, raw := range t.Rows {
		row := make([]Value, len(ds.columns))
		for c := range ds.columns {
			var v Value
			if c < len(raw) {
				v = raw[c]
			}
			cv, reason, ok := coerce(v, fields[c], t.DecimalComma)
			if !ok {
				return nil, &TypeCoercionError{Column: ds.columns[c], Row: r + 1, Value: v.String(), Want: fields[c].Type, Reason: reason}
			}
			row[c] = cv
		}
		ds.rows = append(ds.rows, row)
	}
	for c := range ds.columns {
		if ds.types[c] == TypeAny {
			ds.inferColumn(c, t.DecimalComma)
		}
	}
	return ds, nil
}

// inferColumn settles the type of a column outside the schema. Numeric text
// becomes numbers; any other mix of kinds is read as text. Columns with no
// values stay TypeAny.
func (d *Dataset) inferColumn(c int, decimalComma bool) {
	numeric, dates, nonNull := true, true, 0
	for _, row := range d.rows {
		v := row[c]
		if v.IsNull() {
			continue
		}
		nonNull++
		if v.Kind() != KindDate {
			dates = false
		}
		switch v.Kind() {
		case KindNumber:
		case KindText:
			if _, ok := parseNumber(v.String(), decimalComma); !ok {
				numeric = false
			}
		default:
			numeric = false
		}
	}
	if nonNull == 0 {
		return
	}
	var f Field
	switch {
	case dates:
		d.types[c] = TypeDate
		return
	case numeric:
		f = Field{Type: TypeNumber}
	default:
		f = Field{Type: TypeText}
	}
	d.types[c] = f.Type
	for _, row := range d.rows {
		row[c], _, _ = coerce(row[c], f, decimalComma)
	}
}

// Columns returns a copy of the column names.
func (d *Dataset) Columns() []string { return slices.Clone(d.columns) }

// Len returns the number of rows.
func (d *Dataset) Len() int { return len(d.rows) }

// Has reports whether the column exists.
func (d *Dataset) Has(col string) bool {
	_, ok := d.index[col]
	return ok
}

// Index returns the position of a column.
func (d *Dataset) Index(col string) (int, bool) {
	i, ok := d.index[col]
	return i, ok
}

// TypeOf returns the type of a column: declared by the schema or inferred at
// build time. TypeAny means the column is absent or holds no values.
func (d *Dataset) TypeOf(col string) Type {
	i, ok := d.index[col]
	if !ok {
		return TypeAny
	}
	return d.types[i]
}

// At returns the cell at row r and column index c.
func (d *Dataset) At(r, c int) Value { return d.rows[r][c] }

// Row returns a read-only view over row r.
func (d *Dataset) Row(r int) Row { return Row{ds: d, i: r} }

// Filter returns a dataset holding the rows for which keep returns true.
// Rows are shared, not copied.
func (d *Dataset) Filter(keep func(Row) bool) *Dataset {
	out := &Dataset{columns: d.columns, index: d.index, types: d.types}
	for i := range d.rows {
		if keep(Row{ds: d, i: i}) {
			out.rows = append(out.rows, d.rows[i])
		}
	}
	return out
}

// Where keeps rows whose column equals v.
func (d *Dataset) Where(col string, v Value) *Dataset {
	c, ok := d.index[col]
	if !ok {
		return d.Filter(func(Row) bool { return false })
	}
	return d.Filter(func(r Row) bool { return r.At(c).Equal(v) })
}

// Distinct returns the sorted non-null values of a column.
func (d *Dataset) Distinct(col string) []Value {
	c, ok := d.index[col]
	if !ok {
		return nil
	}
	var out []Value
	seen := make(map[Value]struct{})
	for _, row := range d.rows {
		v := row[c]
		if v.IsNull() {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	slices.SortFunc(out, Value.Compare)
	return out
}

// Row is a read-only view of one dataset row.
type Row struct {
	ds *Dataset
	i  int
}

// At returns the cell at column index c.
func (r Row) At(c int) Value { return r.ds.rows[r.i][c] }

// Get returns the named cell, or Null when the column is absent.
func (r Row) Get(col string) Value {
	c, ok := r.ds.index[col]
	if !ok {
		return Null
	}
	return r.ds.rows[r.i][c]
}
