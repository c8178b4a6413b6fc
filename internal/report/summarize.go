package report

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/vinodismyname/mcpreports/config"
	"github.com/vinodismyname/mcpreports/internal/dataset"
)

// NullKeyPolicy decides what happens to rows with a null grouping cell.
type NullKeyPolicy uint8

const (
	// DropNull excludes such rows and counts them in Excluded.
	DropNull NullKeyPolicy = iota
	// BucketNull groups them under an explicit text label.
	BucketNull
)

type options struct {
	orderMetric  int // -1: key order
	orderSet     bool
	desc         bool
	nullKeys     NullKeyPolicy
	unknownLabel string
	workers      int
	threshold    int
}

// Option customizes SummarizeBy and Pivot.
type Option func(*options)

// OrderBy sorts partitions by the metric at index i. Ties are always broken
// by the key tuple ascending.
func OrderBy(i int, desc bool) Option {
	return func(o *options) { o.orderMetric, o.desc, o.orderSet = i, desc, true }
}

// OrderByKey sorts partitions by the key tuple ascending.
func OrderByKey() Option {
	return func(o *options) { o.orderMetric, o.desc, o.orderSet = -1, false, true }
}

// DropNullKeys excludes rows with a null grouping cell (the default).
func DropNullKeys() Option {
	return func(o *options) { o.nullKeys = DropNull }
}

// BucketNullKeys groups rows with a null grouping cell under label.
func BucketNullKeys(label string) Option {
	return func(o *options) {
		o.nullKeys = BucketNull
		if strings.TrimSpace(label) != "" {
			o.unknownLabel = label
		}
	}
}

// Parallel computes partitions on up to workers goroutines once the
// partition count exceeds threshold. Output is identical to the sequential path.
func Parallel(workers, threshold int) Option {
	return func(o *options) { o.workers, o.threshold = workers, threshold }
}

func buildOptions(opts []Option) options {
	o := options{
		orderMetric:  -1,
		unknownLabel: config.DefaultUnknownKeyLabel,
		threshold:    config.DefaultParallelThreshold,
	}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// SummaryRow is one partition: its key tuple and one value per metric at
// full precision. A mean is NaN when every cell of its field is null in the
// partition; see Defined.
type SummaryRow struct {
	Key    []dataset.Value
	Values []float64
}

// SummaryTable is the ordered result of SummarizeBy.
type SummaryTable struct {
	Keys     []string
	Metrics  []Metric
	Rows     []SummaryRow
	Excluded int
}

// Headers returns key names followed by metric names.
func (t *SummaryTable) Headers() []string {
	h := slices.Clone(t.Keys)
	for _, m := range t.Metrics {
		h = append(h, m.Name())
	}
	return h
}

// Total sums a metric column across all partitions, skipping undefined values.
func (t *SummaryTable) Total(metric int) float64 {
	var s float64
	for _, r := range t.Rows {
		if v := r.Values[metric]; Defined(v) {
			s += v
		}
	}
	return s
}

// Defined reports whether a metric value is defined.
func Defined(v float64) bool { return !math.IsNaN(v) }

// partition holds the row indices sharing one key tuple.
type partition struct {
	key  []dataset.Value
	rows []int
}

// SummarizeBy partitions ds by the key columns and computes every metric per
// partition. It has no side effects; repeated calls return equal tables.
func SummarizeBy(ds *dataset.Dataset, keys []string, metrics []Metric, opts ...Option) (*SummaryTable, error) {
	o := buildOptions(opts)
	keyIdx, err := checkInputs(ds, keys, metrics)
	if err != nil {
		return nil, err
	}
	if o.orderSet && o.orderMetric >= len(metrics) {
		return nil, fmt.Errorf("report: order metric %d out of range (%d metrics)", o.orderMetric, len(metrics))
	}
	if !o.orderSet {
		o.orderMetric, o.desc = defaultOrder(metrics)
	}

	parts, excluded := partitionRows(ds, keyIdx, o)
	rows := make([]SummaryRow, len(parts))
	fields := metricColumns(ds, metrics)

	compute := func(i int) error {
		vals, err := evaluate(ds, parts[i], metrics, fields)
		if err != nil {
			return err
		}
		rows[i] = SummaryRow{Key: parts[i].key, Values: vals}
		return nil
	}

	if o.workers > 1 && len(parts) > o.threshold {
		var g errgroup.Group
		g.SetLimit(o.workers)
		for i := range parts {
			g.Go(func() error { return compute(i) })
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	} else {
		for i := range parts {
			if err := compute(i); err != nil {
				return nil, err
			}
		}
	}

	sortRows(rows, o)
	return &SummaryTable{
		Keys:     slices.Clone(keys),
		Metrics:  slices.Clone(metrics),
		Rows:     rows,
		Excluded: excluded,
	}, nil
}

// checkInputs resolves key columns and verifies metric fields, reporting every
// missing column at once.
func checkInputs(ds *dataset.Dataset, keys []string, metrics []Metric) ([]int, error) {
	if len(keys) == 0 {
		return nil, ErrNoGroupKeys
	}
	needed := slices.Clone(keys)
	for _, m := range metrics {
		if m.Field != "" {
			needed = append(needed, m.Field)
		}
	}
	if err := dataset.ValidateSchema(ds, needed); err != nil {
		return nil, err
	}
	for _, m := range metrics {
		if m.Kind != KindSum && m.Kind != KindMean {
			continue
		}
		// TypeAny here means the column holds no values at all.
		if t := ds.TypeOf(m.Field); t != dataset.TypeNumber && t != dataset.TypeAny {
			return nil, &dataset.TypeCoercionError{Column: m.Field, Want: dataset.TypeNumber, Reason: "required by " + m.Name()}
		}
	}
	idx := make([]int, len(keys))
	for i, k := range keys {
		idx[i], _ = ds.Index(k)
	}
	return idx, nil
}

// defaultOrder sorts by the first row count descending, else by key.
func defaultOrder(metrics []Metric) (int, bool) {
	for i, m := range metrics {
		if m.Kind == KindCount {
			return i, true
		}
	}
	return -1, false
}

func partitionRows(ds *dataset.Dataset, keyIdx []int, o options) ([]partition, int) {
	var (
		parts    []partition
		excluded int
		lookup   = make(map[string]int)
		sb       strings.Builder
	)
	unknown := dataset.Text(o.unknownLabel)

rows:
	for r := 0; r < ds.Len(); r++ {
		key := make([]dataset.Value, len(keyIdx))
		for i, c := range keyIdx {
			v := ds.At(r, c)
			if v.IsNull() {
				if o.nullKeys == DropNull {
					excluded++
					continue rows
				}
				v = unknown
			}
			key[i] = v
		}
		sb.Reset()
		for _, v := range key {
			sb.WriteByte(byte(v.Kind()))
			sb.WriteString(v.String())
			sb.WriteByte(0x1f)
		}
		id := sb.String()
		p, ok := lookup[id]
		if !ok {
			p = len(parts)
			lookup[id] = p
			parts = append(parts, partition{key: key})
		}
		parts[p].rows = append(parts[p].rows, r)
	}
	return parts, excluded
}

// metricColumns resolves each metric's column index, -1 for row counts.
func metricColumns(ds *dataset.Dataset, metrics []Metric) []int {
	out := make([]int, len(metrics))
	for i, m := range metrics {
		out[i] = -1
		if m.Field != "" {
			out[i], _ = ds.Index(m.Field)
		}
	}
	return out
}

func evaluate(ds *dataset.Dataset, p partition, metrics []Metric, fields []int) ([]float64, error) {
	vals := make([]float64, len(metrics))
	for i, m := range metrics {
		acc := newAccumulator(m)
		for _, r := range p.rows {
			if fields[i] < 0 {
				acc.add(dataset.Null)
				continue
			}
			acc.add(ds.At(r, fields[i]))
		}
		v, ok := acc.result()
		if !ok {
			return nil, &EmptyPartitionError{Metric: m.Name(), Key: keyStrings(p.key)}
		}
		vals[i] = v
	}
	return vals, nil
}

func sortRows(rows []SummaryRow, o options) {
	slices.SortStableFunc(rows, func(a, b SummaryRow) int {
		if o.orderMetric >= 0 {
			x, y := a.Values[o.orderMetric], b.Values[o.orderMetric]
			// Undefined values sort last in either direction.
			if dx, dy := Defined(x), Defined(y); dx != dy {
				if dx {
					return -1
				}
				return 1
			}
			if x != y && Defined(x) {
				if (x > y) == o.desc {
					return -1
				}
				return 1
			}
		}
		return dataset.CompareTuple(a.Key, b.Key)
	})
}

func keyStrings(key []dataset.Value) []string {
	out := make([]string, len(key))
	for i, v := range key {
		out[i] = v.String()
	}
	return out
}
