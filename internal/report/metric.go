package report

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/vinodismyname/mcpreports/internal/dataset"
)

// MetricKind enumerates the supported partition aggregates.
type MetricKind uint8

const (
	KindCount MetricKind = iota + 1
	KindSum
	KindMean
	KindDistinct
)

func (k MetricKind) String() string {
	switch k {
	case KindCount:
		return "count"
	case KindSum:
		return "sum"
	case KindMean:
		return "mean"
	case KindDistinct:
		return "distinct"
	}
	return "unknown"
}

// Metric is one aggregate computed per partition. Count with an empty Field
// counts rows; with a Field it counts non-null cells of that column.
type Metric struct {
	Kind  MetricKind
	Field string
}

// ErrUnknownMetric is returned by ParseMetric for unrecognized specs.
var ErrUnknownMetric = errors.New("report: unknown metric")

func Count() Metric                     { return Metric{Kind: KindCount} }
func CountOf(field string) Metric       { return Metric{Kind: KindCount, Field: field} }
func Sum(field string) Metric           { return Metric{Kind: KindSum, Field: field} }
func Mean(field string) Metric          { return Metric{Kind: KindMean, Field: field} }
func DistinctCount(field string) Metric { return Metric{Kind: KindDistinct, Field: field} }

// Name renders the metric as used in table headers, e.g. "sum(duration_minutes)".
func (m Metric) Name() string {
	if m.Field == "" {
		return m.Kind.String()
	}
	return fmt.Sprintf("%s(%s)", m.Kind, m.Field)
}

func (m Metric) String() string { return m.Name() }

// zeroFillable reports whether an absent cell can be read as 0.
func (m Metric) zeroFillable() bool { return m.Kind != KindMean }

// ParseMetric accepts "count", "sum", "mean", "distinct:date", "sum:numero_total"
// or the rendered form "mean(duration_minutes)". Sum and mean default to
// duration_minutes.
func ParseMetric(spec string) (Metric, error) {
	s := strings.ToLower(strings.TrimSpace(spec))
	kind, field := s, ""
	if i := strings.IndexAny(s, ":("); i >= 0 {
		kind = strings.TrimSpace(s[:i])
		field = strings.TrimSpace(strings.TrimSuffix(s[i+1:], ")"))
	}
	var m Metric
	switch kind {
	case "count":
		m = Metric{Kind: KindCount}
	case "sum", "total":
		m = Metric{Kind: KindSum}
	case "mean", "avg", "average":
		m = Metric{Kind: KindMean}
	case "distinct", "nunique":
		m = Metric{Kind: KindDistinct}
	default:
		return Metric{}, fmt.Errorf("%w: %q", ErrUnknownMetric, spec)
	}
	m.Field = field
	if m.Field == "" && (m.Kind == KindSum || m.Kind == KindMean) {
		m.Field = dataset.ColDuration
	}
	if m.Field == "" && m.Kind == KindDistinct {
		return Metric{}, fmt.Errorf("%w: distinct requires a field, e.g. distinct:date", ErrUnknownMetric)
	}
	return m, nil
}

// ParseMetrics parses a list of metric specs.
func ParseMetrics(specs []string) ([]Metric, error) {
	out := make([]Metric, 0, len(specs))
	for _, s := range specs {
		m, err := ParseMetric(s)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// accumulator folds one partition for one metric.
type accumulator struct {
	metric Metric
	rows   int
	n      int
	sum    float64
	comp   float64
	seen   map[dataset.Value]struct{}
}

func newAccumulator(m Metric) *accumulator {
	a := &accumulator{metric: m}
	if m.Kind == KindDistinct {
		a.seen = make(map[dataset.Value]struct{})
	}
	return a
}

// add folds a cell; v is Null for a row-count metric.
func (a *accumulator) add(v dataset.Value) {
	a.rows++
	if v.IsNull() {
		return
	}
	a.n++
	switch a.metric.Kind {
	case KindSum, KindMean:
		// Neumaier summation keeps full precision across long partitions.
		x := v.Float()
		t := a.sum + x
		if abs(a.sum) >= abs(x) {
			a.comp += (a.sum - t) + x
		} else {
			a.comp += (x - t) + a.sum
		}
		a.sum = t
	case KindDistinct:
		a.seen[v] = struct{}{}
	}
}

// result returns the metric value; ok is false when the partition has no
// rows at all. A mean over rows whose cells are all null is NaN.
func (a *accumulator) result() (float64, bool) {
	switch a.metric.Kind {
	case KindCount:
		if a.metric.Field == "" {
			return float64(a.rows), true
		}
		return float64(a.n), true
	case KindSum:
		return a.sum + a.comp, true
	case KindMean:
		if a.rows == 0 {
			return 0, false
		}
		if a.n == 0 {
			return math.NaN(), true
		}
		return (a.sum + a.comp) / float64(a.n), true
	case KindDistinct:
		return float64(len(a.seen)), true
	}
	return 0, false
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
