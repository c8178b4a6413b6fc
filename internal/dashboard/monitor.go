package dashboard

import (
	"github.com/vinodismyname/mcpreports/internal/dataset"
	"github.com/vinodismyname/mcpreports/internal/report"
)

// MonitorSummary is the monitor-scoped report. Publishers is nil when the
// dataset has no numero_total column.
type MonitorSummary struct {
	Monitors   *report.SummaryTable `json:"-"`
	Publishers *report.SummaryTable `json:"-"`
}

// MonitorReport summarizes each monitor by records, distinct publishers,
// total duration and, when present, distinct districts and provinces. When
// numero_total is present it also sums it per publisher.
func MonitorReport(ds *dataset.Dataset, opts ...report.Option) (*MonitorSummary, error) {
	if err := dataset.ValidateSchema(ds, dataset.MonitorSchema.Required()); err != nil {
		return nil, err
	}
	metrics := []report.Metric{
		report.Count(),
		report.DistinctCount(dataset.ColPublisher),
		report.Sum(dataset.ColDuration),
	}
	for _, col := range []string{dataset.ColDistrict, dataset.ColProvince} {
		if ds.Has(col) {
			metrics = append(metrics, report.DistinctCount(col))
		}
	}
	monitors, err := report.SummarizeBy(ds, []string{dataset.ColMonitor}, metrics, opts...)
	if err != nil {
		return nil, err
	}
	out := &MonitorSummary{Monitors: monitors}

	if ds.Has(dataset.ColNumeroTotal) {
		out.Publishers, err = report.SummarizeBy(ds, []string{dataset.ColPublisher}, []report.Metric{
			report.Count(),
			report.Sum(dataset.ColNumeroTotal),
		}, opts...)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Tables renders the monitor report sections.
func (m *MonitorSummary) Tables() []Table {
	out := []Table{FromSummary("Monitors", nil, m.Monitors)}
	if m.Publishers != nil {
		out = append(out, FromSummary("Monitor publishers", nil, m.Publishers))
	}
	return out
}
