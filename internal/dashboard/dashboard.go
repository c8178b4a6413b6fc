// Package dashboard composes the survey reports: an overview, one tab per
// date, a per-publisher summary, the monitor report and a publisher × date
// pivot. Every composition is a pure function of the dataset it is given.
package dashboard

import (
	"github.com/vinodismyname/mcpreports/internal/dataset"
	"github.com/vinodismyname/mcpreports/internal/report"
)

// Totals are the headline counts shown above the tabs.
type Totals struct {
	Dates      int `json:"dates"`
	Publishers int `json:"publishers"`
	Records    int `json:"records"`
}

// Overview counts distinct dates, distinct publishers and rows.
func Overview(ds *dataset.Dataset) Totals {
	return Totals{
		Dates:      len(ds.Distinct(dataset.ColDate)),
		Publishers: len(ds.Distinct(dataset.ColPublisher)),
		Records:    ds.Len(),
	}
}

// Table renders the totals as a two-column sheet.
func (t Totals) Table() Table {
	return Table{
		Name:    "Overview",
		Headers: []string{"Metric", "Value"},
		Places:  []int32{0, 0},
		Rows: [][]any{
			{"Dates", t.Dates},
			{"Publishers", t.Publishers},
			{"Records", t.Records},
		},
	}
}

// PublisherRow is one line of the publisher overview.
type PublisherRow struct {
	Publisher     string  `json:"publisher"`
	Records       int     `json:"records"`
	ActiveDays    int     `json:"active_days"`
	TotalDuration float64 `json:"total_duration"`
	PerDay        float64 `json:"per_day"`
}

// PublisherOverview summarizes each publisher across all dates: records,
// distinct active days, total duration and records per active day. Rows are
// ordered by records descending.
func PublisherOverview(ds *dataset.Dataset, opts ...report.Option) ([]PublisherRow, error) {
	s, err := report.SummarizeBy(ds, []string{dataset.ColPublisher}, []report.Metric{
		report.CountOf(dataset.ColActivityKey),
		report.DistinctCount(dataset.ColDate),
		report.Sum(dataset.ColDuration),
	}, opts...)
	if err != nil {
		return nil, err
	}
	out := make([]PublisherRow, len(s.Rows))
	for i, r := range s.Rows {
		records, days := int(r.Values[0]), int(r.Values[1])
		var perDay float64
		if days > 0 {
			perDay = report.Round(float64(records)/float64(days), 1)
		}
		out[i] = PublisherRow{
			Publisher:     r.Key[0].String(),
			Records:       records,
			ActiveDays:    days,
			TotalDuration: report.Round(r.Values[2], report.DisplayPlaces),
			PerDay:        perDay,
		}
	}
	return out, nil
}

// PublisherTable renders the publisher overview.
func PublisherTable(rows []PublisherRow) Table {
	t := Table{
		Name:    "Publishers",
		Headers: []string{"Publisher", "Total records", "Active days", "Total duration (min)", "Per day"},
		Places:  []int32{0, 0, 0, 2, 1},
	}
	for _, r := range rows {
		t.Rows = append(t.Rows, []any{r.Publisher, r.Records, r.ActiveDays, r.TotalDuration, r.PerDay})
	}
	return t
}

// DatePivot counts records per publisher and date with a TOTAL column.
func DatePivot(ds *dataset.Dataset, opts ...report.Option) (*report.PivotTable, error) {
	return report.Pivot(ds, dataset.ColPublisher, dataset.ColDate, report.Count(), opts...)
}

// Report bundles every composition for export.
type Report struct {
	Totals     Totals             `json:"totals"`
	Publishers []PublisherRow     `json:"publishers"`
	Tabs       []DateTab          `json:"tabs"`
	Pivot      *report.PivotTable `json:"-"`
	Monitor    *MonitorSummary    `json:"monitor,omitempty"`
}

// Build computes the full report. The monitor section is included only when
// the dataset carries monitor_id.
func Build(ds *dataset.Dataset, opts ...report.Option) (*Report, error) {
	pubs, err := PublisherOverview(ds, opts...)
	if err != nil {
		return nil, err
	}
	tabs, err := DateTabs(ds, opts...)
	if err != nil {
		return nil, err
	}
	pivot, err := DatePivot(ds, opts...)
	if err != nil {
		return nil, err
	}
	r := &Report{
		Totals:     Overview(ds),
		Publishers: pubs,
		Tabs:       tabs,
		Pivot:      pivot,
	}
	if ds.Has(dataset.ColMonitor) {
		if r.Monitor, err = MonitorReport(ds, opts...); err != nil {
			return nil, err
		}
	}
	return r, nil
}
