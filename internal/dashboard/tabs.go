package dashboard

import (
	"github.com/vinodismyname/mcpreports/internal/dataset"
	"github.com/vinodismyname/mcpreports/internal/report"
)

// DayMetrics are the four headline figures of a date tab.
type DayMetrics struct {
	Records             int     `json:"records"`
	ActivePublishers    int     `json:"active_publishers"`
	RecordsPerPublisher float64 `json:"records_per_publisher"`
	TotalDuration       float64 `json:"total_duration"`
}

// Bar is one bar of a tab's chart.
type Bar struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// TabRow is one publisher line of a date tab. MeanDuration is nil when the
// publisher has no duration recorded that day.
type TabRow struct {
	Publisher     string   `json:"publisher"`
	Records       int      `json:"records"`
	MeanDuration  *float64 `json:"mean_duration"`
	TotalDuration float64  `json:"total_duration"`
}

// DateTab is the per-date view: publisher summary, day metrics and the
// records-per-publisher bar series.
type DateTab struct {
	Date    string     `json:"date"`
	Rows    []TabRow   `json:"rows"`
	Metrics DayMetrics `json:"metrics"`
	Bars    []Bar      `json:"bars"`
}

var tabMetrics = []report.Metric{
	report.CountOf(dataset.ColActivityKey),
	report.Mean(dataset.ColDuration),
	report.Sum(dataset.ColDuration),
}

// DateTabs builds one tab per distinct date in ascending order. Rows within
// a tab are ordered by record count descending.
func DateTabs(ds *dataset.Dataset, opts ...report.Option) ([]DateTab, error) {
	dates := ds.Distinct(dataset.ColDate)
	tabs := make([]DateTab, 0, len(dates))
	for _, d := range dates {
		day := ds.Where(dataset.ColDate, d)
		tab, err := dateTab(day, d, opts)
		if err != nil {
			return nil, err
		}
		tabs = append(tabs, tab)
	}
	return tabs, nil
}

func dateTab(day *dataset.Dataset, d dataset.Value, opts []report.Option) (DateTab, error) {
	s, err := report.SummarizeBy(day, []string{dataset.ColPublisher}, tabMetrics, opts...)
	if err != nil {
		return DateTab{}, err
	}
	tab := DateTab{Date: d.String()}
	var total float64
	for _, r := range s.Rows {
		records := int(r.Values[0])
		tab.Rows = append(tab.Rows, TabRow{
			Publisher:     r.Key[0].String(),
			Records:       records,
			MeanDuration:  defined(report.Round(r.Values[1], report.DisplayPlaces)),
			TotalDuration: report.Round(r.Values[2], report.DisplayPlaces),
		})
		tab.Bars = append(tab.Bars, Bar{Label: r.Key[0].String(), Value: float64(records)})
	}

	// Day totals cover every row of the date, including rows without a publisher.
	col, _ := day.Index(dataset.ColDuration)
	for i := 0; i < day.Len(); i++ {
		if v := day.At(i, col); !v.IsNull() {
			total += v.Float()
		}
	}
	// A bucket of null publishers is not an active publisher.
	active := len(day.Distinct(dataset.ColPublisher))
	tab.Metrics = DayMetrics{
		Records:          day.Len(),
		ActivePublishers: active,
		TotalDuration:    report.Round(total, 1),
	}
	if n := active; n > 0 {
		tab.Metrics.RecordsPerPublisher = report.Round(float64(day.Len())/float64(n), 1)
	}
	return tab, nil
}

func defined(v float64) *float64 {
	if !report.Defined(v) {
		return nil
	}
	return &v
}

// Table renders the tab's publisher summary.
func (t DateTab) Table() Table {
	out := Table{
		Name:    t.Date,
		Headers: []string{"Publisher", "Records", "Mean duration (min)", "Total duration (min)"},
		Places:  []int32{0, 0, 2, 2},
	}
	for _, r := range t.Rows {
		var mean any
		if r.MeanDuration != nil {
			mean = *r.MeanDuration
		}
		out.Rows = append(out.Rows, []any{r.Publisher, r.Records, mean, r.TotalDuration})
	}
	return out
}

// MetricsTable renders the day metrics.
func (t DateTab) MetricsTable() Table {
	m := t.Metrics
	return Table{
		Name:    t.Date + " metrics",
		Headers: []string{"Metric", "Value"},
		Places:  []int32{0, 1},
		Rows: [][]any{
			{"Total records", m.Records},
			{"Active publishers", m.ActivePublishers},
			{"Records per publisher", m.RecordsPerPublisher},
			{"Total duration (min)", m.TotalDuration},
		},
	}
}
