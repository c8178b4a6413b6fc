package dashboard

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vinodismyname/mcpreports/internal/dataset"
	"github.com/vinodismyname/mcpreports/internal/report"
)

func build(t *testing.T, schema dataset.Schema, header []string, rows ...[]string) *dataset.Dataset {
	t.Helper()
	tbl := &dataset.Table{Header: header}
	for _, r := range rows {
		vals := make([]dataset.Value, len(r))
		for i, c := range r {
			vals[i] = dataset.Text(c)
		}
		tbl.Rows = append(tbl.Rows, vals)
	}
	ds, err := dataset.Build(tbl, schema)
	require.NoError(t, err)
	return ds
}

func survey(t *testing.T) *dataset.Dataset {
	return build(t, dataset.DatePublisherSchema,
		[]string{"publisher_id", "date", "activity_key", "duration_minutes"},
		[]string{"A", "2024-01-01", "k1", "10"},
		[]string{"A", "2024-01-01", "k2", "20"},
		[]string{"B", "2024-01-01", "k3", "5"},
		[]string{"A", "2024-01-02", "k4", "30"},
		[]string{"", "2024-01-02", "k5", "4"},
	)
}

func ptr(v float64) *float64 { return &v }

func TestOverview(t *testing.T) {
	got := Overview(survey(t))
	require.Equal(t, Totals{Dates: 2, Publishers: 2, Records: 5}, got)
	require.Equal(t, [][]string{{"Dates", "2"}, {"Publishers", "2"}, {"Records", "5"}}, got.Table().Strings())
}

func TestDateTabs(t *testing.T) {
	tabs, err := DateTabs(survey(t))
	require.NoError(t, err)
	require.Len(t, tabs, 2)

	first := tabs[0]
	require.Equal(t, "2024-01-01", first.Date)
	require.Equal(t, []TabRow{
		{Publisher: "A", Records: 2, MeanDuration: ptr(15), TotalDuration: 30},
		{Publisher: "B", Records: 1, MeanDuration: ptr(5), TotalDuration: 5},
	}, first.Rows)
	require.Equal(t, DayMetrics{Records: 3, ActivePublishers: 2, RecordsPerPublisher: 1.5, TotalDuration: 35}, first.Metrics)
	require.Equal(t, []Bar{{Label: "A", Value: 2}, {Label: "B", Value: 1}}, first.Bars)
	require.Equal(t, []string{"A", "2", "15.00", "30.00"}, first.Table().Strings()[0])

	// Rows without a publisher count toward the day but not toward a tab row.
	second := tabs[1]
	require.Equal(t, "2024-01-02", second.Date)
	require.Len(t, second.Rows, 1)
	require.Equal(t, DayMetrics{Records: 2, ActivePublishers: 1, RecordsPerPublisher: 2, TotalDuration: 34}, second.Metrics)
	require.Equal(t, []string{"Records per publisher", "2.0"}, second.MetricsTable().Strings()[2])
}

func TestDateTabs_PublisherWithoutDurations(t *testing.T) {
	ds := build(t, dataset.DatePublisherSchema,
		[]string{"publisher_id", "date", "activity_key", "duration_minutes"},
		[]string{"A", "2024-01-01", "k1", "10"},
		[]string{"B", "2024-01-01", "k2", ""},
		[]string{"B", "2024-01-01", "k3", ""},
	)
	tabs, err := DateTabs(ds)
	require.NoError(t, err)
	require.Len(t, tabs, 1)
	require.Equal(t, []TabRow{
		{Publisher: "B", Records: 2, MeanDuration: nil, TotalDuration: 0},
		{Publisher: "A", Records: 1, MeanDuration: ptr(10), TotalDuration: 10},
	}, tabs[0].Rows)
	require.Equal(t, []string{"B", "2", "", "0.00"}, tabs[0].Table().Strings()[0])

	r, err := Build(ds)
	require.NoError(t, err)
	require.Len(t, r.Tabs, 1)
}

func TestDateTabs_BucketIsNotAPublisher(t *testing.T) {
	tabs, err := DateTabs(survey(t), report.BucketNullKeys("(unknown)"))
	require.NoError(t, err)

	second := tabs[1]
	require.Len(t, second.Rows, 2)
	require.Equal(t, DayMetrics{Records: 2, ActivePublishers: 1, RecordsPerPublisher: 2, TotalDuration: 34}, second.Metrics)
}

func TestPublisherOverview(t *testing.T) {
	rows, err := PublisherOverview(survey(t))
	require.NoError(t, err)
	require.Equal(t, []PublisherRow{
		{Publisher: "A", Records: 3, ActiveDays: 2, TotalDuration: 60, PerDay: 1.5},
		{Publisher: "B", Records: 1, ActiveDays: 1, TotalDuration: 5, PerDay: 1},
	}, rows)

	tbl := PublisherTable(rows)
	require.Equal(t, []string{"Publisher", "Total records", "Active days", "Total duration (min)", "Per day"}, tbl.Headers)
	require.Equal(t, []string{"A", "3", "2", "60.00", "1.5"}, tbl.Strings()[0])
}

func TestDatePivot(t *testing.T) {
	p, err := DatePivot(survey(t))
	require.NoError(t, err)

	tbl := FromPivot("Pivot", p, nil)
	require.Equal(t, []string{"publisher_id", "2024-01-01", "2024-01-02", "TOTAL"}, tbl.Headers)
	require.Equal(t, [][]string{
		{"A", "2", "1", "3"},
		{"B", "1", "0", "1"},
	}, tbl.Strings())
}

func TestBuild_WithoutMonitorColumn(t *testing.T) {
	r, err := Build(survey(t))
	require.NoError(t, err)
	require.Equal(t, 5, r.Totals.Records)
	require.Len(t, r.Tabs, 2)
	require.Len(t, r.Publishers, 2)
	require.NotNil(t, r.Pivot)
	require.Nil(t, r.Monitor)
}

func monitorSurvey(t *testing.T) *dataset.Dataset {
	return build(t, dataset.MonitorSchema,
		[]string{"publisher_id", "monitor_id", "date", "activity_key", "duration_minutes", "numero_total", "district"},
		[]string{"A", "M1", "2024-01-01", "k1", "10", "3", "North"},
		[]string{"B", "M1", "2024-01-01", "k2", "20", "4", "South"},
		[]string{"A", "M1", "2024-01-02", "k3", "5", "1", "North"},
		[]string{"C", "M2", "2024-01-01", "k4", "7", "", "North"},
	)
}

func TestMonitorReport(t *testing.T) {
	m, err := MonitorReport(monitorSurvey(t))
	require.NoError(t, err)

	require.Equal(t, []string{"monitor_id", "count", "distinct(publisher_id)", "sum(duration_minutes)", "distinct(district)"}, m.Monitors.Headers())
	require.Equal(t, [][]string{
		{"M1", "3", "2", "35.00", "2"},
		{"M2", "1", "1", "7.00", "1"},
	}, FromSummary("Monitors", nil, m.Monitors).Strings())

	require.NotNil(t, m.Publishers)
	require.Equal(t, [][]string{
		{"A", "2", "4.00"},
		{"B", "1", "4.00"},
		{"C", "1", "0.00"},
	}, FromSummary("Monitor publishers", nil, m.Publishers).Strings())
	require.Len(t, m.Tables(), 2)
}

func TestMonitorReport_MissingMonitorColumn(t *testing.T) {
	_, err := MonitorReport(survey(t))
	var se *dataset.SchemaError
	require.True(t, errors.As(err, &se))
	require.Equal(t, []string{"monitor_id"}, se.Missing)
}

func TestBuild_IncludesMonitorSection(t *testing.T) {
	r, err := Build(monitorSurvey(t), report.BucketNullKeys("(unknown)"))
	require.NoError(t, err)
	require.NotNil(t, r.Monitor)
}
