package registry

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/require"

	"github.com/vinodismyname/mcpreports/config"
	"github.com/vinodismyname/mcpreports/internal/datasets"
	"github.com/vinodismyname/mcpreports/internal/runtime"
	"github.com/vinodismyname/mcpreports/internal/security"
	"github.com/vinodismyname/mcpreports/pkg/pagination"
)

const surveyCSV = `publicador,fecha,key,duration
A,2024-01-01,k1,10
A,2024-01-01,k2,20
B,2024-01-01,k3,5
A,2024-01-02,k4,30
B,2024-01-02,k5,15
C,2024-01-02,k6,1
,2024-01-02,k7,2
`

type harness struct {
	tools *Tools
	dir   string
	mgr   *datasets.Manager
}

func newHarness(t *testing.T, cfg *config.Config) *harness {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	sec, err := security.NewManager([]string{dir}, nil)
	require.NoError(t, err)

	limits := runtime.NewLimits(4, 2)
	limits.MaxPageSize = 10
	ctrl := runtime.NewController(limits)
	mgr := datasets.NewManager(time.Minute, time.Minute, ctrl, nil, datasets.WithValidator(sec))

	reg := New()
	reg.count = func(_, s string) int { return len(strings.Fields(s)) }
	tools := NewTools(reg, Deps{Datasets: mgr, Security: sec, Limits: ctrl.LimitsSnapshot(), Config: cfg})
	return &harness{tools: tools, dir: dir, mgr: mgr}
}

func (h *harness) file(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(h.dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func (h *harness) open(t *testing.T) string {
	t.Helper()
	res, err := h.tools.openDataset(context.Background(), mcp.CallToolRequest{}, OpenDatasetInput{Path: h.file(t, "survey.csv", surveyCSV)})
	require.NoError(t, err)
	require.False(t, res.IsError, errText(res))
	return res.StructuredContent.(OpenDatasetOutput).DatasetID
}

func errText(res *mcp.CallToolResult) string {
	if len(res.Content) == 0 {
		return ""
	}
	if tc, ok := mcp.AsTextContent(res.Content[0]); ok {
		return tc.Text
	}
	return ""
}

func requireCode(t *testing.T, res *mcp.CallToolResult, code string) {
	t.Helper()
	require.True(t, res.IsError, "expected %s error", code)
	require.True(t, strings.HasPrefix(errText(res), code+":"), errText(res))
}

func TestOpenDataset_ReusesHandle(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	path := h.file(t, "survey.csv", surveyCSV)

	res, err := h.tools.openDataset(ctx, mcp.CallToolRequest{}, OpenDatasetInput{Path: path})
	require.NoError(t, err)
	out := res.StructuredContent.(OpenDatasetOutput)
	require.Equal(t, 7, out.Rows)
	require.Equal(t, []string{"publisher_id", "date", "activity_key", "duration_minutes"}, out.Columns)
	require.Equal(t, "date_publisher", out.Schema)
	require.Equal(t, 10, out.MaxPageSize)

	res, err = h.tools.openDataset(ctx, mcp.CallToolRequest{}, OpenDatasetInput{Path: path})
	require.NoError(t, err)
	require.Equal(t, out.DatasetID, res.StructuredContent.(OpenDatasetOutput).DatasetID)
	require.Equal(t, 1, h.mgr.Count())
}

func TestOpenDataset_Errors(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	res, _ := h.tools.openDataset(ctx, mcp.CallToolRequest{}, OpenDatasetInput{Path: filepath.Join(h.dir, "missing.dta")})
	requireCode(t, res, "NOT_FOUND")

	res, _ = h.tools.openDataset(ctx, mcp.CallToolRequest{}, OpenDatasetInput{Path: h.file(t, "notes.txt", "x")})
	requireCode(t, res, "VALIDATION")

	res, _ = h.tools.openDataset(ctx, mcp.CallToolRequest{}, OpenDatasetInput{Path: h.file(t, "partial.csv", "publicador,key\nA,k1\n")})
	requireCode(t, res, "SCHEMA_MISMATCH")
	require.Contains(t, errText(res), "date, duration_minutes")

	res, _ = h.tools.openDataset(ctx, mcp.CallToolRequest{}, OpenDatasetInput{Path: h.file(t, "bad.csv", "publicador,fecha,key,duration\nA,not-a-date,k1,1\n")})
	requireCode(t, res, "TYPE_COERCION")

	outside := filepath.Join(t.TempDir(), "survey.csv")
	require.NoError(t, os.WriteFile(outside, []byte(surveyCSV), 0o644))
	res, _ = h.tools.openDataset(ctx, mcp.CallToolRequest{}, OpenDatasetInput{Path: outside})
	requireCode(t, res, "PERMISSION_DENIED")
	require.Zero(t, h.mgr.Count())
}

func TestCloseDataset(t *testing.T) {
	h := newHarness(t, nil)
	id := h.open(t)
	ctx := context.Background()

	res, err := h.tools.closeDataset(ctx, mcp.CallToolRequest{}, DatasetRef{DatasetID: id})
	require.NoError(t, err)
	require.True(t, res.StructuredContent.(CloseDatasetOutput).Success)

	res, _ = h.tools.closeDataset(ctx, mcp.CallToolRequest{}, DatasetRef{DatasetID: id})
	requireCode(t, res, "INVALID_HANDLE")

	res, _ = h.tools.publisherOverview(ctx, mcp.CallToolRequest{}, DatasetRef{DatasetID: id})
	requireCode(t, res, "INVALID_HANDLE")
}

func TestValidateSchema(t *testing.T) {
	h := newHarness(t, nil)
	id := h.open(t)
	ctx := context.Background()

	res, err := h.tools.validateSchema(ctx, mcp.CallToolRequest{}, ValidateSchemaInput{DatasetID: id})
	require.NoError(t, err)
	require.True(t, res.StructuredContent.(ValidateSchemaOutput).Valid)

	res, _ = h.tools.validateSchema(ctx, mcp.CallToolRequest{}, ValidateSchemaInput{DatasetID: id, Schema: "monitor"})
	out := res.StructuredContent.(ValidateSchemaOutput)
	require.False(t, out.Valid)
	require.Equal(t, []string{"monitor_id"}, out.Missing)

	path := h.file(t, "partial.csv", "publicador,key\nA,k1\n")
	res, _ = h.tools.validateSchema(ctx, mcp.CallToolRequest{}, ValidateSchemaInput{Path: path})
	out = res.StructuredContent.(ValidateSchemaOutput)
	require.Equal(t, []string{"date", "duration_minutes"}, out.Missing)
	require.Equal(t, []string{"publisher_id", "activity_key"}, out.Columns)
	require.Contains(t, errText(res), "missing=date,duration_minutes")
}

func TestSummarizeBy_PagesWithCursor(t *testing.T) {
	h := newHarness(t, nil)
	id := h.open(t)
	ctx := context.Background()

	res, err := h.tools.summarizeBy(ctx, mcp.CallToolRequest{}, SummarizeByInput{
		DatasetID: id,
		Keys:      []string{"publisher_id"},
		Metrics:   []string{"count", "sum(duration_minutes)"},
		PageSize:  2,
	})
	require.NoError(t, err)
	require.False(t, res.IsError, errText(res))
	out := res.StructuredContent.(SummarizeByOutput)
	require.Equal(t, []string{"publisher_id", "count", "sum(duration_minutes)"}, out.Headers)
	require.Equal(t, [][]string{{"A", "3", "60.00"}, {"B", "2", "20.00"}}, out.Rows)
	require.Equal(t, []string{"6", "81.00"}, out.Totals)
	require.Equal(t, 1, out.Excluded)
	require.Equal(t, PageMeta{Total: 3, Returned: 2, Truncated: true, NextCursor: out.Meta.NextCursor}, out.Meta)
	require.NotEmpty(t, out.Meta.NextCursor)

	res, err = h.tools.summarizeBy(ctx, mcp.CallToolRequest{}, SummarizeByInput{Cursor: out.Meta.NextCursor})
	require.NoError(t, err)
	require.False(t, res.IsError, errText(res))
	next := res.StructuredContent.(SummarizeByOutput)
	require.Equal(t, [][]string{{"C", "1", "1.00"}}, next.Rows)
	require.False(t, next.Meta.Truncated)
	require.Empty(t, next.Meta.NextCursor)
}

func TestSummarizeBy_Errors(t *testing.T) {
	h := newHarness(t, nil)
	id := h.open(t)
	ctx := context.Background()

	res, _ := h.tools.summarizeBy(ctx, mcp.CallToolRequest{}, SummarizeByInput{DatasetID: id, Keys: []string{"monitor_id"}})
	requireCode(t, res, "SCHEMA_MISMATCH")

	res, _ = h.tools.summarizeBy(ctx, mcp.CallToolRequest{}, SummarizeByInput{DatasetID: id, Keys: []string{"publisher_id"}, Metrics: []string{"median"}})
	requireCode(t, res, "UNKNOWN_METRIC")

	res, _ = h.tools.summarizeBy(ctx, mcp.CallToolRequest{}, SummarizeByInput{DatasetID: id, Keys: []string{"publisher_id"}, PageSize: 11})
	requireCode(t, res, "LIMIT_EXCEEDED")

	res, _ = h.tools.summarizeBy(ctx, mcp.CallToolRequest{}, SummarizeByInput{DatasetID: id, Keys: []string{"publisher_id"}, OrderBy: "sum(duration_minutes)"})
	requireCode(t, res, "VALIDATION")

	tok, err := pagination.EncodeCursor(pagination.Cursor{Did: id, Qh: "stale", Ps: 2, K: []string{"publisher_id"}})
	require.NoError(t, err)
	res, _ = h.tools.summarizeBy(ctx, mcp.CallToolRequest{}, SummarizeByInput{Cursor: tok})
	requireCode(t, res, "CURSOR_INVALID")
}

func TestSummarizeBy_OrderByKeyAndBucketedNulls(t *testing.T) {
	h := newHarness(t, &config.Config{NullKeys: config.NullKeysBucket, UnknownKeyLabel: "(sin dato)"})
	id := h.open(t)

	res, err := h.tools.summarizeBy(context.Background(), mcp.CallToolRequest{}, SummarizeByInput{
		DatasetID: id, Keys: []string{"publisher_id"}, OrderBy: "key",
	})
	require.NoError(t, err)
	out := res.StructuredContent.(SummarizeByOutput)
	require.Equal(t, [][]string{{"(sin dato)", "1"}, {"A", "3"}, {"B", "2"}, {"C", "1"}}, out.Rows)
	require.Zero(t, out.Excluded)
}

func TestPivot_Defaults(t *testing.T) {
	h := newHarness(t, nil)
	id := h.open(t)

	res, err := h.tools.pivot(context.Background(), mcp.CallToolRequest{}, PivotInput{DatasetID: id})
	require.NoError(t, err)
	require.False(t, res.IsError, errText(res))
	out := res.StructuredContent.(PivotOutput)
	require.Equal(t, []string{"publisher_id", "2024-01-01", "2024-01-02", "TOTAL"}, out.Table.Headers)
	require.Equal(t, [][]string{
		{"A", "2", "1", "3"},
		{"B", "1", "1", "2"},
		{"C", "0", "1", "1"},
	}, out.Table.Rows)
	require.Equal(t, 1, out.Excluded)
}

func TestDateTabs_FilterByDate(t *testing.T) {
	h := newHarness(t, nil)
	id := h.open(t)
	ctx := context.Background()

	res, err := h.tools.dateTabs(ctx, mcp.CallToolRequest{}, DateTabsInput{DatasetID: id, Date: "2024-01-02"})
	require.NoError(t, err)
	out := res.StructuredContent.(DateTabsOutput)
	require.Len(t, out.Tabs, 1)
	tab := out.Tabs[0]
	require.Equal(t, "2024-01-02", tab.Date)
	require.Equal(t, 4, tab.Metrics.Records)
	require.Equal(t, 3, tab.Metrics.ActivePublishers)
	require.Equal(t, 1.3, tab.Metrics.RecordsPerPublisher)
	require.Contains(t, errText(res), "2024-01-02 records=4 active_publishers=3 per_publisher=1.3 total_duration=48.0")

	res, _ = h.tools.dateTabs(ctx, mcp.CallToolRequest{}, DateTabsInput{DatasetID: id, Date: "tomorrow"})
	requireCode(t, res, "VALIDATION")
}

func TestPublisherOverview(t *testing.T) {
	h := newHarness(t, nil)
	id := h.open(t)

	res, err := h.tools.publisherOverview(context.Background(), mcp.CallToolRequest{}, DatasetRef{DatasetID: id})
	require.NoError(t, err)
	out := res.StructuredContent.(PublisherOverviewOutput)
	require.Equal(t, 2, out.Totals.Dates)
	require.Equal(t, 3, out.Totals.Publishers)
	require.Len(t, out.Publishers, 3)
	require.Equal(t, "A", out.Publishers[0].Publisher)
	require.Equal(t, 1.5, out.Publishers[0].PerDay)
}

func TestMonitorReport(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	res, _ := h.tools.monitorReport(ctx, mcp.CallToolRequest{}, DatasetRef{DatasetID: h.open(t)})
	requireCode(t, res, "SCHEMA_MISMATCH")

	path := h.file(t, "monitor.csv", "publicador,monitor,fecha,key,duration,numero_total\n"+
		"A,M1,2024-01-01,k1,10,2\n"+
		"B,M1,2024-01-01,k2,5,3\n"+
		"C,M2,2024-01-02,k3,7,1\n")
	res, err := h.tools.openDataset(ctx, mcp.CallToolRequest{}, OpenDatasetInput{Path: path, Schema: "monitor"})
	require.NoError(t, err)
	require.False(t, res.IsError, errText(res))
	id := res.StructuredContent.(OpenDatasetOutput).DatasetID

	res, err = h.tools.monitorReport(ctx, mcp.CallToolRequest{}, DatasetRef{DatasetID: id})
	require.NoError(t, err)
	require.False(t, res.IsError, errText(res))
	out := res.StructuredContent.(MonitorReportOutput)
	require.Equal(t, []string{"M1", "2", "2", "15.00"}, out.Monitors.Rows[0])
	require.NotNil(t, out.Publishers)
	require.Len(t, out.Publishers.Rows, 3)
}

func TestWriteReport(t *testing.T) {
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Params.Name = "write_report_workbook"

	disabled := newHarness(t, nil)
	res, _ := disabled.tools.writeReport(ctx, req, WriteReportInput{DatasetID: disabled.open(t), OutputPath: filepath.Join(disabled.dir, "r.xlsx")})
	requireCode(t, res, "PERMISSION_DENIED")

	h := newHarness(t, &config.Config{EnableWrites: true})
	id := h.open(t)
	target := filepath.Join(h.dir, "report.xlsx")
	res, err := h.tools.writeReport(ctx, req, WriteReportInput{DatasetID: id, OutputPath: target})
	require.NoError(t, err)
	require.False(t, res.IsError, errText(res))
	out := res.StructuredContent.(WriteReportOutput)
	require.Equal(t, target, out.Path)
	require.Equal(t, []string{"Overview", "2024-01-01", "2024-01-02", "Pivot"}, out.Sheets)
	_, err = os.Stat(target)
	require.NoError(t, err)

	res, _ = h.tools.writeReport(ctx, req, WriteReportInput{DatasetID: id, OutputPath: filepath.Join(t.TempDir(), "r.xlsx")})
	requireCode(t, res, "PERMISSION_DENIED")
}

func TestRegister_ToolsAndWriteFilter(t *testing.T) {
	h := newHarness(t, nil)
	srv := server.NewMCPServer("test", "0.0.0", server.WithToolCapabilities(true))
	h.tools.Register(srv)

	tools, err := h.tools.reg.Tools(context.Background())
	require.NoError(t, err)
	var names []string
	for _, tool := range tools {
		names = append(names, tool.Name)
	}
	require.Equal(t, []string{
		"close_dataset", "date_tabs", "monitor_report", "open_dataset", "pivot",
		"publisher_overview", "summarize_by", "validate_schema", "write_report_workbook",
	}, names)

	visible := NewWriteToolFilter(&config.Config{}).FilterTools(context.Background(), tools)
	require.Len(t, visible, len(tools)-1)
	require.Len(t, NewWriteToolFilter(&config.Config{EnableWrites: true}).FilterTools(context.Background(), tools), len(tools))
}

func TestRegistry_Bound(t *testing.T) {
	r := New()
	r.count = func(_, s string) int { return len(strings.Fields(s)) }
	r.WithSummaryBudget("", 6)

	require.Equal(t, "a b c", r.Bound("a b c"))
	got := r.Bound("head line\nrow one\nrow two\nrow three")
	require.Equal(t, "head line\nrow one\n"+truncatedMarker, got)
	require.Equal(t, "one two three four five six seven\n"+truncatedMarker, r.Bound("one two three four five six seven\nmore"))
}
