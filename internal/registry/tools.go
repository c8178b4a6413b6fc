package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/vinodismyname/mcpreports/config"
	"github.com/vinodismyname/mcpreports/internal/dashboard"
	"github.com/vinodismyname/mcpreports/internal/dataset"
	"github.com/vinodismyname/mcpreports/internal/datasets"
	"github.com/vinodismyname/mcpreports/internal/loader"
	"github.com/vinodismyname/mcpreports/internal/render"
	"github.com/vinodismyname/mcpreports/internal/report"
	"github.com/vinodismyname/mcpreports/internal/runtime"
	"github.com/vinodismyname/mcpreports/internal/security"
	"github.com/vinodismyname/mcpreports/pkg/mcperr"
	"github.com/vinodismyname/mcpreports/pkg/pagination"
	"github.com/vinodismyname/mcpreports/pkg/validation"
)

// Deps are the services the report tools run against.
type Deps struct {
	Datasets *datasets.Manager
	Security *security.Manager
	Limits   runtime.Limits
	Config   *config.Config
}

// Tools implements the report tool handlers.
type Tools struct {
	deps   Deps
	reg    *Registry
	writes *WriteToolFilter
	opts   []report.Option
}

// NewTools wires handlers to their dependencies. Report options follow the
// configured null-key policy.
func NewTools(reg *Registry, deps Deps) *Tools {
	cfg := deps.Config
	if cfg == nil {
		cfg = &config.Config{NullKeys: config.NullKeysDrop}
	}
	opts := []report.Option{report.Parallel(config.DefaultParallelWorkers, config.DefaultParallelThreshold)}
	if cfg.NullKeys == config.NullKeysBucket {
		label := cfg.UnknownKeyLabel
		if label == "" {
			label = config.DefaultUnknownKeyLabel
		}
		opts = append(opts, report.BucketNullKeys(label))
	}
	return &Tools{deps: deps, reg: reg, writes: NewWriteToolFilter(cfg), opts: opts}
}

// Register adds every report tool to the server and the registry.
func (t *Tools) Register(s *server.MCPServer) {
	add := func(tool mcp.Tool, h server.ToolHandlerFunc) {
		s.AddTool(tool, h)
		t.reg.Register(tool)
	}

	add(mcp.NewTool(
		"open_dataset",
		mcp.WithDescription("Load a survey file (.dta, .csv, .xlsx) inside an allowed directory, validate it against a schema and return a dataset handle. Reopening the same path and schema reuses the live handle. Errors include NOT_FOUND (ask the user for a file), SCHEMA_MISMATCH (lists every missing column), TYPE_COERCION and UNSUPPORTED_FORMAT."),
		mcp.WithInputSchema[OpenDatasetInput](),
		mcp.WithOutputSchema[OpenDatasetOutput](),
	), mcp.NewTypedToolHandler(t.openDataset))

	add(mcp.NewTool(
		"close_dataset",
		mcp.WithDescription("Close a previously opened dataset handle and free its slot"),
		mcp.WithInputSchema[DatasetRef](),
		mcp.WithOutputSchema[CloseDatasetOutput](),
	), mcp.NewTypedToolHandler(t.closeDataset))

	add(mcp.NewTool(
		"validate_schema",
		mcp.WithDescription("Check an open dataset or a file for the columns a report needs and list every missing one"),
		mcp.WithInputSchema[ValidateSchemaInput](),
		mcp.WithOutputSchema[ValidateSchemaOutput](),
	), mcp.NewTypedToolHandler(t.validateSchema))

	add(mcp.NewTool(
		"summarize_by",
		mcp.WithDescription("Group an open dataset by one or more columns and compute metrics per group (count, count(field), sum(field), mean(field), distinct(field)). Rows are ordered by the first metric descending, ties by key. Values are rounded to 2 decimals for display only. Results are cursor-paged; pass meta.nextCursor to continue. Rows with a null grouping key are excluded and counted in excluded."),
		mcp.WithInputSchema[SummarizeByInput](),
		mcp.WithOutputSchema[SummarizeByOutput](),
	), mcp.NewTypedToolHandler(t.summarizeBy))

	add(mcp.NewTool(
		"pivot",
		mcp.WithDescription("Cross-tabulate one metric over row_key × col_key (default publisher_id × date, count) with zero-filled cells and a TOTAL column. Rows are ordered by TOTAL descending."),
		mcp.WithInputSchema[PivotInput](),
		mcp.WithOutputSchema[PivotOutput](),
	), mcp.NewTypedToolHandler(t.pivot))

	add(mcp.NewTool(
		"date_tabs",
		mcp.WithDescription("Per-date view: for each date, records, mean and total duration per publisher, plus day metrics (records, active publishers, records per publisher, total duration) and a records-per-publisher bar series"),
		mcp.WithInputSchema[DateTabsInput](),
		mcp.WithOutputSchema[DateTabsOutput](),
	), mcp.NewTypedToolHandler(t.dateTabs))

	add(mcp.NewTool(
		"publisher_overview",
		mcp.WithDescription("All-dates summary per publisher: total records, active days, total duration and records per active day, with dataset totals"),
		mcp.WithInputSchema[DatasetRef](),
		mcp.WithOutputSchema[PublisherOverviewOutput](),
	), mcp.NewTypedToolHandler(t.publisherOverview))

	add(mcp.NewTool(
		"monitor_report",
		mcp.WithDescription("Per monitor: records, distinct publishers, total duration and distinct districts/provinces when present; per publisher sum of numero_total when present. Requires monitor_id."),
		mcp.WithInputSchema[DatasetRef](),
		mcp.WithOutputSchema[MonitorReportOutput](),
	), mcp.NewTypedToolHandler(t.monitorReport))

	add(mcp.NewTool(
		"write_report_workbook",
		mcp.WithDescription("Write the full report (overview, publisher summary, one sheet per date with a chart, pivot, monitor sections) to an .xlsx inside an allowed directory. Hidden unless writes are enabled."),
		mcp.WithInputSchema[WriteReportInput](),
		mcp.WithOutputSchema[WriteReportOutput](),
	), mcp.NewTypedToolHandler(t.writeReport))
}

func (t *Tools) openDataset(ctx context.Context, req mcp.CallToolRequest, in OpenDatasetInput) (*mcp.CallToolResult, error) {
	if msg := validation.ValidateStruct(in); msg != "" {
		return mcperr.FromText(msg), nil
	}
	schemaName := schemaNameOf(in.Schema)
	schema, _ := dataset.SchemaByName(schemaName)
	o := loader.Options{Schema: schema, Sheet: in.Sheet, Aliases: in.Aliases, MaxRows: t.deps.Limits.MaxRowsPerLoad}

	id, canonical, err := t.deps.Datasets.GetOrOpenByPath(ctx, in.Path, o, schemaName)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("path", in.Path).Msg("open_dataset failed")
		return mcperr.FromError(err, mcperr.OpenFailed), nil
	}
	h, ok := t.deps.Datasets.Get(id)
	if !ok {
		return mcperr.New(mcperr.InvalidHandle, ""), nil
	}
	out := OpenDatasetOutput{
		DatasetID:   id,
		Path:        canonical,
		Schema:      schemaName,
		Rows:        h.Data.Len(),
		Columns:     h.Data.Columns(),
		LoadedAt:    h.LoadedAt,
		PageSize:    t.deps.Limits.PageSize,
		MaxPageSize: t.deps.Limits.MaxPageSize,
	}
	summary := fmt.Sprintf("dataset_id=%s rows=%d columns=%s", id, out.Rows, strings.Join(out.Columns, ","))
	return t.result(out, summary), nil
}

func (t *Tools) closeDataset(ctx context.Context, req mcp.CallToolRequest, in DatasetRef) (*mcp.CallToolResult, error) {
	if msg := validation.ValidateStruct(in); msg != "" {
		return mcperr.FromText(msg), nil
	}
	if err := t.deps.Datasets.CloseHandle(ctx, in.DatasetID); err != nil {
		return mcperr.FromError(err, mcperr.InvalidHandle), nil
	}
	return t.result(CloseDatasetOutput{Success: true}, "closed "+in.DatasetID), nil
}

func (t *Tools) validateSchema(ctx context.Context, req mcp.CallToolRequest, in ValidateSchemaInput) (*mcp.CallToolResult, error) {
	if msg := validation.ValidateStruct(in); msg != "" {
		return mcperr.FromText(msg), nil
	}
	schemaName := schemaNameOf(in.Schema)
	schema, _ := dataset.SchemaByName(schemaName)

	var cols dataset.Columnar
	if in.DatasetID != "" {
		h, ok := t.deps.Datasets.Get(in.DatasetID)
		if !ok {
			return mcperr.New(mcperr.InvalidHandle, ""), nil
		}
		cols = h.Data
	} else {
		path := in.Path
		if t.deps.Security != nil {
			p, err := t.deps.Security.ValidateOpenPath(path)
			if err != nil {
				return mcperr.FromError(err, mcperr.PermissionDenied), nil
			}
			path = p
		}
		tbl, err := loader.ReadTable(ctx, path, loader.Options{Sheet: in.Sheet, MaxRows: t.deps.Limits.MaxRowsPerLoad})
		if err != nil {
			return mcperr.FromError(err, mcperr.OpenFailed), nil
		}
		cols = tbl
	}

	out := ValidateSchemaOutput{Valid: true, Schema: schemaName, Columns: cols.Columns()}
	if err := dataset.ValidateSchema(cols, schema.Required()); err != nil {
		var se *dataset.SchemaError
		if !errors.As(err, &se) {
			return mcperr.FromError(err, mcperr.AnalysisFailed), nil
		}
		out.Valid, out.Missing = false, se.Missing
	}
	summary := fmt.Sprintf("valid=%v schema=%s", out.Valid, schemaName)
	if !out.Valid {
		summary += " missing=" + strings.Join(out.Missing, ",")
	}
	return t.result(out, summary), nil
}

func (t *Tools) summarizeBy(ctx context.Context, req mcp.CallToolRequest, in SummarizeByInput) (*mcp.CallToolResult, error) {
	if msg := validation.ValidateStruct(in); msg != "" {
		return mcperr.FromText(msg), nil
	}
	var cur *pagination.Cursor
	offset := 0
	if in.Cursor != "" {
		c, err := pagination.DecodeCursor(in.Cursor)
		if err != nil {
			return mcperr.New(mcperr.CursorInvalid, err.Error()), nil
		}
		cur = c
		in.DatasetID, in.Keys, in.Metrics, in.OrderBy, in.Ascending = c.Did, c.K, c.M, c.O, c.A
		in.PageSize, offset = c.Ps, c.Off
	}
	if len(in.Metrics) == 0 {
		in.Metrics = []string{"count"}
	}
	qh := pagination.QueryHash("summarize_by", strings.Join(in.Keys, ","), strings.Join(in.Metrics, ","), in.OrderBy, fmt.Sprint(in.Ascending))
	if cur != nil && !cur.Matches(in.DatasetID, qh) {
		return mcperr.New(mcperr.CursorInvalid, ""), nil
	}
	size, errRes := t.pageSize(in.PageSize)
	if errRes != nil {
		return errRes, nil
	}
	metrics, err := report.ParseMetrics(in.Metrics)
	if err != nil {
		return mcperr.FromError(err, mcperr.Validation), nil
	}
	order, err := orderOption(in.OrderBy, in.Ascending, metrics)
	if err != nil {
		return mcperr.New(mcperr.Validation, err.Error()), nil
	}

	var sum *report.SummaryTable
	err = t.deps.Datasets.WithDataset(in.DatasetID, func(ds *dataset.Dataset) error {
		var err error
		sum, err = report.SummarizeBy(ds, in.Keys, metrics, append(t.reportOptions(), order...)...)
		return err
	})
	if err != nil {
		return mcperr.FromError(err, mcperr.AnalysisFailed), nil
	}

	display := sum.Strings()
	start, end, more := pagination.Page(len(display), offset, size)
	out := SummarizeByOutput{
		DatasetID: in.DatasetID,
		Keys:      sum.Keys,
		Headers:   sum.Headers(),
		Rows:      display[start:end],
		Totals:    totals(sum),
		Excluded:  sum.Excluded,
		Meta:      PageMeta{Total: len(display), Returned: end - start, Truncated: more},
	}
	if more {
		tok, err := pagination.EncodeCursor(pagination.Cursor{
			Did: in.DatasetID, Qh: qh, Off: pagination.NextOffset(offset, end-start), Ps: size,
			K: in.Keys, M: in.Metrics, O: in.OrderBy, A: in.Ascending,
		})
		if err != nil {
			return mcperr.New(mcperr.CursorBuildFailed, err.Error()), nil
		}
		out.Meta.NextCursor = tok
	}

	lines := []string{fmt.Sprintf("groups=%d returned=%d excluded=%d truncated=%v", out.Meta.Total, out.Meta.Returned, out.Excluded, more)}
	lines = append(lines, strings.Join(out.Headers, " | "))
	for _, r := range out.Rows {
		lines = append(lines, strings.Join(r, " | "))
	}
	return t.result(out, strings.Join(lines, "\n")), nil
}

func (t *Tools) pivot(ctx context.Context, req mcp.CallToolRequest, in PivotInput) (*mcp.CallToolResult, error) {
	if msg := validation.ValidateStruct(in); msg != "" {
		return mcperr.FromText(msg), nil
	}
	rowKey, colKey, spec := in.RowKey, in.ColKey, in.Metric
	if rowKey == "" {
		rowKey = dataset.ColPublisher
	}
	if colKey == "" {
		colKey = dataset.ColDate
	}
	if spec == "" {
		spec = "count"
	}
	metric, err := report.ParseMetric(spec)
	if err != nil {
		return mcperr.FromError(err, mcperr.Validation), nil
	}

	var p *report.PivotTable
	err = t.deps.Datasets.WithDataset(in.DatasetID, func(ds *dataset.Dataset) error {
		var err error
		p, err = report.Pivot(ds, rowKey, colKey, metric, t.reportOptions()...)
		return err
	})
	if err != nil {
		return mcperr.FromError(err, mcperr.AnalysisFailed), nil
	}

	tbl := dashboard.FromPivot("Pivot", p, nil)
	limit := t.deps.Limits.MaxPageSize
	total := len(tbl.Rows)
	if limit > 0 && total > limit {
		tbl.Rows = tbl.Rows[:limit]
	}
	out := PivotOutput{
		DatasetID: in.DatasetID,
		Table:     tableOutput(tbl),
		Excluded:  p.Excluded,
		Meta:      PageMeta{Total: total, Returned: len(tbl.Rows), Truncated: len(tbl.Rows) < total},
	}
	lines := []string{fmt.Sprintf("rows=%d columns=%d metric=%s excluded=%d", total, len(p.Columns), metric, p.Excluded)}
	lines = append(lines, strings.Join(out.Table.Headers, " | "))
	for _, r := range out.Table.Rows {
		lines = append(lines, strings.Join(r, " | "))
	}
	return t.result(out, strings.Join(lines, "\n")), nil
}

func (t *Tools) dateTabs(ctx context.Context, req mcp.CallToolRequest, in DateTabsInput) (*mcp.CallToolResult, error) {
	if msg := validation.ValidateStruct(in); msg != "" {
		return mcperr.FromText(msg), nil
	}
	var out DateTabsOutput
	err := t.deps.Datasets.WithDataset(in.DatasetID, func(ds *dataset.Dataset) error {
		if in.Date != "" {
			d, ok := dataset.ParseDate(in.Date)
			if !ok {
				return fmt.Errorf("%w: date %q is not a date", errInvalidInput, in.Date)
			}
			ds = ds.Where(dataset.ColDate, dataset.Date(d))
		}
		tabs, err := dashboard.DateTabs(ds, t.reportOptions()...)
		if err != nil {
			return err
		}
		out = DateTabsOutput{DatasetID: in.DatasetID, Totals: dashboard.Overview(ds), Tabs: tabs}
		return nil
	})
	if err != nil {
		return t.fail(err), nil
	}
	lines := []string{fmt.Sprintf("dates=%d publishers=%d records=%d", out.Totals.Dates, out.Totals.Publishers, out.Totals.Records)}
	for _, tab := range out.Tabs {
		m := tab.Metrics
		lines = append(lines, fmt.Sprintf("%s records=%d active_publishers=%d per_publisher=%s total_duration=%s",
			tab.Date, m.Records, m.ActivePublishers, report.FormatFixed(m.RecordsPerPublisher, 1), report.FormatFixed(m.TotalDuration, 1)))
	}
	return t.result(out, strings.Join(lines, "\n")), nil
}

func (t *Tools) publisherOverview(ctx context.Context, req mcp.CallToolRequest, in DatasetRef) (*mcp.CallToolResult, error) {
	if msg := validation.ValidateStruct(in); msg != "" {
		return mcperr.FromText(msg), nil
	}
	var out PublisherOverviewOutput
	err := t.deps.Datasets.WithDataset(in.DatasetID, func(ds *dataset.Dataset) error {
		rows, err := dashboard.PublisherOverview(ds, t.reportOptions()...)
		if err != nil {
			return err
		}
		out = PublisherOverviewOutput{DatasetID: in.DatasetID, Totals: dashboard.Overview(ds), Publishers: rows}
		return nil
	})
	if err != nil {
		return t.fail(err), nil
	}
	lines := []string{fmt.Sprintf("dates=%d publishers=%d records=%d", out.Totals.Dates, out.Totals.Publishers, out.Totals.Records)}
	for _, r := range dashboard.PublisherTable(out.Publishers).Strings() {
		lines = append(lines, strings.Join(r, " | "))
	}
	return t.result(out, strings.Join(lines, "\n")), nil
}

func (t *Tools) monitorReport(ctx context.Context, req mcp.CallToolRequest, in DatasetRef) (*mcp.CallToolResult, error) {
	if msg := validation.ValidateStruct(in); msg != "" {
		return mcperr.FromText(msg), nil
	}
	var m *dashboard.MonitorSummary
	err := t.deps.Datasets.WithDataset(in.DatasetID, func(ds *dataset.Dataset) error {
		var err error
		m, err = dashboard.MonitorReport(ds, t.reportOptions()...)
		return err
	})
	if err != nil {
		return t.fail(err), nil
	}
	tables := m.Tables()
	out := MonitorReportOutput{DatasetID: in.DatasetID, Monitors: tableOutput(tables[0])}
	if len(tables) > 1 {
		p := tableOutput(tables[1])
		out.Publishers = &p
	}
	lines := []string{fmt.Sprintf("monitors=%d excluded=%d", len(out.Monitors.Rows), m.Monitors.Excluded)}
	for _, r := range out.Monitors.Rows {
		lines = append(lines, strings.Join(r, " | "))
	}
	return t.result(out, strings.Join(lines, "\n")), nil
}

func (t *Tools) writeReport(ctx context.Context, req mcp.CallToolRequest, in WriteReportInput) (*mcp.CallToolResult, error) {
	if !t.writes.Allows(req.Params.Name) {
		return mcperr.New(mcperr.PermissionDenied, "writes are disabled; set MCPREPORTS_ENABLE_WRITES=true"), nil
	}
	if msg := validation.ValidateStruct(in); msg != "" {
		return mcperr.FromText(msg), nil
	}
	path := in.OutputPath
	if t.deps.Security != nil {
		p, err := t.deps.Security.ValidateWritePath(path)
		if err != nil {
			return mcperr.FromError(err, mcperr.PermissionDenied), nil
		}
		path = p
	}

	var r *dashboard.Report
	err := t.deps.Datasets.WithDataset(in.DatasetID, func(ds *dataset.Dataset) error {
		var err error
		r, err = dashboard.Build(ds, t.reportOptions()...)
		return err
	})
	if err != nil {
		return t.fail(err), nil
	}
	sum, err := render.WriteWorkbook(ctx, r, path)
	if err != nil {
		return mcperr.Wrapf(mcperr.WriteFailed, "%v", err), nil
	}
	out := WriteReportOutput{Path: sum.Path, Sheets: sum.Sheets}
	return t.result(out, fmt.Sprintf("wrote %s sheets=%s", sum.Path, strings.Join(sum.Sheets, ","))), nil
}

// result attaches a token-bounded text summary for clients ignoring structured output.
func (t *Tools) result(out any, text string) *mcp.CallToolResult {
	text = t.reg.Bound(text)
	res := mcp.NewToolResultStructured(out, text)
	res.Content = []mcp.Content{mcp.NewTextContent(text)}
	return res
}

var errInvalidInput = errors.New("invalid input")

func (t *Tools) fail(err error) *mcp.CallToolResult {
	if errors.Is(err, errInvalidInput) {
		return mcperr.New(mcperr.Validation, err.Error())
	}
	return mcperr.FromError(err, mcperr.AnalysisFailed)
}

func (t *Tools) reportOptions() []report.Option {
	return t.opts
}

func (t *Tools) pageSize(requested int) (int, *mcp.CallToolResult) {
	l := t.deps.Limits
	if requested <= 0 {
		requested = l.PageSize
	}
	if requested <= 0 {
		requested = config.DefaultPageSize
	}
	if l.MaxPageSize > 0 && requested > l.MaxPageSize {
		return 0, mcperr.Wrapf(mcperr.LimitExceeded, "page_size %d exceeds %d", requested, l.MaxPageSize)
	}
	return requested, nil
}

func schemaNameOf(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return "date_publisher"
	}
	return name
}

// orderOption resolves order_by against the requested metrics.
func orderOption(orderBy string, ascending bool, metrics []report.Metric) ([]report.Option, error) {
	switch strings.ToLower(strings.TrimSpace(orderBy)) {
	case "":
		if ascending {
			return []report.Option{report.OrderBy(0, false)}, nil
		}
		return nil, nil
	case "key":
		return []report.Option{report.OrderByKey()}, nil
	}
	want, err := report.ParseMetric(orderBy)
	if err != nil {
		return nil, err
	}
	for i, m := range metrics {
		if m == want {
			return []report.Option{report.OrderBy(i, !ascending)}, nil
		}
	}
	return nil, fmt.Errorf("order_by %q is not one of the requested metrics", orderBy)
}

func totals(s *report.SummaryTable) []string {
	out := make([]string, len(s.Metrics))
	for i, m := range s.Metrics {
		if m.Kind == report.KindCount || m.Kind == report.KindSum {
			places := int32(report.DisplayPlaces)
			if m.Kind == report.KindCount {
				places = 0
			}
			out[i] = report.FormatFixed(s.Total(i), places)
		}
	}
	return out
}
