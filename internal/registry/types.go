package registry

import (
	"time"

	"github.com/vinodismyname/mcpreports/internal/dashboard"
)

// --- Input / Output Schemas (typed for discovery) ---

// OpenDatasetInput defines parameters for loading a survey file.
type OpenDatasetInput struct {
	Path    string            `json:"path" validate:"required,datafile_ext" jsonschema_description:"Absolute or allowed path to a .dta, .csv or .xlsx file"`
	Schema  string            `json:"schema,omitempty" validate:"omitempty,schema_name" jsonschema_description:"Columns to require: date_publisher (default), monitor or none"`
	Sheet   string            `json:"sheet,omitempty" jsonschema_description:"Worksheet for Excel files; defaults to the first sheet"`
	Aliases map[string]string `json:"aliases,omitempty" jsonschema_description:"Extra source header to canonical column mappings"`
}

// OpenDatasetOutput documents the response fields for open_dataset.
type OpenDatasetOutput struct {
	DatasetID   string    `json:"dataset_id" jsonschema_description:"Server-assigned dataset handle ID"`
	Path        string    `json:"path" jsonschema_description:"Canonical path that was loaded"`
	Schema      string    `json:"schema" jsonschema_description:"Schema the dataset was validated against"`
	Rows        int       `json:"rows" jsonschema_description:"Number of data rows"`
	Columns     []string  `json:"columns" jsonschema_description:"Canonical column names"`
	LoadedAt    time.Time `json:"loaded_at"`
	PageSize    int       `json:"page_size" jsonschema_description:"Default summarize_by page size"`
	MaxPageSize int       `json:"max_page_size" jsonschema_description:"Largest accepted page size"`
}

// DatasetRef identifies an open dataset.
type DatasetRef struct {
	DatasetID string `json:"dataset_id" validate:"required" jsonschema_description:"Dataset handle ID from open_dataset"`
}

// CloseDatasetOutput documents close_dataset.
type CloseDatasetOutput struct {
	Success bool `json:"success" jsonschema_description:"True when the handle was closed"`
}

// ValidateSchemaInput checks an open dataset or a file against a schema.
type ValidateSchemaInput struct {
	DatasetID string `json:"dataset_id,omitempty" validate:"required_without=Path" jsonschema_description:"Dataset handle ID"`
	Path      string `json:"path,omitempty" validate:"omitempty,datafile_ext" jsonschema_description:"File to check without loading it as a dataset"`
	Schema    string `json:"schema,omitempty" validate:"omitempty,schema_name" jsonschema_description:"date_publisher (default) or monitor"`
	Sheet     string `json:"sheet,omitempty" jsonschema_description:"Worksheet for Excel files"`
}

// ValidateSchemaOutput lists the missing columns, if any.
type ValidateSchemaOutput struct {
	Valid   bool     `json:"valid"`
	Schema  string   `json:"schema"`
	Missing []string `json:"missing,omitempty" jsonschema_description:"Every required column that is absent"`
	Columns []string `json:"columns" jsonschema_description:"Canonical columns found"`
}

// SummarizeByInput groups a dataset and computes metrics per group.
type SummarizeByInput struct {
	DatasetID string   `json:"dataset_id,omitempty" validate:"required_without=Cursor" jsonschema_description:"Dataset handle ID"`
	Keys      []string `json:"keys,omitempty" validate:"required_without=Cursor" jsonschema_description:"Grouping columns, e.g. [\"publisher_id\"]"`
	Metrics   []string `json:"metrics,omitempty" validate:"omitempty,dive,metric" jsonschema_description:"count, count(field), sum(field), mean(field), distinct(field); default [\"count\"]"`
	OrderBy   string   `json:"order_by,omitempty" jsonschema_description:"\"key\" or one of the metrics; default is the first metric"`
	Ascending bool     `json:"ascending,omitempty" jsonschema_description:"Sort ascending instead of descending"`
	PageSize  int      `json:"page_size,omitempty" validate:"omitempty,min=1" jsonschema_description:"Rows per page"`
	Cursor    string   `json:"cursor,omitempty" validate:"omitempty,cursor" jsonschema_description:"Opaque cursor from a previous page; takes precedence over other inputs"`
}

// PageMeta captures paging/truncation metadata.
type PageMeta struct {
	Total      int    `json:"total"`
	Returned   int    `json:"returned"`
	Truncated  bool   `json:"truncated"`
	NextCursor string `json:"nextCursor,omitempty"`
}

// SummarizeByOutput returns one page of display rows.
type SummarizeByOutput struct {
	DatasetID string     `json:"dataset_id"`
	Keys      []string   `json:"keys"`
	Headers   []string   `json:"headers"`
	Rows      [][]string `json:"rows" jsonschema_description:"Key values then metric values at display precision"`
	Totals    []string   `json:"totals" jsonschema_description:"Column totals over all pages for count and sum metrics"`
	Excluded  int        `json:"excluded" jsonschema_description:"Rows dropped for a null grouping key"`
	Meta      PageMeta   `json:"meta"`
}

// PivotInput builds a row × column projection of one metric.
type PivotInput struct {
	DatasetID string `json:"dataset_id" validate:"required" jsonschema_description:"Dataset handle ID"`
	RowKey    string `json:"row_key,omitempty" jsonschema_description:"Row dimension; default publisher_id"`
	ColKey    string `json:"col_key,omitempty" jsonschema_description:"Column dimension; default date"`
	Metric    string `json:"metric,omitempty" validate:"omitempty,metric" jsonschema_description:"Metric per cell; default count"`
}

// TableOutput is a rendered report table.
type TableOutput struct {
	Name    string     `json:"name"`
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

// PivotOutput returns the dense pivot with its TOTAL column.
type PivotOutput struct {
	DatasetID string      `json:"dataset_id"`
	Table     TableOutput `json:"table"`
	Excluded  int         `json:"excluded"`
	Meta      PageMeta    `json:"meta"`
}

// DateTabsInput selects the per-date tabs.
type DateTabsInput struct {
	DatasetID string `json:"dataset_id" validate:"required" jsonschema_description:"Dataset handle ID"`
	Date      string `json:"date,omitempty" jsonschema_description:"Return only this date (YYYY-MM-DD)"`
}

// DateTabsOutput returns one tab per date.
type DateTabsOutput struct {
	DatasetID string              `json:"dataset_id"`
	Totals    dashboard.Totals    `json:"totals"`
	Tabs      []dashboard.DateTab `json:"tabs"`
}

// PublisherOverviewOutput returns the all-dates publisher summary.
type PublisherOverviewOutput struct {
	DatasetID  string                   `json:"dataset_id"`
	Totals     dashboard.Totals         `json:"totals"`
	Publishers []dashboard.PublisherRow `json:"publishers"`
}

// MonitorReportOutput returns the monitor-scoped tables.
type MonitorReportOutput struct {
	DatasetID  string       `json:"dataset_id"`
	Monitors   TableOutput  `json:"monitors"`
	Publishers *TableOutput `json:"publishers,omitempty" jsonschema_description:"Present when numero_total exists"`
}

// WriteReportInput exports the full report workbook.
type WriteReportInput struct {
	DatasetID  string `json:"dataset_id" validate:"required" jsonschema_description:"Dataset handle ID"`
	OutputPath string `json:"output_path" validate:"required,xlsx_ext" jsonschema_description:"Destination .xlsx inside an allowed directory"`
}

// WriteReportOutput describes the written workbook.
type WriteReportOutput struct {
	Path   string   `json:"path"`
	Sheets []string `json:"sheets"`
}

func tableOutput(t dashboard.Table) TableOutput {
	return TableOutput{Name: t.Name, Headers: t.Headers, Rows: t.Strings()}
}
