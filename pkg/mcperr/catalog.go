package mcperr

import (
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// Code defines a canonical MCP error code used across tools.
type Code string

const (
	// Validation & Input
	Validation        Code = "VALIDATION"
	InvalidHandle     Code = "INVALID_HANDLE"
	InvalidSheet      Code = "INVALID_SHEET"
	CursorInvalid     Code = "CURSOR_INVALID"
	CursorBuildFailed Code = "CURSOR_BUILD_FAILED"

	// Data
	SchemaMismatch Code = "SCHEMA_MISMATCH"
	TypeCoercion   Code = "TYPE_COERCION"
	EmptyPartition Code = "EMPTY_PARTITION"
	UnknownMetric  Code = "UNKNOWN_METRIC"

	// Resource & Limits
	BusyResource    Code = "BUSY_RESOURCE"
	Timeout         Code = "TIMEOUT"
	LimitExceeded   Code = "LIMIT_EXCEEDED"
	PayloadTooLarge Code = "PAYLOAD_TOO_LARGE"
	FileTooLarge    Code = "FILE_TOO_LARGE"

	// IO & Formats
	NotFound       Code = "NOT_FOUND"
	OpenFailed     Code = "OPEN_FAILED"
	WriteFailed    Code = "WRITE_FAILED"
	AnalysisFailed Code = "ANALYSIS_FAILED"

	// Integrity
	CorruptFile       Code = "CORRUPT_FILE"
	UnsupportedFormat Code = "UNSUPPORTED_FORMAT"
	PermissionDenied  Code = "PERMISSION_DENIED"
)

// Entry documents a code's standard message, retry semantics, and next steps.
type Entry struct {
	Code      Code
	Message   string
	Retryable bool
	NextSteps []string
}

// catalog maps canonical codes to guidance. Messages can be overridden per error.
var catalog = map[Code]Entry{
	Validation:        {Code: Validation, Message: "invalid inputs", Retryable: true, NextSteps: []string{"Correct the inputs per schema and retry", "See examples in tool description"}},
	InvalidHandle:     {Code: InvalidHandle, Message: "dataset handle not found or expired", Retryable: true, NextSteps: []string{"Reopen the dataset via open_dataset and retry"}},
	InvalidSheet:      {Code: InvalidSheet, Message: "sheet not found", Retryable: true, NextSteps: []string{"Omit sheet to read the first worksheet", "Check case and spacing"}},
	CursorInvalid:     {Code: CursorInvalid, Message: "cursor is invalid for current context", Retryable: true, NextSteps: []string{"Restart pagination from the first page", "Reissue the query with the same dataset and grouping"}},
	CursorBuildFailed: {Code: CursorBuildFailed, Message: "failed to encode next page cursor", Retryable: true, NextSteps: []string{"Retry or lower page_size"}},

	SchemaMismatch: {Code: SchemaMismatch, Message: "required columns are missing", Retryable: false, NextSteps: []string{"Call validate_schema to list missing columns", "Rename source headers or pass aliases"}},
	TypeCoercion:   {Code: TypeCoercion, Message: "a cell could not be read as its column type", Retryable: false, NextSteps: []string{"Fix the reported cell in the source file", "Check date and number formats"}},
	EmptyPartition: {Code: EmptyPartition, Message: "metric is undefined for an empty group", Retryable: false, NextSteps: []string{"Use count or sum for sparse groupings", "Filter out groups without values"}},
	UnknownMetric:  {Code: UnknownMetric, Message: "unknown metric", Retryable: true, NextSteps: []string{"Use count, count(field), sum(field), mean(field) or distinct(field)"}},

	BusyResource:    {Code: BusyResource, Message: "concurrent request limit reached", Retryable: true, NextSteps: []string{"Retry after a short delay"}},
	Timeout:         {Code: Timeout, Message: "operation exceeded configured time limit", Retryable: true, NextSteps: []string{"Use a smaller file or increase the timeout"}},
	LimitExceeded:   {Code: LimitExceeded, Message: "operation exceeded configured limits", Retryable: true, NextSteps: []string{"Close unused datasets via close_dataset", "Lower page_size"}},
	PayloadTooLarge: {Code: PayloadTooLarge, Message: "payload exceeds configured size", Retryable: true, NextSteps: []string{"Lower page_size or request fewer rows"}},
	FileTooLarge:    {Code: FileTooLarge, Message: "file exceeds configured row limit", Retryable: false, NextSteps: []string{"Use a smaller file or increase MCPREPORTS_MAX_ROWS"}},

	NotFound:       {Code: NotFound, Message: "file not found", Retryable: true, NextSteps: []string{"Provide a .dta, .csv or .xlsx file inside an allowed directory"}},
	OpenFailed:     {Code: OpenFailed, Message: "failed to open dataset", Retryable: true, NextSteps: []string{"Verify path, permissions, and format"}},
	WriteFailed:    {Code: WriteFailed, Message: "failed to write report workbook", Retryable: false, NextSteps: []string{"Verify the target directory exists and is writable"}},
	AnalysisFailed: {Code: AnalysisFailed, Message: "report computation failed", Retryable: true, NextSteps: []string{"Verify group keys and metrics", "Retry with fewer keys"}},

	CorruptFile:       {Code: CorruptFile, Message: "file appears corrupt or unreadable", Retryable: false, NextSteps: []string{"Re-export the file from its source", "Provide a clean copy"}},
	UnsupportedFormat: {Code: UnsupportedFormat, Message: "unsupported file format", Retryable: false, NextSteps: []string{"Convert to .xlsx, .csv or Stata 13+ .dta and retry"}},
	PermissionDenied:  {Code: PermissionDenied, Message: "insufficient permissions to access path", Retryable: false, NextSteps: []string{"Adjust permissions or choose an allowed directory"}},
}

// Lookup returns the catalog entry for code.
func Lookup(code Code) (Entry, bool) {
	e, ok := catalog[code]
	return e, ok
}

// normalize builds a standard error string including next steps for MCP clients that
// surface only a message string. Format: "CODE: message" followed by a guidance tail.
func normalize(code Code, msg string) string {
	base := strings.TrimSpace(msg)
	e, ok := catalog[code]
	if !ok {
		if base == "" {
			return string(code)
		}
		return fmt.Sprintf("%s: %s", string(code), base)
	}
	if base == "" {
		base = e.Message
	}
	guidance := ""
	if len(e.NextSteps) > 0 {
		guidance = " | nextSteps: " + strings.Join(e.NextSteps, "; ")
	}
	return fmt.Sprintf("%s: %s%s", e.Code, base, guidance)
}

// FromText parses a "CODE: message" string, enriches it with catalog guidance,
// and returns an MCP tool error result.
func FromText(text string) *mcp.CallToolResult {
	t := strings.TrimSpace(text)
	if t == "" {
		return mcp.NewToolResultError(normalize(Validation, ""))
	}
	parts := strings.SplitN(t, ":", 2)
	code := Code(strings.TrimSpace(parts[0]))
	msg := ""
	if len(parts) > 1 {
		msg = strings.TrimSpace(parts[1])
	}
	return mcp.NewToolResultError(normalize(code, msg))
}

// New returns an MCP error result for a given code and optional message override.
func New(code Code, message string) *mcp.CallToolResult {
	return mcp.NewToolResultError(normalize(code, message))
}

// Wrapf formats details and returns an MCP error result for the code.
func Wrapf(code Code, format string, args ...any) *mcp.CallToolResult {
	return mcp.NewToolResultError(normalize(code, fmt.Sprintf(format, args...)))
}
