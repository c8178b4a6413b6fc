package mcperr

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/require"

	"github.com/vinodismyname/mcpreports/internal/dataset"
	"github.com/vinodismyname/mcpreports/internal/datasets"
	"github.com/vinodismyname/mcpreports/internal/loader"
	"github.com/vinodismyname/mcpreports/internal/report"
	"github.com/vinodismyname/mcpreports/internal/runtime"
	"github.com/vinodismyname/mcpreports/internal/security"
)

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.True(t, res.IsError)
	require.NotEmpty(t, res.Content)
	tc, ok := mcp.AsTextContent(res.Content[0])
	require.True(t, ok)
	return tc.Text
}

func TestNew_AppendsGuidance(t *testing.T) {
	got := text(t, New(SchemaMismatch, ""))
	require.True(t, strings.HasPrefix(got, "SCHEMA_MISMATCH: required columns are missing | nextSteps: "))

	got = text(t, Wrapf(InvalidHandle, "id %s", "abc"))
	require.True(t, strings.HasPrefix(got, "INVALID_HANDLE: id abc |"))
}

func TestFromText(t *testing.T) {
	require.True(t, strings.HasPrefix(text(t, FromText("TIMEOUT: took too long")), "TIMEOUT: took too long | nextSteps:"))
	require.Equal(t, "CUSTOM: detail", text(t, FromText("CUSTOM: detail")))
	require.True(t, strings.HasPrefix(text(t, FromText("  ")), "VALIDATION: invalid inputs"))
}

func TestCodeOf(t *testing.T) {
	cases := []struct {
		err  error
		want Code
	}{
		{fmt.Errorf("load: %w", &dataset.SchemaError{Missing: []string{"date"}}), SchemaMismatch},
		{&dataset.TypeCoercionError{Column: "date", Row: 2}, TypeCoercion},
		{&report.EmptyPartitionError{Metric: "mean(duration_minutes)"}, EmptyPartition},
		{fmt.Errorf("%w: median", report.ErrUnknownMetric), UnknownMetric},
		{report.ErrNoGroupKeys, Validation},
		{datasets.ErrHandleNotFound, InvalidHandle},
		{runtime.ErrDatasetCapacity, LimitExceeded},
		{context.DeadlineExceeded, Timeout},
		{security.ErrNotAllowed, PermissionDenied},
		{security.ErrUnsupportedExtension, UnsupportedFormat},
		{security.ErrNotFound, NotFound},
		{&loader.LoadError{Kind: loader.NotFound, Err: loader.ErrSheetNotFound}, InvalidSheet},
		{&loader.LoadError{Kind: loader.NotFound}, NotFound},
		{&loader.LoadError{Kind: loader.Unsupported}, UnsupportedFormat},
		{&loader.LoadError{Kind: loader.TooLarge}, FileTooLarge},
		{&loader.LoadError{Kind: loader.Corrupt}, CorruptFile},
		{fmt.Errorf("boom"), AnalysisFailed},
	}
	for _, c := range cases {
		require.Equal(t, c.want, CodeOf(c.err, AnalysisFailed), c.err.Error())
	}
	require.Equal(t, Code(""), CodeOf(nil, AnalysisFailed))
}

func TestFromError_KeepsDetail(t *testing.T) {
	got := text(t, FromError(&dataset.SchemaError{Missing: []string{"date", "duration_minutes"}}, OpenFailed))
	require.Contains(t, got, "SCHEMA_MISMATCH: dataset: missing required columns: date, duration_minutes")
}

func TestCatalogEntriesAreComplete(t *testing.T) {
	for code, e := range catalog {
		require.Equal(t, code, e.Code)
		require.NotEmpty(t, e.Message, code)
		require.NotEmpty(t, e.NextSteps, code)
	}
	_, ok := Lookup(EmptyPartition)
	require.True(t, ok)
}
