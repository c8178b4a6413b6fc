package mcperr

import (
	"context"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/vinodismyname/mcpreports/internal/dataset"
	"github.com/vinodismyname/mcpreports/internal/datasets"
	"github.com/vinodismyname/mcpreports/internal/loader"
	"github.com/vinodismyname/mcpreports/internal/report"
	"github.com/vinodismyname/mcpreports/internal/runtime"
	"github.com/vinodismyname/mcpreports/internal/security"
)

// CodeOf classifies err by the typed and sentinel errors of the load and
// report packages. fallback is used when nothing matches.
func CodeOf(err error, fallback Code) Code {
	var (
		se *dataset.SchemaError
		te *dataset.TypeCoercionError
		pe *report.EmptyPartitionError
		le *loader.LoadError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &se):
		return SchemaMismatch
	case errors.As(err, &te):
		return TypeCoercion
	case errors.As(err, &pe):
		return EmptyPartition
	case errors.Is(err, report.ErrUnknownMetric):
		return UnknownMetric
	case errors.Is(err, report.ErrNoGroupKeys):
		return Validation
	case errors.Is(err, datasets.ErrHandleNotFound):
		return InvalidHandle
	case errors.Is(err, runtime.ErrDatasetCapacity):
		return LimitExceeded
	case errors.Is(err, context.DeadlineExceeded):
		return Timeout
	case errors.Is(err, security.ErrNotAllowed):
		return PermissionDenied
	case errors.Is(err, security.ErrUnsupportedExtension):
		return UnsupportedFormat
	case errors.Is(err, security.ErrNotFound):
		return NotFound
	case errors.Is(err, loader.ErrSheetNotFound):
		return InvalidSheet
	case errors.As(err, &le):
		switch le.Kind {
		case loader.NotFound:
			return NotFound
		case loader.Unsupported:
			return UnsupportedFormat
		case loader.TooLarge:
			return FileTooLarge
		}
		return CorruptFile
	}
	return fallback
}

// FromError maps err to a tool error result, keeping err's message as the
// detail.
func FromError(err error, fallback Code) *mcp.CallToolResult {
	return New(CodeOf(err, fallback), err.Error())
}
