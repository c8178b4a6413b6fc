package registry

import (
	"context"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/vinodismyname/mcpreports/config"
)

// WriteToolFilter conditionally hides tools that write files unless explicitly enabled.
// Enable by setting environment variable MCPREPORTS_ENABLE_WRITES=true.
type WriteToolFilter struct {
	allowWrites bool
}

// NewWriteToolFilter constructs a filter from the loaded configuration.
func NewWriteToolFilter(cfg *config.Config) *WriteToolFilter {
	return &WriteToolFilter{allowWrites: cfg != nil && cfg.EnableWrites}
}

// FilterTools implements server tool filtering semantics.
// When writes are disabled, tools prefixed write_ are excluded from discovery.
func (f *WriteToolFilter) FilterTools(ctx context.Context, tools []mcp.Tool) []mcp.Tool {
	if f.allowWrites {
		return tools
	}
	out := make([]mcp.Tool, 0, len(tools))
	for _, t := range tools {
		if isWriteTool(t.Name) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// Allows reports whether a call to the named tool may proceed.
func (f *WriteToolFilter) Allows(name string) bool {
	return f.allowWrites || !isWriteTool(name)
}

func isWriteTool(name string) bool {
	return strings.HasPrefix(strings.ToLower(name), "write_")
}
