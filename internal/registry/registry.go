package registry

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/tmc/langchaingo/llms"

	"github.com/vinodismyname/mcpreports/config"
)

const truncatedMarker = "… (truncated)"

// Registry maintains tool definitions and the token budget applied to the
// text summaries tools return next to their structured output.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]mcp.Tool
	model  string
	budget int
	count  func(model, text string) int
}

// New constructs an empty Registry ready for tool population.
func New() *Registry {
	return &Registry{
		tools:  map[string]mcp.Tool{},
		model:  config.DefaultSummaryModel,
		budget: config.DefaultSummaryTokens,
		count:  llms.CountTokens,
	}
}

// WithSummaryBudget sets the tokenizer model and token budget for text summaries.
func (r *Registry) WithSummaryBudget(model string, tokens int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if model != "" {
		r.model = model
	}
	if tokens > 0 {
		r.budget = tokens
	}
}

// Register stores a tool definition for discovery.
func (r *Registry) Register(tool mcp.Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tools[tool.Name] = tool
}

// Get returns a tool by name when present.
func (r *Registry) Get(name string) (mcp.Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Tools returns a stable-sorted list of registered tool definitions.
func (r *Registry) Tools(ctx context.Context) ([]mcp.Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]mcp.Tool, 0, len(r.tools))
	for _, tool := range r.tools {
		tools = append(tools, tool)
	}

	sort.Slice(tools, func(i, j int) bool {
		return tools[i].Name < tools[j].Name
	})

	return tools, nil
}

// ModelContextSize exposes the configured model's context window when available.
func (r *Registry) ModelContextSize(modelName string) int {
	return llms.GetModelContextSize(modelName)
}

// Bound trims lines from the end of text until it fits the token budget.
// The first line is always kept.
func (r *Registry) Bound(text string) string {
	r.mu.RLock()
	model, budget, count := r.model, r.budget, r.count
	r.mu.RUnlock()

	if count(model, text) <= budget {
		return text
	}
	lines := strings.Split(text, "\n")
	for n := len(lines) - 1; n > 1; n-- {
		out := strings.Join(lines[:n], "\n") + "\n" + truncatedMarker
		if count(model, out) <= budget {
			return out
		}
	}
	return lines[0] + "\n" + truncatedMarker
}
