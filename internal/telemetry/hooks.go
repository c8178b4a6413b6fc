package telemetry

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
)

// ToolStats counts calls and failed results for one tool.
type ToolStats struct {
	Calls  int `json:"calls"`
	Errors int `json:"errors"`
}

// Hooks logs MCP lifecycle events and keeps per-tool call counts.
type Hooks struct {
	logger zerolog.Logger
	now    func() time.Time

	mu      sync.Mutex
	started map[any]time.Time
	tools   map[string]ToolStats
}

// NewHooks constructs a Hooks instance with the provided logger.
func NewHooks(logger zerolog.Logger) *Hooks {
	return &Hooks{
		logger:  logger,
		now:     time.Now,
		started: make(map[any]time.Time),
		tools:   make(map[string]ToolStats),
	}
}

// Server registers the callbacks on a fresh mcp-go hook set.
func (h *Hooks) Server() *server.Hooks {
	hooks := &server.Hooks{}

	hooks.AddOnRegisterSession(func(ctx context.Context, session server.ClientSession) {
		h.logger.Info().Str("session_id", session.SessionID()).Msg("session registered")
	})
	hooks.AddOnUnregisterSession(func(ctx context.Context, session server.ClientSession) {
		h.logger.Info().Str("session_id", session.SessionID()).Msg("session unregistered")
	})
	hooks.AddAfterListTools(func(ctx context.Context, id any, req *mcp.ListToolsRequest, res *mcp.ListToolsResult) {
		h.logger.Info().Int("tools", len(res.Tools)).Msg("list_tools served")
	})
	hooks.AddBeforeCallTool(h.beforeCall)
	hooks.AddAfterCallTool(h.afterCall)
	hooks.AddOnError(func(ctx context.Context, id any, method mcp.MCPMethod, message any, err error) {
		h.logger.Error().Str("method", string(method)).Err(err).Msg("request error")
	})
	return hooks
}

func (h *Hooks) beforeCall(ctx context.Context, id any, req *mcp.CallToolRequest) {
	if id == nil {
		return
	}
	h.mu.Lock()
	h.started[id] = h.now()
	h.mu.Unlock()
}

func (h *Hooks) afterCall(ctx context.Context, id any, req *mcp.CallToolRequest, res *mcp.CallToolResult) {
	failed := res != nil && res.IsError

	h.mu.Lock()
	st := h.tools[req.Params.Name]
	st.Calls++
	if failed {
		st.Errors++
	}
	h.tools[req.Params.Name] = st
	start, ok := h.started[id]
	delete(h.started, id)
	h.mu.Unlock()

	evt := h.logger.Info()
	if failed {
		evt = h.logger.Warn()
	}
	evt = evt.Str("tool", req.Params.Name).Bool("is_error", failed)
	if ok {
		evt = evt.Dur("elapsed", h.now().Sub(start))
	}
	evt.Msg("tool call served")
}

// Snapshot returns a copy of the per-tool counters.
func (h *Hooks) Snapshot() map[string]ToolStats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return maps.Clone(h.tools)
}

// LogSummary writes the per-tool counters at info level.
func (h *Hooks) LogSummary() {
	d := zerolog.Dict()
	for name, st := range h.Snapshot() {
		d = d.Dict(name, zerolog.Dict().Int("calls", st.Calls).Int("errors", st.Errors))
	}
	h.logger.Info().Dict("tools", d).Msg("tool call summary")
}
