package runtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
)

// Middleware bounds concurrent tool calls and applies the operation timeout.
type Middleware struct {
	ctrl *Controller
}

// NewMiddleware constructs a Middleware bound to the provided Controller.
func NewMiddleware(ctrl *Controller) *Middleware {
	return &Middleware{ctrl: ctrl}
}

// ToolMiddleware implements mcp-go's tool handler middleware interface.
// It acquires a request slot with a bounded wait, applies the timeout and
// always releases the slot.
func (m *Middleware) ToolMiddleware(next server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		log := zerolog.Ctx(ctx).With().Str("tool", req.Params.Name).Logger()
		limits := m.ctrl.limits

		acquireCtx := ctx
		if limits.AcquireRequestTimeout > 0 {
			var cancel context.CancelFunc
			acquireCtx, cancel = context.WithTimeout(ctx, limits.AcquireRequestTimeout)
			defer cancel()
		}
		if err := m.ctrl.AcquireRequest(acquireCtx); err != nil {
			log.Warn().Int("max_concurrent", limits.MaxConcurrentRequests).Msg("request rejected: busy")
			msg := fmt.Sprintf("BUSY_RESOURCE: concurrent request limit reached (max=%d). Please retry shortly.", limits.MaxConcurrentRequests)
			return mcp.NewToolResultError(msg), nil
		}
		defer m.ctrl.ReleaseRequest()

		callCtx := ctx
		cancel := func() {}
		if limits.OperationTimeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, limits.OperationTimeout)
		}
		defer cancel()

		start := time.Now()
		res, err := next(callCtx, req)
		elapsed := time.Since(start)

		if errors.Is(err, context.DeadlineExceeded) || (errors.Is(callCtx.Err(), context.DeadlineExceeded) && err == nil && res == nil) {
			log.Warn().Dur("elapsed", elapsed).Dur("timeout", limits.OperationTimeout).Msg("tool call timed out")
			return mcp.NewToolResultError(fmt.Sprintf("TIMEOUT: operation exceeded configured time limit (%s)", limits.OperationTimeout)), nil
		}
		log.Debug().Dur("elapsed", elapsed).Bool("is_error", res != nil && res.IsError).Msg("tool call finished")
		return res, err
	}
}
