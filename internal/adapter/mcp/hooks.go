package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/guillermoBallester/colscope/internal/core/port"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// inflight tracks one tool call between its before and after hooks.
type inflight struct {
	tool  string
	scope string
	start time.Time
	span  trace.Span
}

// ToolCallHooks logs every tool call and, when tracer or inst are set,
// records a span and the call duration.
func ToolCallHooks(logger *slog.Logger, tracer trace.Tracer, inst port.Instrumentation) *server.Hooks {
	if inst == nil {
		inst = port.NoopInstrumentation{}
	}

	hooks := &server.Hooks{}
	var calls sync.Map // request id -> *inflight

	finish := func(id any) *inflight {
		v, ok := calls.LoadAndDelete(id)
		if !ok {
			return nil
		}
		return v.(*inflight)
	}

	hooks.AddBeforeCallTool(func(ctx context.Context, id any, req *mcp.CallToolRequest) {
		call := &inflight{
			tool:  req.Params.Name,
			scope: callScope(req),
			start: time.Now(),
		}
		if tracer != nil {
			_, call.span = tracer.Start(ctx, "mcp.tool.call",
				trace.WithAttributes(
					attribute.String("mcp.tool", call.tool),
					attribute.String("colscope.scope", call.scope),
				),
			)
		}
		calls.Store(id, call)
	})

	hooks.AddAfterCallTool(func(ctx context.Context, id any, req *mcp.CallToolRequest, result any) {
		call := finish(id)
		if call == nil {
			return
		}
		elapsed := time.Since(call.start)

		failed := false
		if r, ok := result.(*mcp.CallToolResult); ok && r.IsError {
			failed = true
		}

		level := slog.LevelInfo
		if failed {
			level = slog.LevelWarn
		}
		logger.LogAttrs(ctx, level, "tool call",
			slog.String("mcp.tool", call.tool),
			slog.String("scope", call.scope),
			slog.Duration("duration", elapsed),
			slog.Bool("error", failed),
		)
		inst.RecordToolDuration(ctx, float64(elapsed.Milliseconds()))

		if call.span != nil {
			if failed {
				call.span.SetStatus(codes.Error, "tool returned error")
				call.span.RecordError(fmt.Errorf("tool %s returned error", call.tool))
			}
			call.span.End()
		}
	})

	hooks.AddOnError(func(ctx context.Context, id any, method mcp.MCPMethod, message any, err error) {
		call := finish(id)
		if call == nil {
			return
		}

		logger.LogAttrs(ctx, slog.LevelError, "tool call",
			slog.String("mcp.tool", call.tool),
			slog.String("scope", call.scope),
			slog.Duration("duration", time.Since(call.start)),
			slog.Bool("error", true),
			slog.String("error.message", err.Error()),
		)

		if call.span != nil {
			call.span.RecordError(err)
			call.span.SetStatus(codes.Error, err.Error())
			call.span.End()
		}
	})

	return hooks
}

// callScope names what a call works on: its table list, single table, or
// "default" when neither is given.
func callScope(req *mcp.CallToolRequest) string {
	args := req.GetArguments()
	if v, ok := args["tables"].(string); ok && v != "" {
		return v
	}
	if v, ok := args["table_name"].(string); ok && v != "" {
		return v
	}
	return "default"
}
