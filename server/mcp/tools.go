package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kasuganosora/joinorder/pkg/api"
	"github.com/mark3labs/mcp-go/mcp"
)

// ToolDeps holds shared dependencies for MCP tool handlers
type ToolDeps struct {
	Optimizer *api.Optimizer
	Logger    api.Logger
}

// HandleOptimize plans a join order for a graph given as JSON
func (d *ToolDeps) HandleOptimize(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	graph := request.GetString("graph", "")
	if graph == "" {
		return mcp.NewToolResultError("graph parameter is required"), nil
	}

	start := time.Now()
	q, err := api.DecodeQuery([]byte(graph), "json")
	if err != nil {
		d.logToolCall("optimize_join_order", time.Since(start), err)
		return mcp.NewToolResultError(fmt.Sprintf("invalid graph: %v", err)), nil
	}
	if root := request.GetString("root", ""); root != "" {
		q.Root = root
	}

	res, err := d.Optimizer.Optimize(ctx, q)
	d.logToolCall("optimize_join_order", time.Since(start), err)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("optimize failed: %v", err)), nil
	}

	if request.GetString("format", "json") == "text" {
		return mcp.NewToolResultText(api.FormatResult(res)), nil
	}
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// HandleExplain explains the join order of a SELECT statement
func (d *ToolDeps) HandleExplain(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sql := request.GetString("sql", "")
	if sql == "" {
		return mcp.NewToolResultError("sql parameter is required"), nil
	}

	start := time.Now()
	out, err := d.Optimizer.ExplainSQL(ctx, sql)
	d.logToolCall("explain_join_order", time.Since(start), err)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("explain failed: %v", err)), nil
	}
	return mcp.NewToolResultText(out), nil
}

func (d *ToolDeps) logToolCall(tool string, elapsed time.Duration, err error) {
	if d.Logger == nil {
		return
	}
	if err != nil {
		d.Logger.Warn("[MCP] %s failed after %dms: %v", tool, elapsed.Milliseconds(), err)
		return
	}
	d.Logger.Debug("[MCP] %s finished in %dms", tool, elapsed.Milliseconds())
}
