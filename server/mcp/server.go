package mcp

import (
	"fmt"

	"github.com/kasuganosora/joinorder/pkg/api"
	"github.com/kasuganosora/joinorder/pkg/config"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// Version is reported to MCP clients
const Version = "1.0.0"

// Server is the MCP protocol server
type Server struct {
	cfg    *config.MCPConfig
	logger api.Logger
	mcp    *mcpserver.MCPServer
}

// NewServer creates a new MCP server with the join order tools registered
func NewServer(optimizer *api.Optimizer, cfg *config.MCPConfig) *Server {
	if cfg == nil {
		cfg = &config.DefaultConfig().MCP
	}
	logger := optimizer.GetLogger()

	deps := &ToolDeps{
		Optimizer: optimizer,
		Logger:    logger,
	}

	mcpSrv := mcpserver.NewMCPServer(
		"joinorder",
		Version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithRecovery(),
	)

	optimizeTool := mcp.NewTool("optimize_join_order",
		mcp.WithDescription("Compute a left-deep join order with the IKKBZ algorithm. The graph is a JSON object with relations (label, cardinality) and joins (left, right, selectivity, optional direction)."),
		mcp.WithString("graph", mcp.Description("The join graph as JSON"), mcp.Required()),
		mcp.WithString("root", mcp.Description("Optional root relation; all relations are tried when omitted")),
		mcp.WithString("format", mcp.Description("Output format"), mcp.Enum("json", "text")),
	)

	explainTool := mcp.NewTool("explain_join_order",
		mcp.WithDescription("Extract the join graph of a SELECT statement and explain the chosen join order"),
		mcp.WithString("sql", mcp.Description("The SELECT statement"), mcp.Required()),
	)

	mcpSrv.AddTool(optimizeTool, deps.HandleOptimize)
	mcpSrv.AddTool(explainTool, deps.HandleExplain)

	return &Server{
		cfg:    cfg,
		logger: logger,
		mcp:    mcpSrv,
	}
}

// MCPServer returns the underlying mcp-go server
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcp
}

// Start serves on the configured transport (blocking)
func (s *Server) Start() error {
	switch s.cfg.Transport {
	case "", "stdio":
		s.logger.Info("[MCP] 启动 MCP 服务器: stdio")
		return mcpserver.ServeStdio(s.mcp)
	case "http":
		addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
		httpServer := mcpserver.NewStreamableHTTPServer(
			s.mcp,
			mcpserver.WithEndpointPath("/mcp"),
		)
		s.logger.Info("[MCP] 启动 MCP 服务器: %s", addr)
		return httpServer.Start(addr)
	default:
		return fmt.Errorf("不支持的 MCP 传输方式: %s", s.cfg.Transport)
	}
}
