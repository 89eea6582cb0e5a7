package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer creates a configured MCP server with all fraud guardian tools registered.
func NewMCPServer(cfg Config) *server.MCPServer {
	s := server.NewMCPServer("fraud-guardian", "1.0.0")
	client := NewGuardianClient(cfg)
	h := NewHandlers(client)

	s.AddTool(ToolAnalyzeTransaction, h.HandleAnalyzeTransaction)
	s.AddTool(ToolGetFraudStats, h.HandleGetFraudStats)
	s.AddTool(ToolListAssessments, h.HandleListAssessments)

	return s
}
