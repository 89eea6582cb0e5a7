// Fraud Guardian MCP Server - exposes fraud scoring as MCP tools for LLMs
package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/samarthmishra46/anthos-fraud-guardian/internal/mcpserver"
)

func main() {
	cfg := mcpserver.Config{
		APIURL:    envOrDefault("FRAUD_GUARDIAN_API_URL", "http://localhost:8080"),
		AuthToken: os.Getenv("FRAUD_GUARDIAN_AUTH_TOKEN"),
	}

	if cfg.AuthToken == "" {
		fmt.Fprintln(os.Stderr, "FRAUD_GUARDIAN_AUTH_TOKEN is required")
		os.Exit(1)
	}

	s := mcpserver.NewMCPServer(cfg)
	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "MCP server error: %v\n", err)
		os.Exit(1)
	}
}

func envOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
