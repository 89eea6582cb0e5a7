package mcpserver

import "github.com/mark3labs/mcp-go/mcp"

// Tool definitions for the fraud guardian MCP server.
// Descriptions are what the LLM reads to decide which tool to use.

var ToolAnalyzeTransaction = mcp.NewTool("analyze_transaction",
	mcp.WithDescription(
		"Score a bank transaction for fraud risk before it posts to the ledger. "+
			"Returns the composite risk score, per-analyzer signals, and the allow/block decision. "+
			"Blocked transactions are rejected and never reach the ledger."),
	mcp.WithString("from_account",
		mcp.Required(),
		mcp.Description("Sending account number (10 digits)")),
	mcp.WithString("to_account",
		mcp.Required(),
		mcp.Description("Receiving account number (10 digits)")),
	mcp.WithNumber("amount",
		mcp.Required(),
		mcp.Description("Transaction amount in dollars (must be positive)")),
	mcp.WithString("description",
		mcp.Description("Optional free-text description of the transaction")),
)

var ToolGetFraudStats = mcp.NewTool("get_fraud_stats",
	mcp.WithDescription(
		"Get fraud guardian service statistics: transactions processed, flagged, and blocked, "+
			"the current fraud rate, decision thresholds, and whether the AI pattern analyzer "+
			"is active or running degraded."),
)

var ToolListAssessments = mcp.NewTool("list_assessments",
	mcp.WithDescription(
		"List recorded fraud assessments for an account, most recent first. "+
			"Each assessment shows the score, decision, and the signals that drove it."),
	mcp.WithString("account_num",
		mcp.Required(),
		mcp.Description("The account number to look up (10 digits)")),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of assessments to return (default 20, max 100)")),
)
