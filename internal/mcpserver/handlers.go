package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// Handlers holds the handler functions for each MCP tool.
type Handlers struct {
	client *GuardianClient
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(client *GuardianClient) *Handlers {
	return &Handlers{client: client}
}

// HandleAnalyzeTransaction scores a transaction.
func (h *Handlers) HandleAnalyzeTransaction(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	fromAccount := req.GetString("from_account", "")
	if fromAccount == "" {
		return mcp.NewToolResultError("from_account is required"), nil
	}
	toAccount := req.GetString("to_account", "")
	if toAccount == "" {
		return mcp.NewToolResultError("to_account is required"), nil
	}
	amount := req.GetFloat("amount", 0)
	if amount <= 0 {
		return mcp.NewToolResultError("amount must be a positive number"), nil
	}
	description := req.GetString("description", "")

	raw, status, err := h.client.AnalyzeTransaction(ctx, fromAccount, toAccount, amount, description)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to analyze transaction: %v", err)), nil
	}

	text, err := formatAnalysis(raw, status)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse analysis: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// HandleGetFraudStats returns service statistics.
func (h *Handlers) HandleGetFraudStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := h.client.GetFraudStatus(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get fraud stats: %v", err)), nil
	}

	text, err := formatStats(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse stats: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// HandleListAssessments lists recorded assessments for an account.
func (h *Handlers) HandleListAssessments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	accountNum := req.GetString("account_num", "")
	if accountNum == "" {
		return mcp.NewToolResultError("account_num is required"), nil
	}
	limit := req.GetInt("limit", 20)

	raw, err := h.client.ListAssessments(ctx, accountNum, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list assessments: %v", err)), nil
	}

	text, err := formatAssessmentList(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse assessments: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// Formatting helpers. The API returns JSON; tools return readable text
// so the LLM does not have to re-parse structures.

func formatAnalysis(raw json.RawMessage, status int) (string, error) {
	var resp map[string]any
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", err
	}

	var sb strings.Builder
	switch {
	case status == http.StatusForbidden:
		sb.WriteString("Decision: BLOCKED\n")
	default:
		sb.WriteString("Decision: APPROVED\n")
	}

	analysis, _ := resp["analysis"].(map[string]any)
	if analysis != nil {
		if score, ok := getFloat(analysis, "fraudScore"); ok {
			sb.WriteString(fmt.Sprintf("Fraud score: %.3f", score))
			if threshold, ok := getFloat(analysis, "thresholdUsed"); ok {
				sb.WriteString(fmt.Sprintf(" (block threshold %.2f)", threshold))
			}
			sb.WriteString("\n")
		}
	}

	if reasons, ok := resp["reasons"].([]any); ok && len(reasons) > 0 {
		sb.WriteString("Reasons:\n")
		for _, r := range reasons {
			if s, ok := r.(string); ok {
				sb.WriteString("  - " + s + "\n")
			}
		}
	}

	if analysis != nil {
		if signals, ok := analysis["signals"].([]any); ok && len(signals) > 0 {
			sb.WriteString("\nSignals:\n")
			for _, s := range signals {
				sig, ok := s.(map[string]any)
				if !ok {
					continue
				}
				name := getString(sig, "analyzer")
				score, _ := getFloat(sig, "score")
				sb.WriteString(fmt.Sprintf("  %-10s %.3f", name, score))
				if reason := getString(sig, "reason"); reason != "" {
					sb.WriteString("  " + reason)
				}
				sb.WriteString("\n")
			}
		}
	}

	if msg := getString(resp, "message"); msg != "" {
		sb.WriteString("\n" + msg + "\n")
	}

	return sb.String(), nil
}

func formatStats(raw json.RawMessage) (string, error) {
	var resp map[string]any
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("Fraud Guardian Status:\n")

	if stats, ok := resp["statistics"].(map[string]any); ok {
		if v, ok := getFloat(stats, "totalProcessed"); ok {
			sb.WriteString(fmt.Sprintf("  Processed: %.0f\n", v))
		}
		if v, ok := getFloat(stats, "totalFlagged"); ok {
			sb.WriteString(fmt.Sprintf("  Flagged:   %.0f\n", v))
		}
		if v, ok := getFloat(stats, "totalBlocked"); ok {
			sb.WriteString(fmt.Sprintf("  Blocked:   %.0f\n", v))
		}
	}
	if v, ok := getFloat(resp, "fraudRatePercentage"); ok {
		sb.WriteString(fmt.Sprintf("  Fraud rate: %.2f%%\n", v))
	}
	if v, ok := getFloat(resp, "threshold"); ok {
		sb.WriteString(fmt.Sprintf("  Block threshold: %.2f\n", v))
	}
	if v, ok := getFloat(resp, "flagThreshold"); ok {
		sb.WriteString(fmt.Sprintf("  Flag threshold:  %.2f\n", v))
	}
	if v := getString(resp, "aiModelStatus"); v != "" {
		sb.WriteString(fmt.Sprintf("  AI analyzer: %s\n", v))
	}

	return sb.String(), nil
}

func formatAssessmentList(raw json.RawMessage) (string, error) {
	var resp struct {
		Assessments []map[string]any `json:"assessments"`
	}
	// Try as {"assessments": [...]}
	if err := json.Unmarshal(raw, &resp); err != nil || resp.Assessments == nil {
		// Try as direct array
		if err := json.Unmarshal(raw, &resp.Assessments); err != nil {
			return "", fmt.Errorf("unexpected assessments response format")
		}
	}

	if len(resp.Assessments) == 0 {
		return "No assessments recorded for this account.", nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d assessment(s), most recent first:\n\n", len(resp.Assessments)))
	for i, a := range resp.Assessments {
		score, _ := getFloat(a, "score")
		decision := getString(a, "decision")
		amount, _ := getFloat(a, "amount")
		sb.WriteString(fmt.Sprintf("%d. $%.2f scored %.3f (%s)", i+1, amount, score, strings.ToUpper(decision)))
		if ts := getString(a, "evaluatedAt", "timestamp"); ts != "" {
			sb.WriteString(" at " + ts)
		}
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

// getString extracts a string value from a map, trying multiple key names.
func getString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if s, ok := v.(string); ok {
				return s
			}
			if f, ok := v.(float64); ok {
				return fmt.Sprintf("%g", f)
			}
		}
	}
	return ""
}

// getFloat extracts a float64 value from a map, trying multiple key names.
func getFloat(m map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if f, ok := v.(float64); ok {
				return f, true
			}
		}
	}
	return 0, false
}
