// Package gemini scores transaction patterns with the Gemini generative
// model over its REST API.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/samarthmishra46/anthos-fraud-guardian/internal/fraud"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

	// Model parameters. Low temperature keeps verdicts stable across
	// identical transactions.
	temperature     = 0.1
	maxOutputTokens = 1024

	// historyPromptLimit bounds how many prior transactions go into the
	// prompt regardless of window size.
	historyPromptLimit = 10
)

// Verdict scores by keyword class. Any response that names none of the
// keywords reads as benign.
const (
	scoreFraud   = 0.8
	scoreCaution = 0.4
	scoreBenign  = 0.1
)

// Client calls the Gemini generateContent endpoint.
// It implements fraud.PatternScorer.
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// Option configures the client.
type Option func(*Client)

// WithBaseURL overrides the API base URL, used in tests.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a Gemini pattern scorer.
func New(apiKey, model string, opts ...Option) *Client {
	c := &Client{
		apiKey:  apiKey,
		model:   model,
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second, // Per-call deadline comes from ctx
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Request/response wire types for generateContent.

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ScorePattern asks the model for a fraud verdict on the transaction in
// the context of recent account activity. The returned score comes from
// keyword classification of the model's verdict, not from any number the
// model emits.
func (c *Client) ScorePattern(ctx context.Context, tx *fraud.Transaction, history fraud.HistoryWindow) (fraud.SignalResult, error) {
	prompt := buildPrompt(tx, history)

	reqBody := generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
		GenerationConfig: generationConfig{
			Temperature:     temperature,
			MaxOutputTokens: maxOutputTokens,
		},
	}
	data, err := json.Marshal(reqBody)
	if err != nil {
		return fraud.SignalResult{}, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fraud.SignalResult{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fraud.SignalResult{}, fmt.Errorf("gemini request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fraud.SignalResult{}, fmt.Errorf("read response: %w", err)
	}

	var gr generateResponse
	if err := json.Unmarshal(body, &gr); err != nil {
		return fraud.SignalResult{}, fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if gr.Error != nil {
			return fraud.SignalResult{}, fmt.Errorf("gemini API error (%d): %s", resp.StatusCode, gr.Error.Message)
		}
		return fraud.SignalResult{}, fmt.Errorf("gemini API returned %d", resp.StatusCode)
	}
	if len(gr.Candidates) == 0 || len(gr.Candidates[0].Content.Parts) == 0 {
		return fraud.SignalResult{}, fmt.Errorf("gemini returned no candidates")
	}

	verdict := gr.Candidates[0].Content.Parts[0].Text
	return classify(verdict), nil
}

// buildPrompt renders the transaction and recent activity for the model.
func buildPrompt(tx *fraud.Transaction, history fraud.HistoryWindow) string {
	var b strings.Builder
	b.WriteString("You are a fraud analyst for a retail bank. Assess the transaction below.\n")
	b.WriteString("Respond with a one-word verdict first: FRAUD, SUSPICIOUS, CAUTION, UNUSUAL, or NORMAL. Then briefly explain.\n\n")
	fmt.Fprintf(&b, "Transaction: $%.2f from account %s to account %s at %s\n",
		tx.Amount, tx.FromAccountNum, tx.ToAccountNum, tx.Timestamp.Format(time.RFC3339))
	if tx.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", tx.Description)
	}

	if len(history) == 0 {
		b.WriteString("\nNo prior transaction history is available for this account.\n")
		return b.String()
	}

	b.WriteString("\nRecent account activity (most recent first):\n")
	for i, e := range history {
		if i >= historyPromptLimit {
			break
		}
		fmt.Fprintf(&b, "- $%.2f at %s", e.Amount, e.Timestamp.Format(time.RFC3339))
		if e.Description != "" {
			fmt.Fprintf(&b, " (%s)", e.Description)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// classify maps the model's free-text verdict to a signal. Keyword match
// is case-insensitive over the whole response so a verdict buried in the
// explanation still counts.
func classify(verdict string) fraud.SignalResult {
	upper := strings.ToUpper(verdict)
	reason := firstLine(verdict)

	switch {
	case strings.Contains(upper, "FRAUD") || strings.Contains(upper, "SUSPICIOUS"):
		return fraud.SignalResult{
			Analyzer:   fraud.AnalyzerPattern,
			Score:      scoreFraud,
			Suspicious: true,
			Reason:     reason,
			Confidence: 1,
		}
	case strings.Contains(upper, "CAUTION") || strings.Contains(upper, "UNUSUAL"):
		return fraud.SignalResult{
			Analyzer:   fraud.AnalyzerPattern,
			Score:      scoreCaution,
			Suspicious: true,
			Reason:     reason,
			Confidence: 1,
		}
	default:
		return fraud.SignalResult{
			Analyzer:   fraud.AnalyzerPattern,
			Score:      scoreBenign,
			Suspicious: false,
			Reason:     reason,
			Confidence: 1,
		}
	}
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	const maxReason = 200
	if len(s) > maxReason {
		s = s[:maxReason]
	}
	return s
}
