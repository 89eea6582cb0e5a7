package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Config holds the configuration for connecting to the fraud guardian API.
type Config struct {
	APIURL    string // Base URL, e.g. "http://localhost:8080"
	AuthToken string // Bearer token forwarded to the API
}

// GuardianClient is a pure HTTP client for the fraud guardian API.
type GuardianClient struct {
	cfg        Config
	httpClient *http.Client
}

// NewGuardianClient creates a new client for the fraud guardian API.
func NewGuardianClient(cfg Config) *GuardianClient {
	return &GuardianClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// apiError represents an error response from the API.
type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// doRequest makes an HTTP request to the API and returns the response body.
// A 403 from the analyze endpoint is a block decision, not a failure, so
// callers get the body back alongside the status code.
func (c *GuardianClient) doRequest(ctx context.Context, method, path string, query url.Values, body any) (json.RawMessage, int, error) {
	u, err := url.Parse(c.cfg.APIURL + path)
	if err != nil {
		return nil, 0, fmt.Errorf("invalid URL: %w", err)
	}
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, 0, fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}

	if c.cfg.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.AuthToken)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusForbidden {
		return json.RawMessage(respBody), resp.StatusCode, nil
	}
	if resp.StatusCode >= 400 {
		var apiErr apiError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Message != "" {
			return nil, resp.StatusCode, fmt.Errorf("API error (%d): %s", resp.StatusCode, apiErr.Message)
		}
		return nil, resp.StatusCode, fmt.Errorf("API error (%d): %s", resp.StatusCode, string(respBody))
	}

	return json.RawMessage(respBody), resp.StatusCode, nil
}

// AnalyzeTransaction submits a transaction for fraud scoring.
func (c *GuardianClient) AnalyzeTransaction(ctx context.Context, fromAccount, toAccount string, amount float64, description string) (json.RawMessage, int, error) {
	payload := map[string]any{
		"fromAccountNum": fromAccount,
		"toAccountNum":   toAccount,
		"amount":         amount,
	}
	if description != "" {
		payload["description"] = description
	}
	return c.doRequest(ctx, http.MethodPost, "/analyze-transaction", nil, payload)
}

// GetFraudStatus returns service statistics and thresholds.
func (c *GuardianClient) GetFraudStatus(ctx context.Context) (json.RawMessage, error) {
	raw, _, err := c.doRequest(ctx, http.MethodGet, "/fraud-status", nil, nil)
	return raw, err
}

// ListAssessments returns recorded assessments for an account.
func (c *GuardianClient) ListAssessments(ctx context.Context, accountNum string, limit int) (json.RawMessage, error) {
	q := url.Values{}
	q.Set("account", accountNum)
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	raw, _, err := c.doRequest(ctx, http.MethodGet, "/assessments", q, nil)
	return raw, err
}
