// Package history fetches recent account activity from the transaction
// history service.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/samarthmishra46/anthos-fraud-guardian/internal/auth"
	"github.com/samarthmishra46/anthos-fraud-guardian/internal/fraud"
)

// Client is a pure HTTP client for the transaction history service.
// It implements fraud.HistoryFetcher.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a history client for the given service address.
// addr may be a bare host:port or a full URL.
func New(addr string, timeout time.Duration) *Client {
	if !strings.HasPrefix(addr, "http://") && !strings.HasPrefix(addr, "https://") {
		addr = "http://" + addr
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(addr, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// historyEntry matches the wire format of the history service. Amounts may
// arrive as JSON numbers or strings depending on the service version.
type historyEntry struct {
	Amount      json.Number `json:"amount"`
	Description string      `json:"description"`
	Timestamp   time.Time   `json:"timestamp"`
}

// FetchHistory returns the recent transactions for an account, most recent
// first. The caller treats failures as "no history"; fetch errors must not
// block transaction analysis.
func (c *Client) FetchHistory(ctx context.Context, accountNum string, limit int) (fraud.HistoryWindow, error) {
	url := fmt.Sprintf("%s/transactions/%s", c.baseURL, accountNum)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if token, ok := auth.TokenFromContext(ctx); ok {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("history request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("history service returned %d: %s", resp.StatusCode, string(body))
	}

	var entries []historyEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}

	window := make(fraud.HistoryWindow, 0, len(entries))
	for i, e := range entries {
		if limit > 0 && i >= limit {
			break
		}
		amount, err := e.Amount.Float64()
		if err != nil {
			continue // Skip malformed entries rather than failing the window
		}
		window = append(window, fraud.HistoryEntry{
			Amount:      amount,
			Description: e.Description,
			Timestamp:   e.Timestamp,
		})
	}

	return window, nil
}
