// Package ledgerwriter forwards approved transactions to the bank ledger
// writer service.
package ledgerwriter

import (
	"bytes"
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

// Client is a pure HTTP client for the ledger writer service.
// It implements fraud.LedgerForwarder.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a ledger writer client for the given service address.
// addr may be a bare host:port or a full URL.
func New(addr string, timeout time.Duration) *Client {
	if !strings.HasPrefix(addr, "http://") && !strings.HasPrefix(addr, "https://") {
		addr = "http://" + addr
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(addr, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// submitRequest is the ledger writer wire format, annotated with the
// composite fraud score so downstream audit has the full picture.
type submitRequest struct {
	UUID           string    `json:"uuid,omitempty"`
	FromAccountNum string    `json:"fromAccountNum"`
	FromRoutingNum string    `json:"fromRoutingNum,omitempty"`
	ToAccountNum   string    `json:"toAccountNum"`
	ToRoutingNum   string    `json:"toRoutingNum,omitempty"`
	Amount         float64   `json:"amount"`
	Description    string    `json:"description,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
	FraudScore     float64   `json:"fraudScore"`
}

// SubmitTransaction posts an approved transaction to the ledger writer and
// relays the raw response body. Any non-2xx response is an error; the
// caller decides how to surface it.
func (c *Client) SubmitTransaction(ctx context.Context, tx *fraud.Transaction, score float64) (json.RawMessage, error) {
	payload := submitRequest{
		UUID:           tx.UUID,
		FromAccountNum: tx.FromAccountNum,
		ToAccountNum:   tx.ToAccountNum,
		Amount:         tx.Amount,
		Description:    tx.Description,
		Timestamp:      tx.Timestamp,
		FraudScore:     score,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal transaction: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transactions", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token, ok := auth.TokenFromContext(ctx); ok {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ledger request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("ledger writer returned %d: %s", resp.StatusCode, string(body))
	}

	if len(body) == 0 {
		body = []byte(`{}`)
	}
	return json.RawMessage(body), nil
}
