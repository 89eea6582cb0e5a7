package ledgerwriter

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samarthmishra46/anthos-fraud-guardian/internal/auth"
	"github.com/samarthmishra46/anthos-fraud-guardian/internal/fraud"
)

func testTransaction() *fraud.Transaction {
	return &fraud.Transaction{
		UUID:           "tx-ledger-1",
		FromAccountNum: "1234567890",
		ToAccountNum:   "0987654321",
		Amount:         250.75,
		Description:    "invoice 42",
		Timestamp:      time.Date(2024, 3, 13, 14, 30, 0, 0, time.UTC),
	}
}

func TestSubmitTransaction(t *testing.T) {
	var gotBody []byte
	var gotAuth, gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/transactions", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"transactionId":"led-99"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	ctx := auth.ContextWithToken(context.Background(), "tok-xyz")

	resp, err := c.SubmitTransaction(ctx, testTransaction(), 0.42)
	require.NoError(t, err)
	assert.JSONEq(t, `{"transactionId":"led-99"}`, string(resp))

	assert.Equal(t, "Bearer tok-xyz", gotAuth)
	assert.Equal(t, "application/json", gotContentType)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(gotBody, &payload))
	assert.Equal(t, "1234567890", payload["fromAccountNum"])
	assert.Equal(t, 250.75, payload["amount"])
	assert.Equal(t, 0.42, payload["fraudScore"])
}

func TestSubmitTransactionEmptyResponseBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	resp, err := c.SubmitTransaction(context.Background(), testTransaction(), 0.1)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(resp))
}

func TestSubmitTransactionUpstreamRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"insufficient funds"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	resp, err := c.SubmitTransaction(context.Background(), testTransaction(), 0.1)
	require.Error(t, err)
	assert.Nil(t, resp)
	assert.Contains(t, err.Error(), "400")
	assert.Contains(t, err.Error(), "insufficient funds")
}

func TestSubmitTransactionConnectionFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // Refuse connections.

	c := New(srv.URL, time.Second)
	_, err := c.SubmitTransaction(context.Background(), testTransaction(), 0.1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ledger request failed")
}

func TestNewNormalizesAddress(t *testing.T) {
	c := New("ledgerwriter:8080", 0)
	assert.Equal(t, "http://ledgerwriter:8080", c.baseURL)
	assert.Equal(t, 10*time.Second, c.httpClient.Timeout)
}
