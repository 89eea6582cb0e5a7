package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samarthmishra46/anthos-fraud-guardian/internal/fraud"
)

func verdictServer(t *testing.T, verdict string, capture *generateRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if capture != nil {
			body, _ := io.ReadAll(r.Body)
			require.NoError(t, json.Unmarshal(body, capture))
		}
		fmt.Fprintf(w, `{"candidates":[{"content":{"parts":[{"text":%q}]}}]}`, verdict)
	}))
}

func sampleTransaction() *fraud.Transaction {
	return &fraud.Transaction{
		UUID:           "tx-ai-1",
		FromAccountNum: "1234567890",
		ToAccountNum:   "0987654321",
		Amount:         321.55,
		Description:    "weekly groceries",
		Timestamp:      time.Date(2024, 3, 13, 14, 30, 0, 0, time.UTC),
	}
}

func TestScorePatternVerdicts(t *testing.T) {
	cases := []struct {
		verdict        string
		wantScore      float64
		wantSuspicious bool
	}{
		{"FRAUD: amount wildly exceeds account norms", 0.8, true},
		{"This looks SUSPICIOUS given the hour.", 0.8, true},
		{"CAUTION: slightly above typical spend.", 0.4, true},
		{"UNUSUAL timing but amount is in range.", 0.4, true},
		{"NORMAL. Consistent with account history.", 0.1, false},
		{"Nothing notable about this transfer.", 0.1, false},
		{"fraud indicators present", 0.8, true}, // case-insensitive
	}

	for _, tc := range cases {
		t.Run(tc.verdict[:10], func(t *testing.T) {
			srv := verdictServer(t, tc.verdict, nil)
			defer srv.Close()

			c := New("test-key", "gemini-1.5-flash", WithBaseURL(srv.URL))
			result, err := c.ScorePattern(context.Background(), sampleTransaction(), nil)
			require.NoError(t, err)

			assert.Equal(t, fraud.AnalyzerPattern, result.Analyzer)
			assert.Equal(t, tc.wantScore, result.Score)
			assert.Equal(t, tc.wantSuspicious, result.Suspicious)
			assert.NotEmpty(t, result.Reason)
		})
	}
}

func TestScorePatternRequestShape(t *testing.T) {
	var captured generateRequest
	srv := verdictServer(t, "NORMAL", &captured)
	defer srv.Close()

	history := fraud.HistoryWindow{
		{Amount: 50, Description: "coffee", Timestamp: time.Date(2024, 3, 12, 9, 0, 0, 0, time.UTC)},
	}

	c := New("test-key", "gemini-1.5-flash", WithBaseURL(srv.URL))
	_, err := c.ScorePattern(context.Background(), sampleTransaction(), history)
	require.NoError(t, err)

	assert.Equal(t, 0.1, captured.GenerationConfig.Temperature)
	assert.Equal(t, 1024, captured.GenerationConfig.MaxOutputTokens)

	require.Len(t, captured.Contents, 1)
	prompt := captured.Contents[0].Parts[0].Text
	assert.Contains(t, prompt, "$321.55")
	assert.Contains(t, prompt, "1234567890")
	assert.Contains(t, prompt, "weekly groceries")
	assert.Contains(t, prompt, "$50.00")
}

func TestScorePatternHistoryPromptCap(t *testing.T) {
	var captured generateRequest
	srv := verdictServer(t, "NORMAL", &captured)
	defer srv.Close()

	history := make(fraud.HistoryWindow, 25)
	for i := range history {
		history[i] = fraud.HistoryEntry{
			Amount:    float64(i + 1),
			Timestamp: time.Date(2024, 3, 12, 9, i, 0, 0, time.UTC),
		}
	}

	c := New("test-key", "gemini-1.5-flash", WithBaseURL(srv.URL))
	_, err := c.ScorePattern(context.Background(), sampleTransaction(), history)
	require.NoError(t, err)

	prompt := captured.Contents[0].Parts[0].Text
	assert.Equal(t, historyPromptLimit, strings.Count(prompt, "\n- $"))
}

func TestScorePatternAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"code":429,"message":"quota exceeded"}}`))
	}))
	defer srv.Close()

	c := New("test-key", "gemini-1.5-flash", WithBaseURL(srv.URL))
	_, err := c.ScorePattern(context.Background(), sampleTransaction(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestScorePatternNoCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	}))
	defer srv.Close()

	c := New("test-key", "gemini-1.5-flash", WithBaseURL(srv.URL))
	_, err := c.ScorePattern(context.Background(), sampleTransaction(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no candidates")
}

func TestScorePatternContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server can detect the client disconnect
		// and cancel the request context; otherwise srv.Close deadlocks.
		_, _ = io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	c := New("test-key", "gemini-1.5-flash", WithBaseURL(srv.URL))
	_, err := c.ScorePattern(ctx, sampleTransaction(), nil)
	require.Error(t, err)
}

func TestFirstLineTruncation(t *testing.T) {
	long := strings.Repeat("x", 300)
	assert.Len(t, firstLine(long), 200)
	assert.Equal(t, "first", firstLine("first\nsecond\nthird"))
	assert.Equal(t, "trimmed", firstLine("  trimmed\nrest"))
}
