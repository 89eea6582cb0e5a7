// Package alerts delivers block notifications to an external webhook.
//
// Delivery is fire-and-forget: a slow or failing webhook must never hold
// up transaction scoring. Outcomes are visible through metrics and logs.
package alerts

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/samarthmishra46/anthos-fraud-guardian/internal/fraud"
	"github.com/samarthmishra46/anthos-fraud-guardian/internal/idgen"
	"github.com/samarthmishra46/anthos-fraud-guardian/internal/metrics"
)

// Event is the alert wire format.
type Event struct {
	ID              string    `json:"id"`
	Type            string    `json:"type"`
	Timestamp       time.Time `json:"timestamp"`
	TransactionUUID string    `json:"transactionUuid"`
	AccountNum      string    `json:"accountNum"`
	Amount          float64   `json:"amount"`
	Score           float64   `json:"score"`
	Reasons         []string  `json:"reasons"`
}

// Notifier posts block events to a webhook URL.
// It implements fraud.DecisionEmitter.
type Notifier struct {
	url    string
	secret string // HMAC signing secret, optional
	client *http.Client
	logger *slog.Logger
}

// NewNotifier creates a webhook notifier. secret may be empty, in which
// case payloads are unsigned.
func NewNotifier(url, secret string, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		url:    url,
		secret: secret,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// EmitDecision sends an alert for blocked transactions. Allowed
// transactions are ignored. Returns immediately; delivery happens in a
// background goroutine.
func (n *Notifier) EmitDecision(tx *fraud.Transaction, composite *fraud.CompositeScore) {
	if composite.Decision != fraud.DecisionBlock {
		return
	}

	event := &Event{
		ID:              idgen.WithPrefix("evt_"),
		Type:            "transaction.blocked",
		Timestamp:       time.Now().UTC(),
		TransactionUUID: tx.UUID,
		AccountNum:      tx.FromAccountNum,
		Amount:          tx.Amount,
		Score:           composite.Score,
		Reasons:         composite.Reasons(),
	}

	go n.send(event)
}

func (n *Notifier) send(event *Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	payload, err := json.Marshal(event)
	if err != nil {
		metrics.AlertsTotal.WithLabelValues("failed").Inc()
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(payload))
	if err != nil {
		metrics.AlertsTotal.WithLabelValues("failed").Inc()
		return
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-FraudGuardian-Event", event.Type)
	req.Header.Set("X-FraudGuardian-Timestamp", fmt.Sprintf("%d", event.Timestamp.Unix()))
	if n.secret != "" {
		req.Header.Set("X-FraudGuardian-Signature", sign(payload, n.secret))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		metrics.AlertsTotal.WithLabelValues("failed").Inc()
		n.logger.Warn("alert delivery failed",
			"event_id", event.ID,
			"transaction_uuid", event.TransactionUUID,
			"error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		metrics.AlertsTotal.WithLabelValues("delivered").Inc()
		return
	}

	metrics.AlertsTotal.WithLabelValues("failed").Inc()
	n.logger.Warn("alert webhook rejected event",
		"event_id", event.ID,
		"status", resp.StatusCode)
}

func sign(payload []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}
