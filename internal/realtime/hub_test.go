package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/samarthmishra46/anthos-fraud-guardian/internal/fraud"
)

func testHub() *Hub {
	return NewHub(slog.Default())
}

func decisionEvent(data *DecisionData) *Event {
	return &Event{Type: EventDecision, Timestamp: time.Now(), Data: data}
}

// ---------------------------------------------------------------------------
// shouldSend tests
// ---------------------------------------------------------------------------

func TestShouldSend_AllEvents(t *testing.T) {
	h := testHub()
	client := &Client{sub: Subscription{AllEvents: true}}

	event := decisionEvent(&DecisionData{Decision: "allow", Score: 0.1})
	if !h.shouldSend(client, event) {
		t.Error("AllEvents client should receive all events")
	}
}

func TestShouldSend_EventTypeFilter(t *testing.T) {
	h := testHub()

	client := &Client{sub: Subscription{
		EventTypes: []EventType{EventDegraded},
	}}

	degraded := &Event{Type: EventDegraded}
	decision := decisionEvent(&DecisionData{Decision: "allow"})

	if !h.shouldSend(client, degraded) {
		t.Error("Should receive degraded_mode events")
	}
	if h.shouldSend(client, decision) {
		t.Error("Should NOT receive decision events")
	}
}

func TestShouldSend_BlocksOnly(t *testing.T) {
	h := testHub()

	client := &Client{sub: Subscription{BlocksOnly: true}}

	blocked := decisionEvent(&DecisionData{Decision: "block", Score: 0.9})
	allowed := decisionEvent(&DecisionData{Decision: "allow", Score: 0.1})

	if !h.shouldSend(client, blocked) {
		t.Error("Should receive block decisions")
	}
	if h.shouldSend(client, allowed) {
		t.Error("Should NOT receive allow decisions")
	}
}

func TestShouldSend_MinScoreFilter(t *testing.T) {
	h := testHub()

	client := &Client{sub: Subscription{MinScore: 0.5}}

	high := decisionEvent(&DecisionData{Decision: "allow", Score: 0.6})
	low := decisionEvent(&DecisionData{Decision: "allow", Score: 0.2})
	degraded := &Event{Type: EventDegraded, Data: "ai backend unavailable"}

	if !h.shouldSend(client, high) {
		t.Error("Should receive high-score decision")
	}
	if h.shouldSend(client, low) {
		t.Error("Should NOT receive low-score decision")
	}
	if !h.shouldSend(client, degraded) {
		t.Error("MinScore filter should only apply to decisions")
	}
}

func TestShouldSend_AccountFilter(t *testing.T) {
	h := testHub()

	client := &Client{sub: Subscription{
		AccountNums: []string{"1234567890"},
	}}

	watched := decisionEvent(&DecisionData{AccountNum: "1234567890", Decision: "allow"})
	other := decisionEvent(&DecisionData{AccountNum: "5555555555", Decision: "allow"})

	if !h.shouldSend(client, watched) {
		t.Error("Should match watched account")
	}
	if h.shouldSend(client, other) {
		t.Error("Should NOT match unrelated account")
	}
}

func TestShouldSend_EmptySubscription(t *testing.T) {
	h := testHub()

	// No filters, not AllEvents
	client := &Client{sub: Subscription{}}

	event := decisionEvent(&DecisionData{Decision: "allow"})
	if !h.shouldSend(client, event) {
		t.Error("Empty subscription (no filters) should receive events")
	}
}

func TestShouldSend_CombinedFilters(t *testing.T) {
	h := testHub()

	client := &Client{sub: Subscription{
		AccountNums: []string{"1234567890"},
		BlocksOnly:  true,
	}}

	match := decisionEvent(&DecisionData{AccountNum: "1234567890", Decision: "block", Score: 0.9})
	wrongAccount := decisionEvent(&DecisionData{AccountNum: "5555555555", Decision: "block", Score: 0.9})
	wrongDecision := decisionEvent(&DecisionData{AccountNum: "1234567890", Decision: "allow", Score: 0.1})

	if !h.shouldSend(client, match) {
		t.Error("Should receive blocked decision for watched account")
	}
	if h.shouldSend(client, wrongAccount) {
		t.Error("Should NOT receive other accounts")
	}
	if h.shouldSend(client, wrongDecision) {
		t.Error("Should NOT receive allow decisions")
	}
}

// ---------------------------------------------------------------------------
// Hub lifecycle tests
// ---------------------------------------------------------------------------

func TestHub_Stats_Initial(t *testing.T) {
	h := testHub()

	stats := h.Stats()
	if stats["connectedClients"].(int) != 0 {
		t.Errorf("Expected 0 connected clients, got %v", stats["connectedClients"])
	}
	if stats["totalEvents"].(int64) != 0 {
		t.Errorf("Expected 0 total events, got %v", stats["totalEvents"])
	}
}

func TestHub_BroadcastAndStats(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go h.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	h.Broadcast(decisionEvent(&DecisionData{Decision: "allow", Score: 0.1}))
	time.Sleep(50 * time.Millisecond)

	stats := h.Stats()
	if stats["totalEvents"].(int64) != 1 {
		t.Errorf("Expected 1 total event, got %v", stats["totalEvents"])
	}
}

func TestHub_RegisterUnregister(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go h.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	client := &Client{
		hub:  h,
		send: make(chan []byte, 256),
		sub:  Subscription{AllEvents: true},
	}

	h.register <- client
	time.Sleep(50 * time.Millisecond)

	stats := h.Stats()
	if stats["connectedClients"].(int) != 1 {
		t.Errorf("Expected 1 connected client, got %v", stats["connectedClients"])
	}
	if stats["peakClients"].(int64) != 1 {
		t.Errorf("Expected peak 1, got %v", stats["peakClients"])
	}

	h.unregister <- client
	time.Sleep(50 * time.Millisecond)

	stats = h.Stats()
	if stats["connectedClients"].(int) != 0 {
		t.Errorf("Expected 0 connected clients after unregister, got %v", stats["connectedClients"])
	}
	// Peak should still be 1
	if stats["peakClients"].(int64) != 1 {
		t.Errorf("Expected peak still 1, got %v", stats["peakClients"])
	}
}

func TestHub_EmitDecisionReachesClient(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go h.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	client := &Client{
		hub:  h,
		send: make(chan []byte, 256),
		sub:  Subscription{AllEvents: true},
	}

	h.register <- client
	time.Sleep(50 * time.Millisecond)

	tx := &fraud.Transaction{
		UUID:           "tx-ws-1",
		FromAccountNum: "1234567890",
		ToAccountNum:   "0987654321",
		Amount:         9999,
	}
	composite := &fraud.CompositeScore{
		Score:     0.82,
		Threshold: 0.7,
		Decision:  fraud.DecisionBlock,
		Signals: []fraud.SignalResult{
			{Analyzer: fraud.AnalyzerAmount, Score: 0.8, Suspicious: true, Reason: "amount near ceiling"},
		},
	}
	h.EmitDecision(tx, composite)

	select {
	case msg := <-client.send:
		var event struct {
			Type EventType    `json:"type"`
			Data DecisionData `json:"data"`
		}
		if err := json.Unmarshal(msg, &event); err != nil {
			t.Fatalf("unmarshal event: %v", err)
		}
		if event.Type != EventDecision {
			t.Errorf("event type = %q", event.Type)
		}
		if event.Data.TransactionUUID != "tx-ws-1" {
			t.Errorf("transaction uuid = %q", event.Data.TransactionUUID)
		}
		if event.Data.Decision != "block" {
			t.Errorf("decision = %q", event.Data.Decision)
		}
		if len(event.Data.Reasons) == 0 {
			t.Error("blocked decision should carry reasons")
		}
	case <-time.After(time.Second):
		t.Error("Timeout waiting for decision event")
	}
}

func TestHub_EmitDecisionOmitsReasonsOnAllow(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go h.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	client := &Client{
		hub:  h,
		send: make(chan []byte, 256),
		sub:  Subscription{AllEvents: true},
	}

	h.register <- client
	time.Sleep(50 * time.Millisecond)

	tx := &fraud.Transaction{UUID: "tx-ws-2", FromAccountNum: "1234567890", ToAccountNum: "0987654321", Amount: 10}
	composite := &fraud.CompositeScore{
		Score:    0.2,
		Decision: fraud.DecisionAllow,
		Signals: []fraud.SignalResult{
			{Analyzer: fraud.AnalyzerTime, Score: 0.4, Suspicious: true, Reason: "nighttime transaction"},
		},
	}
	h.EmitDecision(tx, composite)

	select {
	case msg := <-client.send:
		var event struct {
			Data DecisionData `json:"data"`
		}
		if err := json.Unmarshal(msg, &event); err != nil {
			t.Fatalf("unmarshal event: %v", err)
		}
		if len(event.Data.Reasons) != 0 {
			t.Errorf("allow decision should not carry reasons, got %v", event.Data.Reasons)
		}
	case <-time.After(time.Second):
		t.Error("Timeout waiting for decision event")
	}
}

func TestHub_FilteredBroadcast(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go h.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	// Client only wants degraded-mode transitions
	client := &Client{
		hub:  h,
		send: make(chan []byte, 256),
		sub:  Subscription{EventTypes: []EventType{EventDegraded}},
	}

	h.register <- client
	time.Sleep(50 * time.Millisecond)

	// Send a decision event (should be filtered out)
	h.Broadcast(decisionEvent(&DecisionData{Decision: "allow"}))
	time.Sleep(100 * time.Millisecond)

	select {
	case <-client.send:
		t.Error("Client should NOT receive decision event")
	default:
		// Good - filtered out
	}

	// Send a degraded event (should be received)
	h.Broadcast(&Event{Type: EventDegraded, Timestamp: time.Now(), Data: "ai backend unavailable"})

	select {
	case msg := <-client.send:
		if len(msg) == 0 {
			t.Error("Expected non-empty message")
		}
	case <-time.After(time.Second):
		t.Error("Client should receive degraded event")
	}
}

func TestHub_ContextCancellation(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
		// Hub stopped
	case <-time.After(2 * time.Second):
		t.Error("Hub did not stop after context cancellation")
	}
}
