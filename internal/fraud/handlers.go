package fraud

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/samarthmishra46/anthos-fraud-guardian/internal/logging"
	"github.com/samarthmishra46/anthos-fraud-guardian/internal/validation"
)

// LedgerForwarder submits an approved transaction to the ledger writer.
// The raw upstream response body is relayed to the caller.
type LedgerForwarder interface {
	SubmitTransaction(ctx context.Context, tx *Transaction, score float64) (json.RawMessage, error)
}

// DecisionEmitter receives every scored decision for out-of-band
// delivery (websocket stream, block alerts). Implementations must not
// block the request path.
type DecisionEmitter interface {
	EmitDecision(tx *Transaction, composite *CompositeScore)
}

// Handler exposes the scoring engine over HTTP.
type Handler struct {
	engine    *Engine
	store     Store
	forwarder LedgerForwarder
	emitters  []DecisionEmitter
}

// NewHandler creates the HTTP handler for the fraud API. A nil forwarder
// puts the analyze endpoint in dry-run mode: decisions are returned but
// nothing is forwarded to the ledger.
func NewHandler(engine *Engine, store Store, forwarder LedgerForwarder) *Handler {
	return &Handler{engine: engine, store: store, forwarder: forwarder}
}

// WithEvents adds a decision emitter.
func (h *Handler) WithEvents(e DecisionEmitter) *Handler {
	h.emitters = append(h.emitters, e)
	return h
}

// RegisterRoutes registers the fraud API routes.
func (h *Handler) RegisterRoutes(r gin.IRoutes) {
	r.POST("/analyze-transaction", h.AnalyzeTransaction)
	r.GET("/fraud-status", h.FraudStatus)
	r.GET("/assessments", h.ListAssessments)
}

// analyzeRequest is the wire form of a transaction. Amount is a
// json.Number so both `"amount": "250.00"` and `"amount": 250` parse.
type analyzeRequest struct {
	UUID           string      `json:"uuid"`
	FromAccountNum string      `json:"fromAccountNum"`
	ToAccountNum   string      `json:"toAccountNum"`
	Amount         json.Number `json:"amount"`
	Description    string      `json:"description"`
	Timestamp      *time.Time  `json:"timestamp"`
}

// AnalyzeTransaction handles POST /analyze-transaction.
// Blocked transactions return 403; approved ones are forwarded to the
// ledger writer and the upstream result is relayed with the fraud
// analysis attached.
func (h *Handler) AnalyzeTransaction(c *gin.Context) {
	ctx := c.Request.Context()

	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Request body must be a valid transaction",
		})
		return
	}

	amount, err := req.Amount.Float64()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "amount must be a decimal number",
		})
		return
	}

	if verrs := validation.Validate(
		validation.Required("fromAccountNum", req.FromAccountNum),
		validation.Required("toAccountNum", req.ToAccountNum),
		validation.ValidAccountNum("fromAccountNum", req.FromAccountNum),
		validation.ValidAccountNum("toAccountNum", req.ToAccountNum),
		validation.MaxLength("description", req.Description, validation.MaxDescriptionLength),
	); len(verrs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": verrs.Error(),
			"fields":  verrs,
		})
		return
	}

	tx := &Transaction{
		UUID:           req.UUID,
		FromAccountNum: req.FromAccountNum,
		ToAccountNum:   req.ToAccountNum,
		Amount:         amount,
		Description:    validation.SanitizeString(req.Description, validation.MaxDescriptionLength),
	}
	if req.Timestamp != nil {
		tx.Timestamp = *req.Timestamp
	}

	composite, err := h.engine.Analyze(ctx, tx)
	if err != nil {
		if errors.Is(err, ErrInvalidTransaction) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_request",
				"message": err.Error(),
			})
			return
		}
		logging.L(ctx).Error("analysis failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Fraud analysis failed",
		})
		return
	}

	for _, e := range h.emitters {
		e.EmitDecision(tx, composite)
	}

	analysis := gin.H{
		"fraudScore":    composite.Score,
		"decision":      composite.Decision,
		"thresholdUsed": composite.Threshold,
		"signals":       composite.Signals,
	}

	if composite.Decision == DecisionBlock {
		c.JSON(http.StatusForbidden, gin.H{
			"status":   "blocked",
			"message":  "Transaction blocked by fraud detection",
			"reasons":  composite.Reasons(),
			"analysis": analysis,
		})
		return
	}

	if h.forwarder == nil {
		c.JSON(http.StatusOK, gin.H{
			"status":   "approved",
			"message":  "Transaction approved (dry-run, ledger forwarding disabled)",
			"analysis": analysis,
		})
		return
	}

	ledgerResp, err := h.forwarder.SubmitTransaction(ctx, tx, composite.Score)
	if err != nil {
		// Judged legitimate but could not be committed. Distinct from a
		// fraud rejection.
		logging.L(ctx).Error("ledger forward failed",
			"transaction_uuid", tx.UUID,
			"error", err,
		)
		c.JSON(http.StatusBadGateway, gin.H{
			"error":    "forward_failed",
			"message":  "Transaction approved but could not be submitted to the ledger",
			"analysis": analysis,
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"status":   "approved",
		"ledger":   ledgerResp,
		"analysis": analysis,
	})
}

// FraudStatus handles GET /fraud-status.
func (h *Handler) FraudStatus(c *gin.Context) {
	snap := h.engine.Stats().Snapshot()

	aiMode := "active"
	if h.engine.DegradedMode() {
		aiMode = "degraded"
	}

	c.JSON(http.StatusOK, gin.H{
		"statistics":          snap,
		"fraudRatePercentage": snap.FraudRatePercent(),
		"threshold":           h.engine.cfg.BlockThreshold,
		"flagThreshold":       h.engine.cfg.FlagThreshold,
		"serviceStatus":       "active",
		"aiModelStatus":       aiMode,
	})
}

// ListAssessments handles GET /assessments?account=...&limit=...
func (h *Handler) ListAssessments(c *gin.Context) {
	account := c.Query("account")
	if !validation.IsValidAccountNum(account) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_account",
			"message": "account must be a 10-digit account number",
		})
		return
	}

	limit := 20
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	assessments, err := h.store.ListByAccount(c.Request.Context(), account, limit)
	if err != nil {
		logging.L(c.Request.Context()).Error("failed to list assessments", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to list assessments",
		})
		return
	}
	if assessments == nil {
		assessments = []*Assessment{}
	}

	c.JSON(http.StatusOK, gin.H{
		"account":     account,
		"assessments": assessments,
	})
}
