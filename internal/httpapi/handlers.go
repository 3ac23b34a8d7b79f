package httpapi

import (
	"errors"
	"net/http"

	"collectvoice/internal/metrics"
	"collectvoice/internal/negotiation"
	"collectvoice/internal/sessions"
	"collectvoice/internal/users"
	"collectvoice/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.

type Handlers struct {
	Users    *users.Service
	Recorder *sessions.Recorder
	Metrics  *metrics.Metrics

	// VerboseErrors echoes internal error strings in 500 responses.
	// Leave false outside development.
	VerboseErrors bool
}

// --- Users ---

// GetUserByPhone looks up a debtor by phone number.
func (h Handlers) GetUserByPhone(c *gin.Context) {
	phone := users.NormalizePhone(c.Param("phone"))
	if phone == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "phone required"})
		return
	}

	u, err := h.Users.ByPhone(c.Request.Context(), phone)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		h.internalError(c, "user lookup failed", err)
		return
	}
	c.JSON(http.StatusOK, u)
}

// --- Negotiation ---

type negotiateRequest struct {
	UserAmounts  []float64 `json:"user_amounts"`
	AgentAmounts []float64 `json:"agent_amounts"`
	UserAmount   float64   `json:"user_amount"`
	UserDebt     float64   `json:"user_debt"`
}

type negotiateResponse struct {
	Status       negotiation.Status `json:"status"`
	AgentAmount  float64            `json:"agent_amount"`
	UserAmounts  []float64          `json:"user_amounts"`
	AgentAmounts []float64          `json:"agent_amounts"`
}

// Negotiate runs one counter-offer round. The endpoint is stateless: the
// caller carries the offer history between rounds.
func (h Handlers) Negotiate(c *gin.Context) {
	var req negotiateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if msg := validateNegotiate(req); msg != "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	res := negotiation.Negotiate(negotiation.Input{
		UserAmounts:  req.UserAmounts,
		AgentAmounts: req.AgentAmounts,
		UserAmount:   req.UserAmount,
		UserDebt:     req.UserDebt,
	})
	if h.Metrics != nil {
		h.Metrics.NegotiationRounds.WithLabelValues(string(res.Status)).Inc()
	}

	c.JSON(http.StatusOK, negotiateResponse{
		Status:       res.Status,
		AgentAmount:  res.AgentAmount,
		UserAmounts:  res.UserAmounts,
		AgentAmounts: res.AgentAmounts,
	})
}

func validateNegotiate(req negotiateRequest) string {
	if req.UserAmount <= 0 {
		return "user_amount must be positive"
	}
	if req.UserDebt < 0 {
		return "user_debt must be non-negative"
	}
	if len(req.UserAmounts) != len(req.AgentAmounts) {
		return "user_amounts and agent_amounts must have equal length"
	}
	for _, v := range req.UserAmounts {
		if v < 0 {
			return "user_amounts must be non-negative"
		}
	}
	for _, v := range req.AgentAmounts {
		if v < 0 {
			return "agent_amounts must be non-negative"
		}
	}
	return ""
}

// --- Call results ---

type callResultRequest struct {
	UserID        string    `json:"user_id"`
	Status        string    `json:"status"`
	InitialAmount float64   `json:"initial_amount"`
	FinalAmount   float64   `json:"final_amount"`
	Debt          float64   `json:"debt"`
	SessionID     string    `json:"session_id"`
	UserAmounts   []float64 `json:"user_amounts"`
	AgentAmounts  []float64 `json:"agent_amounts"`
}

// RecordCallResult closes a call: persists the session, propagates the debt,
// and kicks off invoice rendering and email delivery for paid outcomes.
func (h Handlers) RecordCallResult(c *gin.Context) {
	var req callResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	rec := sessions.RecordRequest{
		UserID:            req.UserID,
		ExternalSessionID: req.SessionID,
		Channel:           sessions.ChannelAPI,
		Outcome:           sessions.Outcome(req.Status),
		InitialAmount:     req.InitialAmount,
		FinalAmount:       req.FinalAmount,
		Debt:              req.Debt,
	}
	if len(req.UserAmounts) > 0 || len(req.AgentAmounts) > 0 {
		rec.History = &sessions.NegotiationHistory{
			UserAmounts:  req.UserAmounts,
			AgentAmounts: req.AgentAmounts,
		}
	}

	res, err := h.Recorder.Record(c.Request.Context(), rec)
	if err != nil {
		switch {
		case errors.Is(err, sessions.ErrInvalidArgument):
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, sessions.ErrUserNotFound):
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "user not found"})
		default:
			h.internalError(c, "call result save failed", err)
		}
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h Handlers) internalError(c *gin.Context, msg string, err error) {
	logger.FromGin(c).Error(msg, "err", err)
	if h.Metrics != nil {
		h.Metrics.Errors.WithLabelValues("httpapi").Inc()
	}
	body := gin.H{"error": "internal error"}
	if h.VerboseErrors {
		body["error"] = err.Error()
	}
	c.AbortWithStatusJSON(http.StatusInternalServerError, body)
}
