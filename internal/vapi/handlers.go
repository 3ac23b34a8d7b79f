package vapi

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

// fallbackName is spoken by the agent when the caller's number is unknown.
// A hard failure would strand an in-progress phone call, so the lookup
// degrades to a synthetic zero-debt record instead of erroring.
const fallbackName = "Valued Customer"

// Handlers serves the voice platform's function calls.
type Handlers struct {
	Users    *users.Service
	Recorder *sessions.Recorder
	Metrics  *metrics.Metrics
}

type userInfo struct {
	UserID      string  `json:"user_id"`
	Name        string  `json:"name"`
	PhoneNumber string  `json:"phone_number"`
	Email       string  `json:"email,omitempty"`
	Debt        float64 `json:"debt"`
}

type negotiateResult struct {
	Status       negotiation.Status `json:"status"`
	AgentAmount  float64            `json:"agent_amount"`
	UserAmounts  []float64          `json:"user_amounts"`
	AgentAmounts []float64          `json:"agent_amounts"`
}

// Webhook dispatches the in-call function names: user lookup and one
// negotiation round. Responses always travel as HTTP 200 envelopes.
func (h Handlers) Webhook(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusOK, Fail("", "unreadable request body"))
		return
	}

	call, err := DecodeCall(body)
	if err != nil {
		var unknown *UnknownFunctionError
		if errors.As(err, &unknown) {
			c.JSON(http.StatusOK, Fail(unknown.Name, unknown.Error()))
			return
		}
		c.JSON(http.StatusOK, Fail(call.Name, err.Error()))
		return
	}

	switch call.Name {
	case FnGetUserInfo:
		c.JSON(http.StatusOK, h.getUserInfo(c, *call.GetUserInfo))
	case FnNegotiate:
		c.JSON(http.StatusOK, h.negotiate(*call.Negotiate))
	default:
		// save_call_result has its own endpoint.
		c.JSON(http.StatusOK, Fail(call.Name, (&UnknownFunctionError{Name: call.Name}).Error()))
	}
}

// SaveResult serves the combined save-result endpoint, also enveloped.
func (h Handlers) SaveResult(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusOK, Fail(FnSaveResult, "unreadable request body"))
		return
	}

	call, err := DecodeCall(body)
	if err != nil {
		var unknown *UnknownFunctionError
		if errors.As(err, &unknown) {
			c.JSON(http.StatusOK, Fail(unknown.Name, unknown.Error()))
			return
		}
		c.JSON(http.StatusOK, Fail(FnSaveResult, err.Error()))
		return
	}
	if call.Name != FnSaveResult {
		c.JSON(http.StatusOK, Fail(call.Name, "expected "+FnSaveResult))
		return
	}

	p := *call.SaveResult
	req := sessions.RecordRequest{
		UserID:            p.UserID,
		ExternalSessionID: p.SessionID,
		Channel:           sessions.ChannelVapi,
		Outcome:           sessions.Outcome(p.Status),
		InitialAmount:     p.InitialAmount,
		FinalAmount:       p.FinalAmount,
		Debt:              p.Debt,
	}
	if len(p.UserAmounts) > 0 || len(p.AgentAmounts) > 0 {
		req.History = &sessions.NegotiationHistory{
			UserAmounts:  p.UserAmounts,
			AgentAmounts: p.AgentAmounts,
		}
	}

	res, err := h.Recorder.Record(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, sessions.ErrInvalidArgument):
			c.JSON(http.StatusOK, Fail(FnSaveResult, err.Error()))
		case errors.Is(err, sessions.ErrUserNotFound):
			c.JSON(http.StatusOK, Fail(FnSaveResult, "user not found"))
		default:
			logger.FromGin(c).Error("save result failed", "err", err)
			h.countError()
			c.JSON(http.StatusOK, Fail(FnSaveResult, "internal error"))
		}
		return
	}
	c.JSON(http.StatusOK, OK(FnSaveResult, res))
}

func (h Handlers) countError() {
	if h.Metrics != nil {
		h.Metrics.Errors.WithLabelValues("vapi").Inc()
	}
}

func (h Handlers) getUserInfo(c *gin.Context, p GetUserInfoParams) Response {
	phone := users.NormalizePhone(p.PhoneNumber)
	if phone == "" {
		return Fail(FnGetUserInfo, "phone_number is required")
	}

	u, err := h.Users.ByPhone(c.Request.Context(), phone)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			// Degrade mid-call rather than failing the agent.
			return OK(FnGetUserInfo, userInfo{
				Name:        fallbackName,
				PhoneNumber: phone,
				Debt:        0,
			})
		}
		logger.FromGin(c).Error("user lookup failed", "err", err)
		h.countError()
		return Fail(FnGetUserInfo, "internal error")
	}

	return OK(FnGetUserInfo, userInfo{
		UserID:      u.ID,
		Name:        u.Name,
		PhoneNumber: u.PhoneNumber,
		Email:       u.Email,
		Debt:        u.RemainingDebt,
	})
}

func (h Handlers) negotiate(p NegotiateParams) Response {
	if msg := validateNegotiateParams(p); msg != "" {
		return Fail(FnNegotiate, msg)
	}

	res := negotiation.Negotiate(negotiation.Input{
		UserAmounts:  p.UserAmounts,
		AgentAmounts: p.AgentAmounts,
		UserAmount:   p.UserAmount,
		UserDebt:     p.UserDebt,
	})
	if h.Metrics != nil {
		h.Metrics.NegotiationRounds.WithLabelValues(string(res.Status)).Inc()
	}

	return OK(FnNegotiate, negotiateResult{
		Status:       res.Status,
		AgentAmount:  res.AgentAmount,
		UserAmounts:  res.UserAmounts,
		AgentAmounts: res.AgentAmounts,
	})
}

func validateNegotiateParams(p NegotiateParams) string {
	if p.UserAmount <= 0 {
		return "user_amount must be positive"
	}
	if p.UserDebt < 0 {
		return "user_debt must be non-negative"
	}
	if len(p.UserAmounts) != len(p.AgentAmounts) {
		return "user_amounts and agent_amounts must have equal length"
	}
	for _, v := range p.UserAmounts {
		if v < 0 {
			return "user_amounts must be non-negative"
		}
	}
	for _, v := range p.AgentAmounts {
		if v < 0 {
			return "agent_amounts must be non-negative"
		}
	}
	return ""
}
