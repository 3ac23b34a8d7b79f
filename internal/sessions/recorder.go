package sessions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"collectvoice/internal/invoice"
	"collectvoice/internal/mailer"
	"collectvoice/internal/metrics"
	"collectvoice/internal/users"

	"github.com/google/uuid"
)

var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrUserNotFound    = errors.New("user not found")
)

const invoiceDueDays = 14

// Renderer turns a payment into a PDF invoice via the external document API.
type Renderer interface {
	Render(ctx context.Context, req invoice.RenderRequest) (invoice.RenderResult, error)
}

// InvoiceMailer delivers a rendered invoice by email.
type InvoiceMailer interface {
	SendInvoice(req mailer.SendRequest) (string, error)
}

// Recorder persists the outcome of a completed call.
//
// Integration failures (render or send) never abort the write: they are
// recorded as FAILED inside the session's integrations blob, and the session
// row plus debt propagation still land in one transaction.
type Recorder struct {
	store    Store
	users    *users.Service
	renderer Renderer
	mailer   InvoiceMailer
	metrics  *metrics.Metrics
	logger   *slog.Logger

	// clock is injectable for deterministic tests.
	clock func() time.Time
}

func NewRecorder(store Store, userSvc *users.Service, renderer Renderer, invoiceMailer InvoiceMailer, m *metrics.Metrics, logger *slog.Logger) *Recorder {
	return &Recorder{
		store:    store,
		users:    userSvc,
		renderer: renderer,
		mailer:   invoiceMailer,
		metrics:  m,
		logger:   logger.With("component", "recorder"),
		clock:    time.Now,
	}
}

// RecordRequest carries one call's final result.
type RecordRequest struct {
	UserID            string
	ExternalSessionID string
	Channel           Channel
	Outcome           Outcome
	InitialAmount     float64
	FinalAmount       float64
	Debt              float64

	// History is optional; the voice agent sends its offer history for audit.
	History *NegotiationHistory
}

// RecordResult is returned to the caller after the session is persisted.
type RecordResult struct {
	Status      Outcome `json:"status"`
	FinalAmount float64 `json:"final_amount"`
	DebtLeft    float64 `json:"debt_left"`
	InvoiceID   string  `json:"invoice_id,omitempty"`
	InvoiceURL  string  `json:"invoice_url,omitempty"`
	EmailSent   bool    `json:"email_sent"`
	SessionID   string  `json:"session_id"`
}

// Record validates the request, runs the invoice/email dispatch when the
// outcome carries a payment and the user has an email, and persists the
// closed session with debt propagation in a single transaction.
func (r *Recorder) Record(ctx context.Context, req RecordRequest) (RecordResult, error) {
	if err := validateRecordRequest(req); err != nil {
		return RecordResult{}, err
	}

	u, err := r.users.ByID(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return RecordResult{}, ErrUserNotFound
		}
		return RecordResult{}, err
	}

	now := r.clock().UTC()
	sessionID := uuid.NewString()
	debtAfter := DebtAfter(req.Outcome, req.Debt, req.FinalAmount)

	disp := dispatchOutcome{integrations: NewIntegrations()}
	if req.Outcome.Paid() && u.Email != "" {
		disp = r.dispatch(ctx, u, req, debtAfter, now)
	}

	externalID := req.ExternalSessionID
	if externalID == "" {
		externalID = sessionID
	}
	channel := req.Channel
	if channel == "" {
		channel = ChannelAPI
	}

	history := NegotiationHistory{}
	if req.History != nil {
		history = *req.History
		if history.Rounds == 0 {
			history.Rounds = len(history.UserAmounts)
		}
	}

	endedAt := now
	sess := Session{
		ID:                sessionID,
		UserID:            u.ID,
		ExternalSessionID: externalID,
		Channel:           channel,
		Outcome:           req.Outcome,
		InitialAmount:     req.InitialAmount,
		FinalAmount:       req.FinalAmount,
		DebtBefore:        req.Debt,
		DebtAfter:         debtAfter,
		Negotiation:       history,
		Integrations:      disp.integrations,
		StartedAt:         now,
		EndedAt:           &endedAt,
		CreatedAt:         now,
	}

	if err := r.store.SaveClosed(ctx, sess); err != nil {
		return RecordResult{}, fmt.Errorf("save call session: %w", err)
	}

	// The cached lookup now carries stale debt.
	r.users.InvalidatePhone(ctx, u.PhoneNumber)

	if r.metrics != nil {
		r.metrics.CallResults.WithLabelValues(string(req.Outcome)).Inc()
	}

	return RecordResult{
		Status:      req.Outcome,
		FinalAmount: req.FinalAmount,
		DebtLeft:    debtAfter,
		InvoiceID:   disp.invoiceID,
		InvoiceURL:  disp.invoiceURL,
		EmailSent:   disp.integrations.Email.Status == StepSuccess,
		SessionID:   sessionID,
	}, nil
}

// DebtAfter computes the user's remaining debt following the call: unchanged
// on REFUSED, otherwise reduced by the final amount, floored at zero.
func DebtAfter(outcome Outcome, debt, finalAmount float64) float64 {
	if outcome == OutcomeRefused {
		return debt
	}
	return roundCents(math.Max(0, debt-finalAmount))
}

type dispatchOutcome struct {
	integrations Integrations
	invoiceID    string
	invoiceURL   string
}

// dispatch renders the PDF and emails it. Each step fails independently; a
// failed render leaves the email slot PENDING since there is nothing to send.
func (r *Recorder) dispatch(ctx context.Context, u users.User, req RecordRequest, debtAfter float64, now time.Time) dispatchOutcome {
	out := dispatchOutcome{integrations: NewIntegrations()}

	rendered, err := r.renderer.Render(ctx, invoice.RenderRequest{
		Data: invoice.InvoiceData{
			InvoiceNumber: invoiceNumber(now),
			CustomerName:  u.Name,
			CustomerEmail: u.Email,
			Amount:        req.FinalAmount,
			DebtBefore:    req.Debt,
			DebtAfter:     debtAfter,
			IssuedAt:      now.Format("2006-01-02"),
			DueAt:         now.AddDate(0, 0, invoiceDueDays).Format("2006-01-02"),
		},
	})
	at := now
	if err != nil {
		r.logger.Warn("invoice render failed", "user_id", u.ID, "err", err)
		out.integrations.Invoice = IntegrationResult{Status: StepFailed, Error: err.Error(), At: &at}
		return out
	}
	out.integrations.Invoice = IntegrationResult{Status: StepSuccess, ExternalID: rendered.DocumentID, At: &at}
	out.invoiceID = rendered.DocumentID
	out.invoiceURL = rendered.URL

	msgID, err := r.mailer.SendInvoice(mailer.SendRequest{
		To:             u.Email,
		ToName:         u.Name,
		Subject:        fmt.Sprintf("Payment confirmation %s", now.Format("Jan 2, 2006")),
		Body:           emailBody(u.Name, req.FinalAmount, debtAfter),
		AttachmentName: "invoice.pdf",
		PDF:            rendered.PDF,
	})
	if err != nil {
		r.logger.Warn("invoice email failed", "user_id", u.ID, "err", err)
		out.integrations.Email = IntegrationResult{Status: StepFailed, Error: err.Error(), At: &at}
		return out
	}
	out.integrations.Email = IntegrationResult{Status: StepSuccess, ExternalID: msgID, At: &at}
	return out
}

func validateRecordRequest(req RecordRequest) error {
	if req.UserID == "" {
		return fmt.Errorf("%w: user_id is required", ErrInvalidArgument)
	}
	if !req.Outcome.Valid() {
		return fmt.Errorf("%w: unknown outcome %q", ErrInvalidArgument, req.Outcome)
	}
	if req.InitialAmount < 0 || req.FinalAmount < 0 || req.Debt < 0 {
		return fmt.Errorf("%w: amounts must be non-negative", ErrInvalidArgument)
	}
	if req.Outcome == OutcomeRefused && req.FinalAmount != 0 {
		return fmt.Errorf("%w: final_amount must be 0 for REFUSED", ErrInvalidArgument)
	}
	if req.Outcome.Paid() && req.FinalAmount <= 0 {
		return fmt.Errorf("%w: final_amount must be positive for %s", ErrInvalidArgument, req.Outcome)
	}
	if req.Channel != "" && req.Channel != ChannelAPI && req.Channel != ChannelVapi {
		return fmt.Errorf("%w: unknown channel %q", ErrInvalidArgument, req.Channel)
	}
	return nil
}

func invoiceNumber(now time.Time) string {
	return fmt.Sprintf("INV-%s-%s", now.Format("20060102"), uuid.NewString()[:8])
}

func emailBody(name string, amount, debtLeft float64) string {
	return fmt.Sprintf(
		"Hello %s,\n\nWe confirm your payment of %.2f. Your remaining balance is %.2f.\nYour invoice is attached.\n\nThank you.\n",
		name, amount, debtLeft,
	)
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
