package invoice

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"collectvoice/internal/metrics"
)

const (
	renderPath      = "/v1/documents"
	jsonContentType = "application/json"
)

var (
	// ErrRenderRejected indicates the document API refused the request.
	ErrRenderRejected = errors.New("document render rejected")
)

// Client provides typed access to the external document-rendering API.
// One render call per invoice; failures are reported, never retried.
type Client struct {
	logger     *slog.Logger
	baseURL    string
	apiKey     string
	templateID string
	http       *http.Client
	metrics    *metrics.Metrics
}

// Config holds document API client configuration.
type Config struct {
	BaseURL    string
	APIKey     string
	TemplateID string
	Timeout    time.Duration
}

func New(cfg Config, logger *slog.Logger, m *metrics.Metrics) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		logger:     logger.With("component", "invoice"),
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		templateID: cfg.TemplateID,
		http:       &http.Client{Timeout: timeout},
		metrics:    m,
	}
}

// InvoiceData is the structured payload substituted into the PDF template.
type InvoiceData struct {
	InvoiceNumber string  `json:"invoice_number"`
	CustomerName  string  `json:"customer_name"`
	CustomerEmail string  `json:"customer_email"`
	Amount        float64 `json:"amount"`
	DebtBefore    float64 `json:"debt_before"`
	DebtAfter     float64 `json:"debt_after"`
	IssuedAt      string  `json:"issued_at"`
	DueAt         string  `json:"due_at"`
}

// RenderRequest asks the document API to fill a template.
// TemplateID falls back to the configured default when empty.
type RenderRequest struct {
	TemplateID string      `json:"template_id"`
	Data       InvoiceData `json:"data"`
}

// RenderResult carries the rendered document's identifiers and decoded bytes.
type RenderResult struct {
	DocumentID string
	URL        string
	PDF        []byte
}

type renderResponse struct {
	DocumentID string `json:"document_id"`
	URL        string `json:"download_url"`
	PDFBase64  string `json:"pdf_base64"`
	Error      string `json:"error"`
}

// Render posts the template id and data, and decodes the base64 PDF reply.
func (c *Client) Render(ctx context.Context, req RenderRequest) (RenderResult, error) {
	start := time.Now()
	res, err := c.render(ctx, req)
	c.observe(start, err)
	return res, err
}

func (c *Client) render(ctx context.Context, req RenderRequest) (RenderResult, error) {
	if req.TemplateID == "" {
		req.TemplateID = c.templateID
	}
	if req.TemplateID == "" {
		return RenderResult{}, fmt.Errorf("template id is required")
	}

	body, err := json.Marshal(req)
	if err != nil {
		return RenderResult{}, fmt.Errorf("encode render request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+renderPath, bytes.NewReader(body))
	if err != nil {
		return RenderResult{}, fmt.Errorf("build render request: %w", err)
	}
	httpReq.Header.Set("Content-Type", jsonContentType)
	httpReq.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return RenderResult{}, fmt.Errorf("document api call: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return RenderResult{}, fmt.Errorf("read render response: %w", err)
	}

	var decoded renderResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return RenderResult{}, fmt.Errorf("decode render response (status %d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := decoded.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return RenderResult{}, fmt.Errorf("%w: %s (status %d)", ErrRenderRejected, msg, resp.StatusCode)
	}

	pdf, err := base64.StdEncoding.DecodeString(decoded.PDFBase64)
	if err != nil {
		return RenderResult{}, fmt.Errorf("decode pdf payload: %w", err)
	}
	if len(pdf) == 0 {
		return RenderResult{}, fmt.Errorf("document api returned empty pdf")
	}

	c.logger.Debug("invoice rendered", "document_id", decoded.DocumentID, "bytes", len(pdf))
	return RenderResult{DocumentID: decoded.DocumentID, URL: decoded.URL, PDF: pdf}, nil
}

func (c *Client) observe(start time.Time, err error) {
	if c.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	c.metrics.InvoiceRequests.WithLabelValues(status).Inc()
	c.metrics.InvoiceLatency.WithLabelValues(status).Observe(time.Since(start).Seconds())
}
