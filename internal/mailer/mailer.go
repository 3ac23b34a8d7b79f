package mailer

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"collectvoice/internal/metrics"

	"github.com/google/uuid"
	"gopkg.in/gomail.v2"
)

var ErrInvalidRecipient = errors.New("invalid recipient")

// Config holds SMTP relay settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Mailer delivers rendered invoices over SMTP. One attempt per message; a
// failed send is reported to the caller, never retried here.
type Mailer struct {
	dialer  *gomail.Dialer
	from    string
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func New(cfg Config, logger *slog.Logger, m *metrics.Metrics) *Mailer {
	return &Mailer{
		dialer:  gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:    cfg.From,
		logger:  logger.With("component", "mailer"),
		metrics: m,
	}
}

// SendRequest describes one invoice email.
type SendRequest struct {
	To      string
	ToName  string
	Subject string
	Body    string

	AttachmentName string
	PDF            []byte
}

// SendInvoice delivers the email with the PDF attached and returns the
// generated message id.
func (m *Mailer) SendInvoice(req SendRequest) (string, error) {
	msg, msgID, err := m.buildMessage(req)
	if err != nil {
		m.observe(err)
		return "", err
	}

	if err := m.dialer.DialAndSend(msg); err != nil {
		m.observe(err)
		return "", fmt.Errorf("smtp send: %w", err)
	}

	m.observe(nil)
	m.logger.Debug("invoice email sent", "message_id", msgID, "to", req.To)
	return msgID, nil
}

func (m *Mailer) buildMessage(req SendRequest) (*gomail.Message, string, error) {
	to := strings.TrimSpace(req.To)
	if to == "" || !strings.Contains(to, "@") {
		return nil, "", fmt.Errorf("%w: %q", ErrInvalidRecipient, req.To)
	}

	msgID := fmt.Sprintf("<%s@collectvoice>", uuid.NewString())

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetAddressHeader("To", to, req.ToName)
	msg.SetHeader("Subject", req.Subject)
	msg.SetHeader("Message-Id", msgID)
	msg.SetBody("text/plain", req.Body)

	if len(req.PDF) > 0 {
		name := req.AttachmentName
		if name == "" {
			name = "invoice.pdf"
		}
		pdf := req.PDF
		msg.Attach(name, gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := w.Write(pdf)
			return err
		}))
	}

	return msg, msgID, nil
}

func (m *Mailer) observe(err error) {
	if m.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	m.metrics.EmailSends.WithLabelValues(status).Inc()
}
