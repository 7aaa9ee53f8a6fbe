package notify

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
)

// =============================================================================
// SMTP Sender Implementation
// =============================================================================

// SMTPSender sends notifications via SMTP.
//
// This implementation works with:
// - Mailhog (development): No authentication required
// - Any standard SMTP relay (production): Uses username/password auth
type SMTPSender struct {
	config SMTPConfig
	logger *slog.Logger
}

// NewSMTPSender creates a new SMTP-based notification sender.
func NewSMTPSender(config SMTPConfig, logger *slog.Logger) *SMTPSender {
	if config.From == "" {
		config.From = DefaultFromEmail
	}
	if config.FromName == "" {
		config.FromName = DefaultFromName
	}

	return &SMTPSender{
		config: config,
		logger: logger,
	}
}

// SendPaymentReceipt sends a receipt for a confirmed payment.
func (s *SMTPSender) SendPaymentReceipt(ctx context.Context, data PaymentReceiptData) error {
	settled := "Your invoice still has a pending balance of " + data.BalanceAfter.StringFixed(2) + "."
	if data.BalanceAfter.IsZero() {
		settled = "Your invoice is now fully paid."
	}

	textBody := fmt.Sprintf(`Hi %s,

We have received a payment for %s.

  Invoice:      #%d (%s)
  Amount:       %s
  Method:       %s
  Payment date: %s

%s

Thanks,
The Billing Team
`, data.ContactName, data.OrganizationName, data.InvoiceID, data.Period,
		data.Amount.StringFixed(2), data.Method,
		data.PaymentDate.Format("January 2, 2006"), settled)

	email := Email{
		To:       data.To,
		Subject:  fmt.Sprintf("Payment received for invoice #%d", data.InvoiceID),
		TextBody: textBody,
	}

	return s.send(ctx, email)
}

// SendDelinquencyNotice sends an overdue-invoices notice.
func (s *SMTPSender) SendDelinquencyNotice(ctx context.Context, data DelinquencyNoticeData) error {
	textBody := fmt.Sprintf(`Hi %s,

This is a reminder that %s has %d overdue invoice(s) with a total
pending amount of %s. The oldest was due on %s (%d days ago).

Please arrange payment at your earliest convenience.

Thanks,
The Billing Team
`, data.ContactName, data.OrganizationName, data.InvoiceCount,
		data.PendingAmount.StringFixed(2),
		data.OldestDueDate.Format("January 2, 2006"), data.DaysOverdue)

	email := Email{
		To:       data.To,
		Subject:  fmt.Sprintf("Overdue invoices for %s", data.OrganizationName),
		TextBody: textBody,
	}

	return s.send(ctx, email)
}

// =============================================================================
// Internal Methods
// =============================================================================

// send sends an email via SMTP.
func (s *SMTPSender) send(ctx context.Context, email Email) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := s.buildMessage(email)
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	// Auth only when credentials are provided (not needed for Mailhog)
	var auth smtp.Auth
	if s.config.Username != "" && s.config.Password != "" {
		auth = smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)
	}

	err := smtp.SendMail(addr, auth, s.config.From, []string{email.To}, msg)
	if err != nil {
		s.logger.Error("failed to send email",
			"to", email.To,
			"subject", email.Subject,
			"error", err,
		)
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("email sent",
		"to", email.To,
		"subject", email.Subject,
	)

	return nil
}

// buildMessage constructs the raw email message with headers.
func (s *SMTPSender) buildMessage(email Email) []byte {
	var buf bytes.Buffer

	fromHeader := fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)

	buf.WriteString(fmt.Sprintf("From: %s\r\n", fromHeader))
	buf.WriteString(fmt.Sprintf("To: %s\r\n", email.To))
	buf.WriteString(fmt.Sprintf("Subject: %s\r\n", email.Subject))
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(email.TextBody)
	buf.WriteString("\r\n")

	return buf.Bytes()
}

// Compile-time interface check
var _ Sender = (*SMTPSender)(nil)
