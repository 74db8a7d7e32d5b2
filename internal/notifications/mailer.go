package notifications

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	intconfig "travelapp/internal/config"
	"travelapp/internal/metrics"
	"travelapp/internal/utils"
)

// Email is one outgoing message. Template names the message kind for logs
// and metrics.
type Email struct {
	Template string `json:"template"`
	From     string `json:"from"`
	To       string `json:"to"`
	Subject  string `json:"subject"`
	HTML     string `json:"html"`
	Text     string `json:"text"`
}

type Mailer interface {
	Send(ctx context.Context, e Email) error
}

// NewMailer returns an SMTP mailer, or a logging stand-in when SMTP is not
// configured.
func NewMailer(env intconfig.SMTPEnv) Mailer {
	if !env.Configured() {
		return LogMailer{}
	}
	return SMTPMailer{Env: env}
}

type SMTPMailer struct {
	Env intconfig.SMTPEnv
}

const boundary = "----=_TRAVELAPP_BOUNDARY"

func (m SMTPMailer) Send(_ context.Context, e Email) error {
	auth := smtp.PlainAuth("", m.Env.Username, m.Env.Password, m.Env.Host)
	addr := fmt.Sprintf("%s:%s", m.Env.Host, m.Env.Port)

	if err := smtp.SendMail(addr, auth, m.envelopeFrom(), []string{headerSafe(e.To)}, buildMIME(e)); err != nil {
		metrics.EmailsSent.WithLabelValues(e.Template, metrics.OutcomeError).Inc()
		return fmt.Errorf("send %s email: %w", e.Template, err)
	}
	metrics.EmailsSent.WithLabelValues(e.Template, metrics.OutcomeOK).Inc()
	utils.LogEvent("", "email", "send", fmt.Sprintf("template=%s to=%s", e.Template, e.To))
	return nil
}

func (m SMTPMailer) envelopeFrom() string {
	if m.Env.FromAddress != "" {
		return m.Env.FromAddress
	}
	return m.Env.Username
}

func buildMIME(e Email) []byte {
	var sb strings.Builder
	sb.WriteString("From: " + headerSafe(e.From) + "\r\n")
	sb.WriteString("To: " + headerSafe(e.To) + "\r\n")
	sb.WriteString("Subject: " + headerSafe(e.Subject) + "\r\n")
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString(fmt.Sprintf("Content-Type: multipart/alternative; boundary=\"%s\"\r\n\r\n", boundary))

	sb.WriteString(fmt.Sprintf("--%s\r\n", boundary))
	sb.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	sb.WriteString(e.Text + "\r\n")

	sb.WriteString(fmt.Sprintf("--%s\r\n", boundary))
	sb.WriteString("Content-Type: text/html; charset=utf-8\r\n\r\n")
	sb.WriteString(e.HTML + "\r\n")

	sb.WriteString(fmt.Sprintf("--%s--\r\n", boundary))
	return []byte(sb.String())
}

func headerSafe(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(strings.TrimSpace(s))
}

// LogMailer prints instead of sending. Used in development.
type LogMailer struct{}

func (LogMailer) Send(_ context.Context, e Email) error {
	metrics.EmailsSent.WithLabelValues(e.Template, "mock").Inc()
	utils.LogEvent("", "email", "mock_send", fmt.Sprintf("[MOCK EMAIL] template=%s to=%s subject=%q", e.Template, e.To, e.Subject))
	return nil
}
