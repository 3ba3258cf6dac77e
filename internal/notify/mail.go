package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"

	"go.uber.org/zap"
)

// SMTPMailSender is the production MailSender, delivering plain-text mail
// over SMTP. Grounded directly on internal/email.SMTPSender, generalized
// from the registry's single from-address transactional sender to the
// notification worker's MailSender interface — the wire protocol and
// implicit-TLS-on-465/STARTTLS-otherwise split are unchanged.
type SMTPMailSender struct {
	host     string
	port     int
	username string
	password string
	from     string
}

// NewSMTPMailSender creates an SMTPMailSender.
func NewSMTPMailSender(host string, port int, username, password, from string) *SMTPMailSender {
	return &SMTPMailSender{host: host, port: port, username: username, password: password, from: from}
}

// Send delivers a plain-text email to one recipient.
func (s *SMTPMailSender) Send(_ context.Context, to, subject, body string) error {
	msg := strings.Join([]string{
		"From: " + s.from,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=UTF-8",
		"",
		body,
	}, "\r\n")

	addr := fmt.Sprintf("%s:%d", s.host, s.port)

	var auth smtp.Auth
	if s.username != "" {
		auth = smtp.PlainAuth("", s.username, s.password, s.host)
	}

	if s.port == 465 {
		return s.sendImplicitTLS(addr, auth, to, []byte(msg))
	}
	return smtp.SendMail(addr, auth, s.from, []string{to}, []byte(msg))
}

func (s *SMTPMailSender) sendImplicitTLS(addr string, auth smtp.Auth, to string, msg []byte) error {
	host, _, _ := net.SplitHostPort(addr)
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: host})
	if err != nil {
		return fmt.Errorf("smtp tls dial: %w", err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, host)
	if err != nil {
		return fmt.Errorf("smtp new client: %w", err)
	}
	defer client.Close()

	if auth != nil {
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := client.Mail(s.from); err != nil {
		return fmt.Errorf("smtp MAIL FROM: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("smtp RCPT TO: %w", err)
	}
	wc, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp DATA: %w", err)
	}
	if _, err := fmt.Fprint(wc, string(msg)); err != nil {
		return fmt.Errorf("smtp write body: %w", err)
	}
	return wc.Close()
}

// NoopMailSender logs mail to zap instead of delivering it. Grounded on
// internal/email.NoopSender: buildMailSender in cmd/loanserve always
// returns it, as no SMTP settings are loaded, matching the registry's own
// "not configured" fallback rather than failing outbound
// notification jobs outright.
type NoopMailSender struct {
	logger *zap.Logger
}

// NewNoopMailSender creates a NoopMailSender backed by logger.
func NewNoopMailSender(logger *zap.Logger) *NoopMailSender {
	return &NoopMailSender{logger: logger}
}

// Send logs the email and returns nil.
func (n *NoopMailSender) Send(_ context.Context, to, subject, body string) error {
	n.logger.Info("email (noop — not sent)",
		zap.String("to", to),
		zap.String("subject", subject),
		zap.String("body", body),
	)
	return nil
}
