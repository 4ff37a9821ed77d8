package email

import (
	"errors"
	"fmt"
	"net/smtp"

	"locktracker/config"

	"go.uber.org/zap"
)

var ErrNotConfigured = errors.New("SMTP environment variables missing")

// Mailer sends account notifications over SMTP.
type Mailer struct {
	cfg  config.SMTPConfig
	log  *zap.Logger
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewMailer(cfg config.SMTPConfig, log *zap.Logger) *Mailer {
	return &Mailer{cfg: cfg, log: log, send: smtp.SendMail}
}

func (m *Mailer) deliver(to, subject, body string) error {
	if !m.cfg.Enabled() {
		return ErrNotConfigured
	}
	addr := fmt.Sprintf("%s:%s", m.cfg.Host, m.cfg.Port)
	auth := smtp.PlainAuth("", m.cfg.User, m.cfg.Pass, m.cfg.Host)
	msg := []byte(fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s", m.cfg.From, to, subject, body))
	return m.send(addr, auth, m.cfg.From, []string{to}, msg)
}

func (m *Mailer) SendWelcome(to string) error {
	subject := "Welcome to LockTracker"
	body := "Thanks for signing up. Log your first bet and start tracking your edge."
	if err := m.deliver(to, subject, body); err != nil {
		return err
	}
	m.log.Info("email: welcome sent", zap.String("to", to))
	return nil
}

// SendPasswordReset mails the password recovery link.
func (m *Mailer) SendPasswordReset(to, resetLink string) error {
	subject := "Reset your LockTracker password"
	body := fmt.Sprintf(`Hi,

We received a request to reset your password.

Follow this link to choose a new one:
%s

The link expires in 1 hour. If you did not ask for this, you can ignore this email.

LockTracker`, resetLink)
	if err := m.deliver(to, subject, body); err != nil {
		return err
	}
	m.log.Info("email: password reset sent", zap.String("to", to))
	return nil
}
