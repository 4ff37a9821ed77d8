package email

import (
	"net/smtp"
	"testing"

	"locktracker/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSend_notConfigured(t *testing.T) {
	m := NewMailer(config.SMTPConfig{}, zap.NewNop())
	assert.ErrorIs(t, m.SendWelcome("sam@example.com"), ErrNotConfigured)
}

func TestSendPasswordReset(t *testing.T) {
	cfg := config.SMTPConfig{Host: "smtp.example.com", Port: "587", User: "u", Pass: "p", From: "noreply@example.com"}
	m := NewMailer(cfg, zap.NewNop())

	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	m.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		return nil
	}

	require.NoError(t, m.SendPasswordReset("sam@example.com", "http://localhost/reset-password?token=abc"))
	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Equal(t, "noreply@example.com", gotFrom)
	assert.Equal(t, []string{"sam@example.com"}, gotTo)
	assert.Contains(t, string(gotMsg), "Subject: Reset your LockTracker password")
	assert.Contains(t, string(gotMsg), "token=abc")
}
