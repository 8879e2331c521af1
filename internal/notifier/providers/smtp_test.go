package providers

import (
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSMTPSenderSend(t *testing.T) {
	s := NewSMTPSender("smtp.example.com", 587, "bot", "secret", "bot@example.com")
	s.now = func() time.Time { return time.Date(2025, 3, 1, 7, 0, 0, 0, time.UTC) }

	var gotAddr, gotFrom string
	var gotTo []string
	var gotAuth smtp.Auth
	var gotMsg string
	s.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotAuth, gotFrom, gotTo, gotMsg = addr, a, from, to, string(msg)
		return nil
	}

	require.NoError(t, s.Send("ops@example.com", "keepalive: failed", "<b>down</b>", "down"))

	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.NotNil(t, gotAuth)
	assert.Equal(t, "bot@example.com", gotFrom)
	assert.Equal(t, []string{"ops@example.com"}, gotTo)
	assert.Contains(t, gotMsg, "To: ops@example.com\r\n")
	assert.Contains(t, gotMsg, "Subject: keepalive: failed\r\n")
	assert.Contains(t, gotMsg, "Date: Sat, 01 Mar 2025 07:00:00 +0000\r\n")
	assert.Contains(t, gotMsg, "Content-Type: text/plain; charset=\"utf-8\"\r\n\r\ndown\r\n")
	assert.Contains(t, gotMsg, "<b>down</b>")
	assert.True(t, strings.HasSuffix(gotMsg, "--keepalive-alt--\r\n"))
}

func TestSMTPSenderWithoutAuth(t *testing.T) {
	s := NewSMTPSender("localhost", 25, "", "", "bot@example.com")
	var gotAuth smtp.Auth = smtp.PlainAuth("", "x", "y", "z")
	s.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAuth = a
		return nil
	}

	require.NoError(t, s.Send("ops@example.com", "s", "h", "p"))
	assert.Nil(t, gotAuth)
}

func TestSMTPSenderErrors(t *testing.T) {
	s := NewSMTPSender("", 587, "", "", "bot@example.com")
	assert.Error(t, s.Send("ops@example.com", "s", "h", "p"))

	s = NewSMTPSender("smtp.example.com", 587, "", "", "bot@example.com")
	s.sendMail = func(string, smtp.Auth, string, []string, []byte) error {
		return errors.New("connection refused")
	}
	err := s.Send("ops@example.com", "s", "h", "p")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}
