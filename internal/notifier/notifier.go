package notifier

import (
	"fmt"
	"html"
	"strings"

	"github.com/ibeckermayer/keepalive/internal/config"
	"github.com/ibeckermayer/keepalive/internal/notifier/providers"
	"github.com/ibeckermayer/keepalive/internal/types"
)

// Notifier handles sending failure alerts
type Notifier struct {
	sender Sender
	to     string
}

// Sender defines the interface for email sending
type Sender interface {
	Send(to, subject, htmlBody, plainBody string) error
}

// New creates a new notifier with the given sender
func New(sender Sender, to string) *Notifier {
	return &Notifier{sender: sender, to: to}
}

// NewFromConfig creates a notifier based on configuration
func NewFromConfig(cfg config.AlertConfig) (*Notifier, error) {
	var sender Sender

	switch cfg.Provider {
	case "smtp":
		sender = providers.NewSMTPSender(
			cfg.SMTPHost,
			cfg.SMTPPort,
			cfg.SMTPUser,
			cfg.SMTPPass,
			cfg.FromAddr,
		)
	default:
		return nil, fmt.Errorf("unknown email provider: %s", cfg.Provider)
	}

	return New(sender, cfg.ToAddr), nil
}

// Alert is the message sent after repeated failed runs
type Alert struct {
	Subject   string
	HTMLBody  string
	PlainBody string
}

// BuildAlert renders the alert for the latest failed result
func BuildAlert(res types.Result, consecutive int) Alert {
	subject := fmt.Sprintf("keepalive: %s failed %d run(s) in a row", res.TargetURL, consecutive)

	var plain strings.Builder
	fmt.Fprintf(&plain, "Could NOT verify app state for %s.\n\n", res.TargetURL)
	fmt.Fprintf(&plain, "Consecutive failures: %d\n", consecutive)
	fmt.Fprintf(&plain, "Last run: %s (took %s)\n", res.StartedAt.UTC().Format("2006-01-02 15:04:05 MST"), res.Duration)
	fmt.Fprintf(&plain, "Wake button clicked: %t\n", res.Clicked)
	if res.Snippet != "" {
		fmt.Fprintf(&plain, "\nContent snippet:\n%s\n", res.Snippet)
	}

	var body strings.Builder
	body.WriteString("<html><body>")
	target := html.EscapeString(res.TargetURL)
	fmt.Fprintf(&body, "<h2>Could NOT verify app state</h2><p><a href=\"%s\">%s</a></p>", target, target)
	fmt.Fprintf(&body, "<p>Consecutive failures: <b>%d</b><br>Wake button clicked: %t</p>", consecutive, res.Clicked)
	if res.Snippet != "" {
		fmt.Fprintf(&body, "<pre>%s</pre>", html.EscapeString(res.Snippet))
	}
	body.WriteString("</body></html>")

	return Alert{
		Subject:   subject,
		HTMLBody:  body.String(),
		PlainBody: plain.String(),
	}
}

// NotifyFailure sends an alert for a failed run
func (n *Notifier) NotifyFailure(res types.Result, consecutive int) error {
	a := BuildAlert(res, consecutive)
	return n.sender.Send(n.to, a.Subject, a.HTMLBody, a.PlainBody)
}
