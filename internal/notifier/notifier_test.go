package notifier

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/keepalive/internal/config"
	"github.com/ibeckermayer/keepalive/internal/types"
)

type recordingSender struct {
	to, subject, html, plain string
	calls                    int
}

func (r *recordingSender) Send(to, subject, htmlBody, plainBody string) error {
	r.calls++
	r.to, r.subject, r.html, r.plain = to, subject, htmlBody, plainBody
	return nil
}

func failedResult() types.Result {
	return types.Result{
		TargetURL: "https://demo.streamlit.app/?heartbeat=1",
		Verdict:   types.VerdictFailed,
		Snippet:   "<html><body>502 <b>Bad Gateway</b></body></html>",
		StartedAt: time.Date(2025, 3, 1, 7, 0, 0, 0, time.UTC),
		Duration:  time.Minute,
	}
}

func TestNotifyFailure(t *testing.T) {
	sender := &recordingSender{}
	n := New(sender, "ops@example.com")

	require.NoError(t, n.NotifyFailure(failedResult(), 3))

	assert.Equal(t, 1, sender.calls)
	assert.Equal(t, "ops@example.com", sender.to)
	assert.Equal(t, "keepalive: https://demo.streamlit.app/?heartbeat=1 failed 3 run(s) in a row", sender.subject)
	assert.Contains(t, sender.plain, "Consecutive failures: 3")
	assert.Contains(t, sender.plain, "502 <b>Bad Gateway</b>")
	// the snippet is escaped in the HTML part
	assert.Contains(t, sender.html, "502 &lt;b&gt;Bad Gateway&lt;/b&gt;")
}

func TestNewFromConfig(t *testing.T) {
	cfg := config.Default().Alert
	cfg.ToAddr = "ops@example.com"

	n, err := NewFromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", n.to)

	cfg.Provider = "pigeon"
	_, err = NewFromConfig(cfg)
	assert.Error(t, err)
}

func TestBuildAlertEscapesLink(t *testing.T) {
	res := failedResult()
	res.TargetURL = `https://demo.streamlit.app/?heartbeat=1&x="><script>`

	a := BuildAlert(res, 1)
	assert.Contains(t, a.HTMLBody,
		`<a href="https://demo.streamlit.app/?heartbeat=1&amp;x=&#34;&gt;&lt;script&gt;">`)
	assert.NotContains(t, a.HTMLBody, "<script>")
}
