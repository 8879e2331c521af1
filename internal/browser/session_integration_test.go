//go:build integration

package browser_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ibeckermayer/keepalive/internal/browser"
	"github.com/ibeckermayer/keepalive/internal/markers"
	"github.com/ibeckermayer/keepalive/internal/probe"
	"github.com/ibeckermayer/keepalive/internal/types"
)

// hibernatingApp serves a sleeping page with a wake button inside an iframe.
// Clicking the button hits /wake, after which the iframe shows the marker.
func hibernatingApp(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var wakes atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><h1>Streamlit</h1><iframe src="/app"></iframe></body></html>`)
	})
	mux.HandleFunc("/app", func(w http.ResponseWriter, r *http.Request) {
		if wakes.Load() > 0 {
			fmt.Fprint(w, `<html><body><p>✅ App is alive</p></body></html>`)
			return
		}
		fmt.Fprint(w, `<html><body>
			<p>This app has gone to sleep due to inactivity.</p>
			<button onclick="fetch('/wake').then(() => location.reload())">Yes, get this app back up!</button>
		</body></html>`)
	})
	mux.HandleFunc("/wake", func(w http.ResponseWriter, r *http.Request) {
		wakes.Add(1)
	})

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts, &wakes
}

func TestSessionFramesAndClick_Integration(t *testing.T) {
	ts, wakes := hibernatingApp(t)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	sess, err := browser.Launch(ctx, browser.Config{Headless: true, NoSandbox: true}, zaptest.NewLogger(t))
	require.NoError(t, err, "Failed to start browser")
	defer sess.Close()

	require.NoError(t, sess.Navigate(ctx, ts.URL))

	var frames []types.Frame
	require.Eventually(t, func() bool {
		frames, err = sess.Frames(ctx)
		return err == nil && len(frames) == 2 && len(frames[1].Buttons) == 1
	}, 10*time.Second, 200*time.Millisecond)

	assert.Contains(t, frames[1].Text, "gone to sleep")
	assert.Equal(t, "Yes, get this app back up!", frames[1].Buttons[0])

	require.NoError(t, sess.Click(ctx, frames[1].ID, 0))
	require.Eventually(t, func() bool { return wakes.Load() == 1 }, 10*time.Second, 100*time.Millisecond)

	html, err := sess.HTML(ctx)
	require.NoError(t, err)
	assert.Contains(t, html, "<iframe")

	require.NoError(t, sess.Close())
	assert.NoError(t, sess.Close(), "second Close reports the first result")
}

func TestProberWakesApp_Integration(t *testing.T) {
	ts, wakes := hibernatingApp(t)

	cfg := probe.Config{
		URL:          ts.URL,
		Timeout:      20 * time.Second,
		PollInterval: 500 * time.Millisecond,
		WakeGrace:    15 * time.Second,
		SnippetLimit: 500,
		Alive:        markers.DefaultAlive,
		Wake:         markers.DefaultWake,
		Fallback:     markers.DefaultFallback,
	}
	log := zaptest.NewLogger(t)
	p := probe.New(cfg, browser.Launcher(browser.Config{Headless: true, NoSandbox: true}, log), probe.WithLogger(log))

	res, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.VerdictWoken, res.Verdict)
	assert.Equal(t, int32(1), wakes.Load())
}
