package main

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ibeckermayer/keepalive/internal/app"
	"github.com/ibeckermayer/keepalive/internal/config"
	"github.com/ibeckermayer/keepalive/internal/probe"
	"github.com/ibeckermayer/keepalive/internal/types"
)

func TestLoadConfigFlagOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := `
[target]
url = "https://demo.streamlit.app/?heartbeat=1"
timeout = "90s"
snippet_limit = 200
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0600))

	require.NoError(t, rootCmd.ParseFlags([]string{
		"--config", path,
		"--timeout", "30s",
		"--headful",
		"--history", filepath.Join(t.TempDir(), "h.db"),
	}))

	cfg, err := loadConfig(rootCmd)
	require.NoError(t, err)

	// file value kept where no flag was given
	assert.Equal(t, "https://demo.streamlit.app/?heartbeat=1", cfg.Target.URL)
	assert.Equal(t, 200, cfg.Target.SnippetLimit)
	// flags win over the file
	assert.Equal(t, 30*time.Second, cfg.Target.Timeout.Duration)
	assert.False(t, cfg.Browser.Headless)
	assert.True(t, cfg.History.Enabled)
	assert.Equal(t, "h.db", filepath.Base(cfg.History.Path))
	require.NoError(t, cfg.Validate())
}

// stuckSession never finishes loading, like a cold start that outlasts a signal
type stuckSession struct {
	mu         sync.Mutex
	navigating chan struct{}
	once       sync.Once
	closes     int
}

func (s *stuckSession) Navigate(ctx context.Context, url string) error {
	s.once.Do(func() { close(s.navigating) })
	<-ctx.Done()
	return ctx.Err()
}
func (s *stuckSession) Frames(ctx context.Context) ([]types.Frame, error) { return nil, nil }
func (s *stuckSession) Click(ctx context.Context, frameID string, index int) error {
	return nil
}
func (s *stuckSession) HTML(ctx context.Context) (string, error) { return "", nil }
func (s *stuckSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return nil
}

func TestWatchHandlesSignalsDuringStartupRun(t *testing.T) {
	prev := logger
	logger = zaptest.NewLogger(t)
	t.Cleanup(func() { logger = prev })

	sess := &stuckSession{navigating: make(chan struct{})}
	cfg := config.Default()
	a, err := app.New(cfg, logger, app.WithLauncher(func(*config.Config) probe.Launcher {
		return func(ctx context.Context) (probe.Session, error) { return sess, nil }
	}))
	require.NoError(t, err)
	defer a.Close()

	var reloads atomic.Int32
	reload := func() (*config.Config, error) {
		reloads.Add(1)
		next := *cfg
		next.Markers.Fallback = []string{"Reloaded"}
		return &next, nil
	}

	sigCh := make(chan os.Signal, 1)
	done := make(chan error, 1)
	go func() { done <- watch(a, sigCh, reload, true) }()

	select {
	case <-sess.navigating:
	case <-time.After(5 * time.Second):
		t.Fatal("startup run never began")
	}

	sigCh <- syscall.SIGHUP
	require.Eventually(t, func() bool { return reloads.Load() == 1 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"Reloaded"}, a.Config().Markers.Fallback)

	sigCh <- syscall.SIGTERM
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop on SIGTERM")
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	assert.Equal(t, 1, sess.closes)
}
