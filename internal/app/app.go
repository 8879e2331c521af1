package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/ibeckermayer/keepalive/internal/browser"
	"github.com/ibeckermayer/keepalive/internal/config"
	"github.com/ibeckermayer/keepalive/internal/notifier"
	"github.com/ibeckermayer/keepalive/internal/probe"
	"github.com/ibeckermayer/keepalive/internal/store"
	"github.com/ibeckermayer/keepalive/internal/types"
)

// App ties a prober to the optional run history and failure alerts.
type App struct {
	mu  sync.RWMutex
	log *zap.Logger // immutable after creation

	// Mutable fields - use getSnapshot() for concurrent access.
	config   *config.Config
	prober   *probe.Prober
	store    *store.Store
	notifier *notifier.Notifier

	// newLauncher builds the browser launcher for a config
	newLauncher func(*config.Config) probe.Launcher
	probeOpts   []probe.Option

	// failures counts consecutive failed runs when there is no history store
	failures int
}

// snapshot holds fields that may be replaced by ReloadConfig.
// Use getSnapshot() to obtain a consistent, point-in-time copy.
type snapshot struct {
	config   *config.Config
	prober   *probe.Prober
	store    *store.Store
	notifier *notifier.Notifier
}

// getSnapshot returns a snapshot of mutable fields under read lock.
func (a *App) getSnapshot() snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return snapshot{
		config:   a.config,
		prober:   a.prober,
		store:    a.store,
		notifier: a.notifier,
	}
}

// Option customizes an App
type Option func(*App)

// WithLauncher replaces the Chrome launcher
func WithLauncher(fn func(*config.Config) probe.Launcher) Option {
	return func(a *App) { a.newLauncher = fn }
}

// WithProbeOptions passes options through to every prober the App builds
func WithProbeOptions(opts ...probe.Option) Option {
	return func(a *App) { a.probeOpts = append(a.probeOpts, opts...) }
}

// New validates cfg and creates a new App instance.
func New(cfg *config.Config, log *zap.Logger, opts ...Option) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}
	a := &App{log: log}
	a.newLauncher = func(c *config.Config) probe.Launcher {
		return browser.Launcher(browser.Config{
			Headless:  c.Browser.Headless,
			NoSandbox: c.Browser.NoSandbox,
			UserAgent: c.Browser.UserAgent,
		}, a.log)
	}
	for _, opt := range opts {
		opt(a)
	}

	s, err := a.build(cfg, snapshot{})
	if err != nil {
		return nil, err
	}
	a.config, a.prober, a.store, a.notifier = s.config, s.prober, s.store, s.notifier
	return a, nil
}

// build creates everything that depends on cfg. The history store of prev is
// reused when it points at the same database.
func (a *App) build(cfg *config.Config, prev snapshot) (snapshot, error) {
	if err := cfg.Validate(); err != nil {
		return snapshot{}, fmt.Errorf("invalid config: %w", err)
	}

	s := snapshot{config: cfg}
	s.prober = probe.New(ProbeConfig(cfg), a.newLauncher(cfg),
		append([]probe.Option{probe.WithLogger(a.log)}, a.probeOpts...)...)

	opened := false
	if cfg.History.Enabled {
		path, err := cfg.HistoryPath()
		if err != nil {
			return snapshot{}, err
		}
		if prev.store != nil && prev.config != nil && prev.config.History.Enabled {
			if prevPath, err := prev.config.HistoryPath(); err == nil && prevPath == path {
				s.store = prev.store
			}
		}
		if s.store == nil {
			st, err := store.New(path)
			if err != nil {
				return snapshot{}, fmt.Errorf("failed to open history %s: %w", path, err)
			}
			s.store = st
			opened = true
		}
	}

	if cfg.Alert.Enabled {
		n, err := notifier.NewFromConfig(cfg.Alert)
		if err != nil {
			if opened {
				s.store.Close()
			}
			return snapshot{}, err
		}
		s.notifier = n
	}

	return s, nil
}

// ProbeConfig maps the file config onto a prober config
func ProbeConfig(cfg *config.Config) probe.Config {
	return probe.Config{
		URL:          cfg.Target.URL,
		Timeout:      cfg.Target.Timeout.Duration,
		PollInterval: cfg.Target.PollInterval.Duration,
		WakeGrace:    cfg.Target.WakeGrace.Duration,
		ScanTimeout:  cfg.Target.ScanTimeout.Duration,
		SnippetLimit: cfg.Target.SnippetLimit,
		Alive:        cfg.Markers.Alive,
		Wake:         cfg.Markers.Wake,
		Fallback:     cfg.Markers.Fallback,
	}
}

// Config returns the current configuration
func (a *App) Config() *config.Config {
	return a.getSnapshot().config
}

// RunOnce performs one probe run, records it and alerts when the failure
// threshold is reached. The returned error is the prober's.
func (a *App) RunOnce(ctx context.Context) (types.Result, error) {
	s := a.getSnapshot()

	res, err := s.prober.Run(ctx)

	consecutive := a.countFailure(res.Verdict)

	if s.store != nil {
		run := store.RunFromResult(res, err)
		if _, serr := s.store.SaveRun(&run); serr != nil {
			a.log.Warn("Failed to record run", zap.Error(serr))
		} else if n, serr := s.store.ConsecutiveFailures(res.TargetURL); serr != nil {
			a.log.Warn("Failed to count failures", zap.Error(serr))
		} else {
			consecutive = n
		}

		if res.Document != "" {
			a.saveSnapshot(s.config, res)
		}
	}

	if s.notifier != nil && consecutive > 0 && consecutive == s.config.Alert.AfterFailures {
		a.log.Warn("Sending failure alert", zap.Int("consecutive_failures", consecutive))
		if nerr := s.notifier.NotifyFailure(res, consecutive); nerr != nil {
			a.log.Warn("Failed to send alert", zap.Error(nerr))
		}
	}

	return res, err
}

// countFailure tracks the failure streak in memory, for alerting without a
// history store
func (a *App) countFailure(v types.Verdict) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if v.OK() {
		a.failures = 0
	} else {
		a.failures++
	}
	return a.failures
}

func (a *App) saveSnapshot(cfg *config.Config, res types.Result) {
	dir, err := cfg.SnapshotDir()
	if err != nil {
		a.log.Debug("No snapshot dir", zap.Error(err))
		return
	}
	path, err := store.SaveSnapshot(dir, res.TargetURL, res.StartedAt, res.Document)
	if err != nil {
		a.log.Warn("Failed to save page snapshot", zap.Error(err))
		return
	}
	a.log.Info("Saved page snapshot", zap.String("path", path))
}

// History returns recent runs of the configured target
func (a *App) History(limit int) ([]store.Run, error) {
	s := a.getSnapshot()
	if s.store == nil {
		return nil, errors.New("history is disabled (set history.enabled = true)")
	}
	return s.store.RecentRuns(s.config.Target.URL, limit)
}

// ReloadConfig swaps in a new configuration. A run in progress keeps the
// prober it started with.
func (a *App) ReloadConfig(cfg *config.Config) error {
	s, err := a.build(cfg, a.getSnapshot())
	if err != nil {
		return err
	}

	a.mu.Lock()
	old := a.store
	a.config, a.prober, a.store, a.notifier = s.config, s.prober, s.store, s.notifier
	a.mu.Unlock()

	if old != nil && old != s.store {
		old.Close()
	}

	a.log.Info("Configuration reloaded")
	return nil
}

// Close releases the history store
func (a *App) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.store == nil {
		return nil
	}
	err := a.store.Close()
	a.store = nil
	return err
}
