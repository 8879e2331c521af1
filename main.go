// Command keepalive pings a hosted web app so it does not hibernate, and
// clicks the hosting platform's wake button when it already has.
//
// It exits 0 when the app is confirmed alive and 1 otherwise, so a scheduler
// (cron, a CI workflow) can alert on repeated failures.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ibeckermayer/keepalive/internal/app"
	"github.com/ibeckermayer/keepalive/internal/config"
	"github.com/ibeckermayer/keepalive/internal/logging"
	"github.com/ibeckermayer/keepalive/internal/probe"
)

var (
	// Global flags
	configPath string
	verbose    bool

	// Target overrides
	targetURL    string
	timeout      time.Duration
	pollInterval time.Duration
	wakeGrace    time.Duration
	snippetLimit int
	headful      bool
	historyPath  string

	// Logger
	logger *zap.Logger
)

// rootCmd performs a single probe run
var rootCmd = &cobra.Command{
	Use:   "keepalive",
	Short: "Keep a hosted web app from hibernating",
	Long: `keepalive loads the target app in headless Chrome and checks, in order:
  1. the app's explicit alive marker (polled until the timeout)
  2. the hosting platform's wake button, clicked and then waited on
  3. a weaker marker of the app's normal UI

Exit status is 0 when any check passes and 1 otherwise.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger = logging.New(verbose)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runProbe,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "config file (default: user config dir/keepalive/config.toml)")
	pf.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	pf.StringVar(&targetURL, "url", "", "target URL (overrides target.url)")
	pf.DurationVar(&timeout, "timeout", 0, "navigation and marker poll budget (overrides target.timeout)")
	pf.DurationVar(&pollInterval, "poll-interval", 0, "marker poll interval (overrides target.poll_interval)")
	pf.DurationVar(&wakeGrace, "wake-grace", 0, "wait after clicking the wake button (overrides target.wake_grace)")
	pf.IntVar(&snippetLimit, "snippet-limit", 0, "characters of HTML dumped on failure (overrides target.snippet_limit)")
	pf.BoolVar(&headful, "headful", false, "show the browser window")
	pf.StringVar(&historyPath, "history", "", "record runs in this SQLite database (enables history)")

	rootCmd.AddCommand(watchCmd, historyCmd)
}

// loadConfig reads the config file and applies command-line overrides
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("url") {
		cfg.Target.URL = targetURL
	}
	if flags.Changed("timeout") {
		cfg.Target.Timeout = config.D(timeout)
	}
	if flags.Changed("poll-interval") {
		cfg.Target.PollInterval = config.D(pollInterval)
	}
	if flags.Changed("wake-grace") {
		cfg.Target.WakeGrace = config.D(wakeGrace)
	}
	if flags.Changed("snippet-limit") {
		cfg.Target.SnippetLimit = snippetLimit
	}
	if flags.Changed("headful") {
		cfg.Browser.Headless = !headful
	}
	if flags.Changed("history") {
		cfg.History.Enabled = true
		cfg.History.Path = historyPath
	}

	return cfg, nil
}

func newApp(cmd *cobra.Command) (*app.App, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return app.New(cfg, logger)
}

// signalContext is cancelled on SIGINT/SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runProbe(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signalContext()
	defer cancel()

	_, err = a.RunOnce(ctx)
	return err
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		// an unverified run has already logged its FAILURE lines
		if !errors.Is(err, probe.ErrUnverified) {
			if logger == nil {
				logger = logging.New(verbose)
			}
			logger.Error(fmt.Sprintf("FATAL ERROR: %v", err))
			_ = logger.Sync()
		}
		os.Exit(1)
	}
}
