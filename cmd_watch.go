package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ibeckermayer/keepalive/internal/app"
	"github.com/ibeckermayer/keepalive/internal/config"
	"github.com/ibeckermayer/keepalive/internal/scheduler"
)

const probeJob = "probe"

var watchSkipFirst bool

// watchCmd probes on a cron schedule until interrupted
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Probe the target on the configured cron schedule",
	Long: `Runs the probe on schedule.cron until SIGINT or SIGTERM.
SIGHUP reloads the config file; a changed schedule takes effect immediately.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&watchSkipFirst, "skip-first", false, "wait for the first scheduled tick instead of probing at startup")
}

func runWatch(cmd *cobra.Command, args []string) error {
	// Installed before anything slow so SIGHUP never hits the default action
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	return watch(a, sigCh, func() (*config.Config, error) { return loadConfig(cmd) }, !watchSkipFirst)
}

// watch schedules probe runs and serves signals until SIGINT/SIGTERM. The
// startup run happens in the background so signals are handled meanwhile.
func watch(a *app.App, sigCh <-chan os.Signal, reload func() (*config.Config, error), runFirst bool) error {
	cfg := a.Config()
	sched, err := scheduler.New(cfg.Schedule.Timezone, cfg.Schedule.JobTimeout.Duration, logger)
	if err != nil {
		return err
	}

	job := probeJobFunc(a)
	if err := sched.AddJob(probeJob, cfg.Schedule.Cron, job); err != nil {
		return err
	}

	first := make(chan struct{})
	if runFirst {
		go func() {
			defer close(first)
			if err := sched.RunNow(probeJob, job); err != nil {
				logger.Debug("Initial probe failed", zap.Error(err))
			}
		}()
	} else {
		close(first)
	}

	sched.Start()
	for _, info := range sched.ListJobs() {
		logger.Info("Next run scheduled", zap.String("job", info.Name), zap.Time("at", info.NextRun))
	}

	schedule := cfg.Schedule.Cron
	for sig := range sigCh {
		if sig != syscall.SIGHUP {
			logger.Info("Shutting down", zap.String("signal", sig.String()))
			break
		}

		next, err := reload()
		if err != nil {
			logger.Warn("Failed to reload config", zap.Error(err))
			continue
		}
		if err := a.ReloadConfig(next); err != nil {
			logger.Warn("Failed to reload config", zap.Error(err))
			continue
		}
		if next.Schedule.Cron != schedule {
			sched.RemoveJob(probeJob)
			if err := sched.AddJob(probeJob, next.Schedule.Cron, job); err != nil {
				logger.Warn("Keeping previous schedule", zap.Error(err))
				if err := sched.AddJob(probeJob, schedule, job); err != nil {
					return err
				}
				continue
			}
			schedule = next.Schedule.Cron
		}
	}

	// Cancels the probe in flight and waits for its browser to close
	<-sched.Stop().Done()
	<-first
	return nil
}

// probeJobFunc adapts App.RunOnce to a scheduler job. A failed verdict has
// already been logged by the prober. A tick that lands while the startup run
// is still going is skipped.
func probeJobFunc(a *app.App) scheduler.Job {
	var running sync.Mutex
	return func(ctx context.Context) error {
		if !running.TryLock() {
			logger.Info("Previous probe still running, skipping this run")
			return nil
		}
		defer running.Unlock()

		_, err := a.RunOnce(ctx)
		return err
	}
}
